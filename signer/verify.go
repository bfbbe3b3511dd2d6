package signer

import (
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/identity"
	"go.dedis.ch/onet/v3/log"
)

// VerifyData recomputes the root of the request and checks the signature
// against it. For an identity, sig is the serialized aggregate and the
// status tells whether the threshold is reached. For an address, sig is a
// single signature made at req.BlockHeight.
//
// Random salts cannot be recomputed: a salted request must give them in
// Salts.
func (s *Signer) VerifyData(req *Request, sig []byte) (*Result, error) {
	if req.Salted && req.Salts == nil {
		return nil, attest.InputError("verification needs the salts of the items")
	}
	r := *req
	r.Salted = false
	p, err := s.prepare(&r)
	if err != nil {
		return nil, err
	}
	res := p.res
	res.Signature = sig

	t, err := s.resolve(p.req.Destination)
	if err != nil {
		return nil, err
	}
	var agg *identity.Signature
	id := t.identity
	if t.address != nil {
		if len(sig) != identity.ShareSize {
			return nil, attest.CryptoError("signature has %d bytes", len(sig))
		}
		id, err = identity.NewAddressIdentity(*t.address)
		if err != nil {
			return nil, err
		}
		agg = identity.NewIdentitySignature(p.req.HashType)
		agg.BlockHeight = p.req.BlockHeight
		agg.Shares = [][]byte{sig}
		res.Address = t.address
	} else {
		agg, err = identity.ParseSignature(sig)
		if err != nil {
			return nil, err
		}
		res.Identity = id
	}
	res.BlockHeight = agg.BlockHeight
	res.Status, err = agg.Verify(s.SystemID, id, res.Hash)
	if err != nil {
		return nil, err
	}
	log.Lvlf3("signature of %s over %s is %s", p.req.Destination, res.Hash, res.Status)
	return res, nil
}
