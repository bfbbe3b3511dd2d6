// Package signer is the entry point to sign data. It canonicalizes the
// items of a request, combines their leaves into a root and signs the root
// with an address or adds shares to the threshold signature of an identity.
package signer

import (
	"fmt"

	"go.dedis.ch/attest"
	"go.dedis.ch/attest/canon"
	"go.dedis.ch/attest/digest"
	"go.dedis.ch/attest/envelope"
	"go.dedis.ch/attest/identity"
	"go.dedis.ch/attest/mmr"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
)

// DefaultHashType is used to hash the items if the request has none.
const DefaultHashType = digest.SHA256

// Chain gives the current height of the chain.
type Chain interface {
	Height() uint32
}

// StaticChain is a chain that stays at the same height.
type StaticChain uint32

// Height returns the height.
func (c StaticChain) Height() uint32 {
	return uint32(c)
}

// Signer holds the read-only context of the signing calls. The key store
// and the registry are only read.
type Signer struct {
	SystemID identity.ID
	Keys     identity.KeyStore
	Registry identity.Registry
	Chain    Chain
	Policy   canon.Policy
}

// Request holds the arguments of SignData.
type Request struct {
	// Destination is an address, an identity address or the name of an
	// identity registered under the system id.
	Destination string
	Items       []*canon.Item
	HashType    digest.Type
	MMRHashType digest.Type
	// CreateMMR builds an MMR even for a single item.
	CreateMMR bool
	// Salts are applied to the items in order. If given, there must be one
	// per item; an empty salt leaves the item unsalted.
	Salts [][]byte
	// Salted creates random salts for the items without one when an MMR
	// is built.
	Salted bool
	// PriorSignature is a serialized aggregate to which shares are added.
	PriorSignature []byte
	// BlockHeight of the signature, the chain height if 0.
	BlockHeight uint32
	// EncryptTo is the viewing key to which the descriptors and the
	// signature data are encrypted.
	EncryptTo kyber.Point
	// ReturnKeys adds the leaf keys of the encrypted descriptors to the
	// result.
	ReturnKeys bool
}

// Structure describes the result without revealing encrypted content.
type Structure struct {
	Items            uint32
	MMR              bool
	Salted           bool
	Encrypted        bool
	HasSignatureData bool
	// Sizes are the encoded sizes of the result descriptors.
	Sizes []uint32
}

// Result is returned by SignData.
type Result struct {
	// Hash is the signed root: the single leaf or the root of the MMR.
	Hash       digest.Hash
	LeafHashes []digest.Hash
	// MMRRoot is set if an MMR has been built.
	MMRRoot digest.Hash
	// Signature is the serialized aggregate for an identity, or a single
	// recoverable signature for an address.
	Signature   []byte
	Status      identity.Status
	Identity    *identity.Identity
	Address     *identity.Address
	BlockHeight uint32
	// Descriptors holds one descriptor per item that is not a precomputed
	// hash. They are encrypted if the request has a viewing key.
	Descriptors   []*canon.Descriptor
	SignatureData *canon.Descriptor
	Structure     Structure
	// Keys are the leaf keys of Descriptors followed by the one of
	// SignatureData.
	Keys [][]byte
}

// SignatureData is the metadata of a signature, stored as the payload of
// a descriptor.
type SignatureData struct {
	Version     uint32
	SystemID    []byte
	Destination string
	HashType    uint32
	MMRHashType uint32
	MMR         bool
	Root        []byte
	LeafHashes  [][]byte
	BlockHeight uint32
	Signature   []byte
}

// DecodeSignatureData parses the payload of a signature descriptor.
func DecodeSignatureData(d *canon.Descriptor) (*SignatureData, error) {
	if d.Encrypted() || d.MimeType != canon.MimeSignature {
		return nil, attest.InputError("descriptor doesn't hold signature data")
	}
	sd := &SignatureData{}
	if err := protobuf.Decode(d.Data, sd); err != nil {
		return nil, attest.InputError("corrupt signature data: %v", err)
	}
	return sd, nil
}

// target is the resolved destination of a request.
type target struct {
	address  *identity.Address
	identity *identity.Identity
}

func (s *Signer) resolve(dest string) (*target, error) {
	if a, err := identity.ParseAddress(dest); err == nil {
		switch a.Type {
		case identity.AddressPubKey, identity.AddressPubKeyHash:
			return &target{address: &a}, nil
		case identity.AddressIdentity:
			id, err := identity.IDFromBytes(a.Data)
			if err != nil {
				return nil, err
			}
			return s.lookup(id)
		}
		return nil, attest.AuthorizationError("cannot sign for a %s address", a.Type)
	}
	if dest == "" {
		return nil, attest.InputError("missing destination")
	}
	return s.lookup(identity.NewID(dest, s.SystemID))
}

func (s *Signer) lookup(id identity.ID) (*target, error) {
	if s.Registry == nil {
		return nil, attest.AuthorizationError("no registry to look up %s", id)
	}
	i, err := s.Registry.LookupIdentity(id)
	if err != nil {
		return nil, err
	}
	return &target{identity: i}, nil
}

func (s *Signer) height(req *Request) uint32 {
	if req.BlockHeight != 0 || s.Chain == nil {
		return req.BlockHeight
	}
	return s.Chain.Height()
}

// leaves canonicalizes the items and returns their descriptors and leaves.
func (s *Signer) leaves(req *Request, useMMR bool) ([]*canon.Canonical, []digest.Hash, bool, error) {
	if len(req.Items) == 0 {
		return nil, nil, false, attest.InputError("no items to sign")
	}
	if req.Salts != nil && len(req.Salts) != len(req.Items) {
		return nil, nil, false, attest.InputError("%d salts for %d items",
			len(req.Salts), len(req.Items))
	}
	h, err := digest.New(req.HashType)
	if err != nil {
		return nil, nil, false, err
	}
	var cans []*canon.Canonical
	var leaves []digest.Hash
	salted := false
	for i, it := range req.Items {
		c, err := canon.Canonicalize(it, s.Policy)
		if err != nil {
			return nil, nil, false, attest.ErrorOrNil(err, fmt.Sprintf("item %d", i))
		}
		switch {
		case req.Salts != nil && len(req.Salts[i]) > 0:
			if err := c.SetSalt(req.Salts[i]); err != nil {
				return nil, nil, false, err
			}
		case req.Salted && useMMR && !c.PreHashed && len(c.Descriptor.Salt) == 0:
			if err := c.SetSalt(canon.NewSalt()); err != nil {
				return nil, nil, false, err
			}
		}
		if !c.PreHashed {
			c.Descriptor.LeafIndex = uint32(i)
			salted = salted || len(c.Descriptor.Salt) > 0
		}
		cans = append(cans, c)
		leaves = append(leaves, c.LeafHash(h))
	}
	return cans, leaves, salted, nil
}

// prepared is a request with its defaults filled in, and its root.
type prepared struct {
	req    Request
	useMMR bool
	salted bool
	cans   []*canon.Canonical
	res    *Result
}

func (s *Signer) prepare(req *Request) (*prepared, error) {
	p := &prepared{req: *req}
	r := &p.req
	if r.HashType == 0 {
		r.HashType = DefaultHashType
	}
	if r.MMRHashType == 0 {
		r.MMRHashType = digest.Default
	}
	p.useMMR = r.CreateMMR || len(r.Items) > 1

	cans, leaves, salted, err := s.leaves(r, p.useMMR)
	if err != nil {
		return nil, err
	}
	p.cans, p.salted = cans, salted
	p.res = &Result{LeafHashes: leaves}
	if p.useMMR {
		mh, err := digest.New(r.MMRHashType)
		if err != nil {
			return nil, err
		}
		p.res.MMRRoot = mmr.NewFromLeaves(mh, leaves).Root()
		p.res.Hash = p.res.MMRRoot
	} else {
		p.res.Hash = leaves[0]
	}
	return p, nil
}

// SignData signs the items of the request.
func (s *Signer) SignData(req *Request) (*Result, error) {
	p, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	r, res, useMMR := &p.req, p.res, p.useMMR
	log.Lvlf2("signing root %s of %d items for %s", res.Hash, len(res.LeafHashes), r.Destination)

	t, err := s.resolve(r.Destination)
	if err != nil {
		return nil, err
	}
	ctx := &identity.Context{SystemID: s.SystemID, Keys: s.Keys}
	if t.address != nil {
		err = s.signAddress(ctx, r, t.address, res)
	} else {
		err = s.signIdentity(ctx, r, t.identity, res)
	}
	if err != nil {
		return nil, err
	}

	for _, c := range p.cans {
		if !c.PreHashed {
			res.Descriptors = append(res.Descriptors, c.Descriptor)
		}
	}
	res.SignatureData, err = s.signatureData(r, useMMR, res)
	if err != nil {
		return nil, err
	}
	res.Structure = Structure{
		Items:            uint32(len(r.Items)),
		MMR:              useMMR,
		Salted:           p.salted,
		HasSignatureData: true,
	}
	if r.EncryptTo != nil {
		if err := seal(r, res); err != nil {
			return nil, err
		}
	}
	out := append(append([]*canon.Descriptor{}, res.Descriptors...), res.SignatureData)
	for _, d := range out {
		buf, err := d.Encode()
		if err != nil {
			return nil, err
		}
		res.Structure.Sizes = append(res.Structure.Sizes, uint32(len(buf)))
	}
	return res, nil
}

func (s *Signer) signAddress(ctx *identity.Context, r *Request, a *identity.Address, res *Result) error {
	if r.PriorSignature != nil {
		return attest.InputError("a prior signature can only be given for an identity")
	}
	id, err := identity.NewAddressIdentity(*a)
	if err != nil {
		return err
	}
	height := s.height(r)
	sig := identity.NewIdentitySignature(r.HashType)
	st, err := sig.NewSignature(ctx, id, height, res.Hash)
	if err != nil {
		return err
	}
	res.Signature = sig.Shares[0]
	res.Status = st
	res.Address = a
	res.BlockHeight = height
	return nil
}

func (s *Signer) signIdentity(ctx *identity.Context, r *Request, id *identity.Identity, res *Result) error {
	var sig *identity.Signature
	var st identity.Status
	var err error
	if r.PriorSignature != nil {
		sig, err = identity.ParseSignature(r.PriorSignature)
		if err != nil {
			return err
		}
		if r.BlockHeight != 0 && r.BlockHeight != sig.BlockHeight {
			return attest.StateError("prior signature is for height %d, not %d",
				sig.BlockHeight, r.BlockHeight)
		}
		st, err = sig.AddSignature(ctx, id, sig.BlockHeight, res.Hash)
	} else {
		sig = identity.NewIdentitySignature(r.HashType)
		st, err = sig.NewSignature(ctx, id, s.height(r), res.Hash)
	}
	if err != nil {
		return err
	}
	if st == identity.StatusInvalid {
		return attest.CryptoError("no usable signing keys")
	}
	res.Signature, err = sig.MarshalBinary()
	if err != nil {
		return attest.CryptoError("couldn't encode signature: %v", err)
	}
	res.Status = st
	res.Identity = id
	res.BlockHeight = sig.BlockHeight
	log.Lvlf2("signature of %s is %s", id.ID.Short(), st)
	return nil
}

func (s *Signer) signatureData(r *Request, useMMR bool, res *Result) (*canon.Descriptor, error) {
	sd := &SignatureData{
		Version:     identity.SignatureVersion,
		SystemID:    s.SystemID.Bytes(),
		Destination: r.Destination,
		HashType:    uint32(r.HashType),
		MMRHashType: uint32(r.MMRHashType),
		MMR:         useMMR,
		Root:        res.Hash.Bytes(),
		BlockHeight: res.BlockHeight,
		Signature:   res.Signature,
	}
	for _, l := range res.LeafHashes {
		sd.LeafHashes = append(sd.LeafHashes, l.Bytes())
	}
	buf, err := protobuf.Encode(sd)
	if err != nil {
		return nil, attest.InputError("couldn't encode signature data: %v", err)
	}
	d := &canon.Descriptor{
		Version:   canon.DescriptorVersion,
		Label:     "signature",
		MimeType:  canon.MimeSignature,
		Data:      buf,
		LeafIndex: uint32(len(r.Items)),
	}
	d.UpdateFlags()
	return d, nil
}

// seal replaces the descriptors of the result by their encryption.
func seal(r *Request, res *Result) error {
	all := append(append([]*canon.Descriptor{}, res.Descriptors...), res.SignatureData)
	sealed, err := envelope.Seal(all, r.EncryptTo)
	if err != nil {
		return err
	}
	n := len(res.Descriptors)
	res.Descriptors = sealed.Descriptors[:n]
	res.SignatureData = sealed.Descriptors[n]
	res.Structure.Encrypted = true
	if r.ReturnKeys {
		res.Keys = sealed.SSKs
	}
	return nil
}

// SignHash signs a precomputed hash.
func (s *Signer) SignHash(dest string, h digest.Hash) (*Result, error) {
	return s.SignData(&Request{
		Destination: dest,
		Items:       []*canon.Item{canon.NewHash(h)},
	})
}

// SignMessage signs a text message hashed with the given type.
func (s *Signer) SignMessage(dest, msg string, t digest.Type) (*Result, error) {
	return s.SignData(&Request{
		Destination: dest,
		Items:       []*canon.Item{canon.NewMessage(msg)},
		HashType:    t,
	})
}

// SignFile signs the content of a local file, if the policy allows it.
func (s *Signer) SignFile(dest, path string, t digest.Type) (*Result, error) {
	return s.SignData(&Request{
		Destination: dest,
		Items:       []*canon.Item{canon.NewFile(path)},
		HashType:    t,
	})
}
