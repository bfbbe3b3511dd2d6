package identity

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/digest"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
)

// SignatureVersion is the version of the signature hash construction.
const SignatureVersion = 2

// signaturePrefix separates signatures of this protocol from any other
// message signed with the same keys.
var signaturePrefix = []byte("Attested identity data:\n")

// ShareSize is the length of a recoverable secp256k1 signature.
const ShareSize = 65

// Status is the state of a signature aggregate.
type Status int

const (
	// StatusEmpty is an aggregate without any share.
	StatusEmpty Status = iota
	// StatusPartial has at least one valid share, but less than the
	// threshold of the identity.
	StatusPartial
	// StatusComplete has reached the threshold.
	StatusComplete
	// StatusInvalid is reached on a context mismatch, a share from an
	// unauthorized signer or when no share could be produced at all.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusPartial:
		return "partial"
	case StatusComplete:
		return "complete"
	}
	return "invalid"
}

// SignatureHash returns the message signed by every share:
// H(prefix || systemID || height || signerID || payload). Binding all of
// them prevents a share from being replayed for another identity, chain,
// height or payload.
func SignatureHash(t digest.Type, systemID ID, height uint32, signer ID, payload digest.Hash) (digest.Hash, error) {
	h, err := digest.New(t)
	if err != nil {
		return digest.Hash{}, err
	}
	var hb [4]byte
	binary.LittleEndian.PutUint32(hb[:], height)
	return h.Hash(signaturePrefix, systemID[:], hb[:], signer[:], payload[:]), nil
}

// Context is the read-only environment of a signing call.
type Context struct {
	SystemID ID
	Keys     KeyStore
}

// Signature aggregates the shares of the primary addresses of an identity.
// The signer of a share is never stored, it is recovered from the share.
type Signature struct {
	Version     uint32
	HashType    uint32
	BlockHeight uint32
	Shares      [][]byte

	// invalid is set once a call returned StatusInvalid. Only NewSignature
	// resets it.
	invalid bool
}

// NewIdentitySignature returns an empty aggregate using the given hash type
// for the signature hash.
func NewIdentitySignature(t digest.Type) *Signature {
	return &Signature{Version: SignatureVersion, HashType: uint32(t)}
}

// ParseSignature decodes a serialized aggregate.
func ParseSignature(buf []byte) (*Signature, error) {
	s := &Signature{}
	if err := protobuf.Decode(buf, s); err != nil {
		return nil, attest.InputError("couldn't decode signature: %v", err)
	}
	if s.Version != SignatureVersion {
		return nil, attest.InputError("unknown signature version %d", s.Version)
	}
	if !digest.Type(s.HashType).Valid() {
		return nil, attest.InputError("unknown hash type %d", s.HashType)
	}
	return s, nil
}

// MarshalBinary returns the serialized aggregate.
func (s *Signature) MarshalBinary() ([]byte, error) {
	return protobuf.Encode(s)
}

// Type returns the hash type of the aggregate.
func (s *Signature) Type() digest.Type {
	return digest.Type(s.HashType)
}

// NewSignature drops all shares, fixes the block height and then adds the
// shares of every key available in the context.
func (s *Signature) NewSignature(ctx *Context, id *Identity, height uint32, payload digest.Hash) (Status, error) {
	s.Shares = nil
	s.BlockHeight = height
	s.invalid = false
	return s.AddSignature(ctx, id, height, payload)
}

// AddSignature checks the existing shares and adds one for every primary
// address that is still missing and whose key is in the context. An
// aggregate created for another height is never merged.
func (s *Signature) AddSignature(ctx *Context, id *Identity, height uint32, payload digest.Hash) (Status, error) {
	st, err := s.addSignature(ctx, id, height, payload)
	if st == StatusInvalid {
		s.invalid = true
	}
	return st, err
}

// Invalid returns true if the aggregate reached StatusInvalid.
func (s *Signature) Invalid() bool {
	return s.invalid
}

func (s *Signature) addSignature(ctx *Context, id *Identity, height uint32, payload digest.Hash) (Status, error) {
	if s.invalid {
		return StatusInvalid, attest.CryptoError("signature aggregate is invalid")
	}
	if s.BlockHeight != height {
		return StatusInvalid, attest.StateError("signature is for height %d, not %d",
			s.BlockHeight, height)
	}
	if err := id.Usable(); err != nil {
		return StatusInvalid, err
	}
	msg, err := SignatureHash(s.Type(), ctx.SystemID, height, id.ID, payload)
	if err != nil {
		return StatusInvalid, err
	}
	signed, kept, err := recoverSigners(s.Shares, msg, id)
	if err != nil {
		return StatusInvalid, err
	}
	s.Shares = kept

	for i, addr := range id.PrimaryAddresses {
		if signed[i] || ctx.Keys == nil {
			continue
		}
		share, err := signShare(ctx.Keys, addr, msg)
		if err != nil {
			log.Lvlf2("no share for %s: %v", addr, err)
			continue
		}
		s.Shares = append(s.Shares, share)
		signed[i] = true
	}
	return s.status(signed, id)
}

// Verify returns the status of the aggregate without adding any share.
func (s *Signature) Verify(systemID ID, id *Identity, payload digest.Hash) (Status, error) {
	if err := id.Usable(); err != nil {
		return StatusInvalid, err
	}
	msg, err := SignatureHash(s.Type(), systemID, s.BlockHeight, id.ID, payload)
	if err != nil {
		return StatusInvalid, err
	}
	signed, _, err := recoverSigners(s.Shares, msg, id)
	if err != nil {
		return StatusInvalid, err
	}
	if len(s.Shares) == 0 {
		return StatusEmpty, nil
	}
	return s.status(signed, id)
}

// Signers returns the primary addresses that contributed a share.
func (s *Signature) Signers(systemID ID, id *Identity, payload digest.Hash) ([]Address, error) {
	msg, err := SignatureHash(s.Type(), systemID, s.BlockHeight, id.ID, payload)
	if err != nil {
		return nil, err
	}
	signed, _, err := recoverSigners(s.Shares, msg, id)
	if err != nil {
		return nil, err
	}
	var addrs []Address
	for i, ok := range signed {
		if ok {
			addrs = append(addrs, id.PrimaryAddresses[i])
		}
	}
	return addrs, nil
}

// recoverSigners returns, for each primary address, whether one of the
// shares was produced by it, and the shares without duplicates of the same
// signer. A share of any other signer invalidates the aggregate.
func recoverSigners(shares [][]byte, msg digest.Hash, id *Identity) ([]bool, [][]byte, error) {
	signed := make([]bool, len(id.PrimaryAddresses))
	var kept [][]byte
	for n, share := range shares {
		if len(share) != ShareSize {
			return nil, nil, attest.CryptoError("share %d has %d bytes", n, len(share))
		}
		pub, err := crypto.SigToPub(msg[:], share)
		if err != nil {
			return nil, nil, attest.CryptoError("couldn't recover signer of share %d: %v", n, err)
		}
		idx := -1
		for i, addr := range id.PrimaryAddresses {
			if addr.Matches(pub) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, nil, attest.AuthorizationError("share %d is not from a primary address of %s",
				n, id.ID)
		}
		if signed[idx] {
			continue
		}
		signed[idx] = true
		kept = append(kept, share)
	}
	return signed, kept, nil
}

func (s *Signature) status(signed []bool, id *Identity) (Status, error) {
	tally := 0
	for _, ok := range signed {
		if ok {
			tally++
		}
	}
	switch {
	case tally >= id.MinSigs:
		return StatusComplete, nil
	case tally > 0:
		return StatusPartial, nil
	}
	return StatusInvalid, attest.CryptoError("no usable signing keys for %s", id.ID)
}

func signShare(keys KeyStore, addr Address, msg digest.Hash) ([]byte, error) {
	kid, err := addr.KeyID()
	if err != nil {
		return nil, err
	}
	if !keys.HaveKey(kid) {
		return nil, attest.CryptoError("key not in wallet")
	}
	priv, err := keys.GetKey(kid)
	if err != nil {
		return nil, err
	}
	if !addr.Matches(&priv.PublicKey) {
		return nil, attest.CryptoError("wallet key does not match address")
	}
	share, err := crypto.Sign(msg[:], priv)
	if err != nil {
		return nil, attest.CryptoError("couldn't sign: %v", err)
	}
	return share, nil
}
