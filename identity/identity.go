// Package identity holds identities controlled by a set of primary
// addresses, and the aggregate of threshold signatures produced for them.
//
// An identity is usable for signing if it is valid, not revoked, and all of
// its primary addresses are public keys or public-key hashes. A signature is
// complete once MinSigs distinct primary addresses have contributed a share.
package identity

import (
	"bytes"
	"crypto/sha256"
	"strings"

	"github.com/mr-tron/base58"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/digest"
)

// IDSize is the length of identity and key ids.
const IDSize = 20

// ID identifies an identity, a key or a chain.
type ID [IDSize]byte

// IDFromBytes converts a slice of IDSize bytes into an ID.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, attest.InputError("id must be %d bytes, got %d", IDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// NewID derives the id of a name registered under a parent.
func NewID(name string, parent ID) ID {
	nameHash := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(name))))
	var id ID
	copy(id[:], digest.Hash160(parent[:], nameHash[:]))
	return id
}

// ParseID decodes a base58check identity address.
func ParseID(s string) (ID, error) {
	version, payload, err := decodeCheck(strings.TrimSpace(s))
	if err != nil {
		return ID{}, err
	}
	if version != VersionIdentity {
		return ID{}, attest.InputError("'%s' is not an identity address", s)
	}
	return IDFromBytes(payload)
}

// String returns the base58check identity address.
func (id ID) String() string {
	return encodeCheck(VersionIdentity, id[:])
}

// Bytes returns a copy of the id.
func (id ID) Bytes() []byte {
	return append([]byte{}, id[:]...)
}

// IsNull returns true if the id is not set.
func (id ID) IsNull() bool {
	return id == ID{}
}

// Equal compares with another id.
func (id ID) Equal(other ID) bool {
	return bytes.Equal(id[:], other[:])
}

// Short returns a shortened base58 form for logging.
func (id ID) Short() string {
	s := base58.Encode(id[:])
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// Identity is the on-chain state of an identity at the time of the call.
type Identity struct {
	ID               ID
	Parent           ID
	Name             string
	PrimaryAddresses []Address
	MinSigs          int
	Revoked          bool
	Valid            bool
}

// NewIdentity returns a valid identity registered under parent.
func NewIdentity(name string, parent ID, minSigs int, primaries ...Address) *Identity {
	return &Identity{
		ID:               NewID(name, parent),
		Parent:           parent,
		Name:             name,
		PrimaryAddresses: append([]Address{}, primaries...),
		MinSigs:          minSigs,
		Valid:            true,
	}
}

// NewAddressIdentity returns the 1-of-1 identity of a single signing address,
// identified by its key id.
func NewAddressIdentity(a Address) (*Identity, error) {
	kid, err := a.KeyID()
	if err != nil {
		return nil, err
	}
	return &Identity{
		ID:               kid,
		PrimaryAddresses: []Address{a},
		MinSigs:          1,
		Valid:            true,
	}, nil
}

// Usable returns nil if the identity can be used to sign.
func (i *Identity) Usable() error {
	switch {
	case i == nil:
		return attest.AuthorizationError("missing identity")
	case !i.Valid:
		return attest.AuthorizationError("identity %s is not valid", i.ID)
	case i.Revoked:
		return attest.AuthorizationError("identity %s is revoked", i.ID)
	case len(i.PrimaryAddresses) == 0:
		return attest.AuthorizationError("identity %s has no primary addresses", i.ID)
	case i.MinSigs < 1 || i.MinSigs > len(i.PrimaryAddresses):
		return attest.AuthorizationError("identity %s requires %d of %d signatures",
			i.ID, i.MinSigs, len(i.PrimaryAddresses))
	}
	// The threshold counts keys, so every key may back one address only.
	seen := make(map[ID]bool)
	for _, a := range i.PrimaryAddresses {
		if !a.CanSign() {
			return attest.AuthorizationError("identity %s has a primary address of class %s",
				i.ID, a.Type)
		}
		kid, err := a.KeyID()
		if err != nil {
			return err
		}
		if seen[kid] {
			return attest.AuthorizationError("identity %s lists key %x more than once",
				i.ID, kid[:])
		}
		seen[kid] = true
	}
	return nil
}

// Registry gives read-only access to the identities of the chain.
type Registry interface {
	LookupIdentity(id ID) (*Identity, error)
}

// MemoryRegistry is a Registry held in memory.
type MemoryRegistry map[ID]*Identity

// Add stores the identity under its id.
func (r MemoryRegistry) Add(i *Identity) {
	r[i.ID] = i
}

// LookupIdentity returns the identity or an error if it is unknown.
func (r MemoryRegistry) LookupIdentity(id ID) (*Identity, error) {
	i, ok := r[id]
	if !ok {
		return nil, attest.AuthorizationError("unknown identity %s", id)
	}
	return i, nil
}
