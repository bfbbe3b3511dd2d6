package identity

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/digest"
)

// Version bytes of the base58check encodings.
const (
	VersionPubKeyHash byte = 60
	VersionScriptHash byte = 85
	VersionIdentity   byte = 102
)

// AddressType is the class of a destination.
type AddressType int

const (
	// AddressUnknown is the zero value.
	AddressUnknown AddressType = iota
	// AddressPubKey is a compressed secp256k1 public key.
	AddressPubKey
	// AddressPubKeyHash is the Hash160 of a compressed public key.
	AddressPubKeyHash
	// AddressScriptHash is the hash of a script. It cannot sign.
	AddressScriptHash
	// AddressIdentity refers to another identity. It cannot sign directly.
	AddressIdentity
)

func (t AddressType) String() string {
	switch t {
	case AddressPubKey:
		return "pubkey"
	case AddressPubKeyHash:
		return "pubkeyhash"
	case AddressScriptHash:
		return "scripthash"
	case AddressIdentity:
		return "identity"
	}
	return "unknown"
}

// Address is a destination that can appear as a primary address of an
// identity.
type Address struct {
	Type AddressType
	Data []byte
}

// NewPubKeyAddress returns the address holding the compressed public key.
func NewPubKeyAddress(pub *ecdsa.PublicKey) Address {
	return Address{Type: AddressPubKey, Data: crypto.CompressPubkey(pub)}
}

// NewPubKeyHashAddress returns the address holding the Hash160 of the
// compressed public key.
func NewPubKeyHashAddress(pub *ecdsa.PublicKey) Address {
	id := PubKeyID(pub)
	return Address{Type: AddressPubKeyHash, Data: id[:]}
}

// PubKeyID returns the key id of a public key, which is the Hash160 of its
// compressed form.
func PubKeyID(pub *ecdsa.PublicKey) ID {
	var id ID
	copy(id[:], digest.Hash160(crypto.CompressPubkey(pub)))
	return id
}

// ParseAddress accepts a hex encoded compressed public key, or a base58check
// encoded key-hash, script-hash or identity address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if len(s) == 66 {
		if buf, err := hex.DecodeString(s); err == nil {
			if _, err := crypto.DecompressPubkey(buf); err != nil {
				return Address{}, attest.InputError("invalid public key: %v", err)
			}
			return Address{Type: AddressPubKey, Data: buf}, nil
		}
	}
	version, payload, err := decodeCheck(s)
	if err != nil {
		return Address{}, err
	}
	if len(payload) != IDSize {
		return Address{}, attest.InputError("address payload of %d bytes", len(payload))
	}
	switch version {
	case VersionPubKeyHash:
		return Address{Type: AddressPubKeyHash, Data: payload}, nil
	case VersionScriptHash:
		return Address{Type: AddressScriptHash, Data: payload}, nil
	case VersionIdentity:
		return Address{Type: AddressIdentity, Data: payload}, nil
	}
	return Address{}, attest.InputError("unknown address version %d", version)
}

// String returns the hex public key or the base58check encoding.
func (a Address) String() string {
	switch a.Type {
	case AddressPubKey:
		return hex.EncodeToString(a.Data)
	case AddressPubKeyHash:
		return encodeCheck(VersionPubKeyHash, a.Data)
	case AddressScriptHash:
		return encodeCheck(VersionScriptHash, a.Data)
	case AddressIdentity:
		return encodeCheck(VersionIdentity, a.Data)
	}
	return fmt.Sprintf("unknown:%x", a.Data)
}

// Equal returns true if both addresses are of the same class and hold the
// same data.
func (a Address) Equal(o Address) bool {
	return a.Type == o.Type && bytes.Equal(a.Data, o.Data)
}

// CanSign returns true for the classes that can produce a signature share.
func (a Address) CanSign() bool {
	return a.Type == AddressPubKey || a.Type == AddressPubKeyHash
}

// KeyID returns the id under which the private key of the address is
// stored.
func (a Address) KeyID() (ID, error) {
	switch a.Type {
	case AddressPubKey:
		pub, err := crypto.DecompressPubkey(a.Data)
		if err != nil {
			return ID{}, attest.AuthorizationError("invalid public key: %v", err)
		}
		return PubKeyID(pub), nil
	case AddressPubKeyHash:
		return IDFromBytes(a.Data)
	}
	return ID{}, attest.AuthorizationError("address of class %s cannot sign", a.Type)
}

// Matches returns true if the public key controls this address.
func (a Address) Matches(pub *ecdsa.PublicKey) bool {
	switch a.Type {
	case AddressPubKey:
		return bytes.Equal(a.Data, crypto.CompressPubkey(pub))
	case AddressPubKeyHash:
		id := PubKeyID(pub)
		return bytes.Equal(a.Data, id[:])
	}
	return false
}

func checksum(buf []byte) []byte {
	sum := digest.MustNew(digest.SHA256D).Hash(buf)
	return sum[:4]
}

func encodeCheck(version byte, payload []byte) string {
	buf := append([]byte{version}, payload...)
	return base58.Encode(append(buf, checksum(buf)...))
}

func decodeCheck(s string) (byte, []byte, error) {
	buf, err := base58.Decode(s)
	if err != nil {
		return 0, nil, attest.InputError("invalid base58 '%s': %v", s, err)
	}
	if len(buf) < 5 {
		return 0, nil, attest.InputError("address '%s' too short", s)
	}
	body, sum := buf[:len(buf)-4], buf[len(buf)-4:]
	if !bytes.Equal(checksum(body), sum) {
		return 0, nil, attest.InputError("wrong checksum for '%s'", s)
	}
	return body[0], body[1:], nil
}
