// Package digest holds the hash functions used to hash documents and to
// combine the nodes of a Merkle Mountain Range. All of them produce 32 bytes.
package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/zeebo/blake3"
	"go.dedis.ch/attest"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/ripemd160"
)

// Size is the length of every hash in bytes.
const Size = 32

// Type selects a hash function.
type Type int

const (
	// SHA256 is a single pass of SHA-256.
	SHA256 Type = iota + 1
	// SHA256D is SHA-256 applied twice.
	SHA256D
	// Blake2b is BLAKE2b with a 32 byte output. It is the default for
	// combining MMR nodes.
	Blake2b
	// Keccak256 is the original Keccak with a 32 byte output.
	Keccak256
	// Blake3 is BLAKE3 with a 32 byte output.
	Blake3
)

// Default is the hash type used for the MMR when none is given.
const Default = Blake2b

var typeNames = map[Type]string{
	SHA256:    "sha256",
	SHA256D:   "sha256d",
	Blake2b:   "blake2b",
	Keccak256: "keccak256",
	Blake3:    "blake3",
}

// ParseType returns the type for the given name. The names are the ones
// returned by Type.String, compared case-insensitively.
func ParseType(name string) (Type, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == lower {
			return t, nil
		}
	}
	return 0, attest.InputError("unknown hash type '%s'", name)
}

// String returns the name of the hash type.
func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return "unknown"
}

// Valid returns true if the type is one of the known hash types.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// Hash is the output of any of the hash functions.
type Hash [Size]byte

// HashFromBytes converts a slice into a hash. The slice must be exactly
// Size bytes long.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, attest.InputError("hash must be %d bytes, got %d", Size, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ParseHash decodes a hexadecimal representation of a hash.
func ParseHash(s string) (Hash, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Hash{}, attest.InputError("invalid hex hash: %v", err)
	}
	return HashFromBytes(b)
}

// Bytes returns a copy of the hash as a slice.
func (h Hash) Bytes() []byte {
	return append([]byte{}, h[:]...)
}

// String returns the hash in hexadecimal.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Equal returns true if both hashes are the same.
func (h Hash) Equal(other Hash) bool {
	return bytes.Equal(h[:], other[:])
}

// IsZero returns true for the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// LeafHasher hashes the concatenation of all given slices.
type LeafHasher interface {
	Type() Type
	Hash(data ...[]byte) Hash
}

// New returns the hasher for the given type.
func New(t Type) (LeafHasher, error) {
	switch t {
	case SHA256:
		return sha256Hasher{}, nil
	case SHA256D:
		return sha256dHasher{}, nil
	case Blake2b:
		return blake2bHasher{}, nil
	case Keccak256:
		return keccakHasher{}, nil
	case Blake3:
		return blake3Hasher{}, nil
	}
	return nil, attest.InputError("unknown hash type %d", int(t))
}

// MustNew is like New but panics for an unknown type.
func MustNew(t Type) LeafHasher {
	h, err := New(t)
	if err != nil {
		panic(err)
	}
	return h
}

type sha256Hasher struct{}

func (sha256Hasher) Type() Type { return SHA256 }

func (sha256Hasher) Hash(data ...[]byte) Hash {
	h := sha256.New()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

type sha256dHasher struct{}

func (sha256dHasher) Type() Type { return SHA256D }

func (sha256dHasher) Hash(data ...[]byte) Hash {
	first := sha256Hasher{}.Hash(data...)
	return Hash(sha256.Sum256(first[:]))
}

type blake2bHasher struct{}

func (blake2bHasher) Type() Type { return Blake2b }

func (blake2bHasher) Hash(data ...[]byte) Hash {
	// New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

type keccakHasher struct{}

func (keccakHasher) Type() Type { return Keccak256 }

func (keccakHasher) Hash(data ...[]byte) Hash {
	var out Hash
	copy(out[:], crypto.Keccak256(data...))
	return out
}

type blake3Hasher struct{}

func (blake3Hasher) Type() Type { return Blake3 }

func (blake3Hasher) Hash(data ...[]byte) Hash {
	h := blake3.New()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Hash160 returns RIPEMD160(SHA256(data)), the 20 byte digest used for key
// and identity ids.
func Hash160(data ...[]byte) []byte {
	s := sha256Hasher{}.Hash(data...)
	r := ripemd160.New()
	r.Write(s[:])
	return r.Sum(nil)
}
