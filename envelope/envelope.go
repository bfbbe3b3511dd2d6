// Package envelope encrypts descriptors to the viewing key of a recipient.
//
// All descriptors sealed in one call share an ephemeral key. A master key is
// derived from the Diffie-Hellman secret, and every leaf is encrypted under
// its own sub-key (SSK) derived from the master key and the leaf index. An
// SSK can be handed out to disclose one leaf without the viewing key.
package envelope

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"io"

	"go.dedis.ch/attest"
	"go.dedis.ch/attest/canon"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/xerrors"
)

// KeySize is the length of the master key and of the leaf keys.
const KeySize = chacha20poly1305.KeySize

// HintSize is the length of the key hint stored with an encrypted
// descriptor.
const HintSize = 8

var (
	infoMaster = []byte("attest master")
	infoLeaf   = []byte("attest leaf")
)

// ErrNestedEncryption is returned when an encrypted descriptor would be
// encrypted again, or when a decrypted descriptor is itself encrypted.
var ErrNestedEncryption = xerrors.New("nested encryption")

// NewViewingKey returns a new private viewing key and the matching public
// key to which data can be encrypted.
func NewViewingKey() (kyber.Scalar, kyber.Point) {
	vk := attest.Suite.Scalar().Pick(attest.Suite.RandomStream())
	return vk, attest.Suite.Point().Mul(vk, nil)
}

// KeyHint returns the first bytes of the hash of the public viewing key.
// It lets a wallet find the right key without trial decryption.
func KeyHint(pub kyber.Point) []byte {
	buf, err := pub.MarshalBinary()
	if err != nil {
		return nil
	}
	h := sha256.Sum256(buf)
	return h[:HintSize]
}

// Sealed holds the encrypted descriptors of one call, together with the
// keys that allow to disclose them.
type Sealed struct {
	Descriptors  []*canon.Descriptor
	EphemeralKey kyber.Point
	// SSKs are the leaf keys, in the order of the descriptors.
	SSKs [][]byte
}

// Seal encrypts every descriptor to the given viewing key. The leaf key of
// a descriptor is derived from its LeafIndex, which must be unique within
// the call. The descriptors passed in are not modified.
func Seal(descs []*canon.Descriptor, to kyber.Point) (*Sealed, error) {
	if to == nil {
		return nil, attest.InputError("missing viewing key")
	}
	r := attest.Suite.Scalar().Pick(attest.Suite.RandomStream())
	K := attest.Suite.Point().Mul(r, nil)
	S := attest.Suite.Point().Mul(r, to)
	master, err := masterKey(S, K)
	if err != nil {
		return nil, err
	}
	kbuf, err := K.MarshalBinary()
	if err != nil {
		return nil, attest.CryptoError("couldn't marshal ephemeral key: %v", err)
	}
	hint := KeyHint(to)

	sealed := &Sealed{EphemeralKey: K}
	seen := make(map[uint32]bool)
	for i, d := range descs {
		if d.Encrypted() {
			log.Lvlf2("descriptor %d is already encrypted", i)
			return nil, attest.WithKind(attest.ErrCrypto, ErrNestedEncryption)
		}
		if seen[d.LeafIndex] {
			return nil, attest.InputError("leaf index %d used twice", d.LeafIndex)
		}
		seen[d.LeafIndex] = true
		ssk, err := leafKey(master, d.LeafIndex)
		if err != nil {
			return nil, err
		}
		plain := d.Copy()
		plain.UpdateFlags()
		buf, err := plain.Encode()
		if err != nil {
			return nil, err
		}
		ct, err := seal(ssk, buf)
		if err != nil {
			return nil, err
		}
		enc := &canon.Descriptor{
			Version:      canon.DescriptorVersion,
			Ciphertext:   ct,
			EphemeralKey: kbuf,
			KeyHint:      hint,
			LeafIndex:    d.LeafIndex,
		}
		enc.UpdateFlags()
		sealed.Descriptors = append(sealed.Descriptors, enc)
		sealed.SSKs = append(sealed.SSKs, ssk)
	}
	log.Lvlf3("sealed %d descriptors", len(descs))
	return sealed, nil
}

// Encrypt seals a single descriptor.
func Encrypt(d *canon.Descriptor, to kyber.Point) (*canon.Descriptor, []byte, error) {
	s, err := Seal([]*canon.Descriptor{d}, to)
	if err != nil {
		return nil, nil, err
	}
	return s.Descriptors[0], s.SSKs[0], nil
}

// Decrypt opens the descriptor with the private viewing key. On failure
// the descriptor is left unchanged and a CryptoError is returned.
func Decrypt(d *canon.Descriptor, vk kyber.Scalar) (*canon.Descriptor, error) {
	ssk, err := LeafKey(d, vk)
	if err != nil {
		return nil, err
	}
	return DecryptWithSSK(d, ssk)
}

// LeafKey derives the SSK of an encrypted descriptor. It can be disclosed
// to give access to this descriptor only.
func LeafKey(d *canon.Descriptor, vk kyber.Scalar) ([]byte, error) {
	if !d.Encrypted() {
		return nil, attest.InputError("descriptor is not encrypted")
	}
	if vk == nil {
		return nil, attest.InputError("missing viewing key")
	}
	if len(d.KeyHint) > 0 {
		pub := attest.Suite.Point().Mul(vk, nil)
		if !bytes.Equal(d.KeyHint, KeyHint(pub)) {
			return nil, attest.CryptoError("viewing key doesn't match the key hint")
		}
	}
	K := attest.Suite.Point()
	if err := K.UnmarshalBinary(d.EphemeralKey); err != nil {
		return nil, attest.CryptoError("invalid ephemeral key: %v", err)
	}
	S := attest.Suite.Point().Mul(vk, K)
	master, err := masterKey(S, K)
	if err != nil {
		return nil, err
	}
	return leafKey(master, d.LeafIndex)
}

// DecryptWithSSK opens exactly one descriptor with its leaf key.
func DecryptWithSSK(d *canon.Descriptor, ssk []byte) (*canon.Descriptor, error) {
	if !d.Encrypted() {
		return nil, attest.InputError("descriptor is not encrypted")
	}
	if len(ssk) != KeySize {
		return nil, attest.InputError("leaf key must be %d bytes", KeySize)
	}
	buf, err := open(ssk, d.Ciphertext)
	if err != nil {
		return nil, err
	}
	plain, err := canon.DecodeDescriptor(buf)
	if err != nil {
		return nil, attest.CryptoError("decrypted descriptor is corrupt: %v", err)
	}
	if plain.Encrypted() {
		return nil, attest.WithKind(attest.ErrCrypto, ErrNestedEncryption)
	}
	if plain.LeafIndex != d.LeafIndex {
		return nil, attest.CryptoError("leaf index %d doesn't match %d",
			plain.LeafIndex, d.LeafIndex)
	}
	return plain, nil
}

func masterKey(S, K kyber.Point) ([]byte, error) {
	sb, err := S.MarshalBinary()
	if err != nil {
		return nil, attest.CryptoError("couldn't marshal shared secret: %v", err)
	}
	kb, err := K.MarshalBinary()
	if err != nil {
		return nil, attest.CryptoError("couldn't marshal ephemeral key: %v", err)
	}
	return derive(append(sb, kb...), infoMaster)
}

func leafKey(master []byte, index uint32) ([]byte, error) {
	var ib [4]byte
	binary.LittleEndian.PutUint32(ib[:], index)
	return derive(master, append(append([]byte{}, infoLeaf...), ib[:]...))
}

func derive(secret, info []byte) ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, info), key); err != nil {
		return nil, attest.CryptoError("HKDF-derived key too short: %v", err)
	}
	return key, nil
}

// Every leaf key encrypts exactly one descriptor, so a fixed nonce is never
// reused under the same key.
func seal(key, msg []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, attest.CryptoError("couldn't create cipher: %v", err)
	}
	nonce := make([]byte, aead.NonceSize())
	return aead.Seal(nil, nonce, msg, nil), nil
}

func open(key, ct []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, attest.CryptoError("couldn't create cipher: %v", err)
	}
	nonce := make([]byte, aead.NonceSize())
	msg, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, attest.CryptoError("couldn't decrypt: %v", err)
	}
	return msg, nil
}
