package envelope

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/canon"
	"golang.org/x/xerrors"
)

func plainDescriptor(t *testing.T, msg string) *canon.Descriptor {
	c, err := canon.Canonicalize(canon.NewMessage(msg), canon.DefaultPolicy())
	require.NoError(t, err)
	require.NoError(t, c.SetSalt(canon.NewSalt()))
	return c.Descriptor
}

func TestEncrypt_RoundTrip(t *testing.T) {
	vk, pub := NewViewingKey()
	d := plainDescriptor(t, "secret payload")
	orig := d.Copy()

	enc, ssk, err := Encrypt(d, pub)
	require.NoError(t, err)
	require.True(t, d.Equal(orig))
	require.True(t, enc.Encrypted())
	require.Empty(t, enc.Data)
	require.Empty(t, enc.Label)
	require.Len(t, ssk, KeySize)
	require.Equal(t, KeyHint(pub), enc.KeyHint)
	require.NotEqual(t, uint32(0), enc.Flags&canon.FlagEncrypted)
	require.False(t, bytes.Contains(enc.Ciphertext, []byte("secret payload")))

	buf, err := enc.Encode()
	require.NoError(t, err)
	enc, err = canon.DecodeDescriptor(buf)
	require.NoError(t, err)

	plain, err := Decrypt(enc, vk)
	require.NoError(t, err)
	require.Equal(t, []byte("secret payload"), plain.Data)
	require.Equal(t, orig.Salt, plain.Salt)
	require.Equal(t, orig.MimeType, plain.MimeType)

	leaf, err := LeafKey(enc, vk)
	require.NoError(t, err)
	require.Equal(t, ssk, leaf)
}

func TestDecrypt_WrongKey(t *testing.T) {
	_, pub := NewViewingKey()
	other, otherPub := NewViewingKey()
	enc, _, err := Encrypt(plainDescriptor(t, "private"), pub)
	require.NoError(t, err)
	before := enc.Copy()

	plain, err := Decrypt(enc, other)
	require.Nil(t, plain)
	require.True(t, xerrors.Is(err, attest.ErrCrypto))
	require.True(t, enc.Equal(before))

	// Without the hint the AEAD check still fails.
	enc.KeyHint = nil
	plain, err = Decrypt(enc, other)
	require.Nil(t, plain)
	require.True(t, xerrors.Is(err, attest.ErrCrypto))

	enc.Ciphertext[0] ^= 1
	enc.KeyHint = KeyHint(otherPub)
	_, err = Decrypt(enc, other)
	require.True(t, xerrors.Is(err, attest.ErrCrypto))
}

func TestSeal_LeafDisclosure(t *testing.T) {
	vk, pub := NewViewingKey()
	descs := []*canon.Descriptor{
		plainDescriptor(t, "leaf zero"),
		plainDescriptor(t, "leaf one"),
	}
	descs[1].LeafIndex = 1
	_, err := Seal([]*canon.Descriptor{descs[0], descs[0]}, pub)
	require.True(t, xerrors.Is(err, attest.ErrInput))
	sealed, err := Seal(descs, pub)
	require.NoError(t, err)
	require.Len(t, sealed.Descriptors, 2)
	require.Equal(t, uint32(1), sealed.Descriptors[1].LeafIndex)
	require.Len(t, sealed.SSKs, 2)
	require.NotEqual(t, sealed.SSKs[0], sealed.SSKs[1])
	require.Equal(t, sealed.Descriptors[0].EphemeralKey, sealed.Descriptors[1].EphemeralKey)

	leaf0, err := DecryptWithSSK(sealed.Descriptors[0], sealed.SSKs[0])
	require.NoError(t, err)
	require.Equal(t, []byte("leaf zero"), leaf0.Data)
	require.Equal(t, uint32(0), leaf0.LeafIndex)

	_, err = DecryptWithSSK(sealed.Descriptors[1], sealed.SSKs[0])
	require.True(t, xerrors.Is(err, attest.ErrCrypto))

	// A leaf moved to another index doesn't open with the key of that index.
	moved := sealed.Descriptors[0].Copy()
	moved.LeafIndex = 1
	_, err = DecryptWithSSK(moved, sealed.SSKs[1])
	require.True(t, xerrors.Is(err, attest.ErrCrypto))

	for i, d := range sealed.Descriptors {
		plain, err := Decrypt(d, vk)
		require.NoError(t, err)
		require.True(t, bytes.Equal(descs[i].Data, plain.Data))
	}
}

func TestSeal_Nested(t *testing.T) {
	_, pub := NewViewingKey()
	enc, _, err := Encrypt(plainDescriptor(t, "once"), pub)
	require.NoError(t, err)

	_, _, err = Encrypt(enc, pub)
	require.True(t, xerrors.Is(err, ErrNestedEncryption))
	require.True(t, xerrors.Is(err, attest.ErrCrypto))

	_, err = Seal([]*canon.Descriptor{plainDescriptor(t, "ok")}, nil)
	require.True(t, xerrors.Is(err, attest.ErrInput))
	_, err = Decrypt(plainDescriptor(t, "plain"), nil)
	require.True(t, xerrors.Is(err, attest.ErrInput))
	_, err = DecryptWithSSK(enc, []byte{1, 2})
	require.True(t, xerrors.Is(err, attest.ErrInput))
}
