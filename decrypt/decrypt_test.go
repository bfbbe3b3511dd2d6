package decrypt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/canon"
	"go.dedis.ch/attest/envelope"
	"go.dedis.ch/attest/identity"
	"go.dedis.ch/attest/store"
	"golang.org/x/xerrors"
)

var testSystem = identity.NewID("testchain", identity.ID{})

func message(t *testing.T, msg string) *canon.Descriptor {
	c, err := canon.Canonicalize(canon.NewMessage(msg), canon.DefaultPolicy())
	require.NoError(t, err)
	return c.Descriptor
}

func newWallet(t *testing.T) *store.Store {
	s, err := store.Open(filepath.Join(t.TempDir(), "wallet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDecrypt_Keys(t *testing.T) {
	wallet := newWallet(t)
	vk, pub := envelope.NewViewingKey()
	enc, ssk, err := envelope.Encrypt(message(t, "for the wallet"), pub)
	require.NoError(t, err)
	before := enc.Copy()

	r := &Resolver{Keys: wallet, SystemID: testSystem}
	_, err = r.Decrypt(&Request{Descriptor: enc})
	require.True(t, xerrors.Is(err, attest.ErrCrypto))
	require.True(t, enc.Equal(before))

	res, err := r.Decrypt(&Request{Descriptor: enc, ViewingKey: vk})
	require.NoError(t, err)
	require.True(t, res.Decrypted)
	require.Equal(t, []byte("for the wallet"), res.Descriptor.Data)

	res, err = r.Decrypt(&Request{Descriptor: enc, SSK: ssk})
	require.NoError(t, err)
	require.Equal(t, []byte("for the wallet"), res.Descriptor.Data)

	// A wrong explicit key falls back to the wallet.
	other, _ := envelope.NewViewingKey()
	require.NoError(t, wallet.PutViewingKey(vk))
	res, err = r.Decrypt(&Request{Descriptor: enc, ViewingKey: other})
	require.NoError(t, err)
	require.Equal(t, []byte("for the wallet"), res.Descriptor.Data)

	res, err = r.Decrypt(&Request{Descriptor: message(t, "plain")})
	require.NoError(t, err)
	require.False(t, res.Decrypted)
	require.Equal(t, []byte("plain"), res.Descriptor.Data)

	_, err = r.Decrypt(&Request{})
	require.True(t, xerrors.Is(err, attest.ErrInput))
}

func TestDecrypt_Retrieve(t *testing.T) {
	wallet := newWallet(t)
	vk, pub := envelope.NewViewingKey()
	require.NoError(t, wallet.PutViewingKey(vk))
	r := &Resolver{Keys: wallet, Refs: wallet, SystemID: testSystem}

	// The output holds one encrypted object and one nested reference.
	target, _, err := envelope.Encrypt(message(t, "stored object"), pub)
	require.NoError(t, err)
	deeper := &canon.Reference{TxID: make([]byte, 32), Output: 9, ObjectIndex: canon.NoObjectIndex}
	deeperDesc, err := deeper.Descriptor()
	require.NoError(t, err)
	ref := &canon.Reference{
		SystemID:    testSystem.Bytes(),
		TxID:        make([]byte, 32),
		Output:      3,
		ObjectIndex: canon.NoObjectIndex,
	}
	ref.TxID[0] = 1
	require.NoError(t, wallet.PutReference(ref, []*canon.Descriptor{target, deeperDesc}))

	refDesc, err := (&canon.Reference{TxID: ref.TxID, Output: 3,
		ObjectIndex: canon.NoObjectIndex}).Descriptor()
	require.NoError(t, err)
	enc, _, err := envelope.Encrypt(refDesc, pub)
	require.NoError(t, err)

	res, err := r.Decrypt(&Request{Descriptor: enc})
	require.NoError(t, err)
	require.True(t, res.Descriptor.IsReference())
	require.Nil(t, res.Retrieved)

	res, err = r.Decrypt(&Request{Descriptor: enc, Retrieve: true})
	require.NoError(t, err)
	require.True(t, res.Reference.Equal(ref))
	require.Len(t, res.Retrieved, 2)
	require.Equal(t, []byte("stored object"), res.Retrieved[0].Data)
	// The nested reference isn't followed.
	require.True(t, res.Retrieved[1].IsReference())

	missing, err := (&canon.Reference{TxID: make([]byte, 32), Output: 4,
		ObjectIndex: canon.NoObjectIndex}).Descriptor()
	require.NoError(t, err)
	_, err = r.Decrypt(&Request{Descriptor: missing, Retrieve: true})
	require.True(t, xerrors.Is(err, attest.ErrReference))

	corrupt := &canon.Descriptor{Version: canon.DescriptorVersion,
		MimeType: canon.MimeReference, Data: []byte{0xff, 0xff}}
	_, err = r.Decrypt(&Request{Descriptor: corrupt, Retrieve: true})
	require.True(t, xerrors.Is(err, attest.ErrReference))

	_, err = (&Resolver{}).Decrypt(&Request{Descriptor: refDesc, Retrieve: true})
	require.True(t, xerrors.Is(err, attest.ErrReference))
}
