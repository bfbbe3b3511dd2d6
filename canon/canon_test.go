package canon

import (
	"bytes"
	"encoding/base64"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/digest"
	"golang.org/x/xerrors"
)

func TestItem_Validate(t *testing.T) {
	require.True(t, xerrors.Is((&Item{}).Validate(), attest.ErrInput))
	var nilItem *Item
	require.True(t, xerrors.Is(nilItem.Validate(), attest.ErrInput))

	it := NewMessage("hello")
	require.NoError(t, it.Validate())
	require.Equal(t, ItemMessage, it.Type())

	h := "00"
	it.Hex = &h
	require.True(t, xerrors.Is(it.Validate(), attest.ErrInput))
	require.Equal(t, ItemNone, it.Type())

	it = NewMessage("salted")
	it.Salt = []byte("short")
	require.True(t, xerrors.Is(it.Validate(), attest.ErrInput))

	hashItem := NewHash(digest.MustNew(digest.SHA256).Hash([]byte("x")))
	require.Equal(t, ItemHash, hashItem.Type())
	hashItem.Salt = NewSalt()
	require.True(t, xerrors.Is(hashItem.Validate(), attest.ErrInput))
}

func TestCanonicalize_Sources(t *testing.T) {
	p := DefaultPolicy()
	sha := digest.MustNew(digest.SHA256)

	c, err := Canonicalize(NewMessage("hello world"), p)
	require.NoError(t, err)
	require.False(t, c.PreHashed)
	require.Equal(t, []byte("hello world"), c.Descriptor.Data)
	require.Equal(t, MimeText, c.Descriptor.MimeType)
	require.Equal(t, sha.Hash([]byte("hello world")), c.LeafHash(sha))

	c, err = Canonicalize(NewHex("0x68656c6c6f"), p)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), c.Descriptor.Data)
	require.Equal(t, MimeBinary, c.Descriptor.MimeType)

	c, err = Canonicalize(NewBase64(base64.StdEncoding.EncodeToString([]byte("hello"))), p)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), c.Descriptor.Data)

	_, err = Canonicalize(NewHex("xyz"), p)
	require.True(t, xerrors.Is(err, attest.ErrInput))
	_, err = Canonicalize(NewBase64("!!"), p)
	require.True(t, xerrors.Is(err, attest.ErrInput))

	pre := sha.Hash([]byte("elsewhere"))
	c, err = Canonicalize(NewHash(pre), p)
	require.NoError(t, err)
	require.True(t, c.PreHashed)
	require.Equal(t, pre, c.LeafHash(digest.MustNew(digest.Blake2b)))
	require.Equal(t, pre.Bytes(), c.Payload())
	require.Error(t, c.SetSalt(NewSalt()))

	bad := "1234"
	_, err = Canonicalize(&Item{Hash: &bad}, p)
	require.True(t, xerrors.Is(err, attest.ErrInput))
}

func TestCanonicalize_Object(t *testing.T) {
	o := &Object{Key: "attest::profile", Version: 1, Fields: []Field{
		{Name: "name", Value: []byte("alice")},
		{Name: "email", Value: []byte("alice@example.com")},
	}}
	c1, err := Canonicalize(NewObject(o), DefaultPolicy())
	require.NoError(t, err)
	c2, err := Canonicalize(NewObject(o), DefaultPolicy())
	require.NoError(t, err)
	require.Equal(t, c1.Descriptor.Data, c2.Descriptor.Data)
	require.Equal(t, MimeObject, c1.Descriptor.MimeType)
	require.Equal(t, "attest::profile", c1.Descriptor.Label)

	o.Fields[0], o.Fields[1] = o.Fields[1], o.Fields[0]
	c3, err := Canonicalize(NewObject(o), DefaultPolicy())
	require.NoError(t, err)
	require.NotEqual(t, c1.Descriptor.Data, c3.Descriptor.Data)
}

func TestCanonicalize_File(t *testing.T) {
	dir, err := ioutil.TempDir("", "canon")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	name := filepath.Join(dir, "doc.txt")
	require.NoError(t, ioutil.WriteFile(name, []byte("file content"), 0600))

	_, err = Canonicalize(NewFile(name), DefaultPolicy())
	require.True(t, xerrors.Is(err, attest.ErrInput))

	p := Policy{AllowFiles: true, MaxFileSize: 12}
	c, err := Canonicalize(NewFile(name), p)
	require.NoError(t, err)
	require.Equal(t, []byte("file content"), c.Descriptor.Data)
	require.Equal(t, "doc.txt", c.Descriptor.Label)
	require.Contains(t, c.Descriptor.MimeType, "text/plain")

	p.MaxFileSize = 11
	_, err = Canonicalize(NewFile(name), p)
	require.True(t, xerrors.Is(err, attest.ErrInput))

	_, err = Canonicalize(NewFile(filepath.Join(dir, "missing")), Policy{AllowFiles: true, MaxFileSize: 10})
	require.True(t, xerrors.Is(err, attest.ErrInput))

	require.Equal(t, int64(MaxTransactionSize/2), DefaultPolicy().MaxFileSize)
}

func TestCanonical_Salt(t *testing.T) {
	h := digest.MustNew(digest.Blake2b)
	c, err := Canonicalize(NewMessage("payload"), DefaultPolicy())
	require.NoError(t, err)
	plain := c.LeafHash(h)

	s1, s2 := NewSalt(), NewSalt()
	require.False(t, bytes.Equal(s1, s2))
	require.NoError(t, c.SetSalt(s1))
	require.NotZero(t, c.Descriptor.Flags&FlagSalted)
	l1 := c.LeafHash(h)
	require.NotEqual(t, plain, l1)
	require.Equal(t, h.Hash(s1, []byte("payload")), l1)

	require.NoError(t, c.SetSalt(s2))
	require.NotEqual(t, l1, c.LeafHash(h))
	require.NoError(t, c.SetSalt(s1))
	require.Equal(t, l1, c.LeafHash(h))

	require.Error(t, c.SetSalt([]byte{1}))

	it := NewMessage("payload")
	it.Salt = s1
	c2, err := Canonicalize(it, DefaultPolicy())
	require.NoError(t, err)
	require.Equal(t, l1, c2.LeafHash(h))
}

func TestDescriptor_Encoding(t *testing.T) {
	d := &Descriptor{Version: DescriptorVersion, Label: "l", MimeType: MimeText,
		Data: []byte("data"), Salt: NewSalt()}
	d.UpdateFlags()
	buf, err := d.Encode()
	require.NoError(t, err)
	d2, err := DecodeDescriptor(buf)
	require.NoError(t, err)
	require.True(t, d.Equal(d2))

	bad := d.Copy()
	bad.Ciphertext = []byte("ct")
	bad.EphemeralKey = []byte("k")
	require.True(t, xerrors.Is(bad.Validate(), attest.ErrInput))
	_, err = bad.Encode()
	require.Error(t, err)

	bad.Data, bad.Salt = nil, nil
	require.NoError(t, bad.Validate())
	bad.EphemeralKey = nil
	require.Error(t, bad.Validate())

	_, err = DecodeDescriptor([]byte{0xff, 0xff})
	require.Error(t, err)

	objs, err := EncodeObjects([]*Descriptor{d, d2})
	require.NoError(t, err)
	ds, err := DecodeObjects(objs)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	require.True(t, ds[1].Equal(d))
}

func TestReference(t *testing.T) {
	ref := &Reference{SystemID: bytes.Repeat([]byte{1}, 20),
		TxID: bytes.Repeat([]byte{2}, 32), Output: 3, ObjectIndex: NoObjectIndex}
	d, err := ref.Descriptor()
	require.NoError(t, err)
	require.True(t, d.IsReference())
	r2, err := d.Reference()
	require.NoError(t, err)
	require.True(t, ref.Equal(r2))
	require.Contains(t, ref.String(), ":3")

	msg, err := Canonicalize(NewMessage("no ref"), DefaultPolicy())
	require.NoError(t, err)
	_, err = msg.Descriptor.Reference()
	require.True(t, xerrors.Is(err, attest.ErrReference))

	d.Data = []byte{0x0a, 0x01, 0x00}
	_, err = d.Reference()
	require.True(t, xerrors.Is(err, attest.ErrReference))
}
