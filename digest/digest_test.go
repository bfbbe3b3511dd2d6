package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/attest"
	"golang.org/x/xerrors"
)

func TestParseType(t *testing.T) {
	for typ, name := range typeNames {
		parsed, err := ParseType(name)
		require.NoError(t, err)
		require.Equal(t, typ, parsed)
		require.Equal(t, name, typ.String())
	}
	parsed, err := ParseType(" SHA256D ")
	require.NoError(t, err)
	require.Equal(t, SHA256D, parsed)

	_, err = ParseType("md5")
	require.Error(t, err)
	require.True(t, xerrors.Is(err, attest.ErrInput))
	require.Equal(t, "unknown", Type(42).String())
	require.False(t, Type(0).Valid())
}

func TestHasher_KnownVectors(t *testing.T) {
	msg := []byte("hello world")
	vectors := map[Type]string{
		SHA256:    "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		Keccak256: "47173285a8d7341e5e972fc677286384f802f8ef42a5ec5f03bbfa254cb01fad",
		Blake2b:   "256c83b297114d201b30179f3f0ef0cace9783622da5974326b436178aeef610",
	}
	for typ, exp := range vectors {
		h := MustNew(typ)
		require.Equal(t, typ, h.Type())
		require.Equal(t, exp, h.Hash(msg).String(), typ.String())
	}

	first := sha256.Sum256(msg)
	second := sha256.Sum256(first[:])
	require.Equal(t, hex.EncodeToString(second[:]), MustNew(SHA256D).Hash(msg).String())
}

func TestHasher_Concatenation(t *testing.T) {
	for typ := range typeNames {
		h := MustNew(typ)
		require.Equal(t, h.Hash([]byte("hello world")),
			h.Hash([]byte("hello"), []byte(" "), []byte("world")), typ.String())
		require.NotEqual(t, h.Hash([]byte("a")), h.Hash([]byte("b")))
	}
	_, err := New(Type(99))
	require.Error(t, err)
}

func TestHash_Conversions(t *testing.T) {
	h := MustNew(SHA256).Hash([]byte("abc"))
	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	require.True(t, parsed.Equal(h))
	require.False(t, h.IsZero())
	require.True(t, Hash{}.IsZero())

	_, err = HashFromBytes(make([]byte, 31))
	require.True(t, xerrors.Is(err, attest.ErrInput))
	_, err = ParseHash("zz")
	require.True(t, xerrors.Is(err, attest.ErrInput))

	b := h.Bytes()
	b[0] ^= 0xff
	require.NotEqual(t, b[0], h[0])
}

func TestHash160(t *testing.T) {
	// Hash160 of the empty string, as used by bitcoin.
	require.Equal(t, "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb",
		hex.EncodeToString(Hash160(nil)))
	require.Len(t, Hash160([]byte("abc")), 20)
}
