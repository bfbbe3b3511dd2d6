package mmr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/digest"
	"golang.org/x/xerrors"
)

func leaves(h digest.LeafHasher, n int) []digest.Hash {
	ls := make([]digest.Hash, n)
	for i := range ls {
		ls[i] = h.Hash([]byte(fmt.Sprintf("leaf %d", i)))
	}
	return ls
}

func TestMMR_Empty(t *testing.T) {
	m := New(digest.MustNew(digest.Blake2b))
	require.Equal(t, uint64(0), m.Size())
	require.True(t, m.Root().IsZero())
	require.Empty(t, m.Peaks())
	_, err := m.Proof(0)
	require.True(t, xerrors.Is(err, attest.ErrInput))
}

func TestMMR_SingleLeaf(t *testing.T) {
	h := digest.MustNew(digest.Blake2b)
	leaf := digest.MustNew(digest.SHA256).Hash([]byte("hello world"))
	m := New(h)
	require.Equal(t, uint64(0), m.Add(leaf))
	require.Equal(t, leaf, m.Root())
}

func TestMMR_Peaks(t *testing.T) {
	h := digest.MustNew(digest.Blake2b)
	ls := leaves(h, 7)
	m := New(h)
	for i, l := range ls {
		require.Equal(t, uint64(i), m.Add(l))
		require.Len(t, m.Peaks(), popcount(i+1))
	}

	peaks := m.Peaks()
	require.Equal(t, []int{2, 1, 0}, []int{peaks[0].Height, peaks[1].Height, peaks[2].Height})
	ab := h.Hash(ls[0][:], ls[1][:])
	cd := h.Hash(ls[2][:], ls[3][:])
	require.Equal(t, h.Hash(ab[:], cd[:]), peaks[0].Hash)
	require.Equal(t, h.Hash(ls[4][:], ls[5][:]), peaks[1].Hash)
	require.Equal(t, ls[6], peaks[2].Hash)

	inner := h.Hash(peaks[1].Hash[:], peaks[2].Hash[:])
	require.Equal(t, h.Hash(peaks[0].Hash[:], inner[:]), m.Root())
}

func popcount(n int) int {
	c := 0
	for ; n > 0; n &= n - 1 {
		c++
	}
	return c
}

func TestMMR_ThreeLeaves(t *testing.T) {
	h := digest.MustNew(digest.Blake2b)
	ls := leaves(h, 3)
	m := NewFromLeaves(h, ls)
	peaks := m.Peaks()
	require.Len(t, peaks, 2)
	require.Equal(t, 1, peaks[0].Height)
	require.Equal(t, 0, peaks[1].Height)
	ab := h.Hash(ls[0][:], ls[1][:])
	require.Equal(t, h.Hash(ab[:], ls[2][:]), m.Root())

	changed := append([]digest.Hash{}, ls...)
	changed[2] = h.Hash([]byte("other"))
	m2 := NewFromLeaves(h, changed)
	require.NotEqual(t, m.Root(), m2.Root())
	l0, _ := m2.Leaf(0)
	l1, _ := m2.Leaf(1)
	require.Equal(t, ls[0], l0)
	require.Equal(t, ls[1], l1)
}

func TestMMR_Deterministic(t *testing.T) {
	for _, typ := range []digest.Type{digest.SHA256, digest.Blake2b, digest.Keccak256, digest.SHA256D} {
		h := digest.MustNew(typ)
		ls := leaves(h, 13)
		a := NewFromLeaves(h, ls)
		b := NewFromLeaves(h, ls)
		require.Equal(t, a.Root(), b.Root())
		require.Equal(t, a.Root(), a.Root())
	}
}

func TestMMR_OrderSensitive(t *testing.T) {
	h := digest.MustNew(digest.Blake2b)
	ls := leaves(h, 5)
	swapped := append([]digest.Hash{}, ls...)
	swapped[1], swapped[3] = swapped[3], swapped[1]
	require.NotEqual(t, NewFromLeaves(h, ls).Root(), NewFromLeaves(h, swapped).Root())

	pair := leaves(h, 2)
	require.NotEqual(t, NewFromLeaves(h, pair).Root(),
		NewFromLeaves(h, []digest.Hash{pair[1], pair[0]}).Root())
}

func TestMMR_RootAfterAdd(t *testing.T) {
	h := digest.MustNew(digest.Blake2b)
	ls := leaves(h, 6)
	m := NewFromLeaves(h, ls[:4])
	root4 := m.Root()
	m.Add(ls[4])
	require.NotEqual(t, root4, m.Root())
	require.Equal(t, root4, NewFromLeaves(h, ls[:4]).Root())
	require.Equal(t, NewFromLeaves(h, ls[:5]).Root(), m.Root())
}

func TestProof(t *testing.T) {
	h := digest.MustNew(digest.Blake2b)
	for n := 1; n <= 17; n++ {
		ls := leaves(h, n)
		m := NewFromLeaves(h, ls)
		root := m.Root()
		for i := range ls {
			p, err := m.Proof(uint64(i))
			require.NoError(t, err)
			require.NoError(t, p.Verify(h, ls[i], root), "n=%d i=%d", n, i)

			other := h.Hash([]byte("not a leaf"))
			require.Error(t, p.Verify(h, other, root))
			if n > 1 {
				require.Error(t, p.Verify(h, ls[(i+1)%n], root))
			}
		}
	}
}

func TestProof_Tampered(t *testing.T) {
	h := digest.MustNew(digest.Blake2b)
	ls := leaves(h, 6)
	m := NewFromLeaves(h, ls)
	p, err := m.Proof(2)
	require.NoError(t, err)

	p.Peaks = p.Peaks[:1]
	require.True(t, xerrors.Is(p.Verify(h, ls[2], m.Root()), attest.ErrCrypto))

	p, _ = m.Proof(2)
	p.Siblings = p.Siblings[1:]
	require.True(t, xerrors.Is(p.Verify(h, ls[2], m.Root()), attest.ErrCrypto))

	p, _ = m.Proof(5)
	p.Peaks[0] = h.Hash([]byte("x"))
	require.Error(t, p.Verify(h, ls[5], m.Root()))

	p, _ = m.Proof(1)
	p.LeafIndex = 10
	require.True(t, xerrors.Is(p.Verify(h, ls[1], m.Root()), attest.ErrInput))
}
