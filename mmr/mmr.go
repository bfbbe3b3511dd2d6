// Package mmr implements an append-only Merkle Mountain Range. Leaves are
// added one after another, and whenever the two most recent peaks have the
// same height they are merged into a parent one level higher. The root bags
// all remaining peaks, from the right to the left, into a single hash.
package mmr

import (
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/digest"
)

// Peak is the root of a complete subtree.
type Peak struct {
	Height int
	Hash   digest.Hash
}

// MMR holds all nodes of the range, level by level, so that inclusion
// proofs can be created for any leaf. It is not safe for concurrent use.
type MMR struct {
	hasher digest.LeafHasher
	// levels[0] are the leaves, levels[h][i] is the parent of
	// levels[h-1][2i] and levels[h-1][2i+1].
	levels [][]digest.Hash
	peaks  []Peak
}

// New returns an empty MMR combining its nodes with the given hasher.
func New(h digest.LeafHasher) *MMR {
	return &MMR{hasher: h}
}

// NewFromLeaves returns an MMR with all leaves added in order.
func NewFromLeaves(h digest.LeafHasher, leaves []digest.Hash) *MMR {
	m := New(h)
	for _, l := range leaves {
		m.Add(l)
	}
	return m
}

// Hasher returns the hasher used to combine the nodes.
func (m *MMR) Hasher() digest.LeafHasher {
	return m.hasher
}

// Add appends a leaf and returns its index.
func (m *MMR) Add(leaf digest.Hash) uint64 {
	m.push(0, leaf)
	m.peaks = append(m.peaks, Peak{Height: 0, Hash: leaf})
	for len(m.peaks) >= 2 {
		right := m.peaks[len(m.peaks)-1]
		left := m.peaks[len(m.peaks)-2]
		if left.Height != right.Height {
			break
		}
		parent := Peak{
			Height: left.Height + 1,
			Hash:   m.combine(left.Hash, right.Hash),
		}
		m.push(parent.Height, parent.Hash)
		m.peaks = append(m.peaks[:len(m.peaks)-2], parent)
	}
	return uint64(len(m.levels[0]) - 1)
}

func (m *MMR) push(height int, h digest.Hash) {
	for len(m.levels) <= height {
		m.levels = append(m.levels, nil)
	}
	m.levels[height] = append(m.levels[height], h)
}

func (m *MMR) combine(left, right digest.Hash) digest.Hash {
	return m.hasher.Hash(left[:], right[:])
}

// Size returns the number of leaves.
func (m *MMR) Size() uint64 {
	if len(m.levels) == 0 {
		return 0
	}
	return uint64(len(m.levels[0]))
}

// Leaf returns the leaf at the given index.
func (m *MMR) Leaf(i uint64) (digest.Hash, error) {
	if i >= m.Size() {
		return digest.Hash{}, attest.InputError("leaf %d out of range, size is %d", i, m.Size())
	}
	return m.levels[0][i], nil
}

// Peaks returns a copy of the current peaks, from the highest and oldest on
// the left to the most recent on the right.
func (m *MMR) Peaks() []Peak {
	return append([]Peak{}, m.peaks...)
}

// Root returns the bagged peaks. A range with a single leaf has that leaf
// as its root, and an empty range returns the zero hash.
func (m *MMR) Root() digest.Hash {
	return bag(m.hasher, peakHashes(m.peaks))
}

func peakHashes(peaks []Peak) []digest.Hash {
	hashes := make([]digest.Hash, len(peaks))
	for i, p := range peaks {
		hashes[i] = p.Hash
	}
	return hashes
}

// bag folds the peaks from the right to the left.
func bag(h digest.LeafHasher, peaks []digest.Hash) digest.Hash {
	if len(peaks) == 0 {
		return digest.Hash{}
	}
	root := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		root = h.Hash(peaks[i][:], root[:])
	}
	return root
}
