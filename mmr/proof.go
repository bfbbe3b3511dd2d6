package mmr

import (
	"math/bits"

	"go.dedis.ch/attest"
	"go.dedis.ch/attest/digest"
)

// Proof shows that a leaf is part of a range with a given root. It holds
// the siblings from the leaf up to its peak, and all peaks of the range.
type Proof struct {
	LeafIndex uint64
	LeafCount uint64
	Siblings  []digest.Hash
	Peaks     []digest.Hash
}

// locate returns the position of the peak covering the leaf, and the height
// of that peak.
func locate(index, count uint64) (peak int, height int, err error) {
	if index >= count {
		return 0, 0, attest.InputError("leaf %d out of range, size is %d", index, count)
	}
	var offset uint64
	for h := 63 - bits.LeadingZeros64(count); h >= 0; h-- {
		width := uint64(1) << uint(h)
		if count&width == 0 {
			continue
		}
		if index < offset+width {
			return peak, h, nil
		}
		offset += width
		peak++
	}
	return 0, 0, attest.InputError("leaf %d not covered by any peak", index)
}

// Proof returns the inclusion proof for the leaf at index i.
func (m *MMR) Proof(i uint64) (*Proof, error) {
	_, height, err := locate(i, m.Size())
	if err != nil {
		return nil, err
	}
	p := &Proof{
		LeafIndex: i,
		LeafCount: m.Size(),
		Peaks:     peakHashes(m.peaks),
	}
	for level := 0; level < height; level++ {
		p.Siblings = append(p.Siblings, m.levels[level][(i>>uint(level))^1])
	}
	return p, nil
}

// Verify returns nil if the leaf is included in the range with the given
// root. The hasher must be the one used to build the range.
func (p *Proof) Verify(h digest.LeafHasher, leaf, root digest.Hash) error {
	peak, height, err := locate(p.LeafIndex, p.LeafCount)
	if err != nil {
		return err
	}
	if len(p.Peaks) != bits.OnesCount64(p.LeafCount) {
		return attest.CryptoError("proof has %d peaks, expected %d",
			len(p.Peaks), bits.OnesCount64(p.LeafCount))
	}
	if len(p.Siblings) != height {
		return attest.CryptoError("proof has %d siblings, expected %d",
			len(p.Siblings), height)
	}
	node := leaf
	for level, sib := range p.Siblings {
		if (p.LeafIndex>>uint(level))&1 == 0 {
			node = h.Hash(node[:], sib[:])
		} else {
			node = h.Hash(sib[:], node[:])
		}
	}
	if !node.Equal(p.Peaks[peak]) {
		return attest.CryptoError("leaf does not lead to peak %d", peak)
	}
	if !bag(h, p.Peaks).Equal(root) {
		return attest.CryptoError("peaks do not bag to the root")
	}
	return nil
}
