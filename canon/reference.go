package canon

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"go.dedis.ch/attest"
	"go.dedis.ch/protobuf"
)

// NoObjectIndex selects all objects of an output.
const NoObjectIndex = -1

// Reference points to data stored in a transaction output, possibly on
// another chain.
type Reference struct {
	SystemID []byte
	TxID     []byte
	Output   uint32
	// ObjectIndex selects one object of the output, or all of them if it
	// is NoObjectIndex.
	ObjectIndex int32
}

// Key returns the storage key of the output, without the object index.
func (r *Reference) Key() []byte {
	var out [4]byte
	out[0] = byte(r.Output)
	out[1] = byte(r.Output >> 8)
	out[2] = byte(r.Output >> 16)
	out[3] = byte(r.Output >> 24)
	return append(append(append([]byte{}, r.SystemID...), r.TxID...), out[:]...)
}

// Equal returns true if both references point to the same object.
func (r *Reference) Equal(o *Reference) bool {
	return bytes.Equal(r.SystemID, o.SystemID) && bytes.Equal(r.TxID, o.TxID) &&
		r.Output == o.Output && r.ObjectIndex == o.ObjectIndex
}

func (r *Reference) String() string {
	if r.ObjectIndex == NoObjectIndex {
		return fmt.Sprintf("%s:%d", hex.EncodeToString(r.TxID), r.Output)
	}
	return fmt.Sprintf("%s:%d/%d", hex.EncodeToString(r.TxID), r.Output, r.ObjectIndex)
}

// Descriptor wraps the reference into a descriptor so that it can be
// signed and encrypted like any other object.
func (r *Reference) Descriptor() (*Descriptor, error) {
	buf, err := protobuf.Encode(r)
	if err != nil {
		return nil, attest.InputError("couldn't encode reference: %v", err)
	}
	d := &Descriptor{
		Version:  DescriptorVersion,
		MimeType: MimeReference,
		Data:     buf,
	}
	d.UpdateFlags()
	return d, nil
}

// IsReference returns true if the plain descriptor holds a reference.
func (d *Descriptor) IsReference() bool {
	return !d.Encrypted() && d.MimeType == MimeReference
}

// Reference parses the reference held by the descriptor.
func (d *Descriptor) Reference() (*Reference, error) {
	if !d.IsReference() {
		return nil, attest.ReferenceError("descriptor does not hold a reference")
	}
	r := &Reference{}
	if err := protobuf.Decode(d.Data, r); err != nil {
		return nil, attest.ReferenceError("corrupt reference: %v", err)
	}
	if len(r.TxID) != 32 {
		return nil, attest.ReferenceError("corrupt reference: txid of %d bytes", len(r.TxID))
	}
	return r, nil
}
