package canon

import (
	"bytes"

	"go.dedis.ch/attest"
	"go.dedis.ch/protobuf"
)

// DescriptorVersion is the current version of the descriptor format.
const DescriptorVersion = 1

// Flags of a descriptor. They are derived from the fields, see UpdateFlags.
const (
	FlagEncrypted uint32 = 1 << iota
	FlagSalted
	FlagEphemeralKey
	FlagLabel
	FlagMimeType
	FlagKeyHint
)

// Mime types set by the canonicalizer.
const (
	MimeText      = "text/plain"
	MimeBinary    = "application/octet-stream"
	MimeObject    = "application/x-attest-object"
	MimeReference = "application/x-attest-reference"
	MimeSignature = "application/x-attest-signature"
)

// Descriptor is the canonical form of a data object. It either holds the
// plain payload in Data, or the encrypted descriptor in Ciphertext, never
// both.
type Descriptor struct {
	Version  uint32
	Flags    uint32
	Label    string
	MimeType string
	Data     []byte
	Salt     []byte

	Ciphertext []byte
	// EphemeralKey is the public part of the ephemeral key used to
	// encrypt the descriptor.
	EphemeralKey []byte
	// KeyHint lets the holder of a viewing key detect descriptors
	// encrypted to it without trying to decrypt them.
	KeyHint []byte
	// LeafIndex is the position of the descriptor in the encrypted batch,
	// it selects the sub-key.
	LeafIndex uint32
}

// Encrypted returns true if the descriptor holds a ciphertext.
func (d *Descriptor) Encrypted() bool {
	return len(d.Ciphertext) > 0
}

// UpdateFlags sets the flags according to the fields present.
func (d *Descriptor) UpdateFlags() {
	var f uint32
	if d.Encrypted() {
		f |= FlagEncrypted
	}
	if len(d.Salt) > 0 {
		f |= FlagSalted
	}
	if len(d.EphemeralKey) > 0 {
		f |= FlagEphemeralKey
	}
	if d.Label != "" {
		f |= FlagLabel
	}
	if d.MimeType != "" {
		f |= FlagMimeType
	}
	if len(d.KeyHint) > 0 {
		f |= FlagKeyHint
	}
	d.Flags = f
}

// Validate checks that payload and ciphertext are not both present and
// that an encrypted descriptor carries its ephemeral key.
func (d *Descriptor) Validate() error {
	if d.Encrypted() {
		if len(d.Data) > 0 || len(d.Salt) > 0 {
			return attest.InputError("descriptor has both payload and ciphertext")
		}
		if len(d.EphemeralKey) == 0 {
			return attest.InputError("encrypted descriptor without ephemeral key")
		}
	}
	return nil
}

// Copy returns a deep copy of the descriptor.
func (d *Descriptor) Copy() *Descriptor {
	c := *d
	c.Data = copyBytes(d.Data)
	c.Salt = copyBytes(d.Salt)
	c.Ciphertext = copyBytes(d.Ciphertext)
	c.EphemeralKey = copyBytes(d.EphemeralKey)
	c.KeyHint = copyBytes(d.KeyHint)
	return &c
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

// Equal compares all fields of both descriptors.
func (d *Descriptor) Equal(o *Descriptor) bool {
	return d.Version == o.Version && d.Flags == o.Flags &&
		d.Label == o.Label && d.MimeType == o.MimeType &&
		bytes.Equal(d.Data, o.Data) && bytes.Equal(d.Salt, o.Salt) &&
		bytes.Equal(d.Ciphertext, o.Ciphertext) &&
		bytes.Equal(d.EphemeralKey, o.EphemeralKey) &&
		bytes.Equal(d.KeyHint, o.KeyHint) && d.LeafIndex == o.LeafIndex
}

// Encode returns the canonical serialization of the descriptor.
func (d *Descriptor) Encode() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return protobuf.Encode(d)
}

// DecodeDescriptor parses a serialized descriptor.
func DecodeDescriptor(buf []byte) (*Descriptor, error) {
	d := &Descriptor{}
	if err := protobuf.Decode(buf, d); err != nil {
		return nil, attest.InputError("couldn't decode descriptor: %v", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Objects is a list of descriptors stored together, for example in one
// transaction output.
type Objects struct {
	Descriptors []*Descriptor
}

// EncodeObjects serializes a list of descriptors.
func EncodeObjects(ds []*Descriptor) ([]byte, error) {
	for _, d := range ds {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return protobuf.Encode(&Objects{Descriptors: ds})
}

// DecodeObjects parses a list of descriptors.
func DecodeObjects(buf []byte) ([]*Descriptor, error) {
	var o Objects
	if err := protobuf.Decode(buf, &o); err != nil {
		return nil, attest.InputError("couldn't decode objects: %v", err)
	}
	for _, d := range o.Descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}
	return o.Descriptors, nil
}
