// Package canon turns the different kinds of input data into canonical
// descriptors, and hashes them into the leaves of a signature.
package canon

import (
	"encoding/base64"
	"encoding/hex"
	"io"
	"io/ioutil"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.dedis.ch/attest"
	"go.dedis.ch/attest/digest"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
)

// MaxTransactionSize is the largest transaction accepted after the
// network upgrade. Files may use half of it.
const MaxTransactionSize = 2000000

// SaltSize is the length of a leaf salt.
const SaltSize = 32

// Policy holds the limits enforced by the node operator.
type Policy struct {
	// AllowFiles enables reading local files. It is off by default, as it
	// gives RPC callers access to the file system of the node.
	AllowFiles  bool
	MaxFileSize int64
}

// DefaultPolicy returns the policy with files disabled.
func DefaultPolicy() Policy {
	return Policy{MaxFileSize: MaxTransactionSize / 2}
}

// Canonical is the result of canonicalizing one item. For a precomputed
// hash only PreHashed and Hash are set.
type Canonical struct {
	Descriptor *Descriptor
	PreHashed  bool
	Hash       digest.Hash
}

// Canonicalize validates the item and converts it into its canonical form.
func Canonicalize(it *Item, p Policy) (*Canonical, error) {
	if err := it.Validate(); err != nil {
		return nil, err
	}
	if it.Type() == ItemHash {
		h, err := digest.ParseHash(*it.Hash)
		if err != nil {
			return nil, err
		}
		return &Canonical{PreHashed: true, Hash: h}, nil
	}

	d := &Descriptor{
		Version:  DescriptorVersion,
		Label:    it.Label,
		MimeType: it.MimeType,
		Salt:     copyBytes(it.Salt),
	}
	var err error
	switch it.Type() {
	case ItemMessage:
		d.Data = []byte(*it.Message)
		defaultMime(d, MimeText)
	case ItemHex:
		d.Data, err = hex.DecodeString(strings.TrimPrefix(*it.Hex, "0x"))
		if err != nil {
			return nil, attest.InputError("invalid hex data: %v", err)
		}
		defaultMime(d, MimeBinary)
	case ItemBase64:
		d.Data, err = base64.StdEncoding.DecodeString(*it.Base64)
		if err != nil {
			return nil, attest.InputError("invalid base64 data: %v", err)
		}
		defaultMime(d, MimeBinary)
	case ItemFile:
		d.Data, err = readFile(*it.FilePath, p)
		if err != nil {
			return nil, err
		}
		if d.Label == "" {
			d.Label = filepath.Base(*it.FilePath)
		}
		defaultMime(d, mimeFromName(*it.FilePath))
	case ItemObject:
		d.Data, err = protobuf.Encode(it.Object)
		if err != nil {
			return nil, attest.InputError("couldn't encode object: %v", err)
		}
		if d.Label == "" {
			d.Label = it.Object.Key
		}
		defaultMime(d, MimeObject)
	}
	d.UpdateFlags()
	return &Canonical{Descriptor: d}, nil
}

func defaultMime(d *Descriptor, m string) {
	if d.MimeType == "" {
		d.MimeType = m
	}
}

func mimeFromName(name string) string {
	if m := mime.TypeByExtension(filepath.Ext(name)); m != "" {
		return m
	}
	return MimeBinary
}

// readFile reads at most p.MaxFileSize bytes. Larger files are refused
// rather than truncated.
func readFile(path string, p Policy) ([]byte, error) {
	if !p.AllowFiles {
		return nil, attest.InputError("file data is not enabled on this node")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, attest.InputError("couldn't open file: %v", err)
	}
	defer f.Close()
	if st, err := f.Stat(); err == nil && st.Size() > p.MaxFileSize {
		return nil, attest.InputError("file is %d bytes, the limit is %d", st.Size(), p.MaxFileSize)
	}
	buf, err := ioutil.ReadAll(io.LimitReader(f, p.MaxFileSize+1))
	if err != nil {
		return nil, attest.InputError("couldn't read file: %v", err)
	}
	if int64(len(buf)) > p.MaxFileSize {
		return nil, attest.InputError("file exceeds the limit of %d bytes", p.MaxFileSize)
	}
	log.Lvlf3("read %d bytes from %s", len(buf), path)
	return buf, nil
}

// Payload returns the bytes that are hashed into the leaf, without the salt.
func (c *Canonical) Payload() []byte {
	if c.PreHashed {
		return c.Hash.Bytes()
	}
	return c.Descriptor.Data
}

// SetSalt replaces the salt of the descriptor.
func (c *Canonical) SetSalt(salt []byte) error {
	if c.PreHashed {
		return attest.InputError("a precomputed hash cannot be salted")
	}
	if len(salt) != SaltSize {
		return attest.InputError("salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	c.Descriptor.Salt = copyBytes(salt)
	c.Descriptor.UpdateFlags()
	return nil
}

// LeafHash returns the leaf of this item: the precomputed hash as is,
// H(salt || payload) for a salted descriptor and H(payload) otherwise.
func (c *Canonical) LeafHash(h digest.LeafHasher) digest.Hash {
	if c.PreHashed {
		return c.Hash
	}
	return DescriptorLeaf(h, c.Descriptor)
}

// DescriptorLeaf hashes a plain descriptor into its leaf. A holder of the
// payload and the salt can recompute the leaf to prove its inclusion.
func DescriptorLeaf(h digest.LeafHasher, d *Descriptor) digest.Hash {
	if len(d.Salt) > 0 {
		return h.Hash(d.Salt, d.Data)
	}
	return h.Hash(d.Data)
}

// NewSalt returns SaltSize random bytes.
func NewSalt() []byte {
	salt := make([]byte, SaltSize)
	random.Bytes(salt, random.New())
	return salt
}
