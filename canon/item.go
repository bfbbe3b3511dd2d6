package canon

import (
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/digest"
)

// ItemType tells which data source of an item is set.
type ItemType int

const (
	// ItemNone is returned for an item without any data source.
	ItemNone ItemType = iota
	// ItemMessage is a UTF-8 message.
	ItemMessage
	// ItemHex is binary data given in hexadecimal.
	ItemHex
	// ItemBase64 is binary data given in base64.
	ItemBase64
	// ItemFile is the content of a local file.
	ItemFile
	// ItemHash is a precomputed 32 byte hash.
	ItemHash
	// ItemObject is a structured object.
	ItemObject
)

var itemNames = map[ItemType]string{
	ItemNone:    "none",
	ItemMessage: "message",
	ItemHex:     "hex",
	ItemBase64:  "base64",
	ItemFile:    "filename",
	ItemHash:    "datahash",
	ItemObject:  "object",
}

func (it ItemType) String() string {
	return itemNames[it]
}

// Item is one piece of data to be signed. Exactly one of the data sources
// must be set; Label, MimeType and Salt are optional.
type Item struct {
	Message  *string
	Hex      *string
	Base64   *string
	FilePath *string
	Hash     *string
	Object   *Object

	Label    string
	MimeType string
	// Salt is prepended to the payload when hashing the leaf. It must be
	// SaltSize bytes long.
	Salt []byte
}

// Object is a structured object identified by a key. Its fields are
// serialized in the given order.
type Object struct {
	Key     string
	Version uint32
	Fields  []Field
}

// Field is one named value of an Object.
type Field struct {
	Name  string
	Value []byte
}

// NewMessage returns an item signing a text message.
func NewMessage(msg string) *Item {
	return &Item{Message: &msg}
}

// NewHex returns an item signing hex encoded data.
func NewHex(data string) *Item {
	return &Item{Hex: &data}
}

// NewBase64 returns an item signing base64 encoded data.
func NewBase64(data string) *Item {
	return &Item{Base64: &data}
}

// NewFile returns an item signing the content of a file.
func NewFile(path string) *Item {
	return &Item{FilePath: &path}
}

// NewHash returns an item for a hash computed elsewhere.
func NewHash(h digest.Hash) *Item {
	s := h.String()
	return &Item{Hash: &s}
}

// NewObject returns an item signing a structured object.
func NewObject(o *Object) *Item {
	return &Item{Object: o}
}

// Type returns which data source is set. It returns ItemNone if none or
// more than one are set, use Validate to get the reason.
func (it *Item) Type() ItemType {
	set := it.sources()
	if len(set) != 1 {
		return ItemNone
	}
	return set[0]
}

func (it *Item) sources() []ItemType {
	var set []ItemType
	if it.Message != nil {
		set = append(set, ItemMessage)
	}
	if it.Hex != nil {
		set = append(set, ItemHex)
	}
	if it.Base64 != nil {
		set = append(set, ItemBase64)
	}
	if it.FilePath != nil {
		set = append(set, ItemFile)
	}
	if it.Hash != nil {
		set = append(set, ItemHash)
	}
	if it.Object != nil {
		set = append(set, ItemObject)
	}
	return set
}

// Validate returns an error unless exactly one data source is set and the
// salt, if any, has the right length.
func (it *Item) Validate() error {
	if it == nil {
		return attest.InputError("missing item")
	}
	set := it.sources()
	switch len(set) {
	case 0:
		return attest.InputError("item has no data source")
	case 1:
	default:
		return attest.InputError("item has %d data sources: %v", len(set), set)
	}
	if len(it.Salt) > 0 {
		if len(it.Salt) != SaltSize {
			return attest.InputError("salt must be %d bytes, got %d", SaltSize, len(it.Salt))
		}
		if set[0] == ItemHash {
			return attest.InputError("a precomputed hash cannot be salted")
		}
	}
	return nil
}
