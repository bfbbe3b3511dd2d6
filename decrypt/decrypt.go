// Package decrypt opens encrypted descriptors with the viewing keys of the
// wallet, and follows references to data stored in other transactions.
package decrypt

import (
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/canon"
	"go.dedis.ch/attest/envelope"
	"go.dedis.ch/attest/identity"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ViewingKeys gives the private viewing keys of the wallet.
type ViewingKeys interface {
	ViewingKeys() []kyber.Scalar
}

// ReferenceResolver fetches the descriptors a reference points to.
type ReferenceResolver interface {
	Resolve(ref *canon.Reference) ([]*canon.Descriptor, error)
}

// Resolver decrypts descriptors. Keys and Refs may be nil.
type Resolver struct {
	Keys     ViewingKeys
	Refs     ReferenceResolver
	SystemID identity.ID
}

// Request holds the arguments of Decrypt.
type Request struct {
	Descriptor *canon.Descriptor
	// ViewingKey is tried before the keys of the wallet.
	ViewingKey kyber.Scalar
	// SSK is the leaf key of the descriptor, tried first.
	SSK []byte
	// Retrieve resolves a decrypted reference and decrypts what it points
	// to.
	Retrieve bool
}

// Result is returned by Decrypt.
type Result struct {
	Descriptor *canon.Descriptor
	Decrypted  bool
	// Reference and Retrieved are set if a reference has been resolved.
	Reference *canon.Reference
	Retrieved []*canon.Descriptor
}

// Decrypt opens the descriptor of the request. A descriptor that is not
// encrypted is returned as is. A reference is followed at most once, and
// the descriptors it points to are decrypted but never resolved further.
func (r *Resolver) Decrypt(req *Request) (*Result, error) {
	if req.Descriptor == nil {
		return nil, attest.InputError("missing descriptor")
	}
	res := &Result{}
	var err error
	res.Descriptor, res.Decrypted, err = r.open(req.Descriptor, req)
	if err != nil {
		return nil, err
	}
	if !req.Retrieve || !res.Descriptor.IsReference() {
		return res, nil
	}

	res.Reference, err = res.Descriptor.Reference()
	if err != nil {
		return nil, err
	}
	if len(res.Reference.SystemID) == 0 {
		res.Reference.SystemID = r.SystemID.Bytes()
	}
	if r.Refs == nil {
		return nil, attest.ReferenceError("cannot resolve %s", res.Reference)
	}
	fetched, err := r.Refs.Resolve(res.Reference)
	if err != nil {
		if xerrors.Is(err, attest.ErrReference) {
			return nil, err
		}
		return nil, attest.ReferenceError("resolving %s: %v", res.Reference, err)
	}
	log.Lvlf3("reference %s resolved to %d objects", res.Reference, len(fetched))
	// The leaf key of the reference doesn't open the referenced objects.
	inner := &Request{ViewingKey: req.ViewingKey}
	for _, d := range fetched {
		plain, _, err := r.open(d, inner)
		if err != nil {
			return nil, err
		}
		res.Retrieved = append(res.Retrieved, plain)
	}
	return res, nil
}

// open decrypts one descriptor with the leaf key, the explicit viewing key
// or the keys of the wallet, in this order.
func (r *Resolver) open(d *canon.Descriptor, req *Request) (*canon.Descriptor, bool, error) {
	if !d.Encrypted() {
		return d.Copy(), false, nil
	}
	if len(req.SSK) > 0 {
		plain, err := envelope.DecryptWithSSK(d, req.SSK)
		if err == nil || xerrors.Is(err, envelope.ErrNestedEncryption) {
			return plain, err == nil, err
		}
		log.Lvl3("leaf key failed:", err)
	}
	var keys []kyber.Scalar
	if req.ViewingKey != nil {
		keys = append(keys, req.ViewingKey)
	}
	if r.Keys != nil {
		keys = append(keys, r.Keys.ViewingKeys()...)
	}
	for _, vk := range keys {
		plain, err := envelope.Decrypt(d, vk)
		if err == nil {
			return plain, true, nil
		}
		if xerrors.Is(err, envelope.ErrNestedEncryption) {
			return nil, false, err
		}
	}
	return nil, false, attest.CryptoError("none of %d keys can decrypt the descriptor", len(keys))
}
