package store

import (
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/canon"
	"go.dedis.ch/attest/identity"
	"go.dedis.ch/onet/v3/log"
)

type addressRecord struct {
	Type int32
	Data []byte
}

type identityRecord struct {
	ID        []byte
	Parent    []byte
	Name      string
	Primaries []addressRecord
	MinSigs   int32
	Revoked   bool
	Valid     bool
}

func newIdentityRecord(i *identity.Identity) *identityRecord {
	rec := &identityRecord{
		ID:      i.ID.Bytes(),
		Parent:  i.Parent.Bytes(),
		Name:    i.Name,
		MinSigs: int32(i.MinSigs),
		Revoked: i.Revoked,
		Valid:   i.Valid,
	}
	for _, a := range i.PrimaryAddresses {
		rec.Primaries = append(rec.Primaries, addressRecord{Type: int32(a.Type), Data: a.Data})
	}
	return rec
}

func (rec *identityRecord) identity() (*identity.Identity, error) {
	id, err := identity.IDFromBytes(rec.ID)
	if err != nil {
		return nil, err
	}
	parent, err := identity.IDFromBytes(rec.Parent)
	if err != nil {
		return nil, err
	}
	i := &identity.Identity{
		ID:      id,
		Parent:  parent,
		Name:    rec.Name,
		MinSigs: int(rec.MinSigs),
		Revoked: rec.Revoked,
		Valid:   rec.Valid,
	}
	for _, a := range rec.Primaries {
		i.PrimaryAddresses = append(i.PrimaryAddresses,
			identity.Address{Type: identity.AddressType(a.Type), Data: a.Data})
	}
	return i, nil
}

// PutIdentity stores or replaces the state of an identity.
func (s *Store) PutIdentity(i *identity.Identity) error {
	log.Lvlf3("storing identity %s (%s)", i.Name, i.ID)
	return s.put(bucketIdentities, i.ID[:], newIdentityRecord(i))
}

// LookupIdentity returns the stored state of the identity.
func (s *Store) LookupIdentity(id identity.ID) (*identity.Identity, error) {
	var rec identityRecord
	found, err := s.get(bucketIdentities, id[:], &rec)
	if err != nil {
		return nil, attest.AuthorizationError("reading identity %s: %v", id, err)
	}
	if !found {
		return nil, attest.AuthorizationError("unknown identity %s", id)
	}
	i, err := rec.identity()
	if err != nil {
		return nil, attest.AuthorizationError("corrupt identity %s: %v", id, err)
	}
	return i, nil
}

// ResolveName returns the identity registered with the name under parent.
func (s *Store) ResolveName(name string, parent identity.ID) (*identity.Identity, error) {
	return s.LookupIdentity(identity.NewID(name, parent))
}

// PutReference stores the descriptors of a transaction output so that
// they can be retrieved through a reference.
func (s *Store) PutReference(ref *canon.Reference, descs []*canon.Descriptor) error {
	buf, err := canon.EncodeObjects(descs)
	if err != nil {
		return err
	}
	log.Lvlf3("storing %d objects for %s", len(descs), ref)
	return s.put(bucketReferences, ref.Key(), &referenceRecord{Objects: buf})
}

type referenceRecord struct {
	Objects []byte
}

// Resolve returns the descriptors the reference points to: one if the
// reference has an object index, else all of them.
func (s *Store) Resolve(ref *canon.Reference) ([]*canon.Descriptor, error) {
	var rec referenceRecord
	found, err := s.get(bucketReferences, ref.Key(), &rec)
	if err != nil {
		return nil, attest.ReferenceError("reading %s: %v", ref, err)
	}
	if !found {
		return nil, attest.ReferenceError("unknown output %s", ref)
	}
	descs, err := canon.DecodeObjects(rec.Objects)
	if err != nil {
		return nil, attest.ReferenceError("corrupt objects at %s: %v", ref, err)
	}
	if ref.ObjectIndex == canon.NoObjectIndex {
		return descs, nil
	}
	if ref.ObjectIndex < 0 || int(ref.ObjectIndex) >= len(descs) {
		return nil, attest.ReferenceError("object %d out of range for %s", ref.ObjectIndex, ref)
	}
	return descs[ref.ObjectIndex : ref.ObjectIndex+1], nil
}
