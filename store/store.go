// Package store keeps the wallet of a node in a bbolt database: the signing
// keys, the viewing keys, the known identities and the data objects that
// can be referenced from other transactions.
package store

import (
	"crypto/ecdsa"
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pborman/uuid"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/envelope"
	"go.dedis.ch/attest/identity"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/protobuf"
	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

// DefaultBucket is the name of the top bucket when the store opens its own
// database.
var DefaultBucket = []byte("attest")

var (
	bucketKeys       = []byte("keys")
	bucketViewKeys   = []byte("viewkeys")
	bucketIdentities = []byte("identities")
	bucketReferences = []byte("references")
	bucketMeta       = []byte("meta")

	keyHeight = []byte("height")
)

// Store is the bbolt backed wallet. It implements identity.KeyStore and
// identity.Registry.
type Store struct {
	db     *bbolt.DB
	bucket []byte
	owned  bool
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, xerrors.Errorf("opening db: %v", err)
	}
	s, err := New(db, DefaultBucket)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New uses the given bucket of an already open database, for example the
// one returned by onet.Context.GetAdditionalBucket.
func New(db *bbolt.DB, bucket []byte) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		for _, name := range [][]byte{bucketKeys, bucketViewKeys, bucketIdentities, bucketReferences, bucketMeta} {
			if _, err := b.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("creating buckets: %v", err)
	}
	return &Store{db: db, bucket: append([]byte{}, bucket...)}, nil
}

// Close closes the database if it has been opened by the store.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *Store) sub(tx *bbolt.Tx, name []byte) *bbolt.Bucket {
	b := tx.Bucket(s.bucket)
	if b == nil {
		panic("Bucket has not been created. This is a programmer error.")
	}
	return b.Bucket(name)
}

func (s *Store) get(name, key []byte, msg interface{}) (bool, error) {
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		buf := s.sub(tx, name).Get(key)
		if buf == nil {
			return nil
		}
		found = true
		return protobuf.Decode(buf, msg)
	})
	return found, err
}

func (s *Store) put(name, key []byte, msg interface{}) error {
	buf, err := protobuf.Encode(msg)
	if err != nil {
		return xerrors.Errorf("encoding: %v", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.sub(tx, name).Put(key, buf)
	})
}

// keyRecord is a signing key. The uuid identifies the record independently
// of the key material.
type keyRecord struct {
	UUID    []byte
	KeyID   []byte
	Private []byte
	Created int64
}

// KeyInfo describes a stored signing key.
type KeyInfo struct {
	UUID    uuid.UUID
	ID      identity.ID
	Address identity.Address
	Created time.Time
}

// PutKey stores a signing key and returns its id.
func (s *Store) PutKey(k *ecdsa.PrivateKey) (identity.ID, error) {
	id := identity.PubKeyID(&k.PublicKey)
	rec := &keyRecord{
		UUID:    uuid.NewRandom(),
		KeyID:   id.Bytes(),
		Private: crypto.FromECDSA(k),
		Created: time.Now().Unix(),
	}
	if err := s.put(bucketKeys, rec.KeyID, rec); err != nil {
		return identity.ID{}, err
	}
	log.Lvlf3("stored key %s as %s", id.Short(), uuid.UUID(rec.UUID))
	return id, nil
}

// GetKey returns the signing key with the given id.
func (s *Store) GetKey(id identity.ID) (*ecdsa.PrivateKey, error) {
	var rec keyRecord
	found, err := s.get(bucketKeys, id[:], &rec)
	if err != nil {
		return nil, attest.CryptoError("reading key: %v", err)
	}
	if !found {
		return nil, attest.CryptoError("key %x not found", id[:])
	}
	k, err := crypto.ToECDSA(rec.Private)
	if err != nil {
		return nil, attest.CryptoError("corrupt key %x: %v", id[:], err)
	}
	return k, nil
}

// HaveKey returns true if the signing key is stored.
func (s *Store) HaveKey(id identity.ID) bool {
	have := false
	s.db.View(func(tx *bbolt.Tx) error {
		have = s.sub(tx, bucketKeys).Get(id[:]) != nil
		return nil
	})
	return have
}

// Keys lists the stored signing keys, ordered by id.
func (s *Store) Keys() ([]KeyInfo, error) {
	var infos []KeyInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return s.sub(tx, bucketKeys).ForEach(func(k, v []byte) error {
			var rec keyRecord
			if err := protobuf.Decode(v, &rec); err != nil {
				return err
			}
			priv, err := crypto.ToECDSA(rec.Private)
			if err != nil {
				return err
			}
			id, err := identity.IDFromBytes(rec.KeyID)
			if err != nil {
				return err
			}
			infos = append(infos, KeyInfo{
				UUID:    uuid.UUID(rec.UUID),
				ID:      id,
				Address: identity.NewPubKeyHashAddress(&priv.PublicKey),
				Created: time.Unix(rec.Created, 0),
			})
			return nil
		})
	})
	if err != nil {
		return nil, xerrors.Errorf("listing keys: %v", err)
	}
	return infos, nil
}

type viewKeyRecord struct {
	Private []byte
}

// PutViewingKey stores a private viewing key, indexed by its key hint.
func (s *Store) PutViewingKey(vk kyber.Scalar) error {
	buf, err := vk.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("marshaling viewing key: %v", err)
	}
	hint := envelope.KeyHint(attest.Suite.Point().Mul(vk, nil))
	return s.put(bucketViewKeys, hint, &viewKeyRecord{Private: buf})
}

// ViewingKeys returns all private viewing keys of the wallet. Corrupt
// entries are skipped.
func (s *Store) ViewingKeys() []kyber.Scalar {
	var vks []kyber.Scalar
	err := s.db.View(func(tx *bbolt.Tx) error {
		return s.sub(tx, bucketViewKeys).ForEach(func(k, v []byte) error {
			var rec viewKeyRecord
			if err := protobuf.Decode(v, &rec); err != nil {
				log.Warnf("corrupt viewing key %x: %v", k, err)
				return nil
			}
			vk := attest.Suite.Scalar()
			if err := vk.UnmarshalBinary(rec.Private); err != nil {
				log.Warnf("corrupt viewing key %x: %v", k, err)
				return nil
			}
			vks = append(vks, vk)
			return nil
		})
	})
	if err != nil {
		log.Error("couldn't read viewing keys:", err)
	}
	return vks
}

// Height returns the last chain height given to SetHeight, or 0.
func (s *Store) Height() uint32 {
	var h uint32
	s.db.View(func(tx *bbolt.Tx) error {
		if buf := s.sub(tx, bucketMeta).Get(keyHeight); len(buf) == 4 {
			h = binary.LittleEndian.Uint32(buf)
		}
		return nil
	})
	return h
}

// SetHeight stores the current chain height.
func (s *Store) SetHeight(h uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], h)
	return s.db.Update(func(tx *bbolt.Tx) error {
		return s.sub(tx, bucketMeta).Put(keyHeight, buf[:])
	})
}
