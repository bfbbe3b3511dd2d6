package identity

import (
	"crypto/ecdsa"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"go.dedis.ch/attest"
)

// KeyStore gives access to the private keys of the wallet, indexed by key
// id.
type KeyStore interface {
	GetKey(id ID) (*ecdsa.PrivateKey, error)
	HaveKey(id ID) bool
}

// Keyring is a KeyStore held in memory.
type Keyring struct {
	sync.Mutex
	keys map[ID]*ecdsa.PrivateKey
}

// NewKeyring returns a keyring holding the given keys.
func NewKeyring(keys ...*ecdsa.PrivateKey) *Keyring {
	kr := &Keyring{keys: make(map[ID]*ecdsa.PrivateKey)}
	for _, k := range keys {
		kr.Add(k)
	}
	return kr
}

// GenerateKey creates a new secp256k1 key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	k, err := crypto.GenerateKey()
	if err != nil {
		return nil, attest.CryptoError("couldn't generate key: %v", err)
	}
	return k, nil
}

// Add stores the key and returns its id.
func (kr *Keyring) Add(k *ecdsa.PrivateKey) ID {
	kr.Lock()
	defer kr.Unlock()
	id := PubKeyID(&k.PublicKey)
	kr.keys[id] = k
	return id
}

// GetKey returns the private key with the given id.
func (kr *Keyring) GetKey(id ID) (*ecdsa.PrivateKey, error) {
	kr.Lock()
	defer kr.Unlock()
	k, ok := kr.keys[id]
	if !ok {
		return nil, attest.CryptoError("key %x not found", id[:])
	}
	return k, nil
}

// HaveKey returns true if the keyring holds the key.
func (kr *Keyring) HaveKey(id ID) bool {
	kr.Lock()
	defer kr.Unlock()
	_, ok := kr.keys[id]
	return ok
}
