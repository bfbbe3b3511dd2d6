// Package config reads and writes the toml configuration shared by the
// command line tool and the service.
package config

import (
	"bytes"
	"encoding/hex"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/canon"
	"go.dedis.ch/attest/digest"
	"go.dedis.ch/attest/identity"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// FileName is the name of the configuration inside the data directory.
const FileName = "attest.toml"

// DefaultSystem is the name from which the system id is derived if none is
// configured.
const DefaultSystem = "attest"

// Config holds the settings of a node.
type Config struct {
	// System is the name of the chain. Its id is the parent of all
	// identities and is part of every signature.
	System string
	// DB is the path of the wallet database.
	DB    string
	Debug int
	// HashType and MMRHashType are the defaults of signing requests.
	HashType    string
	MMRHashType string
	AllowFiles  bool
	MaxFileSize int64
	// Clients are the hex encoded public keys of the clients allowed to use
	// the keys of the wallet through the service.
	Clients []string
}

// Default returns the configuration of a node storing its data in dir.
func Default(dir string) *Config {
	p := canon.DefaultPolicy()
	return &Config{
		System:      DefaultSystem,
		DB:          filepath.Join(dir, "wallet.db"),
		HashType:    digest.SHA256.String(),
		MMRHashType: digest.Default.String(),
		AllowFiles:  p.AllowFiles,
		MaxFileSize: p.MaxFileSize,
	}
}

// Load reads the configuration from path.
func Load(path string) (*Config, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("reading config: %v", err)
	}
	c := Default(filepath.Dir(path))
	if _, err := toml.Decode(string(buf), c); err != nil {
		return nil, attest.InputError("couldn't parse %s: %v", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	log.Lvl3("loaded config from", path)
	return c, nil
}

// Save writes the configuration to path, creating the directory if
// needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return xerrors.Errorf("creating config dir: %v", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return xerrors.Errorf("encoding config: %v", err)
	}
	return ioutil.WriteFile(path, buf.Bytes(), 0600)
}

// Validate checks the hash types and the file size limit.
func (c *Config) Validate() error {
	if _, err := digest.ParseType(c.HashType); err != nil {
		return err
	}
	if _, err := digest.ParseType(c.MMRHashType); err != nil {
		return err
	}
	for _, cl := range c.Clients {
		buf, err := hex.DecodeString(cl)
		if err != nil {
			return attest.InputError("invalid client key '%s': %v", cl, err)
		}
		if err := attest.Suite.Point().UnmarshalBinary(buf); err != nil {
			return attest.InputError("invalid client key '%s': %v", cl, err)
		}
	}
	if c.MaxFileSize < 0 || c.MaxFileSize > canon.MaxTransactionSize/2 {
		return attest.InputError("file size limit must be between 0 and %d",
			canon.MaxTransactionSize/2)
	}
	return nil
}

// SystemID returns the id of the configured system.
func (c *Config) SystemID() identity.ID {
	return identity.NewID(c.System, identity.ID{})
}

// Authorised returns true if the marshalled public key is one of the
// configured clients.
func (c *Config) Authorised(pub []byte) bool {
	if len(pub) == 0 {
		return false
	}
	for _, cl := range c.Clients {
		buf, err := hex.DecodeString(cl)
		if err == nil && bytes.Equal(buf, pub) {
			return true
		}
	}
	return false
}

// Policy returns the file policy.
func (c *Config) Policy() canon.Policy {
	return canon.Policy{AllowFiles: c.AllowFiles, MaxFileSize: c.MaxFileSize}
}

// HashTypes returns the parsed default hash types. The configuration must
// be valid.
func (c *Config) HashTypes() (digest.Type, digest.Type) {
	h, err := digest.ParseType(c.HashType)
	if err != nil {
		h = digest.SHA256
	}
	m, err := digest.ParseType(c.MMRHashType)
	if err != nil {
		m = digest.Default
	}
	return h, m
}
