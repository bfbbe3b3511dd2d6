package config

import (
	"encoding/hex"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/attest"
	"go.dedis.ch/attest/canon"
	"go.dedis.ch/attest/digest"
	"go.dedis.ch/attest/identity"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/xerrors"
)

func TestConfig_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", FileName)
	c := Default(dir)
	c.System = "vrsctest"
	c.AllowFiles = true
	c.MaxFileSize = 1000
	c.MMRHashType = "keccak256"
	require.NoError(t, c.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, c, loaded)
	require.Equal(t, identity.NewID("vrsctest", identity.ID{}), loaded.SystemID())
	require.Equal(t, canon.Policy{AllowFiles: true, MaxFileSize: 1000}, loaded.Policy())
	h, m := loaded.HashTypes()
	require.Equal(t, digest.SHA256, h)
	require.Equal(t, digest.Keccak256, m)
}

func TestConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, ioutil.WriteFile(path, []byte("System = \"other\"\n"), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "other", c.System)
	require.Equal(t, filepath.Join(dir, "wallet.db"), c.DB)
	require.False(t, c.AllowFiles)
	require.Equal(t, int64(canon.MaxTransactionSize/2), c.MaxFileSize)
	_, m := c.HashTypes()
	require.Equal(t, digest.Blake2b, m)
}

func TestConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)

	require.NoError(t, ioutil.WriteFile(path, []byte("HashType = \"md5\"\n"), 0600))
	_, err := Load(path)
	require.True(t, xerrors.Is(err, attest.ErrInput))

	require.NoError(t, ioutil.WriteFile(path, []byte("MaxFileSize = 5000000\n"), 0600))
	_, err = Load(path)
	require.True(t, xerrors.Is(err, attest.ErrInput))

	require.NoError(t, ioutil.WriteFile(path, []byte("System = \n"), 0600))
	_, err = Load(path)
	require.True(t, xerrors.Is(err, attest.ErrInput))

	_, err = Load(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)
}

func TestConfig_Clients(t *testing.T) {
	kp := key.NewKeyPair(attest.Suite)
	pub, err := kp.Public.MarshalBinary()
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	c := Default(dir)
	require.False(t, c.Authorised(pub))
	c.Clients = []string{hex.EncodeToString(pub)}
	require.NoError(t, c.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.True(t, loaded.Authorised(pub))
	require.False(t, loaded.Authorised(nil))
	other, err := key.NewKeyPair(attest.Suite).Public.MarshalBinary()
	require.NoError(t, err)
	require.False(t, loaded.Authorised(other))

	c.Clients = []string{"zz"}
	require.True(t, xerrors.Is(c.Validate(), attest.ErrInput))
	c.Clients = []string{"0102"}
	require.True(t, xerrors.Is(c.Validate(), attest.ErrInput))
}
