package main

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/attest/envelope"
	"go.dedis.ch/onet/v3/log"
)

// This is required; without it onet/log/testuitl.go:interestingGoroutines will
// call main.main() interesting.
func TestMain(m *testing.M) {
	log.MainTest(m)
}

func run(t *testing.T, dir string, args ...string) string {
	b := &bytes.Buffer{}
	cliApp.Writer = b
	cliApp.ErrWriter = b
	err := cliApp.Run(append([]string{"attestadmin", "-c", dir}, args...))
	require.NoError(t, err, strings.Join(args, " "))
	return b.String()
}

func runErr(t *testing.T, dir string, args ...string) error {
	b := &bytes.Buffer{}
	cliApp.Writer = b
	cliApp.ErrWriter = b
	return cliApp.Run(append([]string{"attestadmin", "-c", dir}, args...))
}

func TestCli(t *testing.T) {
	dir := t.TempDir()

	log.Lvl1("keygen")
	require.Contains(t, run(t, dir, "keygen"), "Address:")
	addr := cliApp.Metadata["Address"].(string)
	require.Contains(t, run(t, dir, "keys"), addr)

	log.Lvl1("identity")
	run(t, dir, "identity", "register", "alice", addr)
	out := run(t, dir, "identity", "show", "alice")
	require.Contains(t, out, "Signatures: 1 of 1")
	require.Contains(t, out, addr)
	require.Contains(t, run(t, dir, "height", "10"), "Height: 10")

	log.Lvl1("sign and verify")
	out = run(t, dir, "sign", "--dest", "alice", "-m", "hello world")
	require.Contains(t, out, "Status: complete")
	require.Contains(t, out, "Height: 10")
	sig := cliApp.Metadata["Signature"].(string)
	out = run(t, dir, "verify", "--dest", "alice", "-m", "hello world", "-s", sig)
	require.Contains(t, out, "Status: complete")
	require.Error(t, runErr(t, dir, "verify", "--dest", "alice", "-m", "hello", "-s", sig))

	out = run(t, dir, "sign", "--dest", addr, "-m", "a", "-m", "b", "--mmrhashtype", "keccak256")
	require.Contains(t, out, "MMR root:")

	log.Lvl1("encrypt and decrypt")
	run(t, dir, "viewkey")
	vk := cliApp.Metadata["ViewingKey"].(string)
	run(t, dir, "sign", "--dest", "alice", "-m", "secret", "-m", "other", "--salted",
		"--encrypt", vk, "--keys")
	descs := cliApp.Metadata["Descriptors"].([]string)
	require.Len(t, descs, 2)
	require.Contains(t, run(t, dir, "decrypt", descs[0]), "Data: secret")

	log.Lvl1("decrypt with a viewing key outside the wallet")
	vk2, pub2 := envelope.NewViewingKey()
	pubBuf, err := pub2.MarshalBinary()
	require.NoError(t, err)
	vkBuf, err := vk2.MarshalBinary()
	require.NoError(t, err)
	run(t, dir, "sign", "--dest", "alice", "-m", "private", "--encrypt", hex.EncodeToString(pubBuf))
	outside := cliApp.Metadata["Descriptors"].([]string)
	require.Len(t, outside, 1)
	require.Error(t, runErr(t, dir, "decrypt", outside[0]))
	require.Contains(t, run(t, dir, "decrypt", "--viewkey", hex.EncodeToString(vkBuf), outside[0]),
		"Data: private")
	require.Error(t, runErr(t, dir, "decrypt", "--viewkey", "zz", outside[0]))

	log.Lvl1("references")
	txid := strings.Repeat("ab", 32)
	run(t, dir, "ref", "put", txid, "0", descs[1])
	ref := cliApp.Metadata["Reference"].(string)
	require.Contains(t, run(t, dir, "decrypt", "--retrieve", ref), "Data: other")
	require.Contains(t, run(t, dir, "ref", "get", txid, "0", "0"), "Encrypted:")
	require.Error(t, runErr(t, dir, "ref", "get", txid, "1"))

	log.Lvl1("revoke")
	run(t, dir, "identity", "revoke", "alice")
	require.Error(t, runErr(t, dir, "sign", "--dest", "alice", "-m", "too late"))
}
