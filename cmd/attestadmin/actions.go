package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"go.dedis.ch/attest"
	"go.dedis.ch/attest/canon"
	"go.dedis.ch/attest/config"
	"go.dedis.ch/attest/decrypt"
	"go.dedis.ch/attest/digest"
	"go.dedis.ch/attest/envelope"
	"go.dedis.ch/attest/identity"
	"go.dedis.ch/attest/signer"
	"go.dedis.ch/attest/store"
	"go.dedis.ch/onet/v3/log"
	"gopkg.in/urfave/cli.v1"
)

func keygen(c *cli.Context) error {
	_, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	k, err := identity.GenerateKey()
	if err != nil {
		return err
	}
	if _, err := w.PutKey(k); err != nil {
		return err
	}
	addr := identity.NewPubKeyHashAddress(&k.PublicKey)
	fmt.Fprintln(c.App.Writer, "Address:", addr)
	fmt.Fprintln(c.App.Writer, "Public key:", identity.NewPubKeyAddress(&k.PublicKey))
	c.App.Metadata["Address"] = addr.String()
	return nil
}

func keysList(c *cli.Context) error {
	_, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	infos, err := w.Keys()
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Fprintf(c.App.Writer, "%s %s %s\n", info.Address, info.UUID,
			info.Created.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func viewkey(c *cli.Context) error {
	_, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	vk, pub := envelope.NewViewingKey()
	if err := w.PutViewingKey(vk); err != nil {
		return err
	}
	buf, err := pub.MarshalBinary()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Viewing key:", hex.EncodeToString(buf))
	c.App.Metadata["ViewingKey"] = hex.EncodeToString(buf)
	return nil
}

func identityRegister(c *cli.Context) error {
	if c.NArg() < 2 {
		return errors.New("please give: name address [address...]")
	}
	cfg, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	var addrs []identity.Address
	for _, a := range c.Args().Tail() {
		addr, err := identity.ParseAddress(a)
		if err != nil {
			return err
		}
		addrs = append(addrs, addr)
	}
	id := identity.NewIdentity(c.Args().First(), cfg.SystemID(), c.Int("minsigs"), addrs...)
	if err := id.Usable(); err != nil {
		return err
	}
	if err := w.PutIdentity(id); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Identity:", id.ID)
	c.App.Metadata["Identity"] = id.ID.String()
	return nil
}

func lookupIdentity(cfg *config.Config, w *store.Store, arg string) (*identity.Identity, error) {
	if id, err := identity.ParseID(arg); err == nil {
		return w.LookupIdentity(id)
	}
	return w.ResolveName(arg, cfg.SystemID())
}

func identityRevoke(c *cli.Context) error {
	cfg, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	id, err := lookupIdentity(cfg, w, c.Args().First())
	if err != nil {
		return err
	}
	id.Revoked = true
	return w.PutIdentity(id)
}

func identityShow(c *cli.Context) error {
	cfg, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	id, err := lookupIdentity(cfg, w, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Identity %s (%s)\n", id.Name, id.ID)
	fmt.Fprintf(c.App.Writer, "Signatures: %d of %d\n", id.MinSigs, len(id.PrimaryAddresses))
	for _, a := range id.PrimaryAddresses {
		fmt.Fprintln(c.App.Writer, "-", a)
	}
	if id.Revoked {
		fmt.Fprintln(c.App.Writer, "Revoked")
	}
	return nil
}

// request builds a signing request from the item flags.
func request(c *cli.Context, cfg *config.Config) (*signer.Request, error) {
	h, m := cfg.HashTypes()
	var err error
	if name := c.String("hashtype"); name != "" {
		if h, err = digest.ParseType(name); err != nil {
			return nil, err
		}
	}
	if name := c.String("mmrhashtype"); name != "" {
		if m, err = digest.ParseType(name); err != nil {
			return nil, err
		}
	}
	req := &signer.Request{
		Destination: c.String("dest"),
		HashType:    h,
		MMRHashType: m,
		CreateMMR:   c.Bool("mmr"),
		BlockHeight: uint32(c.Uint("height")),
	}
	for _, s := range c.StringSlice("message") {
		req.Items = append(req.Items, canon.NewMessage(s))
	}
	for _, s := range c.StringSlice("hex") {
		req.Items = append(req.Items, canon.NewHex(s))
	}
	for _, s := range c.StringSlice("base64") {
		req.Items = append(req.Items, canon.NewBase64(s))
	}
	for _, s := range c.StringSlice("file") {
		req.Items = append(req.Items, canon.NewFile(s))
	}
	for _, s := range c.StringSlice("hash") {
		hash, err := digest.ParseHash(s)
		if err != nil {
			return nil, err
		}
		req.Items = append(req.Items, canon.NewHash(hash))
	}
	if salts := c.StringSlice("salt"); len(salts) > 0 {
		for _, s := range salts {
			salt, err := hex.DecodeString(s)
			if err != nil {
				return nil, attest.InputError("invalid salt: %v", err)
			}
			req.Salts = append(req.Salts, salt)
		}
	}
	return req, nil
}

func newSigner(cfg *config.Config, w *store.Store) *signer.Signer {
	return &signer.Signer{
		SystemID: cfg.SystemID(),
		Keys:     w,
		Registry: w,
		Chain:    w,
		Policy:   cfg.Policy(),
	}
}

func sign(c *cli.Context) error {
	cfg, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	req, err := request(c, cfg)
	if err != nil {
		return err
	}
	req.Salted = c.Bool("salted")
	req.ReturnKeys = c.Bool("keys")
	if p := c.String("prior"); p != "" {
		if req.PriorSignature, err = hex.DecodeString(p); err != nil {
			return attest.InputError("invalid prior signature: %v", err)
		}
	}
	if e := c.String("encrypt"); e != "" {
		buf, err := hex.DecodeString(e)
		if err != nil {
			return attest.InputError("invalid viewing key: %v", err)
		}
		req.EncryptTo = attest.Suite.Point()
		if err := req.EncryptTo.UnmarshalBinary(buf); err != nil {
			return attest.InputError("invalid viewing key: %v", err)
		}
	}
	res, err := newSigner(cfg, w).SignData(req)
	if err != nil {
		return err
	}
	log.Lvl2("signed", len(req.Items), "items")
	out := c.App.Writer
	fmt.Fprintln(out, "Hash:", res.Hash)
	if !res.MMRRoot.IsZero() {
		fmt.Fprintln(out, "MMR root:", res.MMRRoot)
	}
	fmt.Fprintln(out, "Status:", res.Status)
	fmt.Fprintln(out, "Height:", res.BlockHeight)
	fmt.Fprintln(out, "Signature:", hex.EncodeToString(res.Signature))
	c.App.Metadata["Signature"] = hex.EncodeToString(res.Signature)
	var descs []string
	for i, d := range res.Descriptors {
		buf, err := d.Encode()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Descriptor %d: %x\n", i, buf)
		if len(d.Salt) > 0 {
			fmt.Fprintf(out, "Salt %d: %x\n", i, d.Salt)
		}
		descs = append(descs, hex.EncodeToString(buf))
	}
	c.App.Metadata["Descriptors"] = descs
	for i, k := range res.Keys {
		fmt.Fprintf(out, "Leaf key %d: %x\n", i, k)
	}
	return nil
}

func verify(c *cli.Context) error {
	cfg, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	req, err := request(c, cfg)
	if err != nil {
		return err
	}
	sig, err := hex.DecodeString(c.String("signature"))
	if err != nil {
		return attest.InputError("invalid signature: %v", err)
	}
	res, err := newSigner(cfg, w).VerifyData(req, sig)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Hash:", res.Hash)
	fmt.Fprintln(c.App.Writer, "Status:", res.Status)
	return nil
}

func parseDescriptor(s string) (*canon.Descriptor, error) {
	buf, err := hex.DecodeString(s)
	if err != nil {
		return nil, attest.InputError("invalid descriptor: %v", err)
	}
	return canon.DecodeDescriptor(buf)
}

func decryptCmd(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("please give: descriptor")
	}
	cfg, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	d, err := parseDescriptor(c.Args().First())
	if err != nil {
		return err
	}
	req := &decrypt.Request{Descriptor: d, Retrieve: c.Bool("retrieve")}
	if s := c.String("ssk"); s != "" {
		if req.SSK, err = hex.DecodeString(s); err != nil {
			return attest.InputError("invalid leaf key: %v", err)
		}
	}
	if s := c.String("viewkey"); s != "" {
		buf, err := hex.DecodeString(s)
		if err != nil {
			return attest.InputError("invalid viewing key: %v", err)
		}
		req.ViewingKey = attest.Suite.Scalar()
		if err := req.ViewingKey.UnmarshalBinary(buf); err != nil {
			return attest.InputError("invalid viewing key: %v", err)
		}
	}
	r := &decrypt.Resolver{Keys: w, Refs: w, SystemID: cfg.SystemID()}
	res, err := r.Decrypt(req)
	if err != nil {
		return err
	}
	printDescriptor(c, res.Descriptor)
	for _, d := range res.Retrieved {
		fmt.Fprintln(c.App.Writer, "Retrieved:")
		printDescriptor(c, d)
	}
	return nil
}

func printDescriptor(c *cli.Context, d *canon.Descriptor) {
	out := c.App.Writer
	if d.Label != "" {
		fmt.Fprintln(out, "Label:", d.Label)
	}
	fmt.Fprintln(out, "Type:", d.MimeType)
	switch {
	case d.Encrypted():
		fmt.Fprintf(out, "Encrypted: %d bytes\n", len(d.Ciphertext))
	case d.MimeType == canon.MimeText:
		fmt.Fprintln(out, "Data:", string(d.Data))
	default:
		fmt.Fprintf(out, "Data: %x\n", d.Data)
	}
}

func parseRef(c *cli.Context, cfg *config.Config) (*canon.Reference, error) {
	if c.NArg() < 2 {
		return nil, errors.New("please give: txid output")
	}
	txid, err := hex.DecodeString(c.Args().Get(0))
	if err != nil || len(txid) != 32 {
		return nil, attest.ReferenceError("invalid txid %s", c.Args().Get(0))
	}
	out, err := strconv.ParseUint(c.Args().Get(1), 10, 32)
	if err != nil {
		return nil, attest.ReferenceError("invalid output: %v", err)
	}
	return &canon.Reference{
		SystemID:    cfg.SystemID().Bytes(),
		TxID:        txid,
		Output:      uint32(out),
		ObjectIndex: canon.NoObjectIndex,
	}, nil
}

func refPut(c *cli.Context) error {
	cfg, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	ref, err := parseRef(c, cfg)
	if err != nil {
		return err
	}
	var descs []*canon.Descriptor
	for _, s := range c.Args()[2:] {
		d, err := parseDescriptor(s)
		if err != nil {
			return err
		}
		descs = append(descs, d)
	}
	if err := w.PutReference(ref, descs); err != nil {
		return err
	}
	d, err := ref.Descriptor()
	if err != nil {
		return err
	}
	buf, err := d.Encode()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Reference: %x\n", buf)
	c.App.Metadata["Reference"] = hex.EncodeToString(buf)
	return nil
}

func refGet(c *cli.Context) error {
	cfg, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	ref, err := parseRef(c, cfg)
	if err != nil {
		return err
	}
	if c.NArg() > 2 {
		idx, err := strconv.ParseInt(c.Args().Get(2), 10, 32)
		if err != nil {
			return attest.ReferenceError("invalid object index: %v", err)
		}
		ref.ObjectIndex = int32(idx)
	}
	descs, err := w.Resolve(ref)
	if err != nil {
		return err
	}
	for _, d := range descs {
		printDescriptor(c, d)
	}
	return nil
}

func height(c *cli.Context) error {
	_, w, err := openWallet(c)
	if err != nil {
		return err
	}
	defer w.Close()
	if c.NArg() > 0 {
		h, err := strconv.ParseUint(c.Args().First(), 10, 32)
		if err != nil {
			return err
		}
		if err := w.SetHeight(uint32(h)); err != nil {
			return err
		}
	}
	fmt.Fprintln(c.App.Writer, "Height:", w.Height())
	return nil
}
