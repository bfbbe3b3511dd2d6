package main

import "gopkg.in/urfave/cli.v1"

var itemFlags = []cli.Flag{
	cli.StringSliceFlag{
		Name:  "message, m",
		Usage: "a text message",
	},
	cli.StringSliceFlag{
		Name:  "hex",
		Usage: "hex encoded data",
	},
	cli.StringSliceFlag{
		Name:  "base64",
		Usage: "base64 encoded data",
	},
	cli.StringSliceFlag{
		Name:  "file, f",
		Usage: "a file, if allowed by the configuration",
	},
	cli.StringSliceFlag{
		Name:  "hash",
		Usage: "a precomputed 32 byte hash in hex",
	},
	cli.StringFlag{
		Name:  "hashtype",
		Usage: "hash of the items: sha256, sha256d, blake2b, keccak256 or blake3",
	},
	cli.StringFlag{
		Name:  "mmrhashtype",
		Usage: "hash of the mmr nodes",
	},
	cli.BoolFlag{
		Name:  "mmr",
		Usage: "build an mmr even for a single item",
	},
	cli.StringSliceFlag{
		Name:  "salt",
		Usage: "hex salt of the item at the same position, empty for none",
	},
	cli.UintFlag{
		Name:  "height",
		Usage: "block height of the signature, the stored height if 0",
	},
	cli.StringFlag{
		Name:  "dest",
		Usage: "address, identity address or identity name to sign for",
	},
}

var cmds = cli.Commands{
	{
		Name:    "keygen",
		Usage:   "create a new signing key and store it in the wallet",
		Aliases: []string{"kg"},
		Action:  keygen,
	},
	{
		Name:   "keys",
		Usage:  "list the signing keys of the wallet",
		Action: keysList,
	},
	{
		Name:   "viewkey",
		Usage:  "create a new viewing key and print its public key",
		Action: viewkey,
	},
	{
		Name:  "identity",
		Usage: "handle the identities known to the wallet",
		Subcommands: cli.Commands{
			{
				Name:      "register",
				Usage:     "store an identity controlled by the given addresses",
				ArgsUsage: "name address [address...]",
				Action:    identityRegister,
				Flags: []cli.Flag{
					cli.IntFlag{
						Name:  "minsigs",
						Value: 1,
						Usage: "number of signatures required",
					},
				},
			},
			{
				Name:      "revoke",
				Usage:     "mark an identity as revoked",
				ArgsUsage: "name",
				Action:    identityRevoke,
			},
			{
				Name:      "show",
				Usage:     "print an identity",
				ArgsUsage: "name|i-address",
				Action:    identityShow,
			},
		},
	},
	{
		Name:   "sign",
		Usage:  "sign one or more items",
		Action: sign,
		Flags: append(append([]cli.Flag{}, itemFlags...),
			cli.BoolFlag{
				Name:  "salted",
				Usage: "salt every item of the mmr with a random salt",
			},
			cli.StringFlag{
				Name:  "prior",
				Usage: "hex encoded signature to add shares to",
			},
			cli.StringFlag{
				Name:  "encrypt",
				Usage: "hex encoded viewing key to encrypt the data to",
			},
			cli.BoolFlag{
				Name:  "keys",
				Usage: "print the leaf keys of the encrypted data",
			},
		),
	},
	{
		Name:   "verify",
		Usage:  "verify a signature over one or more items",
		Action: verify,
		Flags: append(append([]cli.Flag{}, itemFlags...),
			cli.StringFlag{
				Name:  "signature, s",
				Usage: "hex encoded signature",
			},
		),
	},
	{
		Name:      "decrypt",
		Usage:     "decrypt a hex encoded descriptor",
		ArgsUsage: "descriptor",
		Action:    decryptCmd,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "ssk",
				Usage: "hex encoded leaf key",
			},
			cli.StringFlag{
				Name:  "viewkey",
				Usage: "hex encoded private viewing key",
			},
			cli.BoolFlag{
				Name:  "retrieve",
				Usage: "resolve a decrypted reference",
			},
		},
	},
	{
		Name:  "ref",
		Usage: "handle data stored in transaction outputs",
		Subcommands: cli.Commands{
			{
				Name:      "put",
				Usage:     "store hex encoded descriptors as an output",
				ArgsUsage: "txid output descriptor [descriptor...]",
				Action:    refPut,
			},
			{
				Name:      "get",
				Usage:     "print the descriptors of an output",
				ArgsUsage: "txid output [object]",
				Action:    refGet,
			},
		},
	},
	{
		Name:      "height",
		Usage:     "print or set the chain height used for new signatures",
		ArgsUsage: "[height]",
		Action:    height,
	},
}
