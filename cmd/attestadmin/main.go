// attestadmin manages a local wallet and signs, verifies and decrypts data
// with it.
package main

import (
	"os"
	"path/filepath"

	"go.dedis.ch/attest/config"
	"go.dedis.ch/attest/store"
	"go.dedis.ch/onet/v3/cfgpath"
	"go.dedis.ch/onet/v3/log"
	"gopkg.in/urfave/cli.v1"
)

var cliApp = cli.NewApp()

// getDataPath is a function pointer so that tests can hook and modify this.
var getDataPath = cfgpath.GetDataPath

var gitTag = "dev"

func init() {
	cliApp.Name = "attestadmin"
	cliApp.Usage = "Sign and attest data with identities"
	cliApp.Version = gitTag
	cliApp.Commands = cmds // stored in "commands.go"
	cliApp.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "debug, d",
			Value: 0,
			Usage: "debug-level: 1 for terse, 5 for maximal",
		},
		cli.StringFlag{
			Name:   "config, c",
			EnvVar: "ATTEST_CONFIG",
			Value:  getDataPath(cliApp.Name),
			Usage:  "path to configuration-directory",
		},
	}
	cliApp.Before = func(c *cli.Context) error {
		log.SetDebugVisible(c.Int("debug"))
		return nil
	}
}

func main() {
	err := cliApp.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the configuration of the directory given by the
// --config flag, and creates a default one if there is none.
func loadConfig(c *cli.Context) (*config.Config, error) {
	dir := c.GlobalString("config")
	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default(dir)
		log.Lvl2("creating new config in", path)
		return cfg, cfg.Save(path)
	}
	return config.Load(path)
}

// openWallet loads the configuration and opens the wallet it points to.
func openWallet(c *cli.Context) (*config.Config, *store.Store, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Debug > c.GlobalInt("debug") {
		log.SetDebugVisible(cfg.Debug)
	}
	w, err := store.Open(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	return cfg, w, nil
}
