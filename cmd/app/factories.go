package main

import (
	"net"
	"strconv"

	"github.com/hamba/cmd"
	"github.com/nrwiersma/splitlog"
	"github.com/nrwiersma/splitlog/split"
	"github.com/nrwiersma/splitlog/split/zk"
)

// Application =============================

func newApplication(c *cmd.Context, mgr *split.Manager, membership *split.Membership) (*splitlog.Application, error) {
	app := splitlog.NewApplication(splitlog.Config{
		Manager:    mgr,
		Membership: membership,
		Logger:     c.Logger(),
		Statter:    c.Statter(),
	})

	return app, nil
}

// Manager =================================

func newManager(c *cmd.Context, store *zk.Client) (*split.Manager, *split.Membership, error) {
	cfg := split.NewConfig()
	cfg.Namespace = c.String(flagZKNamespace)
	cfg.DataDir = c.String(flagDataDir)
	cfg.EncryptKey = c.String(flagEncryptKey)
	cfg.Logger = c.Logger()
	cfg.Statter = c.Statter()

	if name := c.String(flagName); name != "" {
		cfg.Name = name
	}

	finisher, err := splitlog.NewArchiveFinisher(c.String(flagArchiveDir), c.Logger())
	if err != nil {
		return nil, nil, err
	}
	cfg.Finisher = finisher

	// Setup the serf addr
	bindIP, bindPort, err := net.SplitHostPort(c.String(flagSerfAddr))
	if err != nil {
		return nil, nil, err
	}
	cfg.SerfConfig.MemberlistConfig.BindAddr = bindIP
	cfg.SerfConfig.MemberlistConfig.BindPort, err = strconv.Atoi(bindPort)
	if err != nil {
		return nil, nil, err
	}

	if err := store.EnsurePath(cfg.Namespace); err != nil {
		return nil, nil, err
	}

	mgr, err := split.New(store, cfg)
	if err != nil {
		return nil, nil, err
	}

	membership, err := split.NewMembership(cfg, mgr.HandleDeadWorker)
	if err != nil {
		mgr.Stop()
		return nil, nil, err
	}

	mgr.Init(false)

	return mgr, membership, nil
}

// Store ===================================

func newStore(c *cmd.Context) (*zk.Client, error) {
	return zk.Connect(zk.Config{
		Addrs:  c.StringSlice(flagZKAddrs),
		Logger: c.Logger(),
	})
}
