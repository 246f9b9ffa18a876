package main

import (
	"errors"

	"github.com/hamba/cmd"
	"gopkg.in/urfave/cli.v2"
)

func runAgent(c *cli.Context) error {
	ctx, err := cmd.NewContext(c)
	if err != nil {
		return err
	}

	store, err := newStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr, membership, err := newManager(ctx, store)
	if err != nil {
		return err
	}
	defer mgr.Stop()
	defer membership.Close()

	join := ctx.StringSlice(flagJoin)
	if len(join) > 0 {
		if err := membership.Join(join...); err != nil {
			return err
		}
	}

	app, err := newApplication(ctx, mgr, membership)
	if err != nil {
		return err
	}
	defer app.Close()

	<-cmd.WaitForSignals()

	if err := membership.Leave(); err != nil {
		return err
	}

	return nil
}

func runSplit(c *cli.Context) error {
	ctx, err := cmd.NewContext(c)
	if err != nil {
		return err
	}

	logDirs := ctx.StringSlice(flagLogDirs)
	if len(logDirs) == 0 {
		return errors.New("at least one log dir is required")
	}

	store, err := newStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr, membership, err := newManager(ctx, store)
	if err != nil {
		return err
	}
	defer mgr.Stop()
	defer membership.Close()

	join := ctx.StringSlice(flagJoin)
	if len(join) > 0 {
		if err := membership.Join(join...); err != nil {
			return err
		}
	}

	size, err := mgr.SplitLogs(logDirs...)
	if err != nil {
		return err
	}
	ctx.Logger().Info("split logs", "bytes", size, "dirs", logDirs)

	return membership.Leave()
}
