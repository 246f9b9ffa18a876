package main

import (
	"log"
	"os"

	"github.com/hamba/cmd"
	"gopkg.in/urfave/cli.v2"
)

import _ "github.com/joho/godotenv/autoload"

const (
	flagName        = "name"
	flagDataDir     = "data-dir"
	flagSerfAddr    = "serf-addr"
	flagEncryptKey  = "encrypt"
	flagJoin        = "join"
	flagZKAddrs     = "zk-addrs"
	flagZKNamespace = "zk-namespace"
	flagArchiveDir  = "archive-dir"
	flagLogDirs     = "log-dirs"
)

var version = "¯\\_(ツ)_/¯"

var coordinatorFlags = cmd.Flags{
	&cli.StringFlag{
		Name:    flagName,
		Usage:   "The coordinator name.",
		EnvVars: []string{"SPLITLOG_NAME"},
	},
	&cli.StringFlag{
		Name:    flagDataDir,
		Usage:   "The path under which to store membership state.",
		Value:   "/tmp/splitlog",
		EnvVars: []string{"SPLITLOG_DATA_DIR"},
	},
	&cli.StringFlag{
		Name:    flagSerfAddr,
		Usage:   "The address for Serf to bind on.",
		Value:   "0.0.0.0:8301",
		EnvVars: []string{"SPLITLOG_SERF_ADDR"},
	},
	&cli.StringFlag{
		Name:    flagEncryptKey,
		Usage:   "The encryption key to secure Serf.",
		EnvVars: []string{"SPLITLOG_ENCRYPTION_KEY"},
	},
	&cli.StringSliceFlag{
		Name:    flagJoin,
		Usage:   "The serf addresses of workers to join at start time.",
		Value:   nil,
		EnvVars: []string{"SPLITLOG_JOIN"},
	},
	&cli.StringSliceFlag{
		Name:    flagZKAddrs,
		Usage:   "The addresses of the ZooKeeper ensemble.",
		Value:   cli.NewStringSlice("127.0.0.1:2181"),
		EnvVars: []string{"SPLITLOG_ZK_ADDRS"},
	},
	&cli.StringFlag{
		Name:    flagZKNamespace,
		Usage:   "The ZooKeeper path tasks are published under.",
		Value:   "/splitlog",
		EnvVars: []string{"SPLITLOG_ZK_NAMESPACE"},
	},
	&cli.StringFlag{
		Name:    flagArchiveDir,
		Usage:   "The path to archive fully split log files under.",
		Value:   "/tmp/splitlog/archive",
		EnvVars: []string{"SPLITLOG_ARCHIVE_DIR"},
	},
}

var commands = []*cli.Command{
	{
		Name:   "agent",
		Usage:  "Run the split coordinator agent",
		Flags:  coordinatorFlags.Merge(cmd.CommonFlags),
		Action: runAgent,
	},
	{
		Name:  "split",
		Usage: "Split the log files in the given directories and exit",
		Flags: cmd.Flags{
			&cli.StringSliceFlag{
				Name:    flagLogDirs,
				Usage:   "The directories of log files to split.",
				EnvVars: []string{"SPLITLOG_LOG_DIRS"},
			},
		}.Merge(coordinatorFlags).Merge(cmd.CommonFlags),
		Action: runSplit,
	},
	{
		Name:   "keygen",
		Usage:  "Generate a Serf encryption key",
		Action: runKeyGen,
	},
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "splitlog",
		Version:  version,
		Commands: commands,
	}
}

func main() {
	app := newApp()

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
