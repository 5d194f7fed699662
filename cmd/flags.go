package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/cantina-forks/dal-node/logs"
	"github.com/cantina-forks/dal-node/nodebuilder"
)

var (
	nodeStoreFlag  = "node.store"
	nodeConfigFlag = "node.config"
	logLevelFlag   = "log.level"
)

// NodeFlags gives the set of node package flags.
func NodeFlags() *flag.FlagSet {
	flags := &flag.FlagSet{}

	flags.String(
		nodeStoreFlag,
		"~/.dal-node",
		"The path to the root directory of the node store",
	)
	flags.String(
		nodeConfigFlag,
		"",
		"Path to a customized node config TOML file",
	)
	flags.String(
		logLevelFlag,
		"info",
		"Minimum log level: debug, info, warn, error, fatal",
	)

	return flags
}

// ParseNodeFlags parses node flags from the given cmd and applies their
// values to the context.
func ParseNodeFlags(ctx context.Context, cmd *cobra.Command) (context.Context, error) {
	logLevel := cmd.Flag(logLevelFlag).Value.String()
	level, err := logging.LevelFromString(logLevel)
	if err != nil {
		return ctx, fmt.Errorf("cmd: while parsing '%s': %w", logLevelFlag, err)
	}
	logs.SetAllLoggers(level)

	path, err := homedir.Expand(filepath.Clean(cmd.Flag(nodeStoreFlag).Value.String()))
	if err != nil {
		return ctx, fmt.Errorf("cmd: expanding '%s': %w", nodeStoreFlag, err)
	}
	ctx = WithStorePath(ctx, path)

	nodeConfig := cmd.Flag(nodeConfigFlag).Value.String()
	if nodeConfig != "" {
		cfg, err := nodebuilder.LoadConfig(nodeConfig)
		if err != nil {
			return ctx, fmt.Errorf("cmd: while parsing '%s': %w", nodeConfigFlag, err)
		}
		ctx = WithNodeConfig(ctx, cfg)
	} else if cfg, err := nodebuilder.LoadConfig(filepath.Join(path, "config.toml")); err == nil {
		// config already stored under the node directory
		ctx = WithNodeConfig(ctx, cfg)
	}
	return ctx, nil
}
