package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/cantina-forks/dal-node/cmd"
)

func init() {
	flags := cmd.NodeFlags()
	rootCmd.AddCommand(
		cmd.Init(flags),
		cmd.Start(flags),
	)
	rootCmd.SetHelpCommand(&cobra.Command{})
}

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	return rootCmd.ExecuteContext(context.Background())
}

var rootCmd = &cobra.Command{
	Use:   "dal [subcommand]",
	Short: "Data-availability node for publishing, gossiping and reconstructing slot data",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(c *cobra.Command, _ []string) error {
		ctx, err := cmd.ParseNodeFlags(c.Context(), c)
		if err != nil {
			return err
		}
		c.SetContext(ctx)
		return nil
	},
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}
