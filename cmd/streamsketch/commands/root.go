// Package commands implements the streamsketch CLI commands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/streamsketch/pkg/version"
)

// GlobalFlags are the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

// NewRootCommand builds the streamsketch command tree.
func NewRootCommand() *cobra.Command {
	flags := &GlobalFlags{}

	rootCmd := &cobra.Command{
		Use:   "streamsketch",
		Short: "Streaming sketches for frequencies, moments, counts and quantiles",
		Long: `streamsketch keeps small probabilistic summaries of unbounded streams.

Commands:
  ingest    Feed line records from files or stdin into configured sketches
  serve     Expose the sketches over an HTTP API
  mcp       Expose the sketches as MCP tools on stdio
  simulate  Run seeded accuracy trials for each sketch kind
  config    Validate configuration or print the sketch schema`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "config file (default: search streamsketch.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(NewIngestCommand(flags))
	rootCmd.AddCommand(NewServeCommand(flags))
	rootCmd.AddCommand(NewMCPCommand(flags))
	rootCmd.AddCommand(NewSimulateCommand(flags))
	rootCmd.AddCommand(NewConfigCommand(flags))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
