package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/streamsketch/internal/mcp"
	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(global *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes the configured sketches as tools:
  - sketch_list: every sketch with its estimate and parameters
  - sketch_query: one sketch, or one key of a countmin sketch
  - sketch_update: apply a record
  - sketch_reset: clear a sketch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(global, observability.ModeMCP, false)
			if err != nil {
				return err
			}
			defer rt.close()

			red, err := observability.NewREDMetrics(rt.providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Registry: rt.reg,
				Logger:   rt.logger(),
				Metrics:  red,
				Tracer:   rt.providers.Tracer,
			})

			return srv.Run(cmd.Context())
		},
	}
}
