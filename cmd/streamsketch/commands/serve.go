package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/streamsketch/internal/server"
	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
)

// NewServeCommand creates the HTTP server command.
func NewServeCommand(global *GlobalFlags) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured sketches over HTTP",
		Long: `Start an HTTP server exposing the configured sketches.

Routes:
  GET    /v1/sketches              list every sketch
  GET    /v1/sketches/{name}?key=  query one sketch
  POST   /v1/sketches/{name}       apply {"key", "count", "value"}
  DELETE /v1/sketches/{name}       reset one sketch
  GET    /metrics, /healthz, /readyz`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(global, observability.ModeServe, true)
			if err != nil {
				return err
			}
			defer rt.close()

			if host != "" {
				rt.cfg.Server.Host = host
			}

			if port > 0 {
				rt.cfg.Server.Port = port
			}

			red, err := observability.NewREDMetrics(rt.providers.Meter)
			if err != nil {
				return err
			}

			srv := server.New(rt.reg,
				server.WithLogger(rt.logger()),
				server.WithTracer(rt.providers.Tracer),
				server.WithREDMetrics(red),
				server.WithMetricsHandler(rt.providers.MetricsHandler),
			)

			return srv.Run(cmd.Context(), rt.cfg.Server)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default: server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default: server.port)")

	return cmd
}
