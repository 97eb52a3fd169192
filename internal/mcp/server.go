// Package mcp implements a Model Context Protocol server exposing the sketch
// registry as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/streamsketch/internal/registry"
	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
	"github.com/Sumatoshi-tech/streamsketch/pkg/version"
)

const (
	serverName = "streamsketch"
	toolCount  = 4
)

// ServerDeps holds injectable dependencies for the MCP server.
// Zero-value fields use production defaults.
type ServerDeps struct {
	// Registry holds the sketches the tools operate on. Required.
	Registry *registry.Registry

	// Logger is an optional structured logger. Nil uses slog default.
	Logger *slog.Logger

	// Metrics is an optional RED metrics recorder. Nil disables per-tool metrics.
	Metrics *observability.REDMetrics

	// Tracer is an optional OTel tracer for per-tool-call spans. Nil disables tracing.
	Tracer trace.Tracer
}

// Server wraps the MCP SDK server with the sketch tools.
type Server struct {
	inner   *mcpsdk.Server
	reg     *registry.Registry
	mu      sync.RWMutex
	tools   []string
	metrics *observability.REDMetrics
	tracer  trace.Tracer
}

// NewServer creates an MCP server with every sketch tool registered.
func NewServer(deps ServerDeps) *Server {
	opts := &mcpsdk.ServerOptions{}
	if deps.Logger != nil {
		opts.Logger = deps.Logger
	}

	inner := mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		opts,
	)

	srv := &Server{
		inner:   inner,
		reg:     deps.Registry,
		tools:   make([]string, 0, toolCount),
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}

	srv.registerTools()

	return srv
}

// ListToolNames returns the sorted names of all registered tools.
func (s *Server) ListToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := slices.Clone(s.tools)
	slices.Sort(names)

	return names
}

// Run serves over stdio until the context is canceled or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport serves over transport until the context is canceled or
// the connection closes.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	err := s.inner.Run(ctx, transport)
	if err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

func (s *Server) registerTools() {
	addTool(s, ToolNameList, listToolDescription, s.handleList)
	addTool(s, ToolNameQuery, queryToolDescription, s.handleQuery)
	addTool(s, ToolNameUpdate, updateToolDescription, s.handleUpdate)
	addTool(s, ToolNameReset, resetToolDescription, s.handleReset)
}

func addTool[Input any](s *Server, name, description string, handler toolHandler[Input]) {
	mcpsdk.AddTool[Input, ToolOutput](s.inner, &mcpsdk.Tool{
		Name:        name,
		Description: description,
	}, withMetrics(s.metrics, name, withTracing(s.tracer, name, handler)))

	s.mu.Lock()
	s.tools = append(s.tools, name)
	s.mu.Unlock()
}

type toolHandler[Input any] = mcpsdk.ToolHandlerFor[Input, ToolOutput]

const (
	mcpSpanPrefix  = "mcp."
	traceIDMetaKey = "trace_id"
)

// withTracing opens a span per call and, when the span is sampled, appends
// its trace id to the result content.
func withTracing[Input any](tracer trace.Tracer, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if tracer == nil {
		return handler
	}

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		ctx, span := tracer.Start(ctx, mcpSpanPrefix+toolName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("mcp.tool", toolName)),
		)
		defer span.End()

		result, output, err := handler(ctx, req, input)

		if err != nil || (result != nil && result.IsError) {
			span.SetStatus(codes.Error, "tool call failed")
		}

		sc := span.SpanContext()
		if sc.IsSampled() && result != nil {
			result.Content = append(result.Content,
				&mcpsdk.TextContent{Text: fmt.Sprintf("%s=%s", traceIDMetaKey, sc.TraceID().String())})
		}

		return result, output, err
	}
}

// withMetrics records RED metrics per call.
func withMetrics[Input any](metrics *observability.REDMetrics, toolName string, handler toolHandler[Input]) toolHandler[Input] {
	if metrics == nil {
		return handler
	}

	op := mcpSpanPrefix + toolName

	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input Input) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()

		defer metrics.TrackInflight(ctx, op)()

		result, output, err := handler(ctx, req, input)

		status := observability.StatusOK
		if err != nil || (result != nil && result.IsError) {
			status = observability.StatusError
		}

		metrics.RecordRequest(ctx, op, status, time.Since(start))

		return result, output, err
	}
}

const (
	listToolDescription = "List every configured sketch with its kind, current estimate " +
		"and parameters."

	queryToolDescription = "Read one sketch. For countmin sketches pass key to get that " +
		"item's estimated frequency; otherwise the sketch summary is returned."

	updateToolDescription = "Feed one record to a sketch. countmin and tugofwar need key, " +
		"frugal needs value or a numeric key, morris counts count events. count defaults to 1."

	resetToolDescription = "Reset a sketch to its initial empty state."
)
