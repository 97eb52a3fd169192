package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/streamsketch/internal/registry"
)

// Tool name constants.
const (
	ToolNameList   = "sketch_list"
	ToolNameQuery  = "sketch_query"
	ToolNameUpdate = "sketch_update"
	ToolNameReset  = "sketch_reset"
)

// ErrEmptyName indicates the name parameter is empty.
var ErrEmptyName = errors.New("name parameter is required and must not be empty")

// ListInput is the input schema for sketch_list.
type ListInput struct{}

// QueryInput is the input schema for sketch_query.
type QueryInput struct {
	Name string `json:"name"          jsonschema:"sketch name as configured"`
	Key  string `json:"key,omitempty" jsonschema:"item key for countmin point queries"`
}

// UpdateInput is the input schema for sketch_update.
type UpdateInput struct {
	Name  string   `json:"name"            jsonschema:"sketch name as configured"`
	Key   string   `json:"key,omitempty"   jsonschema:"item key for countmin and tugofwar"`
	Count *int64   `json:"count,omitempty" jsonschema:"multiplicity of the record (default 1)"`
	Value *float64 `json:"value,omitempty" jsonschema:"numeric observation for frugal quantile sketches"`
}

// ResetInput is the input schema for sketch_reset.
type ResetInput struct {
	Name string `json:"name" jsonschema:"sketch name as configured"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) handleList(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return jsonResult(s.reg.Snapshot())
}

func (s *Server) handleQuery(_ context.Context, _ *mcpsdk.CallToolRequest, in QueryInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.Name == "" {
		return errorResult(ErrEmptyName)
	}

	var key []byte
	if in.Key != "" {
		key = []byte(in.Key)
	}

	res, err := s.reg.Query(in.Name, key)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(res)
}

func (s *Server) handleUpdate(ctx context.Context, _ *mcpsdk.CallToolRequest, in UpdateInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.Name == "" {
		return errorResult(ErrEmptyName)
	}

	rec := registry.KeyRecord(in.Key)
	if in.Count != nil {
		rec.Count = *in.Count
	}

	if in.Value != nil {
		rec.Value = *in.Value
		rec.HasValue = true
	}

	if err := s.reg.Apply(ctx, in.Name, rec); err != nil {
		return errorResult(err)
	}

	res, err := s.reg.Query(in.Name, rec.Key)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(res)
}

func (s *Server) handleReset(_ context.Context, _ *mcpsdk.CallToolRequest, in ResetInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if in.Name == "" {
		return errorResult(ErrEmptyName)
	}

	if err := s.reg.Reset(in.Name); err != nil {
		return errorResult(err)
	}

	return jsonResult(map[string]string{"reset": in.Name})
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
