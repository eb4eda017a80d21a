package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/unimported/pkg/report"
	"github.com/Sumatoshi-tech/unimported/pkg/scan"
)

// ToolNameScan is the project scan tool.
const ToolNameScan = "unimported_scan"

// Sentinel errors for tool input validation.
var (
	// ErrEmptyPath indicates the path parameter is empty.
	ErrEmptyPath = errors.New("path parameter is required and must not be empty")
	// ErrPathNotAbsolute indicates the path is relative.
	ErrPathNotAbsolute = errors.New("path must be an absolute path")
	// ErrPathNotDirectory indicates the path is missing or not a directory.
	ErrPathNotDirectory = errors.New("path is not a directory")
)

// ScanInput is the input schema for the unimported_scan tool.
type ScanInput struct {
	IgnoreUntracked   bool   `json:"ignore_untracked,omitempty"    jsonschema:"skip files git reports as untracked"`
	IncludeDev        bool   `json:"include_dev,omitempty"         jsonschema:"also check devDependencies for unused entries"`
	NoCache           bool   `json:"no_cache,omitempty"            jsonschema:"do not read or write the on-disk cache"`
	Path              string `json:"path"                          jsonschema:"absolute path to the project root"`
	StrictTypeImports bool   `json:"strict_type_imports,omitempty" jsonschema:"files reached only through type imports count as unimported"`
}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) handleScan(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input ScanInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	err := validatePath(input.Path)
	if err != nil {
		return errorResult(err)
	}

	settings := s.settings
	settings.Scan.IgnoreUntracked = settings.Scan.IgnoreUntracked || input.IgnoreUntracked
	settings.Scan.IncludeDev = settings.Scan.IncludeDev || input.IncludeDev
	settings.Scan.StrictTypeImports = settings.Scan.StrictTypeImports || input.StrictTypeImports

	if input.NoCache {
		settings.Cache.Enabled = false
	}

	out, err := s.scanner.Run(ctx, scan.Request{Root: input.Path, Settings: &settings})
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(out.Report)
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: %s", ErrPathNotAbsolute, path)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrPathNotDirectory, path)
	}

	return nil
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
func jsonResult(rep *report.Report) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: rep}, nil
}
