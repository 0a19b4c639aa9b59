// Package mcpserver exposes the generation pipeline as MCP tools so an
// editor agent can repair, classify and recover Swift sources directly.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/moasq/swiftsmith/internal/orchestration"
	"github.com/moasq/swiftsmith/internal/recovery"
	"github.com/moasq/swiftsmith/internal/swift"
)

// Pipeline is the orchestrator as seen by the tools.
type Pipeline interface {
	Generate(ctx context.Context, description, name string) orchestration.Result
	Modify(ctx context.Context, existing []swift.File, request string) orchestration.Result
	Recover(ctx context.Context, errs []string, files []swift.File) recovery.Outcome
}

// New builds the MCP server with every tool registered.
func New(p Pipeline, version string, logger zerolog.Logger) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "swiftsmith",
			Version: version,
		},
		nil,
	)
	t := &tools{pipeline: p, logger: logger}

	mcp.AddTool(server, &mcp.Tool{
		Name:        "repair_swift",
		Description: "Apply deterministic syntax repairs to Swift files: single-quoted strings, stray semicolons, doubled quotes, unbalanced braces, deprecated SwiftUI modifiers and missing imports. Returns the repaired files and the paths that changed. Does not call an LLM.",
	}, t.repair)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "classify_errors",
		Description: "Classify raw Swift compiler errors into categories such as missing_type or protocol_conformance and return the error fingerprint used to cap recovery attempts.",
	}, t.classify)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "recover_build",
		Description: "Run targeted repair strategies against Swift files given the compiler errors from a failed build. Attempts per error fingerprint are capped; the state is EXHAUSTED once the cap is reached.",
	}, t.recover)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_app",
		Description: "Generate a complete SwiftUI app from a natural-language description. Always returns a runnable file set; fallback_used is true when the generated code could not be salvaged.",
	}, t.generate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "modify_app",
		Description: "Apply a natural-language change request to an existing SwiftUI file set. Files the model does not return are kept unchanged.",
	}, t.modify)

	return server
}

// Run serves the tools over stdio until the client disconnects or ctx is
// cancelled.
func Run(ctx context.Context, p Pipeline, version string, logger zerolog.Logger) error {
	return New(p, version, logger).Run(ctx, &mcp.StdioTransport{})
}
