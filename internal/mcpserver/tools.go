package mcpserver

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/orchestration"
	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/swift"
)

type tools struct {
	pipeline Pipeline
	logger   zerolog.Logger
}

type filesInput struct {
	Files []swift.File `json:"files" jsonschema:"Swift source files, each with a project-relative path and its full content"`
}

type repairOutput struct {
	Files   []swift.File `json:"files"`
	Changed []string     `json:"changed"`
	Fixes   []string     `json:"fixes_applied"`
}

func (t *tools) repair(ctx context.Context, req *mcp.CallToolRequest, in filesInput) (*mcp.CallToolResult, repairOutput, error) {
	if len(in.Files) == 0 {
		return nil, repairOutput{}, errors.New("files is required")
	}
	engine := repair.New(repair.WithLogger(t.logger))
	out := repairOutput{Files: make([]swift.File, len(in.Files)), Changed: []string{}, Fixes: []string{}}
	for i, f := range in.Files {
		repaired, fixes := engine.RepairFile(f)
		out.Files[i] = repaired
		if repaired.Content != f.Content {
			out.Changed = append(out.Changed, f.Path)
		}
		out.Fixes = append(out.Fixes, fixes...)
	}
	t.logger.Debug().Int("files", len(in.Files)).Int("changed", len(out.Changed)).Msg("repair_swift")
	return nil, out, nil
}

type classifyInput struct {
	Errors []string `json:"errors" jsonschema:"raw compiler error lines, e.g. Item.swift:3:8: error: cannot find 'Foo' in scope"`
}

type classifiedError struct {
	Category   string `json:"category"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Related    string `json:"related,omitempty"`
	Message    string `json:"message,omitempty"`
}

type classifyOutput struct {
	Fingerprint string            `json:"fingerprint"`
	Categories  []string          `json:"categories"`
	Errors      []classifiedError `json:"errors"`
	Summary     string            `json:"summary"`
}

func (t *tools) classify(ctx context.Context, req *mcp.CallToolRequest, in classifyInput) (*mcp.CallToolResult, classifyOutput, error) {
	cat := diagnostics.Classify(in.Errors)
	out := classifyOutput{
		Fingerprint: diagnostics.Fingerprint(cat),
		Categories:  []string{},
		Errors:      []classifiedError{},
		Summary:     cat.Summary(),
	}
	for _, c := range cat.Categories() {
		out.Categories = append(out.Categories, string(c))
	}
	for _, rec := range cat.All() {
		out.Errors = append(out.Errors, classifiedError{
			Category:   string(rec.Category),
			File:       rec.File,
			Line:       rec.Line,
			Identifier: rec.Identifier,
			Related:    rec.Related,
			Message:    rec.Message,
		})
	}
	return nil, out, nil
}

type recoverInput struct {
	Errors []string     `json:"errors" jsonschema:"compiler errors from the failed build"`
	Files  []swift.File `json:"files" jsonschema:"the Swift files that failed to build"`
}

type recoverOutput struct {
	Success     bool         `json:"success"`
	State       string       `json:"state"`
	Attempts    int          `json:"attempts"`
	Fingerprint string       `json:"fingerprint"`
	Files       []swift.File `json:"files"`
	Fixes       []string     `json:"fixes_applied"`
	Message     string       `json:"message,omitempty"`
}

func (t *tools) recover(ctx context.Context, req *mcp.CallToolRequest, in recoverInput) (*mcp.CallToolResult, recoverOutput, error) {
	if len(in.Errors) == 0 || len(in.Files) == 0 {
		return nil, recoverOutput{}, errors.New("errors and files are required")
	}
	res := t.pipeline.Recover(ctx, in.Errors, in.Files)
	out := recoverOutput{
		Success:  res.Success,
		State:    string(res.State),
		Attempts: res.Attempts,
		Files:    nonNilFiles(res.Files),
		Fixes:    nonNil(res.FixesApplied),
		Message:  res.Message,
	}
	if n := len(res.Fingerprints); n > 0 {
		out.Fingerprint = res.Fingerprints[n-1]
	}
	return nil, out, nil
}

type generateInput struct {
	Description string `json:"description" jsonschema:"what the app should do"`
	AppName     string `json:"app_name,omitempty" jsonschema:"optional app name; derived from the description when empty"`
}

type modifyInput struct {
	Files   []swift.File `json:"files" jsonschema:"the current app files"`
	Request string       `json:"request" jsonschema:"the change to make"`
}

type appOutput struct {
	AppName      string       `json:"app_name"`
	BundleID     string       `json:"bundle_id"`
	Success      bool         `json:"success"`
	FallbackUsed bool         `json:"fallback_used"`
	BuildSkipped bool         `json:"build_skipped"`
	Stages       []string     `json:"stages"`
	Errors       []string     `json:"errors"`
	Providers    []string     `json:"providers"`
	Score        float64      `json:"validation_score"`
	Files        []swift.File `json:"files"`
}

func (t *tools) generate(ctx context.Context, req *mcp.CallToolRequest, in generateInput) (*mcp.CallToolResult, appOutput, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, appOutput{}, errors.New("description is required")
	}
	return nil, toAppOutput(t.pipeline.Generate(ctx, in.Description, in.AppName)), nil
}

func (t *tools) modify(ctx context.Context, req *mcp.CallToolRequest, in modifyInput) (*mcp.CallToolResult, appOutput, error) {
	if strings.TrimSpace(in.Request) == "" || len(in.Files) == 0 {
		return nil, appOutput{}, errors.New("files and request are required")
	}
	return nil, toAppOutput(t.pipeline.Modify(ctx, in.Files, in.Request)), nil
}

func toAppOutput(res orchestration.Result) appOutput {
	m := res.Metadata
	return appOutput{
		AppName:      res.AppName,
		BundleID:     res.BundleID,
		Success:      m.Success,
		FallbackUsed: m.FallbackUsed,
		BuildSkipped: m.BuildSkipped,
		Stages:       nonNil(m.StagesCompleted),
		Errors:       nonNil(m.ErrorsEncountered),
		Providers:    nonNil(m.LLMsUsed),
		Score:        m.ValidationScore,
		Files:        nonNilFiles(res.Files),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilFiles(f []swift.File) []swift.File {
	if f == nil {
		return []swift.File{}
	}
	return f
}
