// Package repair applies ordered text fixers to generated Swift source.
// It knows nothing about compiler output; every step is a pure
// string-to-string transform that leaves content unchanged when it cannot
// apply confidently.
package repair

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/moasq/swiftsmith/internal/swift"
)

// Step is a single named text transform.
type Step struct {
	Name  string
	Apply func(string) string
}

// Engine runs its steps in a fixed order over every Swift file.
type Engine struct {
	steps  []Step
	logger zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-file fix reporting.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSteps replaces the default step list.
func WithSteps(steps ...Step) Option {
	return func(e *Engine) { e.steps = steps }
}

// New creates an Engine with the default step order. Brace balancing runs
// last because earlier steps can change what counts as code.
func New(opts ...Option) *Engine {
	e := &Engine{
		steps:  DefaultSteps(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultSteps returns the standard ordered step list.
func DefaultSteps() []Step {
	return []Step{
		{Name: "normalize-quotes", Apply: NormalizeQuotes},
		{Name: "collapse-doubled-quotes", Apply: CollapseDoubledQuotes},
		{Name: "strip-semicolons", Apply: StripSemicolons},
		{Name: "insert-imports", Apply: InsertImports},
		{Name: "rewrite-deprecated", Apply: RewriteDeprecated},
		{Name: "foreach-ids", Apply: FixForEachIDs},
		{Name: "balance-braces", Apply: BalanceBraces},
	}
}

// Repair returns a new file set with every Swift file repaired. Non-Swift
// files pass through untouched.
func (e *Engine) Repair(files []swift.File) []swift.File {
	out := swift.Clone(files)
	for i := range out {
		repaired, fixes := e.RepairFile(out[i])
		out[i] = repaired
		if len(fixes) > 0 {
			e.logger.Debug().Str("file", repaired.Path).Strs("fixes", fixes).Msg("syntax repair applied")
		}
	}
	return out
}

// RepairFile repairs one file and reports which steps changed it.
func (e *Engine) RepairFile(f swift.File) (swift.File, []string) {
	if !swift.IsSwift(f.Path) {
		return f, nil
	}
	var fixes []string
	content := f.Content
	for _, step := range e.steps {
		next := applyStep(step, content)
		if next != content {
			fixes = append(fixes, fmt.Sprintf("%s: %s", f.Path, step.Name))
			content = next
		}
	}
	return swift.File{Path: f.Path, Content: content}, fixes
}

// RepairContent runs every step over a single source string.
func (e *Engine) RepairContent(content string) string {
	for _, step := range e.steps {
		content = applyStep(step, content)
	}
	return content
}

// applyStep runs one step; a panicking step leaves content unchanged.
func applyStep(step Step, content string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = content
		}
	}()
	return step.Apply(content)
}
