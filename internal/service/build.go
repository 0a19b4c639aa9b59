// Package service runs the external Apple toolchain: xcodegen and
// xcodebuild for compiling a generated file set, simctl for launching the
// result on a simulator.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/moasq/swiftsmith/internal/swift"
)

// ErrToolMissing is returned when xcodegen or xcodebuild is not installed.
var ErrToolMissing = errors.New("required build tool not found")

// DefaultBuildTimeout bounds one xcodegen + xcodebuild run.
const DefaultBuildTimeout = 3 * time.Minute

// BuildResult is the outcome of compiling a file set.
type BuildResult struct {
	Success  bool     `json:"success"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
	AppPath  string   `json:"app_path,omitempty"`
	// Dir is the build's private work directory. Only successful builds
	// keep it, since AppPath lives inside; Release removes it.
	Dir string `json:"-"`
}

// Project is one app to build.
type Project struct {
	AppName  string
	BundleID string
	Files    []swift.File
}

// Builder compiles a project. A returned error means the build could not
// run at all; compiler failures are reported in BuildResult.Errors.
type Builder interface {
	Build(ctx context.Context, p Project) (BuildResult, error)
}

// Runner executes name in dir and returns its combined output.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// XcodeBuilder writes the project to disk, generates an .xcodeproj with
// xcodegen and compiles it for the simulator with xcodebuild.
type XcodeBuilder struct {
	workRoot    string
	timeout     time.Duration
	destination string
	logger      zerolog.Logger
	run         Runner
	lookPath    func(string) (string, error)
}

// BuilderOption configures an XcodeBuilder.
type BuilderOption func(*XcodeBuilder)

func WithTimeout(d time.Duration) BuilderOption {
	return func(b *XcodeBuilder) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithSimulator pins the build destination to a named simulator.
func WithSimulator(name string) BuilderOption {
	return func(b *XcodeBuilder) {
		if name != "" {
			b.destination = fmt.Sprintf("platform=iOS Simulator,name=%s", name)
		}
	}
}

func WithBuildLogger(l zerolog.Logger) BuilderOption {
	return func(b *XcodeBuilder) { b.logger = l }
}

// WithRunner replaces the subprocess runner and skips tool lookup.
func WithRunner(r Runner) BuilderOption {
	return func(b *XcodeBuilder) {
		b.run = r
		b.lookPath = func(name string) (string, error) { return name, nil }
	}
}

// NewXcodeBuilder returns a builder that keeps projects under workRoot.
func NewXcodeBuilder(workRoot string, opts ...BuilderOption) *XcodeBuilder {
	b := &XcodeBuilder{
		workRoot:    workRoot,
		timeout:     DefaultBuildTimeout,
		destination: "generic/platform=iOS Simulator",
		logger:      zerolog.Nop(),
		run:         execRunner,
		lookPath:    exec.LookPath,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build implements Builder. Every call works in a fresh directory under the
// work root, so concurrent builds of the same app never share sources or
// derived data.
func (b *XcodeBuilder) Build(ctx context.Context, p Project) (res BuildResult, err error) {
	for _, tool := range []string{"xcodegen", "xcodebuild"} {
		if _, err := b.lookPath(tool); err != nil {
			return BuildResult{}, fmt.Errorf("%w: %s", ErrToolMissing, tool)
		}
	}
	if p.AppName == "" {
		return BuildResult{}, fmt.Errorf("project has no app name")
	}

	if err := os.MkdirAll(b.workRoot, 0o755); err != nil {
		return BuildResult{}, fmt.Errorf("failed to create build root: %w", err)
	}
	dir, err := os.MkdirTemp(b.workRoot, p.AppName+"-*")
	if err != nil {
		return BuildResult{}, fmt.Errorf("failed to create build directory: %w", err)
	}
	defer func() {
		if err != nil || !res.Success {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				b.logger.Warn().Err(rmErr).Str("dir", dir).Msg("failed to remove build directory")
			}
			res.Dir = ""
		}
	}()
	if err := WriteProject(dir, p); err != nil {
		return BuildResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	start := time.Now()

	if out, err := b.run(ctx, dir, "xcodegen", "generate"); err != nil {
		if timedOut(ctx) {
			return b.timeoutResult(), nil
		}
		return BuildResult{}, fmt.Errorf("xcodegen generate failed: %w%s", err, commandOutputSuffix(out))
	}

	derivedDataPath := filepath.Join(dir, ".swiftsmith", "DerivedData")
	if err := os.MkdirAll(derivedDataPath, 0o755); err != nil {
		return BuildResult{}, fmt.Errorf("failed to prepare derived data path %s: %w", derivedDataPath, err)
	}

	out, err := b.run(ctx, dir, "xcodebuild",
		"-project", p.AppName+".xcodeproj",
		"-scheme", p.AppName,
		"-derivedDataPath", derivedDataPath,
		"-destination", b.destination,
		"-quiet",
		"CODE_SIGNING_ALLOWED=NO",
		"build",
	)
	if timedOut(ctx) {
		b.logger.Warn().Str("app", p.AppName).Dur("timeout", b.timeout).Msg("build timed out")
		return b.timeoutResult(), nil
	}

	errs, warnings := ParseOutput(string(out))
	res = BuildResult{Success: err == nil, Errors: errs, Warnings: warnings, Dir: dir}
	if err != nil && len(res.Errors) == 0 {
		res.Errors = []string{fmt.Sprintf("xcodebuild failed: %v%s", err, commandOutputSuffix(tail(out, 20)))}
	}
	if res.Success {
		appPath, findErr := findBuiltAppInDerivedData(derivedDataPath, p.AppName)
		if findErr != nil {
			res.Warnings = append(res.Warnings, findErr.Error())
		}
		res.AppPath = appPath
	}

	b.logger.Info().
		Str("app", p.AppName).
		Bool("success", res.Success).
		Int("errors", len(res.Errors)).
		Int("warnings", len(res.Warnings)).
		Dur("elapsed", time.Since(start)).
		Msg("build finished")
	return res, nil
}

// Release removes the work directory of a finished build. The result's
// AppPath is invalid afterwards.
func (b *XcodeBuilder) Release(res BuildResult) error {
	if res.Dir == "" {
		return nil
	}
	rel, err := filepath.Rel(b.workRoot, res.Dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%s is not a build directory under %s", res.Dir, b.workRoot)
	}
	return os.RemoveAll(res.Dir)
}

func (b *XcodeBuilder) timeoutResult() BuildResult {
	return BuildResult{Errors: []string{fmt.Sprintf("build timed out after %s", b.timeout)}}
}

func timedOut(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// WriteProject writes p's files under dir/<AppName>/ and a project.yml
// next to them. Existing sources are replaced so files dropped by a
// modification do not linger in the build.
func WriteProject(dir string, p Project) error {
	sourceDir := filepath.Join(dir, p.AppName)
	if err := os.RemoveAll(sourceDir); err != nil {
		return fmt.Errorf("failed to clear %s: %w", sourceDir, err)
	}
	for _, f := range p.Files {
		rel := swift.NormalizePath(f.Path)
		if rel == "" || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			return fmt.Errorf("invalid file path %q", f.Path)
		}
		path := filepath.Join(sourceDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", rel, err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}

	yml, err := ProjectYAML(p.AppName, p.BundleID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "project.yml"), yml, 0o644); err != nil {
		return fmt.Errorf("failed to write project.yml: %w", err)
	}
	return nil
}

// ParseOutput extracts compiler error and warning lines from xcodebuild
// output, dropping duplicates while keeping first-seen order.
func ParseOutput(output string) (errs, warnings []string) {
	seen := map[string]bool{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || seen[line] {
			continue
		}
		switch {
		case strings.Contains(line, ": error:") || strings.HasPrefix(line, "error:"):
			errs = append(errs, line)
		case strings.Contains(line, ": warning:") || strings.HasPrefix(line, "warning:"):
			warnings = append(warnings, line)
		default:
			continue
		}
		seen[line] = true
	}
	return errs, warnings
}

// findBuiltAppInDerivedData looks for the expected .app bundle in a specific DerivedData path.
func findBuiltAppInDerivedData(derivedDataPath, scheme string) (string, error) {
	productsDir := filepath.Join(derivedDataPath, "Build", "Products", "Debug-iphonesimulator")
	entries, err := os.ReadDir(productsDir)
	if err != nil {
		return "", fmt.Errorf("failed to read build products in %s: %w", productsDir, err)
	}

	expectedApp := scheme + ".app"
	var foundApps []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), ".app") {
			foundApps = append(foundApps, entry.Name())
			if entry.Name() == expectedApp {
				return filepath.Join(productsDir, entry.Name()), nil
			}
		}
	}

	if len(foundApps) == 0 {
		return "", fmt.Errorf("no .app bundle found in %s (derived data path: %s)", productsDir, derivedDataPath)
	}

	sort.Strings(foundApps)
	return "", fmt.Errorf("expected %s in %s but found %d app bundle(s): %s", expectedApp, productsDir, len(foundApps), strings.Join(foundApps, ", "))
}

func commandOutputSuffix(output []byte) string {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return ""
	}
	return "\n" + trimmed
}

// tail returns the last n lines of output.
func tail(output []byte, n int) []byte {
	lines := strings.Split(strings.TrimRight(string(output), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return []byte(strings.Join(lines, "\n"))
}
