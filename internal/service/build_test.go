package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/moasq/swiftsmith/internal/swift"
)

func TestFindBuiltAppInDerivedDataIOSExactMatch(t *testing.T) {
	derived := t.TempDir()
	productsDir := filepath.Join(derived, "Build", "Products", "Debug-iphonesimulator")
	if err := os.MkdirAll(productsDir, 0o755); err != nil {
		t.Fatalf("failed to create products dir: %v", err)
	}

	// Multiple .app bundles present; exact scheme match must win deterministically.
	for _, name := range []string{"Other.app", "MyApp.app"} {
		if err := os.MkdirAll(filepath.Join(productsDir, name), 0o755); err != nil {
			t.Fatalf("failed to create app bundle %s: %v", name, err)
		}
	}

	got, err := findBuiltAppInDerivedData(derived, "MyApp")
	if err != nil {
		t.Fatalf("findBuiltAppInDerivedData() error = %v", err)
	}
	want := filepath.Join(productsDir, "MyApp.app")
	if got != want {
		t.Fatalf("findBuiltAppInDerivedData() = %q, want %q", got, want)
	}
}

func TestFindBuiltAppInDerivedDataMissingExactMatchReturnsError(t *testing.T) {
	derived := t.TempDir()
	productsDir := filepath.Join(derived, "Build", "Products", "Debug-iphonesimulator")
	if err := os.MkdirAll(productsDir, 0o755); err != nil {
		t.Fatalf("failed to create products dir: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(productsDir, "Other.app"), 0o755); err != nil {
		t.Fatalf("failed to create app bundle: %v", err)
	}

	_, err := findBuiltAppInDerivedData(derived, "MyApp")
	if err == nil {
		t.Fatal("expected error when exact app bundle is missing")
	}
	if !strings.Contains(err.Error(), "MyApp.app") {
		t.Fatalf("expected error to mention MyApp.app, got %q", err.Error())
	}
}

func TestFindBuiltAppInDerivedDataNoAppsReturnsError(t *testing.T) {
	derived := t.TempDir()
	productsDir := filepath.Join(derived, "Build", "Products", "Debug-iphonesimulator")
	if err := os.MkdirAll(productsDir, 0o755); err != nil {
		t.Fatalf("failed to create products dir: %v", err)
	}

	_, err := findBuiltAppInDerivedData(derived, "MyApp")
	if err == nil {
		t.Fatal("expected error when no app bundles exist")
	}
	if !strings.Contains(err.Error(), "no .app bundle") {
		t.Fatalf("unexpected error: %q", err.Error())
	}
}

func TestIsAlreadyBootedSimError(t *testing.T) {
	tests := []struct {
		name   string
		errMsg string
		output string
		want   bool
	}{
		{
			name:   "already booted text",
			errMsg: "exit status 149",
			output: "Device is already booted",
			want:   true,
		},
		{
			name:   "current state booted text",
			errMsg: "exit status 149",
			output: "Unable to boot device in current state: Booted",
			want:   true,
		},
		{
			name:   "different simctl error",
			errMsg: "exit status 1",
			output: "No devices are booted",
			want:   false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := isAlreadyBootedSimError(fakeErr(tc.errMsg), []byte(tc.output))
			if got != tc.want {
				t.Fatalf("isAlreadyBootedSimError() = %v, want %v", got, tc.want)
			}
		})
	}
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

type call struct {
	dir  string
	name string
	args []string
}

// fakeToolchain records invocations and simulates xcodegen/xcodebuild.
type fakeToolchain struct {
	calls       []call
	buildOutput string
	buildErr    error
	block       bool
}

func (f *fakeToolchain) run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, call{dir: dir, name: name, args: args})
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if name != "xcodebuild" {
		return nil, nil
	}
	if f.buildErr == nil {
		for i, a := range args {
			if a == "-derivedDataPath" {
				app := filepath.Join(args[i+1], "Build", "Products", "Debug-iphonesimulator", "Counter.app")
				if err := os.MkdirAll(app, 0o755); err != nil {
					return nil, err
				}
			}
		}
	}
	return []byte(f.buildOutput), f.buildErr
}

func counterProject() Project {
	return Project{
		AppName:  "Counter",
		BundleID: "com.example.counter",
		Files: []swift.File{
			{Path: "CounterApp.swift", Content: "import SwiftUI\n@main struct CounterApp: App { var body: some Scene { WindowGroup { ContentView() } } }\n"},
			{Path: "Views/ContentView.swift", Content: "import SwiftUI\nstruct ContentView: View { var body: some View { Text(\"0\") } }\n"},
		},
	}
}

func TestXcodeBuilderSuccess(t *testing.T) {
	root := t.TempDir()
	fake := &fakeToolchain{}
	b := NewXcodeBuilder(root, WithRunner(fake.run))

	res, err := b.Build(context.Background(), counterProject())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !res.Success {
		t.Fatalf("Build() success = false, errors %v", res.Errors)
	}
	if !strings.HasSuffix(res.AppPath, "Counter.app") {
		t.Errorf("AppPath = %q, want Counter.app bundle", res.AppPath)
	}
	if len(fake.calls) != 2 || fake.calls[0].name != "xcodegen" || fake.calls[1].name != "xcodebuild" {
		t.Fatalf("unexpected tool calls: %+v", fake.calls)
	}
	if got := fake.calls[1].args; !contains(got, "-scheme") || !contains(got, "Counter") {
		t.Errorf("xcodebuild args = %v, want scheme Counter", got)
	}

	if filepath.Dir(res.Dir) != root || !strings.HasPrefix(filepath.Base(res.Dir), "Counter-") {
		t.Fatalf("Dir = %q, want a Counter-* directory under %q", res.Dir, root)
	}
	if fake.calls[0].dir != res.Dir {
		t.Errorf("xcodegen ran in %q, want %q", fake.calls[0].dir, res.Dir)
	}
	for _, rel := range []string{"project.yml", "Counter/CounterApp.swift", "Counter/Views/ContentView.swift"} {
		if _, err := os.Stat(filepath.Join(res.Dir, filepath.FromSlash(rel))); err != nil {
			t.Errorf("expected %s to be written: %v", rel, err)
		}
	}

	if err := b.Release(res); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(res.Dir); !os.IsNotExist(err) {
		t.Errorf("build directory survived Release: %v", err)
	}
}

func TestXcodeBuilderReleaseRejectsForeignDir(t *testing.T) {
	b := NewXcodeBuilder(t.TempDir())
	if err := b.Release(BuildResult{Dir: t.TempDir()}); err == nil {
		t.Fatal("expected error releasing a directory outside the work root")
	}
	if err := b.Release(BuildResult{}); err != nil {
		t.Fatalf("Release() of an empty result = %v", err)
	}
}

func TestXcodeBuilderFailedBuildCleansUp(t *testing.T) {
	root := t.TempDir()
	fake := &fakeToolchain{buildOutput: "A.swift:1:1: error: boom", buildErr: errors.New("exit status 65")}
	res, err := NewXcodeBuilder(root, WithRunner(fake.run)).Build(context.Background(), counterProject())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Dir != "" {
		t.Errorf("Dir = %q, want empty for a failed build", res.Dir)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("work root still holds %d entries after a failed build", len(entries))
	}
}

func TestXcodeBuilderConcurrentBuildsAreIsolated(t *testing.T) {
	// xcodebuild reads ContentView.swift after a delay; a shared directory
	// would let the other build overwrite it in between.
	run := func(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
		if name != "xcodebuild" {
			return nil, nil
		}
		time.Sleep(50 * time.Millisecond)
		data, err := os.ReadFile(filepath.Join(dir, "Counter", "Views", "ContentView.swift"))
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("built %q", string(data))
	}
	b := NewXcodeBuilder(t.TempDir(), WithRunner(run))

	markers := []string{"// request A\n", "// request B\n"}
	got := make([]string, len(markers))
	var wg sync.WaitGroup
	for i, marker := range markers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := counterProject()
			p.Files[1].Content = marker
			res, err := b.Build(context.Background(), p)
			if err != nil {
				got[i] = "error: " + err.Error()
				return
			}
			got[i] = strings.Join(res.Errors, "")
		}()
	}
	wg.Wait()

	for i, marker := range markers {
		if want := fmt.Sprintf("built %q", marker); !strings.Contains(got[i], want) {
			t.Errorf("build %d = %q, want it to compile its own sources %q", i, got[i], marker)
		}
	}
}

func TestXcodeBuilderCompilerErrors(t *testing.T) {
	fake := &fakeToolchain{
		buildOutput: strings.Join([]string{
			"/tmp/Counter/ContentView.swift:3:5: error: cannot find type 'Item' in scope",
			"/tmp/Counter/ContentView.swift:3:5: error: cannot find type 'Item' in scope",
			"/tmp/Counter/ContentView.swift:9:1: warning: variable 'x' was never used",
			"** BUILD FAILED **",
		}, "\n"),
		buildErr: errors.New("exit status 65"),
	}
	b := NewXcodeBuilder(t.TempDir(), WithRunner(fake.run))

	res, err := b.Build(context.Background(), counterProject())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Success {
		t.Fatal("expected failed build")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "cannot find type 'Item'") {
		t.Errorf("Errors = %v, want one deduplicated missing-type error", res.Errors)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want 1", res.Warnings)
	}
}

func TestXcodeBuilderFailureWithoutDiagnostics(t *testing.T) {
	fake := &fakeToolchain{buildOutput: "something went wrong", buildErr: errors.New("exit status 1")}
	b := NewXcodeBuilder(t.TempDir(), WithRunner(fake.run))

	res, err := b.Build(context.Background(), counterProject())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Success || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "xcodebuild failed") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestXcodeBuilderTimeout(t *testing.T) {
	fake := &fakeToolchain{block: true}
	b := NewXcodeBuilder(t.TempDir(), WithRunner(fake.run), WithTimeout(20*time.Millisecond))

	res, err := b.Build(context.Background(), counterProject())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.Success || len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "timed out") {
		t.Fatalf("expected timeout error, got %+v", res)
	}
}

func TestXcodeBuilderToolMissing(t *testing.T) {
	b := NewXcodeBuilder(t.TempDir())
	b.lookPath = func(name string) (string, error) { return "", errors.New("not found") }

	_, err := b.Build(context.Background(), counterProject())
	if !errors.Is(err, ErrToolMissing) {
		t.Fatalf("Build() error = %v, want ErrToolMissing", err)
	}
}

func TestWriteProjectReplacesStaleSources(t *testing.T) {
	dir := t.TempDir()
	p := counterProject()
	if err := WriteProject(dir, p); err != nil {
		t.Fatalf("WriteProject() error = %v", err)
	}
	p.Files = p.Files[:1]
	if err := WriteProject(dir, p); err != nil {
		t.Fatalf("WriteProject() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Counter", "Views", "ContentView.swift")); !os.IsNotExist(err) {
		t.Fatalf("stale file still present: %v", err)
	}
}

func TestWriteProjectRejectsEscapingPaths(t *testing.T) {
	p := counterProject()
	p.Files = append(p.Files, swift.File{Path: "../../evil.swift", Content: ""})
	if err := WriteProject(t.TempDir(), p); err == nil {
		t.Fatal("expected error for path outside the project")
	}
}

func TestParseOutput(t *testing.T) {
	out := "note: Using new build system\n" +
		"error: no such module 'Charts'\n" +
		"A.swift:1:1: error: expected '}' in struct\n" +
		"warning: deprecated\n"
	errs, warnings := ParseOutput(out)
	if len(errs) != 2 || errs[0] != "error: no such module 'Charts'" {
		t.Errorf("errors = %q", errs)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %q", warnings)
	}
}

func TestProjectYAML(t *testing.T) {
	out, err := ProjectYAML("Counter", "com.example.counter")
	if err != nil {
		t.Fatalf("ProjectYAML() error = %v", err)
	}
	var parsed xcodegenProject
	if err := yaml.Unmarshal(out, &parsed); err != nil {
		t.Fatalf("generated YAML does not parse: %v\n%s", err, out)
	}
	if parsed.Name != "Counter" || parsed.Options.BundleIDPrefix != "com.example" {
		t.Errorf("unexpected header: %+v", parsed)
	}
	target, ok := parsed.Targets["Counter"]
	if !ok {
		t.Fatalf("missing Counter target in:\n%s", out)
	}
	if target.Settings.Base["PRODUCT_BUNDLE_IDENTIFIER"] != "com.example.counter" {
		t.Errorf("bundle id = %q", target.Settings.Base["PRODUCT_BUNDLE_IDENTIFIER"])
	}
	if parsed.Options.DeploymentTarget["iOS"] != DeploymentTarget {
		t.Errorf("deployment target = %q", parsed.Options.DeploymentTarget["iOS"])
	}
}

func TestBundleID(t *testing.T) {
	tests := []struct {
		prefix, app, want string
	}{
		{"com.example", "Counter", "com.example.counter"},
		{"", "My Todo-List", "com.swiftsmith.mytodolist"},
		{"Com.Acme Corp", "Café", "com.acmecorp.caf"},
		{"com.example", "!!!", "com.example.app"},
	}
	for _, tt := range tests {
		if got := BundleID(tt.prefix, tt.app); got != tt.want {
			t.Errorf("BundleID(%q, %q) = %q, want %q", tt.prefix, tt.app, got, tt.want)
		}
	}
}

func TestSanitizeToPascalCase(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"my todo-list", "MyTodoList"},
		{"Counter", "Counter"},
		{"3d viewer", "App3dViewer"},
		{"", "App"},
	}
	for _, tt := range tests {
		if got := SanitizeToPascalCase(tt.in); got != tt.want {
			t.Errorf("SanitizeToPascalCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
