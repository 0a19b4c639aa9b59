package commands

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/moasq/swiftsmith/internal/config"
	"github.com/moasq/swiftsmith/internal/llm"
	"github.com/moasq/swiftsmith/internal/service"
	"github.com/moasq/swiftsmith/internal/storage"
	"github.com/moasq/swiftsmith/internal/swift"
)

func TestLoadProjectRoundTrip(t *testing.T) {
	dir := t.TempDir()
	want := service.Project{
		AppName:  "Notes",
		BundleID: "com.example.notes",
		Files: []swift.File{
			{Path: "NotesApp.swift", Content: "import SwiftUI\n@main struct NotesApp: App {}\n"},
			{Path: "Views/ContentView.swift", Content: "import SwiftUI\nstruct ContentView: View {}\n"},
		},
	}
	if err := service.WriteProject(dir, want); err != nil {
		t.Fatalf("WriteProject: %v", err)
	}

	p, err := loadProject(dir)
	if err != nil {
		t.Fatalf("loadProject: %v", err)
	}
	if p.AppName != "Notes" || p.BundleID != "com.example.notes" {
		t.Fatalf("got app %q bundle %q", p.AppName, p.BundleID)
	}
	if len(p.Files) != 2 || p.Files[0].Path != "NotesApp.swift" || p.Files[1].Path != "Views/ContentView.swift" {
		t.Fatalf("files = %+v", p.Files)
	}

	p.Files = p.Files[:1]
	if err := p.save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	reloaded, err := loadProject(dir)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(reloaded.Files) != 1 {
		t.Fatalf("stale sources survived save: %+v", reloaded.Files)
	}
}

func TestLoadProjectErrors(t *testing.T) {
	if _, err := loadProject(t.TempDir()); err == nil {
		t.Error("expected error without project.yml")
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "project.yml"), []byte("name: Empty\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadProject(dir); err == nil || !strings.Contains(err.Error(), "no Swift sources") {
		t.Errorf("err = %v, want no Swift sources", err)
	}
}

func TestReadSwiftFilesSkipsBuildOutput(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("B.swift", "struct B {}")
	write("A.swift", "struct A {}")
	write("README.md", "docs")
	write("build/Gen.swift", "struct Gen {}")
	write(".hidden/H.swift", "struct H {}")
	write("App.xcodeproj/X.swift", "struct X {}")

	files, err := readSwiftFiles(root)
	if err != nil {
		t.Fatalf("readSwiftFiles: %v", err)
	}
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	if !slices.Equal(paths, []string{"A.swift", "B.swift"}) {
		t.Errorf("paths = %v", paths)
	}
}

func TestReadErrors(t *testing.T) {
	in := strings.NewReader("\nA.swift:1:1: error: cannot find 'x' in scope\n   \nB.swift:2:3: error: missing return\n")
	errs, err := readErrors("-", in)
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 2 || !strings.HasPrefix(errs[1], "B.swift") {
		t.Errorf("errs = %q", errs)
	}

	path := filepath.Join(t.TempDir(), "errors.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	errs, err = readErrors(path, nil)
	if err != nil || len(errs) != 2 {
		t.Errorf("errs = %q, err = %v", errs, err)
	}

	if _, err := readErrors(filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestProviderChoicesExcludeCLI(t *testing.T) {
	choices := providerChoices()
	if slices.Contains(choices, llm.ProviderClaudeCLI) {
		t.Errorf("choices include %s: %v", llm.ProviderClaudeCLI, choices)
	}
	if !slices.Contains(choices, llm.ProviderAnthropic) || !slices.Contains(choices, llm.ProviderOpenAI) {
		t.Errorf("choices = %v", choices)
	}
}

func TestPickProviderRejectsUnknown(t *testing.T) {
	if _, err := pickProvider([]string{"bard"}, "Provider"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
	p, err := pickProvider([]string{"OpenAI"}, "Provider")
	if err != nil || p != llm.ProviderOpenAI {
		t.Errorf("got %q, %v", p, err)
	}
}

func TestCollectSwift(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "Item.swift")
	if err := os.WriteFile(file, []byte("struct Item {}"), 0o644); err != nil {
		t.Fatal(err)
	}

	files, base, err := collectSwift(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "Item.swift" || base != dir {
		t.Errorf("files = %+v base = %q", files, base)
	}

	files, base, err = collectSwift(dir)
	if err != nil || len(files) != 1 || base != dir {
		t.Errorf("dir: files = %+v base = %q err = %v", files, base, err)
	}

	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := collectSwift(txt); err == nil {
		t.Error("expected error for non-Swift file")
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		g    storage.Generation
		want string
	}{
		{storage.Generation{Success: true}, "ok"},
		{storage.Generation{Success: true, HealingApplied: true}, "healed"},
		{storage.Generation{Success: true, FallbackUsed: true}, "fallback"},
		{storage.Generation{}, "failed"},
	}
	for _, tt := range tests {
		if got := outcome(tt.g); got != tt.want {
			t.Errorf("outcome(%+v) = %q, want %q", tt.g, got, tt.want)
		}
	}
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{time.Minute, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{3 * time.Hour, "3 hours ago"},
		{48 * time.Hour, "2 days ago"},
		{90 * 24 * time.Hour, "3 months ago"},
	}
	for _, tt := range tests {
		if got := timeAgo(tt.d); got != tt.want {
			t.Errorf("timeAgo(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestGenerationsTable(t *testing.T) {
	now := time.Now()
	out := generationsTable([]storage.Generation{{
		RequestID:       "req-1",
		Operation:       "generate",
		AppName:         "Notes",
		Success:         true,
		HealingApplied:  true,
		ValidationScore: 0.95,
		Duration:        1500 * time.Millisecond,
		CreatedAt:       now.Add(-2 * time.Hour),
	}}, now)
	for _, want := range []string{"REQUEST", "req-1", "generate", "Notes", "healed", "0.95", "1.5s", "2 hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestAttemptsTable(t *testing.T) {
	out := attemptsTable([]storage.Attempt{{
		Attempt:     2,
		State:       "repairing",
		Fingerprint: "abc123",
		Categories:  []string{"missing_type", "protocol_conformance"},
		Fixes:       []string{"added Hashable"},
	}})
	for _, want := range []string{"FINGERPRINT", "abc123", "repairing", "missing_type, protocol_conformance", "added Hashable"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestToolLines(t *testing.T) {
	lines := toolLines([]config.Tool{
		{Name: "Xcode", Available: true, Detail: "16.0"},
		{Name: "xcodegen", Hint: "brew install xcodegen"},
	})
	if len(lines) != 2 || !lines[0].Available || lines[0].Detail != "16.0" || lines[1].Hint != "brew install xcodegen" {
		t.Errorf("lines = %+v", lines)
	}
}

func TestLastOf(t *testing.T) {
	if lastOf(nil) != "" || lastOf([]string{"a", "b"}) != "b" {
		t.Error("lastOf")
	}
}
