package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/moasq/swiftsmith/internal/llm"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, envs := range apiKeyEnv {
		for _, e := range envs {
			t.Setenv(e, "")
		}
	}
}

func TestParseSettingsYAML(t *testing.T) {
	t.Setenv("TEST_GATEWAY", "https://gateway.example.com")
	data := []byte(`
default_provider: openai
fallback_chain: [openai, anthropic]
providers:
  openai:
    model: gpt-4o-mini
    base_url: ${TEST_GATEWAY}/v1
attempt_ceiling: 5
build_timeout: 90s
routing:
  - complexity: complex
    prefer: [anthropic]
`)
	s, err := ParseSettings(data, ".yaml")
	if err != nil {
		t.Fatalf("ParseSettings() error = %v", err)
	}
	if s.DefaultProvider != "openai" || s.AttemptCeiling != 5 {
		t.Errorf("got provider %q ceiling %d", s.DefaultProvider, s.AttemptCeiling)
	}
	if s.BuildTimeout != 90*time.Second {
		t.Errorf("BuildTimeout = %v, want 90s", s.BuildTimeout)
	}
	if got := s.Providers["openai"].BaseURL; got != "https://gateway.example.com/v1" {
		t.Errorf("BaseURL = %q, want expanded gateway", got)
	}
	if len(s.Rules) != 1 || s.Rules[0].Complexity != "complex" || s.Rules[0].Prefer[0] != "anthropic" {
		t.Errorf("Rules = %+v", s.Rules)
	}
	if s.LLMTimeout != 60*time.Second {
		t.Errorf("unset LLMTimeout = %v, want default", s.LLMTimeout)
	}
}

func TestParseSettingsTOML(t *testing.T) {
	data := []byte(`
default_provider = "gemini"
llm_rps = 0.5
bundle_id_prefix = "com.example"

[providers.gemini]
model = "gemini-2.0-flash"
`)
	s, err := ParseSettings(data, ".toml")
	if err != nil {
		t.Fatalf("ParseSettings() error = %v", err)
	}
	if s.DefaultProvider != "gemini" || s.LLMRPS != 0.5 || s.BundleIDPrefix != "com.example" {
		t.Errorf("settings = %+v", s)
	}
	if s.Providers["gemini"].Model != "gemini-2.0-flash" {
		t.Errorf("model = %q", s.Providers["gemini"].Model)
	}
}

func TestParseSettingsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
		want string
	}{
		{"unknown yaml field", "colour: blue\n", ".yaml", "colour"},
		{"unknown toml field", "colour = \"blue\"\n", ".toml", "colour"},
		{"bad provider", "default_provider: skynet\n", ".yaml", "skynet"},
		{"bad chain", "fallback_chain: [openai, skynet]\n", ".yaml", "skynet"},
		{"zero ceiling", "attempt_ceiling: 0\n", ".yaml", "attempt_ceiling"},
		{"format", "x", ".ini", "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSettings([]byte(tt.data), tt.ext)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("ParseSettings() error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestParseSettingsEmptyFile(t *testing.T) {
	s, err := ParseSettings(nil, ".yaml")
	if err != nil {
		t.Fatalf("empty file error = %v", err)
	}
	if s.AttemptCeiling != 3 {
		t.Errorf("AttemptCeiling = %d, want 3", s.AttemptCeiling)
	}
}

func TestLoadSettings(t *testing.T) {
	dir := t.TempDir()
	s, path, err := LoadSettings(dir)
	if err != nil || path != "" {
		t.Fatalf("LoadSettings(empty) = %q, %v", path, err)
	}
	if s.ListenAddr != Defaults().ListenAddr {
		t.Errorf("ListenAddr = %q", s.ListenAddr)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("simulator = \"iPhone 15\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, path, err = LoadSettings(dir)
	if err != nil {
		t.Fatal(err)
	}
	if path != filepath.Join(dir, "config.toml") || s.Simulator != "iPhone 15" {
		t.Errorf("LoadSettings() = %q, %+v", path, s)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SWIFTSMITH_PROVIDER":        "anthropic",
		"SWIFTSMITH_MODEL":           "claude-test",
		"SWIFTSMITH_LOG_LEVEL":       "debug",
		"SWIFTSMITH_ATTEMPT_CEILING": "4",
	}
	s := Defaults()
	s.ApplyEnv(func(k string) string { return env[k] })
	if s.DefaultProvider != "anthropic" || s.LogLevel != "debug" || s.AttemptCeiling != 4 {
		t.Errorf("settings = %+v", s)
	}
	if s.Providers["anthropic"].Model != "claude-test" {
		t.Errorf("model override = %+v", s.Providers)
	}
}

func TestChain(t *testing.T) {
	s := Settings{DefaultProvider: "gemini", FallbackChain: []string{"anthropic", "gemini", "openai"}}
	got := strings.Join(s.Chain(), ",")
	if got != "gemini,anthropic,openai" {
		t.Errorf("Chain() = %q", got)
	}
}

func TestProviderSpecsSkipsProvidersWithoutKeys(t *testing.T) {
	clearKeys(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_API_KEY", "g-test")

	cfg := &Config{Settings: Defaults()}
	cfg.Settings.Providers = map[string]ProviderSettings{"openai": {Model: "gpt-4o"}}
	specs := cfg.ProviderSpecs(nil)

	var names []string
	for _, s := range specs {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "openai,gemini" {
		t.Fatalf("specs = %v", names)
	}
	if specs[0].APIKey != "sk-test" || specs[0].Model != "gpt-4o" || specs[1].APIKey != "g-test" {
		t.Errorf("specs = %+v", specs)
	}

	cfg.ClaudePath = "/usr/local/bin/claude"
	specs = cfg.ProviderSpecs(nil)
	if last := specs[len(specs)-1]; last.Name != llm.ProviderClaudeCLI || last.Path != cfg.ClaudePath {
		t.Errorf("claude-cli spec = %+v", last)
	}
}

func TestRouterWithoutProviders(t *testing.T) {
	clearKeys(t)
	cfg := &Config{Settings: Defaults()}
	_, err := cfg.Router(context.Background(), nil, zerolog.Nop())
	if !errors.Is(err, llm.ErrNoProvider) {
		t.Errorf("Router() error = %v, want ErrNoProvider", err)
	}
}

func TestRouterOrder(t *testing.T) {
	clearKeys(t)
	t.Setenv("ANTHROPIC_API_KEY", "a")
	t.Setenv("XAI_API_KEY", "x")
	cfg := &Config{Settings: Defaults()}
	r, err := cfg.Router(context.Background(), nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(r.Providers(), ","); got != "anthropic,xai" {
		t.Errorf("Providers() = %q", got)
	}
}

func TestLoadCreatesDirectories(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SWIFTSMITH_HOME", filepath.Join(home, "state"))
	t.Chdir(home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	for _, dir := range []string{cfg.Root, cfg.ProjectDir, cfg.BuildDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created", dir)
		}
	}
	if cfg.DBPath != filepath.Join(home, "state", "history.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ProjectDir != filepath.Join(home, "swiftsmith", "projects") {
		t.Errorf("ProjectDir = %q", cfg.ProjectDir)
	}
}

func TestListProjects(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"Older", "Newer", "NotAProject"} {
		if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for i, name := range []string{"Older", "Newer"} {
		p := filepath.Join(dir, name, "project.yml")
		if err := os.WriteFile(p, []byte("name: x\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		mod := time.Now().Add(time.Duration(i-2) * time.Hour)
		if err := os.Chtimes(p, mod, mod); err != nil {
			t.Fatal(err)
		}
	}

	got := (&Config{ProjectDir: dir}).ListProjects()
	if len(got) != 2 || got[0].Name != "Newer" || got[1].Name != "Older" {
		t.Errorf("ListProjects() = %+v", got)
	}
}
