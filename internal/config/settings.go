package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/moasq/swiftsmith/internal/llm"
	"github.com/moasq/swiftsmith/internal/recovery"
)

// ProviderSettings overrides one provider's model or endpoint.
type ProviderSettings struct {
	Model   string `yaml:"model" toml:"model"`
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// Settings is the optional config.yaml / config.toml in the state
// directory. Zero fields take their defaults.
type Settings struct {
	DefaultProvider string                      `yaml:"default_provider" toml:"default_provider"`
	FallbackChain   []string                    `yaml:"fallback_chain" toml:"fallback_chain"`
	Providers       map[string]ProviderSettings `yaml:"providers" toml:"providers"`
	Rules           []llm.Rule                  `yaml:"routing" toml:"routing"`
	AttemptCeiling  int                         `yaml:"attempt_ceiling" toml:"attempt_ceiling"`
	BuildTimeout    time.Duration               `yaml:"build_timeout" toml:"build_timeout"`
	LLMTimeout      time.Duration               `yaml:"llm_timeout" toml:"llm_timeout"`
	LLMRetries      int                         `yaml:"llm_retries" toml:"llm_retries"`
	LLMRPS          float64                     `yaml:"llm_rps" toml:"llm_rps"`
	CacheSize       int                         `yaml:"cache_size" toml:"cache_size"`
	LogLevel        string                      `yaml:"log_level" toml:"log_level"`
	BundleIDPrefix  string                      `yaml:"bundle_id_prefix" toml:"bundle_id_prefix"`
	Simulator       string                      `yaml:"simulator" toml:"simulator"`
	ListenAddr      string                      `yaml:"listen_addr" toml:"listen_addr"`
	ProjectsDir     string                      `yaml:"projects_dir" toml:"projects_dir"`
}

// Defaults returns the settings used when no file is present.
func Defaults() Settings {
	return Settings{
		FallbackChain:  append([]string(nil), llm.KnownProviders...),
		AttemptCeiling: recovery.DefaultCeiling,
		BuildTimeout:   3 * time.Minute,
		LLMTimeout:     60 * time.Second,
		LLMRetries:     2,
		LLMRPS:         2,
		CacheSize:      64,
		LogLevel:       "info",
		BundleIDPrefix: "com.swiftsmith",
		ListenAddr:     "127.0.0.1:8080",
	}
}

var settingsFiles = []string{"config.yaml", "config.yml", "config.toml"}

// LoadSettings reads the first settings file found in dir over the
// defaults. It returns the path it read, or "" when there was none.
func LoadSettings(dir string) (Settings, string, error) {
	for _, name := range settingsFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Settings{}, "", fmt.Errorf("read %s: %w", path, err)
		}
		s, err := ParseSettings(data, filepath.Ext(name))
		if err != nil {
			return Settings{}, "", fmt.Errorf("%s: %w", path, err)
		}
		return s, path, nil
	}
	return Defaults(), "", nil
}

// ParseSettings decodes YAML (".yaml", ".yml") or TOML (".toml") after
// expanding ${VAR} references from the environment.
func ParseSettings(data []byte, ext string) (Settings, error) {
	s := Defaults()
	expanded := []byte(os.ExpandEnv(string(data)))
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
			return Settings{}, fmt.Errorf("parse yaml: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(expanded), &s)
		if err != nil {
			return Settings{}, fmt.Errorf("parse toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return Settings{}, fmt.Errorf("unknown setting %q", undecoded[0].String())
		}
	default:
		return Settings{}, fmt.Errorf("unsupported settings format %q", ext)
	}
	return s, s.Validate()
}

// Validate rejects values that would make the pipeline misbehave.
func (s Settings) Validate() error {
	if s.AttemptCeiling < 1 {
		return fmt.Errorf("attempt_ceiling must be at least 1, got %d", s.AttemptCeiling)
	}
	if s.BuildTimeout <= 0 || s.LLMTimeout <= 0 {
		return errors.New("build_timeout and llm_timeout must be positive")
	}
	known := map[string]bool{}
	for _, p := range llm.KnownProviders {
		known[p] = true
	}
	if s.DefaultProvider != "" && !known[s.DefaultProvider] {
		return fmt.Errorf("unknown default_provider %q", s.DefaultProvider)
	}
	for _, p := range s.FallbackChain {
		if !known[p] {
			return fmt.Errorf("unknown provider %q in fallback_chain", p)
		}
	}
	for p := range s.Providers {
		if !known[p] {
			return fmt.Errorf("unknown provider %q in providers", p)
		}
	}
	return nil
}

// ApplyEnv overlays SWIFTSMITH_* environment variables.
func (s *Settings) ApplyEnv(getenv func(string) string) {
	if v := getenv("SWIFTSMITH_PROVIDER"); v != "" {
		s.DefaultProvider = v
	}
	if v := getenv("SWIFTSMITH_MODEL"); v != "" {
		p := s.DefaultProvider
		if p == "" && len(s.FallbackChain) > 0 {
			p = s.FallbackChain[0]
		}
		if p != "" {
			if s.Providers == nil {
				s.Providers = map[string]ProviderSettings{}
			}
			ps := s.Providers[p]
			ps.Model = v
			s.Providers[p] = ps
		}
	}
	if v := getenv("SWIFTSMITH_LOG_LEVEL"); v != "" {
		s.LogLevel = v
	}
	if v := getenv("SWIFTSMITH_LISTEN_ADDR"); v != "" {
		s.ListenAddr = v
	}
	if v := getenv("SWIFTSMITH_SIMULATOR"); v != "" {
		s.Simulator = v
	}
	if v, err := strconv.Atoi(getenv("SWIFTSMITH_ATTEMPT_CEILING")); err == nil && v > 0 {
		s.AttemptCeiling = v
	}
}

// Chain returns the provider order: the default provider first, then the
// fallback chain without duplicates.
func (s Settings) Chain() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	add(s.DefaultProvider)
	for _, p := range s.FallbackChain {
		add(p)
	}
	return out
}
