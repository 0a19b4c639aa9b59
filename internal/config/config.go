package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the CLI configuration.
type Config struct {
	// Root is the swiftsmith state directory (~/.swiftsmith).
	Root string

	// ProjectDir is the catalog where generated projects are written
	// (~/swiftsmith/projects).
	ProjectDir string

	// BuildDir is the scratch directory the build service works in.
	BuildDir string

	// DBPath is the SQLite history database.
	DBPath string

	// SettingsPath is the settings file that was loaded, if any.
	SettingsPath string

	// ClaudePath is the claude binary. Empty when it is not installed.
	ClaudePath string

	Settings Settings
}

// ProjectInfo holds metadata about a project in the catalog.
type ProjectInfo struct {
	Name      string
	Path      string
	CreatedAt time.Time
}

// Load reads .env, the settings file and environment overrides, and creates
// the state and catalog directories. SWIFTSMITH_HOME moves the state
// directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	root := os.Getenv("SWIFTSMITH_HOME")
	if root == "" {
		root = filepath.Join(home, ".swiftsmith")
	}

	settings, path, err := LoadSettings(root)
	if err != nil {
		return nil, err
	}
	settings.ApplyEnv(os.Getenv)

	projectDir := settings.ProjectsDir
	if projectDir == "" {
		projectDir = filepath.Join(home, "swiftsmith", "projects")
	}
	cfg := &Config{
		Root:         root,
		ProjectDir:   projectDir,
		BuildDir:     filepath.Join(root, "build"),
		DBPath:       filepath.Join(root, "history.db"),
		SettingsPath: path,
		Settings:     settings,
	}
	for _, dir := range []string{cfg.Root, cfg.ProjectDir, cfg.BuildDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	cfg.ClaudePath, _ = findClaude()
	return cfg, nil
}

// ListProjects scans the catalog for generated projects (directories with a
// project.yml), most recently modified first.
func (c *Config) ListProjects() []ProjectInfo {
	entries, err := os.ReadDir(c.ProjectDir)
	if err != nil {
		return nil
	}

	var projects []ProjectInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projDir := filepath.Join(c.ProjectDir, entry.Name())
		info, err := os.Stat(filepath.Join(projDir, "project.yml"))
		if err != nil {
			continue
		}
		projects = append(projects, ProjectInfo{
			Name:      entry.Name(),
			Path:      projDir,
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	return projects
}

func findClaude() (string, error) {
	return exec.LookPath("claude")
}
