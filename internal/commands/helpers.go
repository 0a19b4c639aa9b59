package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/moasq/swiftsmith/internal/config"
	"github.com/moasq/swiftsmith/internal/llm"
	"github.com/moasq/swiftsmith/internal/orchestration"
	"github.com/moasq/swiftsmith/internal/recovery"
	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/secrets"
	"github.com/moasq/swiftsmith/internal/service"
	"github.com/moasq/swiftsmith/internal/storage"
	"github.com/moasq/swiftsmith/internal/swift"
)

// app bundles the loaded configuration and the long-lived resources a
// command needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  secrets.Store
	db     *storage.DB
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: newLogger(cfg.Settings.LogLevel),
		store:  secrets.New(cfg.Root),
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		// History is optional; the pipeline runs without it.
		a.logger.Warn().Err(err).Str("path", cfg.DBPath).Msg("history disabled")
	} else {
		a.db = db
	}
	if cfg.SettingsPath != "" {
		a.logger.Debug().Str("path", cfg.SettingsPath).Msg("settings loaded")
	}
	return a, nil
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

type pipelineOptions struct {
	// offline skips the LLM router; Recover does not need it.
	offline bool
	// build compiles with xcodebuild when the tools are installed.
	build bool
	// launch installs successful builds in the simulator.
	launch bool
	extra  []orchestration.Option
}

// pipeline wires the orchestrator from settings.
func (a *app) pipeline(ctx context.Context, po pipelineOptions) (*orchestration.Orchestrator, error) {
	s := a.cfg.Settings
	var completer orchestration.Completer
	if !po.offline {
		router, err := a.cfg.Router(ctx, a.store, a.logger)
		if err != nil {
			return nil, err
		}
		completer = router
	}

	opts := []orchestration.Option{
		orchestration.WithLogger(a.logger),
		orchestration.WithEngine(repair.New(repair.WithLogger(a.logger))),
		orchestration.WithRecovery(recovery.New(
			recovery.WithCeiling(s.AttemptCeiling),
			recovery.WithLogger(a.logger),
		)),
		orchestration.WithBundlePrefix(s.BundleIDPrefix),
	}
	if a.db != nil {
		opts = append(opts, orchestration.WithHistory(a.db))
	}
	if po.build {
		if config.CanBuild() {
			opts = append(opts, orchestration.WithBuilder(a.builder()))
		} else {
			a.logger.Info().Msg("xcodegen or Xcode missing; builds are skipped")
		}
	}
	if po.launch {
		opts = append(opts, orchestration.WithLauncher(a.launcher()))
	}
	opts = append(opts, po.extra...)
	return orchestration.New(completer, opts...), nil
}

func (a *app) builder() *service.XcodeBuilder {
	s := a.cfg.Settings
	return service.NewXcodeBuilder(a.cfg.BuildDir,
		service.WithTimeout(s.BuildTimeout),
		service.WithSimulator(s.Simulator),
		service.WithBuildLogger(a.logger),
	)
}

func (a *app) launcher() *service.Launcher {
	return service.NewLauncher(a.cfg.Settings.Simulator, a.logger)
}

// providerNames lists providers with credentials, in routing order.
func (a *app) providerNames() []string {
	var names []string
	for _, spec := range a.cfg.ProviderSpecs(a.store) {
		names = append(names, spec.Name)
	}
	return names
}

// project is a generated app on disk: <Dir>/project.yml with sources under
// <Dir>/<AppName>/.
type project struct {
	Dir      string
	AppName  string
	BundleID string
	Files    []swift.File
}

type projectYAML struct {
	Name    string `yaml:"name"`
	Targets map[string]struct {
		Settings struct {
			Base map[string]string `yaml:"base"`
		} `yaml:"settings"`
	} `yaml:"targets"`
}

var errNoProject = errors.New("no project found; run `swiftsmith generate` first")

// resolveProject returns dir, or the most recent catalog project when dir
// is empty.
func (a *app) resolveProject(dir string) (string, error) {
	if dir != "" {
		return filepath.Abs(dir)
	}
	projects := a.cfg.ListProjects()
	if len(projects) == 0 {
		return "", errNoProject
	}
	return projects[0].Path, nil
}

// loadProject reads project.yml and every Swift source beneath the app
// directory. Paths are relative to the app directory.
func loadProject(dir string) (*project, error) {
	data, err := os.ReadFile(filepath.Join(dir, "project.yml"))
	if err != nil {
		return nil, fmt.Errorf("read project.yml: %w", err)
	}
	var py projectYAML
	if err := yaml.Unmarshal(data, &py); err != nil {
		return nil, fmt.Errorf("parse project.yml: %w", err)
	}
	if py.Name == "" {
		return nil, fmt.Errorf("%s: project.yml has no name", dir)
	}
	p := &project{Dir: dir, AppName: py.Name}
	if t, ok := py.Targets[py.Name]; ok {
		p.BundleID = t.Settings.Base["PRODUCT_BUNDLE_IDENTIFIER"]
	}

	files, err := readSwiftFiles(filepath.Join(dir, py.Name))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: no Swift sources", dir)
	}
	p.Files = files
	return p, nil
}

// readSwiftFiles collects .swift files under root, sorted by path.
func readSwiftFiles(root string) ([]swift.File, error) {
	var files []swift.File
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || strings.HasSuffix(d.Name(), ".xcodeproj") || d.Name() == "build") {
				return filepath.SkipDir
			}
			return nil
		}
		if !swift.IsSwift(path) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, swift.File{Path: filepath.ToSlash(rel), Content: string(data)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// save writes the project back, replacing its sources.
func (p *project) save() error {
	return service.WriteProject(p.Dir, service.Project{AppName: p.AppName, BundleID: p.BundleID, Files: p.Files})
}

// readErrors reads compiler error lines from path, or stdin when path is
// "-" or empty. Blank lines are dropped.
func readErrors(path string, stdin io.Reader) ([]string, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read errors: %w", err)
	}
	var errs []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			errs = append(errs, line)
		}
	}
	return errs, nil
}

// providerChoices are the picker options for providers that take an API key.
func providerChoices() []string {
	var out []string
	for _, p := range llm.KnownProviders {
		if p != llm.ProviderClaudeCLI {
			out = append(out, p)
		}
	}
	return out
}
