package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/orchestration"
	"github.com/moasq/swiftsmith/internal/service"
	"github.com/moasq/swiftsmith/internal/terminal"
)

var (
	generateName    string
	generateRun     bool
	generateNoBuild bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <description>",
	Short: "Generate a SwiftUI app from a description",
	Long:  "Generate a complete SwiftUI app, repair and validate it, build it when Xcode is available, and write it to the project catalog.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		description := strings.Join(args, " ")
		res, err := a.generate(cmd.Context(), description, generateName, !generateNoBuild, generateRun)
		if err != nil {
			return err
		}
		if _, err := a.writeResult(res); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generateName, "name", "n", "", "App name (derived from the description when empty)")
	generateCmd.Flags().BoolVar(&generateRun, "run", false, "Launch the app in the simulator after a successful build")
	generateCmd.Flags().BoolVar(&generateNoBuild, "no-build", false, "Skip xcodebuild even when it is installed")
}

// generate runs the pipeline with a live progress display.
func (a *app) generate(ctx context.Context, description, name string, build, launch bool) (orchestration.Result, error) {
	pd := terminal.NewProgressDisplay(terminal.PhaseAnalyzing, a.cfg.Settings.AttemptCeiling)
	o, err := a.pipeline(ctx, pipelineOptions{
		build:  build,
		launch: launch,
		extra:  []orchestration.Option{orchestration.WithProgress(progressHandler(pd))},
	})
	if err != nil {
		return orchestration.Result{}, err
	}

	pd.Start()
	res := o.Generate(ctx, description, name)
	finishProgress(pd, res)
	return res, nil
}

// progressHandler forwards orchestrator events to the display.
func progressHandler(pd *terminal.ProgressDisplay) func(orchestration.Event) {
	return func(e orchestration.Event) {
		if t := e.Recovery; t != nil {
			pd.OnRecovery(string(t.State), t.Attempt, t.Fixes)
			return
		}
		pd.OnStage(string(e.Stage), e.Detail)
	}
}

func finishProgress(pd *terminal.ProgressDisplay, res orchestration.Result) {
	m := res.Metadata
	switch {
	case m.FallbackUsed:
		pd.StopWithError(fmt.Sprintf("Generation failed (%s); wrote a starter app instead", m.Error))
	case !m.Success:
		pd.StopWithError("Finished with errors")
	default:
		pd.StopWithSuccess(fmt.Sprintf("%s ready (%d files)", res.AppName, len(res.Files)))
	}
}

// writeResult saves a generated app into a fresh catalog directory and
// prints a summary.
func (a *app) writeResult(res orchestration.Result) (string, error) {
	dir := orchestration.UniqueProjectDir(a.cfg.ProjectDir, res.AppName)
	err := service.WriteProject(dir, service.Project{AppName: res.AppName, BundleID: res.BundleID, Files: res.Files})
	if err != nil {
		return "", fmt.Errorf("write project: %w", err)
	}
	printResult(res, dir)
	return dir, nil
}

func printResult(res orchestration.Result, dir string) {
	m := res.Metadata
	fmt.Println()
	if dir != "" {
		terminal.Detail("Project", dir)
	}
	terminal.Detail("Bundle ID", res.BundleID)
	terminal.Detail("Providers", strings.Join(m.LLMsUsed, ", "))
	terminal.Detail("Validation", fmt.Sprintf("%.2f", m.ValidationScore))
	if m.HealingApplied {
		terminal.Detail("Fixes", fmt.Sprintf("%d applied", len(m.FixesApplied)))
	}
	if m.RecoveryAttempts > 0 {
		terminal.Detail("Recovery", fmt.Sprintf("%d attempts", m.RecoveryAttempts))
	}
	switch {
	case m.BuildSkipped:
		terminal.Detail("Build", "skipped")
	case res.Build != nil && res.Build.Success:
		terminal.Detail("Build", "passed")
	case res.Build != nil:
		terminal.Detail("Build", fmt.Sprintf("failed with %d errors", len(res.Build.Errors)))
	}
	if l := res.Launch; l != nil {
		if l.Launched {
			terminal.Detail("Simulator", l.Simulator)
		}
		for _, w := range l.Warnings {
			terminal.Warning(w)
		}
	}
	for _, e := range m.ErrorsEncountered {
		fmt.Printf("  %s%s%s\n", terminal.Dim, e, terminal.Reset)
	}
}
