package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/config"
	"github.com/moasq/swiftsmith/internal/orchestration"
	"github.com/moasq/swiftsmith/internal/recovery"
	"github.com/moasq/swiftsmith/internal/service"
	"github.com/moasq/swiftsmith/internal/swift"
	"github.com/moasq/swiftsmith/internal/terminal"
)

var (
	recoverProject string
	recoverErrors  string
)

var recoverCmd = &cobra.Command{
	Use:     "recover",
	Aliases: []string{"fix"},
	Short:   "Fix build errors with targeted repairs",
	Long: "Classify compiler errors and apply targeted repair strategies to the project, rebuilding between attempts. " +
		"Errors are read from --errors (\"-\" for stdin); without it the project is built to collect them.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dir, err := a.resolveProject(recoverProject)
		if err != nil {
			return err
		}
		p, err := loadProject(dir)
		if err != nil {
			return err
		}

		var errs []string
		if recoverErrors != "" {
			if errs, err = readErrors(recoverErrors, cmd.InOrStdin()); err != nil {
				return err
			}
		}
		return a.recover(cmd.Context(), p, errs)
	},
}

func init() {
	recoverCmd.Flags().StringVarP(&recoverProject, "project", "p", "", "Project directory (defaults to the most recent project)")
	recoverCmd.Flags().StringVarP(&recoverErrors, "errors", "e", "", "File of compiler errors, one per line (\"-\" for stdin)")
}

// recover runs targeted recovery on p and saves changed files. With no
// errors given, p is built to collect them.
func (a *app) recover(ctx context.Context, p *project, errs []string) error {
	if len(errs) == 0 {
		collected, err := a.collectErrors(ctx, p)
		if err != nil {
			return err
		}
		errs = collected
	}
	if len(errs) == 0 {
		terminal.Success("Build passed; nothing to fix")
		return nil
	}

	pd := terminal.NewProgressDisplay(terminal.PhaseRecovering, a.cfg.Settings.AttemptCeiling)
	o, err := a.pipeline(ctx, pipelineOptions{
		offline: true,
		build:   true,
		extra:   []orchestration.Option{orchestration.WithProgress(progressHandler(pd))},
	})
	if err != nil {
		return err
	}
	pd.Start()
	out := o.Recover(ctx, errs, p.Files)
	if out.Success {
		pd.StopWithSuccess(fmt.Sprintf("Recovered after %d attempts", out.Attempts))
	} else {
		pd.StopWithError(fmt.Sprintf("Recovery stopped in %s: %s", out.State, out.Message))
	}

	if !swift.Equal(out.Files, p.Files) {
		p.Files = out.Files
		if err := p.save(); err != nil {
			return fmt.Errorf("save project: %w", err)
		}
	}
	for _, fix := range out.FixesApplied {
		terminal.Detail("Fix", fix)
	}
	if out.State == recovery.Exhausted {
		return fmt.Errorf("attempt ceiling reached for fingerprint %s", lastOf(out.Fingerprints))
	}
	return nil
}

// collectErrors builds p and returns its compiler errors, nil when the
// build passes.
func (a *app) collectErrors(ctx context.Context, p *project) ([]string, error) {
	if !config.CanBuild() {
		return nil, errors.New("xcodegen and Xcode are required to collect errors; pass --errors instead")
	}
	spinner := terminal.NewSpinner("Building " + p.AppName + "...")
	spinner.Start()
	builder := a.builder()
	res, err := builder.Build(ctx, service.Project{AppName: p.AppName, BundleID: p.BundleID, Files: p.Files})
	spinner.Stop()
	if err != nil {
		return nil, err
	}
	if res.Success {
		return nil, builder.Release(res)
	}
	if len(res.Errors) == 0 {
		return nil, errors.New("build failed without compiler errors; check the xcodebuild log with --verbose")
	}
	return res.Errors, nil
}

func lastOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}
