package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/orchestration"
	"github.com/moasq/swiftsmith/internal/swift"
	"github.com/moasq/swiftsmith/internal/terminal"
)

var (
	modifyProject string
	modifyNoBuild bool
)

var modifyCmd = &cobra.Command{
	Use:   "modify <request>",
	Short: "Change an existing app",
	Long:  "Apply a change request to a generated app. Without --project the most recent catalog project is used.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		dir, err := a.resolveProject(modifyProject)
		if err != nil {
			return err
		}
		p, err := loadProject(dir)
		if err != nil {
			return err
		}
		_, err = a.modify(cmd.Context(), p, strings.Join(args, " "), !modifyNoBuild)
		return err
	},
}

func init() {
	modifyCmd.Flags().StringVarP(&modifyProject, "project", "p", "", "Project directory (defaults to the most recent project)")
	modifyCmd.Flags().BoolVar(&modifyNoBuild, "no-build", false, "Skip xcodebuild even when it is installed")
}

// modify applies request to p and saves the result when files changed.
func (a *app) modify(ctx context.Context, p *project, request string, build bool) (orchestration.Result, error) {
	pd := terminal.NewProgressDisplay(terminal.PhaseAnalyzing, a.cfg.Settings.AttemptCeiling)
	o, err := a.pipeline(ctx, pipelineOptions{
		build: build,
		extra: []orchestration.Option{orchestration.WithProgress(progressHandler(pd))},
	})
	if err != nil {
		return orchestration.Result{}, err
	}

	pd.Start()
	res := o.Modify(ctx, p.Files, request)
	finishProgress(pd, res)

	if !swift.Equal(res.Files, p.Files) {
		p.Files = res.Files
		if err := p.save(); err != nil {
			return res, fmt.Errorf("save project: %w", err)
		}
	}
	printResult(res, p.Dir)
	return res, nil
}
