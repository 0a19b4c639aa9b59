package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/config"
	"github.com/moasq/swiftsmith/internal/service"
	"github.com/moasq/swiftsmith/internal/terminal"
)

var runProject string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build and launch in the iOS Simulator",
	Long:  "Build a generated project for the iOS Simulator and launch it. Without --project the most recent project is used.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if !config.CanBuild() {
			return errors.New("xcodegen and Xcode are required to run apps")
		}

		dir, err := a.resolveProject(runProject)
		if err != nil {
			return err
		}
		p, err := loadProject(dir)
		if err != nil {
			return err
		}
		return a.buildAndLaunch(cmd.Context(), p)
	},
}

func init() {
	runCmd.Flags().StringVarP(&runProject, "project", "p", "", "Project directory (defaults to the most recent project)")
}

func (a *app) buildAndLaunch(ctx context.Context, p *project) error {
	spinner := terminal.NewSpinner("Building " + p.AppName + "...")
	spinner.Start()
	builder := a.builder()
	res, err := builder.Build(ctx, service.Project{AppName: p.AppName, BundleID: p.BundleID, Files: p.Files})
	if err != nil {
		spinner.Stop()
		return err
	}
	if !res.Success {
		spinner.Stop()
		terminal.Error(fmt.Sprintf("Build failed with %d errors", len(res.Errors)))
		for _, e := range res.Errors {
			fmt.Printf("  %s%s%s\n", terminal.Dim, e, terminal.Reset)
		}
		terminal.Info("Run `swiftsmith recover` to fix them.")
		return errors.New("build failed")
	}

	spinner.Update("Launching in the simulator...")
	launch := a.launcher().InstallAndLaunch(ctx, res.AppPath, p.BundleID)
	spinner.Stop()
	if err := builder.Release(res); err != nil {
		a.logger.Warn().Err(err).Msg("failed to remove build directory")
	}
	for _, w := range launch.Warnings {
		terminal.Warning(w)
	}
	if !launch.Launched {
		return errors.New("launch failed")
	}
	terminal.Success(fmt.Sprintf("%s running on %s", p.AppName, launch.Simulator))
	return nil
}
