package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/config"
	"github.com/moasq/swiftsmith/internal/terminal"
	"github.com/moasq/swiftsmith/internal/update"
)

var doctorOffline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check tools, providers and settings",
	Long:  "Report which build tools are installed, which LLM providers have credentials, and where settings and history live.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println()
		terminal.Header("Tools")
		toolsOK := terminal.ToolStatus(toolLines(config.CheckTools()))
		if !toolsOK {
			terminal.Info("Without Xcode and xcodegen, builds are skipped and validation decides success.")
		}

		fmt.Println()
		terminal.Header("Providers")
		names := a.providerNames()
		if len(names) == 0 {
			terminal.Warning("No provider configured. Run `swiftsmith keys set` or export an API key.")
		} else {
			terminal.Detail("Routing order", strings.Join(names, " → "))
		}

		fmt.Println()
		terminal.Header("Paths")
		settings := a.cfg.SettingsPath
		if settings == "" {
			settings = "defaults (no config.yaml or config.toml in " + a.cfg.Root + ")"
		}
		terminal.Detail("Settings", settings)
		terminal.Detail("Projects", a.cfg.ProjectDir)
		history := a.cfg.DBPath
		if a.db == nil {
			history += " (unavailable)"
		}
		terminal.Detail("History", history)
		terminal.Detail("Attempts", fmt.Sprintf("%d per error fingerprint", a.cfg.Settings.AttemptCeiling))

		if !doctorOffline {
			fmt.Println()
			terminal.Header("Version")
			reportUpdate(cmd.Context(), update.NewChecker("moasq", "swiftsmith", update.WithLogger(a.logger)))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "Skip the release check")
}

func reportUpdate(ctx context.Context, c *update.Checker) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := c.Check(ctx, Version)
	if err != nil {
		terminal.Detail("Installed", "v"+Version)
		terminal.Detail("Latest", "unknown ("+err.Error()+")")
		return
	}
	terminal.Detail("Installed", res.Current)
	if !res.NeedsUpdate() {
		terminal.Success("Up to date")
		return
	}
	terminal.Warning(fmt.Sprintf("%s is available: %s", res.Latest, res.UpdateURL))
}

func toolLines(tools []config.Tool) []terminal.ToolLine {
	lines := make([]terminal.ToolLine, len(tools))
	for i, t := range tools {
		lines[i] = terminal.ToolLine{Name: t.Name, Available: t.Available, Detail: t.Detail, Hint: t.Hint}
	}
	return lines
}
