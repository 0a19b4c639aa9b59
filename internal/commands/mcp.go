package commands

import (
	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:    "mcp",
	Short:  "Run the MCP server over stdio (used by editor agents)",
	Long:   "Starts an MCP server over stdio exposing repair_swift, classify_errors, recover_build, generate_app and modify_app.",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// Repair and recover tools work without credentials.
		o, err := a.pipeline(cmd.Context(), pipelineOptions{build: true})
		if err != nil {
			a.logger.Warn().Err(err).Msg("no LLM provider; generate_app and modify_app will fall back")
			o, err = a.pipeline(cmd.Context(), pipelineOptions{offline: true, build: true})
			if err != nil {
				return err
			}
		}
		return mcpserver.Run(cmd.Context(), o, Version, a.logger)
	},
}
