package commands

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/logging"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	verboseFlag  bool
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:     "swiftsmith",
	Short:   "Generate, repair and build SwiftUI apps from a description",
	Long:    "SwiftSmith asks an LLM for a SwiftUI app, repairs its syntax, validates and builds it, and recovers from build errors with targeted fixes.",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(cmd)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error); overrides settings")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(modifyCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(shellCmd)
}

// newLogger builds the process logger. settingsLevel is used unless
// --log-level or --verbose is given.
func newLogger(settingsLevel string) zerolog.Logger {
	level := settingsLevel
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	return logging.New(logging.Options{Level: level, Verbose: verboseFlag, Output: os.Stderr})
}
