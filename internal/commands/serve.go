package commands

import (
	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/api"
)

var (
	serveAddr    string
	serveNoBuild bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP",
	Long:  "Start the JSON API: generate, modify, recover, repair and classify, plus stats and history.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		o, err := a.pipeline(cmd.Context(), pipelineOptions{build: !serveNoBuild})
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" {
			addr = a.cfg.Settings.ListenAddr
		}
		opts := []api.Option{api.WithLogger(a.logger), api.WithProviders(a.providerNames())}
		if a.db != nil {
			opts = append(opts, api.WithHistory(a.db))
		}
		return api.NewServer(addr, o, opts...).ListenAndServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to listen_addr in settings)")
	serveCmd.Flags().BoolVar(&serveNoBuild, "no-build", false, "Skip xcodebuild even when it is installed")
}
