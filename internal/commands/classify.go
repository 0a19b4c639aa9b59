package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/diagnostics"
	"github.com/moasq/swiftsmith/internal/terminal"
)

var (
	classifyErrors string
	classifyJSON   bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify compiler errors and print their fingerprint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		errs, err := readErrors(classifyErrors, cmd.InOrStdin())
		if err != nil {
			return err
		}
		cat := diagnostics.Classify(errs)
		fp := diagnostics.Fingerprint(cat)

		if classifyJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"fingerprint": fp,
				"categories":  cat.Categories(),
				"errors":      cat,
			})
		}

		terminal.Header("Classification")
		terminal.Detail("Fingerprint", fp)
		if len(cat) == 0 {
			terminal.Info("No known error categories")
			return nil
		}
		for _, c := range cat.Categories() {
			fmt.Printf("  %s%s%s (%d)\n", terminal.Bold, c, terminal.Reset, len(cat[c]))
			for _, rec := range cat[c] {
				loc := rec.File
				if rec.Line > 0 {
					loc = fmt.Sprintf("%s:%d", rec.File, rec.Line)
				}
				if rec.Identifier != "" {
					loc += " " + rec.Identifier
				}
				fmt.Printf("      %s%s%s\n", terminal.Dim, loc, terminal.Reset)
			}
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVarP(&classifyErrors, "errors", "e", "-", "File of compiler errors, one per line (\"-\" for stdin)")
	classifyCmd.Flags().BoolVar(&classifyJSON, "json", false, "Print JSON")
}
