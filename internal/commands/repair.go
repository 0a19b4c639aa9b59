package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/repair"
	"github.com/moasq/swiftsmith/internal/swift"
	"github.com/moasq/swiftsmith/internal/terminal"
)

var repairDryRun bool

var repairCmd = &cobra.Command{
	Use:   "repair <path>...",
	Short: "Apply deterministic syntax repairs to Swift files",
	Long:  "Repair single-quoted strings, stray semicolons, unbalanced braces, deprecated modifiers and missing imports in Swift files or directories. No LLM is involved.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := repair.New(repair.WithLogger(newLogger("")))
		changed := 0
		for _, arg := range args {
			files, root, err := collectSwift(arg)
			if err != nil {
				return err
			}
			for _, f := range files {
				repaired, fixes := engine.RepairFile(f)
				if repaired.Content == f.Content {
					continue
				}
				changed++
				path := filepath.Join(root, filepath.FromSlash(f.Path))
				terminal.Success(path)
				for _, fix := range fixes {
					fmt.Printf("      %s%s%s\n", terminal.Dim, fix, terminal.Reset)
				}
				if repairDryRun {
					continue
				}
				if err := os.WriteFile(path, []byte(repaired.Content), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
			}
		}
		if changed == 0 {
			terminal.Info("Nothing to repair")
		} else if repairDryRun {
			terminal.Info(fmt.Sprintf("%d files would change (dry run)", changed))
		}
		return nil
	},
}

func init() {
	repairCmd.Flags().BoolVar(&repairDryRun, "dry-run", false, "Report repairs without writing files")
}

// collectSwift returns the Swift files at path and the directory their
// paths are relative to.
func collectSwift(path string) ([]swift.File, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	if info.IsDir() {
		files, err := readSwiftFiles(path)
		return files, path, err
	}
	if !swift.IsSwift(path) {
		return nil, "", fmt.Errorf("%s is not a Swift file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return []swift.File{{Path: filepath.Base(path), Content: string(data)}}, filepath.Dir(path), nil
}
