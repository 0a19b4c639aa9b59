package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/moasq/swiftsmith/internal/storage"
	"github.com/moasq/swiftsmith/internal/terminal"
)

var (
	historyLimit int
	historyStats bool
)

var historyCmd = &cobra.Command{
	Use:   "history [request-id]",
	Short: "Show past requests and recovery attempts",
	Long:  "List recent generate, modify and recover requests. With a request ID, show that request's recovery trace.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()
		if a.db == nil {
			return fmt.Errorf("history database unavailable at %s", a.cfg.DBPath)
		}
		ctx := cmd.Context()

		if len(args) == 1 {
			attempts, err := a.db.Attempts(ctx, args[0])
			if err != nil {
				return err
			}
			if len(attempts) == 0 {
				terminal.Info("No recovery attempts recorded for " + args[0])
				return nil
			}
			fmt.Println(attemptsTable(attempts))
			return nil
		}

		if historyStats {
			st, err := a.db.Stats(ctx)
			if err != nil {
				return err
			}
			printStats(st)
			return nil
		}

		gens, err := a.db.RecentGenerations(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(gens) == 0 {
			terminal.Info("No requests yet. Run `swiftsmith generate` to create an app.")
			return nil
		}
		fmt.Println(generationsTable(gens, time.Now()))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of requests to show")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "Show aggregate success and recovery statistics")
}

var (
	tableBorder = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tableHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableCell   = lipgloss.NewStyle().Padding(0, 1)
)

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorder).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeader
			}
			return tableCell
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func generationsTable(gens []storage.Generation, now time.Time) string {
	rows := make([][]string, 0, len(gens))
	for _, g := range gens {
		rows = append(rows, []string{
			g.RequestID,
			g.Operation,
			g.AppName,
			outcome(g),
			fmt.Sprintf("%.2f", g.ValidationScore),
			g.Duration.Round(100 * time.Millisecond).String(),
			timeAgo(now.Sub(g.CreatedAt)),
		})
	}
	return renderTable([]string{"REQUEST", "OP", "APP", "RESULT", "SCORE", "TIME", "WHEN"}, rows)
}

func outcome(g storage.Generation) string {
	switch {
	case g.FallbackUsed:
		return "fallback"
	case !g.Success:
		return "failed"
	case g.HealingApplied:
		return "healed"
	default:
		return "ok"
	}
}

func attemptsTable(attempts []storage.Attempt) string {
	rows := make([][]string, 0, len(attempts))
	for _, at := range attempts {
		rows = append(rows, []string{
			fmt.Sprint(at.Attempt),
			at.State,
			at.Fingerprint,
			strings.Join(at.Categories, ", "),
			strings.Join(at.Fixes, "; "),
		})
	}
	return renderTable([]string{"#", "STATE", "FINGERPRINT", "CATEGORIES", "FIXES"}, rows)
}

func printStats(st storage.Stats) {
	terminal.Header("History")
	terminal.Detail("Requests", fmt.Sprint(st.Generations))
	terminal.Detail("Success rate", fmt.Sprintf("%.0f%%", st.SuccessRate*100))
	terminal.Detail("Healed", fmt.Sprint(st.Healed))
	terminal.Detail("Fallbacks", fmt.Sprint(st.Fallbacks))
	terminal.Detail("Avg score", fmt.Sprintf("%.2f", st.AverageScore))
	terminal.Detail("Transitions", fmt.Sprint(st.Attempts))
	if len(st.TopFingerprints) == 0 {
		return
	}
	fmt.Println()
	rows := make([][]string, 0, len(st.TopFingerprints))
	for _, f := range st.TopFingerprints {
		rows = append(rows, []string{f.Fingerprint, fmt.Sprint(f.Attempts), fmt.Sprint(f.Exhausted)})
	}
	fmt.Println(renderTable([]string{"FINGERPRINT", "ATTEMPTS", "EXHAUSTED"}, rows))
}

// timeAgo returns a human-readable relative time string.
func timeAgo(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute")
	case d < 24*time.Hour:
		return plural(int(d.Hours()), "hour")
	case d < 30*24*time.Hour:
		return plural(int(d.Hours()/24), "day")
	default:
		return plural(int(d.Hours()/24/30), "month")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
