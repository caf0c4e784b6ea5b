package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tailtrigger/tailtrigger/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show event store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openExistingStore(cmd)
		if err != nil || s == nil {
			return err
		}
		defer s.Close()

		stats, err := s.GetStats()
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			return printJSON(cmd, stats)
		}

		out := cmd.OutOrStdout()
		bold := color.New(color.Bold)
		bold.Fprintln(out, "tailtrigger status")
		fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━")
		fmt.Fprintf(out, "   Version:    %s\n", version)
		fmt.Fprintf(out, "   Events:     %d\n", stats.TotalEvents)
		fmt.Fprintf(out, "   Last event: %s\n", formatLast(stats.LastEventAt))
		fmt.Fprintln(out)
		bold.Fprintln(out, "Sessions")
		fmt.Fprintln(out, "━━━━━━━━━━━━━━━━━━━━━")
		fmt.Fprintf(out, "   Total:      %d\n", stats.TotalSessions)
		for _, o := range []models.Outcome{models.OutcomeRunning, models.OutcomeClosed, models.OutcomeStopped, models.OutcomeFailed} {
			fmt.Fprintf(out, "   %-11s %s\n", string(o)+":", outcomeColor(o).Sprint(stats.ByOutcome[string(o)]))
		}
		return nil
	},
}

func formatLast(ts *time.Time) string {
	if ts == nil {
		return "never"
	}
	return ts.Local().Format(time.DateTime)
}

func init() {
	statusCmd.Flags().String("store", "", "sqlite file written by watch --store")
	statusCmd.Flags().Bool("json", false, "Output as JSON")
}
