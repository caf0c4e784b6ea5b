package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tailtrigger/tailtrigger/internal/store"
	"github.com/tailtrigger/tailtrigger/pkg/models"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List events recorded by watch --store",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openExistingStore(cmd)
		if err != nil || s == nil {
			return err
		}
		defer s.Close()

		sessionID, _ := cmd.Flags().GetString("session")
		contains, _ := cmd.Flags().GetString("grep")
		limit, _ := cmd.Flags().GetInt("limit")
		if limit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}

		if showSessions, _ := cmd.Flags().GetBool("sessions"); showSessions {
			sessions, err := s.ListSessions(limit)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}
			if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
				return printJSON(cmd, sessions)
			}
			printSessions(cmd, sessions)
			return nil
		}

		events, err := s.ListEvents(models.EventQuery{SessionID: sessionID, Contains: contains, Limit: limit})
		if err != nil {
			return fmt.Errorf("failed to list events: %w", err)
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return printJSON(cmd, events)
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events found")
			return nil
		}
		printEvents(cmd, events)
		return nil
	},
}

func init() {
	eventsCmd.Flags().String("store", "", "sqlite file written by watch --store")
	eventsCmd.Flags().String("session", "", "only events of this session")
	eventsCmd.Flags().String("grep", "", "only lines containing this text")
	eventsCmd.Flags().Int("limit", 50, "maximum number of rows")
	eventsCmd.Flags().Bool("sessions", false, "list sessions instead of events")
	eventsCmd.Flags().Bool("json", false, "Output as JSON")
}

// openExistingStore opens the store, or reports and returns nil if there is none yet
func openExistingStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dbPath, err := storePath(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No event store at %s\n", dbPath)
		fmt.Fprintln(cmd.OutOrStdout(), "   Run 'tailtrigger watch --store "+dbPath+"' to record events")
		return nil, nil
	}
	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func printEvents(cmd *cobra.Command, events []models.LineEvent) {
	dim := color.New(color.FgHiBlack)
	id := color.New(color.FgCyan)
	out := cmd.OutOrStdout()
	for _, e := range events {
		fmt.Fprintf(out, "%s %s %s\n",
			dim.Sprint(e.Timestamp.Local().Format(time.DateTime)),
			id.Sprintf("%s#%d", shortID(e.SessionID), e.Seq),
			e.Line)
	}
}

func printSessions(cmd *cobra.Command, sessions []models.Session) {
	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found")
		return
	}
	for _, sess := range sessions {
		fmt.Fprintf(out, "%s  %s  %-8s %5d lines  %s\n",
			color.CyanString(sess.ID),
			sess.StartedAt.Local().Format(time.DateTime),
			outcomeColor(sess.Outcome).Sprint(sess.Outcome),
			sess.Lines,
			sess.Source)
		if sess.Error != nil {
			fmt.Fprintf(out, "    %s\n", color.RedString(*sess.Error))
		}
	}
}

func outcomeColor(o models.Outcome) *color.Color {
	switch o {
	case models.OutcomeFailed:
		return color.New(color.FgRed)
	case models.OutcomeRunning:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgYellow)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}
