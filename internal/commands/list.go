package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkashynov/tasktime/internal/aggregate"
	"github.com/balkashynov/tasktime/internal/api"
	"github.com/balkashynov/tasktime/internal/models"
)

var sessionsCmd = &cobra.Command{
	Use:     "sessions [task-id]",
	Aliases: []string{"ls"},
	Short:   "List every session recorded on a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(env *clientEnv) error {
			resp, err := env.cache.Sessions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSessions(cmd.OutOrStdout(), resp, time.Now())
			return nil
		})
	},
}

var totalsCmd = &cobra.Command{
	Use:   "totals [task-id...]",
	Short: "Show your tracked time for several tasks",
	Long: `Show your tracked time for several tasks, fetched in batches.

Examples:
  tasktime totals T-1 T-2 T-3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(env *clientEnv) error {
			if err := env.cache.Preload(cmd.Context(), args); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-24s %-10s %-10s %-8s %s\n", "TASK", "TOTAL", "COMPLETED", "SESSIONS", "NOTE")
			fmt.Fprintln(out, strings.Repeat("-", 70))
			for _, id := range args {
				summary, ok := env.cache.Get(id)
				if !ok {
					summary = api.ZeroSummary()
				}
				fmt.Fprintf(out, "%-24s %-10s %-10s %-8d %s\n",
					truncate(id, 22),
					summary.Formatted,
					aggregate.FormatHMS(summary.CompletedSeconds),
					summary.CompletedSessionsCount,
					totalsNote(summary))
			}
			return nil
		})
	},
}

func printSessions(out io.Writer, resp *api.SessionsResponse, now time.Time) {
	if len(resp.Sessions) == 0 {
		if resp.Stats.Error != "" {
			fmt.Fprintln(out, resp.Stats.Error)
		} else {
			fmt.Fprintln(out, "No sessions recorded yet. Use 'tasktime start <task>' to begin.")
		}
		return
	}

	fmt.Fprintf(out, "%-12s %-16s %-20s %-20s %s\n", "SESSION", "USER", "STARTED", "ENDED", "DURATION")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, s := range resp.Sessions {
		fmt.Fprintf(out, "%-12s %-16s %-20s %-20s %s\n",
			truncate(s.ID, 10),
			truncate(s.UserID, 14),
			s.StartTime.Local().Format("2006-01-02 15:04:05"),
			endedText(s),
			sessionDuration(s, now))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Your total: %s (%d completed sessions)\n", resp.Stats.Formatted, resp.Stats.CompletedSessionsCount)
	if len(resp.Stats.ActiveUsers) > 0 {
		fmt.Fprintf(out, "Tracking now: %s\n", strings.Join(resp.Stats.ActiveUsers, ", "))
	}
}

func endedText(s models.TimeSession) string {
	if s.EndTime == nil {
		return "running"
	}
	return s.EndTime.Local().Format("2006-01-02 15:04:05")
}

func sessionDuration(s models.TimeSession, now time.Time) string {
	if s.DurationSeconds != nil {
		return aggregate.FormatHMS(*s.DurationSeconds)
	}
	return aggregate.FormatHMS(int64(now.Sub(s.StartTime) / time.Second))
}

func totalsNote(s api.Summary) string {
	switch {
	case s.Error != "":
		return s.Error
	case s.HasActiveSession:
		return "running"
	default:
		return ""
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
