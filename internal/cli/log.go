package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/wire"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the audit log",
	Long:  "View and prune the audit trail of changes to origins, experiments, batteries, subjects and results",
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show recent activity",
	Long:  "Show recent audit log entries (default 50)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		limit, _ := cmd.Flags().GetInt("limit")
		actorID, _ := cmd.Flags().GetString("by")
		entityType, _ := cmd.Flags().GetString("type")
		action, _ := cmd.Flags().GetString("action")
		follow, _ := cmd.Flags().GetBool("follow")

		filters := primary.LogFilters{
			ActorID:    actorID,
			EntityType: entityType,
			Action:     action,
			Limit:      limit,
		}

		entries, err := wire.LogService().ListLogs(ctx, filters)
		if err != nil {
			return fmt.Errorf("failed to fetch logs: %w", err)
		}

		printLogEntries(os.Stdout, entries)

		// If --follow, poll for new entries
		if follow {
			var lastTimestamp string
			if len(entries) > 0 {
				lastTimestamp = entries[0].CreatedAt
			}

			for {
				time.Sleep(1 * time.Second)

				newEntries, err := wire.LogService().ListLogs(ctx, filters)
				if err != nil {
					fmt.Printf("Error fetching logs: %v\n", err)
					continue
				}

				lastTimestamp = printNewerEntries(os.Stdout, newEntries, lastTimestamp)
			}
		}

		return nil
	},
}

var logShowCmd = &cobra.Command{
	Use:   "show [entity-id]",
	Short: "Show activity for a specific entity",
	Long:  "Show activity history for a specific entity (e.g., BATT-001, SUBJ-004)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		actorID, _ := cmd.Flags().GetString("by")
		limit, _ := cmd.Flags().GetInt("limit")

		filters := primary.LogFilters{
			ActorID: actorID,
			Limit:   limit,
		}

		// If entity ID provided, filter by it
		if len(args) > 0 {
			filters.EntityID = args[0]
		}

		entries, err := wire.LogService().ListLogs(ctx, filters)
		if err != nil {
			return fmt.Errorf("failed to fetch logs: %w", err)
		}

		printLogEntries(os.Stdout, entries)
		return nil
	},
}

var logGetCmd = &cobra.Command{
	Use:   "get [log-id]",
	Short: "Show a single log entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entry, err := wire.LogService().GetLog(NewContext(), args[0])
		if err != nil {
			return err
		}
		printLogEntry(os.Stdout, entry)
		return nil
	},
}

var logPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old log entries",
	Long:  "Delete log entries older than the specified number of days (default 30)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		days, _ := cmd.Flags().GetInt("days")

		count, err := wire.LogService().PruneLogs(ctx, days)
		if err != nil {
			return fmt.Errorf("failed to prune logs: %w", err)
		}

		if count == 0 {
			fmt.Printf("No log entries older than %d days found.\n", days)
		} else {
			fmt.Printf("Pruned %d log entries older than %d days.\n", count, days)
		}
		return nil
	},
}

var logSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count recent activity by entity type and action",
	RunE: func(cmd *cobra.Command, args []string) error {
		actorID, _ := cmd.Flags().GetString("by")
		entityType, _ := cmd.Flags().GetString("type")

		summary, err := wire.LogService().SummarizeLogs(NewContext(), primary.LogFilters{
			ActorID:    actorID,
			EntityType: entityType,
		})
		if err != nil {
			return fmt.Errorf("failed to summarize logs: %w", err)
		}
		printLogSummary(os.Stdout, summary)
		return nil
	},
}

// printLogSummary prints one line per entity type, sorted, with its action counts.
func printLogSummary(w io.Writer, summary *primary.LogSummary) {
	if summary.Total == 0 {
		fmt.Fprintln(w, "No log entries found.")
		return
	}

	fmt.Fprintf(w, "%d log entries\n", summary.Total)
	types := make([]string, 0, len(summary.Counts))
	for t := range summary.Counts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		counts := summary.Counts[t]
		fmt.Fprintf(w, "  %-16s %s%d %s%d %s%d\n", t,
			getActionIcon(primary.LogActionCreate), counts[primary.LogActionCreate],
			getActionIcon(primary.LogActionUpdate), counts[primary.LogActionUpdate],
			getActionIcon(primary.LogActionDelete), counts[primary.LogActionDelete],
		)
	}
}

// printLogEntries prints newest-first entries oldest first.
func printLogEntries(w io.Writer, entries []*primary.LogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No log entries found.")
		return
	}

	fmt.Fprintf(w, "Found %d log entries:\n\n", len(entries))

	for i := len(entries) - 1; i >= 0; i-- {
		printLogEntry(w, entries[i])
	}
}

// printNewerEntries prints the entries created after since and returns the newest timestamp seen.
func printNewerEntries(w io.Writer, entries []*primary.LogEntry, since string) string {
	latest := since
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if since == "" || entry.CreatedAt > since {
			printLogEntry(w, entry)
			if entry.CreatedAt > latest {
				latest = entry.CreatedAt
			}
		}
	}
	return latest
}

func printLogEntry(w io.Writer, entry *primary.LogEntry) {
	// Format: timestamp | actor | action | entity_type/entity_id | field changes
	actorStr := entry.ActorID
	if actorStr == "" {
		actorStr = "-"
	}

	fmt.Fprintf(w, "%s | %-12s | %s %s | %s/%s",
		formatTimestamp(entry.CreatedAt),
		actorStr,
		getActionIcon(entry.Action),
		entry.Action,
		entry.EntityType,
		entry.EntityID,
	)

	// Field changes for updates
	if entry.Action == primary.LogActionUpdate && entry.FieldName != "" {
		fmt.Fprintf(w, " | %s: %s -> %s", entry.FieldName, entry.OldValue, entry.NewValue)
	}

	fmt.Fprintln(w)
}

func getActionIcon(action string) string {
	switch action {
	case primary.LogActionCreate:
		return "+"
	case primary.LogActionUpdate:
		return "~"
	case primary.LogActionDelete:
		return "-"
	default:
		return "?"
	}
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func init() {
	// log tail
	logTailCmd.Flags().IntP("limit", "n", 50, "Number of entries to show")
	logTailCmd.Flags().String("by", "", "Filter by actor")
	logTailCmd.Flags().String("type", "", "Filter by entity type")
	logTailCmd.Flags().String("action", "", "Filter by action (create, update, delete)")
	logTailCmd.Flags().BoolP("follow", "f", false, "Follow mode: poll for new entries")

	// log show
	logShowCmd.Flags().String("by", "", "Filter by actor")
	logShowCmd.Flags().IntP("limit", "n", 100, "Maximum entries to show")

	// log summary
	logSummaryCmd.Flags().String("by", "", "Filter by actor")
	logSummaryCmd.Flags().String("type", "", "Filter by entity type")

	// log prune
	logPruneCmd.Flags().Int("days", 30, "Delete entries older than N days")

	logCmd.AddCommand(logTailCmd)
	logCmd.AddCommand(logShowCmd)
	logCmd.AddCommand(logGetCmd)
	logCmd.AddCommand(logSummaryCmd)
	logCmd.AddCommand(logPruneCmd)
}

// LogCmd returns the log command with all subcommands attached.
func LogCmd() *cobra.Command {
	return logCmd
}
