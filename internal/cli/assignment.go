package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/wire"
)

var assignmentCmd = &cobra.Command{
	Use:   "assignment",
	Short: "Assign subjects to batteries and track their progress",
}

var assignmentCreateCmd = &cobra.Command{
	Use:   "create [subject-id] [battery-id]",
	Short: "Assign one subject to a battery",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		group, _ := cmd.Flags().GetInt("group")
		note, _ := cmd.Flags().GetString("note")

		a, err := wire.AssignmentService().CreateAssignment(ctx, primary.CreateAssignmentRequest{
			SubjectID:  args[0],
			BatteryID:  args[1],
			GroupIndex: group,
			Note:       note,
		})
		if err != nil {
			return err
		}

		fmt.Printf("✓ Created assignment %s (%s -> %s)\n", a.ID, a.SubjectID, a.BatteryID)
		if a.OrderingID != "" {
			fmt.Printf("  Ordering: %s\n", a.OrderingID)
		}
		return nil
	},
}

var assignmentAssignCmd = &cobra.Command{
	Use:   "assign [battery-id] [subject-id...]",
	Short: "Assign many subjects to a battery, skipping those already assigned",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := wire.AssignmentService().AssignSubjects(NewContext(), args[0], args[1:])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Created %d assignment(s) for %s\n", len(resp.Created), args[0])
		for _, a := range resp.Created {
			fmt.Printf("  %s %s\n", a.ID, a.SubjectID)
		}
		if len(resp.Duplicates) > 0 {
			fmt.Printf("  Already assigned: %v\n", resp.Duplicates)
		}
		return nil
	},
}

var assignmentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assignments",
	RunE: func(cmd *cobra.Command, args []string) error {
		subjectID, _ := cmd.Flags().GetString("subject")
		batteryID, _ := cmd.Flags().GetString("battery")
		status, _ := cmd.Flags().GetString("status")

		assignments, err := wire.AssignmentService().ListAssignments(NewContext(), primary.AssignmentFilters{
			SubjectID: subjectID,
			BatteryID: batteryID,
			Status:    status,
		})
		if err != nil {
			return fmt.Errorf("failed to list assignments: %w", err)
		}
		if len(assignments) == 0 {
			fmt.Println("No assignments found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tSUBJECT\tBATTERY\tSTATUS\tORDERING\tCONSENT")
		fmt.Fprintln(w, "--\t-------\t-------\t------\t--------\t-------")
		for _, a := range assignments {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				a.ID, a.SubjectID, a.BatteryID, progressLabel(a.Status), orDash(a.OrderingID), consentLabel(a.ConsentAccepted))
		}
		w.Flush()
		return nil
	},
}

var assignmentShowCmd = &cobra.Command{
	Use:   "show [assignment-id]",
	Short: "Show assignment details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := wire.AssignmentService().GetAssignment(NewContext(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Assignment: %s\n", a.ID)
		fmt.Printf("Subject:   %s\n", a.SubjectID)
		fmt.Printf("Battery:   %s\n", a.BatteryID)
		fmt.Printf("Status:    %s\n", progressLabel(a.Status))
		fmt.Printf("Ordering:  %s\n", orDash(a.OrderingID))
		fmt.Printf("Group:     %d\n", a.GroupIndex)
		fmt.Printf("Consent:   %s\n", consentLabel(a.ConsentAccepted))
		if a.StartedAt != "" {
			fmt.Printf("Started:   %s\n", a.StartedAt)
		}
		if a.CompletedAt != "" {
			fmt.Printf("Completed: %s\n", a.CompletedAt)
		}
		if a.FailedAt != "" {
			fmt.Printf("Failed:    %s\n", a.FailedAt)
		}
		if a.Note != "" {
			fmt.Printf("Note:      %s\n", a.Note)
		}
		return nil
	},
}

var assignmentNextCmd = &cobra.Command{
	Use:   "next [assignment-id]",
	Short: "Resolve the next experiment the subject should take",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := wire.AssignmentService().NextExperiment(NewContext(), args[0])
		if err != nil {
			return err
		}
		if resp.Instance == nil {
			fmt.Printf("Nothing left for %s (status: %s)\n", args[0], progressLabel(resp.Status))
			return nil
		}
		fmt.Printf("Next: %s at %s\n", resp.Instance.ID, resp.Instance.Commit)
		if resp.Instance.RemoteURL != "" {
			fmt.Printf("  %s\n", resp.Instance.RemoteURL)
		}
		fmt.Printf("  %d experiment(s) remaining, status %s\n", resp.Remaining, progressLabel(resp.Status))
		return nil
	},
}

var assignmentStatusCmd = &cobra.Command{
	Use:   "status [assignment-id]",
	Short: "Count the assignment's results by status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := wire.AssignmentService().ResultStatus(NewContext(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%d result(s) for %s\n", summary.Total, args[0])
		statuses := make([]string, 0, len(summary.Counts))
		for status := range summary.Counts {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			fmt.Printf("  %-12s %d\n", status, summary.Counts[status])
		}
		return nil
	},
}

var assignmentRedoCmd = &cobra.Command{
	Use:   "redo [assignment-id]",
	Short: "Let the subject take the battery again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := wire.AssignmentService().MarkRedo(NewContext(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Assignment %s marked for redo\n", args[0])
		return nil
	},
}

var assignmentConsentCmd = &cobra.Command{
	Use:   "consent [assignment-id]",
	Short: "Record the subject's consent decision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		declined, _ := cmd.Flags().GetBool("decline")
		accepted := !declined
		if err := wire.AssignmentService().AcceptConsent(NewContext(), args[0], accepted); err != nil {
			return err
		}
		fmt.Printf("✓ Consent for %s recorded: %s\n", args[0], consentLabel(&accepted))
		return nil
	},
}

func progressLabel(status string) string {
	switch status {
	case primary.StatusCompleted:
		return color.New(color.FgGreen).Sprint(status)
	case primary.StatusStarted:
		return color.New(color.FgYellow).Sprint(status)
	case primary.StatusFailed:
		return color.New(color.FgRed).Sprint(status)
	case primary.StatusRedo:
		return color.New(color.FgMagenta).Sprint(status)
	default:
		return status
	}
}

func consentLabel(accepted *bool) string {
	switch {
	case accepted == nil:
		return "-"
	case *accepted:
		return "accepted"
	default:
		return "declined"
	}
}

func init() {
	assignmentCreateCmd.Flags().Int("group", 0, "Group index for between-subject designs")
	assignmentCreateCmd.Flags().StringP("note", "n", "", "Note attached to the assignment")

	assignmentListCmd.Flags().String("subject", "", "Filter by subject ID")
	assignmentListCmd.Flags().String("battery", "", "Filter by battery ID")
	assignmentListCmd.Flags().String("status", "", "Filter by status")

	assignmentConsentCmd.Flags().Bool("decline", false, "Record that consent was declined")

	assignmentCmd.AddCommand(assignmentCreateCmd)
	assignmentCmd.AddCommand(assignmentAssignCmd)
	assignmentCmd.AddCommand(assignmentListCmd)
	assignmentCmd.AddCommand(assignmentShowCmd)
	assignmentCmd.AddCommand(assignmentNextCmd)
	assignmentCmd.AddCommand(assignmentStatusCmd)
	assignmentCmd.AddCommand(assignmentRedoCmd)
	assignmentCmd.AddCommand(assignmentConsentCmd)
}

// AssignmentCmd returns the assignment command
func AssignmentCmd() *cobra.Command {
	return assignmentCmd
}
