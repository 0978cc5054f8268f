package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/wire"
)

var subjectCmd = &cobra.Command{
	Use:   "subject",
	Short: "Manage study subjects",
}

var subjectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a subject",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		handle, _ := cmd.Flags().GetString("handle")
		email, _ := cmd.Flags().GetString("email")
		notes, _ := cmd.Flags().GetString("notes")
		prolificID, _ := cmd.Flags().GetString("prolific")

		s, err := wire.SubjectService().CreateSubject(ctx, primary.CreateSubjectRequest{
			Handle:     handle,
			Email:      email,
			Notes:      notes,
			ProlificID: prolificID,
		})
		if err != nil {
			return fmt.Errorf("failed to create subject: %w", err)
		}
		fmt.Printf("✓ Created subject %s (%s)\n", s.ID, s.UUID)
		return nil
	},
}

var subjectBulkCmd = &cobra.Command{
	Use:   "bulk [count]",
	Short: "Create anonymous subjects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		count, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid count %q: %w", args[0], err)
		}
		subjects, err := wire.SubjectService().CreateSubjects(NewContext(), count)
		if err != nil {
			return fmt.Errorf("failed to create subjects: %w", err)
		}
		fmt.Printf("✓ Created %d subject(s)\n", len(subjects))
		for _, s := range subjects {
			fmt.Printf("  %s %s\n", s.ID, s.UUID)
		}
		return nil
	},
}

var subjectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subjects",
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")
		active, _ := cmd.Flags().GetBool("active")
		filters := primary.SubjectFilters{
			Tag:    tag,
			Active: optionalBool(cmd.Flags().Changed("active"), active),
		}

		subjects, err := wire.SubjectService().ListSubjects(NewContext(), filters)
		if err != nil {
			return fmt.Errorf("failed to list subjects: %w", err)
		}
		if len(subjects) == 0 {
			fmt.Println("No subjects found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tHANDLE\tUUID\tSTATE\tTAGS")
		fmt.Fprintln(w, "--\t------\t----\t-----\t----")
		for _, s := range subjects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				s.ID, orDash(s.Handle), s.UUID, activeLabel(s.Active), orDash(strings.Join(s.Tags, ",")))
		}
		w.Flush()
		return nil
	},
}

var subjectShowCmd = &cobra.Command{
	Use:   "show [subject-id|uuid]",
	Short: "Show subject details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		var (
			s   *primary.Subject
			err error
		)
		if byUUID, _ := cmd.Flags().GetBool("uuid"); byUUID {
			s, err = wire.SubjectService().GetSubjectByUUID(ctx, args[0])
		} else {
			s, err = wire.SubjectService().GetSubject(ctx, args[0])
		}
		if err != nil {
			return err
		}

		fmt.Printf("Subject: %s\n", s.ID)
		fmt.Printf("UUID:     %s\n", s.UUID)
		fmt.Printf("Handle:   %s\n", orDash(s.Handle))
		if s.Email != "" {
			fmt.Printf("Email:    %s\n", s.Email)
		}
		if s.ProlificID != "" {
			fmt.Printf("Prolific: %s\n", s.ProlificID)
		}
		if s.Notes != "" {
			fmt.Printf("Notes:    %s\n", s.Notes)
		}
		if len(s.Tags) > 0 {
			fmt.Printf("Tags:     %s\n", strings.Join(s.Tags, ", "))
		}
		fmt.Printf("State:    %s\n", activeLabel(s.Active))
		fmt.Printf("Created:  %s\n", s.CreatedAt)
		return nil
	},
}

var subjectActivateCmd = &cobra.Command{
	Use:   "activate [subject-id]",
	Short: "Re-activate a subject",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSubjectActive(args[0], true)
	},
}

var subjectDeactivateCmd = &cobra.Command{
	Use:   "deactivate [subject-id]",
	Short: "Deactivate a subject (no new assignments)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setSubjectActive(args[0], false)
	},
}

func setSubjectActive(id string, active bool) error {
	if err := wire.SubjectService().SetSubjectActive(NewContext(), id, active); err != nil {
		return err
	}
	fmt.Printf("✓ Subject %s is now %s\n", id, activeLabel(active))
	return nil
}

func init() {
	subjectCreateCmd.Flags().String("handle", "", "Display handle used in exports")
	subjectCreateCmd.Flags().String("email", "", "Contact email")
	subjectCreateCmd.Flags().String("notes", "", "Free-form notes")
	subjectCreateCmd.Flags().String("prolific", "", "Prolific participant ID")

	subjectListCmd.Flags().Bool("active", true, "Filter by active state (only applied when set)")
	subjectListCmd.Flags().String("tag", "", "Filter by tag name")

	subjectShowCmd.Flags().Bool("uuid", false, "Look the subject up by uuid")

	subjectCmd.AddCommand(subjectCreateCmd)
	subjectCmd.AddCommand(subjectBulkCmd)
	subjectCmd.AddCommand(subjectListCmd)
	subjectCmd.AddCommand(subjectShowCmd)
	subjectCmd.AddCommand(subjectActivateCmd)
	subjectCmd.AddCommand(subjectDeactivateCmd)
}

// SubjectCmd returns the subject command
func SubjectCmd() *cobra.Command {
	return subjectCmd
}
