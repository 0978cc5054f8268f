package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/wire"
)

var originCmd = &cobra.Command{
	Use:   "origin",
	Short: "Manage experiment repo origins (cloned git repositories)",
	Long: `Register, pull and archive the git repositories experiments live in.

Pulling an origin moves every battery experiment that follows the head
to the new commit.`,
}

var originCreateCmd = &cobra.Command{
	Use:   "create [url]",
	Short: "Register and clone a git repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		skipClone, _ := cmd.Flags().GetBool("skip-clone")

		resp, err := wire.OriginService().CreateOrigin(ctx, primary.CreateOriginRequest{
			URL:       args[0],
			SkipClone: skipClone,
		})
		if err != nil {
			return fmt.Errorf("failed to create origin: %w", err)
		}

		o := resp.Origin
		fmt.Printf("✓ Created origin %s: %s\n", o.ID, o.Name)
		fmt.Printf("  URL:  %s\n", o.DisplayURL)
		fmt.Printf("  Path: %s\n", o.Path)
		return nil
	},
}

var originListCmd = &cobra.Command{
	Use:   "list",
	Short: "List origins",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		var filters primary.OriginFilters
		if archived, _ := cmd.Flags().GetBool("archived"); archived {
			active := false
			filters.Active = &active
		}

		origins, err := wire.OriginService().ListOrigins(ctx, filters)
		if err != nil {
			return fmt.Errorf("failed to list origins: %w", err)
		}

		if len(origins) == 0 {
			fmt.Println("No origins found.")
			fmt.Println()
			fmt.Println("Register one:")
			fmt.Println("  expfactory origin create https://github.com/expfactory/experiments.git")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tURL\tSTATE")
		fmt.Fprintln(w, "--\t----\t---\t-----")
		for _, o := range origins {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.ID, o.Name, o.DisplayURL, activeLabel(o.Active))
		}
		w.Flush()
		return nil
	},
}

var originShowCmd = &cobra.Command{
	Use:   "show [origin-id]",
	Short: "Show origin details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		o, err := wire.OriginService().GetOrigin(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Origin: %s\n", o.ID)
		fmt.Printf("Name:    %s\n", o.Name)
		fmt.Printf("URL:     %s\n", o.URL)
		fmt.Printf("Browse:  %s\n", o.DisplayURL)
		fmt.Printf("Path:    %s\n", o.Path)
		fmt.Printf("State:   %s\n", activeLabel(o.Active))
		fmt.Printf("Created: %s\n", o.CreatedAt)
		return nil
	},
}

var originPullCmd = &cobra.Command{
	Use:   "pull [origin-id]",
	Short: "Pull the origin and move head-following battery experiments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		resp, err := wire.OriginService().PullOrigin(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to pull origin: %w", err)
		}

		fmt.Printf("✓ Pulled %s, head is now %s\n", args[0], resp.Commit)
		if len(resp.Repointed) == 0 {
			fmt.Println("  No battery experiments moved")
			return nil
		}
		fmt.Printf("  Moved %d battery experiment(s):\n", len(resp.Repointed))
		for _, id := range resp.Repointed {
			fmt.Printf("    %s\n", id)
		}
		return nil
	},
}

var originArchiveCmd = &cobra.Command{
	Use:   "archive [origin-id]",
	Short: "Archive an origin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		if err := wire.OriginService().ArchiveOrigin(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Origin %s archived\n", args[0])
		return nil
	},
}

var originRestoreCmd = &cobra.Command{
	Use:   "restore [origin-id]",
	Short: "Restore an archived origin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		if err := wire.OriginService().RestoreOrigin(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Origin %s restored\n", args[0])
		return nil
	},
}

var originDeleteCmd = &cobra.Command{
	Use:   "delete [origin-id]",
	Short: "Delete an archived origin (its experiments stay, without origin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		if err := wire.OriginService().DeleteOrigin(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Origin %s deleted\n", args[0])
		return nil
	},
}

func activeLabel(active bool) string {
	if active {
		return color.New(color.FgGreen).Sprint("active")
	}
	return color.New(color.FgRed).Sprint("inactive")
}

func init() {
	originCreateCmd.Flags().Bool("skip-clone", false, "Record an existing clone without cloning")
	originListCmd.Flags().Bool("archived", false, "Show only archived origins")

	originCmd.AddCommand(originCreateCmd)
	originCmd.AddCommand(originListCmd)
	originCmd.AddCommand(originShowCmd)
	originCmd.AddCommand(originPullCmd)
	originCmd.AddCommand(originArchiveCmd)
	originCmd.AddCommand(originRestoreCmd)
	originCmd.AddCommand(originDeleteCmd)
}

// OriginCmd returns the origin command
func OriginCmd() *cobra.Command {
	return originCmd
}
