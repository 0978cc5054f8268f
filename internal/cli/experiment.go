package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/wire"
)

var experimentCmd = &cobra.Command{
	Use:     "experiment",
	Aliases: []string{"exp"},
	Short:   "Manage experiment repos and their commit instances",
}

var experimentCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Register an experiment inside an origin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		originID, _ := cmd.Flags().GetString("origin")
		branch, _ := cmd.Flags().GetString("branch")
		location, _ := cmd.Flags().GetString("location")
		frameworkID, _ := cmd.Flags().GetString("framework")
		cogatID, _ := cmd.Flags().GetString("cogat")

		resp, err := wire.ExperimentService().CreateExperimentRepo(ctx, primary.CreateExperimentRepoRequest{
			Name:        args[0],
			OriginID:    originID,
			Branch:      branch,
			Location:    location,
			FrameworkID: frameworkID,
			CogatID:     cogatID,
		})
		if err != nil {
			return fmt.Errorf("failed to create experiment: %w", err)
		}

		exp := resp.ExperimentRepo
		fmt.Printf("✓ Created experiment %s: %s\n", exp.ID, exp.Name)
		fmt.Printf("  Branch:   %s\n", exp.Branch)
		fmt.Printf("  Location: %s\n", exp.Location)
		if exp.URL != "" {
			fmt.Printf("  URL:      %s\n", exp.URL)
		}
		return nil
	},
}

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiment repos",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		originID, _ := cmd.Flags().GetString("origin")
		tag, _ := cmd.Flags().GetString("tag")
		filters := primary.ExperimentRepoFilters{OriginID: originID, Tag: tag}
		if inactive, _ := cmd.Flags().GetBool("inactive"); inactive {
			active := false
			filters.Active = &active
		}

		exps, err := wire.ExperimentService().ListExperimentRepos(ctx, filters)
		if err != nil {
			return fmt.Errorf("failed to list experiments: %w", err)
		}
		if len(exps) == 0 {
			fmt.Println("No experiments found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tORIGIN\tBRANCH\tSTATE\tTAGS")
		fmt.Fprintln(w, "--\t----\t------\t------\t-----\t----")
		for _, e := range exps {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID,
				e.Name,
				orDash(e.OriginID),
				e.Branch,
				activeLabel(e.Active),
				orDash(strings.Join(e.Tags, ",")),
			)
		}
		w.Flush()
		return nil
	},
}

var experimentShowCmd = &cobra.Command{
	Use:   "show [experiment-id]",
	Short: "Show an experiment and its instances",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		exp, err := wire.ExperimentService().GetExperimentRepo(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Experiment: %s\n", exp.ID)
		fmt.Printf("Name:      %s\n", exp.Name)
		fmt.Printf("Origin:    %s\n", orDash(exp.OriginID))
		fmt.Printf("Branch:    %s\n", exp.Branch)
		fmt.Printf("Location:  %s\n", exp.Location)
		fmt.Printf("URL:       %s\n", orDash(exp.URL))
		if exp.FrameworkID != "" {
			fmt.Printf("Framework: %s\n", exp.FrameworkID)
		}
		if exp.CogatID != "" {
			fmt.Printf("CogAt:     %s\n", exp.CogatID)
		}
		if len(exp.Tags) > 0 {
			fmt.Printf("Tags:      %s\n", strings.Join(exp.Tags, ", "))
		}
		fmt.Printf("State:     %s\n", activeLabel(exp.Active))
		fmt.Println()

		instances, err := wire.ExperimentService().ListInstances(ctx, exp.ID)
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}
		printInstances(instances)
		return nil
	},
}

var experimentUpdateCmd = &cobra.Command{
	Use:   "update [experiment-id]",
	Short: "Update experiment fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		name, _ := cmd.Flags().GetString("name")
		branch, _ := cmd.Flags().GetString("branch")
		location, _ := cmd.Flags().GetString("location")
		frameworkID, _ := cmd.Flags().GetString("framework")
		cogatID, _ := cmd.Flags().GetString("cogat")

		if name == "" && branch == "" && location == "" && frameworkID == "" && cogatID == "" {
			return fmt.Errorf("nothing to update: pass at least one of --name, --branch, --location, --framework, --cogat")
		}

		err := wire.ExperimentService().UpdateExperimentRepo(ctx, primary.UpdateExperimentRepoRequest{
			ExperimentRepoID: args[0],
			Name:             name,
			Branch:           branch,
			Location:         location,
			FrameworkID:      frameworkID,
			CogatID:          cogatID,
		})
		if err != nil {
			return fmt.Errorf("failed to update experiment: %w", err)
		}
		fmt.Printf("✓ Experiment %s updated\n", args[0])
		return nil
	},
}

var experimentActivateCmd = &cobra.Command{
	Use:   "activate [experiment-id]",
	Short: "Allow the experiment to be placed in batteries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setExperimentActive(args[0], true)
	},
}

var experimentDeactivateCmd = &cobra.Command{
	Use:   "deactivate [experiment-id]",
	Short: "Stop the experiment from being placed in batteries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setExperimentActive(args[0], false)
	},
}

func setExperimentActive(id string, active bool) error {
	if err := wire.ExperimentService().SetExperimentRepoActive(NewContext(), id, active); err != nil {
		return err
	}
	fmt.Printf("✓ Experiment %s is now %s\n", id, activeLabel(active))
	return nil
}

var experimentInstanceCmd = &cobra.Command{
	Use:   "instance [experiment-id] [commit]",
	Short: "Resolve an instance for a commit (default: latest)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		note, _ := cmd.Flags().GetString("note")
		commit := "latest"
		if len(args) == 2 {
			commit = args[1]
		}

		inst, err := wire.ExperimentService().UpsertInstance(ctx, primary.UpsertInstanceRequest{
			ExperimentRepoID: args[0],
			Commit:           commit,
			Note:             note,
		})
		if err != nil {
			return err
		}

		fmt.Printf("✓ Instance %s at %s\n", inst.ID, inst.Commit)
		if inst.RemoteURL != "" {
			fmt.Printf("  %s\n", inst.RemoteURL)
		}
		return nil
	},
}

var experimentDeployCmd = &cobra.Command{
	Use:   "deploy [instance-id]",
	Short: "Check an instance commit out into the deployment directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		resp, err := wire.ExperimentService().DeployInstance(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to deploy instance: %w", err)
		}
		if resp.AlreadyDeployed {
			fmt.Printf("Instance %s already deployed at %s\n", args[0], resp.Path)
			return nil
		}
		fmt.Printf("✓ Deployed %s to %s\n", args[0], resp.Path)
		return nil
	},
}

func printInstances(instances []*primary.ExperimentInstance) {
	if len(instances) == 0 {
		fmt.Println("No instances yet.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tCOMMIT\tDATE\tNOTE")
	fmt.Fprintln(w, "--------\t------\t----\t----")
	for _, inst := range instances {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inst.ID, inst.Commit, orDash(inst.CommitDate), orDash(inst.Note))
	}
	w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var frameworkCmd = &cobra.Command{
	Use:   "framework",
	Short: "Manage experiment frameworks",
}

var frameworkCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Register a framework",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		template, _ := cmd.Flags().GetString("template")
		fw, err := wire.ExperimentService().CreateFramework(ctx, primary.CreateFrameworkRequest{
			Name:     args[0],
			Template: template,
		})
		if err != nil {
			return fmt.Errorf("failed to create framework: %w", err)
		}
		fmt.Printf("✓ Created framework %s: %s\n", fw.ID, fw.Name)
		return nil
	},
}

var frameworkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List frameworks",
	RunE: func(cmd *cobra.Command, args []string) error {
		frameworks, err := wire.ExperimentService().ListFrameworks(NewContext())
		if err != nil {
			return fmt.Errorf("failed to list frameworks: %w", err)
		}
		if len(frameworks) == 0 {
			fmt.Println("No frameworks found")
			return nil
		}
		for _, fw := range frameworks {
			fmt.Printf("%-10s %s\n", fw.ID, fw.Name)
		}
		return nil
	},
}

func init() {
	experimentCreateCmd.Flags().String("origin", "", "Origin ID (required)")
	experimentCreateCmd.Flags().String("branch", "", "Branch (default main)")
	experimentCreateCmd.Flags().String("location", "", "Experiment directory (default <origin path>/<name>)")
	experimentCreateCmd.Flags().String("framework", "", "Framework ID")
	experimentCreateCmd.Flags().String("cogat", "", "Cognitive Atlas task ID")
	experimentCreateCmd.MarkFlagRequired("origin")

	experimentListCmd.Flags().String("origin", "", "Filter by origin ID")
	experimentListCmd.Flags().String("tag", "", "Filter by tag name")
	experimentListCmd.Flags().Bool("inactive", false, "Show only inactive experiments")

	experimentUpdateCmd.Flags().String("name", "", "New name")
	experimentUpdateCmd.Flags().String("branch", "", "New branch")
	experimentUpdateCmd.Flags().String("location", "", "New location")
	experimentUpdateCmd.Flags().String("framework", "", "New framework ID")
	experimentUpdateCmd.Flags().String("cogat", "", "New Cognitive Atlas task ID")

	experimentInstanceCmd.Flags().StringP("note", "n", "", "Note attached to the instance")

	experimentCmd.AddCommand(experimentCreateCmd)
	experimentCmd.AddCommand(experimentListCmd)
	experimentCmd.AddCommand(experimentShowCmd)
	experimentCmd.AddCommand(experimentUpdateCmd)
	experimentCmd.AddCommand(experimentActivateCmd)
	experimentCmd.AddCommand(experimentDeactivateCmd)
	experimentCmd.AddCommand(experimentInstanceCmd)
	experimentCmd.AddCommand(experimentDeployCmd)

	frameworkCreateCmd.Flags().String("template", "", "HTML template used by experiments of this framework")
	frameworkCmd.AddCommand(frameworkCreateCmd)
	frameworkCmd.AddCommand(frameworkListCmd)
}

// ExperimentCmd returns the experiment command
func ExperimentCmd() *cobra.Command {
	return experimentCmd
}

// FrameworkCmd returns the framework command
func FrameworkCmd() *cobra.Command {
	return frameworkCmd
}
