package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/wire"
)

var batteryCmd = &cobra.Command{
	Use:   "battery",
	Short: "Manage batteries (ordered collections of experiment instances)",
	Long: `Create batteries, place experiments in them at a commit and move them
through template -> draft -> published -> inactive.

Templates are copied into drafts with 'battery duplicate'; a template or
battery that has been published can no longer be edited.`,
}

var batteryCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a template (default) or draft battery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		status, _ := cmd.Flags().GetString("status")
		consent, _ := cmd.Flags().GetString("consent")
		instructions, _ := cmd.Flags().GetString("instructions")
		advertisement, _ := cmd.Flags().GetString("advertisement")
		fixed, _ := cmd.Flags().GetBool("fixed-order")
		public, _ := cmd.Flags().GetBool("public")
		interTaskBreak, _ := cmd.Flags().GetDuration("break")

		random := !fixed
		resp, err := wire.BatteryService().CreateBattery(ctx, primary.CreateBatteryRequest{
			Title:          args[0],
			Status:         status,
			Consent:        consent,
			Instructions:   instructions,
			Advertisement:  advertisement,
			RandomOrder:    &random,
			Public:         public,
			InterTaskBreak: interTaskBreak,
		})
		if err != nil {
			return fmt.Errorf("failed to create battery: %w", err)
		}

		fmt.Printf("✓ Created battery %s: %s (%s)\n", resp.BatteryID, resp.Battery.Title, resp.Battery.Status)
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Printf("  expfactory battery bind %s EXP-001 latest\n", resp.BatteryID)
		return nil
	},
}

var batteryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batteries",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		templateID, _ := cmd.Flags().GetString("template")
		_, err := wire.BatteryAdapter().List(NewContext(), primary.BatteryFilters{
			Status:     status,
			TemplateID: templateID,
		})
		return err
	},
}

var batteryShowCmd = &cobra.Command{
	Use:   "show [battery-id]",
	Short: "Show a battery and its experiments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := wire.BatteryAdapter().Show(NewContext(), args[0])
		return err
	},
}

var batteryUpdateCmd = &cobra.Command{
	Use:   "update [battery-id]",
	Short: "Update battery text and presentation settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		req := primary.UpdateBatteryRequest{BatteryID: args[0]}
		changed := false

		for flag, field := range map[string]**string{
			"title":         &req.Title,
			"consent":       &req.Consent,
			"instructions":  &req.Instructions,
			"advertisement": &req.Advertisement,
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*field = &v
				changed = true
			}
		}
		if cmd.Flags().Changed("fixed-order") {
			fixed, _ := cmd.Flags().GetBool("fixed-order")
			random := !fixed
			req.RandomOrder = &random
			changed = true
		}
		if cmd.Flags().Changed("public") {
			public, _ := cmd.Flags().GetBool("public")
			req.Public = &public
			changed = true
		}
		if cmd.Flags().Changed("break") {
			d, _ := cmd.Flags().GetDuration("break")
			req.InterTaskBreak = &d
			changed = true
		}
		if !changed {
			return fmt.Errorf("nothing to update")
		}

		if err := wire.BatteryService().UpdateBattery(ctx, req); err != nil {
			return fmt.Errorf("failed to update battery: %w", err)
		}
		fmt.Printf("✓ Battery %s updated\n", args[0])
		return nil
	},
}

var batteryStatusCmd = &cobra.Command{
	Use:   "status [battery-id] [template|draft|published|inactive]",
	Short: "Move a battery through its lifecycle",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := wire.BatteryService().SetBatteryStatus(NewContext(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Battery %s is now %s\n", args[0], args[1])
		return nil
	},
}

var batteryDuplicateCmd = &cobra.Command{
	Use:   "duplicate [battery-id]",
	Short: "Copy a battery and its experiments into a new draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		_, err := wire.BatteryAdapter().Duplicate(NewContext(), args[0], status)
		return err
	},
}

var batteryBindCmd = &cobra.Command{
	Use:   "bind [battery-id] [experiment-id] [commit]",
	Short: "Place an experiment in the battery at a commit (default: latest)",
	Long: `Place an experiment in the battery at a commit.

"latest" resolves the origin head and keeps following it on every pull.
A sha pins the experiment. Binding an experiment that is already in the
battery re-points its slot.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		note, _ := cmd.Flags().GetString("note")
		req := primary.BindCommitRequest{
			BatteryID:        args[0],
			ExperimentRepoID: args[1],
			Commit:           "latest",
			Note:             note,
		}
		if len(args) == 3 {
			req.Commit = args[2]
		}
		if cmd.Flags().Changed("order") {
			order, _ := cmd.Flags().GetInt("order")
			req.Order = &order
		}

		resp, err := wire.BatteryService().BindCommit(ctx, req)
		if err != nil {
			return err
		}

		verb := "Placed"
		if resp.Replaced {
			verb = "Re-pointed"
		}
		fmt.Printf("✓ %s %s in %s at %s (%s)\n", verb, args[1], args[0], resp.Instance.Commit, resp.BatteryExperimentID)
		return nil
	},
}

var batteryMoveCmd = &cobra.Command{
	Use:   "move [battery-id] [battery-experiment-id] [order]",
	Short: "Change the order of a battery experiment",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		order, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid order %q: %w", args[2], err)
		}
		if err := wire.BatteryService().MoveExperiment(NewContext(), args[0], args[1], order); err != nil {
			return err
		}
		fmt.Printf("✓ %s moved to position %d\n", args[1], order)
		return nil
	},
}

var batteryRemoveCmd = &cobra.Command{
	Use:   "remove [battery-id] [battery-experiment-id]",
	Short: "Remove an experiment from the battery",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := wire.BatteryService().RemoveExperiment(NewContext(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ %s removed from %s\n", args[1], args[0])
		return nil
	},
}

var batteryFollowCmd = &cobra.Command{
	Use:   "follow [battery-id] [battery-experiment-id]",
	Short: "Make a battery experiment follow its origin head on pull",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		off, _ := cmd.Flags().GetBool("off")
		if err := wire.BatteryService().SetUseLatest(NewContext(), args[0], args[1], !off); err != nil {
			return err
		}
		if off {
			fmt.Printf("✓ %s pinned at its current commit\n", args[1])
		} else {
			fmt.Printf("✓ %s follows the origin head\n", args[1])
		}
		return nil
	},
}

var batteryOrderCmd = &cobra.Command{
	Use:   "order [battery-id]",
	Short: "Generate a new random ordering of the battery's experiments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := NewContext()
		id, err := wire.OrderingService().GenerateOrder(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to generate ordering: %w", err)
		}
		o, err := wire.OrderingService().GetOrdering(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Created ordering %s\n", o.ID)
		for _, item := range o.Items {
			fmt.Printf("  %d. %s\n", item.Position+1, item.BatteryExperimentID)
		}
		return nil
	},
}

var batteryOrderingsCmd = &cobra.Command{
	Use:   "orderings [battery-id]",
	Short: "List the orderings of a battery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		orderings, err := wire.OrderingService().ListOrderings(NewContext(), args[0])
		if err != nil {
			return err
		}
		if len(orderings) == 0 {
			fmt.Println("No orderings found.")
			return nil
		}
		for _, o := range orderings {
			kind := "manual"
			if o.AutoGenerated {
				kind = "auto"
			}
			fmt.Printf("%-10s %-6s %d experiments  %s\n", o.ID, kind, len(o.Items), o.CreatedAt)
		}
		return nil
	},
}

func addBatteryTextFlags(cmd *cobra.Command) {
	cmd.Flags().String("consent", "", "Consent text shown before the first experiment")
	cmd.Flags().String("instructions", "", "Instructions shown to subjects")
	cmd.Flags().String("advertisement", "", "Recruitment advertisement")
	cmd.Flags().Bool("fixed-order", false, "Present experiments in battery order instead of randomly")
	cmd.Flags().Bool("public", false, "List the battery publicly")
	cmd.Flags().Duration("break", 0, "Break between experiments (e.g. 30s)")
}

func init() {
	batteryCreateCmd.Flags().String("status", "", "template (default) or draft")
	addBatteryTextFlags(batteryCreateCmd)

	batteryListCmd.Flags().String("status", "", "Filter by status")
	batteryListCmd.Flags().String("template", "", "Filter by template battery ID")

	batteryUpdateCmd.Flags().String("title", "", "New title")
	addBatteryTextFlags(batteryUpdateCmd)

	batteryDuplicateCmd.Flags().String("status", "", "draft (default) or template")

	batteryBindCmd.Flags().Int("order", 0, "Position in the battery (default: after the last experiment)")
	batteryBindCmd.Flags().StringP("note", "n", "", "Note attached to a new instance")

	batteryFollowCmd.Flags().Bool("off", false, "Stop following the head")

	batteryCmd.AddCommand(batteryCreateCmd)
	batteryCmd.AddCommand(batteryListCmd)
	batteryCmd.AddCommand(batteryShowCmd)
	batteryCmd.AddCommand(batteryUpdateCmd)
	batteryCmd.AddCommand(batteryStatusCmd)
	batteryCmd.AddCommand(batteryDuplicateCmd)
	batteryCmd.AddCommand(batteryBindCmd)
	batteryCmd.AddCommand(batteryMoveCmd)
	batteryCmd.AddCommand(batteryRemoveCmd)
	batteryCmd.AddCommand(batteryFollowCmd)
	batteryCmd.AddCommand(batteryOrderCmd)
	batteryCmd.AddCommand(batteryOrderingsCmd)
}

// BatteryCmd returns the battery command
func BatteryCmd() *cobra.Command {
	return batteryCmd
}
