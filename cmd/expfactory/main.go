package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/expfactory/internal/cli"
	"github.com/example/expfactory/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "expfactory",
		Short:   "expfactory - deploy experiment batteries from git",
		Version: version.String(),
		Long: `expfactory manages experiment batteries built from experiments kept in git
repositories. Experiments are pinned at a commit, assembled into batteries,
assigned to subjects and served in a fixed or random order.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			actor, _ := cmd.Flags().GetString("actor")
			cli.DetectAndStoreActor(actor)
		},
	}
	rootCmd.PersistentFlags().String("actor", "", "Actor recorded in the audit log (default $EXPFACTORY_ACTOR)")

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.OriginCmd())
	rootCmd.AddCommand(cli.ExperimentCmd())
	rootCmd.AddCommand(cli.FrameworkCmd())
	rootCmd.AddCommand(cli.BatteryCmd())
	rootCmd.AddCommand(cli.SubjectCmd())
	rootCmd.AddCommand(cli.AssignmentCmd())
	rootCmd.AddCommand(cli.ResultCmd())
	rootCmd.AddCommand(cli.ExportCmd())
	rootCmd.AddCommand(cli.TagCmd())
	rootCmd.AddCommand(cli.LogCmd())

	// Developer tools
	rootCmd.AddCommand(cli.DevCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
