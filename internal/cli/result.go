package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/expfactory/internal/adapters/cli"
	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/wire"
)

var resultCmd = &cobra.Command{
	Use:   "result",
	Short: "Record and inspect experiment results",
}

var resultRecordCmd = &cobra.Command{
	Use:   "record [assignment-id] [battery-experiment-id]",
	Short: "Record a result for one experiment of an assignment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		data, _ := cmd.Flags().GetString("data")
		dataFile, _ := cmd.Flags().GetString("data-file")
		if dataFile != "" {
			raw, err := readDataFile(dataFile)
			if err != nil {
				return err
			}
			data = raw
		}

		r, err := wire.ResultService().RecordResult(NewContext(), primary.RecordResultRequest{
			AssignmentID:        args[0],
			BatteryExperimentID: args[1],
			Status:              status,
			Data:                data,
		})
		if err != nil {
			return err
		}
		fmt.Printf("✓ Recorded result %s (%s)\n", r.ID, progressLabel(r.Status))
		return nil
	},
}

// readDataFile reads a result payload from path, or from stdin when path is "-".
func readDataFile(path string) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read result data: %w", err)
	}
	return string(raw), nil
}

var resultStatusCmd = &cobra.Command{
	Use:   "status [result-id] [started|completed|failed|redo]",
	Short: "Move a result to a new status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := wire.ResultService().UpdateResultStatus(NewContext(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ Result %s is now %s\n", args[0], progressLabel(args[1]))
		return nil
	},
}

var resultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List results",
	RunE: func(cmd *cobra.Command, args []string) error {
		assignmentID, _ := cmd.Flags().GetString("assignment")
		subjectID, _ := cmd.Flags().GetString("subject")
		batteryID, _ := cmd.Flags().GetString("battery")

		results, err := wire.ResultService().ListResults(NewContext(), primary.ResultFilters{
			AssignmentID: assignmentID,
			SubjectID:    subjectID,
			BatteryID:    batteryID,
		})
		if err != nil {
			return fmt.Errorf("failed to list results: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("No results found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tASSIGNMENT\tEXPERIMENT\tSUBJECT\tSTATUS\tUPDATED")
		fmt.Fprintln(w, "--\t----------\t----------\t-------\t------\t-------")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.AssignmentID, r.BatteryExperimentID, r.SubjectID, progressLabel(r.Status), r.UpdatedAt)
		}
		w.Flush()
		return nil
	},
}

var resultShowCmd = &cobra.Command{
	Use:   "show [result-id]",
	Short: "Show a result and its payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := wire.ResultService().GetResult(NewContext(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Result: %s\n", r.ID)
		fmt.Printf("Assignment: %s\n", r.AssignmentID)
		fmt.Printf("Experiment: %s\n", r.BatteryExperimentID)
		fmt.Printf("Subject:    %s\n", r.SubjectID)
		fmt.Printf("Status:     %s\n", progressLabel(r.Status))
		if r.StartedAt != "" {
			fmt.Printf("Started:    %s\n", r.StartedAt)
		}
		if r.CompletedAt != "" {
			fmt.Printf("Completed:  %s\n", r.CompletedAt)
		}
		if r.FailedAt != "" {
			fmt.Printf("Failed:     %s\n", r.FailedAt)
		}
		if r.Data != "" {
			fmt.Println()
			fmt.Println(r.Data)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [battery|subject|result] [id]",
	Short: "Export results grouped by experiment name",
	Long: `Export results grouped by experiment name as JSON or YAML.

Each entry carries the subject handle (or uuid when the subject has no
handle) and the decoded result payload.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		if output == "" {
			_, err := wire.ExportAdapter().Export(NewContext(), args[0], args[1], format)
			return err
		}

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", output, err)
		}
		defer f.Close()

		if _, err := wire.ExportAdapterWithOutput(f).Export(NewContext(), args[0], args[1], format); err != nil {
			return err
		}
		fmt.Printf("✓ Exported %s %s to %s\n", args[0], args[1], output)
		return nil
	},
}

func init() {
	resultRecordCmd.Flags().String("status", "", "Result status (default completed)")
	resultRecordCmd.Flags().String("data", "", "Result payload, usually JSON")
	resultRecordCmd.Flags().String("data-file", "", "Read the payload from a file (- for stdin)")

	resultListCmd.Flags().String("assignment", "", "Filter by assignment ID")
	resultListCmd.Flags().String("subject", "", "Filter by subject ID")
	resultListCmd.Flags().String("battery", "", "Filter by battery ID")

	exportCmd.Flags().StringP("format", "f", cliadapter.FormatJSON, "Output format: json or yaml")
	exportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")

	resultCmd.AddCommand(resultRecordCmd)
	resultCmd.AddCommand(resultStatusCmd)
	resultCmd.AddCommand(resultListCmd)
	resultCmd.AddCommand(resultShowCmd)
}

// ResultCmd returns the result command
func ResultCmd() *cobra.Command {
	return resultCmd
}

// ExportCmd returns the export command
func ExportCmd() *cobra.Command {
	return exportCmd
}
