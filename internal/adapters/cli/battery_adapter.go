// Package cli contains output adapters that translate CLI operations into primary port
// calls and render the results.
package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/example/expfactory/internal/ports/primary"
)

// BatteryAdapter is a thin adapter that translates CLI operations to BatteryService calls.
// It depends only on the BatteryService interface, enabling easy testing with mocks.
type BatteryAdapter struct {
	service primary.BatteryService
	out     io.Writer
}

// NewBatteryAdapter creates a new BatteryAdapter with the given service.
func NewBatteryAdapter(service primary.BatteryService, out io.Writer) *BatteryAdapter {
	return &BatteryAdapter{
		service: service,
		out:     out,
	}
}

// List lists batteries with optional filters.
func (a *BatteryAdapter) List(ctx context.Context, filters primary.BatteryFilters) ([]*primary.Battery, error) {
	batteries, err := a.service.ListBatteries(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list batteries: %w", err)
	}

	if len(batteries) == 0 {
		fmt.Fprintln(a.out, "No batteries found.")
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Create your first battery:")
		fmt.Fprintln(a.out, "  expfactory battery create \"Self-regulation\"")
		return batteries, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tTEMPLATE\tORDER")
	fmt.Fprintln(w, "--\t-----\t------\t--------\t-----")

	for _, b := range batteries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			b.ID,
			b.Title,
			b.Status,
			dash(b.TemplateID),
			orderLabel(b.RandomOrder),
		)
	}

	w.Flush()
	return batteries, nil
}

// Show displays a battery and its experiments in order.
func (a *BatteryAdapter) Show(ctx context.Context, batteryID string) (*primary.Battery, error) {
	b, err := a.service.GetBattery(ctx, batteryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get battery: %w", err)
	}
	rows, err := a.service.ListBatteryExperiments(ctx, batteryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list battery experiments: %w", err)
	}

	fmt.Fprintf(a.out, "\nBattery: %s\n", b.ID)
	fmt.Fprintf(a.out, "Title:   %s\n", b.Title)
	fmt.Fprintf(a.out, "Status:  %s\n", statusLabel(b.Status))
	if b.TemplateID != "" {
		fmt.Fprintf(a.out, "From:    %s\n", b.TemplateID)
	}
	fmt.Fprintf(a.out, "Order:   %s\n", orderLabel(b.RandomOrder))
	if b.InterTaskBreak > 0 {
		fmt.Fprintf(a.out, "Break:   %s\n", b.InterTaskBreak)
	}
	fmt.Fprintf(a.out, "Created: %s\n", b.CreatedAt)
	fmt.Fprintln(a.out)

	if len(rows) == 0 {
		fmt.Fprintln(a.out, "No experiments yet.")
		fmt.Fprintf(a.out, "  expfactory battery bind %s EXP-001 latest\n", b.ID)
		return b, nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SLOT\tORDER\tEXPERIMENT\tCOMMIT\tFOLLOWS HEAD")
	fmt.Fprintln(w, "----\t-----\t----------\t------\t------------")
	for _, r := range rows {
		follows := "no"
		if r.UseLatest {
			follows = "yes"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", r.ID, r.Order, r.ExperimentName, shortSHA(r.Commit), follows)
	}
	w.Flush()

	return b, nil
}

// Duplicate copies a battery into a new draft and reports the result.
func (a *BatteryAdapter) Duplicate(ctx context.Context, batteryID, status string) (*primary.Battery, error) {
	b, err := a.service.DuplicateBattery(ctx, primary.DuplicateBatteryRequest{
		BatteryID: batteryID,
		Status:    status,
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(a.out, "✓ Battery %s duplicated as %s (%s)\n", batteryID, b.ID, b.Status)
	if b.TemplateID != "" && b.TemplateID != batteryID {
		fmt.Fprintf(a.out, "  template: %s\n", b.TemplateID)
	}
	return b, nil
}

func statusLabel(status string) string {
	switch status {
	case primary.BatteryStatusPublished:
		return color.New(color.FgGreen).Sprint(status)
	case primary.BatteryStatusDraft:
		return color.New(color.FgYellow).Sprint(status)
	case primary.BatteryStatusInactive:
		return color.New(color.FgRed).Sprint(status)
	default:
		return color.New(color.FgBlue).Sprint(status)
	}
}

func orderLabel(random bool) string {
	if random {
		return "random"
	}
	return "fixed"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func shortSHA(sha string) string {
	if len(sha) > 10 {
		return sha[:10]
	}
	return sha
}
