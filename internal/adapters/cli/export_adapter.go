package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/example/expfactory/internal/ports/primary"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Export scopes.
const (
	ScopeBattery = "battery"
	ScopeSubject = "subject"
	ScopeResult  = "result"
)

// ExportAdapter writes result exports in JSON or YAML.
type ExportAdapter struct {
	service primary.ResultService
	out     io.Writer
}

// NewExportAdapter creates a new ExportAdapter with the given service.
func NewExportAdapter(service primary.ResultService, out io.Writer) *ExportAdapter {
	return &ExportAdapter{
		service: service,
		out:     out,
	}
}

// Export fetches the export for scope/id and encodes it to the adapter output.
func (a *ExportAdapter) Export(ctx context.Context, scope, id, format string) (primary.Export, error) {
	if format != FormatJSON && format != FormatYAML {
		return nil, fmt.Errorf("unknown export format %q (expected json or yaml)", format)
	}

	var (
		export primary.Export
		err    error
	)
	switch scope {
	case ScopeBattery:
		export, err = a.service.ExportBattery(ctx, id)
	case ScopeSubject:
		export, err = a.service.ExportSubject(ctx, id)
	case ScopeResult:
		export, err = a.service.ExportResult(ctx, id)
	default:
		return nil, fmt.Errorf("unknown export scope %q (expected battery, subject or result)", scope)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to export %s %s: %w", scope, id, err)
	}

	if err := Encode(a.out, export, format); err != nil {
		return nil, err
	}
	return export, nil
}

// Encode writes export to w. Map keys are emitted in sorted order by both encoders.
func Encode(w io.Writer, export primary.Export, format string) error {
	if export == nil {
		export = primary.Export{}
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(export); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(export); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}
