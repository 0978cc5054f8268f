package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/example/expfactory/internal/ports/primary"
)

// mockResultService implements primary.ResultService for testing
type mockResultService struct {
	export    primary.Export
	exportErr error

	lastScope string
	lastID    string
}

func (m *mockResultService) RecordResult(ctx context.Context, req primary.RecordResultRequest) (*primary.Result, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockResultService) UpdateResultStatus(ctx context.Context, resultID, status string) error {
	return errors.New("not implemented in adapter")
}

func (m *mockResultService) GetResult(ctx context.Context, resultID string) (*primary.Result, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockResultService) ListResults(ctx context.Context, filters primary.ResultFilters) ([]*primary.Result, error) {
	return nil, errors.New("not implemented in adapter")
}

func (m *mockResultService) record(scope, id string) (primary.Export, error) {
	m.lastScope, m.lastID = scope, id
	return m.export, m.exportErr
}

func (m *mockResultService) ExportBattery(ctx context.Context, batteryID string) (primary.Export, error) {
	return m.record(ScopeBattery, batteryID)
}

func (m *mockResultService) ExportSubject(ctx context.Context, subjectID string) (primary.Export, error) {
	return m.record(ScopeSubject, subjectID)
}

func (m *mockResultService) ExportResult(ctx context.Context, resultID string) (primary.Export, error) {
	return m.record(ScopeResult, resultID)
}

func sampleExport() primary.Export {
	return primary.Export{
		"stroop": {
			{Subject: "pilot-01", Data: map[string]any{"rt": float64(512)}},
			{Subject: "6b1d2c3e-0000-4000-8000-000000000002", Data: "not json"},
		},
	}
}

func TestExportAdapter_JSON(t *testing.T) {
	mock := &mockResultService{export: sampleExport()}
	var out bytes.Buffer
	adapter := NewExportAdapter(mock, &out)

	if _, err := adapter.Export(context.Background(), ScopeBattery, "BATT-001", FormatJSON); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.lastScope != ScopeBattery || mock.lastID != "BATT-001" {
		t.Errorf("called %s %s", mock.lastScope, mock.lastID)
	}

	var decoded map[string][]map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out.String())
	}
	entries := decoded["stroop"]
	if len(entries) != 2 {
		t.Fatalf("expected 2 stroop entries, got %d", len(entries))
	}
	if entries[0]["subject"] != "pilot-01" {
		t.Errorf("subject = %v", entries[0]["subject"])
	}
	if data, ok := entries[0]["data"].(map[string]any); !ok || data["rt"] != float64(512) {
		t.Errorf("data = %#v", entries[0]["data"])
	}
	if entries[1]["data"] != "not json" {
		t.Errorf("raw data = %#v", entries[1]["data"])
	}
}

func TestExportAdapter_YAML(t *testing.T) {
	mock := &mockResultService{export: sampleExport()}
	var out bytes.Buffer
	adapter := NewExportAdapter(mock, &out)

	if _, err := adapter.Export(context.Background(), ScopeSubject, "SUBJ-001", FormatYAML); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string][]struct {
		Subject string `yaml:"subject"`
		Data    any    `yaml:"data"`
	}
	if err := yaml.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not yaml: %v\n%s", err, out.String())
	}
	if len(decoded["stroop"]) != 2 || decoded["stroop"][0].Subject != "pilot-01" {
		t.Errorf("decoded = %+v", decoded)
	}
	if !strings.Contains(out.String(), "rt: 512") {
		t.Errorf("expected payload in output:\n%s", out.String())
	}
}

func TestExportAdapter_Errors(t *testing.T) {
	tests := []struct {
		name   string
		scope  string
		format string
		err    error
	}{
		{"unknown format", ScopeBattery, "csv", nil},
		{"unknown scope", "assignment", FormatJSON, nil},
		{"service error", ScopeResult, FormatJSON, errors.New("result RES-404 not found")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			adapter := NewExportAdapter(&mockResultService{exportErr: tt.err}, &out)
			if _, err := adapter.Export(context.Background(), tt.scope, "X-001", tt.format); err == nil {
				t.Error("expected error")
			}
			if out.Len() != 0 {
				t.Errorf("expected no output, got:\n%s", out.String())
			}
		})
	}
}

func TestEncode_EmptyExport(t *testing.T) {
	var out bytes.Buffer
	if err := Encode(&out, nil, FormatJSON); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "{}" {
		t.Errorf("expected empty object, got %q", out.String())
	}
}
