// Package export groups results by experiment for download.
package export

import (
	"encoding/json"
	"sort"
	"strings"
)

// Row is one result as needed for export.
type Row struct {
	ExperimentName string
	SubjectHandle  string
	SubjectUUID    string
	Data           string
}

// Entry is one exported result.
type Entry struct {
	Subject string `json:"subject" yaml:"subject"`
	Data    any    `json:"data" yaml:"data"`
}

// Export maps experiment name to its results.
type Export map[string][]Entry

// Build groups rows by experiment name, keeping row order within each experiment.
func Build(rows []Row) Export {
	out := make(Export)
	for _, r := range rows {
		out[r.ExperimentName] = append(out[r.ExperimentName], Entry{
			Subject: SubjectLabel(r.SubjectHandle, r.SubjectUUID),
			Data:    ParseData(r.Data),
		})
	}
	return out
}

// Experiments returns the experiment names in sorted order.
func (e Export) Experiments() []string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SubjectLabel prefers the handle and falls back to the uuid.
func SubjectLabel(handle, uuid string) string {
	if handle != "" {
		return handle
	}
	return uuid
}

// ParseData decodes a JSON payload; anything that does not decode is returned as the raw string.
func ParseData(data string) any {
	trimmed := strings.TrimSpace(data)
	if trimmed == "" {
		return data
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return data
	}
	return v
}
