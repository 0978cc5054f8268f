package assignment

import (
	"slices"
	"testing"
	"time"

	"github.com/example/expfactory/internal/core/progress"
)

func TestPlanNext(t *testing.T) {
	now := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name          string
		status        progress.Status
		candidates    []string
		exempt        map[string]bool
		wantNext      string
		wantRemaining int
		wantTo        progress.Status // "" means no transition
	}{
		{
			name:          "first call starts assignment",
			status:        progress.StatusNotStarted,
			candidates:    []string{"INST-001", "INST-002"},
			exempt:        map[string]bool{},
			wantNext:      "INST-001",
			wantRemaining: 2,
			wantTo:        progress.StatusStarted,
		},
		{
			name:          "started assignment keeps status",
			status:        progress.StatusStarted,
			candidates:    []string{"INST-001", "INST-002"},
			exempt:        map[string]bool{"INST-001": true},
			wantNext:      "INST-002",
			wantRemaining: 1,
		},
		{
			name:          "all exempt completes assignment",
			status:        progress.StatusStarted,
			candidates:    []string{"INST-001"},
			exempt:        map[string]bool{"INST-001": true},
			wantRemaining: 0,
			wantTo:        progress.StatusCompleted,
		},
		{
			name:          "empty battery completes a not-started assignment",
			status:        progress.StatusNotStarted,
			candidates:    nil,
			exempt:        map[string]bool{},
			wantRemaining: 0,
			wantTo:        progress.StatusCompleted,
		},
		{
			name:          "completed stays completed",
			status:        progress.StatusCompleted,
			candidates:    nil,
			exempt:        map[string]bool{},
			wantRemaining: 0,
		},
		{
			name:          "redo with items left keeps redo",
			status:        progress.StatusRedo,
			candidates:    []string{"INST-001"},
			exempt:        map[string]bool{},
			wantNext:      "INST-001",
			wantRemaining: 1,
		},
		{
			name:          "failed assignment is not completed",
			status:        progress.StatusFailed,
			candidates:    nil,
			exempt:        map[string]bool{},
			wantRemaining: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := PlanNext(tt.status, tt.candidates, tt.exempt, now)

			if plan.Next() != tt.wantNext {
				t.Errorf("Next() = %q, want %q", plan.Next(), tt.wantNext)
			}
			if len(plan.Remaining) != tt.wantRemaining {
				t.Errorf("remaining = %d, want %d", len(plan.Remaining), tt.wantRemaining)
			}
			if tt.wantTo == "" {
				if plan.Transition != nil {
					t.Errorf("expected no transition, got %s -> %s", plan.Transition.From, plan.Transition.To)
				}
				return
			}
			if plan.Transition == nil {
				t.Fatalf("expected transition to %s, got none", tt.wantTo)
			}
			if plan.Transition.To != tt.wantTo {
				t.Errorf("transition to %s, want %s", plan.Transition.To, tt.wantTo)
			}
		})
	}
}

func TestPlanNext_RemainingOrder(t *testing.T) {
	plan := PlanNext(progress.StatusStarted,
		[]string{"INST-004", "INST-002", "INST-003", "INST-001"},
		map[string]bool{"INST-002": true},
		time.Now())

	want := []string{"INST-004", "INST-003", "INST-001"}
	if !slices.Equal(plan.Remaining, want) {
		t.Errorf("Remaining = %v, want %v", plan.Remaining, want)
	}
}

func TestCanCreateAssignment(t *testing.T) {
	tests := []struct {
		name        string
		ctx         CreateAssignmentContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "published battery and active subject",
			ctx:         CreateAssignmentContext{SubjectID: "SUBJ-001", SubjectActive: true, BatteryID: "BATT-001", BatteryStatus: "published"},
			wantAllowed: true,
		},
		{
			name:        "draft battery can be trialled",
			ctx:         CreateAssignmentContext{SubjectID: "SUBJ-001", SubjectActive: true, BatteryID: "BATT-001", BatteryStatus: "draft"},
			wantAllowed: true,
		},
		{
			name:        "inactive subject",
			ctx:         CreateAssignmentContext{SubjectID: "SUBJ-001", SubjectActive: false, BatteryID: "BATT-001", BatteryStatus: "published"},
			wantAllowed: false,
			wantReason:  "subject SUBJ-001 is inactive",
		},
		{
			name:        "inactive battery",
			ctx:         CreateAssignmentContext{SubjectID: "SUBJ-001", SubjectActive: true, BatteryID: "BATT-001", BatteryStatus: "inactive"},
			wantAllowed: false,
			wantReason:  "battery BATT-001 is inactive and cannot take new subjects",
		},
		{
			name:        "template battery",
			ctx:         CreateAssignmentContext{SubjectID: "SUBJ-001", SubjectActive: true, BatteryID: "BATT-001", BatteryStatus: "template"},
			wantAllowed: false,
			wantReason:  "cannot assign subjects to battery BATT-001 with status template (duplicate it into a draft first)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanCreateAssignment(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}
