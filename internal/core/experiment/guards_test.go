package experiment

import "testing"

func TestCanCreateExperimentRepo(t *testing.T) {
	tests := []struct {
		name        string
		ctx         CreateExperimentRepoContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "active origin with name",
			ctx:         CreateExperimentRepoContext{Name: "stroop", OriginID: "ORIG-001", OriginActive: true},
			wantAllowed: true,
		},
		{
			name:        "empty name",
			ctx:         CreateExperimentRepoContext{Name: "  ", OriginID: "ORIG-001", OriginActive: true},
			wantAllowed: false,
			wantReason:  "experiment name cannot be empty",
		},
		{
			name:        "archived origin",
			ctx:         CreateExperimentRepoContext{Name: "stroop", OriginID: "ORIG-001"},
			wantAllowed: false,
			wantReason:  "origin ORIG-001 is archived",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanCreateExperimentRepo(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestCanBind(t *testing.T) {
	if err := CanBind(BindContext{ExperimentRepoID: "EXP-001", Active: true}).Error(); err != nil {
		t.Errorf("active experiment should bind: %v", err)
	}
	err := CanBind(BindContext{ExperimentRepoID: "EXP-001"}).Error()
	if err == nil || err.Error() != "experiment EXP-001 is inactive" {
		t.Errorf("got %v, want inactive error", err)
	}
}
