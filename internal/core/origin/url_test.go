package origin

import (
	"errors"
	"testing"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      GitURL
		wantError bool
	}{
		{
			name: "github ssh",
			raw:  "git@github.com:expfactory/experiments.git",
			want: GitURL{Host: "github.com", Owner: "expfactory", Name: "experiments"},
		},
		{
			name: "https without suffix",
			raw:  "https://github.com/expfactory/stroop",
			want: GitURL{Host: "github.com", Owner: "expfactory", Name: "stroop"},
		},
		{
			name: "ssh scheme",
			raw:  "ssh://git@gitlab.example.org/lab/tasks.git",
			want: GitURL{Host: "gitlab.example.org", Owner: "lab", Name: "tasks"},
		},
		{
			name: "local path",
			raw:  "/srv/git/battery-tasks",
			want: GitURL{Owner: "srv/git", Name: "battery-tasks"},
		},
		{
			name: "file url",
			raw:  "file:///srv/git/tasks.git",
			want: GitURL{Owner: "srv/git", Name: "tasks"},
		},
		{name: "empty", raw: "", wantError: true},
		{name: "whitespace inside", raw: "git@github.com:org/my repo", wantError: true},
		{name: "bare word", raw: "experiments", wantError: true},
		{name: "https without host", raw: "https:///org/name", wantError: true},
		{name: "no name", raw: "git@github.com:", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseURL(tt.raw)
			if tt.wantError {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURL failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseURL = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDisplayURL(t *testing.T) {
	if got := DisplayURL("git@github.com:org/repo.git"); got != "https://github.com/org/repo.git" {
		t.Errorf("DisplayURL = %q", got)
	}
	if got := DisplayURL("https://gitlab.com/org/repo"); got != "https://gitlab.com/org/repo" {
		t.Errorf("DisplayURL changed a non-github url: %q", got)
	}
}

func TestExperimentURL(t *testing.T) {
	t.Run("github ssh origin", func(t *testing.T) {
		got := ExperimentURL("git@github.com:expfactory/experiments.git", "/repos/experiments", "/repos/experiments/stroop", "main")
		want := "https://github.com/expfactory/experiments/tree/main/stroop"
		if got != want {
			t.Errorf("ExperimentURL = %q, want %q", got, want)
		}
	})

	t.Run("other origin", func(t *testing.T) {
		got := ExperimentURL("https://gitlab.com/lab/tasks", "/repos/tasks", "/stroop", "main")
		if got != "https://gitlab.com/lab/tasks/stroop" {
			t.Errorf("ExperimentURL = %q", got)
		}
	})
}

func TestRemoteURL(t *testing.T) {
	got := RemoteURL("https://github.com/expfactory/experiments/tree/main/stroop", "main", "3f2a9c1")
	want := "https://github.com/expfactory/experiments/tree/3f2a9c1/stroop"
	if got != want {
		t.Errorf("RemoteURL = %q, want %q", got, want)
	}
}

func TestCanCreateOrigin(t *testing.T) {
	tests := []struct {
		name        string
		ctx         CreateOriginContext
		wantAllowed bool
		wantReason  string
	}{
		{
			name:        "valid new origin",
			ctx:         CreateOriginContext{URL: "git@github.com:org/tasks.git", Name: "tasks", Path: "/repos/tasks"},
			wantAllowed: true,
		},
		{
			name:        "unparseable url",
			ctx:         CreateOriginContext{URL: "tasks", ParseError: errors.New("repository url \"tasks\" is not a recognised git url")},
			wantAllowed: false,
			wantReason:  "repository url \"tasks\" is not a recognised git url",
		},
		{
			name:        "already registered",
			ctx:         CreateOriginContext{URL: "git@github.com:org/tasks.git", Name: "tasks", Path: "/repos/tasks", Exists: true},
			wantAllowed: false,
			wantReason:  `repository "tasks" already registered at /repos/tasks`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanCreateOrigin(tt.ctx)
			if result.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", result.Allowed, tt.wantAllowed)
			}
			if !tt.wantAllowed && result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
		})
	}
}

func TestArchiveRestoreDeleteGuards(t *testing.T) {
	active := ArchiveOriginContext{OriginID: "ORIG-001", Active: true}
	archived := ArchiveOriginContext{OriginID: "ORIG-001", Active: false}

	if !CanArchiveOrigin(active).Allowed {
		t.Error("active origin should be archivable")
	}
	if CanArchiveOrigin(archived).Allowed {
		t.Error("archived origin should not be archivable")
	}
	if !CanRestoreOrigin(archived).Allowed {
		t.Error("archived origin should be restorable")
	}
	if CanRestoreOrigin(active).Allowed {
		t.Error("active origin should not be restorable")
	}
	if CanDeleteOrigin(active).Allowed {
		t.Error("active origin should not be deletable")
	}
	if r := CanDeleteOrigin(archived); !r.Allowed {
		t.Errorf("archived origin should be deletable: %s", r.Reason)
	}
}
