package app

import (
	"context"
	"testing"

	"github.com/example/expfactory/internal/ports/primary"
)

func TestSubjectService_CreateSubjects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	subjects, err := env.subjects.CreateSubjects(ctx, 3)
	if err != nil {
		t.Fatalf("CreateSubjects failed: %v", err)
	}
	if len(subjects) != 3 {
		t.Fatalf("created %d subjects, want 3", len(subjects))
	}
	seen := map[string]bool{}
	for _, s := range subjects {
		if !s.Active || s.Handle != "" {
			t.Errorf("subject = %+v, want active and anonymous", s)
		}
		if seen[s.UUID] {
			t.Errorf("uuid %s reused", s.UUID)
		}
		seen[s.UUID] = true
	}

	if _, err := env.subjects.CreateSubjects(ctx, 0); err == nil {
		t.Error("expected error for zero subjects")
	}
}

func TestSubjectService_GetSubjectByUUID(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.subject(t, "ada")
	want := env.db.subjects[id].UUID

	got, err := env.subjects.GetSubjectByUUID(ctx, want)
	if err != nil {
		t.Fatalf("GetSubjectByUUID failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}

	if _, err := env.subjects.GetSubjectByUUID(ctx, "00000000-0000-0000-0000-999999999999"); err == nil {
		t.Error("expected error for unknown uuid")
	}
}

func TestSubjectService_ListSubjects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	ada, bob := env.subject(t, "ada"), env.subject(t, "bob")
	if err := env.subjects.SetSubjectActive(ctx, bob, false); err != nil {
		t.Fatalf("SetSubjectActive failed: %v", err)
	}
	if _, err := env.tags.CreateTag(ctx, primary.CreateTagRequest{Name: "pilot"}); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}
	if err := env.tags.TagEntities(ctx, primary.TagEntitySubject, "pilot", []string{ada}); err != nil {
		t.Fatalf("TagEntities failed: %v", err)
	}

	active := true
	tests := []struct {
		name    string
		filters primary.SubjectFilters
		want    []string
	}{
		{"all", primary.SubjectFilters{}, []string{ada, bob}},
		{"active only", primary.SubjectFilters{Active: &active}, []string{ada}},
		{"by tag", primary.SubjectFilters{Tag: "pilot"}, []string{ada}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.subjects.ListSubjects(ctx, tt.filters)
			if err != nil {
				t.Fatalf("ListSubjects failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d subjects, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("subject %d = %s, want %s", i, got[i].ID, tt.want[i])
				}
			}
		})
	}

	s, _ := env.subjects.GetSubject(ctx, ada)
	if len(s.Tags) != 1 || s.Tags[0] != "pilot" {
		t.Errorf("Tags = %v, want [pilot]", s.Tags)
	}
	if !env.logs.has("update subject/" + bob + " active true->false") {
		t.Errorf("missing audit entry, got %v", env.logs.entries)
	}
}
