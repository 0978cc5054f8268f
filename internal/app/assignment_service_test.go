package app

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// threeExperimentBattery returns a battery holding stroop, go-nogo and flanker at c1.
func threeExperimentBattery(t *testing.T, env *testEnv, random bool) (string, []string) {
	t.Helper()
	o := env.githubOrigin(t, "experiments")
	b := env.battery(t, primary.BatteryStatusDraft, random)
	bexps := env.bind(t, b,
		env.experiment(t, o, "stroop"),
		env.experiment(t, o, "go-nogo"),
		env.experiment(t, o, "flanker"),
	)
	return b, bexps
}

func (e *testEnv) assign(t *testing.T, subjectID, batteryID string) *primary.Assignment {
	t.Helper()
	a, err := e.assignments.CreateAssignment(context.Background(), primary.CreateAssignmentRequest{
		SubjectID: subjectID,
		BatteryID: batteryID,
	})
	if err != nil {
		t.Fatalf("CreateAssignment failed: %v", err)
	}
	return a
}

// orderedInstances maps an ordering's items to instance IDs by position.
func (e *testEnv) orderedInstances(orderingID string) []string {
	items := append([]*secondary.OrderItemRecord(nil), e.db.orderItems[orderingID]...)
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = e.db.bexps[it.BatteryExperimentID].InstanceID
	}
	return ids
}

func TestAssignmentService_CreateAssignment(t *testing.T) {
	ctx := context.Background()

	t.Run("random battery gets a persisted ordering", func(t *testing.T) {
		env := newTestEnv(t)
		b, bexps := threeExperimentBattery(t, env, true)
		s := env.subject(t, "ada")

		a := env.assign(t, s, b)

		if a.OrderingID == "" {
			t.Fatal("expected an ordering for a random-order battery")
		}
		if got := len(env.db.orderItems[a.OrderingID]); got != len(bexps) {
			t.Errorf("ordering has %d items, want %d", got, len(bexps))
		}
		if a.Status != primary.StatusNotStarted {
			t.Errorf("Status = %q, want %q", a.Status, primary.StatusNotStarted)
		}
		if !env.logs.has("create assignment/" + a.ID) {
			t.Errorf("missing audit entry, got %v", env.logs.entries)
		}
	})

	t.Run("fixed-order battery has no ordering", func(t *testing.T) {
		env := newTestEnv(t)
		b, _ := threeExperimentBattery(t, env, false)
		a := env.assign(t, env.subject(t, "ada"), b)

		if a.OrderingID != "" {
			t.Errorf("OrderingID = %q, want empty", a.OrderingID)
		}
		if len(env.db.orders) != 0 {
			t.Errorf("created %d orderings, want 0", len(env.db.orders))
		}
	})

	t.Run("second assignment of the same pair is a duplicate", func(t *testing.T) {
		env := newTestEnv(t)
		b, _ := threeExperimentBattery(t, env, true)
		s := env.subject(t, "ada")
		env.assign(t, s, b)

		_, err := env.assignments.CreateAssignment(ctx, primary.CreateAssignmentRequest{SubjectID: s, BatteryID: b})
		if !errors.Is(err, secondary.ErrDuplicateAssignment) {
			t.Fatalf("err = %v, want ErrDuplicateAssignment", err)
		}
		if len(env.db.orders) != 1 {
			t.Errorf("orderings = %d, want 1", len(env.db.orders))
		}
	})

	t.Run("template batteries do not take subjects", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.battery(t, primary.BatteryStatusTemplate, true)
		_, err := env.assignments.CreateAssignment(ctx, primary.CreateAssignmentRequest{
			SubjectID: env.subject(t, "ada"),
			BatteryID: b,
		})
		if err == nil {
			t.Fatal("expected error for template battery")
		}
	})

	t.Run("inactive subject is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.battery(t, primary.BatteryStatusDraft, false)
		s := env.subject(t, "ada")
		if err := env.subjects.SetSubjectActive(ctx, s, false); err != nil {
			t.Fatalf("SetSubjectActive failed: %v", err)
		}
		_, err := env.assignments.CreateAssignment(ctx, primary.CreateAssignmentRequest{SubjectID: s, BatteryID: b})
		if err == nil || err.Error() != "subject "+s+" is inactive" {
			t.Errorf("err = %v, want inactive subject error", err)
		}
	})
}

func TestAssignmentService_AssignSubjects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b, _ := threeExperimentBattery(t, env, false)
	ada, bob := env.subject(t, "ada"), env.subject(t, "bob")
	env.assign(t, ada, b)

	resp, err := env.assignments.AssignSubjects(ctx, b, []string{ada, bob})
	if err != nil {
		t.Fatalf("AssignSubjects failed: %v", err)
	}
	if len(resp.Created) != 1 || resp.Created[0].SubjectID != bob {
		t.Errorf("Created = %+v, want only %s", resp.Created, bob)
	}
	if len(resp.Duplicates) != 1 || resp.Duplicates[0] != ada {
		t.Errorf("Duplicates = %v, want [%s]", resp.Duplicates, ada)
	}
}

func TestAssignmentService_NextExperiment(t *testing.T) {
	ctx := context.Background()

	t.Run("persisted ordering survives membership changes", func(t *testing.T) {
		env := newTestEnv(t)
		b, _ := threeExperimentBattery(t, env, true)
		s := env.subject(t, "ada")
		a := env.assign(t, s, b)
		want := env.orderedInstances(a.OrderingID)

		// A fourth experiment added later is not part of this subject's sequence.
		o := env.db.exps["EXP-001"].OriginID
		env.bind(t, b, env.experiment(t, o, "n-back"))

		first, err := env.assignments.NextExperiment(ctx, a.ID)
		if err != nil {
			t.Fatalf("NextExperiment failed: %v", err)
		}
		if first.Instance == nil || first.Instance.ID != want[0] {
			t.Fatalf("first = %+v, want %s", first.Instance, want[0])
		}
		if first.Remaining != 3 {
			t.Errorf("Remaining = %d, want 3", first.Remaining)
		}

		firstItem := env.db.orderItems[a.OrderingID][0]
		for _, it := range env.db.orderItems[a.OrderingID] {
			if it.Position == 0 {
				firstItem = it
			}
		}
		env.result(s, a.ID, firstItem.BatteryExperimentID, primary.StatusCompleted)

		second, err := env.assignments.NextExperiment(ctx, a.ID)
		if err != nil {
			t.Fatalf("NextExperiment failed: %v", err)
		}
		if second.Instance == nil || second.Instance.ID != want[1] {
			t.Errorf("second = %+v, want %s", second.Instance, want[1])
		}
		if second.Remaining != 2 {
			t.Errorf("Remaining = %d, want 2", second.Remaining)
		}
	})

	t.Run("first call starts the assignment", func(t *testing.T) {
		env := newTestEnv(t)
		b, _ := threeExperimentBattery(t, env, false)
		a := env.assign(t, env.subject(t, "ada"), b)

		resp, err := env.assignments.NextExperiment(ctx, a.ID)
		if err != nil {
			t.Fatalf("NextExperiment failed: %v", err)
		}
		if resp.Status != primary.StatusStarted {
			t.Errorf("Status = %q, want started", resp.Status)
		}
		stored := env.db.assignments[a.ID]
		if stored.StartedAt != formatTime(fixedNow) {
			t.Errorf("StartedAt = %q, want %q", stored.StartedAt, formatTime(fixedNow))
		}
		if resp.Instance == nil || resp.Instance.RemoteURL != "https://github.com/expfactory/experiments/tree/c1/stroop" {
			t.Errorf("Instance = %+v, want stroop at c1", resp.Instance)
		}
	})

	t.Run("completed results exempt across assignments", func(t *testing.T) {
		env := newTestEnv(t)
		o := env.githubOrigin(t, "experiments")
		stroop, gonogo := env.experiment(t, o, "stroop"), env.experiment(t, o, "go-nogo")
		pilot := env.battery(t, primary.BatteryStatusDraft, false)
		study := env.battery(t, primary.BatteryStatusDraft, false)
		pilotRows := env.bind(t, pilot, stroop)
		env.bind(t, study, stroop, gonogo)

		s := env.subject(t, "ada")
		pilotAsg := env.assign(t, s, pilot)
		studyAsg := env.assign(t, s, study)
		env.result(s, pilotAsg.ID, pilotRows[0], primary.StatusCompleted)

		resp, err := env.assignments.NextExperiment(ctx, studyAsg.ID)
		if err != nil {
			t.Fatalf("NextExperiment failed: %v", err)
		}
		if resp.Instance == nil || resp.Instance.ExperimentRepoID != gonogo {
			t.Errorf("Instance = %+v, want go-nogo", resp.Instance)
		}
		if resp.Remaining != 1 {
			t.Errorf("Remaining = %d, want 1", resp.Remaining)
		}
	})

	t.Run("failed results exempt and redo results do not", func(t *testing.T) {
		env := newTestEnv(t)
		b, bexps := threeExperimentBattery(t, env, false)
		s := env.subject(t, "ada")
		a := env.assign(t, s, b)
		env.result(s, a.ID, bexps[0], primary.StatusRedo)
		env.result(s, a.ID, bexps[1], primary.StatusFailed)

		resp, err := env.assignments.NextExperiment(ctx, a.ID)
		if err != nil {
			t.Fatalf("NextExperiment failed: %v", err)
		}
		if resp.Remaining != 2 {
			t.Errorf("Remaining = %d, want 2", resp.Remaining)
		}
		if resp.Instance == nil || resp.Instance.ID != env.db.bexps[bexps[0]].InstanceID {
			t.Errorf("Instance = %+v, want the redo experiment first", resp.Instance)
		}
	})

	t.Run("empty battery completes immediately", func(t *testing.T) {
		for _, random := range []bool{false, true} {
			env := newTestEnv(t)
			b := env.battery(t, primary.BatteryStatusDraft, random)
			a := env.assign(t, env.subject(t, "ada"), b)

			resp, err := env.assignments.NextExperiment(ctx, a.ID)
			if err != nil {
				t.Fatalf("NextExperiment failed: %v", err)
			}
			if resp.Instance != nil || resp.Remaining != 0 {
				t.Errorf("random=%v: got (%+v, %d), want (nil, 0)", random, resp.Instance, resp.Remaining)
			}
			if resp.Status != primary.StatusCompleted {
				t.Errorf("random=%v: Status = %q, want completed", random, resp.Status)
			}
			if got := env.db.assignments[a.ID].CompletedAt; got != formatTime(fixedNow) {
				t.Errorf("random=%v: CompletedAt = %q", random, got)
			}
		}
	})

	t.Run("finishing every experiment completes the assignment", func(t *testing.T) {
		env := newTestEnv(t)
		b, bexps := threeExperimentBattery(t, env, false)
		s := env.subject(t, "ada")
		a := env.assign(t, s, b)
		if _, err := env.assignments.NextExperiment(ctx, a.ID); err != nil {
			t.Fatalf("NextExperiment failed: %v", err)
		}
		for _, id := range bexps {
			env.result(s, a.ID, id, primary.StatusCompleted)
		}

		resp, err := env.assignments.NextExperiment(ctx, a.ID)
		if err != nil {
			t.Fatalf("NextExperiment failed: %v", err)
		}
		if resp.Instance != nil || resp.Status != primary.StatusCompleted {
			t.Errorf("got (%+v, %q), want (nil, completed)", resp.Instance, resp.Status)
		}

		// A second resolution is idempotent.
		again, err := env.assignments.NextExperiment(ctx, a.ID)
		if err != nil || again.Status != primary.StatusCompleted {
			t.Errorf("repeat = (%+v, %v), want completed", again, err)
		}
	})

	t.Run("failed assignment stays failed", func(t *testing.T) {
		env := newTestEnv(t)
		b := env.battery(t, primary.BatteryStatusDraft, false)
		a := env.assign(t, env.subject(t, "ada"), b)
		env.db.assignments[a.ID].Status = primary.StatusFailed

		resp, err := env.assignments.NextExperiment(ctx, a.ID)
		if err != nil {
			t.Fatalf("NextExperiment failed: %v", err)
		}
		if resp.Status != primary.StatusFailed {
			t.Errorf("Status = %q, want failed", resp.Status)
		}
	})

	t.Run("redo assignment with work left stays redo", func(t *testing.T) {
		env := newTestEnv(t)
		b, _ := threeExperimentBattery(t, env, false)
		a := env.assign(t, env.subject(t, "ada"), b)
		if err := env.assignments.MarkRedo(ctx, a.ID); err != nil {
			t.Fatalf("MarkRedo failed: %v", err)
		}

		resp, err := env.assignments.NextExperiment(ctx, a.ID)
		if err != nil {
			t.Fatalf("NextExperiment failed: %v", err)
		}
		if resp.Status != primary.StatusRedo || resp.Remaining != 3 {
			t.Errorf("got (%q, %d), want (redo, 3)", resp.Status, resp.Remaining)
		}
	})

	t.Run("random battery without ordering shuffles per call", func(t *testing.T) {
		env := newTestEnv(t)
		b, _ := threeExperimentBattery(t, env, true)
		a := env.assign(t, env.subject(t, "ada"), b)
		env.db.assignments[a.ID].OrderingID = ""

		if _, err := env.assignments.NextExperiment(ctx, a.ID); err != nil {
			t.Fatalf("NextExperiment failed: %v", err)
		}
		if !env.instances.lastShuffled {
			t.Error("expected the battery listing to be shuffled")
		}
	})
}

func TestAssignmentService_ResultStatus(t *testing.T) {
	env := newTestEnv(t)
	b, bexps := threeExperimentBattery(t, env, false)
	s := env.subject(t, "ada")
	a := env.assign(t, s, b)
	env.result(s, a.ID, bexps[0], primary.StatusCompleted)
	env.result(s, a.ID, bexps[1], primary.StatusCompleted)
	env.result(s, a.ID, bexps[2], primary.StatusFailed)

	summary, err := env.assignments.ResultStatus(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("ResultStatus failed: %v", err)
	}
	if summary.Total != 3 || summary.Counts[primary.StatusCompleted] != 2 || summary.Counts[primary.StatusFailed] != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestAssignmentService_MarkRedoAndConsent(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	b := env.battery(t, primary.BatteryStatusDraft, false)
	a := env.assign(t, env.subject(t, "ada"), b)
	env.db.assignments[a.ID].Status = primary.StatusCompleted

	if err := env.assignments.MarkRedo(ctx, a.ID); err != nil {
		t.Fatalf("MarkRedo failed: %v", err)
	}
	if got := env.db.assignments[a.ID].Status; got != primary.StatusRedo {
		t.Errorf("Status = %q, want redo", got)
	}

	if err := env.assignments.AcceptConsent(ctx, a.ID, true); err != nil {
		t.Fatalf("AcceptConsent failed: %v", err)
	}
	got, err := env.assignments.GetAssignment(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAssignment failed: %v", err)
	}
	if got.ConsentAccepted == nil || !*got.ConsentAccepted {
		t.Errorf("ConsentAccepted = %v, want true", got.ConsentAccepted)
	}
}
