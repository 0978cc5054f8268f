package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/expfactory/internal/core/experiment"
	"github.com/example/expfactory/internal/core/origin"
	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// commitResolver turns "latest" or a sha into a persisted experiment instance.
// It is shared by the experiment, battery and origin services.
type commitResolver struct {
	originRepo   secondary.OriginRepository
	expRepo      secondary.ExperimentRepoRepository
	instanceRepo secondary.InstanceRepository
	workspace    secondary.WorkspaceAdapter
}

// originOf returns the origin of an experiment repo, or ErrMissingOrigin.
func (r *commitResolver) originOf(ctx context.Context, exp *secondary.ExperimentRepoRecord) (*secondary.OriginRecord, error) {
	if exp.OriginID == "" {
		return nil, fmt.Errorf("experiment %s: %w", exp.ID, experiment.ErrMissingOrigin)
	}
	o, err := r.originRepo.GetByID(ctx, exp.OriginID)
	if err != nil {
		return nil, fmt.Errorf("experiment %s: %w", exp.ID, err)
	}
	return o, nil
}

// resolve returns the commit the request names. A literal sha must exist in the
// origin history.
func (r *commitResolver) resolve(ctx context.Context, exp *secondary.ExperimentRepoRecord, o *secondary.OriginRecord, requested string) (string, error) {
	if experiment.IsLatest(requested) {
		commit, err := r.workspace.LatestCommit(ctx, o.Path)
		if err != nil {
			return "", fmt.Errorf("failed to read head of %s: %w", o.Name, err)
		}
		return commit, nil
	}

	commit := strings.TrimSpace(requested)
	valid, err := r.workspace.IsValidCommit(ctx, o.Path, commit)
	if err != nil {
		return "", fmt.Errorf("failed to validate commit: %w", err)
	}
	if !valid {
		return "", &experiment.InvalidCommitError{
			Commit: commit,
			URL:    origin.ExperimentURL(o.URL, o.Path, exp.Location, exp.Branch),
		}
	}
	return commit, nil
}

// upsert resolves the requested commit and returns the instance for it.
func (r *commitResolver) upsert(ctx context.Context, exp *secondary.ExperimentRepoRecord, requested, note string) (*secondary.InstanceRecord, bool, error) {
	o, err := r.originOf(ctx, exp)
	if err != nil {
		return nil, false, err
	}
	commit, err := r.resolve(ctx, exp, o, requested)
	if err != nil {
		return nil, false, err
	}
	return r.upsertAt(ctx, exp.ID, o, commit, note)
}

// upsertAt records the instance of an experiment repo at a known commit.
func (r *commitResolver) upsertAt(ctx context.Context, experimentRepoID string, o *secondary.OriginRecord, commit, note string) (*secondary.InstanceRecord, bool, error) {
	record := &secondary.InstanceRecord{
		ExperimentRepoID: experimentRepoID,
		Commit:           commit,
		Note:             note,
	}
	if date, err := r.workspace.CommitDate(ctx, o.Path, commit); err == nil {
		record.CommitDate = formatTime(date)
	}

	instance, created, err := r.instanceRepo.Upsert(ctx, record)
	if err != nil {
		return nil, false, fmt.Errorf("failed to record instance: %w", err)
	}
	return instance, created, nil
}

// remoteURL is the browsable url of an instance, empty when the origin is gone.
func (r *commitResolver) remoteURL(ctx context.Context, inst *secondary.InstanceRecord) string {
	exp, err := r.expRepo.GetByID(ctx, inst.ExperimentRepoID)
	if err != nil {
		return ""
	}
	o, err := r.originOf(ctx, exp)
	if err != nil {
		return ""
	}
	return origin.RemoteURL(origin.ExperimentURL(o.URL, o.Path, exp.Location, exp.Branch), exp.Branch, inst.Commit)
}

func (r *commitResolver) toInstance(ctx context.Context, inst *secondary.InstanceRecord) *primary.ExperimentInstance {
	if inst == nil {
		return nil
	}
	return &primary.ExperimentInstance{
		ID:               inst.ID,
		ExperimentRepoID: inst.ExperimentRepoID,
		Commit:           inst.Commit,
		CommitDate:       inst.CommitDate,
		Note:             inst.Note,
		RemoteURL:        r.remoteURL(ctx, inst),
		CreatedAt:        inst.CreatedAt,
	}
}
