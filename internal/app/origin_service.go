package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/expfactory/internal/core/origin"
	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// OriginServiceImpl implements the OriginService interface.
type OriginServiceImpl struct {
	originRepo     secondary.OriginRepository
	batteryExpRepo secondary.BatteryExperimentRepository
	workspace      secondary.WorkspaceAdapter
	resolver       *commitResolver
	logWriter      secondary.LogWriter
}

// NewOriginService creates a new OriginService with injected dependencies.
// logWriter is optional.
func NewOriginService(
	originRepo secondary.OriginRepository,
	expRepo secondary.ExperimentRepoRepository,
	instanceRepo secondary.InstanceRepository,
	batteryExpRepo secondary.BatteryExperimentRepository,
	workspace secondary.WorkspaceAdapter,
	logWriter secondary.LogWriter,
) *OriginServiceImpl {
	return &OriginServiceImpl{
		originRepo:     originRepo,
		batteryExpRepo: batteryExpRepo,
		workspace:      workspace,
		resolver: &commitResolver{
			originRepo:   originRepo,
			expRepo:      expRepo,
			instanceRepo: instanceRepo,
			workspace:    workspace,
		},
		logWriter: logWriter,
	}
}

// CreateOrigin registers a repository and clones it under the repo directory.
func (s *OriginServiceImpl) CreateOrigin(ctx context.Context, req primary.CreateOriginRequest) (*primary.CreateOriginResponse, error) {
	url := strings.TrimSpace(req.URL)
	parsed, parseErr := origin.ParseURL(url)

	var path string
	var existing *secondary.OriginRecord
	if parseErr == nil {
		path = s.workspace.RepoPath(parsed.Name)
		var err error
		existing, err = s.originRepo.FindExisting(ctx, url, parsed.Name, path)
		if err != nil {
			return nil, fmt.Errorf("failed to check origin uniqueness: %w", err)
		}
	}

	// Evaluate guard
	result := origin.CanCreateOrigin(origin.CreateOriginContext{
		URL:        url,
		ParseError: parseErr,
		Name:       parsed.Name,
		Path:       path,
		Exists:     existing != nil,
	})
	if err := result.Error(); err != nil {
		return nil, err
	}

	if !req.SkipClone {
		if err := s.workspace.Clone(ctx, url, path); err != nil {
			return nil, fmt.Errorf("failed to clone %s: %w", url, err)
		}
	}

	nextID, err := s.originRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate origin ID: %w", err)
	}

	record := &secondary.OriginRecord{
		ID:     nextID,
		URL:    url,
		Path:   path,
		Name:   parsed.Name,
		Active: true,
	}
	if err := s.originRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create origin: %w", err)
	}
	auditCreate(ctx, s.logWriter, entityOrigin, nextID)

	created, err := s.originRepo.GetByID(ctx, nextID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created origin: %w", err)
	}

	return &primary.CreateOriginResponse{
		OriginID: created.ID,
		Origin:   s.recordToOrigin(created),
	}, nil
}

// GetOrigin retrieves an origin by ID.
func (s *OriginServiceImpl) GetOrigin(ctx context.Context, originID string) (*primary.Origin, error) {
	record, err := s.originRepo.GetByID(ctx, originID)
	if err != nil {
		return nil, err
	}
	return s.recordToOrigin(record), nil
}

// ListOrigins lists origins with optional filters.
func (s *OriginServiceImpl) ListOrigins(ctx context.Context, filters primary.OriginFilters) ([]*primary.Origin, error) {
	records, err := s.originRepo.List(ctx, secondary.OriginFilters{Active: filters.Active})
	if err != nil {
		return nil, fmt.Errorf("failed to list origins: %w", err)
	}

	origins := make([]*primary.Origin, len(records))
	for i, r := range records {
		origins[i] = s.recordToOrigin(r)
	}
	return origins, nil
}

// PullOrigin pulls the origin and re-points every use-latest battery slot of its
// experiments at the new head.
func (s *OriginServiceImpl) PullOrigin(ctx context.Context, originID string) (*primary.PullOriginResponse, error) {
	record, err := s.originRepo.GetByID(ctx, originID)
	if err != nil {
		return nil, err
	}

	if err := s.workspace.Pull(ctx, record.Path); err != nil {
		return nil, fmt.Errorf("failed to pull %s: %w", record.Name, err)
	}
	head, err := s.workspace.LatestCommit(ctx, record.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read head of %s: %w", record.Name, err)
	}

	stale, err := s.batteryExpRepo.ListUseLatestByOrigin(ctx, originID, head)
	if err != nil {
		return nil, fmt.Errorf("failed to list use-latest experiments: %w", err)
	}

	resp := &primary.PullOriginResponse{Commit: head}
	for _, row := range stale {
		inst, _, err := s.resolver.upsertAt(ctx, row.ExperimentRepoID, record, head, "")
		if err != nil {
			return nil, err
		}
		if err := s.batteryExpRepo.Place(ctx, row.ID, inst.ID, row.Order); err != nil {
			return nil, fmt.Errorf("failed to move %s to %s: %w", row.ID, head, err)
		}
		auditUpdate(ctx, s.logWriter, entityBattery, row.BatteryID, "instance", row.InstanceID, inst.ID)
		resp.Repointed = append(resp.Repointed, row.ID)
	}
	return resp, nil
}

// ArchiveOrigin marks an origin inactive.
func (s *OriginServiceImpl) ArchiveOrigin(ctx context.Context, originID string) error {
	record, err := s.originRepo.GetByID(ctx, originID)
	if err != nil {
		return err
	}
	result := origin.CanArchiveOrigin(origin.ArchiveOriginContext{OriginID: originID, Active: record.Active})
	if err := result.Error(); err != nil {
		return err
	}
	if err := s.originRepo.SetActive(ctx, originID, false); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entityOrigin, originID, "active", "true", "false")
	return nil
}

// RestoreOrigin re-activates an archived origin.
func (s *OriginServiceImpl) RestoreOrigin(ctx context.Context, originID string) error {
	record, err := s.originRepo.GetByID(ctx, originID)
	if err != nil {
		return err
	}
	result := origin.CanRestoreOrigin(origin.ArchiveOriginContext{OriginID: originID, Active: record.Active})
	if err := result.Error(); err != nil {
		return err
	}
	if err := s.originRepo.SetActive(ctx, originID, true); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entityOrigin, originID, "active", "false", "true")
	return nil
}

// DeleteOrigin hard-deletes an archived origin.
func (s *OriginServiceImpl) DeleteOrigin(ctx context.Context, originID string) error {
	record, err := s.originRepo.GetByID(ctx, originID)
	if err != nil {
		return err
	}
	result := origin.CanDeleteOrigin(origin.ArchiveOriginContext{OriginID: originID, Active: record.Active})
	if err := result.Error(); err != nil {
		return err
	}
	if err := s.originRepo.Delete(ctx, originID); err != nil {
		return err
	}
	auditDelete(ctx, s.logWriter, entityOrigin, originID)
	return nil
}

// Helper methods

func (s *OriginServiceImpl) recordToOrigin(r *secondary.OriginRecord) *primary.Origin {
	return &primary.Origin{
		ID:         r.ID,
		URL:        r.URL,
		DisplayURL: origin.DisplayURL(r.URL),
		Path:       r.Path,
		Name:       r.Name,
		Active:     r.Active,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// Ensure OriginServiceImpl implements the interface
var _ primary.OriginService = (*OriginServiceImpl)(nil)
