package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/example/expfactory/internal/core/experiment"
	"github.com/example/expfactory/internal/core/origin"
	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// ExperimentServiceImpl implements the ExperimentService interface.
type ExperimentServiceImpl struct {
	expRepo       secondary.ExperimentRepoRepository
	originRepo    secondary.OriginRepository
	instanceRepo  secondary.InstanceRepository
	frameworkRepo secondary.FrameworkRepository
	tagRepo       secondary.TagRepository
	workspace     secondary.WorkspaceAdapter
	resolver      *commitResolver
	logWriter     secondary.LogWriter
}

// NewExperimentService creates a new ExperimentService with injected dependencies.
// logWriter is optional.
func NewExperimentService(
	expRepo secondary.ExperimentRepoRepository,
	originRepo secondary.OriginRepository,
	instanceRepo secondary.InstanceRepository,
	frameworkRepo secondary.FrameworkRepository,
	tagRepo secondary.TagRepository,
	workspace secondary.WorkspaceAdapter,
	logWriter secondary.LogWriter,
) *ExperimentServiceImpl {
	return &ExperimentServiceImpl{
		expRepo:       expRepo,
		originRepo:    originRepo,
		instanceRepo:  instanceRepo,
		frameworkRepo: frameworkRepo,
		tagRepo:       tagRepo,
		workspace:     workspace,
		resolver: &commitResolver{
			originRepo:   originRepo,
			expRepo:      expRepo,
			instanceRepo: instanceRepo,
			workspace:    workspace,
		},
		logWriter: logWriter,
	}
}

// CreateExperimentRepo registers an experiment located inside an origin.
func (s *ExperimentServiceImpl) CreateExperimentRepo(ctx context.Context, req primary.CreateExperimentRepoRequest) (*primary.CreateExperimentRepoResponse, error) {
	o, err := s.originRepo.GetByID(ctx, req.OriginID)
	if err != nil {
		return nil, err
	}

	result := experiment.CanCreateExperimentRepo(experiment.CreateExperimentRepoContext{
		Name:         req.Name,
		OriginID:     o.ID,
		OriginActive: o.Active,
	})
	if err := result.Error(); err != nil {
		return nil, err
	}

	if req.FrameworkID != "" {
		if _, err := s.frameworkRepo.GetByID(ctx, req.FrameworkID); err != nil {
			return nil, err
		}
	}

	location := req.Location
	if location == "" {
		location = filepath.Join(o.Path, req.Name)
	}
	branch := req.Branch
	if branch == "" {
		branch = "master"
	}

	nextID, err := s.expRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate experiment ID: %w", err)
	}

	record := &secondary.ExperimentRepoRecord{
		ID:          nextID,
		Name:        strings.TrimSpace(req.Name),
		OriginID:    o.ID,
		Branch:      branch,
		Location:    location,
		FrameworkID: req.FrameworkID,
		Active:      true,
		CogatID:     req.CogatID,
	}
	if err := s.expRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create experiment: %w", err)
	}
	auditCreate(ctx, s.logWriter, entityExperimentRepo, nextID)

	created, err := s.GetExperimentRepo(ctx, nextID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created experiment: %w", err)
	}

	return &primary.CreateExperimentRepoResponse{
		ExperimentRepoID: created.ID,
		ExperimentRepo:   created,
	}, nil
}

// GetExperimentRepo retrieves an experiment repo by ID.
func (s *ExperimentServiceImpl) GetExperimentRepo(ctx context.Context, experimentRepoID string) (*primary.ExperimentRepo, error) {
	record, err := s.expRepo.GetByID(ctx, experimentRepoID)
	if err != nil {
		return nil, err
	}
	return s.recordToExperimentRepo(ctx, record)
}

// ListExperimentRepos lists experiment repos with optional filters.
func (s *ExperimentServiceImpl) ListExperimentRepos(ctx context.Context, filters primary.ExperimentRepoFilters) ([]*primary.ExperimentRepo, error) {
	records, err := s.expRepo.List(ctx, secondary.ExperimentRepoFilters{
		OriginID: filters.OriginID,
		Active:   filters.Active,
		Tag:      filters.Tag,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}

	repos := make([]*primary.ExperimentRepo, len(records))
	for i, r := range records {
		repo, err := s.recordToExperimentRepo(ctx, r)
		if err != nil {
			return nil, err
		}
		repos[i] = repo
	}
	return repos, nil
}

// UpdateExperimentRepo updates the non-empty fields of an experiment repo.
func (s *ExperimentServiceImpl) UpdateExperimentRepo(ctx context.Context, req primary.UpdateExperimentRepoRequest) error {
	existing, err := s.expRepo.GetByID(ctx, req.ExperimentRepoID)
	if err != nil {
		return err
	}
	if req.FrameworkID != "" {
		if _, err := s.frameworkRepo.GetByID(ctx, req.FrameworkID); err != nil {
			return err
		}
	}

	record := &secondary.ExperimentRepoRecord{
		ID:          req.ExperimentRepoID,
		Name:        req.Name,
		Branch:      req.Branch,
		Location:    req.Location,
		FrameworkID: req.FrameworkID,
		CogatID:     req.CogatID,
	}
	if err := s.expRepo.Update(ctx, record); err != nil {
		return err
	}

	if req.Branch != "" && req.Branch != existing.Branch {
		auditUpdate(ctx, s.logWriter, entityExperimentRepo, existing.ID, "branch", existing.Branch, req.Branch)
	}
	if req.Location != "" && req.Location != existing.Location {
		auditUpdate(ctx, s.logWriter, entityExperimentRepo, existing.ID, "location", existing.Location, req.Location)
	}
	return nil
}

// SetExperimentRepoActive activates or deactivates an experiment repo.
func (s *ExperimentServiceImpl) SetExperimentRepoActive(ctx context.Context, experimentRepoID string, active bool) error {
	existing, err := s.expRepo.GetByID(ctx, experimentRepoID)
	if err != nil {
		return err
	}
	if existing.Active == active {
		return nil
	}
	if err := s.expRepo.SetActive(ctx, experimentRepoID, active); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entityExperimentRepo, experimentRepoID, "active",
		fmt.Sprint(existing.Active), fmt.Sprint(active))
	return nil
}

// UpsertInstance resolves a commit and returns the instance for it.
func (s *ExperimentServiceImpl) UpsertInstance(ctx context.Context, req primary.UpsertInstanceRequest) (*primary.ExperimentInstance, error) {
	exp, err := s.expRepo.GetByID(ctx, req.ExperimentRepoID)
	if err != nil {
		return nil, err
	}
	inst, created, err := s.resolver.upsert(ctx, exp, req.Commit, req.Note)
	if err != nil {
		return nil, err
	}
	if created {
		auditCreate(ctx, s.logWriter, entityInstance, inst.ID)
	}
	return s.resolver.toInstance(ctx, inst), nil
}

// ListInstances lists the instances of an experiment repo, newest first.
func (s *ExperimentServiceImpl) ListInstances(ctx context.Context, experimentRepoID string) ([]*primary.ExperimentInstance, error) {
	records, err := s.instanceRepo.ListByExperimentRepo(ctx, experimentRepoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	instances := make([]*primary.ExperimentInstance, len(records))
	for i, r := range records {
		instances[i] = s.resolver.toInstance(ctx, r)
	}
	return instances, nil
}

// DeployInstance checks the instance commit out into the deployment directory.
// A worktree that already exists, including one added concurrently, counts as deployed.
func (s *ExperimentServiceImpl) DeployInstance(ctx context.Context, instanceID string) (*primary.DeployInstanceResponse, error) {
	inst, err := s.instanceRepo.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	exp, err := s.expRepo.GetByID(ctx, inst.ExperimentRepoID)
	if err != nil {
		return nil, err
	}
	o, err := s.resolver.originOf(ctx, exp)
	if err != nil {
		return nil, err
	}

	target := s.workspace.DeploymentPath(o.Path, inst.Commit)
	resp := &primary.DeployInstanceResponse{Path: target}

	listed, err := s.workspace.ListWorktrees(ctx, o.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}
	if slices.Contains(listed, inst.Commit) {
		exists, err := s.workspace.DirectoryExists(ctx, target)
		if err != nil {
			return nil, err
		}
		if exists {
			resp.AlreadyDeployed = true
			return resp, nil
		}
	}

	err = s.workspace.AddWorktree(ctx, o.Path, target, inst.Commit)
	switch {
	case errors.Is(err, secondary.ErrWorktreeExists):
		resp.AlreadyDeployed = true
	case err != nil:
		return nil, fmt.Errorf("failed to deploy %s at %s: %w", exp.Name, inst.Commit, err)
	}
	return resp, nil
}

// CreateFramework registers an experiment framework.
func (s *ExperimentServiceImpl) CreateFramework(ctx context.Context, req primary.CreateFrameworkRequest) (*primary.Framework, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("framework name cannot be empty")
	}
	existing, err := s.frameworkRepo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check framework name: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("framework %q already exists (%s)", name, existing.ID)
	}

	nextID, err := s.frameworkRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate framework ID: %w", err)
	}
	if err := s.frameworkRepo.Create(ctx, &secondary.FrameworkRecord{
		ID:       nextID,
		Name:     name,
		Template: req.Template,
	}); err != nil {
		return nil, fmt.Errorf("failed to create framework: %w", err)
	}
	auditCreate(ctx, s.logWriter, entityFramework, nextID)

	created, err := s.frameworkRepo.GetByID(ctx, nextID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created framework: %w", err)
	}
	return recordToFramework(created), nil
}

// ListFrameworks lists all frameworks.
func (s *ExperimentServiceImpl) ListFrameworks(ctx context.Context) ([]*primary.Framework, error) {
	records, err := s.frameworkRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list frameworks: %w", err)
	}
	frameworks := make([]*primary.Framework, len(records))
	for i, r := range records {
		frameworks[i] = recordToFramework(r)
	}
	return frameworks, nil
}

// Helper methods

func (s *ExperimentServiceImpl) recordToExperimentRepo(ctx context.Context, r *secondary.ExperimentRepoRecord) (*primary.ExperimentRepo, error) {
	tags, err := tagNames(ctx, s.tagRepo, secondary.EntityTypeExperimentRepo, r.ID)
	if err != nil {
		return nil, err
	}

	url := ""
	if o, err := s.resolver.originOf(ctx, r); err == nil {
		url = origin.ExperimentURL(o.URL, o.Path, r.Location, r.Branch)
	}

	return &primary.ExperimentRepo{
		ID:          r.ID,
		Name:        r.Name,
		OriginID:    r.OriginID,
		Branch:      r.Branch,
		Location:    r.Location,
		FrameworkID: r.FrameworkID,
		Active:      r.Active,
		CogatID:     r.CogatID,
		URL:         url,
		Tags:        tags,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func recordToFramework(r *secondary.FrameworkRecord) *primary.Framework {
	return &primary.Framework{
		ID:        r.ID,
		Name:      r.Name,
		Template:  r.Template,
		CreatedAt: r.CreatedAt,
	}
}

// Ensure ExperimentServiceImpl implements the interface
var _ primary.ExperimentService = (*ExperimentServiceImpl)(nil)
