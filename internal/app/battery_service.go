package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/expfactory/internal/core/battery"
	"github.com/example/expfactory/internal/core/experiment"
	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// BatteryServiceImpl implements the BatteryService interface.
type BatteryServiceImpl struct {
	batteryRepo    secondary.BatteryRepository
	batteryExpRepo secondary.BatteryExperimentRepository
	expRepo        secondary.ExperimentRepoRepository
	orderingRepo   secondary.OrderingRepository
	resolver       *commitResolver
	logWriter      secondary.LogWriter
}

// NewBatteryService creates a new BatteryService with injected dependencies.
// logWriter is optional.
func NewBatteryService(
	batteryRepo secondary.BatteryRepository,
	batteryExpRepo secondary.BatteryExperimentRepository,
	expRepo secondary.ExperimentRepoRepository,
	originRepo secondary.OriginRepository,
	instanceRepo secondary.InstanceRepository,
	orderingRepo secondary.OrderingRepository,
	workspace secondary.WorkspaceAdapter,
	logWriter secondary.LogWriter,
) *BatteryServiceImpl {
	return &BatteryServiceImpl{
		batteryRepo:    batteryRepo,
		batteryExpRepo: batteryExpRepo,
		expRepo:        expRepo,
		orderingRepo:   orderingRepo,
		resolver: &commitResolver{
			originRepo:   originRepo,
			expRepo:      expRepo,
			instanceRepo: instanceRepo,
			workspace:    workspace,
		},
		logWriter: logWriter,
	}
}

// CreateBattery creates a template or draft battery.
func (s *BatteryServiceImpl) CreateBattery(ctx context.Context, req primary.CreateBatteryRequest) (*primary.CreateBatteryResponse, error) {
	result := battery.CanCreateBattery(battery.CreateBatteryContext{Title: req.Title})
	if err := result.Error(); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = primary.BatteryStatusTemplate
	}
	if status != primary.BatteryStatusTemplate && status != primary.BatteryStatusDraft {
		return nil, fmt.Errorf("new batteries start as template or draft, not %s", status)
	}

	nextID, err := s.batteryRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate battery ID: %w", err)
	}

	record := &secondary.BatteryRecord{
		ID:                    nextID,
		Title:                 strings.TrimSpace(req.Title),
		Status:                status,
		Consent:               req.Consent,
		Instructions:          req.Instructions,
		Advertisement:         req.Advertisement,
		RandomOrder:           boolValue(req.RandomOrder, true),
		Public:                req.Public,
		InterTaskBreakSeconds: int(req.InterTaskBreak / time.Second),
	}
	if err := s.batteryRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create battery: %w", err)
	}
	auditCreate(ctx, s.logWriter, entityBattery, nextID)

	created, err := s.batteryRepo.GetByID(ctx, nextID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch created battery: %w", err)
	}

	return &primary.CreateBatteryResponse{
		BatteryID: created.ID,
		Battery:   s.recordToBattery(created),
	}, nil
}

// GetBattery retrieves a battery by ID.
func (s *BatteryServiceImpl) GetBattery(ctx context.Context, batteryID string) (*primary.Battery, error) {
	record, err := s.batteryRepo.GetByID(ctx, batteryID)
	if err != nil {
		return nil, err
	}
	return s.recordToBattery(record), nil
}

// ListBatteries lists batteries with optional filters.
func (s *BatteryServiceImpl) ListBatteries(ctx context.Context, filters primary.BatteryFilters) ([]*primary.Battery, error) {
	records, err := s.batteryRepo.List(ctx, secondary.BatteryFilters{
		Status:     filters.Status,
		TemplateID: filters.TemplateID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list batteries: %w", err)
	}

	batteries := make([]*primary.Battery, len(records))
	for i, r := range records {
		batteries[i] = s.recordToBattery(r)
	}
	return batteries, nil
}

// UpdateBattery updates the text and presentation settings of an editable battery.
func (s *BatteryServiceImpl) UpdateBattery(ctx context.Context, req primary.UpdateBatteryRequest) error {
	record, err := s.editable(ctx, req.BatteryID)
	if err != nil {
		return err
	}

	oldTitle := record.Title
	if req.Title != nil {
		if err := battery.CanCreateBattery(battery.CreateBatteryContext{Title: *req.Title}).Error(); err != nil {
			return err
		}
		record.Title = strings.TrimSpace(*req.Title)
	}
	if req.Consent != nil {
		record.Consent = *req.Consent
	}
	if req.Instructions != nil {
		record.Instructions = *req.Instructions
	}
	if req.Advertisement != nil {
		record.Advertisement = *req.Advertisement
	}
	if req.RandomOrder != nil {
		record.RandomOrder = *req.RandomOrder
	}
	if req.Public != nil {
		record.Public = *req.Public
	}
	if req.InterTaskBreak != nil {
		record.InterTaskBreakSeconds = int(*req.InterTaskBreak / time.Second)
	}

	if err := s.batteryRepo.Update(ctx, record); err != nil {
		return err
	}
	if record.Title != oldTitle {
		auditUpdate(ctx, s.logWriter, entityBattery, record.ID, "title", oldTitle, record.Title)
	}
	return nil
}

// SetBatteryStatus moves a battery through its lifecycle.
func (s *BatteryServiceImpl) SetBatteryStatus(ctx context.Context, batteryID, status string) error {
	record, err := s.batteryRepo.GetByID(ctx, batteryID)
	if err != nil {
		return err
	}

	result := battery.CanTransition(battery.TransitionContext{
		BatteryID: batteryID,
		From:      battery.Status(record.Status),
		To:        battery.Status(status),
	})
	if err := result.Error(); err != nil {
		return err
	}

	if err := s.batteryRepo.UpdateStatus(ctx, batteryID, status); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entityBattery, batteryID, "status", record.Status, status)
	return nil
}

// DuplicateBattery copies a battery and its experiments into a new draft or template.
func (s *BatteryServiceImpl) DuplicateBattery(ctx context.Context, req primary.DuplicateBatteryRequest) (*primary.Battery, error) {
	source, err := s.batteryRepo.GetByID(ctx, req.BatteryID)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = primary.BatteryStatusDraft
	}
	result := battery.CanDuplicate(battery.DuplicateContext{
		BatteryID: source.ID,
		NewStatus: battery.Status(status),
	})
	if err := result.Error(); err != nil {
		return nil, err
	}

	newID, err := s.batteryRepo.Duplicate(ctx, source.ID, status, battery.RootTemplateID(source.ID, source.TemplateID))
	if err != nil {
		return nil, fmt.Errorf("failed to duplicate battery %s: %w", source.ID, err)
	}
	auditCreate(ctx, s.logWriter, entityBattery, newID)

	created, err := s.batteryRepo.GetByID(ctx, newID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch duplicated battery: %w", err)
	}
	return s.recordToBattery(created), nil
}

// BindCommit pins an experiment repo at a commit and places it in the battery.
// A battery holds one instance per experiment repo; binding a repo that is already
// present re-points its slot.
func (s *BatteryServiceImpl) BindCommit(ctx context.Context, req primary.BindCommitRequest) (*primary.BindCommitResponse, error) {
	if _, err := s.editable(ctx, req.BatteryID); err != nil {
		return nil, err
	}

	exp, err := s.expRepo.GetByID(ctx, req.ExperimentRepoID)
	if err != nil {
		return nil, err
	}
	if err := experiment.CanBind(experiment.BindContext{ExperimentRepoID: exp.ID, Active: exp.Active}).Error(); err != nil {
		return nil, err
	}

	inst, created, err := s.resolver.upsert(ctx, exp, req.Commit, req.Note)
	if err != nil {
		return nil, err
	}
	if created {
		auditCreate(ctx, s.logWriter, entityInstance, inst.ID)
	}

	rows, err := s.batteryExpRepo.ListByBattery(ctx, req.BatteryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list battery experiments: %w", err)
	}
	slots := toSlots(rows)

	order := experiment.NextOrder(slots)
	if req.Order != nil {
		order = *req.Order
	}
	plan := experiment.PlanSlot(slots, exp.ID, order)
	useLatest := experiment.IsLatest(req.Commit)
	var wasLatest bool
	for _, row := range rows {
		if row.ID != plan.ReplaceID {
			continue
		}
		wasLatest = row.UseLatest
		if req.Order == nil {
			// re-pointing keeps the slot where it is
			plan.Order = row.Order
		}
	}

	resp := &primary.BindCommitResponse{Instance: s.resolver.toInstance(ctx, inst)}
	if plan.ReplaceID != "" {
		if err := s.batteryExpRepo.Place(ctx, plan.ReplaceID, inst.ID, plan.Order); err != nil {
			return nil, fmt.Errorf("failed to re-point %s: %w", plan.ReplaceID, err)
		}
		if wasLatest != useLatest {
			if err := s.batteryExpRepo.SetUseLatest(ctx, plan.ReplaceID, useLatest); err != nil {
				return nil, fmt.Errorf("failed to re-point %s: %w", plan.ReplaceID, err)
			}
			auditUpdate(ctx, s.logWriter, entityBattery, req.BatteryID, "use_latest", fmt.Sprint(wasLatest), fmt.Sprint(useLatest))
		}
		resp.BatteryExperimentID = plan.ReplaceID
		resp.Replaced = true
		auditUpdate(ctx, s.logWriter, entityBattery, req.BatteryID, "instance", exp.ID, inst.ID)
		return resp, nil
	}

	nextID, err := s.batteryExpRepo.GetNextID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate battery experiment ID: %w", err)
	}
	if err := s.batteryExpRepo.Create(ctx, &secondary.BatteryExperimentRecord{
		ID:         nextID,
		BatteryID:  req.BatteryID,
		InstanceID: inst.ID,
		Order:      plan.Order,
		UseLatest:  useLatest,
	}); err != nil {
		return nil, fmt.Errorf("failed to add experiment to battery: %w", err)
	}
	auditUpdate(ctx, s.logWriter, entityBattery, req.BatteryID, "experiments", "", nextID)

	resp.BatteryExperimentID = nextID
	return resp, nil
}

// ListBatteryExperiments lists the battery's experiments by order.
func (s *BatteryServiceImpl) ListBatteryExperiments(ctx context.Context, batteryID string) ([]*primary.BatteryExperiment, error) {
	rows, err := s.batteryExpRepo.ListByBattery(ctx, batteryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list battery experiments: %w", err)
	}
	out := make([]*primary.BatteryExperiment, len(rows))
	for i, r := range rows {
		out[i] = recordToBatteryExperiment(r)
	}
	return out, nil
}

// MoveExperiment changes the order of a battery experiment.
func (s *BatteryServiceImpl) MoveExperiment(ctx context.Context, batteryID, batteryExperimentID string, order int) error {
	if _, err := s.editable(ctx, batteryID); err != nil {
		return err
	}
	row, err := s.member(ctx, batteryID, batteryExperimentID)
	if err != nil {
		return err
	}
	if err := s.batteryExpRepo.Place(ctx, row.ID, row.InstanceID, order); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entityBattery, batteryID, "order", fmt.Sprint(row.Order), fmt.Sprint(order))
	return nil
}

// RemoveExperiment removes an experiment from the battery. A row that a persisted
// ordering places cannot be removed.
func (s *BatteryServiceImpl) RemoveExperiment(ctx context.Context, batteryID, batteryExperimentID string) error {
	if _, err := s.editable(ctx, batteryID); err != nil {
		return err
	}
	if _, err := s.member(ctx, batteryID, batteryExperimentID); err != nil {
		return err
	}
	orderingID, err := s.orderingUsing(ctx, batteryID, batteryExperimentID)
	if err != nil {
		return err
	}
	if orderingID != "" {
		return fmt.Errorf("cannot remove %s: ordering %s places it, and orderings stay fixed once generated", batteryExperimentID, orderingID)
	}
	if err := s.batteryExpRepo.Delete(ctx, batteryExperimentID); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entityBattery, batteryID, "experiments", batteryExperimentID, "")
	return nil
}

// orderingUsing returns the first persisted ordering of the battery that places
// batteryExperimentID, or "" when none does.
func (s *BatteryServiceImpl) orderingUsing(ctx context.Context, batteryID, batteryExperimentID string) (string, error) {
	orderings, err := s.orderingRepo.ListByBattery(ctx, batteryID)
	if err != nil {
		return "", fmt.Errorf("failed to list orderings: %w", err)
	}
	for _, o := range orderings {
		items, err := s.orderingRepo.ListItems(ctx, o.ID)
		if err != nil {
			return "", fmt.Errorf("failed to list items of %s: %w", o.ID, err)
		}
		for _, item := range items {
			if item.BatteryExperimentID == batteryExperimentID {
				return o.ID, nil
			}
		}
	}
	return "", nil
}

// SetUseLatest controls whether a battery experiment follows its origin head on pull.
func (s *BatteryServiceImpl) SetUseLatest(ctx context.Context, batteryID, batteryExperimentID string, useLatest bool) error {
	row, err := s.member(ctx, batteryID, batteryExperimentID)
	if err != nil {
		return err
	}
	if row.UseLatest == useLatest {
		return nil
	}
	if err := s.batteryExpRepo.SetUseLatest(ctx, row.ID, useLatest); err != nil {
		return err
	}
	auditUpdate(ctx, s.logWriter, entityBattery, batteryID, "use_latest", fmt.Sprint(row.UseLatest), fmt.Sprint(useLatest))
	return nil
}

// Helper methods

// editable fetches a battery and checks that its membership may change.
func (s *BatteryServiceImpl) editable(ctx context.Context, batteryID string) (*secondary.BatteryRecord, error) {
	record, err := s.batteryRepo.GetByID(ctx, batteryID)
	if err != nil {
		return nil, err
	}

	hasChildren := false
	if record.Status == primary.BatteryStatusTemplate {
		hasChildren, err = s.batteryRepo.HasChildren(ctx, batteryID)
		if err != nil {
			return nil, fmt.Errorf("failed to check duplicates of %s: %w", batteryID, err)
		}
	}

	result := battery.CanEdit(battery.EditContext{
		BatteryID:   batteryID,
		Status:      battery.Status(record.Status),
		HasChildren: hasChildren,
	})
	if err := result.Error(); err != nil {
		return nil, err
	}
	return record, nil
}

// member fetches a battery experiment row and checks it belongs to batteryID.
func (s *BatteryServiceImpl) member(ctx context.Context, batteryID, batteryExperimentID string) (*secondary.BatteryExperimentRecord, error) {
	row, err := s.batteryExpRepo.GetByID(ctx, batteryExperimentID)
	if err != nil {
		return nil, err
	}
	if row.BatteryID != batteryID {
		return nil, fmt.Errorf("battery experiment %s does not belong to battery %s", batteryExperimentID, batteryID)
	}
	return row, nil
}

func toSlots(rows []*secondary.BatteryExperimentRecord) []experiment.Slot {
	slots := make([]experiment.Slot, len(rows))
	for i, r := range rows {
		slots[i] = experiment.Slot{
			BatteryExperimentID: r.ID,
			ExperimentRepoID:    r.ExperimentRepoID,
			InstanceID:          r.InstanceID,
			Order:               r.Order,
		}
	}
	return slots
}

func (s *BatteryServiceImpl) recordToBattery(r *secondary.BatteryRecord) *primary.Battery {
	return &primary.Battery{
		ID:             r.ID,
		Title:          r.Title,
		Status:         r.Status,
		TemplateID:     r.TemplateID,
		Consent:        r.Consent,
		Instructions:   r.Instructions,
		Advertisement:  r.Advertisement,
		RandomOrder:    r.RandomOrder,
		Public:         r.Public,
		InterTaskBreak: time.Duration(r.InterTaskBreakSeconds) * time.Second,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func recordToBatteryExperiment(r *secondary.BatteryExperimentRecord) *primary.BatteryExperiment {
	return &primary.BatteryExperiment{
		ID:               r.ID,
		BatteryID:        r.BatteryID,
		InstanceID:       r.InstanceID,
		ExperimentRepoID: r.ExperimentRepoID,
		ExperimentName:   r.ExperimentName,
		Commit:           r.Commit,
		Order:            r.Order,
		UseLatest:        r.UseLatest,
	}
}

// Ensure BatteryServiceImpl implements the interface
var _ primary.BatteryService = (*BatteryServiceImpl)(nil)
