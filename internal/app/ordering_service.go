package app

import (
	"context"
	"fmt"

	"github.com/example/expfactory/internal/core/ordering"
	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// OrderingServiceImpl implements the OrderingService interface.
type OrderingServiceImpl struct {
	batteryRepo    secondary.BatteryRepository
	batteryExpRepo secondary.BatteryExperimentRepository
	orderingRepo   secondary.OrderingRepository
	src            ordering.Source
}

// NewOrderingService creates a new OrderingService with injected dependencies.
// A nil src draws from the process-wide random source.
func NewOrderingService(
	batteryRepo secondary.BatteryRepository,
	batteryExpRepo secondary.BatteryExperimentRepository,
	orderingRepo secondary.OrderingRepository,
	src ordering.Source,
) *OrderingServiceImpl {
	if src == nil {
		src = globalRand{}
	}
	return &OrderingServiceImpl{
		batteryRepo:    batteryRepo,
		batteryExpRepo: batteryExpRepo,
		orderingRepo:   orderingRepo,
		src:            src,
	}
}

// GenerateOrder persists a fresh random permutation of the battery's experiments.
func (s *OrderingServiceImpl) GenerateOrder(ctx context.Context, batteryID string) (string, error) {
	if _, err := s.batteryRepo.GetByID(ctx, batteryID); err != nil {
		return "", err
	}
	order, items, err := buildOrdering(ctx, s.batteryExpRepo, batteryID, s.src)
	if err != nil {
		return "", err
	}
	id, err := s.orderingRepo.CreateWithItems(ctx, order, items)
	if err != nil {
		return "", fmt.Errorf("failed to create ordering: %w", err)
	}
	return id, nil
}

// GetOrdering retrieves an ordering and its items.
func (s *OrderingServiceImpl) GetOrdering(ctx context.Context, orderingID string) (*primary.Ordering, error) {
	record, err := s.orderingRepo.GetByID(ctx, orderingID)
	if err != nil {
		return nil, err
	}
	items, err := s.orderingRepo.ListItems(ctx, orderingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ordering items: %w", err)
	}

	out := recordToOrdering(record)
	out.Items = make([]primary.OrderingItem, len(items))
	for i, it := range items {
		out.Items[i] = primary.OrderingItem{
			BatteryExperimentID: it.BatteryExperimentID,
			Position:            it.Position,
		}
	}
	return out, nil
}

// ListOrderings lists the orderings of a battery without their items.
func (s *OrderingServiceImpl) ListOrderings(ctx context.Context, batteryID string) ([]*primary.Ordering, error) {
	records, err := s.orderingRepo.ListByBattery(ctx, batteryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orderings: %w", err)
	}
	out := make([]*primary.Ordering, len(records))
	for i, r := range records {
		out[i] = recordToOrdering(r)
	}
	return out, nil
}

// buildOrdering shuffles the battery's current experiments into an unsaved ordering.
func buildOrdering(ctx context.Context, batteryExpRepo secondary.BatteryExperimentRepository, batteryID string, src ordering.Source) (*secondary.ExperimentOrderRecord, []*secondary.OrderItemRecord, error) {
	rows, err := batteryExpRepo.ListByBattery(ctx, batteryID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list battery experiments: %w", err)
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	generated := ordering.GenerateItems(ids, src)
	items := make([]*secondary.OrderItemRecord, len(generated))
	for i, g := range generated {
		items[i] = &secondary.OrderItemRecord{
			BatteryExperimentID: g.BatteryExperimentID,
			Position:            g.Position,
		}
	}

	order := &secondary.ExperimentOrderRecord{
		Name:          fmt.Sprintf("random order for %s", batteryID),
		BatteryID:     batteryID,
		AutoGenerated: true,
	}
	return order, items, nil
}

func recordToOrdering(r *secondary.ExperimentOrderRecord) *primary.Ordering {
	return &primary.Ordering{
		ID:            r.ID,
		Name:          r.Name,
		BatteryID:     r.BatteryID,
		AutoGenerated: r.AutoGenerated,
		CreatedAt:     r.CreatedAt,
	}
}

// Ensure OrderingServiceImpl implements the interface
var _ primary.OrderingService = (*OrderingServiceImpl)(nil)
