package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/example/expfactory/internal/ports/primary"
	"github.com/example/expfactory/internal/ports/secondary"
)

// ============================================================================
// Shared in-memory store
// ============================================================================

// fakeDB backs every mock repository so joins (battery experiment -> instance ->
// experiment repo -> origin) behave like the sqlite schema.
type fakeDB struct {
	origins     map[string]*secondary.OriginRecord
	frameworks  map[string]*secondary.FrameworkRecord
	exps        map[string]*secondary.ExperimentRepoRecord
	instances   map[string]*secondary.InstanceRecord
	batteries   map[string]*secondary.BatteryRecord
	bexps       map[string]*secondary.BatteryExperimentRecord
	orders      map[string]*secondary.ExperimentOrderRecord
	orderItems  map[string][]*secondary.OrderItemRecord
	subjects    map[string]*secondary.SubjectRecord
	assignments map[string]*secondary.AssignmentRecord
	results     map[string]*secondary.ResultRecord
	tags        map[string]*secondary.TagRecord
	entityTags  map[string][]string // entityType/entityID -> tag IDs
	seq         map[string]int
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		origins:     make(map[string]*secondary.OriginRecord),
		frameworks:  make(map[string]*secondary.FrameworkRecord),
		exps:        make(map[string]*secondary.ExperimentRepoRecord),
		instances:   make(map[string]*secondary.InstanceRecord),
		batteries:   make(map[string]*secondary.BatteryRecord),
		bexps:       make(map[string]*secondary.BatteryExperimentRecord),
		orders:      make(map[string]*secondary.ExperimentOrderRecord),
		orderItems:  make(map[string][]*secondary.OrderItemRecord),
		subjects:    make(map[string]*secondary.SubjectRecord),
		assignments: make(map[string]*secondary.AssignmentRecord),
		results:     make(map[string]*secondary.ResultRecord),
		tags:        make(map[string]*secondary.TagRecord),
		entityTags:  make(map[string][]string),
		seq:         make(map[string]int),
	}
}

func (d *fakeDB) next(prefix string) string {
	d.seq[prefix]++
	return fmt.Sprintf("%s-%03d", prefix, d.seq[prefix])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

const fakeCreatedAt = "2026-01-01T00:00:00Z"

// ============================================================================
// Origins and frameworks
// ============================================================================

type mockOriginRepository struct{ db *fakeDB }

func (m *mockOriginRepository) Create(ctx context.Context, origin *secondary.OriginRecord) error {
	c := *origin
	c.CreatedAt, c.UpdatedAt = fakeCreatedAt, fakeCreatedAt
	m.db.origins[origin.ID] = &c
	return nil
}

func (m *mockOriginRepository) GetByID(ctx context.Context, id string) (*secondary.OriginRecord, error) {
	if o, ok := m.db.origins[id]; ok {
		c := *o
		return &c, nil
	}
	return nil, fmt.Errorf("origin %s not found", id)
}

func (m *mockOriginRepository) FindExisting(ctx context.Context, url, name, path string) (*secondary.OriginRecord, error) {
	for _, id := range sortedKeys(m.db.origins) {
		o := m.db.origins[id]
		if o.URL == url || o.Name == name || o.Path == path {
			c := *o
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockOriginRepository) List(ctx context.Context, filters secondary.OriginFilters) ([]*secondary.OriginRecord, error) {
	var out []*secondary.OriginRecord
	for _, id := range sortedKeys(m.db.origins) {
		o := m.db.origins[id]
		if filters.Active != nil && o.Active != *filters.Active {
			continue
		}
		c := *o
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockOriginRepository) SetActive(ctx context.Context, id string, active bool) error {
	o, ok := m.db.origins[id]
	if !ok {
		return fmt.Errorf("origin %s not found", id)
	}
	o.Active = active
	return nil
}

func (m *mockOriginRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.db.origins[id]; !ok {
		return fmt.Errorf("origin %s not found", id)
	}
	delete(m.db.origins, id)
	for _, e := range m.db.exps {
		if e.OriginID == id {
			e.OriginID = ""
		}
	}
	return nil
}

func (m *mockOriginRepository) GetNextID(ctx context.Context) (string, error) {
	return m.db.next("ORIG"), nil
}

type mockFrameworkRepository struct{ db *fakeDB }

func (m *mockFrameworkRepository) Create(ctx context.Context, f *secondary.FrameworkRecord) error {
	c := *f
	c.CreatedAt = fakeCreatedAt
	m.db.frameworks[f.ID] = &c
	return nil
}

func (m *mockFrameworkRepository) GetByID(ctx context.Context, id string) (*secondary.FrameworkRecord, error) {
	if f, ok := m.db.frameworks[id]; ok {
		c := *f
		return &c, nil
	}
	return nil, fmt.Errorf("framework %s not found", id)
}

func (m *mockFrameworkRepository) GetByName(ctx context.Context, name string) (*secondary.FrameworkRecord, error) {
	for _, f := range m.db.frameworks {
		if f.Name == name {
			c := *f
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockFrameworkRepository) List(ctx context.Context) ([]*secondary.FrameworkRecord, error) {
	var out []*secondary.FrameworkRecord
	for _, id := range sortedKeys(m.db.frameworks) {
		c := *m.db.frameworks[id]
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockFrameworkRepository) GetNextID(ctx context.Context) (string, error) {
	return m.db.next("FRMW"), nil
}

// ============================================================================
// Experiment repos and instances
// ============================================================================

type mockExperimentRepoRepository struct{ db *fakeDB }

func (m *mockExperimentRepoRepository) Create(ctx context.Context, repo *secondary.ExperimentRepoRecord) error {
	c := *repo
	c.CreatedAt, c.UpdatedAt = fakeCreatedAt, fakeCreatedAt
	m.db.exps[repo.ID] = &c
	return nil
}

func (m *mockExperimentRepoRepository) GetByID(ctx context.Context, id string) (*secondary.ExperimentRepoRecord, error) {
	if e, ok := m.db.exps[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, fmt.Errorf("experiment %s not found", id)
}

func (m *mockExperimentRepoRepository) List(ctx context.Context, filters secondary.ExperimentRepoFilters) ([]*secondary.ExperimentRepoRecord, error) {
	var out []*secondary.ExperimentRepoRecord
	for _, id := range sortedKeys(m.db.exps) {
		e := m.db.exps[id]
		if filters.OriginID != "" && e.OriginID != filters.OriginID {
			continue
		}
		if filters.Active != nil && e.Active != *filters.Active {
			continue
		}
		if filters.Tag != "" && !m.db.hasTag(secondary.EntityTypeExperimentRepo, e.ID, filters.Tag) {
			continue
		}
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockExperimentRepoRepository) Update(ctx context.Context, repo *secondary.ExperimentRepoRecord) error {
	e, ok := m.db.exps[repo.ID]
	if !ok {
		return fmt.Errorf("experiment %s not found", repo.ID)
	}
	if repo.Name != "" {
		e.Name = repo.Name
	}
	if repo.Branch != "" {
		e.Branch = repo.Branch
	}
	if repo.Location != "" {
		e.Location = repo.Location
	}
	if repo.FrameworkID != "" {
		e.FrameworkID = repo.FrameworkID
	}
	if repo.CogatID != "" {
		e.CogatID = repo.CogatID
	}
	return nil
}

func (m *mockExperimentRepoRepository) SetActive(ctx context.Context, id string, active bool) error {
	e, ok := m.db.exps[id]
	if !ok {
		return fmt.Errorf("experiment %s not found", id)
	}
	e.Active = active
	return nil
}

func (m *mockExperimentRepoRepository) GetNextID(ctx context.Context) (string, error) {
	return m.db.next("EXP"), nil
}

type mockInstanceRepository struct {
	db           *fakeDB
	lastShuffled bool
}

func (m *mockInstanceRepository) Upsert(ctx context.Context, record *secondary.InstanceRecord) (*secondary.InstanceRecord, bool, error) {
	for _, inst := range m.db.instances {
		if inst.ExperimentRepoID == record.ExperimentRepoID && inst.Commit == record.Commit {
			if record.Note != "" {
				inst.Note = record.Note
			}
			if inst.CommitDate == "" {
				inst.CommitDate = record.CommitDate
			}
			c := *inst
			return &c, false, nil
		}
	}
	c := *record
	c.ID = m.db.next("INST")
	c.CreatedAt = fakeCreatedAt
	m.db.instances[c.ID] = &c
	out := c
	return &out, true, nil
}

func (m *mockInstanceRepository) GetByID(ctx context.Context, id string) (*secondary.InstanceRecord, error) {
	if inst, ok := m.db.instances[id]; ok {
		c := *inst
		return &c, nil
	}
	return nil, fmt.Errorf("instance %s not found", id)
}

func (m *mockInstanceRepository) ListByExperimentRepo(ctx context.Context, experimentRepoID string) ([]*secondary.InstanceRecord, error) {
	var out []*secondary.InstanceRecord
	keys := sortedKeys(m.db.instances)
	slices.Reverse(keys)
	for _, id := range keys {
		inst := m.db.instances[id]
		if inst.ExperimentRepoID == experimentRepoID {
			c := *inst
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockInstanceRepository) ListByOrdering(ctx context.Context, orderingID string) ([]*secondary.InstanceRecord, error) {
	items := slices.Clone(m.db.orderItems[orderingID])
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })

	var out []*secondary.InstanceRecord
	for _, it := range items {
		bexp, ok := m.db.bexps[it.BatteryExperimentID]
		if !ok {
			continue
		}
		c := *m.db.instances[bexp.InstanceID]
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockInstanceRepository) ListByBattery(ctx context.Context, batteryID string, shuffle bool) ([]*secondary.InstanceRecord, error) {
	m.lastShuffled = shuffle
	var out []*secondary.InstanceRecord
	for _, row := range m.db.batteryRows(batteryID) {
		c := *m.db.instances[row.InstanceID]
		out = append(out, &c)
	}
	return out, nil
}

// ============================================================================
// Batteries, battery experiments and orderings
// ============================================================================

type mockBatteryRepository struct{ db *fakeDB }

func (m *mockBatteryRepository) Create(ctx context.Context, b *secondary.BatteryRecord) error {
	c := *b
	c.CreatedAt, c.UpdatedAt = fakeCreatedAt, fakeCreatedAt
	m.db.batteries[b.ID] = &c
	return nil
}

func (m *mockBatteryRepository) GetByID(ctx context.Context, id string) (*secondary.BatteryRecord, error) {
	if b, ok := m.db.batteries[id]; ok {
		c := *b
		return &c, nil
	}
	return nil, fmt.Errorf("battery %s not found", id)
}

func (m *mockBatteryRepository) List(ctx context.Context, filters secondary.BatteryFilters) ([]*secondary.BatteryRecord, error) {
	var out []*secondary.BatteryRecord
	for _, id := range sortedKeys(m.db.batteries) {
		b := m.db.batteries[id]
		if filters.Status != "" && b.Status != filters.Status {
			continue
		}
		if filters.TemplateID != "" && b.TemplateID != filters.TemplateID {
			continue
		}
		c := *b
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockBatteryRepository) Update(ctx context.Context, b *secondary.BatteryRecord) error {
	existing, ok := m.db.batteries[b.ID]
	if !ok {
		return fmt.Errorf("battery %s not found", b.ID)
	}
	status, templateID := existing.Status, existing.TemplateID
	c := *b
	c.Status, c.TemplateID = status, templateID
	m.db.batteries[b.ID] = &c
	return nil
}

func (m *mockBatteryRepository) UpdateStatus(ctx context.Context, id, status string) error {
	b, ok := m.db.batteries[id]
	if !ok {
		return fmt.Errorf("battery %s not found", id)
	}
	b.Status = status
	return nil
}

func (m *mockBatteryRepository) HasChildren(ctx context.Context, id string) (bool, error) {
	for _, b := range m.db.batteries {
		if b.TemplateID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockBatteryRepository) Duplicate(ctx context.Context, sourceID, status, templateID string) (string, error) {
	src, ok := m.db.batteries[sourceID]
	if !ok {
		return "", fmt.Errorf("battery %s not found", sourceID)
	}
	c := *src
	c.ID = m.db.next("BATT")
	c.Status = status
	c.TemplateID = templateID
	m.db.batteries[c.ID] = &c

	for _, row := range m.db.batteryRows(sourceID) {
		clone := *row
		clone.ID = m.db.next("BEXP")
		clone.BatteryID = c.ID
		m.db.bexps[clone.ID] = &clone
	}
	return c.ID, nil
}

func (m *mockBatteryRepository) GetNextID(ctx context.Context) (string, error) {
	return m.db.next("BATT"), nil
}

// batteryRows returns the joined rows of a battery by order, then ID.
func (d *fakeDB) batteryRows(batteryID string) []*secondary.BatteryExperimentRecord {
	var rows []*secondary.BatteryExperimentRecord
	for _, id := range sortedKeys(d.bexps) {
		row := d.bexps[id]
		if row.BatteryID == batteryID {
			rows = append(rows, d.joined(row))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Order < rows[j].Order })
	return rows
}

func (d *fakeDB) joined(row *secondary.BatteryExperimentRecord) *secondary.BatteryExperimentRecord {
	c := *row
	if inst, ok := d.instances[row.InstanceID]; ok {
		c.ExperimentRepoID = inst.ExperimentRepoID
		c.Commit = inst.Commit
		if e, ok := d.exps[inst.ExperimentRepoID]; ok {
			c.ExperimentName = e.Name
		}
	}
	return &c
}

type mockBatteryExperimentRepository struct{ db *fakeDB }

func (m *mockBatteryExperimentRepository) Create(ctx context.Context, record *secondary.BatteryExperimentRecord) error {
	c := *record
	m.db.bexps[record.ID] = &c
	return nil
}

func (m *mockBatteryExperimentRepository) GetByID(ctx context.Context, id string) (*secondary.BatteryExperimentRecord, error) {
	if row, ok := m.db.bexps[id]; ok {
		return m.db.joined(row), nil
	}
	return nil, fmt.Errorf("battery experiment %s not found", id)
}

func (m *mockBatteryExperimentRepository) ListByBattery(ctx context.Context, batteryID string) ([]*secondary.BatteryExperimentRecord, error) {
	return m.db.batteryRows(batteryID), nil
}

func (m *mockBatteryExperimentRepository) Place(ctx context.Context, id, instanceID string, order int) error {
	row, ok := m.db.bexps[id]
	if !ok {
		return fmt.Errorf("battery experiment %s not found", id)
	}
	row.InstanceID = instanceID
	row.Order = order
	return nil
}

func (m *mockBatteryExperimentRepository) SetUseLatest(ctx context.Context, id string, useLatest bool) error {
	row, ok := m.db.bexps[id]
	if !ok {
		return fmt.Errorf("battery experiment %s not found", id)
	}
	row.UseLatest = useLatest
	return nil
}

func (m *mockBatteryExperimentRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.db.bexps[id]; !ok {
		return fmt.Errorf("battery experiment %s not found", id)
	}
	delete(m.db.bexps, id)
	return nil
}

func (m *mockBatteryExperimentRepository) ListUseLatestByOrigin(ctx context.Context, originID, commit string) ([]*secondary.BatteryExperimentRecord, error) {
	var out []*secondary.BatteryExperimentRecord
	for _, id := range sortedKeys(m.db.bexps) {
		row := m.db.joined(m.db.bexps[id])
		e, ok := m.db.exps[row.ExperimentRepoID]
		if row.UseLatest && ok && e.OriginID == originID && row.Commit != commit {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *mockBatteryExperimentRepository) GetNextID(ctx context.Context) (string, error) {
	return m.db.next("BEXP"), nil
}

type mockOrderingRepository struct{ db *fakeDB }

func (d *fakeDB) insertOrdering(order *secondary.ExperimentOrderRecord, items []*secondary.OrderItemRecord) string {
	c := *order
	c.ID = d.next("EORD")
	c.CreatedAt = fakeCreatedAt
	d.orders[c.ID] = &c
	for _, it := range items {
		ic := *it
		ic.ID = d.next("EOI")
		ic.OrderingID = c.ID
		d.orderItems[c.ID] = append(d.orderItems[c.ID], &ic)
	}
	order.ID = c.ID
	return c.ID
}

func (m *mockOrderingRepository) CreateWithItems(ctx context.Context, order *secondary.ExperimentOrderRecord, items []*secondary.OrderItemRecord) (string, error) {
	return m.db.insertOrdering(order, items), nil
}

func (m *mockOrderingRepository) GetByID(ctx context.Context, id string) (*secondary.ExperimentOrderRecord, error) {
	if o, ok := m.db.orders[id]; ok {
		c := *o
		return &c, nil
	}
	return nil, fmt.Errorf("ordering %s not found", id)
}

func (m *mockOrderingRepository) ListByBattery(ctx context.Context, batteryID string) ([]*secondary.ExperimentOrderRecord, error) {
	var out []*secondary.ExperimentOrderRecord
	for _, id := range sortedKeys(m.db.orders) {
		if o := m.db.orders[id]; o.BatteryID == batteryID {
			c := *o
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockOrderingRepository) ListItems(ctx context.Context, orderingID string) ([]*secondary.OrderItemRecord, error) {
	items := slices.Clone(m.db.orderItems[orderingID])
	sort.Slice(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	return items, nil
}

// ============================================================================
// Subjects, assignments and results
// ============================================================================

type mockSubjectRepository struct{ db *fakeDB }

func (m *mockSubjectRepository) Create(ctx context.Context, s *secondary.SubjectRecord) error {
	c := *s
	c.CreatedAt = fakeCreatedAt
	m.db.subjects[s.ID] = &c
	return nil
}

func (m *mockSubjectRepository) GetByID(ctx context.Context, id string) (*secondary.SubjectRecord, error) {
	if s, ok := m.db.subjects[id]; ok {
		c := *s
		return &c, nil
	}
	return nil, fmt.Errorf("subject %s not found", id)
}

func (m *mockSubjectRepository) GetByUUID(ctx context.Context, uuid string) (*secondary.SubjectRecord, error) {
	for _, s := range m.db.subjects {
		if s.UUID == uuid {
			c := *s
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockSubjectRepository) List(ctx context.Context, filters secondary.SubjectFilters) ([]*secondary.SubjectRecord, error) {
	var out []*secondary.SubjectRecord
	for _, id := range sortedKeys(m.db.subjects) {
		s := m.db.subjects[id]
		if filters.Active != nil && s.Active != *filters.Active {
			continue
		}
		if filters.Tag != "" && !m.db.hasTag(secondary.EntityTypeSubject, s.ID, filters.Tag) {
			continue
		}
		c := *s
		out = append(out, &c)
	}
	return out, nil
}

func (m *mockSubjectRepository) SetActive(ctx context.Context, id string, active bool) error {
	s, ok := m.db.subjects[id]
	if !ok {
		return fmt.Errorf("subject %s not found", id)
	}
	s.Active = active
	return nil
}

func (m *mockSubjectRepository) GetNextID(ctx context.Context) (string, error) {
	return m.db.next("SUBJ"), nil
}

type mockAssignmentRepository struct{ db *fakeDB }

func (m *mockAssignmentRepository) Create(ctx context.Context, a *secondary.AssignmentRecord, order *secondary.ExperimentOrderRecord, items []*secondary.OrderItemRecord) error {
	for _, existing := range m.db.assignments {
		if existing.SubjectID == a.SubjectID && existing.BatteryID == a.BatteryID {
			return secondary.ErrDuplicateAssignment
		}
	}
	if order != nil {
		a.OrderingID = m.db.insertOrdering(order, items)
	}
	a.ID = m.db.next("ASGN")
	c := *a
	c.CreatedAt, c.UpdatedAt = fakeCreatedAt, fakeCreatedAt
	m.db.assignments[a.ID] = &c
	return nil
}

func (m *mockAssignmentRepository) GetByID(ctx context.Context, id string) (*secondary.AssignmentRecord, error) {
	if a, ok := m.db.assignments[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, fmt.Errorf("assignment %s not found", id)
}

func (m *mockAssignmentRepository) List(ctx context.Context, filters secondary.AssignmentFilters) ([]*secondary.AssignmentRecord, error) {
	var out []*secondary.AssignmentRecord
	for _, id := range sortedKeys(m.db.assignments) {
		a := m.db.assignments[id]
		if filters.SubjectID != "" && a.SubjectID != filters.SubjectID {
			continue
		}
		if filters.BatteryID != "" && a.BatteryID != filters.BatteryID {
			continue
		}
		if filters.Status != "" && a.Status != filters.Status {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

func applyStatusUpdate(status, startedAt, completedAt, failedAt *string, u secondary.StatusUpdate) {
	*status = u.Status
	if u.StartedAt != nil {
		*startedAt = formatTime(*u.StartedAt)
	}
	if u.CompletedAt != nil {
		*completedAt = formatTime(*u.CompletedAt)
	}
	if u.FailedAt != nil {
		*failedAt = formatTime(*u.FailedAt)
	}
}

func (m *mockAssignmentRepository) UpdateStatus(ctx context.Context, id string, u secondary.StatusUpdate) error {
	a, ok := m.db.assignments[id]
	if !ok {
		return fmt.Errorf("assignment %s not found", id)
	}
	applyStatusUpdate(&a.Status, &a.StartedAt, &a.CompletedAt, &a.FailedAt, u)
	return nil
}

func (m *mockAssignmentRepository) SetConsent(ctx context.Context, id string, accepted bool) error {
	a, ok := m.db.assignments[id]
	if !ok {
		return fmt.Errorf("assignment %s not found", id)
	}
	a.ConsentAccepted = &accepted
	return nil
}

type mockResultRepository struct{ db *fakeDB }

func (m *mockResultRepository) Create(ctx context.Context, r *secondary.ResultRecord) error {
	c := *r
	c.CreatedAt, c.UpdatedAt = fakeCreatedAt, fakeCreatedAt
	m.db.results[r.ID] = &c
	return nil
}

func (m *mockResultRepository) GetByID(ctx context.Context, id string) (*secondary.ResultRecord, error) {
	if r, ok := m.db.results[id]; ok {
		c := *r
		return &c, nil
	}
	return nil, fmt.Errorf("result %s not found", id)
}

func (m *mockResultRepository) matches(r *secondary.ResultRecord, f secondary.ResultFilters) bool {
	if f.ID != "" && r.ID != f.ID {
		return false
	}
	if f.AssignmentID != "" && r.AssignmentID != f.AssignmentID {
		return false
	}
	if f.SubjectID != "" && r.SubjectID != f.SubjectID {
		return false
	}
	if f.BatteryID != "" {
		row, ok := m.db.bexps[r.BatteryExperimentID]
		if !ok || row.BatteryID != f.BatteryID {
			return false
		}
	}
	return true
}

func (m *mockResultRepository) List(ctx context.Context, filters secondary.ResultFilters) ([]*secondary.ResultRecord, error) {
	var out []*secondary.ResultRecord
	for _, id := range sortedKeys(m.db.results) {
		if r := m.db.results[id]; m.matches(r, filters) {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockResultRepository) UpdateStatus(ctx context.Context, id string, u secondary.StatusUpdate) error {
	r, ok := m.db.results[id]
	if !ok {
		return fmt.Errorf("result %s not found", id)
	}
	applyStatusUpdate(&r.Status, &r.StartedAt, &r.CompletedAt, &r.FailedAt, u)
	return nil
}

func (m *mockResultRepository) ExemptInstanceIDs(ctx context.Context, subjectID string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, id := range sortedKeys(m.db.results) {
		r := m.db.results[id]
		if r.SubjectID != subjectID || (r.Status != "completed" && r.Status != "failed") {
			continue
		}
		row, ok := m.db.bexps[r.BatteryExperimentID]
		if !ok || seen[row.InstanceID] {
			continue
		}
		seen[row.InstanceID] = true
		out = append(out, row.InstanceID)
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockResultRepository) CountByStatus(ctx context.Context, assignmentID string) (map[string]int, error) {
	counts := map[string]int{}
	for _, r := range m.db.results {
		if r.AssignmentID == assignmentID {
			counts[r.Status]++
		}
	}
	return counts, nil
}

func (m *mockResultRepository) ExportRows(ctx context.Context, filters secondary.ResultFilters) ([]*secondary.ResultExportRecord, error) {
	var out []*secondary.ResultExportRecord
	for _, id := range sortedKeys(m.db.results) {
		r := m.db.results[id]
		if !m.matches(r, filters) {
			continue
		}
		rec := &secondary.ResultExportRecord{ResultID: r.ID, Data: r.Data}
		if row, ok := m.db.bexps[r.BatteryExperimentID]; ok {
			rec.ExperimentName = m.db.joined(row).ExperimentName
		}
		if s, ok := m.db.subjects[r.SubjectID]; ok {
			rec.SubjectHandle, rec.SubjectUUID = s.Handle, s.UUID
		}
		out = append(out, rec)
	}
	return out, nil
}

func (m *mockResultRepository) GetNextID(ctx context.Context) (string, error) {
	return m.db.next("RES"), nil
}

// ============================================================================
// Tags and audit log
// ============================================================================

type mockTagRepository struct{ db *fakeDB }

func (d *fakeDB) hasTag(entityType, entityID, tagName string) bool {
	for _, tagID := range d.entityTags[entityType+"/"+entityID] {
		if t, ok := d.tags[tagID]; ok && t.Name == tagName {
			return true
		}
	}
	return false
}

func (m *mockTagRepository) Create(ctx context.Context, tag *secondary.TagRecord) error {
	c := *tag
	c.CreatedAt, c.UpdatedAt = fakeCreatedAt, fakeCreatedAt
	m.db.tags[tag.ID] = &c
	return nil
}

func (m *mockTagRepository) GetByID(ctx context.Context, id string) (*secondary.TagRecord, error) {
	if t, ok := m.db.tags[id]; ok {
		c := *t
		return &c, nil
	}
	return nil, fmt.Errorf("tag %s not found", id)
}

func (m *mockTagRepository) GetByName(ctx context.Context, name string) (*secondary.TagRecord, error) {
	for _, t := range m.db.tags {
		if t.Name == name {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (m *mockTagRepository) List(ctx context.Context) ([]*secondary.TagRecord, error) {
	var out []*secondary.TagRecord
	for _, id := range sortedKeys(m.db.tags) {
		c := *m.db.tags[id]
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockTagRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.db.tags[id]; !ok {
		return fmt.Errorf("tag %s not found", id)
	}
	delete(m.db.tags, id)
	for key, ids := range m.db.entityTags {
		m.db.entityTags[key] = slices.DeleteFunc(ids, func(t string) bool { return t == id })
	}
	return nil
}

func (m *mockTagRepository) GetNextID(ctx context.Context) (string, error) {
	return m.db.next("TAG"), nil
}

func (m *mockTagRepository) AddEntityTag(ctx context.Context, entityID, entityType, tagID string) error {
	key := entityType + "/" + entityID
	if !slices.Contains(m.db.entityTags[key], tagID) {
		m.db.entityTags[key] = append(m.db.entityTags[key], tagID)
	}
	return nil
}

func (m *mockTagRepository) RemoveEntityTag(ctx context.Context, entityID, entityType, tagID string) error {
	key := entityType + "/" + entityID
	m.db.entityTags[key] = slices.DeleteFunc(m.db.entityTags[key], func(t string) bool { return t == tagID })
	return nil
}

func (m *mockTagRepository) ListEntityTags(ctx context.Context, entityID, entityType string) ([]*secondary.TagRecord, error) {
	var out []*secondary.TagRecord
	for _, id := range m.db.entityTags[entityType+"/"+entityID] {
		if t, ok := m.db.tags[id]; ok {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// mockLogWriter records audit entries as "action entity/id[ field old->new]".
type mockLogWriter struct {
	entries []string
}

func (m *mockLogWriter) LogCreate(ctx context.Context, entityType, entityID string) error {
	m.entries = append(m.entries, fmt.Sprintf("create %s/%s", entityType, entityID))
	return nil
}

func (m *mockLogWriter) LogUpdate(ctx context.Context, entityType, entityID, fieldName, oldValue, newValue string) error {
	m.entries = append(m.entries, fmt.Sprintf("update %s/%s %s %s->%s", entityType, entityID, fieldName, oldValue, newValue))
	return nil
}

func (m *mockLogWriter) LogDelete(ctx context.Context, entityType, entityID string) error {
	m.entries = append(m.entries, fmt.Sprintf("delete %s/%s", entityType, entityID))
	return nil
}

func (m *mockLogWriter) has(prefix string) bool {
	for _, e := range m.entries {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}

// ============================================================================
// Workspace
// ============================================================================

// Ensure mockWorkspaceAdapter implements the interface
var _ secondary.WorkspaceAdapter = (*mockWorkspaceAdapter)(nil)

// mockWorkspaceAdapter simulates git repositories keyed by clone path.
type mockWorkspaceAdapter struct {
	heads     map[string]string               // repo path -> head commit
	history   map[string]map[string]time.Time // repo path -> commit -> date
	afterPull map[string]string               // repo path -> head after the next pull
	worktrees map[string][]string             // repo path -> worktree HEADs
	dirs      map[string]bool
	cloned    []string
	addErr    error
	added     []string
}

func newMockWorkspaceAdapter() *mockWorkspaceAdapter {
	return &mockWorkspaceAdapter{
		heads:     make(map[string]string),
		history:   make(map[string]map[string]time.Time),
		afterPull: make(map[string]string),
		worktrees: make(map[string][]string),
		dirs:      make(map[string]bool),
	}
}

// commit adds a commit to the repository at path and makes it head.
func (m *mockWorkspaceAdapter) commit(path, sha string, date time.Time) {
	if m.history[path] == nil {
		m.history[path] = make(map[string]time.Time)
	}
	m.history[path][sha] = date
	m.heads[path] = sha
}

func (m *mockWorkspaceAdapter) Clone(ctx context.Context, url, path string) error {
	m.cloned = append(m.cloned, path)
	return nil
}

func (m *mockWorkspaceAdapter) Pull(ctx context.Context, repoPath string) error {
	if head, ok := m.afterPull[repoPath]; ok {
		m.commit(repoPath, head, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
		delete(m.afterPull, repoPath)
	}
	return nil
}

func (m *mockWorkspaceAdapter) LatestCommit(ctx context.Context, repoPath string) (string, error) {
	head, ok := m.heads[repoPath]
	if !ok {
		return "", fmt.Errorf("no repository at %s", repoPath)
	}
	return head, nil
}

func (m *mockWorkspaceAdapter) CommitDate(ctx context.Context, repoPath, commit string) (time.Time, error) {
	date, ok := m.history[repoPath][commit]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown commit %s", commit)
	}
	return date, nil
}

func (m *mockWorkspaceAdapter) IsValidCommit(ctx context.Context, repoPath, commit string) (bool, error) {
	_, ok := m.history[repoPath][commit]
	return ok, nil
}

func (m *mockWorkspaceAdapter) ListWorktrees(ctx context.Context, repoPath string) ([]string, error) {
	return m.worktrees[repoPath], nil
}

func (m *mockWorkspaceAdapter) AddWorktree(ctx context.Context, repoPath, targetPath, commit string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.worktrees[repoPath] = append(m.worktrees[repoPath], commit)
	m.dirs[targetPath] = true
	m.added = append(m.added, targetPath)
	return nil
}

func (m *mockWorkspaceAdapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	return m.dirs[path], nil
}

func (m *mockWorkspaceAdapter) RepoPath(name string) string {
	return "/repos/" + name
}

func (m *mockWorkspaceAdapter) DeploymentPath(originPath, commit string) string {
	return "/deploy/" + strings.TrimPrefix(originPath, "/repos/") + "/" + commit
}

// ============================================================================
// Test environment
// ============================================================================

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

// testEnv wires every service over one fakeDB.
type testEnv struct {
	db          *fakeDB
	ws          *mockWorkspaceAdapter
	logs        *mockLogWriter
	instances   *mockInstanceRepository
	origins     *OriginServiceImpl
	experiments *ExperimentServiceImpl
	batteries   *BatteryServiceImpl
	orderings   *OrderingServiceImpl
	subjects    *SubjectServiceImpl
	assignments *AssignmentServiceImpl
	results     *ResultServiceImpl
	tags        *TagServiceImpl
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newFakeDB()
	ws := newMockWorkspaceAdapter()
	logs := &mockLogWriter{}

	originRepo := &mockOriginRepository{db: db}
	frameworkRepo := &mockFrameworkRepository{db: db}
	expRepo := &mockExperimentRepoRepository{db: db}
	instanceRepo := &mockInstanceRepository{db: db}
	batteryRepo := &mockBatteryRepository{db: db}
	bexpRepo := &mockBatteryExperimentRepository{db: db}
	orderingRepo := &mockOrderingRepository{db: db}
	subjectRepo := &mockSubjectRepository{db: db}
	assignmentRepo := &mockAssignmentRepository{db: db}
	resultRepo := &mockResultRepository{db: db}
	tagRepo := &mockTagRepository{db: db}

	src := rand.New(rand.NewPCG(1, 2))

	env := &testEnv{
		db:          db,
		ws:          ws,
		logs:        logs,
		instances:   instanceRepo,
		origins:     NewOriginService(originRepo, expRepo, instanceRepo, bexpRepo, ws, logs),
		experiments: NewExperimentService(expRepo, originRepo, instanceRepo, frameworkRepo, tagRepo, ws, logs),
		batteries:   NewBatteryService(batteryRepo, bexpRepo, expRepo, originRepo, instanceRepo, orderingRepo, ws, logs),
		orderings:   NewOrderingService(batteryRepo, bexpRepo, orderingRepo, src),
		subjects:    NewSubjectService(subjectRepo, tagRepo, logs),
		assignments: NewAssignmentService(AssignmentRepos{
			Assignments:        assignmentRepo,
			Subjects:           subjectRepo,
			Batteries:          batteryRepo,
			BatteryExperiments: bexpRepo,
			Instances:          instanceRepo,
			Results:            resultRepo,
			ExperimentRepos:    expRepo,
			Origins:            originRepo,
		}, src, logs),
		results: NewResultService(resultRepo, assignmentRepo, bexpRepo, logs),
		tags:    NewTagService(tagRepo),
	}
	env.assignments.now = func() time.Time { return fixedNow }
	env.results.now = func() time.Time { return fixedNow }

	uuidSeq := 0
	env.subjects.newUUID = func() string {
		uuidSeq++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", uuidSeq)
	}
	return env
}

// githubOrigin registers git@github.com:expfactory/<name>.git with head commit "c1".
func (e *testEnv) githubOrigin(t *testing.T, name string) string {
	t.Helper()
	path := "/repos/" + name
	e.ws.commit(path, "c1", time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))

	resp, err := e.origins.CreateOrigin(context.Background(), primary.CreateOriginRequest{
		URL:       "git@github.com:expfactory/" + name + ".git",
		SkipClone: true,
	})
	if err != nil {
		t.Fatalf("CreateOrigin failed: %v", err)
	}
	return resp.OriginID
}

func (e *testEnv) experiment(t *testing.T, originID, name string) string {
	t.Helper()
	resp, err := e.experiments.CreateExperimentRepo(context.Background(), primary.CreateExperimentRepoRequest{
		Name:     name,
		OriginID: originID,
	})
	if err != nil {
		t.Fatalf("CreateExperimentRepo failed: %v", err)
	}
	return resp.ExperimentRepoID
}

func (e *testEnv) battery(t *testing.T, status string, random bool) string {
	t.Helper()
	resp, err := e.batteries.CreateBattery(context.Background(), primary.CreateBatteryRequest{
		Title:       "Attention",
		Status:      status,
		RandomOrder: &random,
	})
	if err != nil {
		t.Fatalf("CreateBattery failed: %v", err)
	}
	return resp.BatteryID
}

// bind places experiments at their latest commit and returns the battery experiment IDs.
func (e *testEnv) bind(t *testing.T, batteryID string, experimentIDs ...string) []string {
	t.Helper()
	var ids []string
	for _, expID := range experimentIDs {
		resp, err := e.batteries.BindCommit(context.Background(), primary.BindCommitRequest{
			BatteryID:        batteryID,
			ExperimentRepoID: expID,
			Commit:           "latest",
		})
		if err != nil {
			t.Fatalf("BindCommit(%s) failed: %v", expID, err)
		}
		ids = append(ids, resp.BatteryExperimentID)
	}
	return ids
}

func (e *testEnv) subject(t *testing.T, handle string) string {
	t.Helper()
	s, err := e.subjects.CreateSubject(context.Background(), primary.CreateSubjectRequest{Handle: handle})
	if err != nil {
		t.Fatalf("CreateSubject failed: %v", err)
	}
	return s.ID
}

// result stores a result row directly, bypassing service validation.
func (e *testEnv) result(subjectID, assignmentID, batteryExperimentID, status string) {
	id := e.db.next("RES")
	e.db.results[id] = &secondary.ResultRecord{
		ID:                  id,
		AssignmentID:        assignmentID,
		BatteryExperimentID: batteryExperimentID,
		SubjectID:           subjectID,
		Status:              status,
		Data:                `{"rt": 512}`,
	}
}
