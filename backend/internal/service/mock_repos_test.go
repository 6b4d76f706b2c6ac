package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"resource-planner/backend/internal/model"
	"resource-planner/backend/internal/repository"
	"resource-planner/backend/internal/timelog"
	pkgerrors "resource-planner/backend/pkg/errors"
)

// ── Mock ResourceRepository ──

type mockResourceRepo struct {
	resources map[string]*model.Resource
}

func newMockResourceRepo() *mockResourceRepo {
	return &mockResourceRepo{resources: make(map[string]*model.Resource)}
}

func (m *mockResourceRepo) GetByID(_ context.Context, id string) (*model.Resource, error) {
	if r, ok := m.resources[id]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock AllocationRepository ──

type mockAllocationRepo struct {
	allocs map[string]*model.ResourceAllocation
}

func newMockAllocationRepo() *mockAllocationRepo {
	return &mockAllocationRepo{allocs: make(map[string]*model.ResourceAllocation)}
}

func (m *mockAllocationRepo) ListByResource(_ context.Context, resourceID string) ([]model.ResourceAllocation, error) {
	var result []model.ResourceAllocation
	for _, a := range m.allocs {
		if a.ResourceID == resourceID {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAllocationRepo) GetByID(_ context.Context, id string) (*model.ResourceAllocation, error) {
	if a, ok := m.allocs[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock TimeEntryRepository ──

type mockTimeEntryRepo struct {
	mu      sync.Mutex
	entries map[string]*model.TimeEntry
	seq     int
}

func newMockTimeEntryRepo() *mockTimeEntryRepo {
	return &mockTimeEntryRepo{entries: make(map[string]*model.TimeEntry)}
}

func (m *mockTimeEntryRepo) ListByResourceAndWeek(_ context.Context, resourceID string, weekStart time.Time) ([]model.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []model.TimeEntry
	for _, e := range m.entries {
		if e.ResourceID == resourceID && e.WeekStartDate.Equal(weekStart) {
			result = append(result, *e)
		}
	}
	return result, nil
}

func (m *mockTimeEntryRepo) GetByID(_ context.Context, id string) (*model.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimeEntryRepo) GetByAllocationAndWeek(_ context.Context, allocationID string, weekStart time.Time) (*model.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.AllocationID == allocationID && e.WeekStartDate.Equal(weekStart) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimeEntryRepo) Create(_ context.Context, entry *model.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.TimeEntryID == "" {
		m.seq++
		entry.TimeEntryID = fmt.Sprintf("te-%d", m.seq)
	}
	entry.Version = 1
	cp := *entry
	cp.Allocation = nil
	m.entries[entry.TimeEntryID] = &cp
	return nil
}

func (m *mockTimeEntryRepo) Update(_ context.Context, entry *model.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[entry.TimeEntryID]
	if !ok || cur.Version != entry.Version {
		return pkgerrors.ErrOptimisticLock
	}
	entry.Version++
	cp := *entry
	cp.Allocation = nil
	m.entries[entry.TimeEntryID] = &cp
	return nil
}

// seed 直接写入一条工时，绕过业务校验
func (m *mockTimeEntryRepo) seed(id, resourceID, allocationID string, week time.Time, hours ...float64) *model.TimeEntry {
	var w timelog.WeekHours
	for i, h := range hours {
		w[i] = decimal.NewFromFloat(h)
	}
	e := &model.TimeEntry{
		TimeEntryID:   id,
		ResourceID:    resourceID,
		AllocationID:  allocationID,
		WeekStartDate: week,
	}
	e.SetHours(w)
	e.Version = 1
	m.entries[id] = e
	return e
}

// ── Mock WeeklySubmissionRepository ──

type mockWeeklySubmissionRepo struct {
	subs map[string]*model.WeeklySubmission
	logs []model.WeeklySubmissionLog
	seq  int

	// weekLocks 记录 LockWeek 调用："shared" 或 "exclusive"
	lockMu    sync.Mutex
	weekLocks []string
}

func newMockWeeklySubmissionRepo() *mockWeeklySubmissionRepo {
	return &mockWeeklySubmissionRepo{subs: make(map[string]*model.WeeklySubmission)}
}

func submissionKey(resourceID string, week time.Time) string {
	return resourceID + "@" + timelog.FormatWeek(week)
}

func (m *mockWeeklySubmissionRepo) GetByResourceAndWeek(_ context.Context, resourceID string, weekStart time.Time) (*model.WeeklySubmission, error) {
	if s, ok := m.subs[submissionKey(resourceID, weekStart)]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockWeeklySubmissionRepo) GetForUpdate(ctx context.Context, resourceID string, weekStart time.Time) (*model.WeeklySubmission, error) {
	return m.GetByResourceAndWeek(ctx, resourceID, weekStart)
}

func (m *mockWeeklySubmissionRepo) LockWeek(_ context.Context, _ string, _ time.Time, exclusive bool) error {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	mode := "shared"
	if exclusive {
		mode = "exclusive"
	}
	m.weekLocks = append(m.weekLocks, mode)
	return nil
}

func (m *mockWeeklySubmissionRepo) lockModes() []string {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	return append([]string(nil), m.weekLocks...)
}

func (m *mockWeeklySubmissionRepo) Create(_ context.Context, sub *model.WeeklySubmission) error {
	key := submissionKey(sub.ResourceID, sub.WeekStartDate)
	if _, ok := m.subs[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	m.seq++
	sub.SubmissionID = fmt.Sprintf("ws-%d", m.seq)
	sub.Version = 1
	cp := *sub
	m.subs[key] = &cp
	return nil
}

func (m *mockWeeklySubmissionRepo) Update(_ context.Context, sub *model.WeeklySubmission) error {
	key := submissionKey(sub.ResourceID, sub.WeekStartDate)
	cur, ok := m.subs[key]
	if !ok || cur.Version != sub.Version {
		return pkgerrors.ErrOptimisticLock
	}
	sub.Version++
	cp := *sub
	m.subs[key] = &cp
	return nil
}

func (m *mockWeeklySubmissionRepo) CreateLog(_ context.Context, log *model.WeeklySubmissionLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func (m *mockWeeklySubmissionRepo) ListLogs(_ context.Context, resourceID string, weekStart time.Time) ([]model.WeeklySubmissionLog, error) {
	var result []model.WeeklySubmissionLog
	for _, l := range m.logs {
		if l.ResourceID == resourceID && l.WeekStartDate.Equal(weekStart) {
			result = append(result, l)
		}
	}
	return result, nil
}

// markSubmitted 直接写入已提交状态
func (m *mockWeeklySubmissionRepo) markSubmitted(resourceID string, week time.Time) {
	m.seq++
	m.subs[submissionKey(resourceID, week)] = &model.WeeklySubmission{
		SubmissionID:  fmt.Sprintf("ws-%d", m.seq),
		ResourceID:    resourceID,
		WeekStartDate: week,
		IsSubmitted:   true,
		VersionedModel: model.VersionedModel{
			Version: 1,
		},
	}
}

// ── Mock WeekLocker ──

type mockLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	err    error
	keys   []string
	locked int
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (m *mockLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, key)
	if m.err != nil {
		return nil, false, m.err
	}
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	m.locked++
	return func() {
		m.mu.Lock()
		delete(m.held, key)
		m.mu.Unlock()
	}, true, nil
}

// ── 测试夹具 ──

type testRepos struct {
	resource   *mockResourceRepo
	allocation *mockAllocationRepo
	timeEntry  *mockTimeEntryRepo
	submission *mockWeeklySubmissionRepo
}

func newTestRepository() (*repository.Repository, *testRepos) {
	r := &testRepos{
		resource:   newMockResourceRepo(),
		allocation: newMockAllocationRepo(),
		timeEntry:  newMockTimeEntryRepo(),
		submission: newMockWeeklySubmissionRepo(),
	}
	repo := &repository.Repository{
		Resource:         r.resource,
		Allocation:       r.allocation,
		TimeEntry:        r.timeEntry,
		WeeklySubmission: r.submission,
	}

	project := &model.Project{ProjectID: "proj-apollo", Name: "Apollo", Code: "APL"}
	r.resource.resources["res-alice"] = &model.Resource{ResourceID: "res-alice", Name: "Alice"}
	r.resource.resources["res-bob"] = &model.Resource{ResourceID: "res-bob", Name: "Bob"}
	r.allocation.allocs["alloc-a1"] = &model.ResourceAllocation{
		AllocationID:   "alloc-a1",
		ResourceID:     "res-alice",
		ProjectID:      project.ProjectID,
		AllocatedHours: decimal.NewFromInt(40),
		Status:         model.AllocationStatusActive,
		Project:        project,
	}
	r.allocation.allocs["alloc-a2"] = &model.ResourceAllocation{
		AllocationID:   "alloc-a2",
		ResourceID:     "res-alice",
		ProjectID:      project.ProjectID,
		AllocatedHours: decimal.NewFromInt(10),
		Status:         model.AllocationStatusActive,
		Project:        project,
	}
	r.allocation.allocs["alloc-b1"] = &model.ResourceAllocation{
		AllocationID:   "alloc-b1",
		ResourceID:     "res-bob",
		ProjectID:      project.ProjectID,
		AllocatedHours: decimal.NewFromInt(20),
		Status:         model.AllocationStatusActive,
		Project:        project,
	}
	return repo, r
}

var (
	testWeek   = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	testWeekS  = "2026-10-12"
	aliceActor = timelog.Actor{ID: "res-alice"}
	bobActor   = timelog.Actor{ID: "res-bob"}
	adminActor = timelog.Actor{ID: "res-admin", Admin: true}
)
