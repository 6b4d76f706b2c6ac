package timelog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var errStoreDown = errors.New("store unavailable")

var testWeek = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC) // 周一

// storeCall 记录一次写调用
type storeCall struct {
	Op           string // create | update | submit | unsubmit
	AllocationID string
	EntryID      string
	Hours        WeekHours
	Version      int
}

// fakeStore 内存实现的 Store：可按分配注入失败或阻塞
type fakeStore struct {
	mu         sync.Mutex
	snap       *WeekSnapshot
	calls      []storeCall
	failAlloc  map[string]error
	gates      map[string]chan struct{} // 非 nil 时写调用等待该通道关闭
	started    chan string              // 每次写调用开始时发送分配 ID（可选）
	seq        int
	submitErr  error
	submission *SubmissionSnapshot
}

func newFakeStore(allocs ...PlannedAllocation) *fakeStore {
	return &fakeStore{
		snap: &WeekSnapshot{
			ResourceID:  "res-1",
			WeekStart:   testWeek,
			Allocations: allocs,
			Entries:     map[string]EntrySnapshot{},
		},
		failAlloc: map[string]error{},
		gates:     map[string]chan struct{}{},
	}
}

func alloc(id string, planned int64) PlannedAllocation {
	return PlannedAllocation{AllocationID: id, ProjectID: "prj-" + id, ProjectName: "Project " + id, AllocatedHours: decimal.NewFromInt(planned), Status: "active"}
}

func hrs(vals ...float64) WeekHours {
	var w WeekHours
	for i, v := range vals {
		w[i] = decimal.NewFromFloat(v)
	}
	return w
}

func (f *fakeStore) seed(allocationID string, h WeekHours) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.snap.Entries[allocationID] = EntrySnapshot{
		EntryID:      fmt.Sprintf("entry-%d", f.seq),
		AllocationID: allocationID,
		Hours:        h,
		Version:      1,
	}
}

func (f *fakeStore) LoadWeek(_ context.Context, _ string, _ time.Time) (*WeekSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.snap
	cp.Entries = make(map[string]EntrySnapshot, len(f.snap.Entries))
	for k, v := range f.snap.Entries {
		cp.Entries[k] = v
	}
	if f.submission != nil {
		s := *f.submission
		cp.Submission = &s
	}
	return &cp, nil
}

func (f *fakeStore) write(ctx context.Context, op, entryID string, in EntryWrite) (*EntrySnapshot, error) {
	if f.started != nil {
		f.started <- in.AllocationID
	}
	f.mu.Lock()
	gate := f.gates[in.AllocationID]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{Op: op, AllocationID: in.AllocationID, EntryID: entryID, Hours: in.Hours, Version: in.Version})
	if err := f.failAlloc[in.AllocationID]; err != nil {
		return nil, err
	}

	e := f.snap.Entries[in.AllocationID]
	if op == "create" {
		f.seq++
		e = EntrySnapshot{EntryID: fmt.Sprintf("entry-%d", f.seq), AllocationID: in.AllocationID}
	}
	e.Hours = in.Hours
	e.Notes = in.Notes
	e.Version++
	f.snap.Entries[in.AllocationID] = e
	out := e
	return &out, nil
}

func (f *fakeStore) CreateTimeEntry(ctx context.Context, in EntryWrite) (*EntrySnapshot, error) {
	return f.write(ctx, "create", "", in)
}

func (f *fakeStore) UpdateTimeEntry(ctx context.Context, entryID string, in EntryWrite) (*EntrySnapshot, error) {
	return f.write(ctx, "update", entryID, in)
}

func (f *fakeStore) SubmitWeek(_ context.Context, _ string, _ time.Time) (*SubmissionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{Op: "submit"})
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	now := time.Now()
	total := decimal.Zero
	for _, e := range f.snap.Entries {
		total = total.Add(e.Hours.Total())
	}
	f.submission = &SubmissionSnapshot{IsSubmitted: true, TotalHours: total, SubmittedAt: &now}
	s := *f.submission
	return &s, nil
}

func (f *fakeStore) UnsubmitWeek(_ context.Context, _ string, _ time.Time) (*SubmissionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{Op: "unsubmit"})
	if f.submission == nil {
		return nil, ErrWeekNotSubmitted
	}
	f.submission.IsSubmitted = false
	s := *f.submission
	return &s, nil
}

func (f *fakeStore) callsSnapshot() []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storeCall(nil), f.calls...)
}

func (f *fakeStore) writeCalls() []storeCall {
	out := make([]storeCall, 0)
	for _, c := range f.callsSnapshot() {
		if c.Op == "create" || c.Op == "update" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeStore) setGate(allocationID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[allocationID] = ch
	return ch
}

func (f *fakeStore) setFail(allocationID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failAlloc, allocationID)
		return
	}
	f.failAlloc[allocationID] = err
}

func newTestLedger(t *testing.T, store *fakeStore, ttl time.Duration) *Ledger {
	t.Helper()
	snap, err := store.LoadWeek(context.Background(), "res-1", testWeek)
	if err != nil {
		t.Fatalf("LoadWeek 失败: %v", err)
	}
	return NewLedger(store, snap, LedgerOptions{SavedStateTTL: ttl})
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
