package timelog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrLedgerClosed      = errors.New("已离开页面，不再接受新的修改")
	ErrUnknownAllocation = errors.New("该分配不属于本周")
	ErrUnsavedChanges    = errors.New("存在未保存或保存失败的修改")
)

// DefaultSavedStateTTL "已保存"状态默认展示时长
const DefaultSavedStateTTL = 3 * time.Second

// CellKey 单元格键，字符串形式为 "{allocationId}-{day}"
type CellKey struct {
	AllocationID string
	Day          Day
}

func (k CellKey) String() string {
	return k.AllocationID + "-" + k.Day.Key()
}

// PendingChange 尚未保存的单元格修改，只存在于内存
type PendingChange struct {
	OldValue   decimal.Decimal // 最近一次确认的服务端值
	NewValue   decimal.Decimal
	ResourceID string
	WeekKey    string
}

// CellStatus 单元格保存状态
type CellStatus string

const (
	CellIdle    CellStatus = ""
	CellPending CellStatus = "pending"
	CellSaving  CellStatus = "saving"
	CellSaved   CellStatus = "saved"
	CellFailed  CellStatus = "failed"
)

// CellState 单元格状态；Reason 仅在 failed 时有值
type CellState struct {
	Status CellStatus
	Reason string
}

// SaveError 单个单元格的保存失败
type SaveError struct {
	Key CellKey
	Err error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("保存 %s 失败: %v", e.Key, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// SaveReport 一次批量保存的结果
type SaveReport struct {
	Saved  []CellKey
	Failed []*SaveError
}

// OK 是否全部成功
func (r *SaveReport) OK() bool { return len(r.Failed) == 0 }

// Err 合并所有失败；全部成功时为 nil
func (r *SaveReport) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// LedgerOptions Ledger 配置
type LedgerOptions struct {
	// SavedStateTTL "已保存"状态自动清除的时长；<=0 表示不自动清除
	SavedStateTTL time.Duration
	Logger        *zap.Logger
}

// Ledger 待保存变更账本。
//
// 记录每个单元格的待保存、保存中、已保存、失败状态，并协调显式的批量保存：
//   - 不同分配（不同 TimeEntry）的保存并行执行；
//   - 同一分配的保存按发起顺序串行，后一次在前一次完成后才开始；
//   - 失败只在用户显式重试时重新保存，不会自动循环重试。
type Ledger struct {
	store      Store
	resourceID string
	weekStart  time.Time
	weekKey    string
	savedTTL   time.Duration
	logger     *zap.Logger

	mu          sync.Mutex
	allocations []PlannedAllocation
	known       map[string]bool
	server      map[string]EntrySnapshot // 最近确认的服务端状态，DiscardAll 以此回退
	working     Entries                  // 当前可见值
	pending     map[CellKey]PendingChange
	failed      map[CellKey]PendingChange
	cells       map[CellKey]CellState
	cellGen     map[CellKey]uint64
	chains      map[string]chan struct{} // 每个分配最后一次保存的完成信号
	locked      bool
	closed      bool
	inflight    sync.WaitGroup
	inflightN   int
}

// NewLedger 基于服务端快照创建账本
func NewLedger(store Store, snap *WeekSnapshot, opts LedgerOptions) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		store:      store,
		resourceID: snap.ResourceID,
		weekStart:  snap.WeekStart,
		weekKey:    FormatWeek(snap.WeekStart),
		savedTTL:   opts.SavedStateTTL,
		logger:     logger.With(zap.String("resource_id", snap.ResourceID), zap.String("week", FormatWeek(snap.WeekStart))),
		pending:    make(map[CellKey]PendingChange),
		failed:     make(map[CellKey]PendingChange),
		cells:      make(map[CellKey]CellState),
		cellGen:    make(map[CellKey]uint64),
		chains:     make(map[string]chan struct{}),
	}
	l.resetLocked(snap)
	return l
}

// resetLocked 用快照覆盖服务端状态，并在其上叠加仍未保存的修改
func (l *Ledger) resetLocked(snap *WeekSnapshot) {
	l.allocations = append([]PlannedAllocation(nil), snap.Allocations...)
	l.known = make(map[string]bool, len(snap.Allocations)+len(snap.Entries))
	l.server = make(map[string]EntrySnapshot, len(snap.Entries))
	for _, a := range snap.Allocations {
		l.known[a.AllocationID] = true
	}
	for id, e := range snap.Entries {
		e.AllocationID = id
		l.server[id] = e
		l.known[id] = true
	}
	l.working = snap.Hours()
	for key, p := range l.pending {
		l.setWorkingLocked(key, p.NewValue)
	}
	for key, p := range l.failed {
		l.setWorkingLocked(key, p.NewValue)
	}
	l.locked = snap.IsSubmitted()
}

func (l *Ledger) setWorkingLocked(key CellKey, v decimal.Decimal) {
	w := l.working[key.AllocationID]
	w[key.Day] = v
	l.working[key.AllocationID] = w
}

func (l *Ledger) serverValueLocked(key CellKey) decimal.Decimal {
	return l.server[key.AllocationID].Hours[key.Day]
}

// ── 编辑 ──

// AddPendingChange 记录一次单元格修改。
// 新值与当前可见值相同时不产生待保存记录（幂等）；改回服务端值时撤销待保存记录。
// 周已提交时为空操作并返回 ErrWeekSubmitted。
func (l *Ledger) AddPendingChange(key CellKey, change PendingChange) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.closed:
		return false, ErrLedgerClosed
	case l.locked:
		return false, ErrWeekSubmitted
	case !key.Day.Valid():
		return false, ErrInvalidDay
	case !l.known[key.AllocationID]:
		return false, fmt.Errorf("%w: %s", ErrUnknownAllocation, key.AllocationID)
	}

	if change.NewValue.Equal(l.working[key.AllocationID][key.Day]) {
		return false, nil
	}
	l.setWorkingLocked(key, change.NewValue)

	serverValue := l.serverValueLocked(key)
	_, saving := l.chains[key.AllocationID]
	delete(l.failed, key)
	if change.NewValue.Equal(serverValue) && !saving {
		delete(l.pending, key)
		l.setCellLocked(key, CellState{})
		return true, nil
	}

	l.pending[key] = PendingChange{
		OldValue:   serverValue,
		NewValue:   change.NewValue,
		ResourceID: l.resourceID,
		WeekKey:    l.weekKey,
	}
	l.setCellLocked(key, CellState{Status: CellPending})
	return true, nil
}

// Commit 规范化原始输入后记录修改
func (l *Ledger) Commit(allocationID string, day Day, raw string) (bool, error) {
	return l.AddPendingChange(CellKey{AllocationID: allocationID, Day: day}, PendingChange{NewValue: CommitHours(raw)})
}

// Apply 接收 HourCell 的变更事件
func (l *Ledger) Apply(change CellChange) error {
	_, err := l.AddPendingChange(CellKey{AllocationID: change.AllocationID, Day: change.Day}, PendingChange{
		OldValue: change.OldValue,
		NewValue: change.NewValue,
	})
	return err
}

// ── 批量保存 ──

type saveBatch struct {
	allocationID string
	keys         []CellKey
	changes      map[CellKey]PendingChange
	hours        WeekHours
	prev         <-chan struct{}
	done         chan struct{}
}

// SaveAll 保存全部待保存修改：每个分配整行写入一次，不同分配并行。
// 返回的报告区分成功与失败的单元格；失败的单元格保持失败状态直到重试或放弃。
func (l *Ledger) SaveAll(ctx context.Context) (*SaveReport, error) {
	batches, err := l.takePending()
	if err != nil {
		return nil, err
	}

	report := &SaveReport{}
	if len(batches) == 0 {
		return report, nil
	}

	results := make([]SaveReport, len(batches))
	var g errgroup.Group
	for i, b := range batches {
		g.Go(func() error {
			results[i] = l.runBatch(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		report.Saved = append(report.Saved, r.Saved...)
		report.Failed = append(report.Failed, r.Failed...)
	}
	sortKeys(report.Saved)
	sort.Slice(report.Failed, func(i, j int) bool { return keyLess(report.Failed[i].Key, report.Failed[j].Key) })
	return report, nil
}

// Flush 保存全部待保存修改，并等待之前发出、尚未完成的保存全部落地。
// 返回的报告只包含本次发出的保存；更早批次的失败体现在 FailedCells 中。
func (l *Ledger) Flush(ctx context.Context) (*SaveReport, error) {
	report, err := l.SaveAll(ctx)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	tails := make([]<-chan struct{}, 0, len(l.chains))
	for _, ch := range l.chains {
		tails = append(tails, ch)
	}
	l.mu.Unlock()

	for _, ch := range tails {
		select {
		case <-ch:
		case <-ctx.Done():
			return report, ctx.Err()
		}
	}
	return report, nil
}

// lockForSubmit 没有待保存、失败或保存中的修改时锁定账本，否则返回 ErrUnsavedChanges。
// 检查与锁定在同一把锁内完成，之后的编辑与保存都会被拒绝。
func (l *Ledger) lockForSubmit() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.closed:
		return ErrLedgerClosed
	case l.locked:
		return ErrWeekSubmitted
	case len(l.pending)+len(l.failed) > 0 || len(l.chains) > 0:
		return ErrUnsavedChanges
	}
	l.locked = true
	return nil
}

// takePending 取出全部待保存记录并在同一把锁内链接到各分配的串行队列
func (l *Ledger) takePending() ([]*saveBatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLedgerClosed
	}
	if l.locked {
		return nil, ErrWeekSubmitted
	}

	byAlloc := make(map[string]*saveBatch)
	for key, p := range l.pending {
		b, ok := byAlloc[key.AllocationID]
		if !ok {
			b = &saveBatch{
				allocationID: key.AllocationID,
				changes:      make(map[CellKey]PendingChange),
				hours:        l.working[key.AllocationID],
			}
			byAlloc[key.AllocationID] = b
		}
		b.keys = append(b.keys, key)
		b.changes[key] = p
		l.setCellLocked(key, CellState{Status: CellSaving})
	}
	l.pending = make(map[CellKey]PendingChange)

	batches := make([]*saveBatch, 0, len(byAlloc))
	for _, b := range byAlloc {
		sortKeys(b.keys)
		b.prev = l.chains[b.allocationID]
		b.done = make(chan struct{})
		l.chains[b.allocationID] = b.done
		l.inflight.Add(1)
		l.inflightN++
		batches = append(batches, b)
	}
	sort.Slice(batches, func(i, j int) bool { return batches[i].allocationID < batches[j].allocationID })
	return batches, nil
}

func (l *Ledger) runBatch(ctx context.Context, b *saveBatch) SaveReport {
	defer l.finishBatch(b)

	if b.prev != nil {
		select {
		case <-b.prev:
		case <-ctx.Done():
			return l.failBatch(b, ctx.Err())
		}
	}
	if err := ctx.Err(); err != nil {
		return l.failBatch(b, err)
	}

	// 版本号与条目 ID 在执行时读取：前一次保存可能刚创建了条目
	l.mu.Lock()
	srv := l.server[b.allocationID]
	l.mu.Unlock()

	in := EntryWrite{
		ResourceID:   l.resourceID,
		AllocationID: b.allocationID,
		WeekStart:    l.weekStart,
		Hours:        b.hours,
		Notes:        srv.Notes,
		Version:      srv.Version,
	}

	var (
		entry *EntrySnapshot
		err   error
	)
	if srv.EntryID == "" {
		entry, err = l.store.CreateTimeEntry(ctx, in)
	} else {
		entry, err = l.store.UpdateTimeEntry(ctx, srv.EntryID, in)
	}
	if err != nil {
		return l.failBatch(b, err)
	}
	return l.succeedBatch(b, entry)
}

func (l *Ledger) succeedBatch(b *saveBatch, entry *EntrySnapshot) SaveReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := *entry
	e.AllocationID = b.allocationID
	l.server[b.allocationID] = e

	for _, key := range b.keys {
		if _, again := l.pending[key]; again {
			continue // 保存期间又被修改，保持 pending
		}
		l.setWorkingLocked(key, e.Hours[key.Day])
		l.setCellLocked(key, CellState{Status: CellSaved})
	}
	// 较早失败的同分配单元格若已被本次整行写入覆盖，则视为已保存
	for key, f := range l.failed {
		if key.AllocationID == b.allocationID && f.NewValue.Equal(e.Hours[key.Day]) {
			delete(l.failed, key)
			l.setCellLocked(key, CellState{Status: CellSaved})
		}
	}

	l.logger.Debug("时间条目已保存", zap.String("allocation_id", b.allocationID), zap.Int("cells", len(b.keys)))
	return SaveReport{Saved: append([]CellKey(nil), b.keys...)}
}

func (l *Ledger) failBatch(b *saveBatch, err error) SaveReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	var r SaveReport
	for _, key := range b.keys {
		if _, again := l.pending[key]; again {
			continue
		}
		l.failed[key] = b.changes[key]
		l.setCellLocked(key, CellState{Status: CellFailed, Reason: err.Error()})
		r.Failed = append(r.Failed, &SaveError{Key: key, Err: err})
	}

	l.logger.Warn("时间条目保存失败", zap.String("allocation_id", b.allocationID), zap.Error(err))
	return r
}

func (l *Ledger) finishBatch(b *saveBatch) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.chains[b.allocationID] == b.done {
		delete(l.chains, b.allocationID)
	}
	close(b.done)
	l.inflightN--
	l.inflight.Done()
}

// RetryFailedSaves 把失败的单元格重新放回待保存并保存。
// 账本已关闭或已锁定时失败状态与原因保持不变。
func (l *Ledger) RetryFailedSaves(ctx context.Context) (*SaveReport, error) {
	l.mu.Lock()
	switch {
	case l.closed:
		l.mu.Unlock()
		return nil, ErrLedgerClosed
	case l.locked:
		l.mu.Unlock()
		return nil, ErrWeekSubmitted
	}
	for key, f := range l.failed {
		f.NewValue = l.working[key.AllocationID][key.Day]
		l.pending[key] = f
		l.setCellLocked(key, CellState{Status: CellPending})
	}
	l.failed = make(map[CellKey]PendingChange)
	l.mu.Unlock()

	return l.SaveAll(ctx)
}

// DiscardAll 清空待保存与失败记录，可见值回退到最近确认的服务端状态。
// 返回被回退的单元格。保存中的请求不受影响。
func (l *Ledger) DiscardAll() []CellKey {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]CellKey, 0, len(l.pending)+len(l.failed))
	for key := range l.pending {
		keys = append(keys, key)
	}
	for key := range l.failed {
		keys = append(keys, key)
	}
	for _, key := range keys {
		l.setWorkingLocked(key, l.serverValueLocked(key))
		l.setCellLocked(key, CellState{})
	}
	l.pending = make(map[CellKey]PendingChange)
	l.failed = make(map[CellKey]PendingChange)

	sortKeys(keys)
	return keys
}

// Refresh 重新拉取服务端状态；未保存的修改继续叠加在新状态之上
func (l *Ledger) Refresh(ctx context.Context) (*WeekSnapshot, error) {
	snap, err := l.store.LoadWeek(ctx, l.resourceID, l.weekStart)
	if err != nil {
		return nil, fmt.Errorf("刷新周数据失败: %w", err)
	}

	l.mu.Lock()
	l.resetLocked(snap)
	l.mu.Unlock()
	return snap, nil
}

// ── 生命周期 ──

// SetLocked 周提交后锁定，撤回后解锁
func (l *Ledger) SetLocked(locked bool) {
	l.mu.Lock()
	l.locked = locked
	l.mu.Unlock()
}

// Locked 是否锁定
func (l *Ledger) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// Close 离开页面：不再接受新的修改与保存，已发出的保存继续完成
func (l *Ledger) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// Wait 等待所有已发出的保存完成。应在 Close 之后调用。
func (l *Ledger) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ── 查询 ──

// HasUnsavedChanges 是否存在待保存或保存失败的修改
func (l *Ledger) HasUnsavedChanges() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)+len(l.failed) > 0
}

// InFlight 正在进行的保存批次数
func (l *Ledger) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflightN
}

// Value 单元格当前可见值
func (l *Ledger) Value(key CellKey) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.working[key.AllocationID][key.Day]
}

// Values 当前可见的整周工时（副本），供校验函数使用
func (l *Ledger) Values() Entries {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.working.Clone()
}

// Allocations 本周的计划分配
func (l *Ledger) Allocations() []PlannedAllocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]PlannedAllocation(nil), l.allocations...)
}

// Pending 待保存记录副本
func (l *Ledger) Pending() map[CellKey]PendingChange {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[CellKey]PendingChange, len(l.pending))
	for k, v := range l.pending {
		out[k] = v
	}
	return out
}

// UnsavedCells 待保存与失败的单元格
func (l *Ledger) UnsavedCells() []CellKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]CellKey, 0, len(l.pending)+len(l.failed))
	for k := range l.pending {
		keys = append(keys, k)
	}
	for k := range l.failed {
		keys = append(keys, k)
	}
	sortKeys(keys)
	return keys
}

// CellState 单元格状态
func (l *Ledger) CellState(key CellKey) CellState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cells[key]
}

// SavingCells 保存中的单元格
func (l *Ledger) SavingCells() []CellKey { return l.cellsWith(CellSaving) }

// SavedCells 刚保存成功的单元格（到期自动清除）
func (l *Ledger) SavedCells() []CellKey { return l.cellsWith(CellSaved) }

// FailedCells 保存失败的单元格及原因
func (l *Ledger) FailedCells() map[CellKey]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[CellKey]string)
	for k, st := range l.cells {
		if st.Status == CellFailed {
			out[k] = st.Reason
		}
	}
	return out
}

func (l *Ledger) cellsWith(status CellStatus) []CellKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	keys := make([]CellKey, 0)
	for k, st := range l.cells {
		if st.Status == status {
			keys = append(keys, k)
		}
	}
	sortKeys(keys)
	return keys
}

// setCellLocked 更新单元格状态；saved 状态在 savedTTL 后自动清除，
// 期间若状态再次变化则由代数（generation）判断跳过清除
func (l *Ledger) setCellLocked(key CellKey, st CellState) {
	l.cellGen[key]++
	if st.Status == CellIdle {
		delete(l.cells, key)
	} else {
		l.cells[key] = st
	}

	if st.Status != CellSaved || l.savedTTL <= 0 {
		return
	}
	gen := l.cellGen[key]
	time.AfterFunc(l.savedTTL, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.cellGen[key] == gen {
			delete(l.cells, key)
		}
	})
}

func keyLess(a, b CellKey) bool {
	if a.AllocationID != b.AllocationID {
		return a.AllocationID < b.AllocationID
	}
	return a.Day < b.Day
}

func sortKeys(keys []CellKey) {
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })
}
