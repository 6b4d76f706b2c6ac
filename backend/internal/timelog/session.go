package timelog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrReopenCancelled 管理员在确认步骤中取消了撤回
var ErrReopenCancelled = errors.New("已取消重新打开")

// WeekOverview 一周的派生视图，每次调用都基于最新值重新计算
type WeekOverview struct {
	ResourceID        string
	WeekStart         time.Time
	State             WeekState
	Daily             [DaysPerWeek]DailyValidation
	Submission        SubmissionValidation
	Allocations       []AllocationProgress
	Exceeded          []AllocationProgress
	TotalHours        decimal.Decimal
	HasUnsavedChanges bool
}

// BuildOverview 由工时与计划分配计算周视图
func BuildOverview(resourceID string, weekStart time.Time, isSubmitted bool, allocations []PlannedAllocation, entries Entries) WeekOverview {
	progress := ComputeAllocationStatuses(allocations, entries)
	return WeekOverview{
		ResourceID:  resourceID,
		WeekStart:   weekStart,
		State:       DeriveWeekState(isSubmitted, entries),
		Daily:       ComputeWeekDailyValidations(entries),
		Submission:  ComputeSubmissionValidation(entries),
		Allocations: progress,
		Exceeded:    ExceededAllocations(progress),
		TotalHours:  entries.Total(),
	}
}

// Session 单个资源单个周的填报会话：把账本、校验与提交状态机串起来
type Session struct {
	store  Store
	actor  Actor
	ledger *Ledger
	logger *zap.Logger

	mu    sync.Mutex
	state WeekState
}

// OpenSession 加载周数据并创建会话
func OpenSession(ctx context.Context, store Store, actor Actor, resourceID string, weekStart time.Time, opts LedgerOptions) (*Session, error) {
	snap, err := store.LoadWeek(ctx, resourceID, weekStart)
	if err != nil {
		return nil, fmt.Errorf("加载周数据失败: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ledger := NewLedger(store, snap, opts)
	return &Session{
		store:  store,
		actor:  actor,
		ledger: ledger,
		logger: logger,
		state:  snap.State(),
	}, nil
}

// Ledger 会话使用的账本
func (s *Session) Ledger() *Ledger { return s.ledger }

// Guard 离开页面守卫
func (s *Session) Guard() *NavigationGuard { return NewNavigationGuard(s.ledger) }

// State 当前状态
func (s *Session) State() WeekState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EditPermission 当前操作者能否编辑
func (s *Session) EditPermission() Permission {
	return CanEditWeek(s.actor, s.ledger.resourceID, s.State())
}

// Cell 返回绑定到账本的单元格输入模型；不可编辑时单元格为禁用状态
func (s *Session) Cell(allocationID string, day Day) *HourCell {
	key := CellKey{AllocationID: allocationID, Day: day}
	cell := NewHourCell(allocationID, day, s.ledger.Value(key), func(c CellChange) error {
		_, err := s.commit(CellKey{AllocationID: c.AllocationID, Day: c.Day}, c.NewValue)
		return err
	})
	cell.SetDisabled(!s.EditPermission().Allowed)
	return cell
}

// Edit 提交一个单元格的原始输入
func (s *Session) Edit(allocationID string, day Day, raw string) (bool, error) {
	return s.commit(CellKey{AllocationID: allocationID, Day: day}, CommitHours(raw))
}

func (s *Session) commit(key CellKey, value decimal.Decimal) (bool, error) {
	if perm := s.EditPermission(); !perm.Allowed {
		return false, perm.Err
	}

	changed, err := s.ledger.AddPendingChange(key, PendingChange{NewValue: value})
	if err != nil || !changed {
		return changed, err
	}

	if value.IsPositive() {
		s.mu.Lock()
		if next, err := Transition(s.state, EventCommitHours); err == nil {
			s.state = next
		}
		s.mu.Unlock()
	}
	return true, nil
}

// DailyWarning 按键时的非阻塞提示：用正在输入的值计算当天合计
func (s *Session) DailyWarning(allocationID string, day Day, candidate string) DailyValidation {
	return ComputeDailyValidation(day, allocationID, CommitHours(candidate), s.ledger.Values())
}

// Overview 当前周视图
func (s *Session) Overview() WeekOverview {
	state := s.State()
	o := BuildOverview(s.ledger.resourceID, s.ledger.weekStart, state == StateSubmitted, s.ledger.Allocations(), s.ledger.Values())
	o.State = state
	o.HasUnsavedChanges = s.ledger.HasUnsavedChanges()
	return o
}

// Submit 提交本周：先保存全部修改，再做硬性校验，最后请求服务端转换状态。
// 校验失败返回 *SubmissionRefusedError，其中包含需高亮与聚焦的单元格。
func (s *Session) Submit(ctx context.Context) (*SubmissionSnapshot, error) {
	if perm := CanSubmitWeek(s.actor, s.ledger.resourceID, s.State()); !perm.Allowed {
		return nil, perm.Err
	}

	// Flush 同时等待更早发出的保存，提交请求一定在所有写入之后发出
	report, err := s.ledger.Flush(ctx)
	if err != nil {
		return nil, err
	}
	if !report.OK() || s.ledger.HasUnsavedChanges() {
		return nil, errors.Join(ErrUnsavedChanges, report.Err())
	}

	entries := s.ledger.Values()
	validation := ComputeSubmissionValidation(entries)
	if !validation.CanSubmit {
		order := make([]string, 0)
		for _, a := range s.ledger.Allocations() {
			order = append(order, a.AllocationID)
		}
		return nil, &SubmissionRefusedError{
			Validation: validation,
			Cells:      OffendingCells(entries, validation, order),
		}
	}

	// 校验通过后先锁账本：提交请求发出期间不再接受新的编辑与保存
	if err := s.ledger.lockForSubmit(); err != nil {
		return nil, err
	}
	sub, err := s.store.SubmitWeek(ctx, s.ledger.resourceID, s.ledger.weekStart)
	if err != nil {
		s.ledger.SetLocked(false)
		return nil, fmt.Errorf("提交失败: %w", err)
	}

	s.mu.Lock()
	s.state, _ = Transition(s.state, EventSubmit)
	s.mu.Unlock()

	s.logger.Info("周工时已提交",
		zap.String("resource_id", s.ledger.resourceID),
		zap.String("week", FormatWeek(s.ledger.weekStart)),
		zap.String("total_hours", FormatHours(entries.Total())),
	)
	return sub, nil
}

// Reopen 管理员撤回提交。操作他人的周时调用 confirm 二次确认，confirm 为 nil 视为已确认。
func (s *Session) Reopen(ctx context.Context, confirm func(resourceID string) bool) (*SubmissionSnapshot, error) {
	perm := CanReopenWeek(s.actor, s.ledger.resourceID, s.State())
	if !perm.Allowed {
		return nil, perm.Err
	}
	if perm.NeedsConfirmation && confirm != nil && !confirm(s.ledger.resourceID) {
		return nil, ErrReopenCancelled
	}

	sub, err := s.store.UnsubmitWeek(ctx, s.ledger.resourceID, s.ledger.weekStart)
	if err != nil {
		return nil, fmt.Errorf("撤回提交失败: %w", err)
	}

	s.mu.Lock()
	s.state, _ = Transition(s.state, EventReopen)
	s.mu.Unlock()
	s.ledger.SetLocked(false)

	s.logger.Info("周工时已重新打开",
		zap.String("resource_id", s.ledger.resourceID),
		zap.String("week", FormatWeek(s.ledger.weekStart)),
		zap.String("operator", s.actor.ID),
	)
	return sub, nil
}
