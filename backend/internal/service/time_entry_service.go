package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"resource-planner/backend/internal/dto"
	"resource-planner/backend/internal/model"
	"resource-planner/backend/internal/repository"
	"resource-planner/backend/internal/timelog"
	pkgerrors "resource-planner/backend/pkg/errors"
)

// ── 工时条目模块业务错误 ──

var (
	ErrTimeEntryNotFound  = errors.New("工时条目不存在")
	ErrTimeEntryExists    = errors.New("该分配本周已有工时条目，请使用更新接口")
	ErrAllocationNotFound = errors.New("资源分配不存在")
	ErrAllocationMismatch = errors.New("该分配不属于此资源")
)

// TimeEntryService 工时条目业务接口
type TimeEntryService interface {
	ListByWeek(ctx context.Context, actor timelog.Actor, resourceID, weekStart string) ([]dto.TimeEntryResponse, error)
	Create(ctx context.Context, actor timelog.Actor, req *dto.CreateTimeEntryRequest) (*dto.TimeEntryResponse, error)
	Update(ctx context.Context, actor timelog.Actor, id string, req *dto.UpdateTimeEntryRequest) (*dto.TimeEntryResponse, error)
}

type timeEntryService struct {
	repo   *repository.Repository
	guard  *weekGuard
	logger *zap.Logger
}

// NewTimeEntryService 创建 TimeEntryService 实例；locker 可为 nil
func NewTimeEntryService(repo *repository.Repository, locker WeekLocker, lockTTL time.Duration, logger *zap.Logger) TimeEntryService {
	return &timeEntryService{
		repo:   repo,
		guard:  &weekGuard{locker: locker, ttl: lockTTL, logger: logger},
		logger: logger,
	}
}

// ────────────────────── ListByWeek ──────────────────────

func (s *timeEntryService) ListByWeek(ctx context.Context, actor timelog.Actor, resourceID, weekStart string) ([]dto.TimeEntryResponse, error) {
	week, err := timelog.ParseWeekStart(weekStart)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, resourceID); err != nil {
		return nil, err
	}

	entries, err := s.repo.TimeEntry.ListByResourceAndWeek(ctx, resourceID, week)
	if err != nil {
		s.logger.Error("查询周工时失败", zap.String("resource_id", resourceID), zap.String("week", weekStart), zap.Error(err))
		return nil, err
	}

	list := make([]dto.TimeEntryResponse, 0, len(entries))
	for i := range entries {
		list = append(list, *toTimeEntryResponse(&entries[i]))
	}
	return list, nil
}

// ────────────────────── Create ──────────────────────

func (s *timeEntryService) Create(ctx context.Context, actor timelog.Actor, req *dto.CreateTimeEntryRequest) (*dto.TimeEntryResponse, error) {
	week, err := timelog.ParseWeekStart(req.WeekStartDate)
	if err != nil {
		return nil, err
	}
	hours, err := req.WeekHours()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHours, err)
	}
	if err := authorize(actor, req.ResourceID); err != nil {
		return nil, err
	}

	alloc, err := s.repo.Allocation.GetByID(ctx, req.AllocationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAllocationNotFound
		}
		s.logger.Error("查询资源分配失败", zap.String("allocation_id", req.AllocationID), zap.Error(err))
		return nil, err
	}
	if alloc.ResourceID != req.ResourceID {
		return nil, ErrAllocationMismatch
	}

	entry := &model.TimeEntry{
		ResourceID:    req.ResourceID,
		AllocationID:  req.AllocationID,
		WeekStartDate: week,
		Notes:         req.Notes,
	}
	entry.SetHours(hours)
	entry.CreatedBy = &actor.ID
	entry.UpdatedBy = &actor.ID

	err = s.guard.run(ctx, entryLockKey(req.AllocationID, week), func() error {
		return s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
			if err := openWeekForWrite(ctx, txRepo, req.ResourceID, week); err != nil {
				return err
			}

			_, err := txRepo.TimeEntry.GetByAllocationAndWeek(ctx, req.AllocationID, week)
			switch {
			case err == nil:
				return ErrTimeEntryExists
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}

			if err := txRepo.TimeEntry.Create(ctx, entry); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrTimeEntryExists
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("创建工时条目失败",
				zap.String("resource_id", req.ResourceID),
				zap.String("allocation_id", req.AllocationID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	entry.Allocation = alloc
	if entry.Version == 0 {
		entry.Version = 1
	}
	return toTimeEntryResponse(entry), nil
}

// ────────────────────── Update ──────────────────────

func (s *timeEntryService) Update(ctx context.Context, actor timelog.Actor, id string, req *dto.UpdateTimeEntryRequest) (*dto.TimeEntryResponse, error) {
	hours, err := req.WeekHours()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHours, err)
	}

	entry, err := s.repo.TimeEntry.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimeEntryNotFound
		}
		s.logger.Error("查询工时条目失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if err := authorize(actor, entry.ResourceID); err != nil {
		return nil, err
	}

	// 携带版本号时做冲突检测；不携带则以当前版本写入（后写覆盖）
	if req.Version != nil && *req.Version != entry.Version {
		return nil, pkgerrors.ErrOptimisticLock
	}

	err = s.guard.run(ctx, entryLockKey(entry.AllocationID, entry.WeekStartDate), func() error {
		return s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
			if err := openWeekForWrite(ctx, txRepo, entry.ResourceID, entry.WeekStartDate); err != nil {
				return err
			}

			entry.SetHours(hours)
			if req.Notes != nil {
				entry.Notes = *req.Notes
			}
			entry.UpdatedBy = &actor.ID
			return txRepo.TimeEntry.Update(ctx, entry)
		})
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("更新工时条目失败", zap.String("id", id), zap.Error(err))
		}
		return nil, err
	}

	return toTimeEntryResponse(entry), nil
}

// isBusinessError 预期内的业务错误不记 Error 日志
func isBusinessError(err error) bool {
	for _, target := range []error{
		timelog.ErrWeekSubmitted,
		timelog.ErrWeekNotSubmitted,
		timelog.ErrNotOwner,
		timelog.ErrAdminRequired,
		ErrTimeEntryExists,
		pkgerrors.ErrOptimisticLock,
		pkgerrors.ErrLockNotAcquired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	var refused *timelog.SubmissionRefusedError
	return errors.As(err, &refused)
}
