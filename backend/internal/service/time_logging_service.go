package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"resource-planner/backend/internal/dto"
	"resource-planner/backend/internal/model"
	"resource-planner/backend/internal/repository"
	"resource-planner/backend/internal/timelog"
)

// ── 周提交模块业务错误 ──

var ErrSubmissionNotFound = errors.New("该周尚无提交记录")

// TimeLoggingService 周视图与提交/撤回业务接口。
// 提交与撤回在服务端重新校验，不信任客户端的禁用状态。
type TimeLoggingService interface {
	GetSubmission(ctx context.Context, actor timelog.Actor, resourceID, weekStart string) (*dto.WeeklySubmissionResponse, error)
	GetWeekOverview(ctx context.Context, actor timelog.Actor, resourceID, weekStart string) (*dto.WeekOverviewResponse, error)
	Submit(ctx context.Context, actor timelog.Actor, resourceID, weekStart string) (*dto.WeeklySubmissionResponse, error)
	Unsubmit(ctx context.Context, actor timelog.Actor, resourceID, weekStart string) (*dto.WeeklySubmissionResponse, error)
}

type timeLoggingService struct {
	repo   *repository.Repository
	guard  *weekGuard
	logger *zap.Logger
	now    func() time.Time
}

// NewTimeLoggingService 创建 TimeLoggingService 实例；locker 可为 nil
func NewTimeLoggingService(repo *repository.Repository, locker WeekLocker, lockTTL time.Duration, logger *zap.Logger) TimeLoggingService {
	return &timeLoggingService{
		repo:   repo,
		guard:  &weekGuard{locker: locker, ttl: lockTTL, logger: logger},
		logger: logger,
		now:    time.Now,
	}
}

func (s *timeLoggingService) prepare(actor timelog.Actor, resourceID, weekStart string) (time.Time, error) {
	week, err := timelog.ParseWeekStart(weekStart)
	if err != nil {
		return time.Time{}, err
	}
	if err := authorize(actor, resourceID); err != nil {
		return time.Time{}, err
	}
	return week, nil
}

// ────────────────────── GetSubmission ──────────────────────

func (s *timeLoggingService) GetSubmission(ctx context.Context, actor timelog.Actor, resourceID, weekStart string) (*dto.WeeklySubmissionResponse, error) {
	week, err := s.prepare(actor, resourceID, weekStart)
	if err != nil {
		return nil, err
	}

	sub, err := s.repo.WeeklySubmission.GetByResourceAndWeek(ctx, resourceID, week)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		s.logger.Error("查询周提交记录失败", zap.String("resource_id", resourceID), zap.String("week", weekStart), zap.Error(err))
		return nil, err
	}
	return toSubmissionResponse(sub), nil
}

// ────────────────────── GetWeekOverview ──────────────────────

func (s *timeLoggingService) GetWeekOverview(ctx context.Context, actor timelog.Actor, resourceID, weekStart string) (*dto.WeekOverviewResponse, error) {
	week, err := s.prepare(actor, resourceID, weekStart)
	if err != nil {
		return nil, err
	}
	if err := ensureResource(ctx, s.repo, resourceID); err != nil {
		return nil, err
	}

	allocs, err := s.repo.Allocation.ListByResource(ctx, resourceID)
	if err != nil {
		s.logger.Error("查询资源分配失败", zap.String("resource_id", resourceID), zap.Error(err))
		return nil, err
	}
	entries, err := s.repo.TimeEntry.ListByResourceAndWeek(ctx, resourceID, week)
	if err != nil {
		s.logger.Error("查询周工时失败", zap.String("resource_id", resourceID), zap.String("week", weekStart), zap.Error(err))
		return nil, err
	}
	submitted, err := s.isSubmitted(ctx, s.repo, resourceID, week)
	if err != nil {
		return nil, err
	}

	planned := plannedAllocations(allocs)
	overview := timelog.BuildOverview(resourceID, week, submitted, planned, entriesOf(entries))
	return toOverviewResponse(overview, planned, entries), nil
}

func (s *timeLoggingService) isSubmitted(ctx context.Context, repo *repository.Repository, resourceID string, week time.Time) (bool, error) {
	sub, err := repo.WeeklySubmission.GetByResourceAndWeek(ctx, resourceID, week)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		s.logger.Error("查询周提交记录失败", zap.String("resource_id", resourceID), zap.Error(err))
		return false, err
	}
	return sub.IsSubmitted, nil
}

// ────────────────────── Submit ──────────────────────

func (s *timeLoggingService) Submit(ctx context.Context, actor timelog.Actor, resourceID, weekStart string) (*dto.WeeklySubmissionResponse, error) {
	week, err := s.prepare(actor, resourceID, weekStart)
	if err != nil {
		return nil, err
	}
	if err := ensureResource(ctx, s.repo, resourceID); err != nil {
		return nil, err
	}

	var result *model.WeeklySubmission
	err = s.guard.run(ctx, weekLockKey(resourceID, week), func() error {
		return s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
			sub, err := lockSubmission(ctx, txRepo, resourceID, week)
			if err != nil {
				return err
			}

			list, err := txRepo.TimeEntry.ListByResourceAndWeek(ctx, resourceID, week)
			if err != nil {
				return err
			}
			entries := entriesOf(list)

			state := timelog.DeriveWeekState(sub != nil && sub.IsSubmitted, entries)
			if perm := timelog.CanSubmitWeek(actor, resourceID, state); !perm.Allowed {
				return perm.Err
			}

			validation := timelog.ComputeSubmissionValidation(entries)
			if !validation.CanSubmit {
				return &timelog.SubmissionRefusedError{
					Validation: validation,
					Cells:      timelog.OffendingCells(entries, validation, nil),
				}
			}

			now := s.now().UTC()
			if sub == nil {
				sub = &model.WeeklySubmission{ResourceID: resourceID, WeekStartDate: week}
				sub.CreatedBy = &actor.ID
			}
			sub.IsSubmitted = true
			sub.TotalHours = entries.Total()
			sub.SubmittedAt = &now
			sub.SubmittedBy = &actor.ID
			sub.UpdatedBy = &actor.ID

			if err := saveSubmission(ctx, txRepo, sub); err != nil {
				return err
			}
			result = sub
			return txRepo.WeeklySubmission.CreateLog(ctx, &model.WeeklySubmissionLog{
				SubmissionID:  sub.SubmissionID,
				ResourceID:    resourceID,
				WeekStartDate: week,
				Action:        model.SubmissionActionSubmit,
				TotalHours:    sub.TotalHours,
				OperatorID:    actor.ID,
				CreatedAt:     now,
			})
		})
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("提交周工时失败", zap.String("resource_id", resourceID), zap.String("week", weekStart), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("周工时已提交",
		zap.String("resource_id", resourceID),
		zap.String("week", weekStart),
		zap.String("operator", actor.ID),
		zap.String("total_hours", timelog.FormatHours(result.TotalHours)),
	)
	return toSubmissionResponse(result), nil
}

// ────────────────────── Unsubmit ──────────────────────

func (s *timeLoggingService) Unsubmit(ctx context.Context, actor timelog.Actor, resourceID, weekStart string) (*dto.WeeklySubmissionResponse, error) {
	week, err := timelog.ParseWeekStart(weekStart)
	if err != nil {
		return nil, err
	}
	// 撤回仅限管理员，与是否本人无关
	if !actor.Admin {
		return nil, timelog.ErrAdminRequired
	}

	var result *model.WeeklySubmission
	err = s.guard.run(ctx, weekLockKey(resourceID, week), func() error {
		return s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
			sub, err := lockSubmission(ctx, txRepo, resourceID, week)
			if err != nil {
				return err
			}

			state := timelog.StateNotStarted
			if sub != nil && sub.IsSubmitted {
				state = timelog.StateSubmitted
			}
			if perm := timelog.CanReopenWeek(actor, resourceID, state); !perm.Allowed {
				return perm.Err
			}

			sub.IsSubmitted = false
			sub.SubmittedAt = nil
			sub.SubmittedBy = nil
			sub.UpdatedBy = &actor.ID
			if err := txRepo.WeeklySubmission.Update(ctx, sub); err != nil {
				return err
			}
			result = sub
			return txRepo.WeeklySubmission.CreateLog(ctx, &model.WeeklySubmissionLog{
				SubmissionID:  sub.SubmissionID,
				ResourceID:    resourceID,
				WeekStartDate: week,
				Action:        model.SubmissionActionUnsubmit,
				TotalHours:    sub.TotalHours,
				OperatorID:    actor.ID,
				CreatedAt:     s.now().UTC(),
			})
		})
	})
	if err != nil {
		if !isBusinessError(err) {
			s.logger.Error("撤回周提交失败", zap.String("resource_id", resourceID), zap.String("week", weekStart), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("周工时已重新打开",
		zap.String("resource_id", resourceID),
		zap.String("week", weekStart),
		zap.String("operator", actor.ID),
	)
	return toSubmissionResponse(result), nil
}

// lockSubmission 事务内加锁读取提交记录；不存在时返回 nil
func lockSubmission(ctx context.Context, repo *repository.Repository, resourceID string, week time.Time) (*model.WeeklySubmission, error) {
	// 排他锁等待进行中的工时写入事务结束；提交记录尚不存在时行锁锁不住任何东西
	if err := repo.WeeklySubmission.LockWeek(ctx, resourceID, week, true); err != nil {
		return nil, err
	}
	sub, err := repo.WeeklySubmission.GetForUpdate(ctx, resourceID, week)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return sub, nil
}

func saveSubmission(ctx context.Context, repo *repository.Repository, sub *model.WeeklySubmission) error {
	if sub.SubmissionID == "" {
		return repo.WeeklySubmission.Create(ctx, sub)
	}
	return repo.WeeklySubmission.Update(ctx, sub)
}
