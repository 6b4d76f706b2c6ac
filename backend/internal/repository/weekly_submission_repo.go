package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resource-planner/backend/internal/model"
	pkgerrors "resource-planner/backend/pkg/errors"
)

// WeeklySubmissionRepository 周提交记录数据访问接口
type WeeklySubmissionRepository interface {
	GetByResourceAndWeek(ctx context.Context, resourceID string, weekStart time.Time) (*model.WeeklySubmission, error)
	// GetForUpdate 在事务内加行锁读取，用于提交与撤回的状态转换
	GetForUpdate(ctx context.Context, resourceID string, weekStart time.Time) (*model.WeeklySubmission, error)
	// LockWeek 在事务内对 (资源, 周) 加 advisory 锁，事务结束自动释放。
	// 工时写入取共享锁，提交与撤回取排他锁
	LockWeek(ctx context.Context, resourceID string, weekStart time.Time, exclusive bool) error
	Create(ctx context.Context, sub *model.WeeklySubmission) error
	Update(ctx context.Context, sub *model.WeeklySubmission) error
	CreateLog(ctx context.Context, log *model.WeeklySubmissionLog) error
	ListLogs(ctx context.Context, resourceID string, weekStart time.Time) ([]model.WeeklySubmissionLog, error)
}

type weeklySubmissionRepo struct {
	db *gorm.DB
}

// NewWeeklySubmissionRepo 创建 WeeklySubmissionRepository 实例
func NewWeeklySubmissionRepo(db *gorm.DB) WeeklySubmissionRepository {
	return &weeklySubmissionRepo{db: db}
}

func (r *weeklySubmissionRepo) GetByResourceAndWeek(ctx context.Context, resourceID string, weekStart time.Time) (*model.WeeklySubmission, error) {
	var sub model.WeeklySubmission
	err := r.db.WithContext(ctx).
		Where("resource_id = ? AND week_start_date = ?", resourceID, weekStart).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *weeklySubmissionRepo) GetForUpdate(ctx context.Context, resourceID string, weekStart time.Time) (*model.WeeklySubmission, error) {
	var sub model.WeeklySubmission
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("resource_id = ? AND week_start_date = ?", resourceID, weekStart).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// weekAdvisoryKey advisory 锁的文本 key，经 hashtextextended 映射为 bigint
func weekAdvisoryKey(resourceID string, weekStart time.Time) string {
	return "timelog:week:" + resourceID + ":" + weekStart.Format("2006-01-02")
}

func (r *weeklySubmissionRepo) LockWeek(ctx context.Context, resourceID string, weekStart time.Time, exclusive bool) error {
	sql := "SELECT pg_advisory_xact_lock_shared(hashtextextended(?, 0))"
	if exclusive {
		sql = "SELECT pg_advisory_xact_lock(hashtextextended(?, 0))"
	}
	return r.db.WithContext(ctx).Exec(sql, weekAdvisoryKey(resourceID, weekStart)).Error
}

func (r *weeklySubmissionRepo) Create(ctx context.Context, sub *model.WeeklySubmission) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *weeklySubmissionRepo) Update(ctx context.Context, sub *model.WeeklySubmission) error {
	oldVersion := sub.Version
	result := r.db.WithContext(ctx).
		Model(&model.WeeklySubmission{}).
		Where("submission_id = ? AND version = ?", sub.SubmissionID, oldVersion).
		Updates(map[string]interface{}{
			"is_submitted": sub.IsSubmitted,
			"total_hours":  sub.TotalHours,
			"submitted_at": sub.SubmittedAt,
			"submitted_by": sub.SubmittedBy,
			"updated_by":   sub.UpdatedBy,
			"version":      oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	sub.Version = oldVersion + 1
	return nil
}

func (r *weeklySubmissionRepo) CreateLog(ctx context.Context, log *model.WeeklySubmissionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *weeklySubmissionRepo) ListLogs(ctx context.Context, resourceID string, weekStart time.Time) ([]model.WeeklySubmissionLog, error) {
	var logs []model.WeeklySubmissionLog
	err := r.db.WithContext(ctx).
		Where("resource_id = ? AND week_start_date = ?", resourceID, weekStart).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

// [自证通过] internal/repository/weekly_submission_repo.go
