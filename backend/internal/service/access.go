package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"resource-planner/backend/internal/repository"
	"resource-planner/backend/internal/timelog"
	pkgerrors "resource-planner/backend/pkg/errors"
)

// ── 通用业务错误 ──

var (
	ErrResourceNotFound = errors.New("资源不存在")
	ErrInvalidHours     = errors.New("工时字段无效")
)

// WeekLocker Redis 分布式锁，用于快速拒绝同一 key 上的并发写
type WeekLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// weekGuard 按 key 串行化写操作；locker 为 nil 时不加锁。
// 工时写入按 (分配, 周) 加锁，互不阻塞；提交与撤回按 (资源, 周) 加锁。
// 写入与提交之间的互斥由数据库事务内的 advisory 锁保证
type weekGuard struct {
	locker WeekLocker
	ttl    time.Duration
	logger *zap.Logger
}

func weekLockKey(resourceID string, weekStart time.Time) string {
	return "timelog:week:" + resourceID + ":" + timelog.FormatWeek(weekStart)
}

func entryLockKey(allocationID string, weekStart time.Time) string {
	return "timelog:entry:" + allocationID + ":" + timelog.FormatWeek(weekStart)
}

// run 持锁执行 fn。锁被占用返回 ErrLockNotAcquired；
// Redis 不可用时降级为无锁执行，数据库侧仍有 advisory 锁与乐观锁兜底
func (g *weekGuard) run(ctx context.Context, key string, fn func() error) error {
	if g == nil || g.locker == nil {
		return fn()
	}

	release, ok, err := g.locker.AcquireLock(ctx, key, g.ttl)
	if err != nil {
		g.logger.Warn("获取锁失败，降级为无锁执行", zap.String("key", key), zap.Error(err))
		return fn()
	}
	if !ok {
		return pkgerrors.ErrLockNotAcquired
	}
	defer release()
	return fn()
}

// authorize 本人或管理员才能访问某资源的工时
func authorize(actor timelog.Actor, resourceID string) error {
	if actor.ID != resourceID && !actor.Admin {
		return timelog.ErrNotOwner
	}
	return nil
}

func ensureResource(ctx context.Context, repo *repository.Repository, resourceID string) error {
	if _, err := repo.Resource.GetByID(ctx, resourceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResourceNotFound
		}
		return err
	}
	return nil
}

// openWeekForWrite 在事务内取 (资源, 周) 共享锁后确认该周未提交。
// 提交持排他锁，因此写入要么在提交之前落地，要么看到已提交状态
func openWeekForWrite(ctx context.Context, txRepo *repository.Repository, resourceID string, weekStart time.Time) error {
	if err := txRepo.WeeklySubmission.LockWeek(ctx, resourceID, weekStart, false); err != nil {
		return err
	}
	return ensureWeekOpen(ctx, txRepo, resourceID, weekStart)
}

// ensureWeekOpen 已提交的周拒绝任何工时写入
func ensureWeekOpen(ctx context.Context, repo *repository.Repository, resourceID string, weekStart time.Time) error {
	sub, err := repo.WeeklySubmission.GetByResourceAndWeek(ctx, resourceID, weekStart)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if sub.IsSubmitted {
		return timelog.ErrWeekSubmitted
	}
	return nil
}
