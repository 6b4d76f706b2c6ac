package timelog

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrConflict 服务端检测到并发修改（乐观锁版本不一致）
var ErrConflict = errors.New("时间条目已被其他会话修改")

// EntrySnapshot 服务端已知的时间条目
type EntrySnapshot struct {
	EntryID      string // 为空表示该分配本周尚无条目
	AllocationID string
	Hours        WeekHours
	Notes        string
	Version      int
}

// SubmissionSnapshot 周提交记录
type SubmissionSnapshot struct {
	IsSubmitted bool
	TotalHours  decimal.Decimal
	SubmittedAt *time.Time
}

// WeekSnapshot 某资源某周的服务端状态
type WeekSnapshot struct {
	ResourceID  string
	WeekStart   time.Time
	Allocations []PlannedAllocation
	Entries     map[string]EntrySnapshot // 按分配 ID 索引
	Submission  *SubmissionSnapshot      // nil 表示尚无提交记录
}

// IsSubmitted 是否已提交
func (s *WeekSnapshot) IsSubmitted() bool {
	return s.Submission != nil && s.Submission.IsSubmitted
}

// Hours 服务端工时，未建条目的分配记为全 0
func (s *WeekSnapshot) Hours() Entries {
	out := make(Entries, len(s.Allocations)+len(s.Entries))
	for _, a := range s.Allocations {
		out[a.AllocationID] = WeekHours{}
	}
	for id, e := range s.Entries {
		out[id] = e.Hours
	}
	return out
}

// State 推导状态
func (s *WeekSnapshot) State() WeekState {
	return DeriveWeekState(s.IsSubmitted(), s.Hours())
}

// EntryWrite 一次时间条目写入（整行七天 + 备注）
type EntryWrite struct {
	ResourceID   string
	AllocationID string
	WeekStart    time.Time
	Hours        WeekHours
	Notes        string
	// Version 上次读取到的版本；>0 时服务端做冲突检测
	Version int
}

// Store 外部时间条目存储（通过 HTTP 接口访问）
type Store interface {
	LoadWeek(ctx context.Context, resourceID string, weekStart time.Time) (*WeekSnapshot, error)
	CreateTimeEntry(ctx context.Context, in EntryWrite) (*EntrySnapshot, error)
	UpdateTimeEntry(ctx context.Context, entryID string, in EntryWrite) (*EntrySnapshot, error)
	SubmitWeek(ctx context.Context, resourceID string, weekStart time.Time) (*SubmissionSnapshot, error)
	UnsubmitWeek(ctx context.Context, resourceID string, weekStart time.Time) (*SubmissionSnapshot, error)
}
