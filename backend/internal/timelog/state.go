package timelog

import (
	"errors"
	"fmt"
)

// WeekState 周提交状态
type WeekState string

const (
	StateNotStarted WeekState = "not-started"
	StateInProgress WeekState = "in-progress"
	StateSubmitted  WeekState = "submitted"
)

// Event 状态机事件
type Event string

const (
	EventCommitHours Event = "commit-hours" // 提交了 > 0 的工时
	EventSubmit      Event = "submit"
	EventReopen      Event = "reopen"
)

var (
	ErrWeekSubmitted     = errors.New("该周已提交，工时不可修改")
	ErrWeekNotSubmitted  = errors.New("该周尚未提交")
	ErrAdminRequired     = errors.New("需要管理员权限")
	ErrNotOwner          = errors.New("只能操作本人的工时")
	ErrInvalidTransition = errors.New("非法的状态转换")
)

// DeriveWeekState 由提交标记与工时数据推导当前状态
func DeriveWeekState(isSubmitted bool, entries Entries) WeekState {
	switch {
	case isSubmitted:
		return StateSubmitted
	case entries.HasHours():
		return StateInProgress
	default:
		return StateNotStarted
	}
}

// Transition 状态转换表：
//
//	not-started --commit(>0)--> in-progress
//	not-started|in-progress --submit--> submitted
//	submitted --reopen(admin)--> in-progress
//
// in-progress 上的 commit 保持原状态；submitted 上的 commit 被拒绝。
func Transition(from WeekState, ev Event) (WeekState, error) {
	switch ev {
	case EventCommitHours:
		switch from {
		case StateNotStarted, StateInProgress:
			return StateInProgress, nil
		case StateSubmitted:
			return from, ErrWeekSubmitted
		}
	case EventSubmit:
		switch from {
		case StateNotStarted, StateInProgress:
			return StateSubmitted, nil
		case StateSubmitted:
			return from, ErrWeekSubmitted
		}
	case EventReopen:
		if from == StateSubmitted {
			return StateInProgress, nil
		}
		return from, ErrWeekNotSubmitted
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
}

// ── 能力检查 ──

// Actor 操作者
type Actor struct {
	ID    string
	Admin bool
}

// Permission 能力检查结果：是否允许与原因
type Permission struct {
	Allowed bool
	// NeedsConfirmation 管理员操作他人的周时需要二次确认
	NeedsConfirmation bool
	Reason            string
	Err               error
}

func deny(err error) Permission {
	return Permission{Allowed: false, Reason: err.Error(), Err: err}
}

// CanEditWeek 是否可以编辑某资源某周的工时。
// 本人或管理员可编辑；已提交的周任何人都不可编辑（需先由管理员重新打开）。
func CanEditWeek(actor Actor, resourceOwner string, state WeekState) Permission {
	if actor.ID != resourceOwner && !actor.Admin {
		return deny(ErrNotOwner)
	}
	if state == StateSubmitted {
		return deny(ErrWeekSubmitted)
	}
	return Permission{Allowed: true}
}

// CanSubmitWeek 是否可以提交；校验结果由调用方另行检查
func CanSubmitWeek(actor Actor, resourceOwner string, state WeekState) Permission {
	if actor.ID != resourceOwner && !actor.Admin {
		return deny(ErrNotOwner)
	}
	if state == StateSubmitted {
		return deny(ErrWeekSubmitted)
	}
	return Permission{Allowed: true}
}

// CanReopenWeek 重新打开（撤回提交）仅限管理员
func CanReopenWeek(actor Actor, resourceOwner string, state WeekState) Permission {
	if !actor.Admin {
		return deny(ErrAdminRequired)
	}
	if state != StateSubmitted {
		return deny(ErrWeekNotSubmitted)
	}
	return Permission{
		Allowed:           true,
		NeedsConfirmation: actor.ID != resourceOwner,
	}
}
