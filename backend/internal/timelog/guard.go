package timelog

import (
	"context"
	"errors"
)

// ErrNavigationCancelled 用户在离开提示中选择留在当前页
var ErrNavigationCancelled = errors.New("已取消离开")

// Decision 离开页面时对未保存修改的处理
type Decision int

const (
	DecisionCancel Decision = iota
	DecisionSave
	DecisionDiscard
)

// Prompt 向用户询问如何处理未保存的单元格
type Prompt func(ctx context.Context, unsaved []CellKey) Decision

// NavigationGuard 离开页面守卫：存在未保存修改时必须先保存或放弃，且可以取消
type NavigationGuard struct {
	ledger *Ledger
}

// NewNavigationGuard 创建守卫
func NewNavigationGuard(ledger *Ledger) *NavigationGuard {
	return &NavigationGuard{ledger: ledger}
}

// Leave 尝试离开。允许离开时关闭账本并等待已发出的保存完成。
// 取消时返回 ErrNavigationCancelled；选择保存但有失败时返回 ErrUnsavedChanges，
// 此时留在页面，失败单元格保持标记。
func (g *NavigationGuard) Leave(ctx context.Context, prompt Prompt) error {
	if g.ledger.HasUnsavedChanges() {
		decision := DecisionCancel
		if prompt != nil {
			decision = prompt(ctx, g.ledger.UnsavedCells())
		}

		switch decision {
		case DecisionSave:
			report, err := g.ledger.SaveAll(ctx)
			if err != nil {
				return err
			}
			if !report.OK() {
				return errors.Join(ErrUnsavedChanges, report.Err())
			}
		case DecisionDiscard:
			g.ledger.DiscardAll()
		default:
			return ErrNavigationCancelled
		}
	}

	g.ledger.Close()
	return g.ledger.Wait(ctx)
}
