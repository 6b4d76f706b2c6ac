package timelog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SubmissionValidation 提交前的整周校验结果；CanSubmit=false 时提交被拒绝
type SubmissionValidation struct {
	CanSubmit    bool
	ViolatedDays []Day
	DailyTotals  [DaysPerWeek]decimal.Decimal
	ErrorMessage string
}

// ComputeSubmissionValidation 逐天计算合计（不做替换），超过 8h 的日期即违规。
// 8.00 允许，8.01 不允许。
func ComputeSubmissionValidation(entries Entries) SubmissionValidation {
	v := SubmissionValidation{ViolatedDays: []Day{}}
	for _, d := range AllDays {
		total := DailyTotal(d, entries)
		v.DailyTotals[d] = total
		if total.GreaterThan(DailyCap) {
			v.ViolatedDays = append(v.ViolatedDays, d)
		}
	}

	v.CanSubmit = len(v.ViolatedDays) == 0
	v.ErrorMessage = submissionMessage(v.ViolatedDays)
	return v
}

func submissionMessage(days []Day) string {
	switch len(days) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("Cannot submit: 1 day (%s) exceeds the %sh daily limit.", days[0], DailyCap.String())
	default:
		names := make([]string, len(days))
		for i, d := range days {
			names[i] = d.String()
		}
		return fmt.Sprintf("Cannot submit: %d days (%s) exceed the %sh daily limit.",
			len(days), strings.Join(names, ", "), DailyCap.String())
	}
}

// OffendingCells 违规日期中有工时的单元格，按日期、再按 order 中的分配顺序排列。
// order 为空时按分配 ID 排序。第一个元素即提交失败后应聚焦的单元格。
func OffendingCells(entries Entries, v SubmissionValidation, order []string) []CellKey {
	if len(v.ViolatedDays) == 0 {
		return nil
	}
	if len(order) == 0 {
		order = entries.AllocationIDs()
	}

	cells := make([]CellKey, 0)
	for _, d := range v.ViolatedDays {
		for _, id := range order {
			w, ok := entries[id]
			if !ok || w[d].IsZero() {
				continue
			}
			cells = append(cells, CellKey{AllocationID: id, Day: d})
		}
	}
	return cells
}

// SubmissionRefusedError 提交被硬性校验拒绝
type SubmissionRefusedError struct {
	Validation SubmissionValidation
	Cells      []CellKey // 需要高亮的单元格
}

func (e *SubmissionRefusedError) Error() string {
	return e.Validation.ErrorMessage
}

// Focus 应聚焦的第一个违规单元格
func (e *SubmissionRefusedError) Focus() (CellKey, bool) {
	if len(e.Cells) == 0 {
		return CellKey{}, false
	}
	return e.Cells[0], true
}
