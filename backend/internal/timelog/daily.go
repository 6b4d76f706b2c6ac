package timelog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Severity 超出日上限的程度（非阻塞提示）
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// DailyValidation 某天的派生校验结果，每次变化后重新计算，不缓存
type DailyValidation struct {
	Day            Day
	TotalHours     decimal.Decimal
	RemainingHours decimal.Decimal
	Severity       Severity
	WarningMessage string
}

// DailyTotal 某天所有分配的工时之和
func DailyTotal(day Day, entries Entries) decimal.Decimal {
	sum := decimal.Zero
	for _, w := range entries {
		sum = sum.Add(w[day])
	}
	return sum
}

// ClassifySeverity total ≤ 8 → none；8 < total < 10 → moderate；≥ 10 → severe
// 恰好 10h（两条分配各 5h）按 severe 处理
func ClassifySeverity(total decimal.Decimal) Severity {
	switch {
	case total.LessThanOrEqual(DailyCap):
		return SeverityNone
	case total.LessThan(SevereThreshold):
		return SeverityModerate
	default:
		return SeveritySevere
	}
}

// ComputeDailyValidation 计算某天合计，用 candidate 替换当前分配自身的值，
// 使提示反映正在输入、尚未提交的值。结果只用于着色与徽标，从不拦截输入。
func ComputeDailyValidation(day Day, currentAllocationID string, candidate decimal.Decimal, entries Entries) DailyValidation {
	total := candidate
	for id, w := range entries {
		if id == currentAllocationID {
			continue
		}
		total = total.Add(w[day])
	}
	return buildDailyValidation(day, total)
}

// ComputeWeekDailyValidations 七天各自的校验结果（不做替换）
func ComputeWeekDailyValidations(entries Entries) [DaysPerWeek]DailyValidation {
	var out [DaysPerWeek]DailyValidation
	for _, d := range AllDays {
		out[d] = buildDailyValidation(d, DailyTotal(d, entries))
	}
	return out
}

func buildDailyValidation(day Day, total decimal.Decimal) DailyValidation {
	remaining := DailyCap.Sub(total)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	v := DailyValidation{
		Day:            day,
		TotalHours:     total,
		RemainingHours: remaining,
		Severity:       ClassifySeverity(total),
	}
	if v.Severity != SeverityNone {
		over := total.Sub(DailyCap)
		v.WarningMessage = fmt.Sprintf("%s: %sh logged, +%sh over the %sh daily limit",
			day, FormatHours(total), over.StringFixed(1), DailyCap.String())
	}
	return v
}
