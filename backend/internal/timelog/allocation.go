package timelog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AllocationStatus 填报工时相对计划分配的状态（仅提示，不阻塞保存或提交）
type AllocationStatus string

const (
	AllocationWithin   AllocationStatus = "within"
	AllocationModerate AllocationStatus = "moderate"
	AllocationExceeded AllocationStatus = "exceeded"
)

var (
	hundred           = decimal.NewFromInt(100)
	moderateUpperBand = decimal.NewFromInt(125)
)

// AllocationProgress 单个分配的周进度
type AllocationProgress struct {
	AllocationID   string
	WeeklyHours    decimal.Decimal
	AllocatedHours decimal.Decimal
	Percentage     decimal.Decimal
	Status         AllocationStatus
	Message        string
}

// ComputeAllocationStatus 比较某分配的周填报工时与计划工时。
// allocatedHours 为 0 时百分比记为 0。
func ComputeAllocationStatus(allocationID string, allocatedHours decimal.Decimal, entries Entries) AllocationProgress {
	weekly := entries[allocationID].Total()

	pct := decimal.Zero
	if allocatedHours.IsPositive() {
		pct = weekly.Mul(hundred).Div(allocatedHours)
	}

	p := AllocationProgress{
		AllocationID:   allocationID,
		WeeklyHours:    weekly,
		AllocatedHours: allocatedHours,
		Percentage:     pct.Round(HoursPrecision),
		Status:         classifyAllocation(pct),
	}
	p.Message = allocationMessage(p)
	return p
}

// ≤100 within；100–125 moderate；>125 exceeded
func classifyAllocation(pct decimal.Decimal) AllocationStatus {
	switch {
	case pct.LessThanOrEqual(hundred):
		return AllocationWithin
	case pct.LessThanOrEqual(moderateUpperBand):
		return AllocationModerate
	default:
		return AllocationExceeded
	}
}

func allocationMessage(p AllocationProgress) string {
	detail := fmt.Sprintf("%sh of %sh planned (%s%%)",
		FormatHours(p.WeeklyHours), FormatHours(p.AllocatedHours), p.Percentage.StringFixed(0))
	switch p.Status {
	case AllocationExceeded:
		return "Allocation exceeded: " + detail
	case AllocationModerate:
		return "Slightly over allocation: " + detail
	default:
		return "Within allocation: " + detail
	}
}

// ComputeAllocationStatuses 按 allocations 的顺序计算所有分配的进度
func ComputeAllocationStatuses(allocations []PlannedAllocation, entries Entries) []AllocationProgress {
	out := make([]AllocationProgress, 0, len(allocations))
	for _, a := range allocations {
		out = append(out, ComputeAllocationStatus(a.AllocationID, a.AllocatedHours, entries))
	}
	return out
}

// ExceededAllocations 状态为 exceeded 的分配，用于警告横幅
func ExceededAllocations(progress []AllocationProgress) []AllocationProgress {
	out := make([]AllocationProgress, 0)
	for _, p := range progress {
		if p.Status == AllocationExceeded {
			out = append(out, p)
		}
	}
	return out
}
