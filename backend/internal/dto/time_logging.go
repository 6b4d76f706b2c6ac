package dto

import (
	"fmt"

	"resource-planner/backend/internal/timelog"
)

// ── 工时填报模块 DTO ──
// 对外字段沿用前端约定的 camelCase，日工时字段名为 {weekday}Hours，值为两位小数的字符串

// DayHours 一周七天的工时
type DayHours struct {
	MondayHours    string `json:"mondayHours"`
	TuesdayHours   string `json:"tuesdayHours"`
	WednesdayHours string `json:"wednesdayHours"`
	ThursdayHours  string `json:"thursdayHours"`
	FridayHours    string `json:"fridayHours"`
	SaturdayHours  string `json:"saturdayHours"`
	SundayHours    string `json:"sundayHours"`
}

// NewDayHours 由七天工时生成响应字段（固定两位小数）
func NewDayHours(w timelog.WeekHours) DayHours {
	return DayHours{
		MondayHours:    timelog.FormatHours(w[timelog.Monday]),
		TuesdayHours:   timelog.FormatHours(w[timelog.Tuesday]),
		WednesdayHours: timelog.FormatHours(w[timelog.Wednesday]),
		ThursdayHours:  timelog.FormatHours(w[timelog.Thursday]),
		FridayHours:    timelog.FormatHours(w[timelog.Friday]),
		SaturdayHours:  timelog.FormatHours(w[timelog.Saturday]),
		SundayHours:    timelog.FormatHours(w[timelog.Sunday]),
	}
}

func (d DayHours) values() [timelog.DaysPerWeek]string {
	return [timelog.DaysPerWeek]string{
		d.MondayHours, d.TuesdayHours, d.WednesdayHours, d.ThursdayHours,
		d.FridayHours, d.SaturdayHours, d.SundayHours,
	}
}

// WeekHours 严格解析七天工时：[0,24]、最多两位小数、空串视为 0。
// 返回的错误带有出错的字段名。
func (d DayHours) WeekHours() (timelog.WeekHours, error) {
	var w timelog.WeekHours
	for i, raw := range d.values() {
		v, err := timelog.ParseStoredHours(raw)
		if err != nil {
			return w, fmt.Errorf("%s: %w", timelog.Day(i).Field(), err)
		}
		w[i] = v
	}
	return w, nil
}

// CreateTimeEntryRequest 创建工时条目请求
type CreateTimeEntryRequest struct {
	ResourceID    string `json:"resourceId"    binding:"required"`
	AllocationID  string `json:"allocationId"  binding:"required"`
	WeekStartDate string `json:"weekStartDate" binding:"required"` // "2026-10-12"，必须是周一
	DayHours
	Notes string `json:"notes" binding:"max=2000"`
}

// UpdateTimeEntryRequest 更新工时条目请求（整行覆盖七天工时）
// Version 可选：携带时做乐观锁冲突检测，不携带则后写覆盖
type UpdateTimeEntryRequest struct {
	DayHours
	Notes   *string `json:"notes"   binding:"omitempty,max=2000"`
	Version *int    `json:"version" binding:"omitempty,min=1"`
}

// ── 响应 ──

// ProjectBrief 项目简要信息
type ProjectBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

// AllocationResponse 资源分配响应
type AllocationResponse struct {
	ID             string        `json:"id"`
	ResourceID     string        `json:"resourceId"`
	ProjectID      string        `json:"projectId"`
	Project        *ProjectBrief `json:"project,omitempty"`
	AllocatedHours string        `json:"allocatedHours"`
	Status         string        `json:"status"`
	StartDate      *string       `json:"startDate,omitempty"`
	EndDate        *string       `json:"endDate,omitempty"`
}

// TimeEntryResponse 工时条目响应
type TimeEntryResponse struct {
	ID            string `json:"id"`
	ResourceID    string `json:"resourceId"`
	AllocationID  string `json:"allocationId"`
	WeekStartDate string `json:"weekStartDate"`
	DayHours
	TotalHours string              `json:"totalHours"`
	Notes      string              `json:"notes"`
	Version    int                 `json:"version"`
	Allocation *AllocationResponse `json:"allocation,omitempty"`
	CreatedAt  string              `json:"createdAt"`
	UpdatedAt  string              `json:"updatedAt"`
}

// WeeklySubmissionResponse 周提交记录响应
type WeeklySubmissionResponse struct {
	ID            string  `json:"id"`
	ResourceID    string  `json:"resourceId"`
	WeekStartDate string  `json:"weekStartDate"`
	IsSubmitted   bool    `json:"isSubmitted"`
	TotalHours    string  `json:"totalHours"`
	SubmittedAt   *string `json:"submittedAt,omitempty"`
	SubmittedBy   *string `json:"submittedBy,omitempty"`
	Version       int     `json:"version"`
}

// DailyValidationResponse 单日校验结果
type DailyValidationResponse struct {
	Day            string `json:"day"`
	TotalHours     string `json:"totalHours"`
	RemainingHours string `json:"remainingHours"`
	Severity       string `json:"severity"`
	WarningMessage string `json:"warningMessage,omitempty"`
}

// SubmissionValidationResponse 提交校验结果
type SubmissionValidationResponse struct {
	CanSubmit    bool     `json:"canSubmit"`
	ViolatedDays []string `json:"violatedDays"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// AllocationStatusResponse 分配进度
type AllocationStatusResponse struct {
	AllocationID   string `json:"allocationId"`
	ProjectName    string `json:"projectName,omitempty"`
	WeeklyHours    string `json:"weeklyHours"`
	AllocatedHours string `json:"allocatedHours"`
	Percentage     string `json:"percentage"`
	Status         string `json:"status"`
	Message        string `json:"message"`
}

// WeekOverviewResponse 周视图：状态、逐日校验、提交校验与分配进度
type WeekOverviewResponse struct {
	ResourceID  string                       `json:"resourceId"`
	WeekStart   string                       `json:"weekStart"`
	State       string                       `json:"state"`
	IsSubmitted bool                         `json:"isSubmitted"`
	TotalHours  string                       `json:"totalHours"`
	Daily       []DailyValidationResponse    `json:"daily"`
	Submission  SubmissionValidationResponse `json:"submission"`
	Allocations []AllocationStatusResponse   `json:"allocations"`
	Exceeded    []AllocationStatusResponse   `json:"exceeded"`
	Entries     []TimeEntryResponse          `json:"entries"`
}

// SubmissionRefusedResponse 提交被拒绝时随 422 返回的数据
type SubmissionRefusedResponse struct {
	ViolatedDays []string          `json:"violatedDays"`
	DailyTotals  map[string]string `json:"dailyTotals"`
}
