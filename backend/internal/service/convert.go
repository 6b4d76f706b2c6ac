package service

import (
	"time"

	"resource-planner/backend/internal/dto"
	"resource-planner/backend/internal/model"
	"resource-planner/backend/internal/timelog"
)

const timestampLayout = "2006-01-02T15:04:05Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timelog.WeekLayout)
	return &s
}

func toAllocationResponse(a *model.ResourceAllocation) *dto.AllocationResponse {
	resp := &dto.AllocationResponse{
		ID:             a.AllocationID,
		ResourceID:     a.ResourceID,
		ProjectID:      a.ProjectID,
		AllocatedHours: timelog.FormatHours(a.AllocatedHours),
		Status:         a.Status,
		StartDate:      formatDatePtr(a.StartDate),
		EndDate:        formatDatePtr(a.EndDate),
	}
	if a.Project != nil {
		resp.Project = &dto.ProjectBrief{
			ID:   a.Project.ProjectID,
			Name: a.Project.Name,
			Code: a.Project.Code,
		}
	}
	return resp
}

func toTimeEntryResponse(e *model.TimeEntry) *dto.TimeEntryResponse {
	hours := e.Hours()
	resp := &dto.TimeEntryResponse{
		ID:            e.TimeEntryID,
		ResourceID:    e.ResourceID,
		AllocationID:  e.AllocationID,
		WeekStartDate: timelog.FormatWeek(e.WeekStartDate),
		DayHours:      dto.NewDayHours(hours),
		TotalHours:    timelog.FormatHours(hours.Total()),
		Notes:         e.Notes,
		Version:       e.Version,
		CreatedAt:     formatTimestamp(e.CreatedAt),
		UpdatedAt:     formatTimestamp(e.UpdatedAt),
	}
	if e.Allocation != nil {
		resp.Allocation = toAllocationResponse(e.Allocation)
	}
	return resp
}

func toSubmissionResponse(s *model.WeeklySubmission) *dto.WeeklySubmissionResponse {
	resp := &dto.WeeklySubmissionResponse{
		ID:            s.SubmissionID,
		ResourceID:    s.ResourceID,
		WeekStartDate: timelog.FormatWeek(s.WeekStartDate),
		IsSubmitted:   s.IsSubmitted,
		TotalHours:    timelog.FormatHours(s.TotalHours),
		SubmittedBy:   s.SubmittedBy,
		Version:       s.Version,
	}
	if s.SubmittedAt != nil {
		at := formatTimestamp(*s.SubmittedAt)
		resp.SubmittedAt = &at
	}
	return resp
}

// plannedAllocations 转换为引擎使用的计划分配
func plannedAllocations(allocs []model.ResourceAllocation) []timelog.PlannedAllocation {
	out := make([]timelog.PlannedAllocation, 0, len(allocs))
	for _, a := range allocs {
		p := timelog.PlannedAllocation{
			AllocationID:   a.AllocationID,
			ProjectID:      a.ProjectID,
			AllocatedHours: a.AllocatedHours,
			Status:         a.Status,
		}
		if a.Project != nil {
			p.ProjectName = a.Project.Name
		}
		out = append(out, p)
	}
	return out
}

// entriesOf 按分配 ID 索引的工时
func entriesOf(entries []model.TimeEntry) timelog.Entries {
	out := make(timelog.Entries, len(entries))
	for i := range entries {
		out[entries[i].AllocationID] = entries[i].Hours()
	}
	return out
}

func dayNames(days []timelog.Day) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.String()
	}
	return out
}

func toOverviewResponse(o timelog.WeekOverview, allocs []timelog.PlannedAllocation, entries []model.TimeEntry) *dto.WeekOverviewResponse {
	names := make(map[string]string, len(allocs))
	for _, a := range allocs {
		names[a.AllocationID] = a.ProjectName
	}
	progress := func(list []timelog.AllocationProgress) []dto.AllocationStatusResponse {
		out := make([]dto.AllocationStatusResponse, 0, len(list))
		for _, p := range list {
			out = append(out, dto.AllocationStatusResponse{
				AllocationID:   p.AllocationID,
				ProjectName:    names[p.AllocationID],
				WeeklyHours:    timelog.FormatHours(p.WeeklyHours),
				AllocatedHours: timelog.FormatHours(p.AllocatedHours),
				Percentage:     p.Percentage.StringFixed(timelog.HoursPrecision),
				Status:         string(p.Status),
				Message:        p.Message,
			})
		}
		return out
	}

	resp := &dto.WeekOverviewResponse{
		ResourceID:  o.ResourceID,
		WeekStart:   timelog.FormatWeek(o.WeekStart),
		State:       string(o.State),
		IsSubmitted: o.State == timelog.StateSubmitted,
		TotalHours:  timelog.FormatHours(o.TotalHours),
		Daily:       make([]dto.DailyValidationResponse, 0, timelog.DaysPerWeek),
		Submission: dto.SubmissionValidationResponse{
			CanSubmit:    o.Submission.CanSubmit,
			ViolatedDays: dayNames(o.Submission.ViolatedDays),
			ErrorMessage: o.Submission.ErrorMessage,
		},
		Allocations: progress(o.Allocations),
		Exceeded:    progress(o.Exceeded),
		Entries:     make([]dto.TimeEntryResponse, 0, len(entries)),
	}
	for _, d := range o.Daily {
		resp.Daily = append(resp.Daily, dto.DailyValidationResponse{
			Day:            d.Day.String(),
			TotalHours:     timelog.FormatHours(d.TotalHours),
			RemainingHours: timelog.FormatHours(d.RemainingHours),
			Severity:       string(d.Severity),
			WarningMessage: d.WarningMessage,
		})
	}
	for i := range entries {
		resp.Entries = append(resp.Entries, *toTimeEntryResponse(&entries[i]))
	}
	return resp
}
