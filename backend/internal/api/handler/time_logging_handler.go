package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resource-planner/backend/internal/dto"
	"resource-planner/backend/internal/service"
	"resource-planner/backend/internal/timelog"
	"resource-planner/backend/pkg/response"
)

// TimeLoggingHandler 周视图与周提交 HTTP 处理器
type TimeLoggingHandler struct {
	timeLoggingSvc service.TimeLoggingService
}

// NewTimeLoggingHandler 创建 TimeLoggingHandler
func NewTimeLoggingHandler(timeLoggingSvc service.TimeLoggingService) *TimeLoggingHandler {
	return &TimeLoggingHandler{timeLoggingSvc: timeLoggingSvc}
}

// GetSubmission 获取某周的提交记录
// GET /api/v1/resources/:id/weekly-submissions/week/:weekStart
func (h *TimeLoggingHandler) GetSubmission(c *gin.Context) {
	resourceID, ok := mustParam(c, "id", "资源ID不能为空")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	sub, err := h.timeLoggingSvc.GetSubmission(c.Request.Context(), actor, resourceID, c.Param("weekStart"))
	if err != nil {
		h.handleTimeLoggingError(c, err)
		return
	}

	response.OK(c, sub)
}

// GetWeekOverview 获取周视图
// GET /api/v1/resources/:id/time-logging/week/:weekStart
func (h *TimeLoggingHandler) GetWeekOverview(c *gin.Context) {
	resourceID, ok := mustParam(c, "id", "资源ID不能为空")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	overview, err := h.timeLoggingSvc.GetWeekOverview(c.Request.Context(), actor, resourceID, c.Param("weekStart"))
	if err != nil {
		h.handleTimeLoggingError(c, err)
		return
	}

	response.OK(c, overview)
}

// Submit 提交某周工时
// POST /api/v1/time-logging/submit/:resourceId/:weekStart
func (h *TimeLoggingHandler) Submit(c *gin.Context) {
	resourceID, ok := mustParam(c, "resourceId", "资源ID不能为空")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	sub, err := h.timeLoggingSvc.Submit(c.Request.Context(), actor, resourceID, c.Param("weekStart"))
	if err != nil {
		h.handleTimeLoggingError(c, err)
		return
	}

	response.OK(c, sub)
}

// Unsubmit 撤回某周提交（仅管理员）
// POST /api/v1/time-logging/unsubmit/:resourceId/:weekStart
func (h *TimeLoggingHandler) Unsubmit(c *gin.Context) {
	resourceID, ok := mustParam(c, "resourceId", "资源ID不能为空")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	sub, err := h.timeLoggingSvc.Unsubmit(c.Request.Context(), actor, resourceID, c.Param("weekStart"))
	if err != nil {
		h.handleTimeLoggingError(c, err)
		return
	}

	response.OK(c, sub)
}

// handleTimeLoggingError 统一处理周提交模块业务错误
func (h *TimeLoggingHandler) handleTimeLoggingError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}

	var refused *timelog.SubmissionRefusedError
	switch {
	case errors.As(err, &refused):
		response.ErrorWithData(c, http.StatusUnprocessableEntity, 20201, refused.Error(), refusedData(refused))
	case errors.Is(err, timelog.ErrWeekNotSubmitted):
		response.Conflict(c, 20202, "该周尚未提交")
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.NotFound(c, 20203, "该周尚无提交记录")
	default:
		response.InternalError(c)
	}
}

func refusedData(e *timelog.SubmissionRefusedError) dto.SubmissionRefusedResponse {
	data := dto.SubmissionRefusedResponse{
		ViolatedDays: make([]string, 0, len(e.Validation.ViolatedDays)),
		DailyTotals:  make(map[string]string, timelog.DaysPerWeek),
	}
	for _, d := range e.Validation.ViolatedDays {
		data.ViolatedDays = append(data.ViolatedDays, d.String())
	}
	for _, d := range timelog.AllDays {
		data.DailyTotals[d.String()] = timelog.FormatHours(e.Validation.DailyTotals[d])
	}
	return data
}
