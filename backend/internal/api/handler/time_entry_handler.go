package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resource-planner/backend/internal/dto"
	"resource-planner/backend/internal/service"
	pkgerrors "resource-planner/backend/pkg/errors"
	"resource-planner/backend/pkg/response"
)

// TimeEntryHandler 工时条目 HTTP 处理器
type TimeEntryHandler struct {
	timeEntrySvc service.TimeEntryService
}

// NewTimeEntryHandler 创建 TimeEntryHandler
func NewTimeEntryHandler(timeEntrySvc service.TimeEntryService) *TimeEntryHandler {
	return &TimeEntryHandler{timeEntrySvc: timeEntrySvc}
}

// ListByWeek 获取资源某周的工时条目
// GET /api/v1/resources/:id/time-entries/week/:weekStart
func (h *TimeEntryHandler) ListByWeek(c *gin.Context) {
	resourceID, ok := mustParam(c, "id", "资源ID不能为空")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.timeEntrySvc.ListByWeek(c.Request.Context(), actor, resourceID, c.Param("weekStart"))
	if err != nil {
		h.handleTimeEntryError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// CreateTimeEntry 创建工时条目
// POST /api/v1/time-entries
func (h *TimeEntryHandler) CreateTimeEntry(c *gin.Context) {
	var req dto.CreateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	entry, err := h.timeEntrySvc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleTimeEntryError(c, err)
		return
	}

	response.Created(c, entry)
}

// UpdateTimeEntry 更新工时条目（整行覆盖）
// PUT /api/v1/time-entries/:id
func (h *TimeEntryHandler) UpdateTimeEntry(c *gin.Context) {
	id, ok := mustParam(c, "id", "工时条目ID不能为空")
	if !ok {
		return
	}

	var req dto.UpdateTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	entry, err := h.timeEntrySvc.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		h.handleTimeEntryError(c, err)
		return
	}

	response.OK(c, entry)
}

// handleTimeEntryError 统一处理工时条目模块业务错误
func (h *TimeEntryHandler) handleTimeEntryError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidHours):
		response.ErrorWithDetails(c, http.StatusBadRequest, 20101, "工时字段无效", err.Error())
	case errors.Is(err, service.ErrTimeEntryNotFound):
		response.NotFound(c, 20102, "工时条目不存在")
	case errors.Is(err, service.ErrAllocationNotFound):
		response.NotFound(c, 20103, "资源分配不存在")
	case errors.Is(err, service.ErrAllocationMismatch):
		response.BadRequest(c, 20104, "该分配不属于此资源")
	case errors.Is(err, service.ErrTimeEntryExists):
		response.Conflict(c, 20105, "该分配本周已有工时条目")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 20106, "工时条目已被其他会话修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
