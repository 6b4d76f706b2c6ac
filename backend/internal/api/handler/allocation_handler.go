package handler

import (
	"github.com/gin-gonic/gin"

	"resource-planner/backend/internal/service"
	"resource-planner/backend/pkg/response"
)

// AllocationHandler 资源分配 HTTP 处理器（只读）
type AllocationHandler struct {
	allocationSvc service.AllocationService
}

// NewAllocationHandler 创建 AllocationHandler
func NewAllocationHandler(allocationSvc service.AllocationService) *AllocationHandler {
	return &AllocationHandler{allocationSvc: allocationSvc}
}

// ListByResource 获取资源的分配列表（含项目）
// GET /api/v1/resources/:id/allocations
func (h *AllocationHandler) ListByResource(c *gin.Context) {
	resourceID, ok := mustParam(c, "id", "资源ID不能为空")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	list, err := h.allocationSvc.ListByResource(c.Request.Context(), actor, resourceID)
	if err != nil {
		if !handleCommonError(c, err) {
			response.InternalError(c)
		}
		return
	}

	response.OK(c, gin.H{"list": list})
}
