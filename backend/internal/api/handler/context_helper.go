package handler

import (
	"github.com/gin-gonic/gin"

	"resource-planner/backend/internal/api/middleware"
	"resource-planner/backend/internal/timelog"
	"resource-planner/backend/pkg/jwt"
	"resource-planner/backend/pkg/response"
)

// MustGetActor 从 Gin 上下文中安全提取操作者（资源 ID 与是否管理员）。
// 如果 JWT 中间件未正确注入，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetActor(c *gin.Context) (timelog.Actor, bool) {
	id := c.GetString(middleware.CtxResourceID)
	if id == "" {
		response.Unauthorized(c, 10002, "未认证")
		return timelog.Actor{}, false
	}
	return timelog.Actor{
		ID:    id,
		Admin: c.GetString(middleware.CtxRole) == jwt.RoleAdmin,
	}, true
}

// mustParam 读取非空路径参数，为空时写入 400
func mustParam(c *gin.Context, name, message string) (string, bool) {
	v := c.Param(name)
	if v == "" {
		response.BadRequest(c, 10001, message)
		return "", false
	}
	return v, true
}
