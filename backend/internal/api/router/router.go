package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resource-planner/backend/config"
	"resource-planner/backend/internal/api/handler"
	"resource-planner/backend/internal/api/middleware"
	"resource-planner/backend/pkg/jwt"
	"resource-planner/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	writeLimit := middleware.RateLimit(rdb, cfg.TimeLog.WriteRateLimit, time.Minute)

	// ── API v1（全部需要认证）──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, rdb))
	{
		// 资源视角的查询（本人或管理员，Service 层鉴权）
		resources := v1.Group("/resources/:id")
		{
			resources.GET("/allocations", h.Allocation.ListByResource)
			resources.GET("/time-entries/week/:weekStart", h.TimeEntry.ListByWeek)
			resources.GET("/weekly-submissions/week/:weekStart", h.TimeLogging.GetSubmission)
			resources.GET("/time-logging/week/:weekStart", h.TimeLogging.GetWeekOverview)
		}

		// 工时条目
		timeEntries := v1.Group("/time-entries")
		timeEntries.Use(writeLimit)
		{
			timeEntries.POST("", h.TimeEntry.CreateTimeEntry)
			timeEntries.PUT("/:id", h.TimeEntry.UpdateTimeEntry)
		}

		// 周提交
		timeLogging := v1.Group("/time-logging")
		timeLogging.Use(writeLimit)
		{
			timeLogging.POST("/submit/:resourceId/:weekStart", h.TimeLogging.Submit)
			timeLogging.POST("/unsubmit/:resourceId/:weekStart", middleware.RoleAuth(jwt.RoleAdmin), h.TimeLogging.Unsubmit)
		}
	}

	return r
}
