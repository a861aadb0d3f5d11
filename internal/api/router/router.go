package router

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"resume-analyzer-go/internal/admin"
	"resume-analyzer-go/internal/api/handler"
	"resume-analyzer-go/internal/apikey"
	"resume-analyzer-go/pkg/ratelimit"
)

// keyInfoCtxKey keyauth校验通过后KeyInfo在请求上下文中的键
const keyInfoCtxKey = "key_info"

// Handlers 路由注册所需的全部处理器
type Handlers struct {
	Analyze *handler.AnalyzeHandler
	Key     *handler.KeyHandler
	Admin   *handler.AdminHandler
}

// RegisterRoutes 注册API路由
func RegisterRoutes(h *server.Hertz, keys *apikey.Manager, adminSvc *admin.Service, limiter *ratelimit.KeyedLimiter, handlers Handlers) {
	h.Use(maintenanceMiddleware(adminSvc))

	api := h.Group("/api")

	api.GET("/health", handlers.Analyze.Health)
	api.GET("/industries", handlers.Analyze.Industries)

	// 密钥签发与查询不要求已有密钥
	api.POST("/keys/create", handlers.Key.Create)
	api.GET("/keys/:apiKey/info", handlers.Key.Info)
	api.POST("/keys/:apiKey/upgrade", handlers.Key.Upgrade)

	// 需要X-API-Key且按密钥限流的业务路由
	keyed := api.Group("", keyAuthMiddleware(keys), rateLimitMiddleware(limiter))
	keyed.POST("/analyze-resume", handlers.Analyze.Analyze)
	keyed.GET("/usage/stats", handlers.Key.UsageStats)
	keyed.GET("/usage/export", handlers.Key.UsageExport)

	// 批量接口在处理器内部做密钥与功能校验
	api.POST("/bulk-analyze", rateLimitMiddleware(limiter), handlers.Analyze.BulkAnalyze)
	api.GET("/job-status/:jobId", handlers.Analyze.JobStatus)

	// 管理后台
	adminGroup := api.Group("/admin")
	adminGroup.POST("/login", rateLimitMiddleware(limiter), handlers.Admin.Login)

	session := adminGroup.Group("", handlers.Admin.SessionMiddleware())
	session.POST("/logout", handlers.Admin.Logout)
	session.GET("/dashboard", handlers.Admin.Dashboard)
	session.GET("/analytics", handlers.Admin.Analytics)
	session.GET("/users", handlers.Admin.Users)
	session.PUT("/keys/:apiKey/tier", handlers.Admin.UpdateKeyTier)
	session.DELETE("/keys/:apiKey", handlers.Admin.DeactivateKey)
	session.GET("/settings", handlers.Admin.Settings)
	session.PUT("/settings", handlers.Admin.UpdateSettings)
	session.POST("/maintenance/toggle", handlers.Admin.ToggleMaintenance)
	session.POST("/backup", handlers.Admin.Backup)
	session.GET("/export", handlers.Admin.Export)
	session.POST("/cache/clear", handlers.Admin.ClearCache)
	session.GET("/queue/stats", handlers.Admin.QueueStats)
	session.POST("/queue/pause", handlers.Admin.PauseQueue)
	session.POST("/queue/resume", handlers.Admin.ResumeQueue)
}

// keyAuthMiddleware 校验X-API-Key，通过后将KeyInfo写入请求上下文
func keyAuthMiddleware(keys *apikey.Manager) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:X-API-Key", ""),
		keyauth.WithContextKey(keyInfoCtxKey),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			info, err := keys.Validate(c, key)
			if err != nil {
				return false, err
			}
			ctx.Set(keyInfoCtxKey, info)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			handler.RespondError(ctx, err)
			ctx.Abort()
		}),
	)
}

// rateLimitMiddleware 按X-API-Key做令牌桶限流，无密钥时按客户端IP
func rateLimitMiddleware(limiter *ratelimit.KeyedLimiter) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		key := string(ctx.GetHeader("X-API-Key"))
		if key == "" {
			key = "ip:" + ctx.ClientIP()
		}
		if !limiter.Allow(key) {
			ctx.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{"error": "请求频率超限，请稍后重试"})
			return
		}
		ctx.Next(c)
	}
}

// maintenanceMiddleware 维护模式下非管理、非健康检查路由一律返回503
func maintenanceMiddleware(adminSvc *admin.Service) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		if adminSvc.MaintenanceEnabled() {
			path := string(ctx.Path())
			if !strings.HasPrefix(path, "/api/admin") && path != "/api/health" {
				ctx.AbortWithStatusJSON(consts.StatusServiceUnavailable, utils.H{"error": "系统维护中，请稍后重试"})
				return
			}
		}
		ctx.Next(c)
	}
}
