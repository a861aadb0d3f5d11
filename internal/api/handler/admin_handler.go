package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-analyzer-go/internal/admin"
	"resume-analyzer-go/internal/apikey"
	"resume-analyzer-go/internal/queue"
	"resume-analyzer-go/internal/usage"
)

const adminUserKey = "admin_user"

// AdminHandler 管理后台接口，全部路由要求会话令牌
type AdminHandler struct {
	service *admin.Service
	keys    *apikey.Manager
	tracker *usage.Tracker
	queue   *queue.Queue
}

func NewAdminHandler(service *admin.Service, keys *apikey.Manager, tracker *usage.Tracker, q *queue.Queue) *AdminHandler {
	return &AdminHandler{service: service, keys: keys, tracker: tracker, queue: q}
}

// sessionToken 从Authorization: Bearer或X-Admin-Token头提取令牌
func sessionToken(ctx *app.RequestContext) string {
	auth := string(ctx.GetHeader("Authorization"))
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return string(ctx.GetHeader("X-Admin-Token"))
}

// SessionMiddleware 校验管理员会话，通过后将用户名写入请求上下文
func (h *AdminHandler) SessionMiddleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		token := sessionToken(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "缺少管理员会话令牌"})
			return
		}
		username, err := h.service.ValidateSession(c, token)
		if err != nil {
			if errors.Is(err, admin.ErrSessionStoreDown) {
				ctx.AbortWithStatusJSON(consts.StatusServiceUnavailable, utils.H{"error": "会话存储不可用"})
				return
			}
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "会话无效或已过期"})
			return
		}
		ctx.Set(adminUserKey, username)
		ctx.Next(c)
	}
}

func adminUser(ctx *app.RequestContext) string {
	if v, ok := ctx.Get(adminUserKey); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return "admin"
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 管理员登录，成功返回会话令牌
func (h *AdminHandler) Login(c context.Context, ctx *app.RequestContext) {
	var req loginRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法JSON"})
		return
	}

	token, err := h.service.Login(c, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, admin.ErrBadCredentials) {
			ctx.JSON(consts.StatusUnauthorized, utils.H{"error": "用户名或密码错误"})
			return
		}
		if errors.Is(err, admin.ErrSessionStoreDown) {
			ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "会话存储不可用"})
			return
		}
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "登录失败"})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"token": token})
}

// Logout 注销当前会话
func (h *AdminHandler) Logout(c context.Context, ctx *app.RequestContext) {
	if err := h.service.Logout(c, sessionToken(ctx)); err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "注销失败"})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

// Dashboard 运营总览
func (h *AdminHandler) Dashboard(c context.Context, ctx *app.RequestContext) {
	overview, err := h.service.GetOverview(c)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "获取总览失败"})
		return
	}
	ctx.JSON(consts.StatusOK, overview)
}

// Analytics 用量明细与阈值告警
func (h *AdminHandler) Analytics(c context.Context, ctx *app.RequestContext) {
	alerts, err := h.service.GetAlerts(c)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "获取告警失败"})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{
		"snapshot": h.tracker.Snapshot(),
		"alerts":   alerts,
	})
}

// Users 列出全部密钥
func (h *AdminHandler) Users(c context.Context, ctx *app.RequestContext) {
	infos, err := h.keys.ListKeys(c)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "查询密钥列表失败"})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"users": infos, "total": len(infos)})
}

// UpdateKeyTier 管理员变更密钥等级
func (h *AdminHandler) UpdateKeyTier(c context.Context, ctx *app.RequestContext) {
	var req upgradeRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法JSON"})
		return
	}

	key := ctx.Param("apiKey")
	if err := h.service.UpdateKeyTier(c, adminUser(ctx), key, req.Tier); err != nil {
		RespondError(ctx, err)
		return
	}
	info, err := h.keys.GetKeyInfo(c, key)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, info)
}

// DeactivateKey 管理员吊销密钥
func (h *AdminHandler) DeactivateKey(c context.Context, ctx *app.RequestContext) {
	if err := h.service.DeactivateKey(c, adminUser(ctx), ctx.Param("apiKey")); err != nil {
		RespondError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"status": "deactivated"})
}

type settingsRequest struct {
	ErrorRateWarn        float64 `json:"errorRateWarn"`
	CacheHitRateWarn     float64 `json:"cacheHitRateWarn"`
	ProcessingTimeWarnMS int     `json:"processingTimeWarnMs"`
}

// Settings 查询告警阈值设置
func (h *AdminHandler) Settings(c context.Context, ctx *app.RequestContext) {
	settings, err := h.service.GetSettings(c)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取设置失败"})
		return
	}
	ctx.JSON(consts.StatusOK, settings)
}

// UpdateSettings 更新告警阈值，只接受正值，缺省字段保持原值
func (h *AdminHandler) UpdateSettings(c context.Context, ctx *app.RequestContext) {
	var req settingsRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法JSON"})
		return
	}

	settings, err := h.service.UpdateSettings(c, adminUser(ctx), req.ErrorRateWarn, req.CacheHitRateWarn, req.ProcessingTimeWarnMS)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "更新设置失败"})
		return
	}
	ctx.JSON(consts.StatusOK, settings)
}

type maintenanceRequest struct {
	Enabled bool `json:"enabled"`
}

// ToggleMaintenance 开关维护模式，开启后非管理路由返回503
func (h *AdminHandler) ToggleMaintenance(c context.Context, ctx *app.RequestContext) {
	var req maintenanceRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法JSON"})
		return
	}

	if err := h.service.SetMaintenance(c, adminUser(ctx), req.Enabled); err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "切换维护模式失败"})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"maintenanceMode": req.Enabled})
}

// Backup 生成一份JSON备份文件并滚动清理旧备份
func (h *AdminHandler) Backup(c context.Context, ctx *app.RequestContext) {
	path, err := h.service.Backup(c, adminUser(ctx))
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "备份失败"})
		return
	}
	ctx.JSON(consts.StatusOK, utils.H{"backup": path})
}

// ClearCache 清空分析缓存
func (h *AdminHandler) ClearCache(c context.Context, ctx *app.RequestContext) {
	removed := h.service.ClearCache(c, adminUser(ctx))
	ctx.JSON(consts.StatusOK, utils.H{"removed": removed})
}

// QueueStats 队列指标
func (h *AdminHandler) QueueStats(c context.Context, ctx *app.RequestContext) {
	if h.queue == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "异步任务队列未启用"})
		return
	}
	stats, err := h.queue.GetStats(c)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "查询队列状态失败"})
		return
	}
	ctx.JSON(consts.StatusOK, stats)
}

// PauseQueue 暂停消费，消息保留在队列中
func (h *AdminHandler) PauseQueue(c context.Context, ctx *app.RequestContext) {
	if h.queue == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "异步任务队列未启用"})
		return
	}
	h.queue.Pause()
	ctx.JSON(consts.StatusOK, utils.H{"paused": true})
}

// ResumeQueue 恢复消费
func (h *AdminHandler) ResumeQueue(c context.Context, ctx *app.RequestContext) {
	if h.queue == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "异步任务队列未启用"})
		return
	}
	h.queue.Resume()
	ctx.JSON(consts.StatusOK, utils.H{"paused": false})
}

// Export 管理员导出用量数据，format=json|csv
func (h *AdminHandler) Export(c context.Context, ctx *app.RequestContext) {
	format := ctx.DefaultQuery("format", "json")
	username := adminUser(ctx)
	switch format {
	case "csv":
		data, err := h.service.ExportCSV(username)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "导出失败"})
			return
		}
		ctx.Response.Header.Set("Content-Disposition", `attachment; filename="usage.csv"`)
		ctx.Data(consts.StatusOK, "text/csv; charset=utf-8", data)
	case "json":
		data, err := h.service.ExportJSON(username)
		if err != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "导出失败"})
			return
		}
		ctx.Response.Header.Set("Content-Disposition", `attachment; filename="usage.json"`)
		ctx.Data(consts.StatusOK, "application/json; charset=utf-8", data)
	default:
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "format只支持json或csv"})
	}
}
