package handler

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-analyzer-go/internal/admin"
	"resume-analyzer-go/internal/apikey"
	"resume-analyzer-go/internal/usage"
)

// KeyHandler 密钥管理与用量查询接口
type KeyHandler struct {
	keys    *apikey.Manager
	tracker *usage.Tracker
	admin   *admin.Service
}

func NewKeyHandler(keys *apikey.Manager, tracker *usage.Tracker, adminSvc *admin.Service) *KeyHandler {
	return &KeyHandler{keys: keys, tracker: tracker, admin: adminSvc}
}

type createKeyRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Tier  string `json:"tier"`
}

// Create 创建新密钥，tier缺省为free
func (h *KeyHandler) Create(c context.Context, ctx *app.RequestContext) {
	var req createKeyRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "name和email不能为空"})
		return
	}
	if !strings.Contains(req.Email, "@") {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "email格式不合法"})
		return
	}
	if req.Tier == "" {
		req.Tier = "free"
	}

	info, err := h.keys.CreateKey(c, req.Name, req.Email, req.Tier)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusCreated, info)
}

// Info 查询密钥的等级、配额与用量
func (h *KeyHandler) Info(c context.Context, ctx *app.RequestContext) {
	key := ctx.Param("apiKey")
	info, err := h.keys.GetKeyInfo(c, key)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, info)
}

type upgradeRequest struct {
	Tier string `json:"tier"`
}

// Upgrade 调整密钥等级
func (h *KeyHandler) Upgrade(c context.Context, ctx *app.RequestContext) {
	key := ctx.Param("apiKey")

	var req upgradeRequest
	if err := ctx.BindJSON(&req); err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "请求体不是合法JSON"})
		return
	}

	info, err := h.keys.UpdateTier(c, key, req.Tier)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, info)
}

// UsageStats 全局用量统计快照
func (h *KeyHandler) UsageStats(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, utils.H{
		"health":        h.tracker.Health(),
		"errorRate":     h.tracker.ErrorRate(),
		"cacheHitRate":  h.tracker.CacheHitRate(),
		"avgDurationMs": h.tracker.AvgDurationMS(),
		"avgAtsScore":   h.tracker.AvgATSScore(),
		"snapshot":      h.tracker.Snapshot(),
	})
}

// UsageExport 用量数据导出，format=json|csv，premium及以上可用
func (h *KeyHandler) UsageExport(c context.Context, ctx *app.RequestContext) {
	key := string(ctx.GetHeader("X-API-Key"))
	info, err := h.keys.Validate(c, key)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	if !apikey.HasFeature(info.Tier, "export") {
		RespondError(ctx, &apikey.KeyError{Key: key, Op: "export", BaseErr: apikey.ErrFeatureNotAllowed, Detail: "export"})
		return
	}

	format := ctx.DefaultQuery("format", "json")
	switch format {
	case "csv":
		data, exportErr := h.admin.ExportCSV("api:" + info.Name)
		if exportErr != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "导出失败"})
			return
		}
		ctx.Response.Header.Set("Content-Disposition", `attachment; filename="usage.csv"`)
		ctx.Data(consts.StatusOK, "text/csv; charset=utf-8", data)
	case "json":
		data, exportErr := h.admin.ExportJSON("api:" + info.Name)
		if exportErr != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "导出失败"})
			return
		}
		ctx.Response.Header.Set("Content-Disposition", `attachment; filename="usage.json"`)
		ctx.Data(consts.StatusOK, "application/json; charset=utf-8", data)
	default:
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "format只支持json或csv"})
	}
}
