package handler

import (
	"context"
	"io"
	"mime/multipart"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-analyzer-go/internal/analyzer"
	"resume-analyzer-go/internal/apikey"
	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/queue"
	"resume-analyzer-go/internal/usage"
)

// AnalyzeHandler 简历分析相关接口
type AnalyzeHandler struct {
	proc    *processor.ResumeProcessor
	queue   *queue.Queue
	keys    *apikey.Manager
	tracker *usage.Tracker
}

// NewAnalyzeHandler 创建分析接口处理器。queue可为nil（异步接口返回503）。
func NewAnalyzeHandler(proc *processor.ResumeProcessor, q *queue.Queue, keys *apikey.Manager, tracker *usage.Tracker) *AnalyzeHandler {
	return &AnalyzeHandler{
		proc:    proc,
		queue:   q,
		keys:    keys,
		tracker: tracker,
	}
}

func readUpload(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

// Analyze 同步分析单份简历。multipart字段resume，可选industry。
func (h *AnalyzeHandler) Analyze(c context.Context, ctx *app.RequestContext) {
	start := time.Now()
	key := string(ctx.GetHeader("X-API-Key"))

	fileHeader, err := ctx.FormFile("resume")
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "缺少resume文件字段"})
		return
	}
	if fileHeader.Size > constants.MaxFileSizeBytes {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件超过5MB限制"})
		return
	}

	data, err := readUpload(fileHeader)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取上传文件失败"})
		return
	}

	industry := ctx.PostForm("industry")
	mimeType := fileHeader.Header.Get("Content-Type")

	result, err := h.proc.ProcessFile(c, fileHeader.Filename, data, mimeType, industry)

	event := usage.Event{
		Endpoint:   "analyze",
		APIKey:     key,
		Success:    err == nil,
		DurationMS: time.Since(start).Milliseconds(),
		FileSize:   fileHeader.Size,
	}
	if err == nil {
		event.ATSScore = result.ATSCompatibility.Score
		event.Industry = result.IndustryAnalysis.Industry
		event.Source = result.Source
	} else {
		event.ErrorType = errorType(err)
	}
	h.tracker.RecordRequest(event)

	if err != nil {
		RespondError(ctx, err)
		return
	}

	if recordErr := h.keys.RecordUsage(c, key); recordErr != nil {
		logger.Warn().Err(recordErr).Msg("记录密钥用量失败")
	}

	ctx.JSON(consts.StatusOK, utils.H{
		"filename": fileHeader.Filename,
		"analysis": result,
	})
}

// BulkAnalyze 批量异步分析。multipart字段resumes，最多10个文件。
// 需要密钥具备bulk_analyze功能。
func (h *AnalyzeHandler) BulkAnalyze(c context.Context, ctx *app.RequestContext) {
	key := string(ctx.GetHeader("X-API-Key"))

	if h.queue == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "异步任务队列未启用"})
		return
	}

	info, err := h.keys.Validate(c, key)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	if !apikey.HasFeature(info.Tier, "bulk_analyze") {
		RespondError(ctx, &apikey.KeyError{Key: key, Op: "bulk", BaseErr: apikey.ErrFeatureNotAllowed, Detail: "bulk_analyze"})
		return
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "解析multipart表单失败"})
		return
	}
	fileHeaders := form.File["resumes"]
	if len(fileHeaders) == 0 {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "缺少resumes文件字段"})
		return
	}
	if len(fileHeaders) > info.Limits.MaxBatchSize {
		ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件数超出当前等级的批量上限"})
		return
	}

	files := make([]queue.FileUpload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		if fh.Size > constants.MaxFileSizeBytes {
			ctx.JSON(consts.StatusBadRequest, utils.H{"error": "文件超过5MB限制: " + fh.Filename})
			return
		}
		data, readErr := readUpload(fh)
		if readErr != nil {
			ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "读取上传文件失败: " + fh.Filename})
			return
		}
		files = append(files, queue.FileUpload{
			Filename: fh.Filename,
			Data:     data,
			MimeType: fh.Header.Get("Content-Type"),
		})
	}

	jobID, err := h.queue.EnqueueBulk(c, key, files, ctx.PostForm("industry"))
	if err != nil {
		RespondError(ctx, err)
		return
	}

	if recordErr := h.keys.RecordUsage(c, key); recordErr != nil {
		logger.Warn().Err(recordErr).Msg("记录密钥用量失败")
	}
	h.tracker.RecordRequest(usage.Event{
		Endpoint: "bulk_analyze",
		APIKey:   key,
		Success:  true,
	})

	ctx.JSON(consts.StatusAccepted, utils.H{
		"jobId":      jobID,
		"status":     constants.JobStatusQueued,
		"totalFiles": len(files),
	})
}

// JobStatus 查询异步任务状态。未知任务返回status=not_found而不是404。
func (h *AnalyzeHandler) JobStatus(c context.Context, ctx *app.RequestContext) {
	if h.queue == nil {
		ctx.JSON(consts.StatusServiceUnavailable, utils.H{"error": "异步任务队列未启用"})
		return
	}

	jobID := ctx.Param("jobId")
	state, err := h.queue.GetJob(c, jobID)
	if err != nil {
		ctx.JSON(consts.StatusInternalServerError, utils.H{"error": "查询任务状态失败"})
		return
	}
	ctx.JSON(consts.StatusOK, state)
}

// Industries 列出支持的行业画像
func (h *AnalyzeHandler) Industries(c context.Context, ctx *app.RequestContext) {
	type industryView struct {
		ID                string `json:"id"`
		Name              string `json:"name"`
		PreferredPagesMin int    `json:"preferredPagesMin"`
		PreferredPagesMax int    `json:"preferredPagesMax"`
	}

	profiles := analyzer.Profiles()
	views := make([]industryView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, industryView{
			ID:                p.ID,
			Name:              p.Name,
			PreferredPagesMin: p.PreferredPagesMin,
			PreferredPagesMax: p.PreferredPagesMax,
		})
	}
	ctx.JSON(consts.StatusOK, utils.H{"industries": views})
}

// Health 存活检查与基础健康指标
func (h *AnalyzeHandler) Health(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, utils.H{
		"status":        "ok",
		"health":        h.tracker.Health(),
		"totalRequests": h.tracker.Snapshot().TotalRequests,
		"errorRate":     h.tracker.ErrorRate(),
		"cacheHitRate":  h.tracker.CacheHitRate(),
	})
}
