package handler

import (
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"resume-analyzer-go/internal/apikey"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/queue"
)

// RespondError 按错误类型映射HTTP状态码：
// 校验类400，认证类401，配额/限流429，其余500
func RespondError(ctx *app.RequestContext, err error) {
	status := consts.StatusInternalServerError

	switch {
	case errors.Is(err, processor.ErrFileTooLarge),
		errors.Is(err, processor.ErrEmptyFile),
		errors.Is(err, processor.ErrUnsupportedType),
		errors.Is(err, queue.ErrTooManyFiles),
		errors.Is(err, apikey.ErrInvalidTier):
		status = consts.StatusBadRequest

	case errors.Is(err, apikey.ErrInvalidKey),
		errors.Is(err, apikey.ErrInactiveKey):
		status = consts.StatusUnauthorized

	case errors.Is(err, apikey.ErrFeatureNotAllowed):
		status = consts.StatusForbidden

	case errors.Is(err, apikey.ErrDailyLimitExceeded),
		errors.Is(err, apikey.ErrMonthlyLimitExceeded):
		status = consts.StatusTooManyRequests
	}

	ctx.JSON(status, utils.H{"error": err.Error()})
}

// errorType 将失败归入用量统计的错误类别
func errorType(err error) string {
	switch {
	case errors.Is(err, processor.ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, processor.ErrEmptyFile):
		return "empty_file"
	case errors.Is(err, processor.ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, processor.ErrExtractFailed):
		return "extract_failed"
	case errors.Is(err, processor.ErrAnalyzeFailed):
		return "analyze_failed"
	case errors.Is(err, apikey.ErrDailyLimitExceeded),
		errors.Is(err, apikey.ErrMonthlyLimitExceeded):
		return "quota_exceeded"
	default:
		return "internal"
	}
}
