package handler

import (
	"fmt"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"

	"resume-analyzer-go/internal/apikey"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/queue"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{processor.ErrFileTooLarge, consts.StatusBadRequest},
		{processor.ErrEmptyFile, consts.StatusBadRequest},
		{processor.ErrUnsupportedType, consts.StatusBadRequest},
		{queue.ErrTooManyFiles, consts.StatusBadRequest},
		{apikey.ErrInvalidTier, consts.StatusBadRequest},
		{apikey.ErrInvalidKey, consts.StatusUnauthorized},
		{apikey.ErrInactiveKey, consts.StatusUnauthorized},
		{apikey.ErrFeatureNotAllowed, consts.StatusForbidden},
		{apikey.ErrDailyLimitExceeded, consts.StatusTooManyRequests},
		{apikey.ErrMonthlyLimitExceeded, consts.StatusTooManyRequests},
		{fmt.Errorf("数据库连接失败"), consts.StatusInternalServerError},
	}

	for _, tc := range cases {
		ctx := app.NewContext(16)
		RespondError(ctx, tc.err)
		assert.Equalf(t, tc.want, ctx.Response.StatusCode(), "error: %v", tc.err)
	}
}

func TestRespondErrorWrappedErrors(t *testing.T) {
	// 包装后的错误仍按底层哨兵错误映射
	wrapped := &processor.ProcessError{
		Filename: "resume.pdf",
		Op:       "validate",
		BaseErr:  processor.ErrFileTooLarge,
	}
	ctx := app.NewContext(16)
	RespondError(ctx, wrapped)
	assert.Equal(t, consts.StatusBadRequest, ctx.Response.StatusCode())

	keyErr := &apikey.KeyError{Op: "validate", Key: "ra_0123456789abcdef", BaseErr: apikey.ErrDailyLimitExceeded}
	ctx = app.NewContext(16)
	RespondError(ctx, keyErr)
	assert.Equal(t, consts.StatusTooManyRequests, ctx.Response.StatusCode())
}
