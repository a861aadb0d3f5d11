package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrFileTooLarge    = errors.New("文件超过大小限制")
	ErrEmptyFile       = errors.New("文件内容为空")
	ErrExtractFailed   = errors.New("提取简历文本失败")
	ErrAnalyzeFailed   = errors.New("简历分析失败")
	ErrUnsupportedType = errors.New("不支持的文件类型")
)

// ProcessError 包含文件上下文的自定义错误
type ProcessError struct {
	Filename string
	Op       string
	BaseErr  error
	Detail   string
}

func (e *ProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 文件:%s): %s", e.BaseErr, e.Op, e.Filename, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 文件:%s)", e.BaseErr, e.Op, e.Filename)
}

func (e *ProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}
