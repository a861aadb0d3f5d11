package analyzer

import "errors"

// 分析阶段的预定义错误
var (
	// ErrAnalysisFailed LLM与规则打分均不可用时返回
	ErrAnalysisFailed = errors.New("简历分析失败")
	// ErrEmptyResume 提取到的文本为空
	ErrEmptyResume = errors.New("简历内容为空")
)
