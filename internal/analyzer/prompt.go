package analyzer

import (
	"encoding/json"
	"fmt"
	"strings"

	"resume-analyzer-go/internal/types"
)

// maxPromptExcerptChars 提示词中嵌入的简历文本上限，超出部分截断
const maxPromptExcerptChars = 4000

// analysisPromptTemplate 固定提示模板，要求模型只返回严格JSON
const analysisPromptTemplate = `You are a professional resume reviewer. Analyze the resume below for the %s industry.

Industry context:
- Matched keywords: %s
- Required sections present: %s
- Missing sections: %s

Score each criterion from 1 to 10 and respond with ONLY valid JSON (no markdown, no commentary) in exactly this shape:
{
  "overallScore": 7,
  "scores": {"content": 7, "structure": 7, "formatting": 7, "industryAlignment": 7, "length": 7},
  "strengths": ["..."],
  "improvements": ["..."],
  "summary": "one paragraph verdict"
}

Resume text:
"""
%s
"""`

// llmAnalysisResponse LLM返回的结构化评分
type llmAnalysisResponse struct {
	OverallScore int `json:"overallScore"`
	Scores       struct {
		Content           int `json:"content"`
		Structure         int `json:"structure"`
		Formatting        int `json:"formatting"`
		IndustryAlignment int `json:"industryAlignment"`
		Length            int `json:"length"`
	} `json:"scores"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
	Summary      string   `json:"summary"`
}

// buildAnalysisPrompt 组装提示词，简历文本只取前4000个字符
func buildAnalysisPrompt(text string, ia types.IndustryAnalysis) string {
	excerpt := text
	if len(excerpt) > maxPromptExcerptChars {
		excerpt = excerpt[:maxPromptExcerptChars]
	}

	return fmt.Sprintf(analysisPromptTemplate,
		ia.IndustryName,
		joinOrNone(ia.MatchedKeywords),
		joinOrNone(ia.SectionsFound),
		joinOrNone(ia.SectionsMissing),
		excerpt,
	)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}

// parseLLMResponse 解析模型返回，容忍markdown代码块包裹；
// 分数越界或缺失视为格式错误，由上层转入规则打分兜底
func parseLLMResponse(raw string) (*llmAnalysisResponse, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	// 模型偶尔在JSON前后附加说明文字，截取首尾花括号之间的部分
	if start := strings.Index(content, "{"); start > 0 {
		content = content[start:]
	}
	if end := strings.LastIndex(content, "}"); end >= 0 && end < len(content)-1 {
		content = content[:end+1]
	}

	var resp llmAnalysisResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("LLM响应不是合法JSON: %w", err)
	}

	for _, s := range []int{
		resp.OverallScore,
		resp.Scores.Content, resp.Scores.Structure, resp.Scores.Formatting,
		resp.Scores.IndustryAlignment, resp.Scores.Length,
	} {
		if s < 1 || s > 10 {
			return nil, fmt.Errorf("LLM响应分数越界: %d", s)
		}
	}

	return &resp, nil
}
