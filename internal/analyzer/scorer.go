package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/types"
)

// 规则打分用的固定幅度加分阈值
const (
	fallbackSeedScore       = 5
	wordCountBoostThreshold = 300
	wordCountRichThreshold  = 600
	wordCountLowThreshold   = 150
	minAchievementVerbs     = 3

	// 长度评分：页数落在行业偏好区间内9分，超一页7分，超更多4分，不足5分
	lengthScoreIdeal    = 9
	lengthScoreSlightly = 7
	lengthScoreTooLong  = 4
	lengthScoreTooShort = 5

	defaultLLMTimeout = 60 * time.Second
)

// durationPhraseRe 经验年限表述，如 "5 years"、"3+ 年"
var durationPhraseRe = regexp.MustCompile(`(?i)\b\d+\+?\s*(years?|yrs?|年)`)

// Scorer 简历打分器。优先走LLM，任何失败静默降级到规则打分
type Scorer struct {
	chatModel  model.ChatModel
	llmTimeout time.Duration
}

// ScorerOption 打分器可选配置
type ScorerOption func(*Scorer)

// WithLLMTimeout 覆盖默认的LLM调用超时
func WithLLMTimeout(d time.Duration) ScorerOption {
	return func(s *Scorer) {
		if d > 0 {
			s.llmTimeout = d
		}
	}
}

// NewScorer 创建打分器。chatModel为nil时只使用规则打分
func NewScorer(chatModel model.ChatModel, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		chatModel:  chatModel,
		llmTimeout: defaultLLMTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze 执行完整分析流水线：指标统计 -> 行业分类 -> ATS检测 -> 打分
func (s *Scorer) Analyze(ctx context.Context, text string) (*types.AnalysisResult, error) {
	return s.analyze(ctx, text, "")
}

// AnalyzeWithIndustry 用指定行业代替自动分类执行完整流水线
func (s *Scorer) AnalyzeWithIndustry(ctx context.Context, text, industryID string) (*types.AnalysisResult, error) {
	return s.analyze(ctx, text, industryID)
}

func (s *Scorer) analyze(ctx context.Context, text, industryID string) (*types.AnalysisResult, error) {
	metrics := CalculateMetrics(text)
	var ia types.IndustryAnalysis
	if industryID != "" {
		ia = ClassifyForProfile(text, metrics, industryID)
	} else {
		ia = ClassifyIndustry(text, metrics)
	}
	ats := CheckATS(text, metrics)

	result := &types.AnalysisResult{
		Metrics:          metrics,
		IndustryAnalysis: ia,
		ATSCompatibility: ats,
		AnalyzedAt:       time.Now().UTC(),
	}

	if s.chatModel != nil {
		if err := s.scoreWithLLM(ctx, text, ia, result); err == nil {
			result.Source = types.SourceLLM
			return result, nil
		} else {
			logger.Warn().Err(err).Msg("LLM打分失败，降级到规则打分")
		}
	}

	s.scoreWithRules(text, metrics, ia, result)
	result.Source = types.SourceFallback
	return result, nil
}

// scoreWithLLM 调用模型打分并回填result，任何环节出错都返回error交给调用方降级
func (s *Scorer) scoreWithLLM(ctx context.Context, text string, ia types.IndustryAnalysis, result *types.AnalysisResult) error {
	llmCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	prompt := buildAnalysisPrompt(text, ia)
	messages := []*schema.Message{
		schema.SystemMessage("You are a strict resume reviewer that responds only with JSON."),
		schema.UserMessage(prompt),
	}

	start := time.Now()
	resp, err := s.chatModel.Generate(llmCtx, messages)
	if err != nil {
		return fmt.Errorf("调用LLM失败: %w", err)
	}
	logger.Debug().
		Dur("duration", time.Since(start)).
		Int("promptLen", len(prompt)).
		Msg("LLM打分调用完成")

	parsed, err := parseLLMResponse(resp.Content)
	if err != nil {
		return err
	}

	result.OverallScore = parsed.OverallScore
	result.Scores = types.CriterionScores{
		Content:           parsed.Scores.Content,
		Structure:         parsed.Scores.Structure,
		Formatting:        parsed.Scores.Formatting,
		IndustryAlignment: parsed.Scores.IndustryAlignment,
		Length:            parsed.Scores.Length,
	}

	_, _, industrySpecific := IndustryFeedback(ia)
	result.Feedback = types.Feedback{
		Strengths:        parsed.Strengths,
		Improvements:     parsed.Improvements,
		IndustrySpecific: industrySpecific,
		Summary:          parsed.Summary,
	}
	return nil
}

// scoreWithRules 确定性规则打分：五项基准分5，按固定幅度加减分
func (s *Scorer) scoreWithRules(text string, metrics types.ResumeMetrics, ia types.IndustryAnalysis, result *types.AnalysisResult) {
	scores := types.CriterionScores{
		Content:           fallbackSeedScore,
		Structure:         fallbackSeedScore,
		Formatting:        fallbackSeedScore,
		IndustryAlignment: fallbackSeedScore,
		Length:            fallbackSeedScore,
	}

	// 内容：词量阈值、经验年限表述、成就动词
	if metrics.WordCount >= wordCountBoostThreshold {
		scores.Content++
	}
	if metrics.WordCount >= wordCountRichThreshold {
		scores.Content++
	}
	if metrics.WordCount > 0 && metrics.WordCount < wordCountLowThreshold {
		scores.Content--
	}
	if durationPhraseRe.MatchString(text) {
		scores.Content++
	}
	if countAchievementVerbs(text) >= minAchievementVerbs {
		scores.Content++
	}

	// 结构：识别到的标准章节数量
	switch n := len(metrics.SectionsFound); {
	case n >= 4:
		scores.Structure += 2
	case n >= 2:
		scores.Structure++
	}

	// 排版：项目符号与联系方式的存在性
	if metrics.HasBulletPoints {
		scores.Formatting++
	}
	if metrics.HasEmail && metrics.HasPhone {
		scores.Formatting++
	}

	// 长度：估算页数对比行业偏好区间
	scores.Length = lengthScore(metrics.EstimatedPages, ia)

	scores.Content = clampScore(scores.Content)
	scores.Structure = clampScore(scores.Structure)
	scores.Formatting = clampScore(scores.Formatting)
	scores.Length = clampScore(scores.Length)

	// 行业契合度与总分由加权混合统一计算
	scores, overall := BlendScores(scores, ia)

	result.Scores = scores
	result.OverallScore = overall

	strengths, improvements, industrySpecific := IndustryFeedback(ia)
	result.Feedback = types.Feedback{
		Strengths:        appendRuleStrengths(strengths, metrics),
		Improvements:     appendRuleImprovements(improvements, metrics),
		IndustrySpecific: industrySpecific,
		Summary: fmt.Sprintf(
			"Rule-based review for the %s industry: overall %d/10 across %d words and an estimated %d page(s).",
			ia.IndustryName, overall, metrics.WordCount, metrics.EstimatedPages,
		),
	}
}

func lengthScore(pages int, ia types.IndustryAnalysis) int {
	min, max := ia.PreferredPagesMin, ia.PreferredPagesMax
	switch {
	case pages >= min && pages <= max:
		return lengthScoreIdeal
	case pages == max+1:
		return lengthScoreSlightly
	case pages > max+1:
		return lengthScoreTooLong
	default:
		return lengthScoreTooShort
	}
}

func countAchievementVerbs(text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, verb := range atsActionVerbs {
		if strings.Contains(lower, verb) {
			count++
		}
	}
	return count
}

func appendRuleStrengths(strengths []string, metrics types.ResumeMetrics) []string {
	if metrics.HasBulletPoints {
		strengths = append(strengths, "Uses bullet points to keep achievements scannable")
	}
	if metrics.HasEmail && metrics.HasPhone {
		strengths = append(strengths, "Contact information is complete and easy to find")
	}
	if len(strengths) == 0 {
		strengths = append(strengths, "Resume submitted with readable extractable text")
	}
	return strengths
}

func appendRuleImprovements(improvements []string, metrics types.ResumeMetrics) []string {
	if metrics.WordCount < wordCountLowThreshold {
		improvements = append(improvements, "Expand the resume content; it is currently very brief")
	}
	if !metrics.HasBulletPoints {
		improvements = append(improvements, "Use bullet points to structure accomplishments")
	}
	if !metrics.HasEmail || !metrics.HasPhone {
		improvements = append(improvements, "Add complete contact information (email and phone)")
	}
	if len(improvements) == 0 {
		improvements = append(improvements, "Quantify more achievements with concrete numbers")
	}
	return improvements
}
