package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-analyzer-go/internal/types"
)

// stubChatModel 返回固定内容或固定错误的模型桩
type stubChatModel struct {
	content string
	err     error
}

func (s *stubChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.content, nil), nil
}

func (s *stubChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (s *stubChatModel) BindTools(tools []*schema.ToolInfo) error { return nil }

func assertScoresInRange(t *testing.T, result *types.AnalysisResult) {
	t.Helper()
	for _, s := range []int{
		result.OverallScore,
		result.Scores.Content, result.Scores.Structure, result.Scores.Formatting,
		result.Scores.IndustryAlignment, result.Scores.Length,
	} {
		assert.GreaterOrEqual(t, s, 1)
		assert.LessOrEqual(t, s, 10)
	}
}

func TestFallbackScoringEndToEnd(t *testing.T) {
	scorer := NewScorer(nil)
	result, err := scorer.Analyze(context.Background(), sampleResume)
	require.NoError(t, err)

	assert.Equal(t, types.SourceFallback, result.Source)
	assertScoresInRange(t, result)

	assert.Contains(t, result.Metrics.SectionsFound, "experience")
	assert.Contains(t, result.Metrics.SectionsFound, "education")
	assert.GreaterOrEqual(t, result.ATSCompatibility.Score, 1)
	assert.LessOrEqual(t, result.ATSCompatibility.Score, 10)

	assert.NotEmpty(t, result.Feedback.Strengths)
	assert.NotEmpty(t, result.Feedback.Improvements)
	assert.NotEmpty(t, result.Feedback.Summary)
}

func TestFallbackScoringEmptyInput(t *testing.T) {
	scorer := NewScorer(nil)
	result, err := scorer.Analyze(context.Background(), "")
	require.NoError(t, err)

	// 空输入也必须产出收敛在[1,10]的分数，绝不能出现越界或NaN
	assertScoresInRange(t, result)
	assert.Equal(t, types.SourceFallback, result.Source)
}

func TestFallbackScoringDeterministic(t *testing.T) {
	scorer := NewScorer(nil)
	first, err := scorer.Analyze(context.Background(), sampleResume)
	require.NoError(t, err)

	second, err := scorer.Analyze(context.Background(), sampleResume)
	require.NoError(t, err)

	assert.Equal(t, first.OverallScore, second.OverallScore)
	assert.Equal(t, first.Scores, second.Scores)
}

func TestLLMScoringSuccess(t *testing.T) {
	llmJSON := `{"overallScore": 8,
		"scores": {"content": 8, "structure": 7, "formatting": 9, "industryAlignment": 8, "length": 7},
		"strengths": ["clear impact statements"],
		"improvements": ["add certifications"],
		"summary": "Strong technical resume."}`

	scorer := NewScorer(&stubChatModel{content: llmJSON})
	result, err := scorer.Analyze(context.Background(), sampleResume)
	require.NoError(t, err)

	assert.Equal(t, types.SourceLLM, result.Source)
	assert.Equal(t, 8, result.OverallScore)
	assert.Equal(t, []string{"clear impact statements"}, result.Feedback.Strengths)
}

func TestLLMFailureFallsBackSilently(t *testing.T) {
	cases := []*stubChatModel{
		{err: errors.New("connection refused")},
		{content: "I'm sorry, I can't score this resume."},
		{content: `{"overallScore": 42, "scores": {"content": 8, "structure": 7, "formatting": 9, "industryAlignment": 8, "length": 7}}`},
	}

	for _, stub := range cases {
		scorer := NewScorer(stub, WithLLMTimeout(time.Second))
		result, err := scorer.Analyze(context.Background(), sampleResume)
		require.NoError(t, err)
		assert.Equal(t, types.SourceFallback, result.Source)
		assertScoresInRange(t, result)
	}
}

func TestAnalyzeWithIndustryUsesForcedProfile(t *testing.T) {
	scorer := NewScorer(nil)
	result, err := scorer.AnalyzeWithIndustry(context.Background(), sampleResume, "finance")
	require.NoError(t, err)

	assert.Equal(t, "finance", result.IndustryAnalysis.Industry)
	assertScoresInRange(t, result)
}

func TestParseLLMResponse(t *testing.T) {
	valid := "```json\n{\"overallScore\": 7, \"scores\": {\"content\": 7, \"structure\": 6, \"formatting\": 8, \"industryAlignment\": 7, \"length\": 6}, \"strengths\": [], \"improvements\": [], \"summary\": \"ok\"}\n```"
	resp, err := parseLLMResponse(valid)
	require.NoError(t, err)
	assert.Equal(t, 7, resp.OverallScore)

	// JSON前后附带说明文字也要能解析
	wrapped := "Here is the analysis: {\"overallScore\": 6, \"scores\": {\"content\": 6, \"structure\": 6, \"formatting\": 6, \"industryAlignment\": 6, \"length\": 6}, \"summary\": \"ok\"} hope it helps"
	resp, err = parseLLMResponse(wrapped)
	require.NoError(t, err)
	assert.Equal(t, 6, resp.OverallScore)

	_, err = parseLLMResponse("not json at all")
	assert.Error(t, err)

	outOfRange := `{"overallScore": 0, "scores": {"content": 6, "structure": 6, "formatting": 6, "industryAlignment": 6, "length": 6}}`
	_, err = parseLLMResponse(outOfRange)
	assert.Error(t, err)
}

func TestLengthScore(t *testing.T) {
	ia := types.IndustryAnalysis{PreferredPagesMin: 1, PreferredPagesMax: 2}

	assert.Equal(t, lengthScoreIdeal, lengthScore(1, ia))
	assert.Equal(t, lengthScoreIdeal, lengthScore(2, ia))
	assert.Equal(t, lengthScoreSlightly, lengthScore(3, ia))
	assert.Equal(t, lengthScoreTooLong, lengthScore(4, ia))
	assert.Equal(t, lengthScoreTooShort, lengthScore(0, ia))
}
