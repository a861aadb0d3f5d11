package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-analyzer-go/internal/types"
)

func TestClassifyIndustryDeterministic(t *testing.T) {
	metrics := CalculateMetrics(sampleResume)

	first := ClassifyIndustry(sampleResume, metrics)
	require.Equal(t, "technology", first.Industry)

	// 同一文本重复分类必须得到完全一致的结果
	for i := 0; i < 50; i++ {
		got := ClassifyIndustry(sampleResume, metrics)
		assert.Equal(t, first.Industry, got.Industry)
		assert.Equal(t, first.MatchRatio, got.MatchRatio)
		assert.Equal(t, first.MatchedKeywords, got.MatchedKeywords)
	}
}

func TestClassifyIndustryGeneralFallback(t *testing.T) {
	text := "I enjoy hiking, photography and cooking on weekends."
	ia := ClassifyIndustry(text, CalculateMetrics(text))

	assert.Equal(t, "general", ia.Industry)
	assert.Zero(t, ia.MatchRatio)
	assert.Empty(t, ia.MatchedKeywords)
}

func TestClassifyForProfile(t *testing.T) {
	metrics := CalculateMetrics(sampleResume)

	// 行业与文本不匹配时仍按指定画像出报告
	ia := ClassifyForProfile(sampleResume, metrics, "finance")
	assert.Equal(t, "finance", ia.Industry)
	assert.Equal(t, "Finance", ia.IndustryName)

	// 未知行业ID回退到general
	ia = ClassifyForProfile(sampleResume, metrics, "astrology")
	assert.Equal(t, "general", ia.Industry)
}

func TestProfileByID(t *testing.T) {
	assert.Equal(t, "technology", ProfileByID("technology").ID)
	assert.Equal(t, "general", ProfileByID("nope").ID)
	assert.Len(t, Profiles(), 6)
}

func TestBlendScoresStaysInRange(t *testing.T) {
	cases := []types.CriterionScores{
		{Content: 1, Structure: 1, Formatting: 1, IndustryAlignment: 1, Length: 1},
		{Content: 10, Structure: 10, Formatting: 10, IndustryAlignment: 10, Length: 10},
		{Content: 5, Structure: 7, Formatting: 3, IndustryAlignment: 8, Length: 6},
	}
	analyses := []types.IndustryAnalysis{
		{Industry: "technology", SkillsFound: []string{"programming", "cloud", "api"}},
		{Industry: "general", SkillsMissing: []string{"a", "b"}, SectionsMissing: []string{"experience"}},
		{Industry: "finance", MatchedKeywords: make([]string, 9)},
	}

	for _, scores := range cases {
		for _, ia := range analyses {
			adjusted, overall := BlendScores(scores, ia)
			for _, s := range []int{adjusted.Content, adjusted.Structure, adjusted.Formatting, adjusted.IndustryAlignment, adjusted.Length, overall} {
				assert.GreaterOrEqual(t, s, 1)
				assert.LessOrEqual(t, s, 10)
			}
		}
	}
}
