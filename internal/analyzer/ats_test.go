package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckFormattingBulletDeduction(t *testing.T) {
	base := "Experience with software development. Managed projects and led teams to results."
	baseline := checkFormatting(base)
	require.Equal(t, 10, baseline.Score)

	// 25个圆点符号只触发"项目符号过多"一条规则，恰好扣1分。
	// 圆点本身不计入非ASCII统计。
	withBullets := base + "\n" + strings.Repeat("• item\n", 25)
	got := checkFormatting(withBullets)
	assert.Equal(t, baseline.Score-1, got.Score)
	assert.Len(t, got.Issues, 1)
}

func TestCheckFormattingNonASCII(t *testing.T) {
	text := "résumé with many accented characters: àéîõü çñß"
	got := checkFormatting(text)
	assert.Equal(t, 8, got.Score)
	assert.NotEmpty(t, got.Issues)
}

func TestCheckKeywordsLowDensity(t *testing.T) {
	got := checkKeywords("lorem ipsum dolor sit amet", CalculateMetrics("lorem ipsum dolor sit amet"))
	assert.Equal(t, 7, got.Score)
}

func TestCheckStructureHeaders(t *testing.T) {
	text := "Experience\nAcme Corp\n\nEducation\nState University\n\nSkills\nGo, SQL"
	got := checkStructure(text)
	assert.NotContains(t, strings.Join(got.Issues, " "), "章节头")

	sparse := checkStructure("just one paragraph of prose without any headers at all, long enough to not be a short line")
	assert.Less(t, sparse.Score, got.Score)
}

func TestCheckStructureYearOrder(t *testing.T) {
	reversed := "Experience\n2024 Senior Engineer\n2021 Engineer\nEducation\n2019 Bachelor\nSkills\nGo"
	chronological := "Experience\n2019 Engineer\n2021 Senior Engineer\nEducation\n2024 MBA\nSkills\nGo"

	assert.Greater(t, checkStructure(reversed).Score, checkStructure(chronological).Score)
}

func TestCheckATSAggregation(t *testing.T) {
	result := CheckATS(sampleResume, CalculateMetrics(sampleResume))

	assert.GreaterOrEqual(t, result.Score, 1)
	assert.LessOrEqual(t, result.Score, 10)
	assert.Equal(t, 8, result.FileFormat.Score)
	// recommendations始终包含general块
	require.NotEmpty(t, result.Recommendations)
	last := result.Recommendations[len(result.Recommendations)-1]
	assert.Equal(t, "general", last.Category)
}

func TestCheckATSEmptyInput(t *testing.T) {
	result := CheckATS("", CalculateMetrics(""))
	assert.GreaterOrEqual(t, result.Score, 1)
	assert.LessOrEqual(t, result.Score, 10)
	assert.Equal(t, result.Score >= 7, result.Friendly)
}
