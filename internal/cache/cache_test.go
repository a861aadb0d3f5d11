package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/types"
)

func TestKeyDeterministic(t *testing.T) {
	content := []byte("Experience: 5 years of Python development")

	// 相同内容（与文件名无关）永远生成相同的键
	assert.Equal(t, Key(constants.CacheKindAnalysis, content), Key(constants.CacheKindAnalysis, content))

	assert.NotEqual(t,
		Key(constants.CacheKindAnalysis, content),
		Key(constants.CacheKindAnalysis, []byte("different content")))

	// 结果类型参与键的组成
	assert.NotEqual(t,
		Key(constants.CacheKindAnalysis, content),
		Key(constants.CacheKindATS, content))
}

func TestLocalRoundTrip(t *testing.T) {
	c := New(nil, nil)
	defer c.Close()
	ctx := context.Background()

	key := Key(constants.CacheKindAnalysis, []byte("some resume text"))

	_, ok := c.GetAnalysis(ctx, key)
	require.False(t, ok)

	want := &types.AnalysisResult{
		OverallScore: 7,
		Source:       types.SourceFallback,
		Scores:       types.CriterionScores{Content: 7, Structure: 6, Formatting: 8, IndustryAlignment: 7, Length: 6},
	}
	c.SetAnalysis(ctx, key, want, time.Minute)

	got, ok := c.GetAnalysis(ctx, key)
	require.True(t, ok)
	assert.Equal(t, want.OverallScore, got.OverallScore)
	assert.Equal(t, want.Scores, got.Scores)
	assert.Equal(t, want.Source, got.Source)
}

func TestExpiredEntryMisses(t *testing.T) {
	c := New(nil, nil)
	defer c.Close()
	ctx := context.Background()

	key := Key(constants.CacheKindAnalysis, []byte("short lived"))
	c.SetAnalysis(ctx, key, &types.AnalysisResult{OverallScore: 5}, -time.Second)

	_, ok := c.GetAnalysis(ctx, key)
	assert.False(t, ok)
}

func TestStatsAndHitRate(t *testing.T) {
	c := New(nil, nil)
	defer c.Close()
	ctx := context.Background()

	assert.Zero(t, c.HitRate())

	key := Key(constants.CacheKindAnalysis, []byte("text"))
	c.SetAnalysis(ctx, key, &types.AnalysisResult{OverallScore: 6}, time.Minute)

	c.GetAnalysis(ctx, key)                // hit
	c.GetAnalysis(ctx, "app:cache:nohit")  // miss

	hits, misses, entries := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1, entries)
	assert.InDelta(t, 0.5, c.HitRate(), 1e-9)
}

func TestClearEmptiesLocal(t *testing.T) {
	c := New(nil, nil)
	defer c.Close()
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		c.SetAnalysis(ctx, Key(constants.CacheKindAnalysis, []byte(text)), &types.AnalysisResult{}, time.Minute)
	}

	removed := c.Clear(ctx)
	assert.Equal(t, 3, removed)

	_, _, entries := c.Stats()
	assert.Zero(t, entries)
}

func TestTTLForKind(t *testing.T) {
	assert.Equal(t, constants.AnalysisCacheTTL, TTLForKind(constants.CacheKindAnalysis))
	assert.Equal(t, constants.IndustryCacheTTL, TTLForKind(constants.CacheKindIndustry))
	assert.Equal(t, constants.ATSCacheTTL, TTLForKind(constants.CacheKindATS))
	assert.Equal(t, constants.AnalysisCacheTTL, TTLForKind("unknown"))
}
