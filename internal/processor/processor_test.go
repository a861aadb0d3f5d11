package processor

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-analyzer-go/internal/analyzer"
	"resume-analyzer-go/internal/cache"
	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/extractor"
)

// passthroughExtractor 把文件内容原样当作文本返回，便于构造确定性输入
type passthroughExtractor struct{}

func (passthroughExtractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	if mimeType == "application/x-unknown" {
		return "", extractor.ErrUnsupportedFileType
	}
	if bytes.Equal(data, []byte("corrupted")) {
		return "", errors.New("文件结构损坏")
	}
	return string(data), nil
}

const testResume = `Experience
Software engineer with 5 years of Python development.
Developed services, improved latency, managed releases.

Education
Bachelor's degree in Computer Science.

Skills
Python, SQL, Docker
Contact: dev@example.com 555-123-4567`

func newTestProcessor(c *cache.Cache) *ResumeProcessor {
	return NewResumeProcessor(passthroughExtractor{}, analyzer.NewScorer(nil), c)
}

func TestProcessFileValidation(t *testing.T) {
	p := newTestProcessor(nil)
	ctx := context.Background()

	_, err := p.ProcessFile(ctx, "empty.pdf", nil, extractor.MimePDF, "")
	assert.ErrorIs(t, err, ErrEmptyFile)

	huge := make([]byte, constants.MaxFileSizeBytes+1)
	_, err = p.ProcessFile(ctx, "huge.pdf", huge, extractor.MimePDF, "")
	assert.ErrorIs(t, err, ErrFileTooLarge)

	_, err = p.ProcessFile(ctx, "weird.xyz", []byte("data"), "application/x-unknown", "")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = p.ProcessFile(ctx, "bad.pdf", []byte("corrupted"), extractor.MimePDF, "")
	assert.ErrorIs(t, err, ErrExtractFailed)

	_, err = p.ProcessFile(ctx, "blank.pdf", []byte("   \n\t  "), extractor.MimePDF, "")
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestProcessFileSuccess(t *testing.T) {
	p := newTestProcessor(nil)

	result, err := p.ProcessFile(context.Background(), "resume.pdf", []byte(testResume), extractor.MimePDF, "")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.OverallScore, 1)
	assert.LessOrEqual(t, result.OverallScore, 10)
	assert.Contains(t, result.Metrics.SectionsFound, "experience")
	assert.Contains(t, result.Metrics.SectionsFound, "education")
}

func TestProcessFileCacheReuse(t *testing.T) {
	c := cache.New(nil, nil)
	defer c.Close()
	p := newTestProcessor(c)
	ctx := context.Background()

	first, err := p.ProcessFile(ctx, "alice.pdf", []byte(testResume), extractor.MimePDF, "")
	require.NoError(t, err)

	// 相同内容、不同文件名命中同一条缓存
	second, err := p.ProcessFile(ctx, "bob.pdf", []byte(testResume), extractor.MimePDF, "")
	require.NoError(t, err)
	assert.Equal(t, first.AnalyzedAt, second.AnalyzedAt)

	hits, _, _ := c.Stats()
	assert.Equal(t, int64(1), hits)
}

func TestForcedIndustryHasSeparateCacheEntry(t *testing.T) {
	c := cache.New(nil, nil)
	defer c.Close()
	p := newTestProcessor(c)
	ctx := context.Background()

	auto, err := p.ProcessFile(ctx, "resume.pdf", []byte(testResume), extractor.MimePDF, "")
	require.NoError(t, err)

	forced, err := p.ProcessFile(ctx, "resume.pdf", []byte(testResume), extractor.MimePDF, "finance")
	require.NoError(t, err)

	assert.NotEqual(t, auto.IndustryAnalysis.Industry, forced.IndustryAnalysis.Industry)
	assert.Equal(t, "finance", forced.IndustryAnalysis.Industry)
}

func TestProcessErrorWrapping(t *testing.T) {
	err := &ProcessError{Filename: "a.pdf", Op: "extract", BaseErr: ErrExtractFailed, Detail: "bad xref"}
	assert.True(t, errors.Is(err, ErrExtractFailed))
	assert.Contains(t, err.Error(), "a.pdf")
}
