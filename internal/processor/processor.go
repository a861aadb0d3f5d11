package processor

import (
	"context"
	"errors"
	"strings"
	"time"

	"resume-analyzer-go/internal/analyzer"
	"resume-analyzer-go/internal/cache"
	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/extractor"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/types"
)

// ResumeProcessor 同步分析流水线：提取文本 -> 查缓存 -> 打分 -> 写缓存。
// 同步接口与异步worker共用同一条流水线。
type ResumeProcessor struct {
	extractor extractor.TextExtractor
	scorer    *analyzer.Scorer
	cache     *cache.Cache
}

// NewResumeProcessor 创建处理器，cache可为nil（每次都全量分析）
func NewResumeProcessor(ext extractor.TextExtractor, scorer *analyzer.Scorer, c *cache.Cache) *ResumeProcessor {
	return &ResumeProcessor{
		extractor: ext,
		scorer:    scorer,
		cache:     c,
	}
}

// ProcessFile 分析单份简历文件。industryID为空时自动分类。
// 相同文本内容（按MD5判定）在缓存有效期内直接复用结果。
func (p *ResumeProcessor) ProcessFile(ctx context.Context, filename string, data []byte, mimeType, industryID string) (*types.AnalysisResult, error) {
	if len(data) == 0 {
		return nil, &ProcessError{Filename: filename, Op: "validate", BaseErr: ErrEmptyFile}
	}
	if len(data) > constants.MaxFileSizeBytes {
		return nil, &ProcessError{Filename: filename, Op: "validate", BaseErr: ErrFileTooLarge}
	}

	start := time.Now()

	text, err := p.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		if errors.Is(err, extractor.ErrUnsupportedFileType) {
			return nil, &ProcessError{Filename: filename, Op: "extract", BaseErr: ErrUnsupportedType, Detail: mimeType}
		}
		return nil, &ProcessError{Filename: filename, Op: "extract", BaseErr: ErrExtractFailed, Detail: err.Error()}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ProcessError{Filename: filename, Op: "extract", BaseErr: ErrEmptyFile, Detail: "提取到的文本为空"}
	}

	return p.ProcessText(ctx, filename, text, industryID, start)
}

// ProcessText 对已提取的文本执行缓存查询与打分
func (p *ResumeProcessor) ProcessText(ctx context.Context, filename, text, industryID string, start time.Time) (*types.AnalysisResult, error) {
	// 指定行业会改变结果，缓存键把行业编进内容里
	cacheContent := []byte(text)
	if industryID != "" {
		cacheContent = append([]byte(industryID+"\x00"), cacheContent...)
	}
	cacheKey := cache.Key(constants.CacheKindAnalysis, cacheContent)

	if p.cache != nil {
		if cached, ok := p.cache.GetAnalysis(ctx, cacheKey); ok {
			logger.Debug().
				Str("filename", filename).
				Dur("duration", time.Since(start)).
				Msg("分析结果缓存命中")
			return cached, nil
		}
	}

	var result *types.AnalysisResult
	var err error
	if industryID != "" {
		result, err = p.scorer.AnalyzeWithIndustry(ctx, text, industryID)
	} else {
		result, err = p.scorer.Analyze(ctx, text)
	}
	if err != nil {
		return nil, &ProcessError{Filename: filename, Op: "analyze", BaseErr: ErrAnalyzeFailed, Detail: err.Error()}
	}

	if p.cache != nil {
		p.cache.SetAnalysis(ctx, cacheKey, result, cache.TTLForKind(constants.CacheKindAnalysis))
	}

	logger.Info().
		Str("filename", filename).
		Str("industry", result.IndustryAnalysis.Industry).
		Int("overallScore", result.OverallScore).
		Str("source", result.Source).
		Dur("duration", time.Since(start)).
		Msg("简历分析完成")

	return result, nil
}
