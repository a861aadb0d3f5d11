package extractor

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"

	"resume-analyzer-go/internal/logger"
)

// PDFExtractor 使用 Eino PDF Parser 提取文本
type PDFExtractor struct {
	parser *pdf.PDFParser
}

// NewPDFExtractor 初始化 Eino PDF 文本提取器
// 不按页面分割，获取整个文档的连续文本
func NewPDFExtractor(ctx context.Context) (*PDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false, // 重要：整个PDF的文本作为单个字符串返回
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}
	return &PDFExtractor{parser: p}, nil
}

// ExtractFromBytes 从PDF字节内容中提取完整的纯文本
func (e *PDFExtractor) ExtractFromBytes(ctx context.Context, data []byte) (string, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI("resume.pdf"),
	)
	if err != nil {
		return "", fmt.Errorf("eino PDF parser failed: %w", err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("eino PDF parser returned no documents")
	}

	// 合并所有文档内容（以防返回了多个）
	var sb bytes.Buffer
	for i, doc := range docs {
		sb.WriteString(doc.Content)
		if i < len(docs)-1 {
			sb.WriteString("\n\n")
		}
	}

	logger.Debug().
		Int("chars", sb.Len()).
		Dur("duration", time.Since(startTime)).
		Msg("PDF文本提取完成")

	return sb.String(), nil
}
