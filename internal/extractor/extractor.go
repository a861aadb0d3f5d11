// Package extractor 从上传的简历文件中提取纯文本。
// 只做文本流提取，不做OCR，不重建版式；扫描件PDF产出的乱码按原样向下游传递。
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// 支持的MIME类型
const (
	MimePDF  = "application/pdf"
	MimeDOC  = "application/msword"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ErrUnsupportedFileType 不支持的文件类型
var ErrUnsupportedFileType = errors.New("不支持的文件类型")

// TextExtractor 文本提取器接口，按MIME类型分发到具体实现
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Extractor 聚合PDF/DOC/DOCX三种格式的提取实现
type Extractor struct {
	pdf *PDFExtractor
}

// New 创建文本提取器
func New(ctx context.Context) (*Extractor, error) {
	pdfExtractor, err := NewPDFExtractor(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化PDF提取器失败: %w", err)
	}
	return &Extractor{pdf: pdfExtractor}, nil
}

// Extract 按声明的MIME类型提取文本
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	// 去掉可能携带的参数，例如 "application/pdf; charset=binary"
	mt := strings.TrimSpace(strings.ToLower(mimeType))
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}

	switch mt {
	case MimePDF:
		return e.pdf.ExtractFromBytes(ctx, data)
	case MimeDOCX:
		return extractDOCX(data)
	case MimeDOC:
		return extractDOC(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}
}

var _ TextExtractor = (*Extractor)(nil)
