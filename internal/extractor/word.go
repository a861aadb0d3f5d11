package extractor

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/nguyenthenguyen/docx"
)

var (
	// word/document.xml中的段落结束标记映射为换行，其余标签全部丢弃
	paragraphEndRe = regexp.MustCompile(`</w:p>`)
	xmlTagRe       = regexp.MustCompile(`<[^>]+>`)
)

// extractDOCX 从DOCX字节内容中提取纯文本，丢弃所有样式信息
func extractDOCX(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("打开DOCX文件失败: %w", err)
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	return docxXMLToText(content), nil
}

// docxXMLToText 将document.xml内容转换为纯文本
func docxXMLToText(xml string) string {
	text := paragraphEndRe.ReplaceAllString(xml, "\n")
	text = xmlTagRe.ReplaceAllString(text, "")
	// 常见XML实体
	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	)
	text = replacer.Replace(text)

	// 压缩连续空行
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" && len(out) > 0 && out[len(out)-1] == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// extractDOC 从旧版二进制Word文档中提取可打印文本。
// 旧格式没有可用的Go解析库能取出正文，这里扫描连续的可打印字符段，
// 乱码按原样接受并向下游传递。
func extractDOC(data []byte) string {
	var sb strings.Builder
	var run []rune

	flush := func() {
		// 过短的片段多为二进制噪声
		if len(run) >= 4 {
			sb.WriteString(string(run))
			sb.WriteByte('\n')
		}
		run = run[:0]
	}

	for _, b := range data {
		r := rune(b)
		if r == '\r' || r == '\n' {
			flush()
			continue
		}
		if r == '\t' || (unicode.IsPrint(r) && r < 0x7F) {
			run = append(run, r)
		} else {
			flush()
		}
	}
	flush()

	return strings.TrimSpace(sb.String())
}
