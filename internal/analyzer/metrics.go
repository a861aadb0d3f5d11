package analyzer

import (
	"regexp"
	"strings"

	"resume-analyzer-go/internal/types"
)

// 五个规范章节的探测正则，互相独立，大小写不敏感
var sectionProbes = []struct {
	name string
	re   *regexp.Regexp
}{
	{"contact", regexp.MustCompile(`(?i)(contact|联系方式|email|e-mail|phone|tel)`)},
	{"experience", regexp.MustCompile(`(?i)(experience|employment|work history|工作经[历验]|professional background)`)},
	{"education", regexp.MustCompile(`(?i)(education|academic|degree|university|college|教育背景|学历)`)},
	{"skills", regexp.MustCompile(`(?i)(skills|technologies|competencies|proficiencies|技能|专业技能)`)},
	{"summary", regexp.MustCompile(`(?i)(summary|objective|profile|about me|个人简介|自我评价)`)},
}

var (
	bulletRe = regexp.MustCompile(`(?m)^\s*[•·▪◦‣*-]\s+`)
	numberRe = regexp.MustCompile(`\d`)
	emailRe  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phoneRe  = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?(\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}`)
)

// wordsPerPage 页数估算基准：每500词算一页，向上取整
const wordsPerPage = 500

// CalculateMetrics 从原始文本计算基础指标。
// 纯函数，空输入产出全零/false的结果，没有失败模式。
func CalculateMetrics(text string) types.ResumeMetrics {
	m := types.ResumeMetrics{SectionsFound: []string{}}
	if strings.TrimSpace(text) == "" {
		return m
	}

	words := strings.Fields(text)
	m.WordCount = len(words)
	m.LineCount = len(strings.Split(text, "\n"))
	m.CharCount = len([]rune(text))
	m.EstimatedPages = (m.WordCount + wordsPerPage - 1) / wordsPerPage
	if m.EstimatedPages < 1 {
		m.EstimatedPages = 1
	}

	for _, probe := range sectionProbes {
		if probe.re.MatchString(text) {
			m.SectionsFound = append(m.SectionsFound, probe.name)
		}
	}

	m.HasBulletPoints = bulletRe.MatchString(text)
	m.HasNumbers = numberRe.MatchString(text)
	m.HasEmail = emailRe.MatchString(text)
	m.HasPhone = phoneRe.MatchString(text)

	return m
}
