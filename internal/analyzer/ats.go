package analyzer

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"resume-analyzer-go/internal/types"
)

// ATS子检查的加权，fileFormat权重最低因为它不依赖真实上传格式
const (
	atsWeightFormatting  = 0.25
	atsWeightKeywords    = 0.25
	atsWeightStructure   = 0.25
	atsWeightReadability = 0.20
	atsWeightFileFormat  = 0.05

	// atsFriendlyThreshold 综合分达到该值即认为对ATS友好
	atsFriendlyThreshold = 7
)

// 通用ATS关键词表，11项，与具体行业无关
var atsGenericKeywords = []string{
	"experience", "skills", "education", "managed", "developed",
	"led", "team", "project", "achieved", "improved", "results",
}

// 动作动词表，12项
var atsActionVerbs = []string{
	"achieved", "managed", "led", "developed", "created", "improved",
	"increased", "reduced", "delivered", "implemented", "designed", "launched",
}

var (
	bulletGlyphRe   = regexp.MustCompile(`[•·▪◦‣]`)
	tabRunRe        = regexp.MustCompile(`\t{2,}| {4,}`)
	headerFooterRe  = regexp.MustCompile(`(?i)page\s+\d+\s+of\s+\d+|confidential`)
	yearRe          = regexp.MustCompile(`\b(19[5-9]\d|20[0-3]\d)\b`)
	sentenceSplitRe = regexp.MustCompile(`[.!?。！？]+`)
	quantifiableRe  = regexp.MustCompile(`\d+(\.\d+)?%|\$\s?\d[\d,]*|\b\d+\+|\b\d+[kKmM]\b`)
)

// 五个规范章节头的识别正则（ATS结构检查专用）
var atsSectionHeaderRes = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*(work\s+)?experience\b`),
	regexp.MustCompile(`(?im)^\s*education\b`),
	regexp.MustCompile(`(?im)^\s*skills?\b`),
	regexp.MustCompile(`(?im)^\s*(summary|objective|profile)\b`),
	regexp.MustCompile(`(?im)^\s*(contact|contact\s+information)\b`),
}

// CheckATS 运行五项独立子检查并加权汇总。
// 每个子检查输出[1,10]的分数与问题列表，互相之间没有依赖。
func CheckATS(text string, metrics types.ResumeMetrics) types.ATSCompatibility {
	result := types.ATSCompatibility{
		Formatting:  checkFormatting(text),
		Keywords:    checkKeywords(text, metrics),
		Structure:   checkStructure(text),
		Readability: checkReadability(text),
		FileFormat:  checkFileFormat(),
	}

	weighted := float64(result.Formatting.Score)*atsWeightFormatting +
		float64(result.Keywords.Score)*atsWeightKeywords +
		float64(result.Structure.Score)*atsWeightStructure +
		float64(result.Readability.Score)*atsWeightReadability +
		float64(result.FileFormat.Score)*atsWeightFileFormat

	result.Score = clampScore(int(math.Round(weighted)))
	result.Friendly = result.Score >= atsFriendlyThreshold
	result.Recommendations = buildRecommendations(result)

	return result
}

// checkFormatting 格式检查：非ASCII字符、疑似表格的连续制表/空格、
// 过量的项目符号、页眉页脚痕迹
func checkFormatting(text string) types.ATSCheckResult {
	score := 10
	var issues []string

	// 统计非ASCII字符，常见项目符号单独计（它们有专门的扣分规则）
	nonASCII := 0
	for _, r := range text {
		if r > 127 && !strings.ContainsRune("•·▪◦‣", r) {
			nonASCII++
		}
	}
	if nonASCII > 5 {
		score -= 2
		issues = append(issues, "包含较多非ASCII字符，部分ATS可能解析异常")
	}

	if len(tabRunRe.FindAllString(text, 4)) > 3 {
		score -= 2
		issues = append(issues, "检测到连续制表符/空格，疑似使用表格布局")
	}

	if len(bulletGlyphRe.FindAllString(text, -1)) > 20 {
		score -= 1
		issues = append(issues, "项目符号使用过多")
	}

	if headerFooterRe.MatchString(text) {
		score -= 2
		issues = append(issues, "检测到页眉/页脚文本残留")
	}

	return types.ATSCheckResult{Score: clampScore(score), Issues: issues}
}

// checkKeywords 关键词密度检查：覆盖率不足0.3扣分，
// 出现次数占总词数超过0.1判定为关键词堆砌扣2分
func checkKeywords(text string, metrics types.ResumeMetrics) types.ATSCheckResult {
	score := 10
	var issues []string

	lower := strings.ToLower(text)
	found := 0
	occurrences := 0
	for _, kw := range atsGenericKeywords {
		count := strings.Count(lower, kw)
		if count > 0 {
			found++
			occurrences += count
		}
	}

	ratio := float64(found) / float64(len(atsGenericKeywords))
	if ratio < 0.3 {
		score -= 3
		issues = append(issues, "通用关键词密度偏低")
	}

	if metrics.WordCount > 0 && float64(occurrences)/float64(metrics.WordCount) > 0.1 {
		score -= 2
		issues = append(issues, "疑似关键词堆砌")
	}

	return types.ATSCheckResult{Score: clampScore(score), Issues: issues}
}

// checkStructure 结构检查：规范章节头数量、短行占比、年份顺序
func checkStructure(text string) types.ATSCheckResult {
	score := 10
	var issues []string

	headers := 0
	for _, re := range atsSectionHeaderRes {
		if re.MatchString(text) {
			headers++
		}
	}
	if headers < 3 {
		score -= (3 - headers) * 2
		issues = append(issues, "规范章节头不足3个")
	}

	// 非空行中短行(<50字符)占比超过60%提示结构碎片化
	var nonBlank, short int
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonBlank++
		if len(trimmed) < 50 {
			short++
		}
	}
	if nonBlank > 0 && float64(short)/float64(nonBlank) > 0.6 {
		score -= 1
		issues = append(issues, "短行占比过高，章节内容可能过于零碎")
	}

	// 简历应按时间倒序：出现的4位年份应当非递增
	years := yearRe.FindAllString(text, -1)
	if len(years) >= 2 {
		ordered := true
		prev := math.MaxInt32
		for _, ys := range years {
			y, _ := strconv.Atoi(ys)
			if y > prev {
				ordered = false
				break
			}
			prev = y
		}
		if !ordered {
			score -= 2
			issues = append(issues, "经历年份未按时间倒序排列")
		}
	}

	return types.ATSCheckResult{Score: clampScore(score), Issues: issues}
}

// checkReadability 可读性检查：句长、动作动词、量化数据
func checkReadability(text string) types.ATSCheckResult {
	score := 10
	var issues []string

	sentences := sentenceSplitRe.Split(text, -1)
	var sentenceCount, totalWords int
	for _, s := range sentences {
		words := len(strings.Fields(s))
		if words == 0 {
			continue
		}
		sentenceCount++
		totalWords += words
	}
	if sentenceCount > 0 && float64(totalWords)/float64(sentenceCount) > 25 {
		score -= 2
		issues = append(issues, "平均句长超过25词，建议拆分长句")
	}

	lower := strings.ToLower(text)
	verbs := 0
	for _, v := range atsActionVerbs {
		if strings.Contains(lower, v) {
			verbs++
		}
	}
	if verbs < 3 {
		score -= 2
		issues = append(issues, "动作动词不足，经历描述缺乏主动性")
	}

	if len(quantifiableRe.FindAllString(text, 3)) < 3 {
		score -= 2
		issues = append(issues, "量化数据不足（百分比、金额、规模等）")
	}

	return types.ATSCheckResult{Score: clampScore(score), Issues: issues}
}

// checkFileFormat 文件格式检查。只接受PDF/DOC/DOCX上传，
// 这些格式本身对ATS均友好，固定给8分，不依赖实际上传格式。
func checkFileFormat() types.ATSCheckResult {
	return types.ATSCheckResult{Score: 8, Issues: nil}
}

// buildRecommendations 为每个有问题的子检查生成建议块，外加固定的通用建议
func buildRecommendations(result types.ATSCompatibility) []types.ATSRecommendation {
	var recs []types.ATSRecommendation

	add := func(category string, check types.ATSCheckResult, suggestions []string) {
		if len(check.Issues) == 0 {
			return
		}
		recs = append(recs, types.ATSRecommendation{Category: category, Suggestions: suggestions})
	}

	add("formatting", result.Formatting, []string{
		"使用单栏布局，避免表格、文本框和图形元素",
		"使用标准项目符号，控制特殊字符数量",
	})
	add("keywords", result.Keywords, []string{
		"对照目标岗位JD补充核心关键词",
		"关键词自然融入经历描述，避免罗列堆砌",
	})
	add("structure", result.Structure, []string{
		"使用规范的章节标题（Experience、Education、Skills等）",
		"经历按时间倒序排列",
	})
	add("readability", result.Readability, []string{
		"每条经历以动作动词开头",
		"用具体数字量化工作成果",
	})

	recs = append(recs, types.ATSRecommendation{
		Category: "general",
		Suggestions: []string{
			"优先提交PDF格式，保留文本层",
			"文件名使用姓名+岗位，避免特殊字符",
			"提交前用纯文本编辑器粘贴检查一遍解析效果",
		},
	})

	return recs
}
