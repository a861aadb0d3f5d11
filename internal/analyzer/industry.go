package analyzer

import (
	"math"
	"strings"

	"resume-analyzer-go/internal/types"
)

// ScoreWeights 五个评分维度的行业权重，使用前会归一化为和为1
type ScoreWeights struct {
	Content           float64
	Structure         float64
	Formatting        float64
	IndustryAlignment float64
	Length            float64
}

// IndustryProfile 行业画像，编译期固定，运行时只读
type IndustryProfile struct {
	ID               string
	Name             string
	Keywords         []string
	RequiredSections []string
	CriticalSkills   []string
	Weights          ScoreWeights
	PreferredPagesMin int
	PreferredPagesMax int
}

// classifyThreshold 关键词匹配率低于该阈值时归为general
const classifyThreshold = 0.1

// industryProfiles 行业表。顺序固定：分类打平时排在前面的行业获胜，
// 这个顺序是对外语义的一部分，不要调整。
var industryProfiles = []IndustryProfile{
	{
		ID:   "technology",
		Name: "Technology",
		Keywords: []string{
			"software", "engineer", "developer", "programming", "python", "java",
			"javascript", "golang", "cloud", "aws", "docker", "kubernetes", "api",
			"database", "sql", "agile", "devops", "backend", "frontend", "microservices",
		},
		RequiredSections: []string{"experience", "education", "skills"},
		CriticalSkills:   []string{"programming", "cloud", "database", "api"},
		Weights:          ScoreWeights{Content: 0.30, Structure: 0.15, Formatting: 0.10, IndustryAlignment: 0.30, Length: 0.15},
		PreferredPagesMin: 1, PreferredPagesMax: 2,
	},
	{
		ID:   "finance",
		Name: "Finance",
		Keywords: []string{
			"financial", "accounting", "audit", "investment", "banking", "portfolio",
			"analysis", "budget", "forecasting", "excel", "cpa", "cfa", "compliance",
			"risk", "equity", "valuation",
		},
		RequiredSections: []string{"experience", "education", "skills"},
		CriticalSkills:   []string{"analysis", "excel", "compliance"},
		Weights:          ScoreWeights{Content: 0.30, Structure: 0.20, Formatting: 0.15, IndustryAlignment: 0.25, Length: 0.10},
		PreferredPagesMin: 1, PreferredPagesMax: 2,
	},
	{
		ID:   "healthcare",
		Name: "Healthcare",
		Keywords: []string{
			"patient", "clinical", "medical", "nursing", "healthcare", "hospital",
			"treatment", "diagnosis", "pharmacy", "therapy", "hipaa", "emr", "care",
		},
		RequiredSections: []string{"experience", "education", "skills"},
		CriticalSkills:   []string{"clinical", "patient", "care"},
		Weights:          ScoreWeights{Content: 0.35, Structure: 0.20, Formatting: 0.10, IndustryAlignment: 0.25, Length: 0.10},
		PreferredPagesMin: 1, PreferredPagesMax: 3,
	},
	{
		ID:   "marketing",
		Name: "Marketing",
		Keywords: []string{
			"marketing", "brand", "campaign", "seo", "content", "social media",
			"analytics", "advertising", "engagement", "conversion", "digital",
			"copywriting", "growth",
		},
		RequiredSections: []string{"experience", "skills", "summary"},
		CriticalSkills:   []string{"campaign", "analytics", "content"},
		Weights:          ScoreWeights{Content: 0.30, Structure: 0.15, Formatting: 0.20, IndustryAlignment: 0.25, Length: 0.10},
		PreferredPagesMin: 1, PreferredPagesMax: 2,
	},
	{
		ID:   "sales",
		Name: "Sales",
		Keywords: []string{
			"sales", "revenue", "quota", "pipeline", "negotiation", "crm",
			"salesforce", "prospecting", "closing", "account", "客户", "b2b",
		},
		RequiredSections: []string{"experience", "skills", "summary"},
		CriticalSkills:   []string{"quota", "pipeline", "crm"},
		Weights:          ScoreWeights{Content: 0.35, Structure: 0.15, Formatting: 0.10, IndustryAlignment: 0.30, Length: 0.10},
		PreferredPagesMin: 1, PreferredPagesMax: 2,
	},
	{
		ID:   "education",
		Name: "Education",
		Keywords: []string{
			"teaching", "curriculum", "classroom", "students", "instruction",
			"lesson", "assessment", "pedagogy", "tutoring", "learning",
		},
		RequiredSections: []string{"experience", "education", "summary"},
		CriticalSkills:   []string{"curriculum", "instruction", "assessment"},
		Weights:          ScoreWeights{Content: 0.30, Structure: 0.20, Formatting: 0.15, IndustryAlignment: 0.20, Length: 0.15},
		PreferredPagesMin: 1, PreferredPagesMax: 3,
	},
}

// generalProfile 无行业匹配时的兜底画像
var generalProfile = IndustryProfile{
	ID:   "general",
	Name: "General",
	RequiredSections: []string{"experience", "education"},
	Weights:          ScoreWeights{Content: 0.25, Structure: 0.20, Formatting: 0.20, IndustryAlignment: 0.15, Length: 0.20},
	PreferredPagesMin: 1, PreferredPagesMax: 2,
}

// Profiles 返回固定顺序的行业表（不含general）
func Profiles() []IndustryProfile {
	return industryProfiles
}

// ProfileByID 按行业ID查找画像，未知ID返回general
func ProfileByID(id string) IndustryProfile {
	for _, p := range industryProfiles {
		if p.ID == id {
			return p
		}
	}
	return generalProfile
}

// ClassifyIndustry 对每个非general行业计算关键词匹配率，取最高者；
// 最高匹配率不超过0.1时归为general。相同文本的分类结果是确定的。
func ClassifyIndustry(text string, metrics types.ResumeMetrics) types.IndustryAnalysis {
	lower := strings.ToLower(text)

	best := generalProfile
	bestRatio := 0.0
	var bestMatched []string

	for _, p := range industryProfiles {
		var matched []string
		for _, kw := range p.Keywords {
			if strings.Contains(lower, kw) {
				matched = append(matched, kw)
			}
		}
		ratio := 0.0
		if len(p.Keywords) > 0 {
			ratio = float64(len(matched)) / float64(len(p.Keywords))
		}
		// 严格大于：打平时保留顺序靠前的行业
		if ratio > bestRatio {
			best, bestRatio, bestMatched = p, ratio, matched
		}
	}

	if bestRatio <= classifyThreshold {
		best, bestRatio, bestMatched = generalProfile, 0, nil
	}

	return buildFitReport(best, bestRatio, bestMatched, lower, metrics)
}

// ClassifyForProfile 跳过自动分类，按指定行业画像生成匹配报告。
// 未知的profileID回退到general。
func ClassifyForProfile(text string, metrics types.ResumeMetrics, profileID string) types.IndustryAnalysis {
	lower := strings.ToLower(text)
	p := ProfileByID(profileID)

	var matched []string
	for _, kw := range p.Keywords {
		if strings.Contains(lower, kw) {
			matched = append(matched, kw)
		}
	}
	ratio := 0.0
	if len(p.Keywords) > 0 {
		ratio = float64(len(matched)) / float64(len(p.Keywords))
	}

	return buildFitReport(p, ratio, matched, lower, metrics)
}

// buildFitReport 生成章节/关键技能的匹配报告
func buildFitReport(p IndustryProfile, ratio float64, matched []string, lowerText string, metrics types.ResumeMetrics) types.IndustryAnalysis {
	found := make(map[string]bool, len(metrics.SectionsFound))
	for _, s := range metrics.SectionsFound {
		found[s] = true
	}

	var sectionsFound, sectionsMissing []string
	for _, s := range p.RequiredSections {
		if found[s] {
			sectionsFound = append(sectionsFound, s)
		} else {
			sectionsMissing = append(sectionsMissing, s)
		}
	}

	var skillsFound, skillsMissing []string
	for _, skill := range p.CriticalSkills {
		if strings.Contains(lowerText, skill) {
			skillsFound = append(skillsFound, skill)
		} else {
			skillsMissing = append(skillsMissing, skill)
		}
	}

	return types.IndustryAnalysis{
		Industry:          p.ID,
		IndustryName:      p.Name,
		MatchRatio:        math.Round(ratio*100) / 100,
		MatchedKeywords:   matched,
		SectionsFound:     sectionsFound,
		SectionsMissing:   sectionsMissing,
		SkillsFound:       skillsFound,
		SkillsMissing:     skillsMissing,
		PreferredPagesMin: p.PreferredPagesMin,
		PreferredPagesMax: p.PreferredPagesMax,
	}
}

// maxFeedbackPerCategory 每个反馈类别最多输出的条数
const maxFeedbackPerCategory = 3

// IndustryFeedback 按行业ID生成强项/改进/行业建议，每类最多3条
func IndustryFeedback(ia types.IndustryAnalysis) (strengths, improvements, industrySpecific []string) {
	if len(ia.SkillsFound) >= 2 {
		strengths = append(strengths, "覆盖了"+ia.IndustryName+"方向的多项关键技能")
	}
	if len(ia.SectionsMissing) == 0 {
		strengths = append(strengths, "包含该行业期望的全部章节")
	}
	if len(ia.MatchedKeywords) >= 5 {
		strengths = append(strengths, "行业关键词覆盖充分，有利于检索匹配")
	}

	for _, s := range ia.SectionsMissing {
		improvements = append(improvements, "建议补充 "+s+" 章节")
		if len(improvements) >= maxFeedbackPerCategory {
			break
		}
	}
	if len(improvements) < maxFeedbackPerCategory && len(ia.SkillsMissing) > 0 {
		improvements = append(improvements, "缺少关键技能描述: "+strings.Join(ia.SkillsMissing, ", "))
	}

	// 行业专属建议：按行业ID硬编码
	switch ia.Industry {
	case "technology":
		industrySpecific = append(industrySpecific, "列出具体技术栈与版本，避免只写宽泛的方向")
		if len(ia.SkillsFound) < 2 {
			industrySpecific = append(industrySpecific, "补充云平台、数据库或API设计相关的项目经验")
		}
	case "finance":
		industrySpecific = append(industrySpecific, "量化业绩指标（管理资产规模、成本节约比例等）")
		industrySpecific = append(industrySpecific, "注明持有的资质证书（CPA/CFA等）")
	case "healthcare":
		industrySpecific = append(industrySpecific, "注明执业资格与合规培训（如HIPAA）")
	case "marketing":
		industrySpecific = append(industrySpecific, "用转化率、增长率等数据支撑营销成果")
	case "sales":
		industrySpecific = append(industrySpecific, "突出业绩达成率与签单规模")
	case "education":
		industrySpecific = append(industrySpecific, "描述课程设计与学生学习成果")
	default:
		industrySpecific = append(industrySpecific, "突出可迁移能力与量化成果")
	}
	if len(industrySpecific) > maxFeedbackPerCategory {
		industrySpecific = industrySpecific[:maxFeedbackPerCategory]
	}

	return strengths, improvements, industrySpecific
}

// BlendScores 按行业条件对五个基础分做小幅修正，再用行业权重加权出总分。
// 输入输出都在[1,10]区间内。
func BlendScores(scores types.CriterionScores, ia types.IndustryAnalysis) (types.CriterionScores, int) {
	adjusted := scores

	// 行业条件修正，幅度固定
	if len(ia.SkillsFound) > 2 {
		adjusted.IndustryAlignment++
	}
	if len(ia.SkillsMissing) > len(ia.SkillsFound) {
		adjusted.IndustryAlignment--
	}
	if len(ia.SectionsMissing) > 0 {
		adjusted.Structure--
	}
	if len(ia.MatchedKeywords) >= 8 {
		adjusted.Content++
	}

	adjusted.Content = clampScore(adjusted.Content)
	adjusted.Structure = clampScore(adjusted.Structure)
	adjusted.Formatting = clampScore(adjusted.Formatting)
	adjusted.IndustryAlignment = clampScore(adjusted.IndustryAlignment)
	adjusted.Length = clampScore(adjusted.Length)

	p := ProfileByID(ia.Industry)
	w := p.Weights
	total := w.Content + w.Structure + w.Formatting + w.IndustryAlignment + w.Length
	if total <= 0 {
		// 权重异常时退化为等权
		w = ScoreWeights{Content: 1, Structure: 1, Formatting: 1, IndustryAlignment: 1, Length: 1}
		total = 5
	}

	weighted := (float64(adjusted.Content)*w.Content +
		float64(adjusted.Structure)*w.Structure +
		float64(adjusted.Formatting)*w.Formatting +
		float64(adjusted.IndustryAlignment)*w.IndustryAlignment +
		float64(adjusted.Length)*w.Length) / total

	overall := clampScore(int(math.Round(weighted)))
	return adjusted, overall
}

// clampScore 把分数收敛到[1,10]
func clampScore(s int) int {
	if s < 1 {
		return 1
	}
	if s > 10 {
		return 10
	}
	return s
}
