package types

import "time"

// CriterionScores 五项评分维度，统一LLM与规则打分两条路径的输出
type CriterionScores struct {
	Content           int `json:"content"`
	Structure         int `json:"structure"`
	Formatting        int `json:"formatting"`
	IndustryAlignment int `json:"industryAlignment"`
	Length            int `json:"length"`
}

// Feedback 分析反馈，按类别分组
type Feedback struct {
	Strengths        []string `json:"strengths"`
	Improvements     []string `json:"improvements"`
	IndustrySpecific []string `json:"industrySpecific"`
	Summary          string   `json:"summary"`
}

// ResumeMetrics 基础文本指标，纯函数计算，无副作用
type ResumeMetrics struct {
	WordCount      int      `json:"wordCount"`
	LineCount      int      `json:"lineCount"`
	CharCount      int      `json:"charCount"`
	EstimatedPages int      `json:"estimatedPages"`
	SectionsFound  []string `json:"sectionsFound"`
	HasBulletPoints bool    `json:"hasBulletPoints"`
	HasNumbers      bool    `json:"hasNumbers"`
	HasEmail        bool    `json:"hasEmail"`
	HasPhone        bool    `json:"hasPhone"`
}

// IndustryAnalysis 行业匹配分析块
type IndustryAnalysis struct {
	Industry          string   `json:"industry"`
	IndustryName      string   `json:"industryName"`
	MatchRatio        float64  `json:"matchRatio"`
	MatchedKeywords   []string `json:"matchedKeywords"`
	SectionsFound     []string `json:"sectionsFound"`
	SectionsMissing   []string `json:"sectionsMissing"`
	SkillsFound       []string `json:"skillsFound"`
	SkillsMissing     []string `json:"skillsMissing"`
	PreferredPagesMin int      `json:"preferredPagesMin"`
	PreferredPagesMax int      `json:"preferredPagesMax"`
}

// ATSCheckResult 单项ATS子检查结果，分数区间[1,10]
type ATSCheckResult struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

// ATSRecommendation 按类别分组的改进建议块
type ATSRecommendation struct {
	Category    string   `json:"category"`
	Suggestions []string `json:"suggestions"`
}

// ATSCompatibility ATS兼容性综合分析块
type ATSCompatibility struct {
	Score           int                 `json:"score"`
	Friendly        bool                `json:"friendly"`
	Formatting      ATSCheckResult      `json:"formatting"`
	Keywords        ATSCheckResult      `json:"keywords"`
	Structure       ATSCheckResult      `json:"structure"`
	Readability     ATSCheckResult      `json:"readability"`
	FileFormat      ATSCheckResult      `json:"fileFormat"`
	Recommendations []ATSRecommendation `json:"recommendations"`
}

// 分析结果来源标记
const (
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// AnalysisResult 单次简历分析的完整结果，产出后不可变，按文本MD5缓存
type AnalysisResult struct {
	OverallScore     int              `json:"overallScore"`
	Scores           CriterionScores  `json:"scores"`
	Feedback         Feedback         `json:"feedback"`
	Metrics          ResumeMetrics    `json:"metrics"`
	IndustryAnalysis IndustryAnalysis `json:"industryAnalysis"`
	ATSCompatibility ATSCompatibility `json:"atsCompatibility"`
	Source           string           `json:"source"` // "llm" 或 "fallback"
	AnalyzedAt       time.Time        `json:"analyzedAt"`
}

// TierLimits 等级派生的limits集合，只能由等级查表重算，禁止单独修改
type TierLimits struct {
	DailyRequests   int      `json:"dailyRequests"`
	MonthlyRequests int      `json:"monthlyRequests"`
	MaxFileSize     int64    `json:"maxFileSize"`
	MaxBatchSize    int      `json:"maxBatchSize"`
	Features        []string `json:"features"`
}

// KeyInfo 密钥查询接口返回的视图，不含密钥本身以外的敏感信息
type KeyInfo struct {
	Key           string     `json:"key"`
	UserID        string     `json:"userId"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Tier          string     `json:"tier"`
	Active        bool       `json:"active"`
	Limits        TierLimits `json:"limits"`
	TotalRequests int64      `json:"totalRequests"`
	DailyUsed     int        `json:"dailyUsed"`
	MonthlyUsed   int        `json:"monthlyUsed"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastUsedAt    *time.Time `json:"lastUsedAt,omitempty"`
}

// JobState 异步任务状态，由Redis中的任务哈希反序列化而来
type JobState struct {
	JobID     string      `json:"jobId"`
	Status    string      `json:"status"` // queued/active/completed/failed/not_found
	Progress  int         `json:"progress"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

// BulkFileResult 批量任务中单个文件的处理结果
type BulkFileResult struct {
	Filename string          `json:"filename"`
	Success  bool            `json:"success"`
	Analysis *AnalysisResult `json:"analysis,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// BulkResult 批量任务汇总，单文件失败不中断整批
type BulkResult struct {
	TotalFiles   int              `json:"totalFiles"`
	SuccessCount int              `json:"successCount"`
	FailureCount int              `json:"failureCount"`
	Files        []BulkFileResult `json:"files"`
}
