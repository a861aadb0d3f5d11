package constants

import "time"

// 订阅等级
const (
	TierFree       = "free"
	TierPremium    = "premium"
	TierEnterprise = "enterprise"
)

// 缓存结果类型命名空间
const (
	CacheKindAnalysis = "analysis"
	CacheKindIndustry = "industry"
	CacheKindATS      = "ats"
)

// 缓存TTL
const (
	AnalysisCacheTTL = 2 * time.Hour
	IndustryCacheTTL = 24 * time.Hour
	ATSCacheTTL      = 24 * time.Hour
)

// 上传限制
const (
	MaxFileSizeBytes = 5 * 1024 * 1024 // 单文件5MB硬限制
	MaxBulkFiles     = 10              // 批量上传最多10个文件
)

// 任务状态
const (
	JobStatusQueued    = "queued"
	JobStatusActive    = "active"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusNotFound  = "not_found"
)

// 任务保留窗口
const (
	CompletedJobRetention = 24 * time.Hour
	FailedJobRetention    = 7 * 24 * time.Hour
)

// 任务重试
const (
	JobMaxRetries       = 3
	JobRetryBaseBackoff = 2 * time.Second // 指数退避起点: 2s, 4s, 8s
)

// 使用统计
const (
	UsageRollingWindowCap = 1000               // ATS分数/耗时/文件大小滚动窗口上限
	UsageRetentionDays    = 90                 // 日桶保留天数
	UsageHourlyRetention  = 48 * time.Hour     // 小时桶保留窗口
	UsageLogRotateBytes   = 10 * 1024 * 1024   // 事件日志轮转阈值
	UsageFlushInterval    = 5 * time.Minute    // 聚合快照落盘间隔
	UsagePruneInterval    = 24 * time.Hour     // 过期日桶清理间隔
	AdminSessionTTL       = 24 * time.Hour     // 管理员会话有效期
	BackupKeepCount       = 10                 // 保留最近N份备份
	InactiveKeySweepAge   = 180 * 24 * time.Hour // 清理长期未用的停用密钥
)
