package constants

// Redis Key 前缀和格式常量
// 统一命名规范: app:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "app"

	// CacheModulePrefix 分析结果缓存模块
	CacheModulePrefix = "cache"
	// JobModulePrefix 异步任务模块
	JobModulePrefix = "job"
	// UsageModulePrefix 使用统计模块
	UsageModulePrefix = "usage"
	// AdminModulePrefix 管理后台模块
	AdminModulePrefix = "admin"

	// KeyAnalysisCache 分析结果缓存 (STRING, JSON值)
	// 格式: app:cache:{kind}:{md5} — kind为analysis/industry/ats
	KeyAnalysisCache = AppPrefix + ":" + CacheModulePrefix + ":%s:%s"

	// KeyJobState 任务状态 (HASH: status/progress/result/error/created_at)
	// 格式: app:job:state:{jobID}
	KeyJobState = AppPrefix + ":" + JobModulePrefix + ":state:%s"

	// KeyJobIndex 任务ID索引 (ZSET, score为入队时间戳)
	KeyJobIndex = AppPrefix + ":" + JobModulePrefix + ":index"

	// KeyJobCounters 队列累计计数 (HASH: completed/failed)
	KeyJobCounters = AppPrefix + ":" + JobModulePrefix + ":counters"

	// KeyUsageSnapshot 使用统计聚合快照 (STRING, JSON值)
	KeyUsageSnapshot = AppPrefix + ":" + UsageModulePrefix + ":snapshot"

	// KeyAdminSession 管理员会话 (STRING, 值为用户名)
	// 格式: app:admin:session:{token}
	KeyAdminSession = AppPrefix + ":" + AdminModulePrefix + ":session:%s"
)
