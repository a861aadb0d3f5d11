package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/logger"
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "2006-01-02T15"
)

// 服务健康状态
const (
	HealthHealthy  = "healthy"
	HealthWarning  = "warning"
	HealthCritical = "critical"
	HealthIdle     = "idle"
)

// Event 单次API请求的使用事件
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Endpoint   string    `json:"endpoint"`
	APIKey     string    `json:"apiKey,omitempty"` // 记录时只保留前8位
	Success    bool      `json:"success"`
	DurationMS int64     `json:"durationMs"`
	FileSize   int64     `json:"fileSize,omitempty"`
	ATSScore   int       `json:"atsScore,omitempty"`
	Industry   string    `json:"industry,omitempty"`
	Source     string    `json:"source,omitempty"`    // llm / fallback
	ErrorType  string    `json:"errorType,omitempty"` // 失败事件的错误类别
}

// DailyBucket 按天聚合的请求计数
type DailyBucket struct {
	Date     string `json:"date"`
	Requests int64  `json:"requests"`
	Errors   int64  `json:"errors"`
}

// HourlyBucket 按小时聚合的请求计数
type HourlyBucket struct {
	Hour     string `json:"hour"` // YYYY-MM-DDTHH
	Requests int64  `json:"requests"`
	Errors   int64  `json:"errors"`
}

// Snapshot 聚合统计的可序列化快照
type Snapshot struct {
	StartedAt     time.Time `json:"startedAt"`
	TotalRequests int64     `json:"totalRequests"`
	TotalErrors   int64     `json:"totalErrors"`
	CacheHits     int64     `json:"cacheHits"`
	CacheMisses   int64     `json:"cacheMisses"`

	ByEndpoint map[string]int64 `json:"byEndpoint"`
	ByIndustry map[string]int64 `json:"byIndustry"`
	BySource   map[string]int64 `json:"bySource"`
	ByAPIKey   map[string]int64 `json:"byApiKey"`   // 键为截断后的密钥前缀
	ErrorTypes map[string]int64 `json:"errorTypes"` // 失败事件按错误类别的直方图

	Daily  []DailyBucket  `json:"daily"`
	Hourly []HourlyBucket `json:"hourly"`

	// 滚动窗口，各自上限1000条，先进先出
	ATSScores   []int   `json:"atsScores"`
	DurationsMS []int64 `json:"durationsMs"`
	FileSizes   []int64 `json:"fileSizes"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// SnapshotStore 快照持久化接口（Redis实现）
type SnapshotStore interface {
	SaveUsageSnapshot(ctx context.Context, snapshot interface{}) error
	LoadUsageSnapshot(ctx context.Context, out interface{}) error
}

// Tracker 进程内使用统计。所有聚合由互斥锁保护，
// 事件同步追加到JSONL日志，聚合快照周期性落盘。
type Tracker struct {
	mu sync.Mutex

	startedAt     time.Time
	totalRequests int64
	totalErrors   int64
	cacheHits     int64
	cacheMisses   int64

	byEndpoint map[string]int64
	byIndustry map[string]int64
	bySource   map[string]int64
	byAPIKey   map[string]int64
	errorTypes map[string]int64

	daily  map[string]*DailyBucket
	hourly map[string]*HourlyBucket

	atsScores   []int
	durationsMS []int64
	fileSizes   []int64

	eventLog *eventLog
	store    SnapshotStore

	stopCh chan struct{}
	wg     sync.WaitGroup

	now func() time.Time
}

// NewTracker 创建使用统计器。eventLogPath为空时不写事件日志，
// store为nil时快照只写本地文件。
func NewTracker(eventLogPath string, store SnapshotStore) *Tracker {
	t := &Tracker{
		startedAt:  time.Now(),
		byEndpoint: make(map[string]int64),
		byIndustry: make(map[string]int64),
		bySource:   make(map[string]int64),
		byAPIKey:   make(map[string]int64),
		errorTypes: make(map[string]int64),
		daily:      make(map[string]*DailyBucket),
		hourly:     make(map[string]*HourlyBucket),
		store:      store,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}

	if eventLogPath != "" {
		t.eventLog = newEventLog(eventLogPath, constants.UsageLogRotateBytes)
	}

	return t
}

// Restore 从Redis快照恢复聚合状态（进程重启后调用）
func (t *Tracker) Restore(ctx context.Context) {
	if t.store == nil {
		return
	}

	var snap Snapshot
	if err := t.store.LoadUsageSnapshot(ctx, &snap); err != nil {
		logger.Debug().Err(err).Msg("没有可恢复的统计快照")
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalRequests = snap.TotalRequests
	t.totalErrors = snap.TotalErrors
	t.cacheHits = snap.CacheHits
	t.cacheMisses = snap.CacheMisses
	for k, v := range snap.ByEndpoint {
		t.byEndpoint[k] = v
	}
	for k, v := range snap.ByIndustry {
		t.byIndustry[k] = v
	}
	for k, v := range snap.BySource {
		t.bySource[k] = v
	}
	for k, v := range snap.ByAPIKey {
		t.byAPIKey[k] = v
	}
	for k, v := range snap.ErrorTypes {
		t.errorTypes[k] = v
	}
	for i := range snap.Daily {
		b := snap.Daily[i]
		t.daily[b.Date] = &b
	}
	for i := range snap.Hourly {
		b := snap.Hourly[i]
		t.hourly[b.Hour] = &b
	}
	t.atsScores = snap.ATSScores
	t.durationsMS = snap.DurationsMS
	t.fileSizes = snap.FileSizes

	logger.Info().Int64("totalRequests", t.totalRequests).Msg("已从快照恢复使用统计")
}

// Start 启动周期性落盘与过期日桶清理
func (t *Tracker) Start(ctx context.Context) {
	t.wg.Add(2)

	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(constants.UsageFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stopCh:
				return
			case <-ticker.C:
				t.Flush(ctx)
			}
		}
	}()

	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(constants.UsagePruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stopCh:
				return
			case <-ticker.C:
				t.pruneDaily()
			}
		}
	}()
}

// Stop 落盘后停止后台协程
func (t *Tracker) Stop(ctx context.Context) {
	t.Flush(ctx)
	close(t.stopCh)
	t.wg.Wait()
	if t.eventLog != nil {
		t.eventLog.Close()
	}
}

// RecordRequest 记录一次API请求事件
func (t *Tracker) RecordRequest(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now()
	}
	if len(event.APIKey) > 8 {
		event.APIKey = event.APIKey[:8]
	}

	t.mu.Lock()
	t.totalRequests++
	if !event.Success {
		t.totalErrors++
		errType := event.ErrorType
		if errType == "" {
			errType = "unknown"
		}
		t.errorTypes[errType]++
	}
	t.byEndpoint[event.Endpoint]++
	if event.Industry != "" {
		t.byIndustry[event.Industry]++
	}
	if event.Source != "" {
		t.bySource[event.Source]++
	}
	if event.APIKey != "" {
		t.byAPIKey[event.APIKey]++
	}

	date := event.Timestamp.Format(dateLayout)
	bucket, ok := t.daily[date]
	if !ok {
		bucket = &DailyBucket{Date: date}
		t.daily[date] = bucket
	}
	bucket.Requests++
	if !event.Success {
		bucket.Errors++
	}

	hour := event.Timestamp.Format(hourLayout)
	hb, ok := t.hourly[hour]
	if !ok {
		hb = &HourlyBucket{Hour: hour}
		t.hourly[hour] = hb
	}
	hb.Requests++
	if !event.Success {
		hb.Errors++
	}

	if event.ATSScore > 0 {
		t.atsScores = appendCapped(t.atsScores, event.ATSScore, constants.UsageRollingWindowCap)
	}
	if event.DurationMS > 0 {
		t.durationsMS = appendCapped(t.durationsMS, event.DurationMS, constants.UsageRollingWindowCap)
	}
	if event.FileSize > 0 {
		t.fileSizes = appendCapped(t.fileSizes, event.FileSize, constants.UsageRollingWindowCap)
	}
	t.mu.Unlock()

	if t.eventLog != nil {
		t.eventLog.Append(event)
	}
}

// RecordCacheEvent 记录缓存命中/未命中（实现缓存模块的Recorder接口）
func (t *Tracker) RecordCacheEvent(hit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if hit {
		t.cacheHits++
	} else {
		t.cacheMisses++
	}
}

// Snapshot 返回聚合状态的深拷贝
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	snap := Snapshot{
		StartedAt:     t.startedAt,
		TotalRequests: t.totalRequests,
		TotalErrors:   t.totalErrors,
		CacheHits:     t.cacheHits,
		CacheMisses:   t.cacheMisses,
		ByEndpoint:    make(map[string]int64, len(t.byEndpoint)),
		ByIndustry:    make(map[string]int64, len(t.byIndustry)),
		BySource:      make(map[string]int64, len(t.bySource)),
		ByAPIKey:      make(map[string]int64, len(t.byAPIKey)),
		ErrorTypes:    make(map[string]int64, len(t.errorTypes)),
		ATSScores:     append([]int(nil), t.atsScores...),
		DurationsMS:   append([]int64(nil), t.durationsMS...),
		FileSizes:     append([]int64(nil), t.fileSizes...),
		UpdatedAt:     t.now(),
	}
	for k, v := range t.byEndpoint {
		snap.ByEndpoint[k] = v
	}
	for k, v := range t.byIndustry {
		snap.ByIndustry[k] = v
	}
	for k, v := range t.bySource {
		snap.BySource[k] = v
	}
	for k, v := range t.byAPIKey {
		snap.ByAPIKey[k] = v
	}
	for k, v := range t.errorTypes {
		snap.ErrorTypes[k] = v
	}
	for _, b := range t.daily {
		snap.Daily = append(snap.Daily, *b)
	}
	sort.Slice(snap.Daily, func(i, j int) bool {
		return snap.Daily[i].Date < snap.Daily[j].Date
	})
	for _, b := range t.hourly {
		snap.Hourly = append(snap.Hourly, *b)
	}
	sort.Slice(snap.Hourly, func(i, j int) bool {
		return snap.Hourly[i].Hour < snap.Hourly[j].Hour
	})
	return snap
}

// Flush 将聚合快照写入Redis
func (t *Tracker) Flush(ctx context.Context) {
	snap := t.Snapshot()

	if t.store != nil {
		if err := t.store.SaveUsageSnapshot(ctx, snap); err != nil {
			logger.Warn().Err(err).Msg("统计快照写入Redis失败")
		}
	}
}

// ErrorRate 累计错误率，无请求时返回0
func (t *Tracker) ErrorRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.totalRequests == 0 {
		return 0
	}
	return float64(t.totalErrors) / float64(t.totalRequests)
}

// CacheHitRate 缓存命中率，无查询时返回0
func (t *Tracker) CacheHitRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := t.cacheHits + t.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(t.cacheHits) / float64(total)
}

// AvgDurationMS 滚动窗口内的平均处理耗时
func (t *Tracker) AvgDurationMS() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.durationsMS) == 0 {
		return 0
	}
	var sum int64
	for _, d := range t.durationsMS {
		sum += d
	}
	return float64(sum) / float64(len(t.durationsMS))
}

// AvgATSScore 滚动窗口内的平均ATS分
func (t *Tracker) AvgATSScore() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.atsScores) == 0 {
		return 0
	}
	var sum int
	for _, s := range t.atsScores {
		sum += s
	}
	return float64(sum) / float64(len(t.atsScores))
}

// Health 按错误率分级：无请求为idle，错误率超50%为critical，
// 超20%为warning，否则healthy
func (t *Tracker) Health() string {
	t.mu.Lock()
	total := t.totalRequests
	errs := t.totalErrors
	t.mu.Unlock()

	if total == 0 {
		return HealthIdle
	}
	rate := float64(errs) / float64(total)
	switch {
	case rate > 0.5:
		return HealthCritical
	case rate > 0.2:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// pruneDaily 清理超过保留期的日桶与小时桶
func (t *Tracker) pruneDaily() {
	cutoff := t.now().AddDate(0, 0, -constants.UsageRetentionDays).Format(dateLayout)
	hourCutoff := t.now().Add(-constants.UsageHourlyRetention).Format(hourLayout)

	t.mu.Lock()
	removed := 0
	for date := range t.daily {
		if date < cutoff {
			delete(t.daily, date)
			removed++
		}
	}
	for hour := range t.hourly {
		if hour < hourCutoff {
			delete(t.hourly, hour)
			removed++
		}
	}
	t.mu.Unlock()

	if removed > 0 {
		logger.Info().Int("removed", removed).Msg("已清理过期的统计时间桶")
	}
}

func appendCapped[T any](window []T, v T, limit int) []T {
	window = append(window, v)
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	return window
}
