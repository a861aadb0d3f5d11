package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/types"
	"resume-analyzer-go/pkg/utils"
)

const (
	// defaultMaxEntries 本地缓存条目上限，超出后淘汰最早过期的条目
	defaultMaxEntries = 2048
	// janitorInterval 过期条目清理周期
	janitorInterval = 5 * time.Minute
)

// Recorder 缓存命中/未命中事件的接收方（使用统计模块实现）
type Recorder interface {
	RecordCacheEvent(hit bool)
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

// Cache 两级结果缓存：进程内TTL存储为主，Redis作为跨实例镜像。
// Redis不可用时静默降级为纯本地缓存，不影响请求处理。
type Cache struct {
	mu         sync.RWMutex
	local      map[string]entry
	maxEntries int

	rdb      *redis.Client
	recorder Recorder

	hits   int64
	misses int64

	stopCh chan struct{}
}

// New 创建缓存。rdb和recorder均可为nil。
func New(rdb *redis.Client, recorder Recorder) *Cache {
	c := &Cache{
		local:      make(map[string]entry),
		maxEntries: defaultMaxEntries,
		rdb:        rdb,
		recorder:   recorder,
		stopCh:     make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Key 按结果类型和内容MD5生成缓存键，与Redis键格式一致
func Key(kind string, content []byte) string {
	return fmt.Sprintf(constants.KeyAnalysisCache, kind, utils.CalculateMD5(content))
}

// TTLForKind 返回各结果类型的缓存有效期
func TTLForKind(kind string) time.Duration {
	switch kind {
	case constants.CacheKindAnalysis:
		return constants.AnalysisCacheTTL
	case constants.CacheKindIndustry:
		return constants.IndustryCacheTTL
	case constants.CacheKindATS:
		return constants.ATSCacheTTL
	default:
		return constants.AnalysisCacheTTL
	}
}

// GetAnalysis 查询完整分析结果缓存
func (c *Cache) GetAnalysis(ctx context.Context, key string) (*types.AnalysisResult, bool) {
	data, ok := c.get(ctx, key)
	if !ok {
		return nil, false
	}
	var result types.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("缓存条目反序列化失败，按未命中处理")
		c.Delete(ctx, key)
		return nil, false
	}
	return &result, true
}

// SetAnalysis 写入完整分析结果缓存
func (c *Cache) SetAnalysis(ctx context.Context, key string, result *types.AnalysisResult, ttl time.Duration) {
	data, err := json.Marshal(result)
	if err != nil {
		logger.Warn().Err(err).Msg("分析结果序列化失败，跳过缓存写入")
		return
	}
	c.set(ctx, key, data, ttl)
}

// get 先查本地，本地未命中再查Redis并回填本地
func (c *Cache) get(ctx context.Context, key string) ([]byte, bool) {
	now := time.Now()

	c.mu.RLock()
	e, ok := c.local[key]
	c.mu.RUnlock()

	if ok && now.Before(e.expiresAt) {
		c.recordEvent(true)
		return e.data, true
	}

	if c.rdb != nil {
		val, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil {
			// Redis命中，回填本地。剩余TTL从Redis读取，失败则用默认TTL
			ttl, ttlErr := c.rdb.TTL(ctx, key).Result()
			if ttlErr != nil || ttl <= 0 {
				ttl = constants.AnalysisCacheTTL
			}
			c.storeLocal(key, val, ttl)
			c.recordEvent(true)
			return val, true
		}
		if err != redis.Nil {
			logger.Debug().Err(err).Msg("Redis缓存查询失败，降级为本地缓存")
		}
	}

	c.recordEvent(false)
	return nil, false
}

// set 同时写本地与Redis，Redis写入失败只记日志
func (c *Cache) set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	c.storeLocal(key, data, ttl)

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
			logger.Debug().Err(err).Str("key", key).Msg("Redis缓存写入失败")
		}
	}
}

// Delete 删除指定缓存条目
func (c *Cache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()

	if c.rdb != nil {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			logger.Debug().Err(err).Str("key", key).Msg("Redis缓存删除失败")
		}
	}
}

// Clear 清空本地缓存并按前缀删除Redis镜像（维护操作使用）
func (c *Cache) Clear(ctx context.Context) int {
	c.mu.Lock()
	removed := len(c.local)
	c.local = make(map[string]entry)
	c.mu.Unlock()

	if c.rdb != nil {
		pattern := fmt.Sprintf("%s:%s:*", constants.AppPrefix, constants.CacheModulePrefix)
		iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
				logger.Debug().Err(err).Msg("Redis缓存清空时删除失败")
			}
		}
		if err := iter.Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis缓存清空扫描失败")
		}
	}

	logger.Info().Int("removed", removed).Msg("缓存已清空")
	return removed
}

// Stats 返回累计命中/未命中次数与当前本地条目数
func (c *Cache) Stats() (hits, misses int64, entries int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.local)
}

// HitRate 命中率，无请求时返回0
func (c *Cache) HitRate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// Close 停止后台清理
func (c *Cache) Close() {
	close(c.stopCh)
}

func (c *Cache) storeLocal(key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.local) >= c.maxEntries {
		c.evictLocked()
	}
	c.local[key] = entry{data: data, expiresAt: time.Now().Add(ttl)}
}

// evictLocked 淘汰最早过期的条目，调用方需持有写锁
func (c *Cache) evictLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.local {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey = k
			oldest = e.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.local, oldestKey)
	}
}

func (c *Cache) recordEvent(hit bool) {
	c.mu.Lock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
	c.mu.Unlock()

	if c.recorder != nil {
		c.recorder.RecordCacheEvent(hit)
	}
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, e := range c.local {
				if now.After(e.expiresAt) {
					delete(c.local, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
