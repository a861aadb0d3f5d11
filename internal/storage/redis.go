package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/types"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,     // 默认10
		MinIdleConns: cfg.MinIdleConns, // 默认2

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子，记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// --- 异步任务状态 ---

// SaveJobState 保存任务状态为HASH，并按状态设置保留TTL。
// completed保留24小时，failed保留7天，进行中的任务不设TTL。
func (r *Redis) SaveJobState(ctx context.Context, state *types.JobState) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyJobState, state.JobID)

	fields := map[string]interface{}{
		"status":     state.Status,
		"progress":   state.Progress,
		"error":      state.Error,
		"created_at": state.CreatedAt.UTC().Format(time.RFC3339),
	}
	if state.Result != nil {
		resultJSON, err := json.Marshal(state.Result)
		if err != nil {
			return fmt.Errorf("序列化任务结果失败: %w", err)
		}
		fields["result"] = string(resultJSON)
	}

	pipe := r.Client.TxPipeline()
	pipe.HSet(ctx, key, fields)

	switch state.Status {
	case constants.JobStatusCompleted:
		pipe.Expire(ctx, key, constants.CompletedJobRetention)
	case constants.JobStatusFailed:
		pipe.Expire(ctx, key, constants.FailedJobRetention)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存任务状态失败: %w", err)
	}
	return nil
}

// GetJobState 读取任务状态。键不存在时返回 ErrNotFound。
func (r *Redis) GetJobState(ctx context.Context, jobID string) (*types.JobState, error) {
	if r.Client == nil {
		return nil, fmt.Errorf("redis client is not initialized")
	}
	key := fmt.Sprintf(constants.KeyJobState, jobID)

	fields, err := r.Client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("读取任务状态失败: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	state := &types.JobState{
		JobID:  jobID,
		Status: fields["status"],
		Error:  fields["error"],
	}
	if p, convErr := strconv.Atoi(fields["progress"]); convErr == nil {
		state.Progress = p
	}
	if ts, parseErr := time.Parse(time.RFC3339, fields["created_at"]); parseErr == nil {
		state.CreatedAt = ts
	}
	if raw, ok := fields["result"]; ok && raw != "" {
		var result json.RawMessage = []byte(raw)
		state.Result = result
	}

	return state, nil
}

// UpdateJobProgress 只更新任务进度字段
func (r *Redis) UpdateJobProgress(ctx context.Context, jobID string, progress int) error {
	key := fmt.Sprintf(constants.KeyJobState, jobID)
	return r.Client.HSet(ctx, key, "progress", progress).Err()
}

// AddJobToIndex 将任务ID加入索引ZSET，score为入队时间戳
func (r *Redis) AddJobToIndex(ctx context.Context, jobID string, enqueuedAt time.Time) error {
	return r.Client.ZAdd(ctx, constants.KeyJobIndex, redis.Z{
		Score:  float64(enqueuedAt.Unix()),
		Member: jobID,
	}).Err()
}

// ListJobIDs 返回索引中的全部任务ID（按入队时间排序）
func (r *Redis) ListJobIDs(ctx context.Context) ([]string, error) {
	return r.Client.ZRange(ctx, constants.KeyJobIndex, 0, -1).Result()
}

// RemoveJobFromIndex 从索引中删除任务ID
func (r *Redis) RemoveJobFromIndex(ctx context.Context, jobIDs ...string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(jobIDs))
	for i, id := range jobIDs {
		members[i] = id
	}
	return r.Client.ZRem(ctx, constants.KeyJobIndex, members...).Err()
}

// IncrJobCounter 累加队列计数（completed/failed）
func (r *Redis) IncrJobCounter(ctx context.Context, field string) error {
	return r.Client.HIncrBy(ctx, constants.KeyJobCounters, field, 1).Err()
}

// GetJobCounters 读取队列累计计数
func (r *Redis) GetJobCounters(ctx context.Context) (map[string]string, error) {
	return r.Client.HGetAll(ctx, constants.KeyJobCounters).Result()
}

// --- 使用统计快照 ---

// SaveUsageSnapshot 保存聚合统计快照
func (r *Redis) SaveUsageSnapshot(ctx context.Context, snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化统计快照失败: %w", err)
	}
	return r.Client.Set(ctx, constants.KeyUsageSnapshot, data, 0).Err()
}

// LoadUsageSnapshot 读取聚合统计快照到out。键不存在时返回 ErrNotFound。
func (r *Redis) LoadUsageSnapshot(ctx context.Context, out interface{}) error {
	data, err := r.Client.Get(ctx, constants.KeyUsageSnapshot).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// --- 管理员会话 ---

// CreateAdminSession 创建管理员会话，值为用户名
func (r *Redis) CreateAdminSession(ctx context.Context, token, username string) error {
	key := fmt.Sprintf(constants.KeyAdminSession, token)
	return r.Client.Set(ctx, key, username, constants.AdminSessionTTL).Err()
}

// GetAdminSession 验证会话token，返回用户名。不存在或过期返回 ErrNotFound。
func (r *Redis) GetAdminSession(ctx context.Context, token string) (string, error) {
	key := fmt.Sprintf(constants.KeyAdminSession, token)
	username, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		return "", err
	}
	// 滑动续期：活跃会话每次校验后重置TTL
	if err := r.Client.Expire(ctx, key, constants.AdminSessionTTL).Err(); err != nil {
		logger.Debug().Err(err).Msg("管理员会话续期失败")
	}
	return username, nil
}

// DeleteAdminSession 注销会话
func (r *Redis) DeleteAdminSession(ctx context.Context, token string) error {
	key := fmt.Sprintf(constants.KeyAdminSession, token)
	return r.Client.Del(ctx, key).Err()
}
