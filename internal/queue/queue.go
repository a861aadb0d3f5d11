package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/types"
)

var (
	ErrQueueUnavailable = errors.New("任务队列不可用")
	ErrTooManyFiles     = errors.New("批量任务文件数超出上限")
)

// FileUpload 待入队的单个上传文件
type FileUpload struct {
	Filename string
	Data     []byte
	MimeType string
}

// Queue 异步分析任务队列。文件暂存MinIO，消息走RabbitMQ，
// 任务状态保存在Redis并按完成状态设置保留期。
type Queue struct {
	mq    *storage.RabbitMQ
	minio *storage.MinIO
	redis *storage.Redis
	proc  *processor.ResumeProcessor
	cfg   *config.RabbitMQConfig

	paused atomic.Bool

	stopChs []chan struct{}
	mu      sync.Mutex
}

// New 创建任务队列并声明exchange/队列/绑定
func New(st *storage.Storage, proc *processor.ResumeProcessor, cfg *config.RabbitMQConfig) (*Queue, error) {
	if st == nil || st.RabbitMQ == nil || st.MinIO == nil || st.Redis == nil {
		return nil, fmt.Errorf("%w: 需要RabbitMQ、MinIO与Redis", ErrQueueUnavailable)
	}

	q := &Queue{
		mq:    st.RabbitMQ,
		minio: st.MinIO,
		redis: st.Redis,
		proc:  proc,
		cfg:   cfg,
	}

	if err := q.declareTopology(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) declareTopology() error {
	if err := q.mq.EnsureExchange(q.cfg.AnalyzeExchange, "direct", true); err != nil {
		return err
	}
	for _, binding := range []struct {
		queue, routingKey string
	}{
		{q.cfg.SingleQueue, q.cfg.SingleRoutingKey},
		{q.cfg.BulkQueue, q.cfg.BulkRoutingKey},
	} {
		if err := q.mq.EnsureQueue(binding.queue, true); err != nil {
			return err
		}
		if err := q.mq.BindQueue(binding.queue, q.cfg.AnalyzeExchange, binding.routingKey); err != nil {
			return err
		}
	}
	return nil
}

// newJobID 生成时间有序的任务ID
func newJobID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("生成任务ID失败: %w", err)
	}
	return id.String(), nil
}

// EnqueueSingle 暂存文件并投递单文件分析任务，返回任务ID
func (q *Queue) EnqueueSingle(ctx context.Context, apiKey string, file FileUpload, industryID string) (string, error) {
	jobID, err := newJobID()
	if err != nil {
		return "", err
	}

	objectPath, err := q.minio.UploadJobFile(ctx, jobID, file.Filename, file.Data, file.MimeType)
	if err != nil {
		return "", fmt.Errorf("暂存任务文件失败: %w", err)
	}

	now := time.Now().UTC()
	state := &types.JobState{
		JobID:     jobID,
		Status:    constants.JobStatusQueued,
		CreatedAt: now,
	}
	if err := q.redis.SaveJobState(ctx, state); err != nil {
		return "", err
	}
	if err := q.redis.AddJobToIndex(ctx, jobID, now); err != nil {
		logger.Warn().Err(err).Str("jobId", jobID).Msg("任务索引写入失败")
	}

	msg := storage.SingleAnalyzeMessage{
		JobID:      jobID,
		APIKey:     apiKey,
		Filename:   file.Filename,
		ObjectPath: objectPath,
		MimeType:   file.MimeType,
		Industry:   industryID,
		EnqueuedAt: now,
	}
	if err := q.mq.PublishJSON(ctx, q.cfg.AnalyzeExchange, q.cfg.SingleRoutingKey, msg, true); err != nil {
		return "", fmt.Errorf("投递单文件任务失败: %w", err)
	}

	logger.Info().
		Str("jobId", jobID).
		Str("filename", file.Filename).
		Msg("单文件分析任务已入队")
	return jobID, nil
}

// EnqueueBulk 暂存一批文件并投递批量分析任务，返回任务ID
func (q *Queue) EnqueueBulk(ctx context.Context, apiKey string, files []FileUpload, industryID string) (string, error) {
	if len(files) > constants.MaxBulkFiles {
		return "", fmt.Errorf("%w: %d > %d", ErrTooManyFiles, len(files), constants.MaxBulkFiles)
	}

	jobID, err := newJobID()
	if err != nil {
		return "", err
	}

	refs := make([]storage.BulkFileRef, 0, len(files))
	for _, file := range files {
		objectPath, upErr := q.minio.UploadJobFile(ctx, jobID, file.Filename, file.Data, file.MimeType)
		if upErr != nil {
			// 已暂存的部分一并清掉
			if delErr := q.minio.DeleteJobFiles(ctx, jobID); delErr != nil {
				logger.Warn().Err(delErr).Str("jobId", jobID).Msg("清理部分暂存文件失败")
			}
			return "", fmt.Errorf("暂存批量任务文件失败: %w", upErr)
		}
		refs = append(refs, storage.BulkFileRef{
			Filename:   file.Filename,
			ObjectPath: objectPath,
			MimeType:   file.MimeType,
		})
	}

	now := time.Now().UTC()
	state := &types.JobState{
		JobID:     jobID,
		Status:    constants.JobStatusQueued,
		CreatedAt: now,
	}
	if err := q.redis.SaveJobState(ctx, state); err != nil {
		return "", err
	}
	if err := q.redis.AddJobToIndex(ctx, jobID, now); err != nil {
		logger.Warn().Err(err).Str("jobId", jobID).Msg("任务索引写入失败")
	}

	msg := storage.BulkAnalyzeMessage{
		JobID:      jobID,
		APIKey:     apiKey,
		Files:      refs,
		Industry:   industryID,
		EnqueuedAt: now,
	}
	if err := q.mq.PublishJSON(ctx, q.cfg.AnalyzeExchange, q.cfg.BulkRoutingKey, msg, true); err != nil {
		return "", fmt.Errorf("投递批量任务失败: %w", err)
	}

	logger.Info().
		Str("jobId", jobID).
		Int("files", len(refs)).
		Msg("批量分析任务已入队")
	return jobID, nil
}

// GetJob 查询任务状态。不存在（或已过保留期）返回status=not_found的合成状态。
func (q *Queue) GetJob(ctx context.Context, jobID string) (*types.JobState, error) {
	state, err := q.redis.GetJobState(ctx, jobID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &types.JobState{
				JobID:  jobID,
				Status: constants.JobStatusNotFound,
			}, nil
		}
		return nil, err
	}
	return state, nil
}

// Stats 队列运行统计
type Stats struct {
	Queued        int64  `json:"queued"`
	Active        int64  `json:"active"`
	Completed     int64  `json:"completed"`
	Failed        int64  `json:"failed"`
	SingleWorkers int    `json:"singleWorkers"`
	BulkWorkers   int    `json:"bulkWorkers"`
	Paused        bool   `json:"paused"`
}

// GetStats 汇总任务计数与worker配置
func (q *Queue) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		SingleWorkers: q.cfg.SingleWorkers,
		BulkWorkers:   q.cfg.BulkWorkers,
		Paused:        q.paused.Load(),
	}

	counters, err := q.redis.GetJobCounters(ctx)
	if err == nil {
		if v, ok := counters["completed"]; ok {
			stats.Completed, _ = strconv.ParseInt(v, 10, 64)
		}
		if v, ok := counters["failed"]; ok {
			stats.Failed, _ = strconv.ParseInt(v, 10, 64)
		}
	}

	jobIDs, err := q.redis.ListJobIDs(ctx)
	if err != nil {
		return stats, nil
	}
	for _, id := range jobIDs {
		state, stateErr := q.redis.GetJobState(ctx, id)
		if stateErr != nil {
			continue
		}
		switch state.Status {
		case constants.JobStatusQueued:
			stats.Queued++
		case constants.JobStatusActive:
			stats.Active++
		}
	}
	return stats, nil
}

// Pause 暂停消费。在途消息会被延迟重投，不丢失。
func (q *Queue) Pause() {
	q.paused.Store(true)
	logger.Info().Msg("任务队列已暂停")
}

// Resume 恢复消费
func (q *Queue) Resume() {
	q.paused.Store(false)
	logger.Info().Msg("任务队列已恢复")
}

// Paused 当前是否暂停
func (q *Queue) Paused() bool {
	return q.paused.Load()
}

// Cleanup 清理索引中状态已过保留期的任务ID，返回清理数量
func (q *Queue) Cleanup(ctx context.Context) (int, error) {
	jobIDs, err := q.redis.ListJobIDs(ctx)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, id := range jobIDs {
		if _, stateErr := q.redis.GetJobState(ctx, id); errors.Is(stateErr, storage.ErrNotFound) {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := q.redis.RemoveJobFromIndex(ctx, stale...); err != nil {
		return 0, err
	}
	logger.Info().Int("removed", len(stale)).Msg("已清理过期任务索引")
	return len(stale), nil
}

// Stop 停止所有worker
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, ch := range q.stopChs {
		close(ch)
	}
	q.stopChs = nil
}

// republish 按退避策略重投消息，attempt为下一次尝试序号
func (q *Queue) republish(routingKey string, payload interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := q.mq.PublishJSON(ctx, q.cfg.AnalyzeExchange, routingKey, payload, true); err != nil {
		logger.Error().Err(err).Str("routingKey", routingKey).Msg("重投任务消息失败")
	}
}

// saveState 更新任务状态并维护累计计数
func (q *Queue) saveState(ctx context.Context, state *types.JobState) {
	if err := q.redis.SaveJobState(ctx, state); err != nil {
		logger.Error().Err(err).Str("jobId", state.JobID).Msg("保存任务状态失败")
		return
	}
	switch state.Status {
	case constants.JobStatusCompleted:
		if err := q.redis.IncrJobCounter(ctx, "completed"); err != nil {
			logger.Debug().Err(err).Msg("任务完成计数失败")
		}
	case constants.JobStatusFailed:
		if err := q.redis.IncrJobCounter(ctx, "failed"); err != nil {
			logger.Debug().Err(err).Msg("任务失败计数失败")
		}
	}
}

func unmarshalMessage(body []byte, out interface{}) error {
	return json.Unmarshal(body, out)
}
