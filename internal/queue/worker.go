package queue

import (
	"context"
	"time"

	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/types"
	"resume-analyzer-go/internal/usage"
)

// pausedRequeueDelay 队列暂停时消息重投前的等待时间
const pausedRequeueDelay = 5 * time.Second

// jobTimeout 单个任务的处理超时
const jobTimeout = 10 * time.Minute

// StartWorkers 启动单文件与批量消费者。
// tracker可为nil（不记录使用事件）。
func (q *Queue) StartWorkers(tracker *usage.Tracker) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := 0; i < q.cfg.SingleWorkers; i++ {
		stopCh, err := q.mq.StartConsumer(q.cfg.SingleQueue, q.cfg.PrefetchCount, func(body []byte) bool {
			return q.handleSingle(body, tracker)
		})
		if err != nil {
			return err
		}
		q.stopChs = append(q.stopChs, stopCh)
	}

	for i := 0; i < q.cfg.BulkWorkers; i++ {
		stopCh, err := q.mq.StartConsumer(q.cfg.BulkQueue, q.cfg.PrefetchCount, func(body []byte) bool {
			return q.handleBulk(body, tracker)
		})
		if err != nil {
			return err
		}
		q.stopChs = append(q.stopChs, stopCh)
	}

	logger.Info().
		Int("singleWorkers", q.cfg.SingleWorkers).
		Int("bulkWorkers", q.cfg.BulkWorkers).
		Msg("分析任务worker已启动")
	return nil
}

// handleSingle 处理单文件任务消息。返回true表示ack。
func (q *Queue) handleSingle(body []byte, tracker *usage.Tracker) bool {
	var msg storage.SingleAnalyzeMessage
	if err := unmarshalMessage(body, &msg); err != nil {
		logger.Error().Err(err).Msg("单文件任务消息解析失败，丢弃")
		return true
	}

	if q.paused.Load() {
		time.Sleep(pausedRequeueDelay)
		q.republish(q.cfg.SingleRoutingKey, msg)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	q.saveState(ctx, &types.JobState{
		JobID:     msg.JobID,
		Status:    constants.JobStatusActive,
		Progress:  10,
		CreatedAt: msg.EnqueuedAt,
	})

	result, err := q.processSingle(ctx, &msg)
	if err != nil {
		return q.handleFailure(ctx, msg.JobID, msg.Attempt, err, func(attempt int) {
			retry := msg
			retry.Attempt = attempt
			q.republish(q.cfg.SingleRoutingKey, retry)
		})
	}

	q.saveState(ctx, &types.JobState{
		JobID:     msg.JobID,
		Status:    constants.JobStatusCompleted,
		Progress:  100,
		Result:    result,
		CreatedAt: msg.EnqueuedAt,
	})
	q.cleanupFiles(ctx, msg.JobID)

	if tracker != nil {
		tracker.RecordRequest(usage.Event{
			Endpoint:   "analyze_async",
			APIKey:     msg.APIKey,
			Success:    true,
			DurationMS: time.Since(start).Milliseconds(),
			ATSScore:   result.ATSCompatibility.Score,
			Industry:   result.IndustryAnalysis.Industry,
			Source:     result.Source,
		})
	}
	return true
}

func (q *Queue) processSingle(ctx context.Context, msg *storage.SingleAnalyzeMessage) (*types.AnalysisResult, error) {
	data, err := q.minio.DownloadJobFile(ctx, msg.ObjectPath)
	if err != nil {
		return nil, err
	}

	if err := q.redis.UpdateJobProgress(ctx, msg.JobID, 50); err != nil {
		logger.Debug().Err(err).Str("jobId", msg.JobID).Msg("更新任务进度失败")
	}

	return q.proc.ProcessFile(ctx, msg.Filename, data, msg.MimeType, msg.Industry)
}

// handleBulk 处理批量任务消息。单个文件失败不中断整批,
// 每个文件的成败单独记录在结果里。
func (q *Queue) handleBulk(body []byte, tracker *usage.Tracker) bool {
	var msg storage.BulkAnalyzeMessage
	if err := unmarshalMessage(body, &msg); err != nil {
		logger.Error().Err(err).Msg("批量任务消息解析失败，丢弃")
		return true
	}

	if q.paused.Load() {
		time.Sleep(pausedRequeueDelay)
		q.republish(q.cfg.BulkRoutingKey, msg)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := time.Now()
	q.saveState(ctx, &types.JobState{
		JobID:     msg.JobID,
		Status:    constants.JobStatusActive,
		CreatedAt: msg.EnqueuedAt,
	})

	bulk := aggregateBulk(ctx, msg.Files, msg.Industry, q.minio.DownloadJobFile, q.proc, func(progress int) {
		if err := q.redis.UpdateJobProgress(ctx, msg.JobID, progress); err != nil {
			logger.Debug().Err(err).Str("jobId", msg.JobID).Msg("更新任务进度失败")
		}
	})

	// 整批全部失败才按失败重试；有任何成功都视为任务完成
	if bulk.SuccessCount == 0 && bulk.TotalFiles > 0 {
		return q.handleFailure(ctx, msg.JobID, msg.Attempt, errBulkAllFailed(bulk), func(attempt int) {
			retry := msg
			retry.Attempt = attempt
			q.republish(q.cfg.BulkRoutingKey, retry)
		})
	}

	q.saveState(ctx, &types.JobState{
		JobID:     msg.JobID,
		Status:    constants.JobStatusCompleted,
		Progress:  100,
		Result:    bulk,
		CreatedAt: msg.EnqueuedAt,
	})
	q.cleanupFiles(ctx, msg.JobID)

	if tracker != nil {
		tracker.RecordRequest(usage.Event{
			Endpoint:   "bulk_analyze_async",
			APIKey:     msg.APIKey,
			Success:    true,
			DurationMS: time.Since(start).Milliseconds(),
		})
	}
	return true
}

// aggregateBulk 逐个拉取并分析文件，单个文件失败只记录不中断
func aggregateBulk(ctx context.Context, files []storage.BulkFileRef, industry string,
	fetch func(context.Context, string) ([]byte, error), proc *processor.ResumeProcessor,
	onProgress func(int)) types.BulkResult {

	bulk := types.BulkResult{TotalFiles: len(files)}
	for i, ref := range files {
		fileResult := types.BulkFileResult{Filename: ref.Filename}

		data, err := fetch(ctx, ref.ObjectPath)
		if err == nil {
			var analysis *types.AnalysisResult
			analysis, err = proc.ProcessFile(ctx, ref.Filename, data, ref.MimeType, industry)
			if err == nil {
				fileResult.Success = true
				fileResult.Analysis = analysis
				bulk.SuccessCount++
			}
		}
		if err != nil {
			fileResult.Error = err.Error()
			bulk.FailureCount++
			logger.Warn().Err(err).
				Str("filename", ref.Filename).
				Msg("批量任务中的文件处理失败")
		}
		bulk.Files = append(bulk.Files, fileResult)

		onProgress((i + 1) * 100 / len(files))
	}
	return bulk
}

// handleFailure 按指数退避重试，超过上限后标记任务失败。
// 退避等待后由republish重投，消息本身ack掉。
func (q *Queue) handleFailure(ctx context.Context, jobID string, attempt int, err error, retryFn func(nextAttempt int)) bool {
	if attempt < constants.JobMaxRetries {
		backoff := constants.JobRetryBaseBackoff * time.Duration(1<<attempt)
		logger.Warn().Err(err).
			Str("jobId", jobID).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("任务处理失败，准备重试")

		time.Sleep(backoff)
		retryFn(attempt + 1)
		return true
	}

	logger.Error().Err(err).
		Str("jobId", jobID).
		Int("attempts", attempt).
		Msg("任务重试次数耗尽，标记失败")

	q.saveState(ctx, &types.JobState{
		JobID:  jobID,
		Status: constants.JobStatusFailed,
		Error:  err.Error(),
	})
	q.cleanupFiles(ctx, jobID)
	return true
}

func (q *Queue) cleanupFiles(ctx context.Context, jobID string) {
	if err := q.minio.DeleteJobFiles(ctx, jobID); err != nil {
		logger.Warn().Err(err).Str("jobId", jobID).Msg("清理任务暂存文件失败")
	}
}

type bulkAllFailedError struct {
	failures int
}

func (e bulkAllFailedError) Error() string {
	return "批量任务中所有文件处理失败"
}

func errBulkAllFailed(bulk types.BulkResult) error {
	return bulkAllFailedError{failures: bulk.FailureCount}
}
