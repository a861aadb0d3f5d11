package usage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"resume-analyzer-go/internal/logger"
)

// eventLog 追加式JSONL事件日志，超过阈值后轮转为带时间戳的归档文件
type eventLog struct {
	mu          sync.Mutex
	path        string
	rotateBytes int64
	file        *os.File
	size        int64
}

func newEventLog(path string, rotateBytes int64) *eventLog {
	return &eventLog{
		path:        path,
		rotateBytes: rotateBytes,
	}
}

// Append 追加一条事件。日志不可用时只记录告警，不影响请求处理。
func (l *eventLog) Append(event Event) {
	line, err := json.Marshal(event)
	if err != nil {
		logger.Warn().Err(err).Msg("使用事件序列化失败")
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureOpenLocked(); err != nil {
		logger.Warn().Err(err).Msg("打开使用事件日志失败")
		return
	}

	if l.size+int64(len(line)) > l.rotateBytes {
		if err := l.rotateLocked(); err != nil {
			logger.Warn().Err(err).Msg("轮转使用事件日志失败")
			return
		}
	}

	n, err := l.file.Write(line)
	if err != nil {
		logger.Warn().Err(err).Msg("写入使用事件日志失败")
		return
	}
	l.size += int64(n)
}

// Close 关闭日志文件
func (l *eventLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

func (l *eventLog) ensureOpenLocked() error {
	if l.file != nil {
		return nil
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	l.file = f
	l.size = info.Size()
	return nil
}

// rotateLocked 当前文件改名为带时间戳的归档，再新开一个日志文件
func (l *eventLog) rotateLocked() error {
	l.file.Close()
	l.file = nil

	archive := fmt.Sprintf("%s.%s", l.path, time.Now().Format("20060102T150405"))
	if err := os.Rename(l.path, archive); err != nil {
		return err
	}

	logger.Info().Str("archive", archive).Msg("使用事件日志已轮转")
	return l.ensureOpenLocked()
}
