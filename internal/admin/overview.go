package admin

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"resume-analyzer-go/internal/constants"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/queue"
	"resume-analyzer-go/internal/types"
	"resume-analyzer-go/internal/usage"
)

// Overview 系统概览
type Overview struct {
	Health        string         `json:"health"`
	Uptime        string         `json:"uptime"`
	TotalRequests int64          `json:"totalRequests"`
	TotalErrors   int64          `json:"totalErrors"`
	ErrorRate     float64        `json:"errorRate"`
	CacheHitRate  float64        `json:"cacheHitRate"`
	AvgDurationMS float64        `json:"avgDurationMs"`
	AvgATSScore   float64        `json:"avgAtsScore"`
	APIKeys       int            `json:"apiKeys"`
	ActiveKeys    int            `json:"activeKeys"`
	QueueStats    *queue.Stats   `json:"queueStats,omitempty"`
	Maintenance   bool           `json:"maintenance"`
	ByEndpoint    map[string]int64 `json:"byEndpoint"`
	ByIndustry    map[string]int64 `json:"byIndustry"`
}

// Alert 单条告警
type Alert struct {
	Level   string  `json:"level"` // warning / critical
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Value   float64 `json:"value"`
	Limit   float64 `json:"limit"`
}

// GetOverview 汇总各模块的运行状态
func (s *Service) GetOverview(ctx context.Context) (*Overview, error) {
	snap := s.tracker.Snapshot()

	ov := &Overview{
		Health:        s.tracker.Health(),
		Uptime:        time.Since(snap.StartedAt).Round(time.Second).String(),
		TotalRequests: snap.TotalRequests,
		TotalErrors:   snap.TotalErrors,
		ErrorRate:     s.tracker.ErrorRate(),
		CacheHitRate:  s.tracker.CacheHitRate(),
		AvgDurationMS: s.tracker.AvgDurationMS(),
		AvgATSScore:   s.tracker.AvgATSScore(),
		Maintenance:   s.MaintenanceEnabled(),
		ByEndpoint:    snap.ByEndpoint,
		ByIndustry:    snap.ByIndustry,
	}

	if keys, err := s.keys.ListKeys(ctx); err == nil {
		ov.APIKeys = len(keys)
		for _, k := range keys {
			if k.Active {
				ov.ActiveKeys++
			}
		}
	}

	if s.queue != nil {
		if stats, err := s.queue.GetStats(ctx); err == nil {
			ov.QueueStats = stats
		}
	}

	return ov, nil
}

// GetAlerts 按数据库中的阈值生成告警列表
func (s *Service) GetAlerts(ctx context.Context) ([]Alert, error) {
	settings, err := s.mysql.GetAdminSettings(ctx)
	if err != nil {
		return nil, err
	}

	var alerts []Alert

	errorRate := s.tracker.ErrorRate()
	if errorRate > settings.ErrorRateWarn {
		level := "warning"
		if errorRate > 0.5 {
			level = "critical"
		}
		alerts = append(alerts, Alert{
			Level:   level,
			Code:    "error_rate",
			Message: "错误率超出告警阈值",
			Value:   errorRate,
			Limit:   settings.ErrorRateWarn,
		})
	}

	// 命中率告警只在有足够流量后才有意义
	snap := s.tracker.Snapshot()
	if snap.CacheHits+snap.CacheMisses >= 50 {
		hitRate := s.tracker.CacheHitRate()
		if hitRate < settings.CacheHitRateWarn {
			alerts = append(alerts, Alert{
				Level:   "warning",
				Code:    "cache_hit_rate",
				Message: "缓存命中率低于告警阈值",
				Value:   hitRate,
				Limit:   settings.CacheHitRateWarn,
			})
		}
	}

	avgDuration := s.tracker.AvgDurationMS()
	if avgDuration > float64(settings.ProcessingTimeWarnMS) {
		alerts = append(alerts, Alert{
			Level:   "warning",
			Code:    "processing_time",
			Message: "平均处理耗时超出告警阈值",
			Value:   avgDuration,
			Limit:   float64(settings.ProcessingTimeWarnMS),
		})
	}

	return alerts, nil
}

// backupPayload 备份文件内容
type backupPayload struct {
	CreatedAt time.Time       `json:"createdAt"`
	Usage     usage.Snapshot  `json:"usage"`
	Keys      []types.KeyInfo `json:"keys"`
	Settings  interface{}     `json:"settings"`
}

// Backup 生成带时间戳的备份文件，只保留最近N份
func (s *Service) Backup(ctx context.Context, username string) (string, error) {
	if s.backupDir == "" {
		return "", fmt.Errorf("未配置备份目录")
	}
	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return "", fmt.Errorf("创建备份目录失败: %w", err)
	}

	payload := backupPayload{
		CreatedAt: time.Now().UTC(),
		Usage:     s.tracker.Snapshot(),
	}
	if keys, err := s.keys.ListKeys(ctx); err == nil {
		payload.Keys = keys
	}
	if settings, err := s.mysql.GetAdminSettings(ctx); err == nil {
		payload.Settings = settings
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化备份内容失败: %w", err)
	}

	filename := fmt.Sprintf("backup_%s.json", payload.CreatedAt.Format("20060102T150405"))
	path := filepath.Join(s.backupDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("写入备份文件失败: %w", err)
	}

	s.pruneBackups()
	s.audit(username, "backup", filename)
	return path, nil
}

// pruneBackups 按文件名排序，删除超出保留数量的最旧备份
func (s *Service) pruneBackups() {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		return
	}

	var backups []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			backups = append(backups, e.Name())
		}
	}
	if len(backups) <= constants.BackupKeepCount {
		return
	}

	// 文件名内嵌时间戳，字典序即时间序
	sort.Strings(backups)
	for _, name := range backups[:len(backups)-constants.BackupKeepCount] {
		if err := os.Remove(filepath.Join(s.backupDir, name)); err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("删除过期备份失败")
		}
	}
}

// ExportJSON 导出完整统计快照
func (s *Service) ExportJSON(username string) ([]byte, error) {
	snap := s.tracker.Snapshot()
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, err
	}
	s.audit(username, "export", "json")
	return data, nil
}

// ExportCSV 导出按日聚合的请求/错误计数
func (s *Service) ExportCSV(username string) ([]byte, error) {
	snap := s.tracker.Snapshot()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"date", "requests", "errors"}); err != nil {
		return nil, err
	}
	for _, bucket := range snap.Daily {
		record := []string{
			bucket.Date,
			strconv.FormatInt(bucket.Requests, 10),
			strconv.FormatInt(bucket.Errors, 10),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	s.audit(username, "export", "csv")
	return buf.Bytes(), nil
}

// ClearCache 清空分析结果缓存（维护操作）
func (s *Service) ClearCache(ctx context.Context, username string) int {
	removed := 0
	if s.cache != nil {
		removed = s.cache.Clear(ctx)
	}
	s.audit(username, "clear_cache", strconv.Itoa(removed))
	return removed
}
