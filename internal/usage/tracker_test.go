package usage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(filepath.Join(t.TempDir(), "events.log"), nil)
}

func TestHealthLevels(t *testing.T) {
	tr := newTestTracker(t)
	assert.Equal(t, HealthIdle, tr.Health())

	// 10次全部成功 -> healthy
	for i := 0; i < 10; i++ {
		tr.RecordRequest(Event{Endpoint: "analyze", Success: true})
	}
	assert.Equal(t, HealthHealthy, tr.Health())

	// 再加4次失败 -> 错误率4/14 ≈ 0.29 -> warning
	for i := 0; i < 4; i++ {
		tr.RecordRequest(Event{Endpoint: "analyze", Success: false})
	}
	assert.Equal(t, HealthWarning, tr.Health())

	// 失败堆到16次 -> 错误率16/26 > 0.5 -> critical
	for i := 0; i < 12; i++ {
		tr.RecordRequest(Event{Endpoint: "analyze", Success: false})
	}
	assert.Equal(t, HealthCritical, tr.Health())
}

func TestRecordRequestAggregation(t *testing.T) {
	tr := newTestTracker(t)

	tr.RecordRequest(Event{Endpoint: "analyze", Success: true, DurationMS: 120, ATSScore: 8, Industry: "technology", Source: "fallback", FileSize: 2048})
	tr.RecordRequest(Event{Endpoint: "analyze", Success: false, DurationMS: 80, Industry: "technology"})
	tr.RecordRequest(Event{Endpoint: "bulk_analyze", Success: true})

	snap := tr.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.Equal(t, int64(2), snap.ByEndpoint["analyze"])
	assert.Equal(t, int64(1), snap.ByEndpoint["bulk_analyze"])
	assert.Equal(t, int64(2), snap.ByIndustry["technology"])
	assert.Equal(t, int64(1), snap.BySource["fallback"])

	require.Len(t, snap.Daily, 1)
	assert.Equal(t, int64(3), snap.Daily[0].Requests)
	assert.Equal(t, int64(1), snap.Daily[0].Errors)

	assert.InDelta(t, 100.0, tr.AvgDurationMS(), 1e-9)
	assert.InDelta(t, 8.0, tr.AvgATSScore(), 1e-9)
	assert.InDelta(t, 1.0/3.0, tr.ErrorRate(), 1e-9)
}

func TestAPIKeyTruncatedInEvents(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "events.log")
	tr := NewTracker(logPath, nil)

	tr.RecordRequest(Event{Endpoint: "analyze", APIKey: "ra_0123456789abcdef", Success: true})
	tr.Stop(context.Background())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ra_01234"`)
	assert.NotContains(t, string(data), "89abcdef")
}

func TestRollingWindowCapped(t *testing.T) {
	window := []int{}
	for i := 0; i < 1500; i++ {
		window = appendCapped(window, i, 1000)
	}
	require.Len(t, window, 1000)
	// 先进先出：最老的500条被挤掉
	assert.Equal(t, 500, window[0])
	assert.Equal(t, 1499, window[len(window)-1])
}

func TestCacheEventRates(t *testing.T) {
	tr := newTestTracker(t)
	assert.Zero(t, tr.CacheHitRate())

	tr.RecordCacheEvent(true)
	tr.RecordCacheEvent(true)
	tr.RecordCacheEvent(false)
	assert.InDelta(t, 2.0/3.0, tr.CacheHitRate(), 1e-9)
}

func TestPruneDailyDropsOldBuckets(t *testing.T) {
	tr := newTestTracker(t)

	old := time.Now().AddDate(0, 0, -120)
	tr.RecordRequest(Event{Endpoint: "analyze", Success: true, Timestamp: old})
	tr.RecordRequest(Event{Endpoint: "analyze", Success: true})
	require.Len(t, tr.Snapshot().Daily, 2)

	tr.pruneDaily()

	snap := tr.Snapshot()
	require.Len(t, snap.Daily, 1)
	assert.Equal(t, time.Now().Format(dateLayout), snap.Daily[0].Date)
}

func TestHourlyBuckets(t *testing.T) {
	tr := newTestTracker(t)

	base := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	tr.RecordRequest(Event{Endpoint: "analyze", Success: true, Timestamp: base})
	tr.RecordRequest(Event{Endpoint: "analyze", Success: false, Timestamp: base.Add(10 * time.Minute)})
	tr.RecordRequest(Event{Endpoint: "analyze", Success: true, Timestamp: base.Add(time.Hour)})

	snap := tr.Snapshot()
	require.Len(t, snap.Hourly, 2)
	assert.Equal(t, "2026-03-10T09", snap.Hourly[0].Hour)
	assert.Equal(t, int64(2), snap.Hourly[0].Requests)
	assert.Equal(t, int64(1), snap.Hourly[0].Errors)
	assert.Equal(t, "2026-03-10T10", snap.Hourly[1].Hour)
	assert.Equal(t, int64(1), snap.Hourly[1].Requests)
}

func TestPruneDropsOldHourlyBuckets(t *testing.T) {
	tr := newTestTracker(t)

	tr.RecordRequest(Event{Endpoint: "analyze", Success: true, Timestamp: time.Now().Add(-72 * time.Hour)})
	tr.RecordRequest(Event{Endpoint: "analyze", Success: true})
	require.Len(t, tr.Snapshot().Hourly, 2)

	tr.pruneDaily()

	snap := tr.Snapshot()
	require.Len(t, snap.Hourly, 1)
	assert.Equal(t, time.Now().Format(hourLayout), snap.Hourly[0].Hour)
}

func TestByAPIKeyCounts(t *testing.T) {
	tr := newTestTracker(t)

	tr.RecordRequest(Event{Endpoint: "analyze", APIKey: "ra_0123456789abcdef", Success: true})
	tr.RecordRequest(Event{Endpoint: "analyze", APIKey: "ra_0123456789abcdef", Success: true})
	tr.RecordRequest(Event{Endpoint: "analyze", APIKey: "ra_fedcba9876543210", Success: true})
	tr.RecordRequest(Event{Endpoint: "analyze", Success: true}) // 匿名请求不计入

	snap := tr.Snapshot()
	// 计数键与事件日志一致，只保留密钥前8位
	assert.Equal(t, int64(2), snap.ByAPIKey["ra_01234"])
	assert.Equal(t, int64(1), snap.ByAPIKey["ra_fedcb"])
	assert.Len(t, snap.ByAPIKey, 2)
}

func TestErrorTypeHistogram(t *testing.T) {
	tr := newTestTracker(t)

	tr.RecordRequest(Event{Endpoint: "analyze", Success: false, ErrorType: "extract_failed"})
	tr.RecordRequest(Event{Endpoint: "analyze", Success: false, ErrorType: "extract_failed"})
	tr.RecordRequest(Event{Endpoint: "analyze", Success: false, ErrorType: "file_too_large"})
	tr.RecordRequest(Event{Endpoint: "analyze", Success: false})
	tr.RecordRequest(Event{Endpoint: "analyze", Success: true, ErrorType: "extract_failed"}) // 成功事件不计入

	snap := tr.Snapshot()
	assert.Equal(t, int64(2), snap.ErrorTypes["extract_failed"])
	assert.Equal(t, int64(1), snap.ErrorTypes["file_too_large"])
	assert.Equal(t, int64(1), snap.ErrorTypes["unknown"])
}

func TestEventLogRotation(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "events.log")

	log := newEventLog(logPath, 256)
	for i := 0; i < 20; i++ {
		log.Append(Event{Endpoint: "analyze", Success: true, Timestamp: time.Now(), DurationMS: int64(i)})
	}
	log.Close()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	rotated := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "events.log.") {
			rotated++
		}
	}
	assert.Greater(t, rotated, 0)
}
