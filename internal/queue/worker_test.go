package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-analyzer-go/internal/analyzer"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/types"
)

type textOnlyExtractor struct{}

func (textOnlyExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("空文件")
	}
	return string(data), nil
}

const workerTestResume = `Experience
Backend developer, built Go services for payments.
- Improved throughput and reduced errors

Education
Bachelor of Science, 2019

Skills
Go, SQL, Docker
dev@example.com 555-987-6543`

// memoryFetch 模拟对象存储：按路径返回预置内容，缺失路径返回错误
func memoryFetch(objects map[string][]byte) func(context.Context, string) ([]byte, error) {
	return func(_ context.Context, path string) ([]byte, error) {
		data, ok := objects[path]
		if !ok {
			return nil, fmt.Errorf("对象不存在: %s", path)
		}
		return data, nil
	}
}

func TestAggregateBulkPartialFailure(t *testing.T) {
	proc := processor.NewResumeProcessor(textOnlyExtractor{}, analyzer.NewScorer(nil), nil)

	objects := map[string][]byte{
		"jobs/j1/0_a.pdf": []byte(workerTestResume),
		"jobs/j1/1_b.pdf": []byte(workerTestResume + "\nPython, AWS"),
		"jobs/j1/2_c.pdf": []byte(workerTestResume + "\nKubernetes"),
		"jobs/j1/3_d.pdf": {}, // 提取失败
	}
	files := []storage.BulkFileRef{
		{Filename: "a.pdf", ObjectPath: "jobs/j1/0_a.pdf", MimeType: "application/pdf"},
		{Filename: "b.pdf", ObjectPath: "jobs/j1/1_b.pdf", MimeType: "application/pdf"},
		{Filename: "c.pdf", ObjectPath: "jobs/j1/2_c.pdf", MimeType: "application/pdf"},
		{Filename: "d.pdf", ObjectPath: "jobs/j1/3_d.pdf", MimeType: "application/pdf"},
	}

	var progress []int
	bulk := aggregateBulk(context.Background(), files, "", memoryFetch(objects), proc, func(p int) {
		progress = append(progress, p)
	})

	assert.Equal(t, 4, bulk.TotalFiles)
	assert.Equal(t, 3, bulk.SuccessCount)
	assert.Equal(t, 1, bulk.FailureCount)
	require.Len(t, bulk.Files, 4)

	for _, f := range bulk.Files[:3] {
		assert.True(t, f.Success)
		require.NotNil(t, f.Analysis)
		assert.GreaterOrEqual(t, f.Analysis.OverallScore, 1)
		assert.LessOrEqual(t, f.Analysis.OverallScore, 10)
		assert.Empty(t, f.Error)
	}

	failed := bulk.Files[3]
	assert.False(t, failed.Success)
	assert.Equal(t, "d.pdf", failed.Filename)
	assert.NotEmpty(t, failed.Error)
	assert.Nil(t, failed.Analysis)

	assert.Equal(t, []int{25, 50, 75, 100}, progress)
}

func TestAggregateBulkFetchFailure(t *testing.T) {
	proc := processor.NewResumeProcessor(textOnlyExtractor{}, analyzer.NewScorer(nil), nil)

	files := []storage.BulkFileRef{
		{Filename: "ghost.pdf", ObjectPath: "jobs/j2/missing", MimeType: "application/pdf"},
	}
	bulk := aggregateBulk(context.Background(), files, "", memoryFetch(nil), proc, func(int) {})

	assert.Equal(t, 1, bulk.TotalFiles)
	assert.Zero(t, bulk.SuccessCount)
	assert.Equal(t, 1, bulk.FailureCount)
	assert.Contains(t, bulk.Files[0].Error, "对象不存在")
}

func TestAggregateBulkForcedIndustry(t *testing.T) {
	proc := processor.NewResumeProcessor(textOnlyExtractor{}, analyzer.NewScorer(nil), nil)

	objects := map[string][]byte{"jobs/j3/0_a.pdf": []byte(workerTestResume)}
	files := []storage.BulkFileRef{
		{Filename: "a.pdf", ObjectPath: "jobs/j3/0_a.pdf", MimeType: "application/pdf"},
	}

	bulk := aggregateBulk(context.Background(), files, "finance", memoryFetch(objects), proc, func(int) {})
	require.Equal(t, 1, bulk.SuccessCount)
	assert.Equal(t, "finance", bulk.Files[0].Analysis.IndustryAnalysis.Industry)
}

func TestErrBulkAllFailed(t *testing.T) {
	bulk := types.BulkResult{TotalFiles: 2, FailureCount: 2}
	err := errBulkAllFailed(bulk)
	assert.NotEmpty(t, err.Error())
}
