package storage

import "time"

// SingleAnalyzeMessage 单文件异步分析任务消息
type SingleAnalyzeMessage struct {
	JobID      string    `json:"job_id"`                // 任务ID (UUIDv7)
	APIKey     string    `json:"api_key"`               // 发起任务的密钥
	Filename   string    `json:"filename"`              // 原始文件名
	ObjectPath string    `json:"object_path"`           // MinIO暂存对象路径
	MimeType   string    `json:"mime_type"`             // 上传时声明的类型
	Industry   string    `json:"industry,omitempty"`    // 指定行业，空则自动分类
	EnqueuedAt time.Time `json:"enqueued_at"`           // 入队时间
	Attempt    int       `json:"attempt"`               // 当前尝试次数，从0开始
}

// BulkAnalyzeMessage 批量异步分析任务消息
type BulkAnalyzeMessage struct {
	JobID      string        `json:"job_id"`
	APIKey     string        `json:"api_key"`
	Files      []BulkFileRef `json:"files"`
	Industry   string        `json:"industry,omitempty"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
	Attempt    int           `json:"attempt"`
}

// BulkFileRef 批量任务中单个文件的暂存引用
type BulkFileRef struct {
	Filename   string `json:"filename"`
	ObjectPath string `json:"object_path"`
	MimeType   string `json:"mime_type"`
}
