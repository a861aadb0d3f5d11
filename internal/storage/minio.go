package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/logger"
)

// ObjectStorage 对象存储接口，异步任务的原始文件暂存
type ObjectStorage interface {
	// UploadJobFile 上传任务文件，对象路径为 {jobID}/{filename}
	UploadJobFile(ctx context.Context, jobID, filename string, data []byte, contentType string) (string, error)

	// DownloadJobFile 按对象路径下载文件
	DownloadJobFile(ctx context.Context, objectName string) ([]byte, error)

	// DeleteJobFiles 删除任务下的所有暂存文件
	DeleteJobFiles(ctx context.Context, jobID string) error

	// GetPresignedURL 获取预签名URL
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client        *minio.Client
	cfg           *config.MinIOConfig
	uploadsBucket string
}

// NewMinIO 创建MinIO客户端并确保暂存桶与生命周期规则就绪
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	uploadsBucket := cfg.UploadsBucket
	if uploadsBucket == "" {
		uploadsBucket = "resume-uploads"
	}

	m := &MinIO{
		client:        client,
		cfg:           cfg,
		uploadsBucket: uploadsBucket,
	}

	if err := m.ensureBucketExists(uploadsBucket, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保暂存存储桶 %s 存在失败: %w", uploadsBucket, err)
	}

	// 暂存文件按天数自动过期，分析结果产出后原始文件不需要长期保留
	if cfg.UploadExpireDays > 0 {
		if err := m.setupBucketLifecycle(context.Background(), uploadsBucket, "expire-uploads", cfg.UploadExpireDays); err != nil {
			logger.Warn().Err(err).Msg("设置MinIO生命周期规则失败")
		}
	}

	logger.Info().
		Str("endpoint", cfg.Endpoint).
		Str("bucket", uploadsBucket).
		Msg("MinIO客户端初始化成功")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		logger.Info().Str("bucket", bucketName).Msg("存储桶创建成功")
	}
	return nil
}

// setupBucketLifecycle 为指定存储桶设置按天过期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	lcConfig := lifecycle.NewConfiguration()
	lcConfig.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}
	return m.client.SetBucketLifecycle(ctx, bucketName, lcConfig)
}

// UploadJobFile 上传任务文件到暂存桶，返回对象路径
func (m *MinIO) UploadJobFile(ctx context.Context, jobID, filename string, data []byte, contentType string) (string, error) {
	objectName := path.Join(jobID, filename)

	_, err := m.client.PutObject(ctx, m.uploadsBucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传任务文件失败: %w", err)
	}

	logger.Debug().
		Str("object", objectName).
		Int("size", len(data)).
		Msg("任务文件已暂存")
	return objectName, nil
}

// DownloadJobFile 下载暂存文件
func (m *MinIO) DownloadJobFile(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.uploadsBucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取暂存文件失败: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取暂存文件失败: %w", err)
	}
	return data, nil
}

// DeleteJobFiles 删除任务前缀下的所有暂存对象
func (m *MinIO) DeleteJobFiles(ctx context.Context, jobID string) error {
	objectCh := m.client.ListObjects(ctx, m.uploadsBucket, minio.ListObjectsOptions{
		Prefix:    jobID + "/",
		Recursive: true,
	})

	for obj := range objectCh {
		if obj.Err != nil {
			return fmt.Errorf("列举任务文件失败: %w", obj.Err)
		}
		if err := m.client.RemoveObject(ctx, m.uploadsBucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("删除暂存文件 %s 失败: %w", obj.Key, err)
		}
	}
	return nil
}

// GetPresignedURL 获取下载用预签名URL
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.uploadsBucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成预签名URL失败: %w", err)
	}
	return u.String(), nil
}
