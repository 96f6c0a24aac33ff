package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"ai-interview-go/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadFile 上传文件到原始文件存储桶
	UploadFile(ctx context.Context, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error)

	// DownloadFile 从原始文件存储桶下载文件
	DownloadFile(ctx context.Context, objectName string) ([]byte, error)

	// DeleteFile 从原始文件存储桶删除文件
	DeleteFile(ctx context.Context, objectName string) error

	// 简历特定操作
	UploadResumeFile(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, error)
	UploadParsedText(ctx context.Context, submissionUUID string, text string) (string, error)
	GetResumeFile(ctx context.Context, objectKey string) ([]byte, error)
	GetParsedText(ctx context.Context, objectKey string) (string, error)

	// 面试语音归档
	UploadInterviewAudio(ctx context.Context, sessionID string, turn int, audio []byte) (string, error)
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client         *minio.Client
	cfg            *config.MinIOConfig
	originalBucket string
	parsedBucket   string
	audioBucket    string
	logger         *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	// 创建MinIO客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	originalBucket := cfg.OriginalsBucket
	if originalBucket == "" {
		originalBucket = "resume-originals"
	}
	parsedBucket := cfg.ParsedBucket
	if parsedBucket == "" {
		parsedBucket = "resume-parsed"
	}
	audioBucket := cfg.AudioBucket
	if audioBucket == "" {
		audioBucket = "interview-audio"
	}

	m := &MinIO{
		client:         client,
		cfg:            cfg,
		originalBucket: originalBucket,
		parsedBucket:   parsedBucket,
		audioBucket:    audioBucket,
		logger:         logger,
	}

	// 确保存储桶存在
	for _, bucket := range []string{originalBucket, parsedBucket, audioBucket} {
		if err := m.ensureBucketExists(bucket, cfg.Location); err != nil {
			return nil, fmt.Errorf("确保存储桶 %s 存在失败: %w", bucket, err)
		}
	}

	logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
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
		m.logger.Printf("[MinIO] Bucket %s created.", bucketName)
	}
	return nil
}

// UploadFile 上传文件到原始文件存储桶
func (m *MinIO) UploadFile(ctx context.Context, objectName string, reader io.Reader, fileSize int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.originalBucket, objectName, reader, fileSize, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("上传对象 %s/%s 失败: %w", m.originalBucket, objectName, err)
	}
	return objectName, nil
}

// UploadResumeFile 上传原始简历文件到originalsBucket
// 返回MinIO中的对象键 (不含bucket前缀)
func (m *MinIO) UploadResumeFile(ctx context.Context, submissionUUID, fileExt string, reader io.Reader, fileSize int64) (string, error) {
	// 对象名称形如: resume/submissionUUID/original.pdf
	objectName := fmt.Sprintf("resume/%s/original%s", submissionUUID, fileExt)
	contentType := ContentTypeForExt(fileExt)

	return m.UploadFile(ctx, objectName, reader, fileSize, contentType)
}

// UploadParsedText 上传解析后的文本到parsedBucket
func (m *MinIO) UploadParsedText(ctx context.Context, submissionUUID string, text string) (string, error) {
	objectName := fmt.Sprintf("resume/%s/parsed_text.txt", submissionUUID)

	_, err := m.client.PutObject(ctx, m.parsedBucket, objectName, strings.NewReader(text), int64(len(text)), minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return "", fmt.Errorf("上传解析文本 %s 到存储桶 %s 失败: %w", objectName, m.parsedBucket, err)
	}
	return objectName, nil
}

// UploadInterviewAudio 归档一轮面试的TTS语音
func (m *MinIO) UploadInterviewAudio(ctx context.Context, sessionID string, turn int, audio []byte) (string, error) {
	objectName := fmt.Sprintf("interview/%s/turn_%03d.mp3", sessionID, turn)

	_, err := m.client.PutObject(ctx, m.audioBucket, objectName, bytes.NewReader(audio), int64(len(audio)), minio.PutObjectOptions{ContentType: "audio/mpeg"})
	if err != nil {
		return "", fmt.Errorf("上传面试语音 %s 到存储桶 %s 失败: %w", objectName, m.audioBucket, err)
	}
	return objectName, nil
}

// DownloadFile 从指定存储桶下载文件, objectName 可以带 "bucket/" 前缀
func (m *MinIO) DownloadFile(ctx context.Context, objectName string) ([]byte, error) {
	bucketName := m.originalBucket
	actualObjectName := objectName

	if strings.Contains(objectName, "/") {
		parts := strings.SplitN(objectName, "/", 2)
		// 仅当前缀是已知存储桶时才拆分, 避免把对象键前缀误当成桶名
		if len(parts) == 2 && (parts[0] == m.originalBucket || parts[0] == m.parsedBucket || parts[0] == m.audioBucket) {
			bucketName = parts[0]
			actualObjectName = parts[1]
		}
	}

	obj, err := m.client.GetObject(ctx, bucketName, actualObjectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucketName, actualObjectName, err)
	}
	defer obj.Close()

	// Stat可以确认对象确实存在且可访问
	if _, err := obj.Stat(); err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", bucketName, actualObjectName, err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", bucketName, actualObjectName, err)
	}
	return data, nil
}

// GetResumeFile 从MinIO获取简历文件
func (m *MinIO) GetResumeFile(ctx context.Context, objectKey string) ([]byte, error) {
	return m.DownloadFile(ctx, fmt.Sprintf("%s/%s", m.originalBucket, objectKey))
}

// GetParsedText 从MinIO获取解析后的文本
func (m *MinIO) GetParsedText(ctx context.Context, objectKey string) (string, error) {
	data, err := m.DownloadFile(ctx, fmt.Sprintf("%s/%s", m.parsedBucket, objectKey))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeleteFile 从原始文件存储桶删除文件
func (m *MinIO) DeleteFile(ctx context.Context, objectName string) error {
	err := m.client.RemoveObject(ctx, m.originalBucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectName, err)
	}
	return nil
}

// ContentTypeForExt 按文件扩展名返回Content-Type
func ContentTypeForExt(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".txt":
		return "text/plain"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
