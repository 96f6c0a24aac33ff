package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"ai-interview-go/internal/config"
)

// Storage 存储管理器，聚合所有存储相关依赖
// SQLite是必选组件, 其余组件按配置可选
type Storage struct {
	// 关系型数据库(面试历史与简历记录)
	SQLite *SQLite

	// 键值存储(上传去重与文本缓存)
	Redis *Redis

	// 对象存储(文件与语音归档)
	MinIO *MinIO

	// 消息队列(评估落库事件)
	RabbitMQ *RabbitMQ
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	storage := &Storage{}
	var err error
	var initErrors []string

	// 初始化SQLite, 评估历史必须可写, 失败直接返回
	storage.SQLite, err = NewSQLite(&cfg.SQLite)
	if err != nil {
		return nil, fmt.Errorf("初始化SQLite失败: %w", err)
	}
	log.Printf("SQLite初始化成功: %s", cfg.SQLite.Path)

	// 初始化Redis（如果启用了）
	if cfg.Redis.Enabled {
		log.Printf("初始化Redis at %s...", cfg.Redis.Address)
		storage.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Printf("警告: 初始化Redis失败: %v", err)
			initErrors = append(initErrors, fmt.Sprintf("Redis: %v", err))
		}
	} else {
		log.Printf("Redis未启用, 跳过初始化.")
	}

	// 初始化MinIO（如果启用了）
	if cfg.MinIO.Enabled {
		// 根据配置决定 MinIO 的 logger
		var minioLogger *log.Logger
		if cfg.Logger.Level == "debug" {
			minioLogger = log.New(os.Stderr, "[MinIOStorage] ", log.LstdFlags|log.Lshortfile)
		} else {
			minioLogger = log.New(io.Discard, "", 0)
		}

		storage.MinIO, err = NewMinIO(&cfg.MinIO, minioLogger)
		if err != nil {
			log.Printf("警告: 初始化MinIO失败: %v", err)
			initErrors = append(initErrors, fmt.Sprintf("MinIO: %v", err))
		} else {
			log.Println("MinIO客户端初始化成功")
		}
	}

	// 初始化RabbitMQ（如果启用了）, 并预声明评估事件拓扑
	if cfg.RabbitMQ.Enabled && cfg.RabbitMQ.URL != "" {
		log.Printf("初始化RabbitMQ...")
		storage.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			log.Printf("警告: 初始化RabbitMQ失败: %v", err)
			initErrors = append(initErrors, fmt.Sprintf("RabbitMQ: %v", err))
		} else if cfg.RabbitMQ.InterviewEventsExchange != "" {
			if err := storage.RabbitMQ.EnsureExchange(cfg.RabbitMQ.InterviewEventsExchange, "topic", true); err != nil {
				log.Printf("警告: 声明评估事件交换机失败: %v", err)
				initErrors = append(initErrors, fmt.Sprintf("RabbitMQ exchange: %v", err))
			} else if cfg.RabbitMQ.EvaluationSavedQueue != "" {
				// 预声明并绑定持久化队列, 没有消费者时事件也不会被交换机丢弃
				if err := storage.RabbitMQ.EnsureQueue(cfg.RabbitMQ.EvaluationSavedQueue, true); err != nil {
					log.Printf("警告: 声明评估事件队列失败: %v", err)
					initErrors = append(initErrors, fmt.Sprintf("RabbitMQ queue: %v", err))
				} else if err := storage.RabbitMQ.BindQueue(cfg.RabbitMQ.EvaluationSavedQueue,
					cfg.RabbitMQ.InterviewEventsExchange, cfg.RabbitMQ.EvaluationSavedKey); err != nil {
					log.Printf("警告: 绑定评估事件队列失败: %v", err)
					initErrors = append(initErrors, fmt.Sprintf("RabbitMQ binding: %v", err))
				}
			}
		}
	}

	// 可选组件失败不阻塞启动, 只记录
	if len(initErrors) > 0 {
		log.Printf("警告: 以下存储组件初始化失败: %s", strings.Join(initErrors, "; "))
	}

	return storage, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	// 关闭RabbitMQ连接
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Printf("关闭RabbitMQ连接失败: %v", err)
		}
	}

	// 关闭SQLite连接
	if s.SQLite != nil {
		if err := s.SQLite.Close(); err != nil {
			log.Printf("关闭SQLite连接失败: %v", err)
		}
	}

	// 关闭Redis连接
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Printf("关闭Redis连接失败: %v", err)
		}
	}
	// MinIO客户端不需要显式Close
}
