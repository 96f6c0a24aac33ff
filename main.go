package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ai-interview-go/internal/api/handler"
	"ai-interview-go/internal/api/router"
	"ai-interview-go/internal/config"
	"ai-interview-go/internal/interview"
	"ai-interview-go/internal/llm"
	appLogger "ai-interview-go/internal/logger"
	"ai-interview-go/internal/parser"
	"ai-interview-go/internal/storage"
	"ai-interview-go/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

// @title AI Interview API
// @version 1.0
// @description LLM驱动的模拟面试服务
// @BasePath /api/v1
func main() {
	var configPath string
	var initConfigPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.StringVar(&initConfigPath, "init-config", "", "Write a sample config file to the given path and exit")
	pflag.Parse()

	if initConfigPath != "" {
		if err := config.CreateSampleConfig(initConfigPath); err != nil {
			log.Fatalf("生成示例配置失败: %v", err)
		}
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 链路追踪, 可选
	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
			Endpoint:     cfg.Tracing.Endpoint,
			ServiceName:  cfg.Tracing.ServiceName,
			SamplingRate: cfg.Tracing.SamplingRate,
		})
		if err != nil {
			glog.Warnf("初始化链路追踪失败: %v", err)
		} else {
			defer func() {
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelShutdown()
				if err := shutdownTracing(shutdownCtx); err != nil {
					glog.Warnf("关闭链路追踪失败: %v", err)
				}
			}()
			glog.Info("链路追踪初始化成功")
		}
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	llmClient, err := llm.NewClient(&cfg.OpenAI)
	if err != nil {
		glog.Fatalf("初始化OpenAI客户端失败: %v", err)
	}
	glog.Info("OpenAI客户端初始化成功")

	pdfExtractor, err := parser.NewEinoPDFTextExtractor(ctx,
		parser.WithEinoLogger(log.New(os.Stderr, "[EinoPDFMain] ", log.LstdFlags)))
	if err != nil {
		glog.Fatalf("创建Eino PDF提取器失败: %v", err)
	}
	glog.Info("Eino PDF提取器初始化成功")

	var checkerLogger *log.Logger
	if cfg.Logger.Level == "debug" {
		checkerLogger = log.New(os.Stderr, "[ResumeCheckerMain] ", log.LstdFlags|log.Lshortfile)
	} else {
		checkerLogger = log.New(io.Discard, "", 0)
	}
	resumeChecker := parser.NewLLMResumeChecker(llmClient, checkerLogger)

	controllerOptions := []interview.Option{
		interview.WithQuestionCount(cfg.Interview.QuestionCount),
	}
	if storageManager.RabbitMQ != nil {
		controllerOptions = append(controllerOptions, interview.WithEventPublisher(storageManager.RabbitMQ))
	}
	interviewController, err := interview.NewController(
		llmClient, llmClient, llmClient, storageManager.SQLite,
		controllerOptions...,
	)
	if err != nil {
		glog.Fatalf("初始化面试控制器失败: %v", err)
	}
	glog.Info("面试控制器初始化成功")

	resumeHandler := handler.NewResumeHandler(cfg, storageManager, pdfExtractor, resumeChecker)
	interviewHandler := handler.NewInterviewHandler(interviewController, storageManager)

	serverOptions := []hertzconfig.Option{
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	}
	var hertzTracerCfg *hertztracing.Config
	if cfg.Tracing.Enabled {
		tracer, tracerCfg := hertztracing.NewServerTracer()
		serverOptions = append(serverOptions, tracer)
		hertzTracerCfg = tracerCfg
	}

	h := server.New(serverOptions...)
	if hertzTracerCfg != nil {
		h.Use(hertztracing.ServerMiddleware(hertzTracerCfg))
	}

	router.RegisterRoutes(h, cfg, resumeHandler, interviewHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)
	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

// initLogger 初始化zerolog并桥接到hertz的glog
// 配置了日志文件时同时写控制台和文件
func initLogger(cfg *config.Config) {
	logConfig := appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	}

	if cfg.Logger.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logger.FilePath), 0o755); err != nil {
			log.Fatalf("创建日志目录失败: %v", err)
		}
		fileWriter, err := os.OpenFile(cfg.Logger.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("无法打开日志文件 %s: %v", cfg.Logger.FilePath, err)
		}
		appLogger.InitWithWriter(logConfig, fileWriter)
	} else {
		appLogger.Init(logConfig)
	}

	glog.SetLogger(hertzadapter.From(appLogger.Logger))
}
