package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/hertz/pkg/app/server"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"resume-analyzer-go/internal/admin"
	"resume-analyzer-go/internal/agent"
	"resume-analyzer-go/internal/analyzer"
	"resume-analyzer-go/internal/api/handler"
	"resume-analyzer-go/internal/api/router"
	"resume-analyzer-go/internal/apikey"
	"resume-analyzer-go/internal/cache"
	"resume-analyzer-go/internal/config"
	"resume-analyzer-go/internal/extractor"
	"resume-analyzer-go/internal/logger"
	"resume-analyzer-go/internal/processor"
	"resume-analyzer-go/internal/queue"
	"resume-analyzer-go/internal/storage"
	"resume-analyzer-go/internal/usage"
	"resume-analyzer-go/pkg/ratelimit"
)

// 批量上传最多10个5MB文件，请求体上限留足余量
const maxRequestBodyBytes = 64 << 20

func main() {
	var configPath string
	var sampleConfigPath string
	pflag.StringVarP(&configPath, "config", "c", "", "Path to config file")
	pflag.StringVar(&sampleConfigPath, "init-config", "", "Write a sample config file to the given path and exit")
	pflag.Parse()

	if sampleConfigPath != "" {
		if err := config.CreateSampleConfig(sampleConfigPath); err != nil {
			glog.Fatalf("生成示例配置失败: %v", err)
		}
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}

	initLogger(cfg)

	ctx := context.Background()

	// 存储层按配置逐个初始化，单个组件失败不阻止启动
	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储管理器失败")
	}
	defer storageManager.Close()

	// API密钥与管理配置依赖MySQL，没有它无法提供服务
	if storageManager.MySQL == nil {
		logger.Fatal().Msg("MySQL未配置或连接失败，无法启动")
	}

	keys := apikey.NewManager(storageManager.MySQL)

	// 使用统计与快照
	var snapshotStore usage.SnapshotStore
	if storageManager.Redis != nil {
		snapshotStore = storageManager.Redis
	}
	tracker := usage.NewTracker(cfg.Usage.EventLogPath, snapshotStore)
	tracker.Restore(ctx)
	tracker.Start(ctx)

	// 分析缓存：本地LRU + Redis穿透
	var rdb *redis.Client
	if storageManager.Redis != nil {
		rdb = storageManager.Redis.Client
	}
	analysisCache := cache.New(rdb, tracker)
	defer analysisCache.Close()

	// 文本抽取与打分流水线
	ext, err := extractor.New(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化文本抽取器失败")
	}

	scorer := analyzer.NewScorer(
		buildChatModel(cfg),
		analyzer.WithLLMTimeout(config.GetDuration(cfg.OpenAI.RequestTimeout, 60*time.Second)),
	)
	proc := processor.NewResumeProcessor(ext, scorer, analysisCache)

	// 异步任务队列，依赖RabbitMQ+MinIO+Redis，缺一则只提供同步分析
	var jobQueue *queue.Queue
	if storageManager.RabbitMQ != nil && storageManager.MinIO != nil && storageManager.Redis != nil {
		jobQueue, err = queue.New(storageManager, proc, &cfg.RabbitMQ)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化任务队列失败")
		}
		if err := jobQueue.StartWorkers(tracker); err != nil {
			logger.Fatal().Err(err).Msg("启动队列worker失败")
		}
		go runJobCleanup(ctx, jobQueue)
	} else {
		logger.Warn().Msg("RabbitMQ/MinIO/Redis未就绪，异步分析接口不可用")
	}

	go runKeySweep(ctx, keys)

	adminSvc := admin.NewService(&cfg.Admin, &cfg.Usage, storageManager.MySQL, storageManager.Redis,
		keys, tracker, analysisCache, jobQueue)

	limiter := ratelimit.NewKeyedLimiter(cfg.Server.RateLimitQPM, cfg.Server.RateLimitCapacity)

	h := server.Default(
		server.WithHostPorts(cfg.Server.Address),
		server.WithMaxRequestBodySize(maxRequestBodyBytes),
	)

	router.RegisterRoutes(h, keys, adminSvc, limiter, router.Handlers{
		Analyze: handler.NewAnalyzeHandler(proc, jobQueue, keys, tracker),
		Key:     handler.NewKeyHandler(keys, tracker, adminSvc),
		Admin:   handler.NewAdminHandler(adminSvc, keys, tracker, jobQueue),
	})

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()
	logger.Info().Str("address", cfg.Server.Address).Msg("简历分析服务已启动")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}

	if jobQueue != nil {
		jobQueue.Stop()
	}
	tracker.Stop(shutdownCtx)

	logger.Info().Msg("优雅退出完成")
}

// buildChatModel OpenAI密钥缺失时返回nil，打分器走规则兜底
func buildChatModel(cfg *config.Config) model.ChatModel {
	if cfg.OpenAI.APIKey == "" {
		logger.Warn().Msg("未配置OpenAI密钥，打分走规则兜底路径")
		return nil
	}

	chatModel, err := agent.NewOpenAIChatModel(agent.ModelConfig{
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		APIURL:      cfg.OpenAI.APIURL,
		Temperature: float32(cfg.OpenAI.Temperature),
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Timeout:     config.GetDuration(cfg.OpenAI.RequestTimeout, 90*time.Second),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("初始化LLM模型失败，打分走规则兜底路径")
		return nil
	}
	return chatModel
}

// runJobCleanup 周期清理超过保留期的任务索引
func runJobCleanup(ctx context.Context, q *queue.Queue) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		removed, err := q.Cleanup(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("清理过期任务失败")
			continue
		}
		if removed > 0 {
			logger.Info().Int("removed", removed).Msg("已清理过期任务")
		}
	}
}

// runKeySweep 每天回收长期不活跃且已停用的密钥
func runKeySweep(ctx context.Context, keys *apikey.Manager) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		removed, err := keys.CleanupInactive(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("清理不活跃密钥失败")
			continue
		}
		if removed > 0 {
			logger.Info().Int64("removed", removed).Msg("已清理不活跃密钥")
		}
	}
}

// initLogger 初始化zerolog并把Hertz的日志接到同一个适配器上
func initLogger(cfg *config.Config) {
	logConfig := logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	}
	if logConfig.Level == "" {
		logConfig.Level = "info"
	}
	logger.Init(logConfig)

	logger.Logger = logger.Logger.With().
		Str("app", "resume-analyzer").
		Logger()

	glog.SetLogger(hertzadapter.From(logger.Logger))
}
