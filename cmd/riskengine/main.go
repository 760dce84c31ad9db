// RiskEngineService 主程序
// 功能：实时组合风险分析——收益率摄入、相关性估计、VaR 计算、压力测试与交易前限额检查
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/riskanalytics/internal/risk/application"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
	"github.com/wyfcoding/riskanalytics/internal/risk/infrastructure/consumer"
	"github.com/wyfcoding/riskanalytics/internal/risk/infrastructure/feed"
	"github.com/wyfcoding/riskanalytics/internal/risk/infrastructure/persistence/mysql"
	"github.com/wyfcoding/riskanalytics/internal/risk/infrastructure/snapshot"
	"github.com/wyfcoding/riskanalytics/internal/risk/infrastructure/timeseries"
	httpserver "github.com/wyfcoding/riskanalytics/internal/risk/interfaces/http"
	"github.com/wyfcoding/riskanalytics/pkg/cache"
	"github.com/wyfcoding/riskanalytics/pkg/config"
	"github.com/wyfcoding/riskanalytics/pkg/db"
	"github.com/wyfcoding/riskanalytics/pkg/logger"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
	"github.com/wyfcoding/riskanalytics/pkg/middleware"
	"github.com/wyfcoding/riskanalytics/pkg/mq"
	"github.com/wyfcoding/riskanalytics/pkg/ratelimit"
	"golang.org/x/sync/errgroup"
)

var configPath = flag.String("config", "configs/riskengine/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	loggerCfg := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}
	if err := logger.Init(loggerCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting RiskEngineService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化指标
	var metricsInstance *metrics.Metrics
	if cfg.Metrics.Enabled {
		metricsInstance = metrics.New(cfg.ServiceName)
		if err := metricsInstance.Register(); err != nil {
			logger.Fatal(ctx, "Failed to register metrics", "error", err)
		}
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Fatal(ctx, "Failed to start metrics HTTP server", "error", err)
		}
	}

	// 4. 构建风险引擎
	engine := domain.NewRiskAnalytics(domain.EngineConfig{
		MaxSymbols:          cfg.Risk.MaxSymbols,
		HistoryDepth:        cfg.Risk.HistoryDepth,
		CorrelationWindow:   cfg.Risk.CorrelationWindow,
		VaRCacheTTL:         time.Duration(cfg.Risk.VaRCacheTTLMS) * time.Millisecond,
		Simulations:         cfg.Risk.Simulations,
		StressCheckInterval: cfg.Risk.StressCheckInterval,
		Seed:                cfg.Risk.Seed,
		UseCholesky:         cfg.Risk.UseCholesky,
		Limits: domain.RiskLimits{
			MaxPortfolioVaR:  cfg.Risk.Limits.MaxPortfolioVaR,
			MaxPositionVaR:   cfg.Risk.Limits.MaxPositionVaR,
			MaxCorrelation:   cfg.Risk.Limits.MaxCorrelation,
			MaxStressLoss:    cfg.Risk.Limits.MaxStressLoss,
			MaxConcentration: cfg.Risk.Limits.MaxConcentration,
		},
	})

	// 5. 违规审计仓储（可选）
	var violationRepo domain.RiskViolationRepository
	if cfg.Database.Enabled {
		database, err := db.Init(db.Config{
			Driver:             cfg.Database.Driver,
			DSN:                cfg.Database.DSN,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			LogEnabled:         cfg.Database.LogEnabled,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize database", "error", err)
		}
		defer database.Close()

		if cfg.Environment == "dev" {
			if err := database.AutoMigrate(&domain.RiskViolation{}); err != nil {
				logger.Error(ctx, "Failed to migrate database", "error", err)
			}
		}
		violationRepo = mysql.NewViolationRepository(database)
	}

	// 6. Kafka（可选：成交事件消费与时序发布）
	var kafkaProducer *mq.KafkaProducer
	kafkaCfg := mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
		MaxRetries:     cfg.Kafka.MaxRetries,
		RetryBackoff:   cfg.Kafka.RetryBackoff,
	}
	if cfg.Timeseries.Enabled || cfg.Consumer.Enabled {
		kafkaProducer, err = mq.NewProducer(kafkaCfg)
		if err != nil {
			logger.Fatal(ctx, "Failed to create Kafka producer", "error", err)
		}
		defer kafkaProducer.Close()
	}

	var tsWriter *timeseries.Writer
	var tsSink application.TimeseriesSink
	if cfg.Timeseries.Enabled {
		tsWriter = timeseries.NewWriter(kafkaProducer, metricsInstance, timeseries.Config{
			Topic:         cfg.Timeseries.Topic,
			BatchSize:     cfg.Timeseries.BatchSize,
			FlushInterval: time.Duration(cfg.Timeseries.FlushIntervalMS) * time.Millisecond,
			QueueSize:     cfg.Timeseries.QueueSize,
		})
		tsSink = tsWriter
	}

	// 7. 应用服务
	riskService := application.NewRiskApplicationService(engine, metricsInstance, violationRepo, tsSink)

	// 8. 快照发布（可选）
	var snapshotPublisher application.SnapshotPublisher
	if cfg.Snapshot.Enabled {
		redisCache, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
		}
		defer redisCache.Close()
		snapshotPublisher = snapshot.NewRedisPublisher(redisCache, cfg.Snapshot.Key, time.Duration(cfg.Snapshot.TTLSeconds)*time.Second)
	}

	// 9. 后台刷新器
	refresher := application.NewRiskRefresher(engine, metricsInstance, snapshotPublisher, tsSink, application.RefresherConfig{
		Interval:      time.Duration(cfg.Risk.RefreshIntervalMS) * time.Millisecond,
		SweepMaxPairs: cfg.Risk.SweepMaxPairs,
	})

	// 10. HTTP 服务器
	router := createRouter(cfg, metricsInstance, riskService)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 11. 启动
	g, runCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		refresher.Start(runCtx)
		return nil
	})

	if tsWriter != nil {
		g.Go(func() error {
			tsWriter.Run(runCtx)
			return nil
		})
	}

	if cfg.Feed.Enabled {
		marketFeed, err := feed.New(feed.Config{
			Name:              cfg.Feed.Name,
			Kind:              feed.Kind(cfg.Feed.Kind),
			WebsocketURL:      cfg.Feed.WebsocketURL,
			RestURL:           cfg.Feed.RestURL,
			Symbols:           cfg.Feed.Symbols,
			ReconnectDelay:    time.Duration(cfg.Feed.ReconnectDelayMS) * time.Millisecond,
			HeartbeatInterval: time.Duration(cfg.Feed.HeartbeatIntervalMS) * time.Millisecond,
			PollRate:          cfg.Feed.PollRatePerSec,
			BufferSize:        cfg.Feed.BufferSize,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to create market data feed", "error", err)
		}

		// 配置顺序即密集 symbol id
		symbolIDs := make(map[string]uint32, len(cfg.Feed.Symbols))
		for i, symbol := range cfg.Feed.Symbols {
			symbolIDs[symbol] = uint32(i)
		}
		ingestor := feed.NewIngestor(riskService, metricsInstance, symbolIDs)

		g.Go(func() error {
			return marketFeed.Run(runCtx)
		})
		g.Go(func() error {
			ingestor.Run(runCtx, marketFeed)
			return nil
		})
	}

	if cfg.Consumer.Enabled {
		kafkaConsumer, err := mq.NewConsumer(kafkaCfg, cfg.Consumer.TradeTopic)
		if err != nil {
			logger.Fatal(ctx, "Failed to create Kafka consumer", "error", err)
		}
		var dlq *mq.DeadLetterQueue
		if cfg.Consumer.DeadLetterTopic != "" {
			dlq = mq.NewDeadLetterQueue(kafkaProducer, cfg.Consumer.DeadLetterTopic)
		}
		tradeConsumer := consumer.NewTradeConsumer(kafkaConsumer, dlq, riskService, metricsInstance)

		g.Go(func() error {
			defer kafkaConsumer.Close()
			return tradeConsumer.Run(runCtx)
		})
	}

	g.Go(func() error {
		logger.Info(runCtx, "HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info(runCtx, "Shutting down servers...")
		case <-runCtx.Done():
			logger.Info(runCtx, "Context cancelled, shutting down...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error(ctx, "Server exited with error", "error", err)
	}
	logger.Info(ctx, "RiskEngineService stopped")
}

// createRouter 组装 Gin 路由
func createRouter(cfg *config.Config, m *metrics.Metrics, riskService *application.RiskApplicationService) *gin.Engine {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware())
	if m != nil {
		router.Use(middleware.GinMetricsMiddleware(m))
	}
	if cfg.HTTP.RateLimitQPS > 0 {
		limiter := ratelimit.New(float64(cfg.HTTP.RateLimitQPS), cfg.HTTP.RateLimitBurst)
		router.Use(middleware.GinRateLimitMiddleware(limiter))
	}

	handler := httpserver.NewRiskHandler(riskService)
	handler.RegisterRoutes(router)

	sys := router.Group("/sys")
	{
		sys.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "UP"}) })
		sys.GET("/ready", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "READY"}) })
	}

	pp := router.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	return router
}
