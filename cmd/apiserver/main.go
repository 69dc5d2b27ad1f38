// API server entry point for the extraction pipeline service: the upload,
// status, verification, conversion, and duplicate-report HTTP endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/shipcat-extractor/internal/application/conversion"
	"github.com/turtacn/shipcat-extractor/internal/application/dedup"
	"github.com/turtacn/shipcat-extractor/internal/application/pipeline"
	"github.com/turtacn/shipcat-extractor/internal/config"
	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/catalog"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/database/postgres"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/database/redis"
	kafkainfra "github.com/turtacn/shipcat-extractor/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/llm"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/ocr"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/search/milvus"
	httpserver "github.com/turtacn/shipcat-extractor/internal/interfaces/http"
	"github.com/turtacn/shipcat-extractor/internal/interfaces/http/handlers"
	"github.com/turtacn/shipcat-extractor/internal/interfaces/http/middleware"
)

const defaultAPIServerConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultAPIServerConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	}
	if cfg.Log.Output != "" && cfg.Log.Output != "stdout" {
		logCfg.OutputPaths = []string{cfg.Log.Output}
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	listenPort := cfg.Server.Port
	if *port > 0 {
		listenPort = *port
	}

	logger.Info("starting the extraction pipeline API server",
		logging.Int("port", listenPort),
	)

	metricsCollector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "shipcat_extractor",
		Subsystem:            "apiserver",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize metrics collector", logging.Err(err))
		os.Exit(1)
	}

	infra, err := buildInfrastructure(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize infrastructure", logging.Err(err))
		os.Exit(1)
	}
	defer infra.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := catalog.EnsureSchema(ctx, infra.collMgr, cfg.Milvus.EmbeddingDim); err != nil {
		logger.Error("failed to ensure catalog vector schema", logging.Err(err))
		os.Exit(1)
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		ExtractionHandler: handlers.NewExtractionHandler(infra.extractionRepo, infra.driver),
		ConversionHandler: handlers.NewConversionHandler(infra.conversionSvc),
		DuplicatesHandler: handlers.NewDuplicatesHandler(infra.extractionRepo, infra.dedupSvc),
		HealthHandler:     handlers.NewHealthHandler(pingerFunc(func() error { return infra.pgPool.Ping(ctx) })),
		MetricsHandler:    metricsCollector.Handler(),
		CORSMiddleware:    middleware.NewCORSMiddleware(middleware.DefaultCORSConfig()),
		RateLimiter:       middleware.NewTokenBucketLimiter(50, 100, time.Minute),
		TenantConfig:      middleware.DefaultTenantConfig(),
		Logger:            logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", listenPort),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening", logging.Int("port", listenPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", logging.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down API server")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", logging.Err(err))
	}

	logger.Info("API server stopped")
}

type pingerFunc func() error

func (f pingerFunc) Ping() error { return f() }

// apiServerInfrastructure holds every constructed client and service the API
// server needs for its lifetime.
type apiServerInfrastructure struct {
	pgPool         *pgxpool.Pool
	milvus         *milvus.Client
	redisClient    *redis.Client
	producer       *kafkainfra.Producer
	collMgr        *milvus.CollectionManager
	extractionRepo *repositories.ExtractionRepository
	driver         *pipeline.Driver
	conversionSvc  *conversion.Service
	dedupSvc       *dedup.Service
}

func (a *apiServerInfrastructure) Close() {
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redisClient != nil {
		a.redisClient.Close()
	}
	if a.milvus != nil {
		a.milvus.Close()
	}
	if a.pgPool != nil {
		a.pgPool.Close()
	}
}

func buildInfrastructure(cfg *config.Config, logger logging.Logger) (*apiServerInfrastructure, error) {
	pgPool, err := postgres.NewConnectionPool(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	extractionRepo := repositories.NewExtractionRepository(pgPool)
	catalogRepo := repositories.NewCatalogRepository(pgPool)
	lineItemRepo := repositories.NewRFQLineItemRepository(pgPool)

	redisClient, err := redis.NewClient(&redis.RedisConfig{
		Mode:         "standalone",
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, logger)
	if err != nil {
		pgPool.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	locks := redis.NewLockFactory(redisClient, logger)

	milvusCli, err := milvus.NewClient(milvus.ClientConfig{
		Address: cfg.Milvus.Addr,
		DBName:  cfg.Milvus.DBName,
	}, logger)
	if err != nil {
		redisClient.Close()
		pgPool.Close()
		return nil, fmt.Errorf("milvus: %w", err)
	}
	collMgr := milvus.NewCollectionManager(milvusCli, milvus.CollectionConfig{}, logger)
	searcher := milvus.NewSearcher(milvusCli, collMgr, milvus.SearcherConfig{
		DefaultTopK: cfg.Milvus.DefaultTopK,
	}, logger)
	catalogAdapter := catalog.NewAdapter(catalogRepo, searcher, logger)

	llmClient := llm.NewClient(cfg.Embedder, cfg.LLM, logger)
	ocrClient := ocr.NewClient(cfg.OCR, logger)

	matcher := extraction.NewMatcher(catalogAdapter, llmClient, llmClient, extraction.MatcherConfig{
		SemanticAutoApprove: cfg.Pipeline.SemanticAutoApprove,
		SemanticFloor:       cfg.Pipeline.SemanticFloor,
		AmbiguityGap:        cfg.Pipeline.AmbiguityGap,
		SemanticTopK:        cfg.Pipeline.SemanticTopK,
	}, logger)

	producer, err := kafkainfra.NewProducer(kafkainfra.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		Acks:       "all",
		MaxRetries: cfg.Kafka.ProducerRetries,
		BatchSize:  cfg.Kafka.BatchSize,
	}, logger)
	if err != nil {
		milvusCli.Close()
		redisClient.Close()
		pgPool.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	router := extraction.RouterConfig{
		TAuto:  cfg.Pipeline.TAuto,
		TQuick: cfg.Pipeline.TQuick,
	}
	driver := pipeline.NewDriver(extractionRepo, ocrClient, matcher, producer, router, cfg.Pipeline.ExtractionBatchSize, logger)

	conversionSvc := conversion.NewService(extractionRepo, lineItemRepo, locks, logger)
	dedupSvc := dedup.NewService(extractionRepo)

	return &apiServerInfrastructure{
		pgPool:         pgPool,
		milvus:         milvusCli,
		redisClient:    redisClient,
		producer:       producer,
		collMgr:        collMgr,
		extractionRepo: extractionRepo,
		driver:         driver,
		conversionSvc:  conversionSvc,
		dedupSvc:       dedupSvc,
	}, nil
}
