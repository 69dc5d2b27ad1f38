// Worker entry point for the extraction pipeline service. It consumes the
// stage topics (parse, normalize, match, route) and drives each extraction
// through the Driver until it reaches a terminal state.
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

	"github.com/turtacn/shipcat-extractor/internal/application/pipeline"
	"github.com/turtacn/shipcat-extractor/internal/config"
	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/catalog"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/database/postgres"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/database/postgres/repositories"
	kafkainfra "github.com/turtacn/shipcat-extractor/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/llm"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/ocr"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/search/milvus"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	defaultHealthPort       = 8081
	shutdownGracePeriod     = 30 * time.Second
)

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
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

	logger.Info("starting the extraction pipeline worker",
		logging.String("group_id", cfg.Kafka.GroupID),
	)

	metricsCollector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "shipcat_extractor",
		Subsystem:            "worker",
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

	if err := infra.topics.EnsureDefaultTopics(ctx); err != nil {
		logger.Error("failed to ensure kafka topics", logging.Err(err))
		os.Exit(1)
	}

	if err := catalog.EnsureSchema(ctx, infra.collMgr, cfg.Milvus.EmbeddingDim); err != nil {
		logger.Error("failed to ensure catalog vector schema", logging.Err(err))
		os.Exit(1)
	}

	if err := infra.driver.RegisterHandlers(infra.consumer); err != nil {
		logger.Error("failed to register pipeline handlers", logging.Err(err))
		os.Exit(1)
	}

	healthSrv := startHealthServer(logger, metricsCollector)

	consumerDone := make(chan error, 1)
	go func() {
		consumerDone <- infra.consumer.Start(ctx)
	}()

	logger.Info("worker ready, consuming stage topics")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", logging.String("signal", sig.String()))
	case err := <-consumerDone:
		if err != nil {
			logger.Error("consumer stopped unexpectedly", logging.Err(err))
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}

	logger.Info("the extraction pipeline worker stopped")
}

// workerInfrastructure holds every constructed client and service the worker
// needs for its lifetime, plus the assembled Driver that orchestrates them.
type workerInfrastructure struct {
	pgPool   *pgxpool.Pool
	milvus   *milvus.Client
	consumer *kafkainfra.Consumer
	producer *kafkainfra.Producer
	topics   *kafkainfra.TopicManager
	collMgr  *milvus.CollectionManager
	driver   *pipeline.Driver
}

func (w *workerInfrastructure) Close() {
	if w.producer != nil {
		w.producer.Close()
	}
	if w.consumer != nil {
		w.consumer.Close()
	}
	if w.milvus != nil {
		w.milvus.Close()
	}
	if w.pgPool != nil {
		w.pgPool.Close()
	}
}

func buildInfrastructure(cfg *config.Config, logger logging.Logger) (*workerInfrastructure, error) {
	pgPool, err := postgres.NewConnectionPool(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	extractionRepo := repositories.NewExtractionRepository(pgPool)
	catalogRepo := repositories.NewCatalogRepository(pgPool)

	milvusCli, err := milvus.NewClient(milvus.ClientConfig{
		Address: cfg.Milvus.Addr,
		DBName:  cfg.Milvus.DBName,
	}, logger)
	if err != nil {
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
		pgPool.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	router := extraction.RouterConfig{
		TAuto:  cfg.Pipeline.TAuto,
		TQuick: cfg.Pipeline.TQuick,
	}
	driver := pipeline.NewDriver(extractionRepo, ocrClient, matcher, producer, router, cfg.Pipeline.ExtractionBatchSize, logger)

	consumer, err := kafkainfra.NewConsumer(kafkainfra.ConsumerConfig{
		Brokers:         cfg.Kafka.Brokers,
		GroupID:         cfg.Kafka.GroupID,
		Topics: []string{
			kafkainfra.TopicStageParse,
			kafkainfra.TopicStageNormalize,
			kafkainfra.TopicStageMatch,
			kafkainfra.TopicStageRoute,
		},
		AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
	}, logger)
	if err != nil {
		producer.Close()
		milvusCli.Close()
		pgPool.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	topicMgr, err := kafkainfra.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		consumer.Close()
		producer.Close()
		milvusCli.Close()
		pgPool.Close()
		return nil, fmt.Errorf("kafka topic manager: %w", err)
	}

	return &workerInfrastructure{
		pgPool:   pgPool,
		milvus:   milvusCli,
		consumer: consumer,
		producer: producer,
		topics:   topicMgr,
		collMgr:  collMgr,
		driver:   driver,
	}, nil
}

func startHealthServer(logger logging.Logger, metrics prometheus.MetricsCollector) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", defaultHealthPort),
		Handler: mux,
	}

	go func() {
		logger.Info("health server listening", logging.Int("port", defaultHealthPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", logging.Err(err))
		}
	}()

	return srv
}
