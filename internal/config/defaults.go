// Package config provides configuration loading, defaults, and validation for
// the extraction pipeline service.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort = 8080
	DefaultServerMode = "debug"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "extraction"
	DefaultDBMaxConns = 25

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultKafkaBroker  = "localhost:9092"
	DefaultKafkaGroupID = "extraction-pipeline"

	DefaultMilvusAddr = "localhost:19530"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultWorkerConcurrency = 10

	// DefaultStageMaxRetries and DefaultStageRetryCountdown implement the
	// pipeline's fixed retry policy: three attempts at a flat thirty-second
	// countdown, never exponential backoff.
	DefaultStageMaxRetries     = 3
	DefaultStageRetryCountdown = 30 * time.Second

	DefaultTAuto               = 0.95
	DefaultTQuick              = 0.80
	DefaultSemanticFloor       = 0.60
	DefaultSemanticAutoApprove = 0.85
	DefaultAmbiguityGap        = 0.05
	DefaultExtractionBatchSize = 50
	DefaultSemanticTopK        = 5

	DefaultLLMDefaultConfidence = 0.7
)

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing.
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills every zero-value field in cfg with the service default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}

	// ── Database ──────────────────────────────────────────────────────────────
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	// DB is an int; 0 is a valid explicit value so we cannot distinguish "not
	// set" from "set to 0".  We leave it as-is (0 is also the default).
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "extraction:"
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.AutoOffsetReset == "" {
		cfg.Kafka.AutoOffsetReset = "earliest"
	}
	if cfg.Kafka.StageMaxRetries == 0 {
		cfg.Kafka.StageMaxRetries = DefaultStageMaxRetries
	}
	if cfg.Kafka.StageRetryCountdown == 0 {
		cfg.Kafka.StageRetryCountdown = DefaultStageRetryCountdown
	}

	// ── Milvus ────────────────────────────────────────────────────────────────
	if cfg.Milvus.Addr == "" {
		cfg.Milvus.Addr = DefaultMilvusAddr
	}
	if cfg.Milvus.DefaultTopK == 0 {
		cfg.Milvus.DefaultTopK = DefaultSemanticTopK
	}

	// ── Worker ────────────────────────────────────────────────────────────────
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = DefaultWorkerConcurrency
	}
	if cfg.Worker.Mode == "" {
		cfg.Worker.Mode = "local"
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = DefaultStageMaxRetries
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── OCR / Embedder / LLM ──────────────────────────────────────────────────
	if cfg.OCR.Provider == "" {
		cfg.OCR.Provider = "tesseract"
	}
	if cfg.OCR.Timeout == 0 {
		cfg.OCR.Timeout = 30 * time.Second
	}
	if cfg.Embedder.Dimensions == 0 {
		cfg.Embedder.Dimensions = 1536
	}
	if cfg.Embedder.Timeout == 0 {
		cfg.Embedder.Timeout = 10 * time.Second
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 20 * time.Second
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.LLM.DefaultConfidence == 0 {
		cfg.LLM.DefaultConfidence = DefaultLLMDefaultConfidence
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	if cfg.Pipeline.TAuto == 0 {
		cfg.Pipeline.TAuto = DefaultTAuto
	}
	if cfg.Pipeline.TQuick == 0 {
		cfg.Pipeline.TQuick = DefaultTQuick
	}
	if cfg.Pipeline.SemanticFloor == 0 {
		cfg.Pipeline.SemanticFloor = DefaultSemanticFloor
	}
	if cfg.Pipeline.SemanticAutoApprove == 0 {
		cfg.Pipeline.SemanticAutoApprove = DefaultSemanticAutoApprove
	}
	if cfg.Pipeline.AmbiguityGap == 0 {
		cfg.Pipeline.AmbiguityGap = DefaultAmbiguityGap
	}
	if cfg.Pipeline.ExtractionBatchSize == 0 {
		cfg.Pipeline.ExtractionBatchSize = DefaultExtractionBatchSize
	}
	if cfg.Pipeline.SemanticTopK == 0 {
		cfg.Pipeline.SemanticTopK = DefaultSemanticTopK
	}
}
