// Package config defines all configuration structures for the extraction
// pipeline service.  No I/O or parsing logic lives here — only plain data
// types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationPath   string        `mapstructure:"migration_path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DefaultTTL   time.Duration `mapstructure:"default_ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Apache Kafka producer/consumer parameters.
type KafkaConfig struct {
	Brokers              []string      `mapstructure:"brokers"`
	GroupID              string        `mapstructure:"group_id"`
	AutoOffsetReset      string        `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	TimeoutMS            int           `mapstructure:"timeout_ms"`
	ProducerRetries      int           `mapstructure:"producer_retries"`
	BatchSize            int           `mapstructure:"batch_size"`
	AutoCreateTopics     bool          `mapstructure:"auto_create_topics"`
	ReplicationFactor    int           `mapstructure:"replication_factor"`
	NumPartitions        int           `mapstructure:"num_partitions"`
	StageMaxRetries      int           `mapstructure:"stage_max_retries"`
	StageRetryCountdown  time.Duration `mapstructure:"stage_retry_countdown"`
}

// MilvusConfig holds Milvus vector-store connection parameters, backing the
// Catalog's semantic similarity search over product embeddings.
type MilvusConfig struct {
	Addr               string `mapstructure:"addr"`
	DBName             string `mapstructure:"db_name"`
	EmbeddingDim       int    `mapstructure:"embedding_dim"`
	IndexType          string `mapstructure:"index_type"`
	HNSWM              int    `mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `mapstructure:"hnsw_ef_construction"`
	DefaultTopK        int    `mapstructure:"default_top_k"`
	CollectionPrefix   string `mapstructure:"collection_prefix"`
}

// WorkerConfig holds background-worker execution parameters for the pipeline driver.
type WorkerConfig struct {
	Mode              string        `mapstructure:"mode"` // "local" | "distributed"
	Concurrency       int           `mapstructure:"concurrency"`
	QueueDepth        int           `mapstructure:"queue_depth"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoffMS    time.Duration `mapstructure:"retry_backoff_ms"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string `mapstructure:"format"` // "json" | "text"
	Output           string `mapstructure:"output"`
	EnableCaller     bool   `mapstructure:"enable_caller"`
	EnableStacktrace bool   `mapstructure:"enable_stacktrace"`
	SamplingRate     int    `mapstructure:"sampling_rate"`
}

// OCRConfig holds parameters for the document OCR adapter.
type OCRConfig struct {
	Provider    string        `mapstructure:"provider"` // "tesseract" | "vision_api"
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFileSize int64         `mapstructure:"max_file_size"`
}

// EmbedderConfig holds parameters for the embedding adapter used by the
// semantic matching stage.
type EmbedderConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// LLMConfig holds parameters for the large-language-model disambiguation adapter.
type LLMConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	DefaultConfidence float64    `mapstructure:"default_confidence"`
}

// PipelineConfig holds the thresholds and batching parameters that govern
// the extraction, matching, and routing stages.
type PipelineConfig struct {
	// TAuto is the confidence threshold at or above which a matched line
	// item is routed to the AUTO tier without human review.
	TAuto float64 `mapstructure:"t_auto"`

	// TQuick is the confidence threshold at or above which a matched line
	// item is routed to QUICK_REVIEW rather than FULL_REVIEW.
	TQuick float64 `mapstructure:"t_quick"`

	// SemanticFloor is the minimum cosine similarity a vector search hit
	// must clear to be considered a semantic match candidate at all.
	SemanticFloor float64 `mapstructure:"semantic_floor"`

	// SemanticAutoApprove is the cosine similarity above which a single
	// unambiguous semantic hit is accepted without LLM disambiguation.
	SemanticAutoApprove float64 `mapstructure:"semantic_autoapprove"`

	// AmbiguityGap is the minimum similarity gap between the top two
	// semantic candidates required to skip LLM disambiguation.
	AmbiguityGap float64 `mapstructure:"ambiguity_gap"`

	// ExtractionBatchSize is the number of line items the match stage hands
	// to the matcher per batch; the stage loops over all items batch by batch.
	ExtractionBatchSize int `mapstructure:"extraction_batch_size"`

	// SemanticTopK is the number of nearest neighbours requested from the
	// catalog vector search per line item.
	SemanticTopK int `mapstructure:"semantic_top_k"`
}

// Validate checks the pipeline thresholds are internally consistent.
func (p *PipelineConfig) Validate() error {
	if p.TAuto <= p.TQuick {
		return fmt.Errorf("config: pipeline.t_auto (%.2f) must be > pipeline.t_quick (%.2f)", p.TAuto, p.TQuick)
	}
	for name, v := range map[string]float64{
		"t_auto": p.TAuto, "t_quick": p.TQuick, "semantic_floor": p.SemanticFloor,
		"semantic_autoapprove": p.SemanticAutoApprove, "ambiguity_gap": p.AmbiguityGap,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("config: pipeline.%s must be within [0, 1], got %.2f", name, v)
		}
	}
	if p.ExtractionBatchSize < 1 {
		return fmt.Errorf("config: pipeline.extraction_batch_size must be >= 1, got %d", p.ExtractionBatchSize)
	}
	if p.SemanticTopK < 1 {
		return fmt.Errorf("config: pipeline.semantic_top_k must be >= 1, got %d", p.SemanticTopK)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the extraction pipeline
// service.  Every infrastructure component and application service reads
// its settings from the relevant sub-struct.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Milvus   MilvusConfig   `mapstructure:"milvus"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	Embedder EmbedderConfig `mapstructure:"embedder"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the application.
func (c *Config) Validate() error {
	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	// Database
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be ≥ 1, got %d", c.Database.MaxConns)
	}

	// Redis
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be ≥ 0, got %d", c.Redis.DB)
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
	}
	if c.Kafka.GroupID == "" {
		return fmt.Errorf("config: kafka.group_id is required")
	}
	if c.Kafka.StageMaxRetries < 1 {
		return fmt.Errorf("config: kafka.stage_max_retries must be >= 1, got %d", c.Kafka.StageMaxRetries)
	}

	// Milvus
	if c.Milvus.Addr == "" {
		return fmt.Errorf("config: milvus.addr is required")
	}

	// Worker
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("config: worker.concurrency must be ≥ 1, got %d", c.Worker.Concurrency)
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	// OCR / Embedder / LLM
	if c.OCR.Provider == "" {
		return fmt.Errorf("config: ocr.provider is required")
	}
	if c.Embedder.BaseURL == "" {
		return fmt.Errorf("config: embedder.base_url is required")
	}
	if c.Embedder.Dimensions < 1 {
		return fmt.Errorf("config: embedder.dimensions must be >= 1, got %d", c.Embedder.Dimensions)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("config: llm.base_url is required")
	}

	return c.Pipeline.Validate()
}
