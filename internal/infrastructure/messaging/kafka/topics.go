package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/shipcat-extractor/pkg/errors"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// Pipeline stage topics. Each carries one extraction through a single stage
// of the Parse -> Normalize -> Match -> Route pipeline. Every stage topic has
// a matching .dlq topic name declared here. The Consumer publishes a message
// to a dead-letter topic only when its RetryConfig.DeadLetterTopic is set, and
// then only after its RetryConfig.MaxRetries retries fail; the worker and API
// server set no RetryConfig, and KafkaConfig.StageMaxRetries is not read by
// the consumer.
const (
	TopicStageParse     = "extraction.parse"
	TopicStageNormalize = "extraction.normalize"
	TopicStageMatch     = "extraction.match"
	TopicStageRoute     = "extraction.route"

	TopicStageParseDLQ     = "extraction.parse.dlq"
	TopicStageNormalizeDLQ = "extraction.normalize.dlq"
	TopicStageMatchDLQ     = "extraction.match.dlq"
	TopicStageRouteDLQ     = "extraction.route.dlq"

	// TopicExtractionCompleted and TopicExtractionFailed announce terminal
	// pipeline outcomes for interested consumers (notification, audit).
	TopicExtractionCompleted = "extraction.completed"
	TopicExtractionFailed    = "extraction.failed"
	TopicAuditLog            = "extraction.audit.log"
)

// EventEnvelope standardizes event messages published to any stage topic.
type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// StageDispatchPayload is the body carried by every stage topic message. The
// Pipeline Driver publishes one of these after a stage completes to hand the
// extraction to the next stage's consumer group.
type StageDispatchPayload struct {
	ExtractionID string    `json:"extraction_id"`
	TenantID     string    `json:"tenant_id"`
	Attempt      int       `json:"attempt"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

// ExtractionTerminalPayload is published to TopicExtractionCompleted or
// TopicExtractionFailed when an extraction leaves the pipeline.
type ExtractionTerminalPayload struct {
	ExtractionID string    `json:"extraction_id"`
	TenantID     string    `json:"tenant_id"`
	FinalState   string    `json:"final_state"`
	ErrorMessage string    `json:"error_message,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Helper functions for EventEnvelope

func NewEventEnvelope(eventType string, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerializationError, "failed to marshal payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: "v1",
		Payload:       data,
	}, nil
}

func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(e.Payload, target)
}

func (e *EventEnvelope) ToMessage(topic string) (*common.ProducerMessage, error) {
	val, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerializationError, "failed to marshal envelope")
	}
	headers := map[string]string{
		"event_type":     e.EventType,
		"source_service": e.Source,
		"schema_version": e.SchemaVersion,
	}
	if e.TraceID != "" {
		headers["trace_id"] = e.TraceID
	}
	return &common.ProducerMessage{
		Topic:     topic,
		Value:     val,
		Headers:   headers,
		Timestamp: e.Timestamp,
	}, nil
}

func MessageToEventEnvelope(msg *common.Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.CodeInvalidParam, "empty message value")
	}
	var env EventEnvelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		return nil, errors.Wrap(err, errors.CodeSerializationError, "failed to unmarshal envelope")
	}
	return &env, nil
}

// ConnInterface abstracts kafka.Conn for testing.
type ConnInterface interface {
	CreateTopics(topics ...kafka.TopicConfig) error
	DeleteTopics(topics ...string) error
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	Close() error
}

// TopicManager manages Kafka topics.
type TopicManager struct {
	conn   ConnInterface
	logger logging.Logger
}

func NewTopicManager(brokers []string, logger logging.Logger) (*TopicManager, error) {
	if len(brokers) == 0 {
		return nil, errors.New(errors.CodeInvalidParam, "brokers required")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to dial kafka")
	}
	return &TopicManager{
		conn:   conn,
		logger: logger,
	}, nil
}

func (m *TopicManager) CreateTopic(ctx context.Context, cfg common.TopicConfig) error {
	if cfg.Name == "" {
		return errors.New(errors.CodeInvalidParam, "topic name required")
	}
	if cfg.NumPartitions <= 0 {
		return errors.New(errors.CodeInvalidParam, "NumPartitions must be > 0")
	}
	if cfg.ReplicationFactor <= 0 {
		return errors.New(errors.CodeInvalidParam, "ReplicationFactor must be > 0")
	}

	kCfg := kafka.TopicConfig{
		Topic:             cfg.Name,
		NumPartitions:     cfg.NumPartitions,
		ReplicationFactor: cfg.ReplicationFactor,
		ConfigEntries:     make([]kafka.ConfigEntry, 0),
	}

	if cfg.RetentionMs > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "retention.ms", ConfigValue: fmt.Sprintf("%d", cfg.RetentionMs)})
	}
	if cfg.CleanupPolicy != "" {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "cleanup.policy", ConfigValue: cfg.CleanupPolicy})
	}
	if cfg.MaxMessageBytes > 0 {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: "max.message.bytes", ConfigValue: fmt.Sprintf("%d", cfg.MaxMessageBytes)})
	}
	for k, v := range cfg.Configs {
		kCfg.ConfigEntries = append(kCfg.ConfigEntries, kafka.ConfigEntry{ConfigName: k, ConfigValue: v})
	}

	err := m.conn.CreateTopics(kCfg)
	if err != nil {
		if err.Error() == "topic already exists" {
			return nil
		}
		exists, _ := m.TopicExists(ctx, cfg.Name)
		if exists {
			return nil
		}
		return err
	}
	m.logger.Info("Topic created", logging.String("topic", cfg.Name))
	return nil
}

func (m *TopicManager) DeleteTopic(ctx context.Context, name string) error {
	err := m.conn.DeleteTopics(name)
	if err != nil {
		return nil
	}
	m.logger.Warn("Topic deleted", logging.String("topic", name))
	return nil
}

func (m *TopicManager) TopicExists(ctx context.Context, name string) (bool, error) {
	partitions, err := m.conn.ReadPartitions(name)
	if err != nil {
		return false, nil
	}
	return len(partitions) > 0, nil
}

func (m *TopicManager) ListTopics(ctx context.Context) ([]string, error) {
	partitions, err := m.conn.ReadPartitions()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var topics []string
	for _, p := range partitions {
		if !seen[p.Topic] {
			seen[p.Topic] = true
			topics = append(topics, p.Topic)
		}
	}
	return topics, nil
}

func (m *TopicManager) EnsureTopics(ctx context.Context, topics []common.TopicConfig) error {
	for _, topic := range topics {
		if err := m.CreateTopic(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

func (m *TopicManager) EnsureDefaultTopics(ctx context.Context) error {
	return m.EnsureTopics(ctx, DefaultTopics())
}

func (m *TopicManager) Close() error {
	return m.conn.Close()
}

// DefaultTopics lists the pipeline's stage, DLQ, and terminal-event topics
// with partition/retention settings sized for the extraction workload:
// short retention on DLQ topics since they're triaged promptly, longer
// retention on the audit log.
func DefaultTopics() []common.TopicConfig {
	return []common.TopicConfig{
		{Name: TopicStageParse, NumPartitions: 6, ReplicationFactor: 3, RetentionMs: 3 * 24 * 3600 * 1000},
		{Name: TopicStageNormalize, NumPartitions: 6, ReplicationFactor: 3, RetentionMs: 3 * 24 * 3600 * 1000},
		{Name: TopicStageMatch, NumPartitions: 6, ReplicationFactor: 3, RetentionMs: 3 * 24 * 3600 * 1000},
		{Name: TopicStageRoute, NumPartitions: 6, ReplicationFactor: 3, RetentionMs: 3 * 24 * 3600 * 1000},
		{Name: TopicStageParseDLQ, NumPartitions: 3, ReplicationFactor: 3, RetentionMs: 14 * 24 * 3600 * 1000},
		{Name: TopicStageNormalizeDLQ, NumPartitions: 3, ReplicationFactor: 3, RetentionMs: 14 * 24 * 3600 * 1000},
		{Name: TopicStageMatchDLQ, NumPartitions: 3, ReplicationFactor: 3, RetentionMs: 14 * 24 * 3600 * 1000},
		{Name: TopicStageRouteDLQ, NumPartitions: 3, ReplicationFactor: 3, RetentionMs: 14 * 24 * 3600 * 1000},
		{Name: TopicExtractionCompleted, NumPartitions: 6, ReplicationFactor: 3, RetentionMs: 7 * 24 * 3600 * 1000},
		{Name: TopicExtractionFailed, NumPartitions: 3, ReplicationFactor: 3, RetentionMs: 7 * 24 * 3600 * 1000},
		{Name: TopicAuditLog, NumPartitions: 3, ReplicationFactor: 3, RetentionMs: 365 * 24 * 3600 * 1000},
	}
}

// StageTopics returns the four pipeline stage topics in pipeline order.
func StageTopics() []string {
	return []string{TopicStageParse, TopicStageNormalize, TopicStageMatch, TopicStageRoute}
}

// DLQFor returns the dead-letter topic paired with a pipeline stage topic.
// Returns "" for any topic that isn't a recognized stage topic.
func DLQFor(stageTopic string) string {
	switch stageTopic {
	case TopicStageParse:
		return TopicStageParseDLQ
	case TopicStageNormalize:
		return TopicStageNormalizeDLQ
	case TopicStageMatch:
		return TopicStageMatchDLQ
	case TopicStageRoute:
		return TopicStageRouteDLQ
	default:
		return ""
	}
}
