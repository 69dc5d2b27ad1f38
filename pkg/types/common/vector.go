package common

// ─────────────────────────────────────────────────────────────────────────────
// Vector store contracts — shared between the Milvus adapter and the callers
// that populate and query the Catalog's description-vector collection.
// ─────────────────────────────────────────────────────────────────────────────

// CollectionSchema describes a vector collection independent of the backing
// client's own schema type. Fields holds backend-specific field descriptors
// (e.g. *entity.Field for the Milvus adapter) behind an empty interface so
// this package stays free of any vendor SDK import.
type CollectionSchema struct {
	Name               string
	Description        string
	Fields             []interface{}
	EnableDynamicField bool
}

// IndexConfig describes a single-field vector index to build on a collection.
type IndexConfig struct {
	FieldName  string
	IndexType  string
	MetricType string
}

// InsertRequest carries rows to insert or upsert into a vector collection.
// Each entry of Data maps field name to value; the adapter resolves types
// against the collection's schema.
type InsertRequest struct {
	CollectionName string
	Data           []map[string]interface{}
}

// InsertResult reports the outcome of an insert or upsert.
type InsertResult struct {
	IDs           []int64
	InsertedCount int64
}

// VectorSearchRequest parameterises a single nearest-neighbor search.
type VectorSearchRequest struct {
	CollectionName      string
	VectorFieldName     string
	Vectors             [][]float32
	TopK                int
	Filters             string
	OutputFields        []string
	MetricType          string
	SearchParams        map[string]interface{}
	GuaranteeTimestamp  uint64
}

// VectorHit is one scored match of a vector search.
type VectorHit struct {
	ID     int64
	Score  float32
	Fields map[string]interface{}
}

// VectorSearchResult holds one result set per query vector submitted in the
// request, in submission order.
type VectorSearchResult struct {
	Results [][]VectorHit
	TookMs  int64
}

// ─────────────────────────────────────────────────────────────────────────────
// Topic administration — shared between the Kafka TopicManager and callers
// that need to ensure the pipeline's stage, DLQ, and terminal-event topics
// exist before the service starts consuming.
// ─────────────────────────────────────────────────────────────────────────────

// TopicConfig describes a topic to create, independent of the broker client.
type TopicConfig struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	RetentionMs       int64
	CleanupPolicy     string
	MaxMessageBytes   int
	Configs           map[string]string
}
