package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP Layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPRequestSize     HistogramVec
	HTTPResponseSize    HistogramVec
	HTTPActiveRequests  GaugeVec

	// Auth Layer
	AuthAttemptsTotal       CounterVec
	AuthTokenVerifyDuration HistogramVec
	AuthActiveTokens        GaugeVec

	// Extraction Layer
	ExtractionUploadsTotal      CounterVec
	ExtractionStageDuration     HistogramVec
	ExtractionLineItemsTotal    CounterVec
	ExtractionActiveCount       GaugeVec
	ExtractionTerminalTotal     CounterVec

	// Matching Layer
	MatchRequestsTotal  CounterVec
	MatchStageDuration  HistogramVec
	MatchTierTotal      CounterVec
	MatchDuplicatesFound CounterVec

	// Pipeline Worker Layer
	PipelineTasksTotal     CounterVec
	PipelineTaskDuration   HistogramVec
	PipelineTaskQueueDepth GaugeVec
	PipelineActiveWorkers  GaugeVec
	PipelineTaskRetries    CounterVec

	// Catalog Search Layer
	CatalogVectorsTotal     GaugeVec
	CatalogSearchDuration   HistogramVec
	CatalogIndexBuildDuration HistogramVec

	// AI/LLM Layer
	LLMRequestsTotal   CounterVec
	LLMRequestDuration HistogramVec
	LLMTokensUsed      CounterVec
	LLMCostTotal       CounterVec
	LLMCacheHitRate    GaugeVec

	// Infrastructure Layer
	DBConnectionPoolSize   GaugeVec
	DBConnectionPoolActive GaugeVec
	DBQueryDuration        HistogramVec
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	MessageQueueDepth      GaugeVec
	MessageProcessDuration HistogramVec

	// System Health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultAnalysisDurationBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600}
	DefaultLLMDurationBuckets      = []float64{.5, 1, 2, 5, 10, 30, 60, 120}
	DefaultSizeBuckets             = []float64{100, 1000, 10000, 100000, 1000000, 10000000}
	DefaultDBDurationBuckets       = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewAppMetrics registers all metrics and returns AppMetrics struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPRequestSize = collector.RegisterHistogram("http_request_size_bytes", "HTTP request size", DefaultSizeBuckets, "method", "path")
	m.HTTPResponseSize = collector.RegisterHistogram("http_response_size_bytes", "HTTP response size", DefaultSizeBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Auth
	m.AuthAttemptsTotal = collector.RegisterCounter("auth_attempts_total", "Authentication attempts", "result", "failure_reason")
	m.AuthTokenVerifyDuration = collector.RegisterHistogram("auth_token_verify_duration_seconds", "Token verification duration", DefaultHTTPDurationBuckets, "method")
	m.AuthActiveTokens = collector.RegisterGauge("auth_active_tokens", "Active tokens (introspected)", "token_type")

	// Extraction
	m.ExtractionUploadsTotal = collector.RegisterCounter("extraction_uploads_total", "Extraction uploads accepted", "source", "status")
	m.ExtractionStageDuration = collector.RegisterHistogram("extraction_stage_duration_seconds", "Duration of a single pipeline stage", DefaultAnalysisDurationBuckets, "stage")
	m.ExtractionLineItemsTotal = collector.RegisterCounter("extraction_line_items_total", "Line items produced by the normalizer", "tier")
	m.ExtractionActiveCount = collector.RegisterGauge("extraction_active_count", "Extractions currently mid-pipeline", "state")
	m.ExtractionTerminalTotal = collector.RegisterCounter("extraction_terminal_total", "Extractions reaching a terminal state", "state")

	// Matching
	m.MatchRequestsTotal = collector.RegisterCounter("match_requests_total", "Line items entering the matching cascade", "stage", "outcome")
	m.MatchStageDuration = collector.RegisterHistogram("match_stage_duration_seconds", "Matching cascade stage duration", DefaultHTTPDurationBuckets, "stage")
	m.MatchTierTotal = collector.RegisterCounter("match_tier_total", "Line items routed to each confidence tier", "tier")
	m.MatchDuplicatesFound = collector.RegisterCounter("match_duplicates_found_total", "Duplicate line-item groups found per RFQ", "rfq_status")

	// Pipeline worker
	m.PipelineTasksTotal = collector.RegisterCounter("pipeline_tasks_total", "Pipeline stage tasks total", "stage", "status")
	m.PipelineTaskDuration = collector.RegisterHistogram("pipeline_task_duration_seconds", "Pipeline stage task duration", DefaultAnalysisDurationBuckets, "stage")
	m.PipelineTaskQueueDepth = collector.RegisterGauge("pipeline_task_queue_depth", "Pipeline stage queue depth", "stage")
	m.PipelineActiveWorkers = collector.RegisterGauge("pipeline_active_workers", "Active pipeline workers", "stage")
	m.PipelineTaskRetries = collector.RegisterCounter("pipeline_task_retries_total", "Pipeline stage task retries", "stage", "reason")

	// Catalog search
	m.CatalogVectorsTotal = collector.RegisterGauge("catalog_vectors_total", "Indexed catalog description vectors", "collection")
	m.CatalogSearchDuration = collector.RegisterHistogram("catalog_search_duration_seconds", "Catalog vector search duration", DefaultDBDurationBuckets, "collection")
	m.CatalogIndexBuildDuration = collector.RegisterHistogram("catalog_index_build_duration_seconds", "Catalog vector index build duration", DefaultAnalysisDurationBuckets, "collection")

	// AI/LLM
	m.LLMRequestsTotal = collector.RegisterCounter("llm_requests_total", "LLM requests total", "model", "operation", "status")
	m.LLMRequestDuration = collector.RegisterHistogram("llm_request_duration_seconds", "LLM request duration", DefaultLLMDurationBuckets, "model", "operation")
	m.LLMTokensUsed = collector.RegisterCounter("llm_tokens_total", "LLM tokens used", "model", "direction")
	m.LLMCostTotal = collector.RegisterCounter("llm_cost_total", "LLM cost total", "model")
	m.LLMCacheHitRate = collector.RegisterGauge("llm_cache_hit_rate", "LLM cache hit rate", "model")

	// Infrastructure
	m.DBConnectionPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBConnectionPoolActive = collector.RegisterGauge("db_pool_active", "Database active connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.MessageQueueDepth = collector.RegisterGauge("mq_depth", "Message queue depth", "queue")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "queue", "message_type")

	// System Health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type", "severity")

	return m
}

// RegisterAppMetrics is an alias for NewAppMetrics.
func RegisterAppMetrics(collector MetricsCollector) *AppMetrics {
	return NewAppMetrics(collector)
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration, reqSize, respSize int64) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
}

func RecordAuthAttempt(metrics *AppMetrics, success bool, failureReason string, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	metrics.AuthAttemptsTotal.WithLabelValues(result, failureReason).Inc()
	metrics.AuthTokenVerifyDuration.WithLabelValues("local").Observe(duration.Seconds()) // Assuming local verify
}

func RecordLLMCall(metrics *AppMetrics, model, operation string, success bool, duration time.Duration, inputTokens, outputTokens int, cost float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	metrics.LLMRequestsTotal.WithLabelValues(model, operation, status).Inc()
	metrics.LLMRequestDuration.WithLabelValues(model, operation).Observe(duration.Seconds())
	metrics.LLMTokensUsed.WithLabelValues(model, "input").Add(float64(inputTokens))
	metrics.LLMTokensUsed.WithLabelValues(model, "output").Add(float64(outputTokens))
	metrics.LLMCostTotal.WithLabelValues(model).Add(cost)
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error", "error").Inc()
	}
}

func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordError(metrics *AppMetrics, component, errorType, severity string) {
	metrics.ErrorsTotal.WithLabelValues(component, errorType, severity).Inc()
}

func RecordMatchOutcome(metrics *AppMetrics, stage, outcome, tier string, duration time.Duration) {
	metrics.MatchRequestsTotal.WithLabelValues(stage, outcome).Inc()
	metrics.MatchStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if tier != "" {
		metrics.MatchTierTotal.WithLabelValues(tier).Inc()
	}
}

func RecordPipelineTask(metrics *AppMetrics, stage, status string, duration time.Duration) {
	metrics.PipelineTasksTotal.WithLabelValues(stage, status).Inc()
	metrics.PipelineTaskDuration.WithLabelValues(stage).Observe(duration.Seconds())
}
