// Package errors provides centralized error code definitions for the extraction
// pipeline service. All error codes are grouped by business domain and mapped
// to HTTP status codes.
package errors

import "net/http"

// ErrorCode represents a typed error code used throughout the extraction
// pipeline. Codes are partitioned by domain to avoid conflicts and simplify
// maintenance.
type ErrorCode int

// ─────────────────────────────────────────────────────────────────────────────
// General / cross-cutting error codes  (1xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeOK indicates no error.
	CodeOK ErrorCode = 0

	// CodeUnknown is a catch-all for errors that have not been categorised.
	CodeUnknown ErrorCode = 10000

	// CodeInvalidParam is returned when one or more request parameters fail
	// validation (missing required fields, type mismatch, out-of-range values, etc.).
	CodeInvalidParam ErrorCode = 10001

	// CodeUnauthorized is returned when a request lacks valid authentication credentials.
	CodeUnauthorized ErrorCode = 10002

	// CodeForbidden is returned when authenticated credentials do not grant access
	// to the requested resource or action.
	CodeForbidden ErrorCode = 10003

	// CodeNotFound is returned when the requested resource does not exist.
	CodeNotFound ErrorCode = 10004

	// CodeConflict is returned when a create/update operation violates a uniqueness
	// or state constraint (e.g., optimistic lock failure, lock already held).
	CodeConflict ErrorCode = 10005

	// CodeRateLimit is returned when the caller has exceeded the allowed request rate.
	CodeRateLimit ErrorCode = 10006

	// CodeInternal is returned for unexpected server-side errors that are not
	// attributable to the caller.
	CodeInternal ErrorCode = 10007

	// CodeNotImplemented is returned when a requested feature or endpoint is
	// not yet implemented.
	CodeNotImplemented ErrorCode = 10008
)

// ─────────────────────────────────────────────────────────────────────────────
// Extraction pipeline error codes  (2xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeExtractionNotFound is returned when an Extraction with the requested
	// identifier cannot be located.
	CodeExtractionNotFound ErrorCode = 20001

	// CodeLineItemNotFound is returned when an ExtractedLineItem with the
	// requested identifier cannot be located under the given extraction.
	CodeLineItemNotFound ErrorCode = 20002

	// CodeIllegalTransition is returned when a state-guard violation is
	// attempted: a stage runs against an extraction not in the expected
	// entering state, or a caller converts/verifies an extraction that is
	// not in a state that permits it.
	CodeIllegalTransition ErrorCode = 20003

	// CodeStageFailed is returned when a pipeline stage exhausts its retry
	// budget; the Extraction is marked FAILED.
	CodeStageFailed ErrorCode = 20004
)

// ─────────────────────────────────────────────────────────────────────────────
// Matching cascade error codes  (3xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeCatalogLookupError is returned when the Catalog's exact-code or
	// vector-similarity lookup fails unexpectedly (not a plain miss).
	CodeCatalogLookupError ErrorCode = 30001

	// CodeEmbeddingFailed is returned when the Embedder Adapter cannot
	// produce a vector for a normalized description.
	CodeEmbeddingFailed ErrorCode = 30002

	// CodeLLMDisambiguationFailed is returned when the LLM Adapter's reply
	// cannot be parsed into a valid candidate selection.
	CodeLLMDisambiguationFailed ErrorCode = 30003
)

// ─────────────────────────────────────────────────────────────────────────────
// External adapter / dependency error codes  (4xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeDependencyTransient is returned when an external service (OCR,
	// embedding, LLM, catalog vector search) fails in a way judged retryable
	// (network error, rate limit, 5xx).
	CodeDependencyTransient ErrorCode = 40001

	// CodeDependencyPermanent is returned when an external service rejects a
	// request in a way judged non-retryable (unsupported format, auth
	// failure, 4xx other than rate-limit).
	CodeDependencyPermanent ErrorCode = 40002
)

// ─────────────────────────────────────────────────────────────────────────────
// Infrastructure error codes  (7xxxx)
// ─────────────────────────────────────────────────────────────────────────────
const (
	// CodeDBConnectionError is returned when the application cannot establish
	// or re-use a connection to PostgreSQL.
	CodeDBConnectionError ErrorCode = 70001

	// CodeCacheError is returned when a Redis operation (GET, SET, DEL, EVAL,
	// etc.) fails due to connection loss, timeout, or an unexpected response.
	CodeCacheError ErrorCode = 70002

	// CodeSearchError is returned when a Milvus query or indexing operation
	// fails.
	CodeSearchError ErrorCode = 70003

	// CodeMessageQueueError is returned when producing to or consuming from a
	// Kafka topic fails (broker unavailable, serialisation error, offset
	// commit, etc.).
	CodeMessageQueueError ErrorCode = 70004

	// CodeDBQueryError is returned when a database query fails due to syntax
	// errors, constraint violations (not covered by CodeConflict), or other
	// execution-time failures.
	CodeDBQueryError ErrorCode = 70005

	// CodeDatabaseError is a general error for database-related failures that
	// are not specifically connection issues.
	CodeDatabaseError ErrorCode = 70006

	// CodeSerializationError is returned when marshaling or unmarshaling a
	// cached value or message envelope fails.
	CodeSerializationError ErrorCode = 70007

	// CodeServiceUnavailable is returned when an infrastructure dependency
	// (vector search, cache, broker) reports itself unhealthy.
	CodeServiceUnavailable ErrorCode = 70008
)

// ─────────────────────────────────────────────────────────────────────────────
// String — human-readable name of the error code
// ─────────────────────────────────────────────────────────────────────────────

// String returns the human-readable name associated with an ErrorCode.
// It is safe to call on any value, including unknown codes.
func (c ErrorCode) String() string {
	switch c {
	// General
	case CodeOK:
		return "OK"
	case CodeUnknown:
		return "UNKNOWN"
	case CodeInvalidParam:
		return "INVALID_PARAM"
	case CodeUnauthorized:
		return "UNAUTHORIZED"
	case CodeForbidden:
		return "FORBIDDEN"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeConflict:
		return "CONFLICT"
	case CodeRateLimit:
		return "RATE_LIMIT"
	case CodeInternal:
		return "INTERNAL_ERROR"
	case CodeNotImplemented:
		return "NOT_IMPLEMENTED"

	// Extraction pipeline
	case CodeExtractionNotFound:
		return "EXTRACTION_NOT_FOUND"
	case CodeLineItemNotFound:
		return "LINE_ITEM_NOT_FOUND"
	case CodeIllegalTransition:
		return "ILLEGAL_TRANSITION"
	case CodeStageFailed:
		return "STAGE_FAILED"

	// Matching cascade
	case CodeCatalogLookupError:
		return "CATALOG_LOOKUP_ERROR"
	case CodeEmbeddingFailed:
		return "EMBEDDING_FAILED"
	case CodeLLMDisambiguationFailed:
		return "LLM_DISAMBIGUATION_FAILED"

	// External adapters
	case CodeDependencyTransient:
		return "DEPENDENCY_TRANSIENT"
	case CodeDependencyPermanent:
		return "DEPENDENCY_PERMANENT"

	// Infrastructure
	case CodeDBConnectionError:
		return "DB_CONNECTION_ERROR"
	case CodeCacheError:
		return "CACHE_ERROR"
	case CodeSearchError:
		return "SEARCH_ERROR"
	case CodeMessageQueueError:
		return "MESSAGE_QUEUE_ERROR"
	case CodeDBQueryError:
		return "DB_QUERY_ERROR"
	case CodeDatabaseError:
		return "DATABASE_ERROR"
	case CodeSerializationError:
		return "SERIALIZATION_ERROR"
	case CodeServiceUnavailable:
		return "SERVICE_UNAVAILABLE"

	default:
		return "UNKNOWN_CODE"
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTPStatus — mapping from domain error codes to HTTP status codes
// ─────────────────────────────────────────────────────────────────────────────

// HTTPStatus returns the most appropriate HTTP status code for the given
// ErrorCode. The mapping follows RFC 9110 semantics and is used by the HTTP
// handlers in internal/interfaces/http to translate domain errors into HTTP
// responses.
//
// Decision matrix:
//   - 200 OK              → CodeOK
//   - 400 Bad Request     → CodeInvalidParam
//   - 401 Unauthorized    → CodeUnauthorized
//   - 403 Forbidden       → CodeForbidden
//   - 404 Not Found       → CodeNotFound, CodeExtractionNotFound, CodeLineItemNotFound
//   - 409 Conflict        → CodeConflict, CodeIllegalTransition
//   - 422 Unprocessable   → CodeDependencyPermanent
//   - 429 Too Many Req.   → CodeRateLimit
//   - 503 Service Unavail → CodeDBConnectionError, CodeMessageQueueError, CodeDependencyTransient
//   - 500 Internal Server → everything else
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusOK

	case CodeInvalidParam:
		return http.StatusBadRequest

	case CodeUnauthorized:
		return http.StatusUnauthorized

	case CodeForbidden:
		return http.StatusForbidden

	case CodeNotFound,
		CodeExtractionNotFound,
		CodeLineItemNotFound:
		return http.StatusNotFound

	case CodeConflict,
		CodeIllegalTransition:
		return http.StatusConflict

	case CodeDependencyPermanent:
		return http.StatusUnprocessableEntity

	case CodeRateLimit:
		return http.StatusTooManyRequests

	case CodeDBConnectionError,
		CodeMessageQueueError,
		CodeDependencyTransient,
		CodeServiceUnavailable:
		return http.StatusServiceUnavailable

	case CodeNotImplemented:
		return http.StatusNotImplemented

	default:
		// CodeUnknown, CodeInternal, CodeStageFailed, CodeCatalogLookupError,
		// CodeEmbeddingFailed, CodeLLMDisambiguationFailed, CodeDBQueryError,
		// CodeDatabaseError, CodeCacheError, CodeSearchError, and all
		// unrecognised codes.
		return http.StatusInternalServerError
	}
}
