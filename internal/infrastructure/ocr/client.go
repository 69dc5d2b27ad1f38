// Package ocr implements extraction.OCRAdapter against a configurable
// document intelligence endpoint, degrading gracefully when none is
// configured.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/turtacn/shipcat-extractor/internal/config"
	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
)

// Client implements extraction.OCRAdapter. With no endpoint configured it
// returns a degraded RawExtraction instead of failing stage 1, per the
// pipeline's requirement that downstream stages tolerate a zero-line
// document.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	log      logging.Logger
}

// NewClient constructs a Client from OCRConfig. An empty Endpoint puts the
// client in degraded mode permanently.
func NewClient(cfg config.OCRConfig, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

type parseRequest struct {
	FileRef string `json:"file_ref"`
}

type parseResponse struct {
	Lines  []string     `json:"lines"`
	Tables [][][]string `json:"tables,omitempty"`
}

// Parse calls the configured document intelligence endpoint. With no
// endpoint configured it returns a degraded, empty result immediately.
func (c *Client) Parse(ctx context.Context, fileRef string) (*extraction.RawExtraction, error) {
	if c.endpoint == "" {
		c.log.Warn("ocr adapter unconfigured, returning degraded result", logging.String("file_ref", fileRef))
		return &extraction.RawExtraction{Status: "no_extraction_available"}, nil
	}

	body, err := json.Marshal(parseRequest{FileRef: fileRef})
	if err != nil {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailurePermanent, Message: fmt.Sprintf("ocr: encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailurePermanent, Message: fmt.Sprintf("ocr: build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailureTransient, Message: fmt.Sprintf("ocr: request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailureTransient, Message: fmt.Sprintf("ocr: server error, status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailurePermanent, Message: fmt.Sprintf("ocr: rejected request, status %d", resp.StatusCode)}
	}

	var out parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailureTransient, Message: fmt.Sprintf("ocr: decode response: %v", err)}
	}

	return &extraction.RawExtraction{Lines: out.Lines, Tables: out.Tables, Status: "ok"}, nil
}
