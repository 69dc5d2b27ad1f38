// Package llm implements extraction.EmbedderAdapter and extraction.LLMAdapter
// on top of an OpenAI-compatible chat/embeddings API, following the same
// functional-options client construction as the reference invoice-processor
// LLM client.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/turtacn/shipcat-extractor/internal/config"
	"github.com/turtacn/shipcat-extractor/internal/domain/extraction"
	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
)

const (
	llmDefaultConfidence = 0.7
	llmMaxConfidence     = 0.90
)

// Client implements both extraction.EmbedderAdapter and extraction.LLMAdapter.
// A zero-value APIKey puts it in degraded mode: Embed and Disambiguate
// return immediately without a network call, matching the matcher's
// adapter-availability check ahead of any network call.
type Client struct {
	client          openai.Client
	embeddingModel  string
	chatModel       string
	embedderEnabled bool
	llmEnabled      bool
	log             logging.Logger
}

// NewClient constructs a Client from EmbedderConfig and LLMConfig. It is
// valid to construct with either config's APIKey empty; that half of the
// client runs in degraded mode.
func NewClient(embedder config.EmbedderConfig, llm config.LLMConfig, log logging.Logger) *Client {
	if log == nil {
		log = logging.NewNopLogger()
	}
	timeout := llm.Timeout
	if timeout <= 0 {
		timeout = embedder.Timeout
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	baseURL := llm.BaseURL
	if baseURL == "" {
		baseURL = embedder.BaseURL
	}
	apiKey := llm.APIKey
	if apiKey == "" {
		apiKey = embedder.APIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		client:          openai.NewClient(opts...),
		embeddingModel:  embedder.Model,
		chatModel:       llm.Model,
		embedderEnabled: embedder.APIKey != "",
		llmEnabled:      llm.APIKey != "",
		log:             log,
	}
}

// Embed returns a fixed-dimension embedding for text. With no embedder
// configured it returns a transient AdapterFailure so the matcher's
// semantic stage is skipped for this call without surfacing a hard error.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.embedderEnabled {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailureTransient, Message: "embedder adapter not configured"}
	}

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)},
		Model: c.embeddingModel,
	})
	if err != nil {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailureTransient, Message: fmt.Sprintf("embedder: request failed: %v", err)}
	}
	if len(resp.Data) == 0 {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailureTransient, Message: "embedder: empty response"}
	}

	vec := resp.Data[0].Embedding
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out, nil
}

var jsonObjectPattern = regexp.MustCompile(`\{.*\}`)

type llmDisambiguationReply struct {
	IMPACode   string  `json:"impa_code"`
	Confidence float64 `json:"confidence"`
}

// Disambiguate asks the LLM to choose among candidates for rawText. With no
// LLM configured it returns a transient AdapterFailure so the caller falls
// back to the semantic stage's best result.
func (c *Client) Disambiguate(ctx context.Context, rawText string, candidates []extraction.LLMCandidate) (*extraction.LLMDecision, error) {
	if !c.llmEnabled {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailureTransient, Message: "llm adapter not configured"}
	}

	prompt := buildDisambiguationPrompt(rawText, candidates)
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You resolve ambiguous maritime procurement line items to an IMPA code. Reply with a single JSON object: {\"impa_code\": \"...\", \"confidence\": 0.0}."),
			openai.UserMessage(prompt),
		},
		MaxTokens:   param.NewOpt[int64](256),
		Temperature: param.NewOpt[float64](0),
	})
	if err != nil {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailureTransient, Message: fmt.Sprintf("llm: request failed: %v", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailureTransient, Message: "llm: empty response"}
	}

	raw := extractJSON(resp.Choices[0].Message.Content)
	var reply llmDisambiguationReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailurePermanent, Message: fmt.Sprintf("llm: could not parse reply as JSON: %v", err)}
	}
	if reply.IMPACode == "" {
		return nil, &extraction.AdapterFailure{Kind: extraction.FailurePermanent, Message: "llm: reply missing impa_code"}
	}

	confidence := reply.Confidence
	if confidence == 0 {
		confidence = llmDefaultConfidence
	}
	if confidence > llmMaxConfidence {
		confidence = llmMaxConfidence
	}
	if confidence < 0 {
		confidence = 0
	}

	return &extraction.LLMDecision{IMPACode: reply.IMPACode, Confidence: confidence}, nil
}

func buildDisambiguationPrompt(rawText string, candidates []extraction.LLMCandidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Line item text: %q\n\nCandidates:\n", rawText)
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s (%s), similarity %.3f\n", c.IMPACode, c.Name, c.Similarity)
	}
	return b.String()
}

// extractJSON pulls a JSON object out of a chat reply that may wrap it in
// markdown or surrounding prose.
func extractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	if start := strings.Index(reply, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(reply[start:], "```"); end != -1 {
			return strings.TrimSpace(reply[start : start+end])
		}
	}
	if start := strings.Index(reply, "```"); start != -1 {
		start += len("```")
		if nl := strings.Index(reply[start:], "\n"); nl != -1 {
			start += nl + 1
		}
		if end := strings.Index(reply[start:], "```"); end != -1 {
			return strings.TrimSpace(reply[start : start+end])
		}
	}
	if match := jsonObjectPattern.FindString(reply); match != "" {
		return match
	}
	return reply
}
