package extraction

import (
	"context"
	"regexp"

	"github.com/turtacn/shipcat-extractor/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/shipcat-extractor/pkg/types/common"
)

// Matching cascade tuning constants from the system's default configuration
// record. Callers that need non-default values construct a MatcherConfig.
const (
	regexExactConfidence      = 0.98
	regexFoundConfidence      = 0.95
	regexCarryConfidence      = 0.50
	regexShortCircuitFloor    = 0.95
	semanticCarryFloor        = 0.6
	llmConfidenceCap          = 0.90
	maxAlternatives           = 3
	maxLLMCandidates          = 5
)

// MatcherConfig carries the matching cascade's tunable thresholds. Zero
// values fall back to the package defaults documented alongside each field.
type MatcherConfig struct {
	// SemanticAutoApprove is the minimum top-match similarity, absent
	// ambiguity, required for stage M2 to short-circuit. Default 0.85.
	SemanticAutoApprove float64
	// SemanticFloor is the minimum cosine similarity the Catalog search
	// considers a candidate at all. Default 0.6.
	SemanticFloor float64
	// AmbiguityGap is the maximum (top - runnerUp) similarity delta below
	// which stage M2 defers to LLM disambiguation. Default 0.05.
	AmbiguityGap float64
	// SemanticTopK bounds how many nearest neighbors are requested from
	// the Catalog. Default 5.
	SemanticTopK int
}

func (c MatcherConfig) withDefaults() MatcherConfig {
	if c.SemanticAutoApprove == 0 {
		c.SemanticAutoApprove = 0.85
	}
	if c.SemanticFloor == 0 {
		c.SemanticFloor = semanticCarryFloor
	}
	if c.AmbiguityGap == 0 {
		c.AmbiguityGap = 0.05
	}
	if c.SemanticTopK == 0 {
		c.SemanticTopK = maxLLMCandidates
	}
	return c
}

// sixDigitGroup extracts ordered, de-duplicated 6-digit substrings from
// free text, independent of IMPA range validity (stage M1 checks the
// catalog, not the numeric range).
var sixDigitGroup = regexp.MustCompile(`\d{6}`)

// MatchAttempt records the candidate each cascade stage produced for one
// line item. Any of Regex, Semantic and LLM may be set, since later stages
// run after earlier ones; a nil field means that stage produced no candidate.
type MatchAttempt struct {
	Regex    *MatchResult
	Semantic *MatchResult
	LLM      *MatchResult
}

// MatchResult is one stage's candidate or final selection, with enough
// provenance to populate an ExtractedLineItem's match view.
type MatchResult struct {
	IMPACode     *string
	ProductID    *common.ID
	Confidence   float64
	Method       MatchMethod
	Alternatives []MatchAlternative
}

// noneResult is the terminal fallback when no stage produces any candidate.
func noneResult() MatchResult {
	return MatchResult{Confidence: 0, Method: MatchMethodNone}
}

// Matcher orchestrates the three-stage matching cascade: exact-code regex,
// vector similarity, and LLM disambiguation.
type Matcher struct {
	catalog  Catalog
	embedder EmbedderAdapter
	llm      LLMAdapter
	cfg      MatcherConfig
	log      logging.Logger
}

// NewMatcher constructs a Matcher. embedder and llm may be nil, modeling an
// unconfigured adapter; the cascade then skips directly to the
// best-available result from the stages it can run.
func NewMatcher(catalog Catalog, embedder EmbedderAdapter, llm LLMAdapter, cfg MatcherConfig, log logging.Logger) *Matcher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Matcher{catalog: catalog, embedder: embedder, llm: llm, cfg: cfg.withDefaults(), log: log}
}

// Match runs the cascade for a single line item and returns its final
// selection: the first of LLM, Semantic, Regex, or none.
func (m *Matcher) Match(ctx context.Context, detectedCode *string, rawText, normalizedDescription string) MatchResult {
	attempt := MatchAttempt{}

	regexResult, shortCircuit := m.matchRegex(ctx, detectedCode, rawText)
	attempt.Regex = regexResult
	if shortCircuit {
		return *attempt.Regex
	}

	semanticResult, candidates, shortCircuit := m.matchSemantic(ctx, normalizedDescription)
	attempt.Semantic = semanticResult
	if shortCircuit {
		return *attempt.Semantic
	}

	if len(candidates) > 0 {
		attempt.LLM = m.matchLLM(ctx, rawText, candidates)
	}

	return m.finalSelection(attempt)
}

// finalSelection implements the cascade's final-selection precedence: LLM
// over Semantic over Regex over none, even when the chosen result is
// sub-threshold.
func (m *Matcher) finalSelection(a MatchAttempt) MatchResult {
	if a.LLM != nil {
		return *a.LLM
	}
	if a.Semantic != nil {
		return *a.Semantic
	}
	if a.Regex != nil {
		return *a.Regex
	}
	return noneResult()
}

// matchRegex runs stage M1. It returns the stage candidate (nil if no
// 6-digit group was found anywhere) and whether the cascade should
// short-circuit immediately.
func (m *Matcher) matchRegex(ctx context.Context, detectedCode *string, rawText string) (*MatchResult, bool) {
	candidates := orderedUniqueCodes(detectedCode, rawText)
	if len(candidates) == 0 {
		return nil, false
	}

	for i, code := range candidates {
		product, err := m.catalog.LookupByCode(ctx, code)
		if err != nil {
			m.log.Warn("catalog lookup failed during regex match", logging.String("impa_code", code), logging.Err(err))
			continue
		}
		if product == nil {
			continue
		}
		confidence := regexFoundConfidence
		if i == 0 && detectedCode != nil && code == *detectedCode {
			confidence = regexExactConfidence
		}
		result := &MatchResult{
			IMPACode:   &product.IMPACode,
			ProductID:  &product.ProductID,
			Confidence: confidence,
			Method:     MatchMethodRegex,
		}
		return result, confidence >= regexShortCircuitFloor
	}

	// Candidates exist but none resolved in the catalog: carry the first
	// forward, undecided.
	first := candidates[0]
	return &MatchResult{
		IMPACode:   &first,
		Confidence: regexCarryConfidence,
		Method:     MatchMethodRegex,
	}, false
}

// orderedUniqueCodes concatenates the pre-detected code (if any) with the
// ordered, de-duplicated 6-digit groups found in rawText.
func orderedUniqueCodes(detectedCode *string, rawText string) []string {
	seen := make(map[string]struct{})
	var out []string

	if detectedCode != nil {
		out = append(out, *detectedCode)
		seen[*detectedCode] = struct{}{}
	}
	for _, code := range sixDigitGroup.FindAllString(rawText, -1) {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

// matchSemantic runs stage M2. It returns the stage candidate (nil if the
// embedder is unconfigured or returned no rows above the floor), the
// candidate list to hand to stage M3, and whether to short-circuit.
func (m *Matcher) matchSemantic(ctx context.Context, normalizedDescription string) (*MatchResult, []LLMCandidate, bool) {
	if m.embedder == nil {
		return nil, nil, false
	}

	vector, err := m.embedder.Embed(ctx, normalizedDescription)
	if err != nil {
		m.log.Warn("embedder call failed during semantic match", logging.Err(err))
		return nil, nil, false
	}

	rows, err := m.catalog.NearestByVector(ctx, vector, m.cfg.SemanticTopK, m.cfg.SemanticFloor)
	if err != nil {
		m.log.Warn("catalog vector search failed during semantic match", logging.Err(err))
		return nil, nil, false
	}
	if len(rows) == 0 {
		return nil, nil, false
	}

	top := rows[0]
	ambiguous := false
	if len(rows) >= 2 {
		ambiguous = (top.Similarity - rows[1].Similarity) < m.cfg.AmbiguityGap
	}

	result := &MatchResult{
		IMPACode:     &top.IMPACode,
		ProductID:    &top.ProductID,
		Confidence:   top.Similarity,
		Method:       MatchMethodSemantic,
		Alternatives: alternativesFrom(rows, 1),
	}

	candidates := toLLMCandidates(rows)

	if top.Similarity >= m.cfg.SemanticAutoApprove && !ambiguous {
		return result, candidates, true
	}
	return result, candidates, false
}

// matchLLM runs stage M3 against the candidate set surfaced by stage M2.
func (m *Matcher) matchLLM(ctx context.Context, rawText string, candidates []LLMCandidate) *MatchResult {
	if m.llm == nil {
		return nil
	}
	if len(candidates) > maxLLMCandidates {
		candidates = candidates[:maxLLMCandidates]
	}

	decision, err := m.llm.Disambiguate(ctx, rawText, candidates)
	if err != nil || decision == nil {
		if err != nil {
			m.log.Warn("llm disambiguation failed", logging.Err(err))
		}
		return nil
	}

	var selected *LLMCandidate
	var alternatives []MatchAlternative
	for i := range candidates {
		if candidates[i].IMPACode == decision.IMPACode {
			selected = &candidates[i]
			continue
		}
		if len(alternatives) < maxAlternatives {
			alternatives = append(alternatives, MatchAlternative{
				IMPACode:   candidates[i].IMPACode,
				Name:       candidates[i].Name,
				Similarity: candidates[i].Similarity,
			})
		}
	}
	if selected == nil {
		return nil
	}

	confidence := decision.Confidence
	if confidence > llmConfidenceCap {
		confidence = llmConfidenceCap
	}
	if confidence < 0 {
		confidence = 0
	}

	code := selected.IMPACode
	return &MatchResult{
		IMPACode:     &code,
		Confidence:   confidence,
		Method:       MatchMethodLLM,
		Alternatives: alternatives,
	}
}

func alternativesFrom(rows []CatalogMatch, startIdx int) []MatchAlternative {
	var out []MatchAlternative
	for i := startIdx; i < len(rows) && len(out) < maxAlternatives; i++ {
		out = append(out, MatchAlternative{
			IMPACode:   rows[i].IMPACode,
			ProductID:  rows[i].ProductID,
			Name:       rows[i].Name,
			Similarity: rows[i].Similarity,
		})
	}
	return out
}

func toLLMCandidates(rows []CatalogMatch) []LLMCandidate {
	out := make([]LLMCandidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, LLMCandidate{IMPACode: r.IMPACode, Name: r.Name, Similarity: r.Similarity})
	}
	return out
}
