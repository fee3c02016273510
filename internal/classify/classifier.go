// Package classify maps free-text user input onto the closed domain
// taxonomy, with a confidence value and a deterministic risk assessment.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lifeflow/guidance/internal/domain"
	"github.com/lifeflow/guidance/internal/llm"
	"github.com/lifeflow/guidance/internal/model"
)

// lowConfidenceDefault replaces out-of-range or missing model confidence.
const lowConfidenceDefault = 0.3

// retryDelay is the pause before the single upstream retry.
const retryDelay = 500 * time.Millisecond

// sleepFunc is injectable for tests.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Classifier resolves user queries to domains via an LLM call constrained to
// the taxonomy in the domain package.
type Classifier struct {
	provider llm.Provider
	risk     *RiskAssessor
	timeout  time.Duration
}

// NewClassifier creates a new classifier. A zero timeout defaults to 30s.
func NewClassifier(provider llm.Provider, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Classifier{
		provider: provider,
		risk:     NewRiskAssessor(),
		timeout:  timeout,
	}
}

// rawClassification mirrors the JSON schema requested from the model.
// Confidence is raw so a non-numeric value degrades to the low-confidence
// default instead of failing the whole parse.
type rawClassification struct {
	PrimaryDomain       string          `json:"primary_domain"`
	SecondaryDomain     string          `json:"secondary_domain"`
	RelatedDomains      []string        `json:"related_domains"`
	Confidence          json.RawMessage `json:"confidence"`
	UserFriendlySummary string          `json:"user_friendly_summary"`
	SuggestedKeywords   []string        `json:"suggested_keywords"`
	Reasoning           string          `json:"reasoning"`
}

// Classify maps user text to a ClassificationResult. Whitespace-only input
// is a validation error, not a classification failure. Upstream failures are
// retried once; malformed output is re-prompted once with a stricter prompt.
func (c *Classifier) Classify(ctx context.Context, userText string) (*model.ClassificationResult, error) {
	text := strings.TrimSpace(userText)
	if text == "" {
		return nil, fmt.Errorf("%w: empty query", model.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.callWithRetry(ctx, llm.Request{
		System:      classifySystemPrompt,
		Prompt:      buildClassifyPrompt(text),
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}

	raw, parseErr := parseClassification(resp.Text)
	if parseErr != nil {
		// One repair attempt with a stricter re-prompt before surfacing.
		repairResp, err := c.callWithRetry(ctx, llm.Request{
			System:      classifySystemPrompt,
			Prompt:      buildRepairPrompt(text, resp.Text),
			Temperature: 0,
		})
		if err != nil {
			return nil, err
		}
		raw, parseErr = parseClassification(repairResp.Text)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrClassificationParse, parseErr)
		}
	}

	return c.resolve(text, raw), nil
}

// callWithRetry performs one generation call with a single bounded retry on
// transport failure.
func (c *Classifier) callWithRetry(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := c.provider.GenerateJSON(ctx, req)
	if err == nil {
		return resp, nil
	}

	if sErr := sleepFunc(ctx, retryDelay); sErr != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}

	resp, retryErr := c.provider.GenerateJSON(ctx, req)
	if retryErr != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, retryErr)
	}
	return resp, nil
}

func parseClassification(text string) (*rawClassification, error) {
	doc, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var raw rawClassification
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	if raw.PrimaryDomain == "" {
		return nil, fmt.Errorf("missing primary_domain")
	}
	return &raw, nil
}

// resolve validates the raw model output against the taxonomy and attaches
// the risk assessment.
func (c *Classifier) resolve(query string, raw *rawClassification) *model.ClassificationResult {
	primary := domain.Normalize(raw.PrimaryDomain)

	related := make([]string, 0, len(raw.RelatedDomains))
	seen := map[string]bool{string(primary): true}
	for _, r := range raw.RelatedDomains {
		d := domain.Domain(r)
		if domain.Valid(d) && d != domain.General && !seen[string(d)] {
			seen[string(d)] = true
			related = append(related, string(d))
		}
	}

	summary := raw.UserFriendlySummary
	if summary == "" {
		summary = fmt.Sprintf("This appears to be related to %s", primary)
	}

	return &model.ClassificationResult{
		PrimaryDomain:       string(primary),
		SecondaryDomain:     raw.SecondaryDomain,
		RelatedDomains:      related,
		Confidence:          clipConfidence(raw.Confidence),
		UserFriendlySummary: summary,
		SuggestedKeywords:   raw.SuggestedKeywords,
		Reasoning:           raw.Reasoning,
		Risk:                c.risk.Assess(query, primary),
	}
}

// clipConfidence converts the raw confidence to a float in [0,1]. Missing,
// non-numeric, or out-of-range values all degrade to the low-confidence
// default rather than propagating an invalid number.
func clipConfidence(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return lowConfidenceDefault
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return lowConfidenceDefault
	}
	if v < 0 || v > 1 {
		return lowConfidenceDefault
	}
	return v
}

// FallbackClassify is a keyword-only classification used where no model is
// configured, such as domain tagging at ingest time. Guidance flow never
// falls back to it silently. Confidence is capped at 0.7.
func FallbackClassify(userText string) *model.ClassificationResult {
	lower := strings.ToLower(userText)

	best := domain.General
	bestScore := 0
	for _, d := range domain.All() {
		info, _ := domain.Lookup(d)
		score := 0
		for _, kw := range info.Keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = d
			bestScore = score
		}
	}

	confidence := float64(bestScore) / 3.0
	if confidence > 0.7 {
		confidence = 0.7
	}
	if confidence < lowConfidenceDefault {
		confidence = lowConfidenceDefault
	}

	return &model.ClassificationResult{
		PrimaryDomain:       string(best),
		Confidence:          confidence,
		UserFriendlySummary: fmt.Sprintf("This appears to be related to %s", best),
		Reasoning:           "keyword-based fallback classification",
		Risk:                NewRiskAssessor().Assess(userText, best),
	}
}
