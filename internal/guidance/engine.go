// Package guidance generates grounded suggestions for a classified,
// clarified situation: retrieval, generation, confidence triangulation, and
// safety filtering in one pass.
package guidance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lifeflow/guidance/internal/confidence"
	"github.com/lifeflow/guidance/internal/domain"
	"github.com/lifeflow/guidance/internal/llm"
	"github.com/lifeflow/guidance/internal/model"
	"github.com/lifeflow/guidance/internal/retrieve"
	"github.com/lifeflow/guidance/internal/safety"
)

const (
	// lowConfidenceDefault replaces out-of-range model self-confidence.
	lowConfidenceDefault = 0.3

	retryDelay     = 500 * time.Millisecond
	maxSuggestions = 5

	strongCaveatThreshold   = 0.5
	moderateCaveatThreshold = 0.7
)

// sleepFunc is injectable for tests.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Engine produces guidance responses. It fails fast when the knowledge base
// cannot support the situation rather than letting the model improvise.
type Engine struct {
	provider     llm.Provider
	retriever    *retrieve.Retriever
	triangulator *confidence.Triangulator
	history      confidence.HistoryProvider
	filter       *safety.Filter
	timeout      time.Duration
}

// NewEngine wires a guidance engine. A zero timeout defaults to 60s; a nil
// history provider reports the neutral 0.5.
func NewEngine(provider llm.Provider, retriever *retrieve.Retriever, tri *confidence.Triangulator, history confidence.HistoryProvider, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if history == nil {
		history = confidence.NeutralHistory{}
	}
	return &Engine{
		provider:     provider,
		retriever:    retriever,
		triangulator: tri,
		history:      history,
		filter:       safety.NewFilter(),
		timeout:      timeout,
	}
}

// rawGuidance mirrors the JSON schema requested from the model. Confidence
// is raw so a non-numeric value degrades instead of failing the parse.
type rawGuidance struct {
	Suggestions []model.Suggestion `json:"suggestions"`
	Confidence  json.RawMessage    `json:"confidence"`
	Caveats     []string           `json:"caveats"`
}

// Generate produces a guidance response for the situation. Retrieval that
// finds nothing usable returns model.ErrInsufficientKnowledge; upstream
// failures are retried once; malformed output is re-prompted once.
func (e *Engine) Generate(ctx context.Context, situation *model.Situation) (*model.GuidanceResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	query := buildQuery(situation)

	retrieved, err := e.retriever.Retrieve(ctx, query, situation.PrimaryDomain)
	if err != nil {
		return nil, err
	}

	resp, err := e.callWithRetry(ctx, llm.Request{
		System:      generateSystemPrompt,
		Prompt:      buildGuidancePrompt(query, situation.PrimaryDomain, retrieved.Chunks),
		Temperature: 0.4,
	})
	if err != nil {
		return nil, err
	}

	raw, parseErr := parseGuidance(resp.Text)
	if parseErr != nil {
		repairResp, err := e.callWithRetry(ctx, llm.Request{
			System:      generateSystemPrompt,
			Prompt:      buildGuidanceRepairPrompt(query, resp.Text),
			Temperature: 0,
		})
		if err != nil {
			return nil, err
		}
		raw, parseErr = parseGuidance(repairResp.Text)
		if parseErr != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrGenerationParse, parseErr)
		}
	}

	historical, err := e.history.DomainAccuracy(ctx, situation.PrimaryDomain)
	if err != nil {
		historical = 0.5
	}
	conf := e.triangulator.Triangulate(clipConfidence(raw.Confidence), retrieved.Quality, historical)

	return e.assemble(situation, raw, retrieved, conf), nil
}

// callWithRetry performs one generation call with a single bounded retry on
// transport failure.
func (e *Engine) callWithRetry(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := e.provider.GenerateJSON(ctx, req)
	if err == nil {
		return resp, nil
	}

	if sErr := sleepFunc(ctx, retryDelay); sErr != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}

	resp, retryErr := e.provider.GenerateJSON(ctx, req)
	if retryErr != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, retryErr)
	}
	return resp, nil
}

func parseGuidance(text string) (*rawGuidance, error) {
	doc, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var raw rawGuidance
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, fmt.Errorf("decode guidance: %w", err)
	}
	if len(raw.Suggestions) == 0 {
		return nil, fmt.Errorf("no suggestions in response")
	}
	return &raw, nil
}

// assemble turns raw model output into the final response: safety rewrite,
// urgency ordering, source attribution, confidence-driven caveats, and
// cross-domain insights.
func (e *Engine) assemble(situation *model.Situation, raw *rawGuidance, retrieved *retrieve.Result, conf model.Confidence) *model.GuidanceResponse {
	suggestions := raw.Suggestions
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	suggestions, _ = e.filter.FilterSuggestions(suggestions)

	caveats := append([]string(nil), raw.Caveats...)
	d := domain.Normalize(situation.PrimaryDomain)

	switch {
	case conf.Score < strongCaveatThreshold:
		caveats = append(caveats,
			"Confidence in this guidance is low. Treat it as a starting point and verify each step with the issuing authority or a qualified professional.")
		suggestions = downgradeHighUrgency(suggestions)
		suggestions = append(suggestions, professionalHelpSuggestion(d))
	case conf.Score < moderateCaveatThreshold:
		caveats = append(caveats,
			"Some details of your situation were not fully covered by official sources. Double-check the specifics before acting.")
	}

	if retrieved.DomainFallback {
		caveats = append(caveats, fmt.Sprintf(
			"No documents specific to %s matched your situation; these steps draw on general sources.", d))
	}
	if len(situation.Answers) == 0 {
		caveats = append(caveats,
			"Clarification was skipped, so these steps are general rather than tailored to your specifics.")
	}
	caveats = append(caveats, safety.Disclaimer(d))

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Urgency.Rank() < suggestions[j].Urgency.Rank()
	})

	return &model.GuidanceResponse{
		Suggestions:         suggestions,
		Sources:             dedupeSources(retrieved.Chunks),
		Confidence:          conf,
		Caveats:             caveats,
		CrossDomainInsights: crossDomainInsights(d, situation.RelatedDomains),
	}
}

// buildQuery folds clarification answers into the retrieval and generation
// query, labeled so the model can tell question answers from the narrative.
func buildQuery(situation *model.Situation) string {
	var sb strings.Builder
	sb.WriteString(situation.Description)
	for _, ans := range situation.Answers {
		if strings.TrimSpace(ans.Answer) == "" {
			continue
		}
		fmt.Fprintf(&sb, "\nClarification (%s): %s", ans.QuestionText, ans.Answer)
	}
	return sb.String()
}

func downgradeHighUrgency(suggestions []model.Suggestion) []model.Suggestion {
	for i := range suggestions {
		if suggestions[i].Urgency == model.UrgencyHigh {
			suggestions[i].Urgency = model.UrgencyMedium
		}
	}
	return suggestions
}

func professionalHelpSuggestion(d domain.Domain) model.Suggestion {
	return model.Suggestion{
		Title:        "Consider consulting a professional",
		Description:  fmt.Sprintf("The available official sources do not fully cover your situation. A professional experienced in %s matters can confirm the right course of action.", d),
		WhyItMatters: "Acting on incomplete guidance in this area can be costly to undo.",
		Urgency:      model.UrgencyMedium,
		CanSkip:      true,
	}
}

func dedupeSources(chunks []model.RetrievedChunk) []model.Source {
	seen := make(map[string]bool, len(chunks))
	var out []model.Source
	for _, ch := range chunks {
		if seen[ch.DocumentID] {
			continue
		}
		seen[ch.DocumentID] = true
		out = append(out, model.Source{
			Title:      ch.Title,
			Authority:  ch.Authority,
			DocumentID: ch.DocumentID,
		})
	}
	return out
}

// crossDomainInsights synthesizes one insight for every related domain the
// classification produced. Graph neighbours get the relationship description;
// related domains outside the graph get a generic interaction note.
func crossDomainInsights(d domain.Domain, related []string) []string {
	var out []string
	seen := map[domain.Domain]bool{d: true}
	for _, raw := range related {
		r := domain.Normalize(raw)
		if seen[r] {
			continue
		}
		seen[r] = true
		if info, ok := domain.Lookup(r); ok && domain.Connected(d, r) {
			out = append(out, fmt.Sprintf("%s matters often touch %s (%s). Keep related paperwork handy.",
				d, r, strings.ToLower(info.Description)))
			continue
		}
		out = append(out, fmt.Sprintf("Your situation may also involve %s procedures alongside %s. Check whether a separate step is needed there.",
			r, d))
	}
	return out
}

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
