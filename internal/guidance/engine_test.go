package guidance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lifeflow/guidance/internal/confidence"
	"github.com/lifeflow/guidance/internal/knowledge"
	"github.com/lifeflow/guidance/internal/llm"
	"github.com/lifeflow/guidance/internal/model"
	"github.com/lifeflow/guidance/internal/retrieve"
)

type mockProvider struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (m *mockProvider) Name() string                         { return "mock" }
func (m *mockProvider) IsAvailable(ctx context.Context) bool { return true }

func (m *mockProvider) GenerateJSON(ctx context.Context, req llm.Request) (*llm.Response, error) {
	i := m.calls
	m.calls++
	m.prompts = append(m.prompts, req.Prompt)
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	return &llm.Response{Text: m.responses[i], Model: "mock"}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Name() string { return "fake" }

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fixedHistory struct{ score float64 }

func (h fixedHistory) DomainAccuracy(context.Context, string) (float64, error) {
	return h.score, nil
}

// newTestEngine builds an engine over an index holding five insurance
// documents, so retrieval quality lands high enough to avoid the cap.
func newTestEngine(t *testing.T, provider llm.Provider, history confidence.HistoryProvider) *Engine {
	t.Helper()

	ix := knowledge.NewIndex()
	chunks := make([]model.Chunk, 5)
	vectors := make([][]float32, 5)
	for i := range chunks {
		id := string(rune('a' + i))
		chunks[i] = model.Chunk{
			ID: id, DocumentID: "doc-" + id, Title: "Document " + id,
			Authority: "IRDAI", Domain: "Insurance", Text: "procedure text " + id,
		}
		vectors[i] = []float32{1, 0, 0}
	}
	// A duplicate chunk from an existing document, to exercise source dedupe.
	chunks = append(chunks, model.Chunk{
		ID: "a2", DocumentID: "doc-a", Title: "Document a",
		Authority: "IRDAI", Domain: "Insurance", Text: "more from document a",
	})
	vectors = append(vectors, []float32{1, 0, 0})
	if err := ix.Add(chunks, vectors); err != nil {
		t.Fatalf("index: %v", err)
	}

	retriever := retrieve.New(fakeEmbedder{}, ix, model.RetrievalConfig{TopK: 6, MinSimilarity: 0.2})
	tri := confidence.New(model.ConfidenceConfig{LLMWeight: 0.4, RetrievalWeight: 0.35, HistoricalWeight: 0.25})
	return NewEngine(provider, retriever, tri, history, time.Second)
}

func testSituation() *model.Situation {
	return &model.Situation{
		ID:             "s1",
		Description:    "my motor insurance claim was rejected",
		PrimaryDomain:  "Insurance",
		RelatedDomains: []string{"Consumer Protection"},
		State:          model.StateReadyForGuidance,
		Answers: []model.ClarificationAnswer{
			{QuestionID: "insurance.request_nature", QuestionText: "New claim or dispute?", Answer: "Dispute"},
		},
	}
}

const guidanceJSON = `{
	"suggestions": [
		{"title": "File a written complaint", "description": "Submit a complaint to the grievance cell.", "why_it_matters": "Starts the formal clock.", "urgency": "medium", "can_skip": false},
		{"title": "Escalate to the ombudsman", "description": "You must approach the insurance ombudsman.", "why_it_matters": "Independent review.", "urgency": "high", "can_skip": false},
		{"title": "Keep copies", "description": "Retain the rejection letter.", "why_it_matters": "Needed later.", "urgency": "low", "can_skip": true}
	],
	"confidence": 0.9,
	"caveats": []
}`

func TestGenerateHappyPath(t *testing.T) {
	provider := &mockProvider{responses: []string{guidanceJSON}}
	e := newTestEngine(t, provider, fixedHistory{0.8})

	resp, err := e.Generate(context.Background(), testSituation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Urgency ordering: high before medium before low.
	if len(resp.Suggestions) != 3 {
		t.Fatalf("got %d suggestions", len(resp.Suggestions))
	}
	if resp.Suggestions[0].Urgency != model.UrgencyHigh || resp.Suggestions[2].Urgency != model.UrgencyLow {
		t.Errorf("suggestions not ordered by urgency: %v, %v, %v",
			resp.Suggestions[0].Urgency, resp.Suggestions[1].Urgency, resp.Suggestions[2].Urgency)
	}

	// Advisory phrasing rewritten.
	for _, s := range resp.Suggestions {
		if strings.Contains(strings.ToLower(s.Description), "you must") {
			t.Errorf("advisory phrasing survived: %q", s.Description)
		}
	}

	// Sources deduplicated by document.
	seen := map[string]bool{}
	for _, src := range resp.Sources {
		if seen[src.DocumentID] {
			t.Errorf("duplicate source %q", src.DocumentID)
		}
		seen[src.DocumentID] = true
	}
	if len(resp.Sources) != 5 {
		t.Errorf("got %d sources, want 5 distinct documents", len(resp.Sources))
	}

	// Clarification answers joined into the prompt, labeled.
	if !strings.Contains(provider.prompts[0], "Clarification (New claim or dispute?): Dispute") {
		t.Error("clarification answer missing from prompt")
	}

	// Every response carries the disclaimer caveat.
	if len(resp.Caveats) == 0 {
		t.Fatal("expected at least the disclaimer caveat")
	}

	// One insight per related domain from the classification.
	if len(resp.CrossDomainInsights) != 1 {
		t.Fatalf("got %d insights, want one per related domain", len(resp.CrossDomainInsights))
	}
	if !strings.Contains(resp.CrossDomainInsights[0], "Consumer Protection") {
		t.Errorf("insight %q does not mention the related domain", resp.CrossDomainInsights[0])
	}

	if resp.Confidence.Score <= 0 || resp.Confidence.Score > 1 {
		t.Errorf("confidence score = %v", resp.Confidence.Score)
	}
}

func TestGenerateLowConfidenceStrategy(t *testing.T) {
	provider := &mockProvider{responses: []string{guidanceJSON}}
	// Neutral history and a weak model self-report drive the blended score
	// under 0.5 via the clip of an out-of-range confidence.
	lowJSON := strings.Replace(guidanceJSON, `"confidence": 0.9`, `"confidence": -3`, 1)
	provider.responses = []string{lowJSON}
	e := newTestEngine(t, provider, fixedHistory{0.0})

	resp, err := e.Generate(context.Background(), testSituation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Confidence.Score >= strongCaveatThreshold {
		t.Fatalf("setup: score = %v, want below %v", resp.Confidence.Score, strongCaveatThreshold)
	}

	// High urgency is downgraded when confidence is low.
	for _, s := range resp.Suggestions {
		if s.Urgency == model.UrgencyHigh {
			t.Errorf("high urgency survived low confidence: %q", s.Title)
		}
	}

	// A professional-help suggestion is appended.
	foundHelp := false
	for _, s := range resp.Suggestions {
		if strings.Contains(s.Title, "professional") {
			foundHelp = true
		}
	}
	if !foundHelp {
		t.Error("expected professional-help suggestion")
	}

	// A strong caveat is present.
	foundCaveat := false
	for _, c := range resp.Caveats {
		if strings.Contains(c, "Confidence in this guidance is low") {
			foundCaveat = true
		}
	}
	if !foundCaveat {
		t.Errorf("expected strong caveat, got %v", resp.Caveats)
	}
}

func TestGenerateInsufficientKnowledge(t *testing.T) {
	provider := &mockProvider{responses: []string{guidanceJSON}}

	ix := knowledge.NewIndex() // empty
	retriever := retrieve.New(fakeEmbedder{}, ix, model.RetrievalConfig{TopK: 6, MinSimilarity: 0.2})
	tri := confidence.New(model.ConfidenceConfig{LLMWeight: 0.4, RetrievalWeight: 0.35, HistoricalWeight: 0.25})
	e := NewEngine(provider, retriever, tri, nil, time.Second)

	_, err := e.Generate(context.Background(), testSituation())
	if !errors.Is(err, model.ErrInsufficientKnowledge) {
		t.Fatalf("error = %v, want ErrInsufficientKnowledge", err)
	}
	if provider.calls != 0 {
		t.Error("generation must not call the model without knowledge")
	}
}

func TestGenerateRepairRePrompt(t *testing.T) {
	provider := &mockProvider{responses: []string{"Sure! Here are some steps.", guidanceJSON}}
	e := newTestEngine(t, provider, fixedHistory{0.5})

	resp, err := e.Generate(context.Background(), testSituation())
	if err != nil {
		t.Fatalf("expected repair to recover, got %v", err)
	}
	if len(resp.Suggestions) == 0 {
		t.Fatal("no suggestions after repair")
	}
	if provider.calls != 2 {
		t.Errorf("provider called %d times, want 2", provider.calls)
	}
}

func TestGenerateRepairExhausted(t *testing.T) {
	provider := &mockProvider{responses: []string{"not json", "still not json"}}
	e := newTestEngine(t, provider, fixedHistory{0.5})

	_, err := e.Generate(context.Background(), testSituation())
	if !errors.Is(err, model.ErrGenerationParse) {
		t.Fatalf("error = %v, want ErrGenerationParse", err)
	}
}

func TestGenerateUpstreamRetry(t *testing.T) {
	orig := sleepFunc
	sleepFunc = func(ctx context.Context, d time.Duration) error { return nil }
	defer func() { sleepFunc = orig }()

	provider := &mockProvider{
		responses: []string{"", guidanceJSON},
		errs:      []error{errors.New("connection reset"), nil},
	}
	e := newTestEngine(t, provider, fixedHistory{0.5})

	if _, err := e.Generate(context.Background(), testSituation()); err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("provider called %d times, want 2", provider.calls)
	}
}

func TestGenerateInsightPerRelatedDomain(t *testing.T) {
	provider := &mockProvider{responses: []string{guidanceJSON}}
	e := newTestEngine(t, provider, fixedHistory{0.8})

	// Taxation is a graph neighbour of Insurance; Identity Documents is not.
	sit := testSituation()
	sit.RelatedDomains = []string{"Taxation", "Identity Documents"}

	resp, err := e.Generate(context.Background(), sit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.CrossDomainInsights) != 2 {
		t.Fatalf("got %d insights, want one per related domain: %v",
			len(resp.CrossDomainInsights), resp.CrossDomainInsights)
	}
	for i, want := range []string{"Taxation", "Identity Documents"} {
		if !strings.Contains(resp.CrossDomainInsights[i], want) {
			t.Errorf("insight %d = %q, does not mention %s", i, resp.CrossDomainInsights[i], want)
		}
	}

	// No related domains means no synthesized insights.
	sit = testSituation()
	sit.RelatedDomains = nil
	resp, err = e.Generate(context.Background(), sit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.CrossDomainInsights) != 0 {
		t.Errorf("got insights %v for an empty related set", resp.CrossDomainInsights)
	}
}

func TestGenerateSkippedClarificationCaveat(t *testing.T) {
	provider := &mockProvider{responses: []string{guidanceJSON}}
	e := newTestEngine(t, provider, fixedHistory{0.8})

	sit := testSituation()
	sit.Answers = nil

	resp, err := e.Generate(context.Background(), sit)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, c := range resp.Caveats {
		if strings.Contains(c, "Clarification was skipped") {
			found = true
		}
	}
	if !found {
		t.Errorf("no reduced-specificity caveat for an empty answer set: %v", resp.Caveats)
	}

	// With answers recorded, the caveat is absent.
	resp, err = e.Generate(context.Background(), testSituation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range resp.Caveats {
		if strings.Contains(c, "Clarification was skipped") {
			t.Errorf("skip caveat present despite recorded answers: %v", resp.Caveats)
		}
	}
}

func TestGenerateEmptySuggestionsIsParseError(t *testing.T) {
	empty := `{"suggestions": [], "confidence": 0.9, "caveats": []}`
	provider := &mockProvider{responses: []string{empty, empty}}
	e := newTestEngine(t, provider, fixedHistory{0.5})

	_, err := e.Generate(context.Background(), testSituation())
	if !errors.Is(err, model.ErrGenerationParse) {
		t.Fatalf("error = %v, want ErrGenerationParse", err)
	}
}
