package situation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lifeflow/guidance/internal/clarify"
	"github.com/lifeflow/guidance/internal/classify"
	"github.com/lifeflow/guidance/internal/confidence"
	"github.com/lifeflow/guidance/internal/guidance"
	"github.com/lifeflow/guidance/internal/knowledge"
	"github.com/lifeflow/guidance/internal/llm"
	"github.com/lifeflow/guidance/internal/model"
	"github.com/lifeflow/guidance/internal/retrieve"
)

// mockProvider returns canned responses in order, repeating the last one.
// A non-nil gate blocks each call until the gate closes.
type mockProvider struct {
	responses []string
	errs      []error
	gate      chan struct{}

	mu    sync.Mutex
	calls int
}

func (m *mockProvider) Name() string                         { return "mock" }
func (m *mockProvider) IsAvailable(ctx context.Context) bool { return true }

func (m *mockProvider) GenerateJSON(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	i := m.calls
	m.calls++
	m.mu.Unlock()
	if m.gate != nil {
		<-m.gate
	}
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	if i < len(m.errs) && m.errs[i] != nil {
		return nil, m.errs[i]
	}
	return &llm.Response{Text: m.responses[i], Model: "mock"}, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
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

const classificationJSON = `{
	"primary_domain": "Insurance",
	"related_domains": ["Consumer Protection"],
	"confidence": 0.9,
	"user_friendly_summary": "Motor insurance claim dispute"
}`

const lowConfidenceClassificationJSON = `{
	"primary_domain": "Insurance",
	"related_domains": [],
	"confidence": 0.4,
	"user_friendly_summary": "Insurance question"
}`

const guidanceJSON = `{
	"suggestions": [
		{"title": "File a written complaint", "description": "Submit a complaint to the grievance cell.", "why_it_matters": "Starts the formal clock.", "urgency": "medium", "can_skip": false}
	],
	"confidence": 0.85,
	"caveats": []
}`

// sessionFixture wires a session over the in-memory store with separate mock
// providers per pipeline stage so tests can steer each independently.
type sessionFixture struct {
	session  *Session
	store    *MemoryStore
	classLLM *mockProvider
	clarLLM  *mockProvider
	guideLLM *mockProvider
}

func newFixture(t *testing.T) *sessionFixture {
	t.Helper()

	classLLM := &mockProvider{responses: []string{classificationJSON}}
	// The clarifier provider fails so the static catalog serves questions.
	clarLLM := &mockProvider{responses: []string{""}, errs: []error{errors.New("down")}}
	guideLLM := &mockProvider{responses: []string{guidanceJSON}}

	ix := knowledge.NewIndex()
	chunks := []model.Chunk{
		{ID: "a#0", DocumentID: "a", Title: "Claim procedure", Authority: "IRDAI", Domain: "Insurance", Text: "claim steps"},
		{ID: "b#0", DocumentID: "b", Title: "Grievance redressal", Authority: "IRDAI", Domain: "Insurance", Text: "grievance steps"},
		{ID: "c#0", DocumentID: "c", Title: "Ombudsman guide", Authority: "IRDAI", Domain: "Insurance", Text: "ombudsman steps"},
	}
	vectors := [][]float32{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}}
	if err := ix.Add(chunks, vectors); err != nil {
		t.Fatalf("index: %v", err)
	}

	store := NewMemoryStore()
	retriever := retrieve.New(fakeEmbedder{}, ix, model.RetrievalConfig{TopK: 6, MinSimilarity: 0.2})
	tri := confidence.New(model.ConfidenceConfig{LLMWeight: 0.4, RetrievalWeight: 0.35, HistoricalWeight: 0.25})
	engine := guidance.NewEngine(guideLLM, retriever, tri, store, time.Second)

	return &sessionFixture{
		session: NewSession(
			store,
			classify.NewClassifier(classLLM, time.Second),
			clarify.NewEngine(clarLLM, 0.85, 4, time.Second),
			engine,
		),
		store:    store,
		classLLM: classLLM,
		clarLLM:  clarLLM,
		guideLLM: guideLLM,
	}
}

func TestResolveSkipsClarificationWhenClear(t *testing.T) {
	fx := newFixture(t)

	// Both disambiguation dimensions are stated, and classification
	// confidence is above the skip threshold.
	res, err := fx.session.Resolve(context.Background(), "user-1",
		"I want to renew my motor insurance policy, no rush")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Questions) != 0 {
		t.Fatalf("expected no questions, got %d", len(res.Questions))
	}
	if res.Situation.State != model.StateReadyForGuidance {
		t.Errorf("state = %s, want READY_FOR_GUIDANCE", res.Situation.State)
	}
	stored, err := fx.store.Get(context.Background(), res.Situation.ID)
	if err != nil {
		t.Fatalf("situation not persisted: %v", err)
	}
	if stored.PrimaryDomain != "Insurance" {
		t.Errorf("stored domain = %q", stored.PrimaryDomain)
	}
}

func TestResolveAsksQuestionsOnLowConfidence(t *testing.T) {
	fx := newFixture(t)
	fx.classLLM.responses = []string{lowConfidenceClassificationJSON}

	res, err := fx.session.Resolve(context.Background(), "user-1", "something about my policy")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Questions) == 0 {
		t.Fatal("expected clarification questions")
	}
	if res.Situation.State != model.StateAwaitingClarification {
		t.Errorf("state = %s, want AWAITING_CLARIFICATION", res.Situation.State)
	}
}

func TestResolveSurfacesClassifierOutage(t *testing.T) {
	fx := newFixture(t)
	down := errors.New("connection refused")
	fx.classLLM.responses = []string{"", ""}
	fx.classLLM.errs = []error{down, down}

	_, err := fx.session.Resolve(context.Background(), "user-1",
		"my insurance claim was rejected by the insurer")
	if !errors.Is(err, model.ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}

	// The failed call must not leave a partial situation behind.
	list, err := fx.store.ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("found %d situations after a failed classification", len(list))
	}
}

func TestResolveSurfacesParseFailure(t *testing.T) {
	fx := newFixture(t)
	fx.classLLM.responses = []string{"not json", "still not json"}

	_, err := fx.session.Resolve(context.Background(), "user-1",
		"my insurance claim was rejected by the insurer")
	if !errors.Is(err, model.ErrClassificationParse) {
		t.Fatalf("error = %v, want ErrClassificationParse", err)
	}

	list, err := fx.store.ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("found %d situations after a failed classification", len(list))
	}
}

func TestResolveMissingUser(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.session.Resolve(context.Background(), "  ", "my insurance claim")
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if fx.classLLM.callCount() != 0 {
		t.Error("classifier called despite invalid input")
	}
}

func TestResolveEscalationSkipsClarification(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.session.Resolve(context.Background(), "user-1",
		"someone forged my property deed and is threatening me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Situation.Risk.RequiresEscalation() {
		t.Fatalf("setup: risk score %d does not escalate", res.Situation.Risk.RiskScore)
	}
	if len(res.Questions) != 0 {
		t.Error("escalated situation must not get clarification questions")
	}
	if res.Situation.Priority != model.PriorityUrgent {
		t.Errorf("priority = %s, want urgent", res.Situation.Priority)
	}

	// Guidance on an escalated situation short-circuits to the
	// recommendation.
	_, _, err = fx.session.Generate(context.Background(), res.Situation.ID)
	if !errors.Is(err, model.ErrRiskEscalation) {
		t.Fatalf("error = %v, want ErrRiskEscalation", err)
	}
	if !strings.Contains(err.Error(), res.Situation.Risk.Recommendation) {
		t.Errorf("escalation error %q does not carry the recommendation", err)
	}
}

func TestClarifyRecordsAnswers(t *testing.T) {
	fx := newFixture(t)
	fx.classLLM.responses = []string{lowConfidenceClassificationJSON}

	res, err := fx.session.Resolve(context.Background(), "user-1", "something about my policy")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	answers := []model.ClarificationAnswer{
		{QuestionID: res.Questions[0].ID, QuestionText: res.Questions[0].Text, Answer: "renewal"},
	}
	sit, err := fx.session.Clarify(context.Background(), res.Situation.ID, answers)
	if err != nil {
		t.Fatalf("clarify: %v", err)
	}
	if sit.State != model.StateReadyForGuidance {
		t.Errorf("state = %s, want READY_FOR_GUIDANCE", sit.State)
	}
	if len(sit.Answers) != 1 || sit.Answers[0].Answer != "renewal" {
		t.Errorf("answers = %+v", sit.Answers)
	}

	// Clarify again: overwrite, still ready, no error.
	answers[0].Answer = "new purchase"
	sit, err = fx.session.Clarify(context.Background(), res.Situation.ID, answers)
	if err != nil {
		t.Fatalf("repeat clarify: %v", err)
	}
	if len(sit.Answers) != 1 || sit.Answers[0].Answer != "new purchase" {
		t.Errorf("answers after overwrite = %+v", sit.Answers)
	}
}

func TestClarifyEmptyAnswersIsSkip(t *testing.T) {
	fx := newFixture(t)
	fx.classLLM.responses = []string{lowConfidenceClassificationJSON}

	res, err := fx.session.Resolve(context.Background(), "user-1", "something about my policy")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	sit, err := fx.session.Clarify(context.Background(), res.Situation.ID, nil)
	if err != nil {
		t.Fatalf("skip should be allowed: %v", err)
	}
	if sit.State != model.StateReadyForGuidance {
		t.Errorf("state = %s, want READY_FOR_GUIDANCE", sit.State)
	}
}

func TestClarifyRejectsBadAnswers(t *testing.T) {
	fx := newFixture(t)
	fx.classLLM.responses = []string{lowConfidenceClassificationJSON}

	res, err := fx.session.Resolve(context.Background(), "user-1", "something about my policy")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err = fx.session.Clarify(context.Background(), res.Situation.ID,
		[]model.ClarificationAnswer{{Answer: "no question id"}})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}

	_, err = fx.session.Clarify(context.Background(), "missing", nil)
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGenerateFullFlow(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.session.Resolve(context.Background(), "user-1",
		"I want to renew my motor insurance policy, no rush")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	sit, resp, err := fx.session.Generate(context.Background(), res.Situation.ID)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if sit.State != model.StateGuidanceGenerated {
		t.Errorf("state = %s, want GUIDANCE_GENERATED", sit.State)
	}
	if len(resp.Suggestions) == 0 {
		t.Fatal("no suggestions")
	}
	if len(sit.Guidance) != 1 {
		t.Fatalf("guidance rounds = %d, want 1", len(sit.Guidance))
	}

	// A second round is allowed from GUIDANCE_GENERATED.
	sit, _, err = fx.session.Generate(context.Background(), res.Situation.ID)
	if err != nil {
		t.Fatalf("second round: %v", err)
	}
	if len(sit.Guidance) != 2 {
		t.Errorf("guidance rounds = %d, want 2", len(sit.Guidance))
	}
}

func TestGenerateRejectsPendingClarification(t *testing.T) {
	fx := newFixture(t)
	fx.classLLM.responses = []string{lowConfidenceClassificationJSON}

	res, err := fx.session.Resolve(context.Background(), "user-1", "something about my policy")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, _, err = fx.session.Generate(context.Background(), res.Situation.ID)
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if fx.guideLLM.callCount() != 0 {
		t.Error("guidance model called while clarification pending")
	}
}

func TestGenerateDoesNotAdvanceOnFailure(t *testing.T) {
	fx := newFixture(t)
	bad := "not json"
	fx.guideLLM.responses = []string{bad, bad}

	res, err := fx.session.Resolve(context.Background(), "user-1",
		"I want to renew my motor insurance policy, no rush")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, _, err = fx.session.Generate(context.Background(), res.Situation.ID)
	if !errors.Is(err, model.ErrGenerationParse) {
		t.Fatalf("error = %v, want ErrGenerationParse", err)
	}

	stored, err := fx.store.Get(context.Background(), res.Situation.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.State != model.StateReadyForGuidance {
		t.Errorf("state advanced to %s on failure", stored.State)
	}
	if len(stored.Guidance) != 0 {
		t.Error("failed generation persisted guidance")
	}
}

func TestGenerateSingleFlight(t *testing.T) {
	fx := newFixture(t)
	gate := make(chan struct{})
	fx.guideLLM.gate = gate

	res, err := fx.session.Resolve(context.Background(), "user-1",
		"I want to renew my motor insurance policy, no rush")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	firstDone := make(chan error, 1)
	go func() {
		_, _, err := fx.session.Generate(context.Background(), res.Situation.ID)
		firstDone <- err
	}()

	// Wait until the first generation is inside the model call.
	deadline := time.After(2 * time.Second)
	for fx.guideLLM.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first generation never reached the model")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, _, err = fx.session.Generate(context.Background(), res.Situation.ID)
	if !errors.Is(err, model.ErrGenerationInProgress) {
		t.Fatalf("concurrent error = %v, want ErrGenerationInProgress", err)
	}

	close(gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first generation failed: %v", err)
	}

	// The lock is released after completion.
	if _, _, err := fx.session.Generate(context.Background(), res.Situation.ID); err != nil {
		t.Fatalf("generation after release failed: %v", err)
	}
}

func TestFeedbackRequiresGuidance(t *testing.T) {
	fx := newFixture(t)

	res, err := fx.session.Resolve(context.Background(), "user-1",
		"I want to renew my motor insurance policy, no rush")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err = fx.session.Feedback(context.Background(), res.Situation.ID, "user-1", true, "")
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation before guidance", err)
	}

	if _, _, err := fx.session.Generate(context.Background(), res.Situation.ID); err != nil {
		t.Fatalf("generate: %v", err)
	}

	fb, err := fx.session.Feedback(context.Background(), res.Situation.ID, "user-1", true, "spot on")
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if fb.Domain != "Insurance" {
		t.Errorf("feedback domain = %q, want the situation's domain", fb.Domain)
	}

	// The helpful rating feeds the historical accuracy signal once enough
	// samples accumulate.
	if _, err := fx.store.DomainAccuracy(context.Background(), "Insurance"); err != nil {
		t.Fatalf("domain accuracy: %v", err)
	}
}

func TestListByUser(t *testing.T) {
	fx := newFixture(t)

	for i := 0; i < 2; i++ {
		if _, err := fx.session.Resolve(context.Background(), "user-1",
			"I want to renew my motor insurance policy, no rush"); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}

	list, err := fx.session.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d situations, want 2", len(list))
	}

	if _, err := fx.session.List(context.Background(), ""); !errors.Is(err, model.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}
