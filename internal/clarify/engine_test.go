package clarify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lifeflow/guidance/internal/llm"
	"github.com/lifeflow/guidance/internal/model"
)

type mockProvider struct {
	response string
	err      error
	calls    int
}

func (m *mockProvider) Name() string                                 { return "mock" }
func (m *mockProvider) IsAvailable(ctx context.Context) bool         { return true }
func (m *mockProvider) GenerateJSON(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{Text: m.response, Model: "mock"}, nil
}

func newTestEngine(p llm.Provider) *Engine {
	return NewEngine(p, 0.85, 4, time.Second)
}

func sit(desc string) *model.Situation {
	return &model.Situation{ID: "s1", Description: desc}
}

func cls(confidence float64) *model.ClassificationResult {
	return &model.ClassificationResult{PrimaryDomain: "Insurance", Confidence: confidence}
}

const questionsJSON = `{
	"questions": [
		{"id": "request_nature", "text": "Is this a new claim or a dispute?", "type": "choice", "options": ["New", "Dispute"]},
		{"id": "request_nature", "text": "Duplicate ambiguity class?", "type": "choice", "options": ["A", "B"]},
		{"id": "time_pressure", "text": "Is there a deadline?", "type": "text"},
		{"id": "", "text": "   ", "type": "text"}
	]
}`

func TestSkipWhenConfidentAndResolvable(t *testing.T) {
	provider := &mockProvider{response: questionsJSON}
	e := newTestEngine(provider)

	// Both dimensions present in the text: nature ("renew") and urgency
	// ("no rush").
	questions, err := e.NeedsClarification(context.Background(),
		sit("I want to renew my policy, no rush at all"), cls(0.9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if questions != nil {
		t.Errorf("expected skip, got %d questions", len(questions))
	}
	if provider.calls != 0 {
		t.Error("skip should not call the model")
	}
}

func TestNoSkipWhenDimensionsUnresolved(t *testing.T) {
	provider := &mockProvider{response: questionsJSON}
	e := newTestEngine(provider)

	// High confidence but the text states neither dimension.
	questions, err := e.NeedsClarification(context.Background(),
		sit("problem with my policy"), cls(0.9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(questions) == 0 {
		t.Fatal("expected questions despite high confidence")
	}
}

func TestQuestionBudgetScalesWithAmbiguity(t *testing.T) {
	tests := []struct {
		confidence float64
		want       int
	}{
		{0.2, 4},
		{0.5, 3},
		{0.7, 2},
	}

	for _, tt := range tests {
		if got := questionBudget(tt.confidence, 4); got != tt.want {
			t.Errorf("questionBudget(%v) = %d, want %d", tt.confidence, got, tt.want)
		}
	}

	// Configured max wins.
	if got := questionBudget(0.2, 2); got != 2 {
		t.Errorf("questionBudget capped = %d, want 2", got)
	}
}

func TestGenerateDedupesAndDropsBlank(t *testing.T) {
	e := newTestEngine(&mockProvider{response: questionsJSON})

	questions, err := e.NeedsClarification(context.Background(),
		sit("problem with my policy"), cls(0.65))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Budget at 0.65 is 2; duplicate class and blank question are dropped.
	if len(questions) != 2 {
		t.Fatalf("got %d questions, want 2", len(questions))
	}
	if questions[0].ID != "insurance.request_nature" {
		t.Errorf("id = %q", questions[0].ID)
	}
	if questions[0].Type != model.QuestionChoice {
		t.Errorf("type = %q, want choice", questions[0].Type)
	}
	if questions[1].ID != "insurance.time_pressure" {
		t.Errorf("id = %q", questions[1].ID)
	}
	if questions[1].Type != model.QuestionFreeText {
		t.Errorf("type = %q, want free text", questions[1].Type)
	}
}

func TestFallbackCatalogOnProviderError(t *testing.T) {
	e := newTestEngine(&mockProvider{err: errors.New("model down")})

	questions, err := e.NeedsClarification(context.Background(),
		sit("problem with my policy"), cls(0.3))
	if err != nil {
		t.Fatalf("fallback should not error: %v", err)
	}
	if len(questions) != 4 {
		t.Fatalf("got %d fallback questions, want 4", len(questions))
	}
	if questions[0].ID != "insurance.request_nature" {
		t.Errorf("first fallback id = %q", questions[0].ID)
	}
}

func TestStableID(t *testing.T) {
	tests := []struct {
		domain string
		class  string
		want   string
	}{
		{"Insurance", "Request Nature", "insurance.request_nature"},
		{"Family & Legal", "time-pressure", "family_legal.time_pressure"},
		{"Insurance", "", "insurance.generic_context"},
	}

	for _, tt := range tests {
		if got := StableID(tt.domain, tt.class); got != tt.want {
			t.Errorf("StableID(%q, %q) = %q, want %q", tt.domain, tt.class, got, tt.want)
		}
	}

	// Determinism across calls.
	if StableID("Insurance", "nature") != StableID("Insurance", "nature") {
		t.Error("StableID is not deterministic")
	}
}

func TestUpsertAnswers(t *testing.T) {
	existing := []model.ClarificationAnswer{
		{QuestionID: "insurance.request_nature", Answer: "New"},
		{QuestionID: "insurance.time_pressure", Answer: "Routine"},
	}
	incoming := []model.ClarificationAnswer{
		{QuestionID: "insurance.time_pressure", Answer: "Urgent, there is a deadline"},
		{QuestionID: "insurance.current_status", Answer: "Applied, waiting"},
	}

	out := UpsertAnswers(existing, incoming)
	if len(out) != 3 {
		t.Fatalf("got %d answers, want 3", len(out))
	}
	// Overwritten in place, order preserved.
	if out[1].QuestionID != "insurance.time_pressure" || out[1].Answer != "Urgent, there is a deadline" {
		t.Errorf("overwrite failed: %+v", out[1])
	}
	if out[2].QuestionID != "insurance.current_status" {
		t.Errorf("append failed: %+v", out[2])
	}

	// Input slice untouched.
	if existing[1].Answer != "Routine" {
		t.Error("existing slice mutated")
	}
}
