// Package clarify decides whether a classified situation carries enough
// information to generate guidance, and produces follow-up questions when it
// does not.
package clarify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lifeflow/guidance/internal/llm"
	"github.com/lifeflow/guidance/internal/model"
)

// Engine generates clarification questions. The decision policy is
// deterministic; only question wording comes from the model.
type Engine struct {
	provider      llm.Provider
	skipThreshold float64
	maxQuestions  int
	timeout       time.Duration
}

// NewEngine creates a clarification engine. skipThreshold defaults to 0.85,
// maxQuestions to 4, timeout to 30s.
func NewEngine(provider llm.Provider, skipThreshold float64, maxQuestions int, timeout time.Duration) *Engine {
	if skipThreshold <= 0 {
		skipThreshold = 0.85
	}
	if maxQuestions <= 0 || maxQuestions > 4 {
		maxQuestions = 4
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{
		provider:      provider,
		skipThreshold: skipThreshold,
		maxQuestions:  maxQuestions,
		timeout:       timeout,
	}
}

// NeedsClarification returns the questions to ask before guidance, or nil
// when the classification is confident enough and the standard
// disambiguation dimensions are already resolvable from the free text.
func (e *Engine) NeedsClarification(ctx context.Context, situation *model.Situation, cls *model.ClassificationResult) ([]model.ClarificationQuestion, error) {
	if cls.Confidence >= e.skipThreshold && dimensionsResolvable(situation.Description) {
		return nil, nil
	}

	count := questionBudget(cls.Confidence, e.maxQuestions)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	questions, err := e.generate(ctx, situation.Description, cls.PrimaryDomain, count)
	if err != nil {
		// Question generation is best-effort: fall back to the standard
		// catalog rather than blocking the flow.
		return fallbackQuestions(cls.PrimaryDomain, count), nil
	}
	return questions, nil
}

// questionBudget scales the number of questions with ambiguity: vaguer
// classifications earn more questions, capped at max.
func questionBudget(confidence float64, max int) int {
	var n int
	switch {
	case confidence < 0.4:
		n = 4
	case confidence < 0.6:
		n = 3
	default:
		n = 2
	}
	if n > max {
		n = max
	}
	return n
}

// newVsCorrectionMarkers and urgencyDimensionMarkers are the standard
// disambiguation dimensions: a query that already states both needs no
// clarification when confidence is high.
var newVsCorrectionMarkers = []string{
	"new ", "first time", "apply", "renew", "correction", "update", "change", "transfer", "existing",
}

var urgencyDimensionMarkers = []string{
	"urgent", "immediately", "deadline", "asap", "no rush", "whenever", "routine", "right now",
}

func dimensionsResolvable(text string) bool {
	lower := strings.ToLower(text)

	hasNature := false
	for _, m := range newVsCorrectionMarkers {
		if strings.Contains(lower, m) {
			hasNature = true
			break
		}
	}
	hasUrgency := false
	for _, m := range urgencyDimensionMarkers {
		if strings.Contains(lower, m) {
			hasUrgency = true
			break
		}
	}
	return hasNature && hasUrgency
}

type rawQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Type    string   `json:"type"`
	Options []string `json:"options"`
}

type rawQuestionSet struct {
	Questions []rawQuestion `json:"questions"`
}

func (e *Engine) generate(ctx context.Context, query, domain string, count int) ([]model.ClarificationQuestion, error) {
	resp, err := e.provider.GenerateJSON(ctx, llm.Request{
		System:      "You are an intake specialist who asks short, high-signal clarification questions. Never ask for personally identifying information.",
		Prompt:      buildQuestionPrompt(query, domain, count),
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	doc, err := llm.ExtractJSON(resp.Text)
	if err != nil {
		return nil, err
	}

	var raw rawQuestionSet
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}

	questions := make([]model.ClarificationQuestion, 0, count)
	seen := map[string]bool{}
	for _, q := range raw.Questions {
		if len(questions) == count {
			break
		}
		if strings.TrimSpace(q.Text) == "" {
			continue
		}

		// Stable id per ambiguity class: same class on a later round maps to
		// the same id so answers upsert instead of duplicating.
		id := StableID(domain, q.ID)
		if seen[id] {
			continue
		}
		seen[id] = true

		qt := model.QuestionFreeText
		if q.Type == "choice" && len(q.Options) > 0 {
			qt = model.QuestionChoice
		}
		questions = append(questions, model.ClarificationQuestion{
			ID:      id,
			Text:    q.Text,
			Type:    qt,
			Options: q.Options,
		})
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("no usable questions in model output")
	}
	return questions, nil
}

func buildQuestionPrompt(query, domain string, count int) string {
	return fmt.Sprintf(`You are an expert intake specialist for: %s.
The user has asked: %q

Your goal is to ask %d short, high-signal questions to clarify their situation so we can give better guidance.
Answers should help narrow down: whether this is a new request or a correction, how urgent it is, the specific procedure type, or the current status.

Do not ask for PII (name, phone, identification numbers).
Prefer choice questions where possible.

Return a JSON object strictly following this schema:
{
  "questions": [
    {
      "id": "ambiguity_class_slug",
      "text": "The question text?",
      "type": "choice",
      "options": ["Option A", "Option B", "Other"]
    },
    {
      "id": "open_ended_slug",
      "text": "Briefly explain X...",
      "type": "text"
    }
  ]
}

The "id" must name the ambiguity the question resolves (e.g. "request_nature", "time_pressure", "current_status"), not the question number.

Generate exactly %d questions.`, domain, query, count, count)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// StableID derives a deterministic question id from the domain and the
// ambiguity class so the same ambiguity always yields the same id.
func StableID(domain, class string) string {
	slug := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		s = slugPattern.ReplaceAllString(s, "_")
		return strings.Trim(s, "_")
	}
	c := slug(class)
	if c == "" {
		c = "generic_context"
	}
	return slug(domain) + "." + c
}

// fallbackQuestions is the deterministic catalog used when the model cannot
// produce usable questions, ordered by information value.
func fallbackQuestions(domain string, count int) []model.ClarificationQuestion {
	catalog := []model.ClarificationQuestion{
		{
			ID:      StableID(domain, "request_nature"),
			Text:    "Is this a new application or a correction to an existing record?",
			Type:    model.QuestionChoice,
			Options: []string{"New application", "Correction or update", "Not sure"},
		},
		{
			ID:      StableID(domain, "time_pressure"),
			Text:    "How urgent is this for you?",
			Type:    model.QuestionChoice,
			Options: []string{"Urgent, there is a deadline", "Routine, no deadline"},
		},
		{
			ID:      StableID(domain, "current_status"),
			Text:    "Have you already started this process anywhere?",
			Type:    model.QuestionChoice,
			Options: []string{"Not started", "Applied, waiting", "Stuck or rejected"},
		},
		{
			ID:   StableID(domain, "generic_context"),
			Text: "Could you provide more details about your specific situation?",
			Type: model.QuestionFreeText,
		},
	}
	if count > len(catalog) {
		count = len(catalog)
	}
	return catalog[:count]
}

// UpsertAnswers merges new answers into existing ones by question id,
// keeping answer order stable: existing answers keep their position and are
// overwritten in place, new ones append in submission order.
func UpsertAnswers(existing, incoming []model.ClarificationAnswer) []model.ClarificationAnswer {
	out := make([]model.ClarificationAnswer, len(existing))
	copy(out, existing)

	index := make(map[string]int, len(out))
	for i, a := range out {
		index[a.QuestionID] = i
	}

	for _, a := range incoming {
		if i, ok := index[a.QuestionID]; ok {
			out[i] = a
			continue
		}
		index[a.QuestionID] = len(out)
		out = append(out, a)
	}
	return out
}
