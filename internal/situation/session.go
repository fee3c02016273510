package situation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lifeflow/guidance/internal/classify"
	"github.com/lifeflow/guidance/internal/clarify"
	"github.com/lifeflow/guidance/internal/guidance"
	"github.com/lifeflow/guidance/internal/model"
)

// ResolveResult is what intake hands back: the persisted situation plus any
// clarification questions the user should answer before guidance.
type ResolveResult struct {
	Situation *model.Situation              `json:"situation"`
	Questions []model.ClarificationQuestion `json:"questions,omitempty"`
}

// Session orchestrates the pipeline over persisted situations. It owns the
// per-situation generation lock: a second guidance request for a situation
// whose generation is still running is rejected, not queued.
type Session struct {
	store      Store
	classifier *classify.Classifier
	clarifier  *clarify.Engine
	engine     *guidance.Engine

	mu         sync.Mutex
	generating map[string]bool
}

// NewSession wires a session over the given store and pipeline stages.
func NewSession(store Store, classifier *classify.Classifier, clarifier *clarify.Engine, engine *guidance.Engine) *Session {
	return &Session{
		store:      store,
		classifier: classifier,
		clarifier:  clarifier,
		engine:     engine,
		generating: make(map[string]bool),
	}
}

// Resolve classifies a new concern, creates the situation, and decides
// whether clarification is needed. Classification failures are terminal for
// the call: no situation is created until the classifier succeeds. A risk
// score requiring escalation skips clarification entirely.
func (s *Session) Resolve(ctx context.Context, userID, description string) (*ResolveResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing user id", model.ErrValidation)
	}

	cls, err := s.classifier.Classify(ctx, description)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sit := &model.Situation{
		ID:              uuid.NewString(),
		UserID:          userID,
		Description:     strings.TrimSpace(description),
		PrimaryDomain:   cls.PrimaryDomain,
		SecondaryDomain: cls.SecondaryDomain,
		RelatedDomains:  cls.RelatedDomains,
		Status:          model.StatusActive,
		Priority:        model.PriorityNormal,
		State:           model.StateClassified,
		Risk:            cls.Risk,
		Confidence:      cls.Confidence,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if cls.Risk.RiskScore >= 3 {
		sit.Priority = model.PriorityUrgent
	}

	if cls.Risk.RequiresEscalation() {
		if err := s.store.Create(ctx, sit); err != nil {
			return nil, err
		}
		return &ResolveResult{Situation: sit}, nil
	}

	questions, err := s.clarifier.NeedsClarification(ctx, sit, cls)
	if err != nil {
		return nil, err
	}
	if len(questions) > 0 {
		sit.State = model.StateAwaitingClarification
	} else {
		sit.State = model.StateReadyForGuidance
	}

	if err := s.store.Create(ctx, sit); err != nil {
		return nil, err
	}
	return &ResolveResult{Situation: sit, Questions: questions}, nil
}

// Clarify records the user's answers and marks the situation ready for
// guidance. An empty answer set is an explicit skip. Answers to a question
// already answered overwrite the earlier answer. Calling clarify on a
// situation that is already ready is a no-op, not an error.
func (s *Session) Clarify(ctx context.Context, id string, answers []model.ClarificationAnswer) (*model.Situation, error) {
	sit, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !model.ValidTransition(sit.State, model.StateReadyForGuidance) {
		return nil, fmt.Errorf("%w: cannot clarify situation in state %s", model.ErrValidation, sit.State)
	}

	for _, ans := range answers {
		if strings.TrimSpace(ans.QuestionID) == "" {
			return nil, fmt.Errorf("%w: answer missing question id", model.ErrValidation)
		}
	}

	sit.Answers = clarify.UpsertAnswers(sit.Answers, answers)
	sit.State = model.StateReadyForGuidance
	sit.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, sit); err != nil {
		return nil, err
	}
	return sit, nil
}

// Generate produces guidance for a ready situation. Only one generation per
// situation runs at a time; a concurrent request is rejected with
// model.ErrGenerationInProgress. The situation does not advance state unless
// generation fully succeeds.
func (s *Session) Generate(ctx context.Context, id string) (*model.Situation, *model.GuidanceResponse, error) {
	if !s.acquire(id) {
		return nil, nil, fmt.Errorf("situation %s: %w", id, model.ErrGenerationInProgress)
	}
	defer s.release(id)

	sit, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if sit.Risk.RequiresEscalation() {
		return nil, nil, fmt.Errorf("%s: %w", sit.Risk.Recommendation, model.ErrRiskEscalation)
	}

	switch sit.State {
	case model.StateReadyForGuidance, model.StateGuidanceGenerated:
	case model.StateAwaitingClarification:
		return nil, nil, fmt.Errorf("%w: clarification pending", model.ErrValidation)
	default:
		return nil, nil, fmt.Errorf("%w: situation in state %s is not ready for guidance", model.ErrValidation, sit.State)
	}

	resp, err := s.engine.Generate(ctx, sit)
	if err != nil {
		return nil, nil, err
	}

	sit.Guidance = append(sit.Guidance, *resp)
	sit.State = model.StateGuidanceGenerated
	sit.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, sit); err != nil {
		return nil, nil, err
	}
	return sit, resp, nil
}

// Get loads one situation.
func (s *Session) Get(ctx context.Context, id string) (*model.Situation, error) {
	return s.store.Get(ctx, id)
}

// List returns a user's situations, newest first.
func (s *Session) List(ctx context.Context, userID string) ([]*model.Situation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: missing user id", model.ErrValidation)
	}
	return s.store.ListByUser(ctx, userID)
}

// Feedback records guidance feedback against a situation. The domain is
// taken from the situation so the historical accuracy signal aggregates
// consistently.
func (s *Session) Feedback(ctx context.Context, situationID, userID string, helpful bool, comment string) (*model.Feedback, error) {
	sit, err := s.store.Get(ctx, situationID)
	if err != nil {
		return nil, err
	}
	if len(sit.Guidance) == 0 {
		return nil, fmt.Errorf("%w: situation has no guidance to rate", model.ErrValidation)
	}

	fb := model.Feedback{
		ID:          uuid.NewString(),
		SituationID: sit.ID,
		UserID:      userID,
		Domain:      sit.PrimaryDomain,
		Helpful:     helpful,
		Comment:     comment,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.AddFeedback(ctx, fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

func (s *Session) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating[id] {
		return false
	}
	s.generating[id] = true
	return true
}

func (s *Session) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generating, id)
}
