package situation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lifeflow/guidance/internal/model"
)

// MemoryStore is an in-memory Store for tests and the memory driver.
type MemoryStore struct {
	mu         sync.RWMutex
	situations map[string]*model.Situation
	feedback   []model.Feedback
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{situations: make(map[string]*model.Situation)}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Create(_ context.Context, s *model.Situation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.situations[s.ID]; ok {
		return fmt.Errorf("situation %s already exists", s.ID)
	}
	m.situations[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*model.Situation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.situations[id]
	if !ok {
		return nil, fmt.Errorf("situation %s: %w", id, model.ErrNotFound)
	}
	return clone(s), nil
}

func (m *MemoryStore) Update(_ context.Context, s *model.Situation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.situations[s.ID]; !ok {
		return fmt.Errorf("situation %s: %w", s.ID, model.ErrNotFound)
	}
	m.situations[s.ID] = clone(s)
	return nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]*model.Situation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Situation
	for _, s := range m.situations {
		if s.UserID == userID {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) AddFeedback(_ context.Context, fb model.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, fb)
	return nil
}

func (m *MemoryStore) DomainAccuracy(_ context.Context, domain string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().AddDate(0, 0, -30)
	var total, helpful int
	for _, fb := range m.feedback {
		if fb.Domain != domain || fb.CreatedAt.Before(cutoff) {
			continue
		}
		total++
		if fb.Helpful {
			helpful++
		}
	}
	if total < accuracyMinSamples {
		return 0.5, nil
	}
	return float64(helpful) / float64(total), nil
}

func clone(s *model.Situation) *model.Situation {
	c := *s
	c.RelatedDomains = append([]string(nil), s.RelatedDomains...)
	c.Answers = append([]model.ClarificationAnswer(nil), s.Answers...)
	c.Guidance = append([]model.GuidanceResponse(nil), s.Guidance...)
	return &c
}
