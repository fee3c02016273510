// Package situation persists tracked concerns and orchestrates the full
// pipeline over them: classify, clarify, generate.
package situation

import (
	"context"

	"github.com/lifeflow/guidance/internal/model"
)

// Store persists situations and feedback. Implementations must be safe for
// concurrent use.
type Store interface {
	// Create inserts a new situation. The ID must be set by the caller.
	Create(ctx context.Context, s *model.Situation) error

	// Get loads one situation, or model.ErrNotFound.
	Get(ctx context.Context, id string) (*model.Situation, error)

	// Update replaces the stored situation wholesale.
	Update(ctx context.Context, s *model.Situation) error

	// ListByUser returns a user's situations, newest first.
	ListByUser(ctx context.Context, userID string) ([]*model.Situation, error)

	// AddFeedback records guidance feedback.
	AddFeedback(ctx context.Context, fb model.Feedback) error

	// DomainAccuracy reports the ratio of helpful feedback in a domain over
	// the last 30 days, or the neutral 0.5 when there are fewer than five
	// samples to judge by.
	DomainAccuracy(ctx context.Context, domain string) (float64, error)

	Close() error
}
