package confidence

import "context"

// HistoryProvider reports how accurate past guidance in a domain has been,
// as a score in [0,1]. Implementations derive it from user feedback.
type HistoryProvider interface {
	// DomainAccuracy returns the accuracy signal for a domain. Domains
	// with too little feedback to judge return the neutral 0.5.
	DomainAccuracy(ctx context.Context, domain string) (float64, error)
}

// NeutralHistory always reports 0.5. Used until enough feedback has
// accumulated, and in tests.
type NeutralHistory struct{}

func (NeutralHistory) DomainAccuracy(context.Context, string) (float64, error) {
	return 0.5, nil
}
