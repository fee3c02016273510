package model

// Urgency orders suggestions. High sorts before medium sorts before low.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// Rank returns the sort weight for an urgency level. Unknown values sort
// last so malformed model output cannot jump the queue.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyHigh:
		return 0
	case UrgencyMedium:
		return 1
	case UrgencyLow:
		return 2
	}
	return 3
}

// Suggestion is one actionable guidance step.
type Suggestion struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	WhyItMatters  string  `json:"why_it_matters"`
	Urgency       Urgency `json:"urgency"`
	CanSkip       bool    `json:"can_skip"`
	EstimatedTime string  `json:"estimated_time,omitempty"`
}

// Source identifies an authoritative document backing one or more
// suggestions. Deduplicated by DocumentID.
type Source struct {
	Title      string `json:"title"`
	Authority  string `json:"authority"`
	DocumentID string `json:"document_id"`
}

// Reliability bands the triangulated confidence score.
type Reliability string

const (
	ReliabilityHigh   Reliability = "high"
	ReliabilityMedium Reliability = "medium"
	ReliabilityLow    Reliability = "low"
)

// ConfidenceBreakdown exposes the three triangulation inputs so callers can
// see why a score landed where it did.
type ConfidenceBreakdown struct {
	LLM        float64 `json:"llm"`
	Retrieval  float64 `json:"retrieval"`
	Historical float64 `json:"historical"`
}

// Confidence is the triangulated confidence attached to every guidance
// response.
type Confidence struct {
	Score       float64             `json:"score"` // [0,1]
	Reliability Reliability         `json:"reliability"`
	Explanation string              `json:"explanation"`
	Breakdown   ConfidenceBreakdown `json:"breakdown"`
}

// GuidanceResponse is the full output of one guidance generation. Persisted
// as an immutable record on the situation once produced.
type GuidanceResponse struct {
	Suggestions         []Suggestion `json:"suggestions"`
	Sources             []Source     `json:"sources"`
	Confidence          Confidence   `json:"confidence"`
	Caveats             []string     `json:"caveats,omitempty"`
	CrossDomainInsights []string     `json:"cross_domain_insights,omitempty"`
}
