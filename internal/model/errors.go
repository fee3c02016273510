package model

import "errors"

// Error kinds form the machine-readable contract of the pipeline. Every
// terminal failure maps to exactly one kind; callers match with errors.Is.
var (
	// ErrValidation covers empty or malformed caller input. Surfaced
	// immediately, never retried.
	ErrValidation = errors.New("validation error")

	// ErrUpstreamUnavailable means a model or embedding backend was
	// unreachable after the single bounded retry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrClassificationParse means the classification model produced output
	// that did not conform to the schema even after the repair re-prompt.
	ErrClassificationParse = errors.New("classification parse error")

	// ErrGenerationParse means the guidance model produced output that did
	// not conform to the schema even after the repair re-prompt.
	ErrGenerationParse = errors.New("generation parse error")

	// ErrInsufficientKnowledge means retrieval found no chunks above the
	// similarity threshold. Never retried: retrying adds no knowledge.
	ErrInsufficientKnowledge = errors.New("insufficient knowledge")

	// ErrGenerationInProgress rejects a second concurrent guidance request
	// for the same situation.
	ErrGenerationInProgress = errors.New("generation in progress")

	// ErrRiskEscalation signals that the query's risk score requires routing
	// the user to a human or professional channel instead of guidance.
	ErrRiskEscalation = errors.New("risk escalation required")

	// ErrNotFound means the requested situation does not exist.
	ErrNotFound = errors.New("situation not found")
)

// ErrorKind returns the wire identifier for an error, or "internal" when the
// error does not belong to the taxonomy.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrClassificationParse):
		return "classification_parse_error"
	case errors.Is(err, ErrGenerationParse):
		return "generation_parse_error"
	case errors.Is(err, ErrInsufficientKnowledge):
		return "insufficient_knowledge"
	case errors.Is(err, ErrGenerationInProgress):
		return "generation_in_progress"
	case errors.Is(err, ErrRiskEscalation):
		return "risk_escalation_required"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
