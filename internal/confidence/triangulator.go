// Package confidence triangulates a single confidence score from three
// independent signals: the model's self-reported confidence, retrieval
// quality, and historical accuracy of past guidance in the domain.
package confidence

import (
	"fmt"

	"github.com/lifeflow/guidance/internal/model"
)

const (
	// A retrieval this weak means the guidance is grounded on little to
	// nothing. However sure the model sounds, the blended score may not
	// exceed weakRetrievalCap.
	weakRetrievalFloor = 0.3
	weakRetrievalCap   = 0.5

	highBand   = 0.75
	mediumBand = 0.4
)

// Triangulator blends the three confidence signals with fixed weights.
type Triangulator struct {
	llmWeight        float64
	retrievalWeight  float64
	historicalWeight float64
}

// New creates a triangulator. Zero weights fall back to 0.4 / 0.35 / 0.25.
func New(cfg model.ConfidenceConfig) *Triangulator {
	if cfg.LLMWeight <= 0 || cfg.RetrievalWeight <= 0 || cfg.HistoricalWeight <= 0 {
		cfg = model.ConfidenceConfig{LLMWeight: 0.4, RetrievalWeight: 0.35, HistoricalWeight: 0.25}
	}
	return &Triangulator{
		llmWeight:        cfg.LLMWeight,
		retrievalWeight:  cfg.RetrievalWeight,
		historicalWeight: cfg.HistoricalWeight,
	}
}

// Triangulate blends llm, retrieval, and historical scores into a single
// confidence. Inputs are clamped to [0,1] first. A weak retrieval caps the
// result at 0.5 regardless of the other signals.
func (t *Triangulator) Triangulate(llm, retrieval, historical float64) model.Confidence {
	llm = clamp01(llm)
	retrieval = clamp01(retrieval)
	historical = clamp01(historical)

	score := t.llmWeight*llm + t.retrievalWeight*retrieval + t.historicalWeight*historical
	capped := false
	if retrieval < weakRetrievalFloor && score > weakRetrievalCap {
		score = weakRetrievalCap
		capped = true
	}
	score = clamp01(score)

	return model.Confidence{
		Score:       score,
		Reliability: Band(score),
		Explanation: explain(llm, retrieval, historical, capped),
		Breakdown: model.ConfidenceBreakdown{
			LLM:        llm,
			Retrieval:  retrieval,
			Historical: historical,
		},
	}
}

// Band maps a score to its reliability band. Boundaries are inclusive on
// the upper band: 0.75 is high, 0.4 is medium.
func Band(score float64) model.Reliability {
	switch {
	case score >= highBand:
		return model.ReliabilityHigh
	case score >= mediumBand:
		return model.ReliabilityMedium
	default:
		return model.ReliabilityLow
	}
}

func explain(llm, retrieval, historical float64, capped bool) string {
	weakest := "model self-assessment"
	low := llm
	if retrieval < low {
		weakest, low = "supporting documents", retrieval
	}
	if historical < low {
		weakest = "track record in this domain"
	}

	if capped {
		return fmt.Sprintf(
			"Few authoritative documents matched this situation, so confidence is capped. The weakest signal is %s.",
			weakest)
	}
	return fmt.Sprintf(
		"Blended from model self-assessment (%.2f), document support (%.2f), and past accuracy (%.2f). The weakest signal is %s.",
		llm, retrieval, historical, weakest)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
