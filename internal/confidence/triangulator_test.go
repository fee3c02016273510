package confidence

import (
	"math"
	"strings"
	"testing"

	"github.com/lifeflow/guidance/internal/model"
)

func defaultTriangulator() *Triangulator {
	return New(model.ConfidenceConfig{LLMWeight: 0.4, RetrievalWeight: 0.35, HistoricalWeight: 0.25})
}

func TestTriangulateWeights(t *testing.T) {
	tri := defaultTriangulator()

	conf := tri.Triangulate(0.8, 0.6, 0.5)
	want := 0.4*0.8 + 0.35*0.6 + 0.25*0.5
	if math.Abs(conf.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", conf.Score, want)
	}
	if conf.Breakdown.LLM != 0.8 || conf.Breakdown.Retrieval != 0.6 || conf.Breakdown.Historical != 0.5 {
		t.Errorf("breakdown = %+v", conf.Breakdown)
	}
	if conf.Explanation == "" {
		t.Error("expected explanation")
	}
}

func TestTriangulateWeakRetrievalCap(t *testing.T) {
	tri := defaultTriangulator()

	// High model confidence cannot carry a response with almost no
	// document support past 0.5.
	conf := tri.Triangulate(1.0, 0.1, 1.0)
	if conf.Score != 0.5 {
		t.Errorf("score = %v, want gated 0.5", conf.Score)
	}
	if conf.Reliability != model.ReliabilityMedium {
		t.Errorf("reliability = %q, want medium", conf.Reliability)
	}

	// At the gate boundary the cap no longer applies.
	at := tri.Triangulate(1.0, 0.3, 1.0)
	if at.Score <= 0.5 {
		t.Errorf("score = %v, expected no cap at retrieval 0.3", at.Score)
	}

	// The cap only lowers, never raises.
	low := tri.Triangulate(0.1, 0.1, 0.1)
	if low.Score > 0.5 {
		t.Errorf("score = %v, cap raised a low score", low.Score)
	}
}

func TestTriangulateClampsInputs(t *testing.T) {
	tri := defaultTriangulator()

	conf := tri.Triangulate(1.8, -0.5, 0.5)
	if conf.Breakdown.LLM != 1 || conf.Breakdown.Retrieval != 0 {
		t.Errorf("breakdown not clamped: %+v", conf.Breakdown)
	}
	if conf.Score < 0 || conf.Score > 1 {
		t.Errorf("score %v outside [0,1]", conf.Score)
	}
}

func TestTriangulateScoreRangeInvariant(t *testing.T) {
	tri := defaultTriangulator()

	// Sweep the input space; the blended score must always stay in [0,1].
	for llm := -0.5; llm <= 1.5; llm += 0.25 {
		for ret := -0.5; ret <= 1.5; ret += 0.25 {
			for hist := -0.5; hist <= 1.5; hist += 0.25 {
				conf := tri.Triangulate(llm, ret, hist)
				if conf.Score < 0 || conf.Score > 1 {
					t.Fatalf("Triangulate(%v, %v, %v) = %v, outside [0,1]",
						llm, ret, hist, conf.Score)
				}
			}
		}
	}
}

func TestBandBoundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  model.Reliability
	}{
		{1.0, model.ReliabilityHigh},
		{0.75, model.ReliabilityHigh},
		{0.7499, model.ReliabilityMedium},
		{0.4, model.ReliabilityMedium},
		{0.3999, model.ReliabilityLow},
		{0, model.ReliabilityLow},
	}

	for _, tt := range tests {
		if got := Band(tt.score); got != tt.want {
			t.Errorf("Band(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestNewDefaultsOnInvalidWeights(t *testing.T) {
	tri := New(model.ConfidenceConfig{})

	conf := tri.Triangulate(1, 1, 1)
	if math.Abs(conf.Score-1) > 1e-9 {
		t.Errorf("default weights should sum to 1, score = %v", conf.Score)
	}
}

func TestExplanationNamesWeakestSignal(t *testing.T) {
	tri := defaultTriangulator()

	conf := tri.Triangulate(0.9, 0.9, 0.2)
	if !strings.Contains(conf.Explanation, "track record") {
		t.Errorf("explanation %q does not name the weakest signal", conf.Explanation)
	}
}
