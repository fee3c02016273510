// Package retrieve turns a situation into ranked knowledge chunks plus a
// quality signal the confidence triangulator consumes.
package retrieve

import (
	"context"
	"fmt"
	"time"

	"github.com/lifeflow/guidance/internal/knowledge"
	"github.com/lifeflow/guidance/internal/llm"
	"github.com/lifeflow/guidance/internal/model"
)

const defaultTimeout = 30 * time.Second

// Result is what retrieval hands to guidance generation.
type Result struct {
	Chunks []model.RetrievedChunk
	// Quality is the retrieval strength in [0,1], derived from average
	// similarity, source authority, and corroborating document count.
	Quality float64
	// DocumentCount is the number of distinct source documents behind
	// the retrieved chunks.
	DocumentCount int
	// DomainFallback is set when the domain-filtered search came up
	// empty and results were drawn from the whole index instead.
	DomainFallback bool
}

// Retriever searches the knowledge index for chunks relevant to a query.
type Retriever struct {
	embedder      llm.Embedder
	index         *knowledge.Index
	auth          *knowledge.AuthorityClassifier
	topK          int
	minSimilarity float64
	timeout       time.Duration
}

// New creates a retriever over the given index.
func New(embedder llm.Embedder, index *knowledge.Index, cfg model.RetrievalConfig) *Retriever {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 6
	}
	minSim := cfg.MinSimilarity
	if minSim <= 0 {
		minSim = 0.2
	}
	return &Retriever{
		embedder:      embedder,
		index:         index,
		auth:          knowledge.NewAuthorityClassifier(),
		topK:          topK,
		minSimilarity: minSim,
		timeout:       defaultTimeout,
	}
}

// Retrieve returns the most relevant chunks for query within domain.
// When the domain has no matches above the similarity floor, the search
// widens to all domains and the result is flagged as a fallback.
// model.ErrInsufficientKnowledge is returned when even the widened search
// finds nothing usable; callers must not generate guidance from it.
func (r *Retriever) Retrieve(ctx context.Context, query, domain string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vectors))
	}
	qvec := vectors[0]

	chunks := r.usable(r.index.Search(qvec, r.topK, knowledge.Filter{Domain: domain}))
	fallback := false
	if len(chunks) == 0 && domain != "" {
		chunks = r.usable(r.index.Search(qvec, r.topK, knowledge.Filter{}))
		fallback = true
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no knowledge for %q in domain %s: %w",
			truncate(query, 60), domain, model.ErrInsufficientKnowledge)
	}

	docs := distinctDocuments(chunks)
	return &Result{
		Chunks:         chunks,
		Quality:        r.quality(chunks, docs),
		DocumentCount:  docs,
		DomainFallback: fallback,
	}, nil
}

// usable drops chunks below the similarity floor. Chunks that merely share
// vocabulary with the query score low and would dilute the context window.
func (r *Retriever) usable(chunks []model.RetrievedChunk) []model.RetrievedChunk {
	out := chunks[:0:0]
	for _, ch := range chunks {
		if ch.Similarity >= r.minSimilarity {
			out = append(out, ch)
		}
	}
	return out
}

// quality computes retrieval strength: average similarity, boosted by
// source authority (capped at +0.2), then shaped by corroboration. Fewer
// than three distinct documents discounts the score; five or more raise it.
func (r *Retriever) quality(chunks []model.RetrievedChunk, docs int) float64 {
	var simSum, boost float64
	for _, ch := range chunks {
		simSum += ch.Similarity
		boost += r.auth.TierFor(ch.Authority).Weight() / float64(len(chunks))
	}
	if boost > 0.2 {
		boost = 0.2
	}

	score := simSum/float64(len(chunks)) + boost
	switch {
	case docs < 3:
		score *= 0.8
	case docs >= 5:
		score *= 1.1
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func distinctDocuments(chunks []model.RetrievedChunk) int {
	seen := make(map[string]bool, len(chunks))
	for _, ch := range chunks {
		seen[ch.DocumentID] = true
	}
	return len(seen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
