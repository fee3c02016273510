package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lifeflow/guidance/internal/classify"
	"github.com/lifeflow/guidance/internal/llm"
	"github.com/lifeflow/guidance/internal/model"
	"github.com/lifeflow/guidance/internal/worker"
)

// Source names one document to ingest into the knowledge base.
type Source struct {
	URL       string `yaml:"url" json:"url"`
	Domain    string `yaml:"domain" json:"domain"`
	Title     string `yaml:"title,omitempty" json:"title,omitempty"`
	Authority string `yaml:"authority,omitempty" json:"authority,omitempty"`
}

// IngestReport summarizes one ingestion run.
type IngestReport struct {
	Documents int
	Chunks    int
	Failed    []string
	Elapsed   time.Duration
}

// Ingestor fetches sources, extracts and chunks their text, embeds the
// chunks, and adds them to the index. Documents are processed concurrently
// by a worker pool; index writes stay on the caller's goroutine.
type Ingestor struct {
	fetcher  *Fetcher
	chunker  *Chunker
	embedder llm.Embedder
	index    *Index
	auth     *AuthorityClassifier
	workers  int
}

// NewIngestor wires an ingestor. workers <= 0 means a single worker.
func NewIngestor(fetcher *Fetcher, chunker *Chunker, embedder llm.Embedder, index *Index, workers int) *Ingestor {
	return &Ingestor{
		fetcher:  fetcher,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		auth:     NewAuthorityClassifier(),
		workers:  workers,
	}
}

type ingestJob struct {
	ing    *Ingestor
	source Source
}

type ingestResult struct {
	url     string
	chunks  []model.Chunk
	vectors [][]float32
	err     error
}

func (r *ingestResult) GetError() error { return r.err }

func (j *ingestJob) Execute(ctx context.Context) worker.Result {
	chunks, vectors, err := j.ing.process(ctx, j.source)
	return &ingestResult{url: j.source.URL, chunks: chunks, vectors: vectors, err: err}
}

// Ingest processes all sources and reports what made it into the index.
// A source that fails is recorded in the report, not fatal to the run.
func (ing *Ingestor) Ingest(ctx context.Context, sources []Source) (*IngestReport, error) {
	start := time.Now()

	pool := worker.NewPool(ing.workers)
	pool.Start()
	go func() {
		for _, src := range sources {
			pool.Submit(&ingestJob{ing: ing, source: src})
		}
	}()

	report := &IngestReport{}
	for _, res := range pool.Wait() {
		ir := res.(*ingestResult)
		if ir.err != nil {
			report.Failed = append(report.Failed, fmt.Sprintf("%s: %v", ir.url, ir.err))
			continue
		}
		if err := ing.index.Add(ir.chunks, ir.vectors); err != nil {
			return nil, fmt.Errorf("index %s: %w", ir.url, err)
		}
		report.Documents++
		report.Chunks += len(ir.chunks)
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

// IngestDocument chunks and embeds an already-fetched document, for sources
// loaded from local files rather than the network.
func (ing *Ingestor) IngestDocument(ctx context.Context, doc model.Document) (int, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	chunks := ing.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %q produced no chunks", doc.Title)
	}
	vectors, err := ing.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}
	if err := ing.index.Add(chunks, vectors); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (ing *Ingestor) process(ctx context.Context, src Source) ([]model.Chunk, [][]float32, error) {
	body, err := ing.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return nil, nil, err
	}

	text, err := ExtractText(string(body))
	if err != nil {
		return nil, nil, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil, fmt.Errorf("no extractable text")
	}

	authority := src.Authority
	if authority == "" {
		authority, _ = ing.auth.Classify(src.URL)
	}
	title := src.Title
	if title == "" {
		title = src.URL
	}
	dom := src.Domain
	if dom == "" {
		// No model is in play during ingest; keyword classification over
		// the title and extracted text tags the document.
		dom = classify.FallbackClassify(title + " " + text).PrimaryDomain
	}

	doc := model.Document{
		ID:        uuid.NewString(),
		Title:     title,
		Authority: authority,
		Domain:    dom,
		SourceURL: src.URL,
		Content:   text,
		FetchedAt: time.Now().UTC(),
	}

	chunks := ing.chunker.Chunk(doc)
	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("document too short to chunk")
	}
	vectors, err := ing.embed(ctx, chunks)
	if err != nil {
		return nil, nil, err
	}
	return chunks, vectors, nil
}

func (ing *Ingestor) embed(ctx context.Context, chunks []model.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := ing.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	return vectors, nil
}
