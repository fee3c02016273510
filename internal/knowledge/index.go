package knowledge

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lifeflow/guidance/internal/model"
)

// Filter restricts a search to chunks matching the given metadata. Zero
// values match everything.
type Filter struct {
	Domain    string
	Authority string
}

// Index is an in-memory vector index over knowledge chunks. Vectors are
// normalized on insert so inner product equals cosine similarity. The index
// persists to a JSON snapshot on disk.
type Index struct {
	mu      sync.RWMutex
	entries []indexEntry
	dim     int
}

type indexEntry struct {
	Chunk  model.Chunk `json:"chunk"`
	Vector []float32   `json:"vector"`
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Add inserts chunks with their embeddings. Vectors must all share one
// dimensionality; the first insert fixes it.
func (ix *Index) Add(chunks []model.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for i, vec := range vectors {
		if ix.dim == 0 {
			ix.dim = len(vec)
		}
		if len(vec) != ix.dim {
			return fmt.Errorf("vector dimension %d, index has %d", len(vec), ix.dim)
		}
		ix.entries = append(ix.entries, indexEntry{
			Chunk:  chunks[i],
			Vector: normalize(vec),
		})
	}
	return nil
}

// Search returns the top k chunks by cosine similarity to query, most
// similar first, restricted to entries matching the filter.
func (ix *Index) Search(query []float32, k int, f Filter) []model.RetrievedChunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k <= 0 || len(ix.entries) == 0 || len(query) != ix.dim {
		return nil
	}
	q := normalize(query)

	results := make([]model.RetrievedChunk, 0, k)
	for _, e := range ix.entries {
		if f.Domain != "" && !strings.EqualFold(e.Chunk.Domain, f.Domain) {
			continue
		}
		if f.Authority != "" && !strings.EqualFold(e.Chunk.Authority, f.Authority) {
			continue
		}
		results = append(results, model.RetrievedChunk{
			Chunk:      e.Chunk,
			Similarity: dot(q, e.Vector),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Len reports the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Save writes the index to path as a JSON snapshot.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	data, err := json.Marshal(struct {
		Dim     int          `json:"dim"`
		Entries []indexEntry `json:"entries"`
	}{ix.dim, ix.entries})
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadIndex reads a snapshot written by Save. A missing file yields an
// empty index, not an error.
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewIndex(), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	var snap struct {
		Dim     int          `json:"dim"`
		Entries []indexEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return &Index{dim: snap.Dim, entries: snap.Entries}, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
