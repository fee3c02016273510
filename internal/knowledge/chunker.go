// Package knowledge holds the authoritative document store: fetching,
// text extraction, chunking, embedding, and the vector index the guidance
// pipeline retrieves from.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/lifeflow/guidance/internal/model"
)

// Chunker splits document text into retrievable segments.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	minChunkSize int
}

// NewChunker creates a chunker. Zero values fall back to the defaults used
// for government procedural documents: 1000-char chunks, 200-char overlap,
// 100-char minimum.
func NewChunker(size, overlap, min int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 200
	}
	if min <= 0 {
		min = 100
	}
	return &Chunker{chunkSize: size, chunkOverlap: overlap, minChunkSize: min}
}

// Chunk splits a document into chunks along paragraph boundaries, carrying
// the document's metadata onto every chunk. Consecutive chunks overlap so a
// procedure step split across a boundary stays retrievable.
func (c *Chunker) Chunk(doc model.Document) []model.Chunk {
	paragraphs := strings.Split(doc.Content, "\n\n")

	var chunks []model.Chunk
	var current strings.Builder

	flush := func() {
		text := strings.TrimSpace(current.String())
		if len(text) < c.minChunkSize {
			return
		}
		chunks = append(chunks, model.Chunk{
			ID:         fmt.Sprintf("%s#%d", doc.ID, len(chunks)),
			DocumentID: doc.ID,
			Title:      doc.Title,
			Authority:  doc.Authority,
			Domain:     doc.Domain,
			Index:      len(chunks),
			Text:       text,
		})
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if current.Len()+len(para) > c.chunkSize && current.Len() >= c.minChunkSize {
			flush()

			// Start the next chunk with the tail of the previous one.
			overlap := current.String()
			if len(overlap) > c.chunkOverlap {
				overlap = overlap[len(overlap)-c.chunkOverlap:]
			}
			current.Reset()
			if c.chunkOverlap > 0 {
				current.WriteString(overlap)
				current.WriteString("\n\n")
			}
		} else if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}

	flush()
	return chunks
}
