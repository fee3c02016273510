package model

import "time"

// Document is an authoritative source text held by the knowledge base.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Authority string    `json:"authority"` // issuing body, e.g. "IRDAI", "UIDAI"
	Domain    string    `json:"domain"`
	SourceURL string    `json:"source_url,omitempty"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Chunk is one retrievable segment of a document.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Authority  string `json:"authority"`
	Domain     string `json:"domain"`
	Index      int    `json:"index"` // position within the document
	Text       string `json:"text"`
}

// RetrievedChunk pairs a chunk with its similarity to the query, ranked
// descending by the vector index.
type RetrievedChunk struct {
	Chunk
	Similarity float64 `json:"similarity_score"`
}
