// Package retrieval finds knowledge base documents similar to an incoming
// document and renders them as prompt context.
package retrieval

import (
	"context"
	"time"
)

// DefaultCollection is the knowledge base collection searched when none is configured.
const DefaultCollection = "BaseCurador"

// VectorStore stores embeddings per collection and answers similarity queries.
type VectorStore interface {
	// Insert adds records to a collection.
	Insert(ctx context.Context, collection string, records []Record) error

	// Search returns up to limit records of collection ordered by cosine
	// similarity to vector, best first.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]ScoredRecord, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, collection string, id string) error

	// Count returns the number of records in collection.
	Count(ctx context.Context, collection string) (int, error)
}

// Payload holds the descriptive fields of an indexed document.
type Payload struct {
	Title      string `json:"title,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Conclusion string `json:"conclusion,omitempty"`
	Text       string `json:"text,omitempty"`
}

// Record is one stored vector.
type Record struct {
	ID         string
	Collection string
	SourceID   string
	Payload    Payload
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredRecord is a Record with its similarity score.
type ScoredRecord struct {
	Record
	Score float32
}
