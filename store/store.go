// Package store defines the combined vector + structured-filter store boundary
// and its Postgres/pgvector and in-memory implementations.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// IndexEntry is the write-side unit: one chunk's vector, text, and enriched
// metadata. Start and End are byte offsets into the document's normalized text.
type IndexEntry struct {
	ChunkID    uuid.UUID
	ChunkIndex int
	Start      int
	End        int
	Text       string
	Vector     []float32
	Metadata   map[string]any
}

// Document is the unit of upsert. Re-ingesting the same SourceURI replaces the
// document's entry set atomically and bumps its revision.
type Document struct {
	ID        uuid.UUID
	SourceURI string
	SHA256    string
	Entries   []IndexEntry
}

// Entry is the read-side view of an indexed chunk.
type Entry struct {
	ChunkID    uuid.UUID
	DocumentID uuid.UUID
	SourceURI  string
	ChunkIndex int
	Revision   int
	Text       string
	Metadata   map[string]any
}

// Hit pairs an entry with its similarity score (higher is more similar).
type Hit struct {
	Entry Entry
	Score float64
}

// UpsertResult reports what an upsert did. Changed is false when the document
// content hash matched the stored one and nothing was rewritten.
type UpsertResult struct {
	DocumentID uuid.UUID
	Revision   int
	Changed    bool
}

type Store interface {
	// UpsertDocument replaces the document's entry set atomically; readers
	// never observe a partially written document.
	UpsertDocument(ctx context.Context, doc Document) (UpsertResult, error)

	// Search returns up to limit entries satisfying the predicate, ordered by
	// descending similarity to the query vector. An empty predicate searches
	// the whole store.
	Search(ctx context.Context, vector []float32, pred Predicate, limit int) ([]Hit, error)

	// DeleteDocument removes a document and all its entries.
	DeleteDocument(ctx context.Context, documentID uuid.UUID) error

	// Clear removes everything.
	Clear(ctx context.Context) error
}

// UnavailableError wraps failures of the store backend itself. It is fatal for
// the current operation; the core never retries past it.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
