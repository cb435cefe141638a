package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a brute-force in-memory implementation used for tests and
// local runs without Postgres. Cosine similarity over unnormalized vectors.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	docs      map[uuid.UUID]*memoryDoc
	bySource  map[string]uuid.UUID
}

type memoryDoc struct {
	id        uuid.UUID
	sourceURI string
	sha256    string
	revision  int
	entries   []IndexEntry
}

func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		docs:      make(map[uuid.UUID]*memoryDoc),
		bySource:  make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) UpsertDocument(_ context.Context, doc Document) (UpsertResult, error) {
	for _, e := range doc.Entries {
		if len(e.Vector) != s.dimension {
			return UpsertResult{}, fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(e.Vector))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.bySource[doc.SourceURI]
	if ok {
		stored := s.docs[existing]
		if stored.sha256 == doc.SHA256 {
			return UpsertResult{DocumentID: stored.id, Revision: stored.revision, Changed: false}, nil
		}
		stored.sha256 = doc.SHA256
		stored.revision++
		stored.entries = append([]IndexEntry(nil), doc.Entries...)
		return UpsertResult{DocumentID: stored.id, Revision: stored.revision, Changed: true}, nil
	}

	id := doc.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	s.docs[id] = &memoryDoc{
		id:        id,
		sourceURI: doc.SourceURI,
		sha256:    doc.SHA256,
		revision:  1,
		entries:   append([]IndexEntry(nil), doc.Entries...),
	}
	s.bySource[doc.SourceURI] = id

	return UpsertResult{DocumentID: id, Revision: 1, Changed: true}, nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, pred Predicate, limit int) ([]Hit, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d", s.dimension, len(vector))
	}
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0)
	for _, doc := range s.docs {
		for i := range doc.entries {
			entry := &doc.entries[i]
			if !pred.Matches(entry.Metadata) {
				continue
			}
			hits = append(hits, Hit{
				Entry: Entry{
					ChunkID:    entry.ChunkID,
					DocumentID: doc.id,
					SourceURI:  doc.sourceURI,
					ChunkIndex: entry.ChunkIndex,
					Revision:   doc.revision,
					Text:       entry.Text,
					Metadata:   entry.Metadata,
				},
				Score: cosine(entry.Vector, vector),
			})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, documentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[documentID]
	if !ok {
		return nil
	}
	delete(s.bySource, doc.sourceURI)
	delete(s.docs, documentID)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[uuid.UUID]*memoryDoc)
	s.bySource = make(map[string]uuid.UUID)
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Store = (*MemoryStore)(nil)
