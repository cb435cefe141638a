package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/anycompany/docsearch/chunker"
	"github.com/anycompany/docsearch/config"
	"github.com/anycompany/docsearch/enrich"
	"github.com/anycompany/docsearch/extract"
	"github.com/anycompany/docsearch/schema"
	"github.com/anycompany/docsearch/store"
)

const (
	defaultWorkers = 4

	// extractTextLimit caps how much document text is fed into the
	// extraction prompt when metadata is extracted per document.
	extractTextLimit = 12000
)

type Service struct {
	store     store.Store
	embedder  Embedder
	extractor *extract.Extractor
	chunker   chunker.Chunker
	schema    *schema.Schema
	scope     string
	workers   int
	logger    *log.Logger
}

// Embedder is the slice of the embeddings service the pipeline needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

func NewService(
	st store.Store,
	embedder Embedder,
	extractor *extract.Extractor,
	ch chunker.Chunker,
	s *schema.Schema,
	scope string,
	workers int,
	logger *log.Logger,
) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logger == nil {
		logger = log.Default()
	}
	if scope == "" {
		scope = config.ScopeDocument
	}
	return &Service{
		store:     st,
		embedder:  embedder,
		extractor: extractor,
		chunker:   ch,
		schema:    s,
		scope:     scope,
		workers:   workers,
		logger:    logger,
	}
}

// IngestDirectory processes every supported file under dir. Documents are
// independent failure domains: one failing is logged and skipped, the rest
// still index.
func (s *Service) IngestDirectory(ctx context.Context, dir string) error {
	if s.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("data directory: %w", err)
	}

	paths := make([]string, 0)
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if DetectFormat(path) != FormatUnknown {
			paths = append(paths, path)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walk data directory: %w", err)
	}

	if len(paths) == 0 {
		s.logger.Printf("no supported documents found in %s", dir)
		return nil
	}
	sort.Strings(paths)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := s.IngestFile(gctx, path); err != nil {
				s.logger.Printf("ingest failed for %s: %v", path, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// IngestFile runs the full pipeline for one document: load, chunk, extract,
// enrich, embed, and atomically upsert its entry set.
func (s *Service) IngestFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	text, err := ExtractText(DetectFormat(path), data)
	if err != nil {
		return err
	}
	text = chunker.Normalize(text)

	chunks := s.chunker.Chunk(text)
	if len(chunks) == 0 {
		s.logger.Printf("skip empty document %s", path)
		return nil
	}

	hash := sha256.Sum256(data)

	var docMeta map[string]any
	if s.scope == config.ScopeDocument {
		docMeta, err = s.extractMetadata(ctx, path, head(text, extractTextLimit))
		if err != nil {
			return err
		}
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: have %d chunks, %d vectors", len(chunks), len(vectors))
	}

	entries := make([]store.IndexEntry, 0, len(chunks))
	for i, chunk := range chunks {
		meta := docMeta
		if s.scope == config.ScopeChunk {
			meta, err = s.extractMetadata(ctx, path, chunk.Text)
			if err != nil {
				return err
			}
		}
		entries = append(entries, store.IndexEntry{
			ChunkID:    uuid.New(),
			ChunkIndex: chunk.Index,
			Start:      chunk.Start,
			End:        chunk.End,
			Text:       chunk.Text,
			Vector:     vectors[i],
			Metadata:   meta,
		})
	}

	result, err := s.store.UpsertDocument(ctx, store.Document{
		ID:        uuid.New(),
		SourceURI: path,
		SHA256:    hex.EncodeToString(hash[:]),
		Entries:   entries,
	})
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	if !result.Changed {
		s.logger.Printf("no updates required for %s", path)
		return nil
	}
	s.logger.Printf("ingested %s (%d chunks, revision %d)", path, len(entries), result.Revision)
	return nil
}

func (s *Service) extractMetadata(ctx context.Context, path, text string) (map[string]any, error) {
	raw, err := s.extractor.Extract(ctx, text, s.schema)
	if err != nil {
		return nil, fmt.Errorf("extract metadata: %w", err)
	}

	enriched, audit := enrich.Enrich(raw, s.schema)
	for field, flag := range audit.Flags {
		s.logger.Printf("%s: field %q %s", path, field, flag)
	}
	return enriched, nil
}

func head(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
