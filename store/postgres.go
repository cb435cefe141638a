package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/anycompany/docsearch/schema"
)

// PostgresStore persists index entries in Postgres with pgvector similarity
// search and JSONB metadata filtering. The schema is needed to choose JSONB
// casts when translating predicates to SQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema *schema.Schema
}

func NewPostgresStore(pool *pgxpool.Pool, s *schema.Schema) *PostgresStore {
	return &PostgresStore{pool: pool, schema: s}
}

func (s *PostgresStore) UpsertDocument(ctx context.Context, doc Document) (result UpsertResult, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return UpsertResult{}, &UnavailableError{Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var (
		docID     uuid.UUID
		storedSHA string
		revision  int
	)
	err = tx.QueryRow(ctx, "SELECT id, sha256, revision FROM documents WHERE source_uri = $1", doc.SourceURI).
		Scan(&docID, &storedSHA, &revision)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		docID = doc.ID
		if docID == uuid.Nil {
			docID = uuid.New()
		}
		revision = 1
		if _, err = tx.Exec(ctx, `
			INSERT INTO documents (id, source_uri, sha256, revision, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
		`, docID, doc.SourceURI, doc.SHA256, revision); err != nil {
			return UpsertResult{}, fmt.Errorf("insert document: %w", err)
		}
	case err != nil:
		return UpsertResult{}, &UnavailableError{Err: fmt.Errorf("query document: %w", err)}
	case storedSHA == doc.SHA256:
		err = nil
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return UpsertResult{}, fmt.Errorf("commit: %w", commitErr)
		}
		return UpsertResult{DocumentID: docID, Revision: revision, Changed: false}, nil
	default:
		revision++
		if _, err = tx.Exec(ctx, `
			UPDATE documents SET sha256 = $2, revision = $3, updated_at = NOW() WHERE id = $1
		`, docID, doc.SHA256, revision); err != nil {
			return UpsertResult{}, fmt.Errorf("update document: %w", err)
		}
		if _, err = tx.Exec(ctx, "DELETE FROM index_entries WHERE document_id = $1", docID); err != nil {
			return UpsertResult{}, fmt.Errorf("clear existing entries: %w", err)
		}
	}

	for i := range doc.Entries {
		entry := &doc.Entries[i]
		chunkID := entry.ChunkID
		if chunkID == uuid.Nil {
			chunkID = uuid.New()
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO index_entries (id, document_id, chunk_index, offset_start, offset_end, content, metadata, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		`, chunkID, docID, entry.ChunkIndex, entry.Start, entry.End, entry.Text, entry.Metadata, pgvector.NewVector(entry.Vector)); err != nil {
			return UpsertResult{}, fmt.Errorf("insert entry %d: %w", entry.ChunkIndex, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("commit: %w", err)
	}
	return UpsertResult{DocumentID: docID, Revision: revision, Changed: true}, nil
}

func (s *PostgresStore) Search(ctx context.Context, vector []float32, pred Predicate, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	args := []any{pgvector.NewVector(vector), limit}
	where, args, err := buildWhere(pred, s.schema, args)
	if err != nil {
		return nil, err
	}

	query := `
        SELECT
            e.id,
            e.document_id,
            d.source_uri,
            e.chunk_index,
            d.revision,
            e.content,
            e.metadata,
            (e.embedding <-> $1) AS distance
        FROM index_entries e
        JOIN documents d ON d.id = e.document_id`
	if where != "" {
		query += "\n        WHERE " + where
	}
	query += `
        ORDER BY e.embedding <-> $1
        LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &UnavailableError{Err: fmt.Errorf("similarity search: %w", err)}
	}
	defer rows.Close()

	hits := make([]Hit, 0, limit)
	for rows.Next() {
		var (
			hit      Hit
			distance float64
		)
		if scanErr := rows.Scan(
			&hit.Entry.ChunkID,
			&hit.Entry.DocumentID,
			&hit.Entry.SourceURI,
			&hit.Entry.ChunkIndex,
			&hit.Entry.Revision,
			&hit.Entry.Text,
			&hit.Entry.Metadata,
			&distance,
		); scanErr != nil {
			return nil, fmt.Errorf("scan hit: %w", scanErr)
		}
		hit.Score = 1 / (1 + distance)
		hits = append(hits, hit)
	}
	if rows.Err() != nil {
		return nil, &UnavailableError{Err: rows.Err()}
	}

	return hits, nil
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM documents WHERE id = $1", documentID); err != nil {
		return &UnavailableError{Err: fmt.Errorf("delete document: %w", err)}
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "TRUNCATE index_entries, documents"); err != nil {
		return &UnavailableError{Err: fmt.Errorf("truncate: %w", err)}
	}
	return nil
}

// buildWhere renders a predicate tree as a SQL condition over the metadata
// JSONB column. Clause values are canonical enriched representations, so the
// field type decides the JSONB cast.
func buildWhere(pred Predicate, s *schema.Schema, args []any) (string, []any, error) {
	if pred.Empty() {
		return "", args, nil
	}

	parts := make([]string, 0, len(pred.Clauses)+len(pred.Nested))
	var err error

	for _, clause := range pred.Clauses {
		var sql string
		sql, args, err = clauseSQL(clause, s, args)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
	}

	for _, nested := range pred.Nested {
		if nested.Empty() {
			continue
		}
		var sql string
		sql, args, err = buildWhere(nested, s, args)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
	}

	joiner := " AND "
	if pred.Join == JoinOr {
		joiner = " OR "
	}
	return strings.Join(parts, joiner), args, nil
}

func clauseSQL(clause Clause, s *schema.Schema, args []any) (string, []any, error) {
	field, ok := s.Field(clause.Field)
	if !ok {
		return "", nil, &schema.MismatchError{Field: clause.Field, Reason: "not in schema"}
	}
	if !field.AllowsOperator(clause.Op) {
		return "", nil, &schema.MismatchError{Field: clause.Field, Reason: fmt.Sprintf("operator %q not valid for type %q", clause.Op, field.Type)}
	}

	text := fmt.Sprintf("e.metadata->>'%s'", field.Name)

	switch clause.Op {
	case schema.OpEquals:
		switch field.Type {
		case schema.TypeBoolean:
			args = append(args, clause.Value)
			return fmt.Sprintf("(%s)::boolean = $%d", text, len(args)), args, nil
		case schema.TypeNumber:
			args = append(args, clause.Value)
			return fmt.Sprintf("(%s)::numeric = $%d", text, len(args)), args, nil
		default:
			args = append(args, clause.Value)
			return fmt.Sprintf("LOWER(%s) = LOWER($%d)", text, len(args)), args, nil
		}

	case schema.OpContains:
		if field.Type == schema.TypeStringList {
			// Element match must stay case-insensitive, same as the in-memory
			// evaluation; the JSONB ? operator compares exact.
			args = append(args, clause.Value)
			return fmt.Sprintf("EXISTS (SELECT 1 FROM jsonb_array_elements_text(e.metadata->'%s') v WHERE LOWER(v) = LOWER($%d))", field.Name, len(args)), args, nil
		}
		args = append(args, clause.Value)
		return fmt.Sprintf("%s ILIKE '%%' || $%d || '%%'", text, len(args)), args, nil

	case schema.OpIn:
		args = append(args, toStringSlice(clause.Value))
		return fmt.Sprintf("LOWER(%s) = ANY($%d)", text, len(args)), args, nil

	case schema.OpRange:
		r, ok := clause.Value.(Range)
		if !ok {
			return "", nil, &schema.MismatchError{Field: clause.Field, Reason: "range clause without range value"}
		}
		cast := text
		if field.Type == schema.TypeNumber {
			cast = "(" + text + ")::numeric"
		}
		conds := make([]string, 0, 2)
		if r.Min != nil {
			args = append(args, r.Min)
			conds = append(conds, fmt.Sprintf("%s >= $%d", cast, len(args)))
		}
		if r.Max != nil {
			args = append(args, r.Max)
			conds = append(conds, fmt.Sprintf("%s <= $%d", cast, len(args)))
		}
		if len(conds) == 0 {
			return "TRUE", args, nil
		}
		return strings.Join(conds, " AND "), args, nil

	default:
		return "", nil, &schema.MismatchError{Field: clause.Field, Reason: fmt.Sprintf("unknown operator %q", clause.Op)}
	}
}

func toStringSlice(v any) []string {
	switch items := v.(type) {
	case []string:
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = strings.ToLower(item)
		}
		return out
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, strings.ToLower(fmt.Sprint(item)))
		}
		return out
	default:
		return []string{strings.ToLower(fmt.Sprint(v))}
	}
}

var _ Store = (*PostgresStore)(nil)
