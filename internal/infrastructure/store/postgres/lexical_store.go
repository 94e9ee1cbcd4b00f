// Package postgres implements the lexical-search, document-fetch, and live
// metadata thirds of the Store contract against a Postgres document-chunk
// table, using database/sql over the pgx/v5 stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
)

// LexicalStore implements the lexical_search, get_document, and get_metadata
// operations of ports.Store; dense_search lives in the qdrant adapter.
type LexicalStore struct {
	db *sql.DB
}

func NewLexicalStore(db *sql.DB) *LexicalStore {
	return &LexicalStore{db: db}
}

// OpenDB opens a pooled database/sql handle over pgx/v5's stdlib driver
// shim, with a startup ping so misconfiguration fails fast.
func OpenDB(dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the document_chunks table and its lexical index if
// they do not already exist, guarded by an advisory lock so concurrent
// api/worker startups don't race on DDL.
func (s *LexicalStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026030601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	source TEXT NOT NULL,
	page INT NOT NULL DEFAULT 0,
	category TEXT NOT NULL,
	caption TEXT NOT NULL DEFAULT '',
	entity JSONB,
	human_feedback TEXT NOT NULL DEFAULT '',
	image_path TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT 'english',
	tsv tsvector GENERATED ALWAYS AS (to_tsvector('simple', content)) STORED
);

CREATE INDEX IF NOT EXISTS idx_document_chunks_tsv ON document_chunks USING GIN(tsv);
CREATE INDEX IF NOT EXISTS idx_document_chunks_source ON document_chunks(source);
CREATE INDEX IF NOT EXISTS idx_document_chunks_page ON document_chunks(page);
CREATE INDEX IF NOT EXISTS idx_document_chunks_category ON document_chunks(category);
`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return tx.Commit()
}

// LexicalSearch implements ports.Store.LexicalSearch: the caller-supplied
// boolean keyword expression (from keyword.BuildExpression) is translated
// into Postgres to_tsquery syntax and ranked with ts_rank.
func (s *LexicalStore) LexicalSearch(ctx context.Context, language string, expression string, filter domain.Filter, limit int) ([]ports.RankedDocument, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, nil
	}

	where, args := buildWhereClause(filter)
	args = append(args, toTSQuery(expression))
	tsqueryPlaceholder := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
SELECT id, content, source, page, category, caption, entity, human_feedback, image_path,
       ts_rank(tsv, to_tsquery('simple', %s)) AS rank
FROM document_chunks
WHERE %s tsv @@ to_tsquery('simple', %s)
ORDER BY rank DESC
LIMIT %d
`, tsqueryPlaceholder, where, tsqueryPlaceholder, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapPgError("lexical_search", err)
	}
	defer rows.Close()

	var out []ports.RankedDocument
	rank := 0
	for rows.Next() {
		doc, _, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lexical result: %w", err)
		}
		rank++
		doc.LexicalRank = rank
		out = append(out, ports.RankedDocument{Document: doc, Rank: rank})
	}
	return out, rows.Err()
}

// GetDocument implements ports.Store.GetDocument.
func (s *LexicalStore) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, content, source, page, category, caption, entity, human_feedback, image_path, 0
FROM document_chunks WHERE id = $1
`, id)

	doc, _, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.WrapError(domain.ErrDocumentNotFound, "get_document", err)
		}
		return domain.Document{}, wrapPgError("get_document", err)
	}
	return doc, nil
}

// GetMetadata implements ports.Store.GetMetadata: the live snapshot the
// filter generator and planner validate against.
func (s *LexicalStore) GetMetadata(ctx context.Context) (ports.StoreMetadata, error) {
	meta := ports.StoreMetadata{}

	sourceRows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM document_chunks`)
	if err != nil {
		return meta, wrapPgError("get_metadata_sources", err)
	}
	for sourceRows.Next() {
		var source string
		if err := sourceRows.Scan(&source); err != nil {
			sourceRows.Close()
			return meta, fmt.Errorf("scan source: %w", err)
		}
		meta.Sources = append(meta.Sources, source)
	}
	sourceRows.Close()
	if err := sourceRows.Err(); err != nil {
		return meta, err
	}

	err = s.db.QueryRowContext(ctx, `SELECT COALESCE(MIN(page),0), COALESCE(MAX(page),0) FROM document_chunks`).Scan(&meta.PageMin, &meta.PageMax)
	if err != nil {
		return meta, wrapPgError("get_metadata_pages", err)
	}

	categoryRows, err := s.db.QueryContext(ctx, `SELECT DISTINCT category FROM document_chunks`)
	if err != nil {
		return meta, wrapPgError("get_metadata_categories", err)
	}
	for categoryRows.Next() {
		var category string
		if err := categoryRows.Scan(&category); err != nil {
			categoryRows.Close()
			return meta, fmt.Errorf("scan category: %w", err)
		}
		meta.Categories = append(meta.Categories, domain.Category(category))
	}
	categoryRows.Close()
	if err := categoryRows.Err(); err != nil {
		return meta, err
	}

	entityRows, err := s.db.QueryContext(ctx, `SELECT DISTINCT entity->>'type' FROM document_chunks WHERE entity IS NOT NULL AND entity->>'type' IS NOT NULL`)
	if err != nil {
		return meta, wrapPgError("get_metadata_entity_types", err)
	}
	defer entityRows.Close()
	for entityRows.Next() {
		var entityType string
		if err := entityRows.Scan(&entityType); err != nil {
			return meta, fmt.Errorf("scan entity type: %w", err)
		}
		meta.EntityTypes = append(meta.EntityTypes, entityType)
	}
	return meta, entityRows.Err()
}

// rowScanner abstracts over *sql.Row and *sql.Rows, both of which expose Scan.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument scans the ten-column document_chunks projection shared by
// LexicalSearch (real rank) and GetDocument (rank pinned to 0 in the query).
func scanDocument(row rowScanner) (domain.Document, float64, error) {
	var doc domain.Document
	var caption, humanFeedback, imagePath sql.NullString
	var entityRaw []byte
	var rank float64

	err := row.Scan(&doc.ID, &doc.Content, &doc.Metadata.Source, &doc.Metadata.Page, &doc.Metadata.Category,
		&caption, &entityRaw, &humanFeedback, &imagePath, &rank)
	if err != nil {
		return domain.Document{}, 0, err
	}

	doc.Metadata.Caption = caption.String
	doc.Metadata.HumanFeedback = humanFeedback.String
	doc.Metadata.ImagePath = imagePath.String

	if len(entityRaw) > 0 {
		var entity domain.Entity
		if err := json.Unmarshal(entityRaw, &entity); err == nil {
			doc.Metadata.Entity = &entity
		}
	}
	return doc, rank, nil
}

// buildWhereClause implements the store's obligation to apply filter.go's
// predicates server-side -- the core never post-filters.
func buildWhereClause(filter domain.Filter) (string, []any) {
	var clauses []string
	var args []any

	if len(filter.Sources) > 0 {
		clauses = append(clauses, fmt.Sprintf("source = ANY($%d)", len(args)+1))
		args = append(args, filter.Sources)
	}
	if len(filter.Pages) > 0 {
		clauses = append(clauses, fmt.Sprintf("page = ANY($%d)", len(args)+1))
		args = append(args, filter.Pages)
	}
	if len(filter.Categories) > 0 {
		cats := make([]string, len(filter.Categories))
		for i, c := range filter.Categories {
			cats[i] = string(c)
		}
		clauses = append(clauses, fmt.Sprintf("category = ANY($%d)", len(args)+1))
		args = append(args, cats)
	}
	if filter.CaptionContains != "" {
		clauses = append(clauses, fmt.Sprintf("caption ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.CaptionContains+"%")
	}
	if filter.Entity != nil {
		if filter.Entity.Type != "" {
			clauses = append(clauses, fmt.Sprintf("entity->>'type' = $%d", len(args)+1))
			args = append(args, filter.Entity.Type)
		}
		if len(filter.Entity.Keywords) > 0 {
			// ?| is jsonb exists-any: the document matches when its keywords
			// array shares at least one element with the filter's.
			clauses = append(clauses, fmt.Sprintf("entity->'keywords' ?| $%d", len(args)+1))
			args = append(args, filter.Entity.Keywords)
		}
		if filter.Entity.Title != "" {
			clauses = append(clauses, fmt.Sprintf("entity->>'title' ILIKE $%d", len(args)+1))
			args = append(args, "%"+filter.Entity.Title+"%")
		}
	}

	if len(clauses) == 0 {
		return "", args
	}
	return strings.Join(clauses, " AND ") + " AND ", args
}

// toTSQuery translates keyword.BuildExpression's "A AND B", "A OR B"
// boolean-expression syntax into Postgres to_tsquery operators.
func toTSQuery(expression string) string {
	expr := strings.ReplaceAll(expression, " AND ", " & ")
	expr = strings.ReplaceAll(expr, " OR ", " | ")
	return expr
}

func wrapPgError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return domain.WrapError(domain.ErrTemporary, operation, err)
}
