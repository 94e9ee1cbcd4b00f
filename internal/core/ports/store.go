package ports

import (
	"context"

	"github.com/kk7453603/ragcore/internal/core/domain"
)

// RankedDocument is a single row of a Store search result: a Document plus
// the ordinal rank it was returned at, used as RRF merge input.
type RankedDocument struct {
	Document domain.Document
	Rank     int
}

// StoreMetadata is the live snapshot the filter generator and planner read:
// distinct sources, the page range, distinct categories, and the
// runtime-discovered entity-type vocabulary.
type StoreMetadata struct {
	Sources     []string
	PageMin     int
	PageMax     int
	Categories  []domain.Category
	EntityTypes []string
}

// Store is the opaque contract with the document store: dense-vector search,
// lexical full-text search, single-document fetch, and filterable metadata
// access. The store is responsible for applying the Filter server-side; the
// core must not post-filter.
type Store interface {
	DenseSearch(ctx context.Context, language string, embedding []float32, filter domain.Filter, limit int) ([]RankedDocument, error)
	LexicalSearch(ctx context.Context, language string, expression string, filter domain.Filter, limit int) ([]RankedDocument, error)
	GetDocument(ctx context.Context, id string) (domain.Document, error)
	GetMetadata(ctx context.Context) (StoreMetadata, error)
}
