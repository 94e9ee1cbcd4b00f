// Package store assembles the document store from its two backends: dense
// vector search lives in Qdrant, lexical full-text search and the metadata
// catalog live in Postgres. The composite presents them as one ports.Store
// so the retriever stays backend-agnostic.
package store

import (
	"context"

	"github.com/kk7453603/ragcore/internal/core/domain"
	"github.com/kk7453603/ragcore/internal/core/ports"
	"github.com/kk7453603/ragcore/internal/infrastructure/store/postgres"
	"github.com/kk7453603/ragcore/internal/infrastructure/vector/qdrant"
)

type Composite struct {
	dense   *qdrant.Client
	lexical *postgres.LexicalStore
}

func NewComposite(dense *qdrant.Client, lexical *postgres.LexicalStore) *Composite {
	return &Composite{dense: dense, lexical: lexical}
}

func (c *Composite) DenseSearch(ctx context.Context, language string, embedding []float32, filter domain.Filter, limit int) ([]ports.RankedDocument, error) {
	return c.dense.DenseSearch(ctx, language, embedding, filter, limit)
}

func (c *Composite) LexicalSearch(ctx context.Context, language string, expression string, filter domain.Filter, limit int) ([]ports.RankedDocument, error) {
	return c.lexical.LexicalSearch(ctx, language, expression, filter, limit)
}

func (c *Composite) GetDocument(ctx context.Context, id string) (domain.Document, error) {
	return c.lexical.GetDocument(ctx, id)
}

func (c *Composite) GetMetadata(ctx context.Context) (ports.StoreMetadata, error) {
	return c.lexical.GetMetadata(ctx)
}
