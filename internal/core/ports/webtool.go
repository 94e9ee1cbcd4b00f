package ports

import (
	"context"

	"github.com/kk7453603/ragcore/internal/core/domain"
)

// WebTool is the optional external web-search collaborator behind a uniform
// tool interface. The adapter owns quota enforcement and result caching; it
// never returns an error for quota exhaustion or upstream failure, only an
// empty result.
type WebTool interface {
	Search(ctx context.Context, query string, maxResults int) ([]domain.Document, error)
}
