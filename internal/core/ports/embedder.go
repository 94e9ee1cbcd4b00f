package ports

import "context"

// Embedder is the opaque contract with a text-embedding provider. It is
// kept separate from Model because dense search needs a vector in, not text
// out, and a deployment may point the two at different providers.
type Embedder interface {
	Embed(ctx context.Context, language string, text string) ([]float32, error)
}
