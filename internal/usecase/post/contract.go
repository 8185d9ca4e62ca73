package post

import (
	"context"

	"github.com/kailas-cloud/postmesh/internal/domain"
	dompost "github.com/kailas-cloud/postmesh/internal/domain/post"
)

// Repository is the post persistence contract.
type Repository interface {
	Get(ctx context.Context, scope, id string) (dompost.Post, error)
	Upsert(ctx context.Context, p *dompost.Post) (bool, error)
	Delete(ctx context.Context, scope, id string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Debouncer queues a reassignment after the quiet window.
type Debouncer interface {
	Schedule(scope, postID string)
}

// Invalidator drops cached query results after a write.
type Invalidator interface {
	InvalidateScope(ctx context.Context, scope string)
}
