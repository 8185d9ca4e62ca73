package search

import (
	"context"

	"github.com/kailas-cloud/postmesh/internal/domain"
	"github.com/kailas-cloud/postmesh/internal/domain/search/candidate"
	"github.com/kailas-cloud/postmesh/internal/domain/search/fused"
)

// LexicalAdapter produces the term-match ranked list for a scope.
type LexicalAdapter interface {
	SearchAny(ctx context.Context, scope string, terms []string, limit int) ([]candidate.Candidate, error)
}

// SemanticAdapter produces the nearest-neighbor ranked list for a scope.
type SemanticAdapter interface {
	NearestNeighbors(ctx context.Context, scope string, vector []float32, limit int) ([]candidate.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// ResultCache caches fused query results per scope. Implementations
// fail open: Get reports a miss on any cache trouble.
type ResultCache interface {
	Get(ctx context.Context, scope, query string, limit int) ([]fused.Result, bool)
	Set(ctx context.Context, scope, query string, limit int, results []fused.Result)
}
