package cluster

import (
	"context"

	"github.com/kailas-cloud/postmesh/internal/domain"
	domcluster "github.com/kailas-cloud/postmesh/internal/domain/cluster"
	dompost "github.com/kailas-cloud/postmesh/internal/domain/post"
	"github.com/kailas-cloud/postmesh/internal/domain/search/candidate"
)

// PostStore is the post persistence contract for cluster assignment.
type PostStore interface {
	Get(ctx context.Context, scope, id string) (dompost.Post, error)
	GetMulti(ctx context.Context, scope string, ids []string) ([]dompost.Post, error)
	Upsert(ctx context.Context, p *dompost.Post) (bool, error)
	SetCluster(ctx context.Context, scope, id, clusterID string) error
}

// ClusterStore is the cluster persistence contract.
type ClusterStore interface {
	Get(ctx context.Context, scope, id string) (domcluster.Cluster, error)
	Create(ctx context.Context, c *domcluster.Cluster) error
	Put(ctx context.Context, c *domcluster.Cluster, expectedRevision int) error
}

// ClusterLister reads clusters for the catalog endpoint.
type ClusterLister interface {
	ListByScope(ctx context.Context, scope string) ([]domcluster.Cluster, error)
}

// LexicalAdapter narrows candidates by keyword match.
type LexicalAdapter interface {
	SearchAny(ctx context.Context, scope string, terms []string, limit int) ([]candidate.Candidate, error)
}

// SemanticAdapter narrows candidates by vector similarity.
type SemanticAdapter interface {
	NearestNeighbors(ctx context.Context, scope string, vector []float32, limit int) ([]candidate.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Invalidator drops cached query results after cluster membership changes.
type Invalidator interface {
	InvalidateScope(ctx context.Context, scope string)
}
