package cluster

import (
	"context"
	"sort"

	domcluster "github.com/kailas-cloud/postmesh/internal/domain/cluster"
)

// Catalog serves the read side of clusters.
type Catalog struct {
	clusters ClusterLister
}

// NewCatalog creates a cluster catalog.
func NewCatalog(clusters ClusterLister) *Catalog {
	return &Catalog{clusters: clusters}
}

// List returns the scope's clusters ordered by member count descending,
// ties by id.
func (c *Catalog) List(ctx context.Context, scope string) ([]domcluster.Cluster, error) {
	clusters, err := c.clusters.ListByScope(ctx, scope)
	if err != nil {
		return nil, err
	}
	sort.Slice(clusters, func(i, j int) bool {
		ci, cj := &clusters[i], &clusters[j]
		if ci.MemberCount() != cj.MemberCount() {
			return ci.MemberCount() > cj.MemberCount()
		}
		return ci.ID() < cj.ID()
	})
	return clusters, nil
}
