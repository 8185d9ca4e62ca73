package cluster

import (
	"fmt"

	"github.com/kailas-cloud/postmesh/internal/domain"
)

// Cluster is the topic cluster aggregate (immutable value object).
// memberCount is eventually consistent with the posts referencing the
// cluster; the periodic sweep reconciles drift.
type Cluster struct {
	id          string
	scope       string
	label       string
	centroid    []float32
	memberCount int
	revision    int
}

// New creates a cluster seeded with a single member's vector as centroid.
func New(id, scope, label string, seed []float32) (Cluster, error) {
	if id == "" {
		return Cluster{}, fmt.Errorf("cluster ID is required")
	}
	if scope == "" {
		return Cluster{}, fmt.Errorf("scope is required")
	}
	if len(seed) == 0 {
		return Cluster{}, fmt.Errorf("seed vector is required")
	}
	centroid := make([]float32, len(seed))
	copy(centroid, seed)
	return Cluster{id: id, scope: scope, label: label, centroid: centroid, memberCount: 1, revision: 1}, nil
}

// Reconstruct creates a Cluster without validation (storage hydration).
func Reconstruct(id, scope, label string, centroid []float32, memberCount, revision int) Cluster {
	return Cluster{
		id: id, scope: scope, label: label,
		centroid: centroid, memberCount: memberCount, revision: revision,
	}
}

// ID returns the cluster identifier.
func (c *Cluster) ID() string { return c.id }

// Scope returns the partition the cluster belongs to.
func (c *Cluster) Scope() string { return c.scope }

// Label returns the human-readable cluster label.
func (c *Cluster) Label() string { return c.label }

// Centroid returns the representative vector.
func (c *Cluster) Centroid() []float32 { return c.centroid }

// MemberCount returns the tracked number of member posts.
func (c *Cluster) MemberCount() int { return c.memberCount }

// Revision returns the persistence revision for conflict detection.
func (c *Cluster) Revision() int { return c.revision }

// Absorb returns a copy with v folded into the centroid as an
// incremental running mean and the member count incremented.
func (c *Cluster) Absorb(v []float32) (Cluster, error) {
	if len(v) != len(c.centroid) {
		return Cluster{}, fmt.Errorf(
			"absorb vector: got dim %d, want %d: %w",
			len(v), len(c.centroid), domain.ErrVectorDimMismatch,
		)
	}
	n := float32(c.memberCount)
	centroid := make([]float32, len(c.centroid))
	for i, cv := range c.centroid {
		centroid[i] = cv + (v[i]-cv)/(n+1)
	}
	out := *c
	out.centroid = centroid
	out.memberCount++
	return out, nil
}

// WithStats returns a copy with recomputed centroid and member count
// (used by the reconciliation sweep).
func (c *Cluster) WithStats(centroid []float32, memberCount int) Cluster {
	out := *c
	out.centroid = centroid
	out.memberCount = memberCount
	return out
}
