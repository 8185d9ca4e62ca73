// Package sweep reconciles cluster statistics against actual post
// membership. Member counts and centroids drift under best-effort
// decrements and races; the sweep recomputes both from storage.
package sweep

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/postmesh/internal/domain"
	domcluster "github.com/kailas-cloud/postmesh/internal/domain/cluster"
	dompost "github.com/kailas-cloud/postmesh/internal/domain/post"
	"github.com/kailas-cloud/postmesh/internal/logger"
)

// ClusterStore is the cluster persistence contract for the sweep.
type ClusterStore interface {
	ListAll(ctx context.Context) ([]domcluster.Cluster, error)
	Put(ctx context.Context, c *domcluster.Cluster, expectedRevision int) error
}

// PostStore pages through cluster members.
type PostStore interface {
	ListByCluster(ctx context.Context, scope, clusterID string, offset, limit int) ([]dompost.Post, error)
}

const pageSize = 100

// Service is the periodic reconciliation sweep.
type Service struct {
	clusters ClusterStore
	posts    PostStore
	interval time.Duration
	logger   *zap.Logger
}

// New creates a sweep service.
func New(clusters ClusterStore, posts PostStore, interval time.Duration, logger *zap.Logger) *Service {
	return &Service{clusters: clusters, posts: posts, interval: interval, logger: logger}
}

// Run executes sweeps on the configured interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce reconciles every cluster. Individual cluster failures are
// logged and skipped so one bad record never stalls the sweep.
func (s *Service) RunOnce(ctx context.Context) error {
	ctx = logger.ContextWithLogger(ctx, s.logger)

	clusters, err := s.clusters.ListAll(ctx)
	if err != nil {
		return err
	}

	var repaired int
	for i := range clusters {
		c := &clusters[i]
		changed, err := s.reconcile(ctx, c)
		if err != nil {
			s.logger.Warn("reconcile cluster",
				zap.String("scope", c.Scope()), zap.String("cluster_id", c.ID()), zap.Error(err))
			continue
		}
		if changed {
			repaired++
		}
	}

	s.logger.Info("reconciliation sweep done",
		zap.Int("clusters", len(clusters)), zap.Int("repaired", repaired))
	return nil
}

// reconcile recomputes one cluster's member count and centroid from
// its actual members. An emptied cluster is corrected to zero members
// but never removed (removal is an administrative action); a revision
// conflict means a concurrent assignment touched the cluster, so the
// stale recomputation is discarded and left for the next sweep.
func (s *Service) reconcile(ctx context.Context, c *domcluster.Cluster) (changed bool, err error) {
	count, centroid, err := s.aggregate(ctx, c)
	if err != nil {
		return false, err
	}

	if centroid == nil {
		centroid = c.Centroid()
	}
	if count == c.MemberCount() && vectorsClose(centroid, c.Centroid()) {
		return false, nil
	}

	next := c.WithStats(centroid, count)
	if err := s.clusters.Put(ctx, &next, c.Revision()); err != nil {
		if errors.Is(err, domain.ErrAssignmentConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// aggregate pages through the cluster's members and returns the true
// count plus the mean vector (nil when no member vectors match the
// centroid dimension).
func (s *Service) aggregate(ctx context.Context, c *domcluster.Cluster) (int, []float32, error) {
	dim := len(c.Centroid())
	sum := make([]float64, dim)
	var count, vectored int

	for offset := 0; ; offset += pageSize {
		page, err := s.posts.ListByCluster(ctx, c.Scope(), c.ID(), offset, pageSize)
		if err != nil {
			return 0, nil, err
		}
		for i := range page {
			count++
			v := page[i].Vector()
			if len(v) != dim {
				continue
			}
			vectored++
			for j, f := range v {
				sum[j] += float64(f)
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	if vectored == 0 {
		return count, nil, nil
	}
	centroid := make([]float32, dim)
	for j := range sum {
		centroid[j] = float32(sum[j] / float64(vectored))
	}
	return count, centroid, nil
}

// vectorsClose tolerates float drift from incremental centroid updates.
func vectorsClose(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		d := a[i] - b[i]
		if d > 1e-4 || d < -1e-4 {
			return false
		}
	}
	return true
}
