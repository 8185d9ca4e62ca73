// Package cluster assigns posts to topic clusters over a narrowed
// candidate subset instead of a full-corpus clustering pass.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/postmesh/internal/domain"
	domcluster "github.com/kailas-cloud/postmesh/internal/domain/cluster"
	"github.com/kailas-cloud/postmesh/internal/domain/keywords"
	dompost "github.com/kailas-cloud/postmesh/internal/domain/post"
	"github.com/kailas-cloud/postmesh/internal/domain/search/candidate"
	"github.com/kailas-cloud/postmesh/internal/domain/search/fused"
	"github.com/kailas-cloud/postmesh/internal/domain/termvec"
	"github.com/kailas-cloud/postmesh/internal/logger"
	"github.com/kailas-cloud/postmesh/internal/metrics"
	"github.com/kailas-cloud/postmesh/internal/usecase/search"
)

// Config tunes cluster assignment.
type Config struct {
	JoinThreshold  float64 // minimum pairwise similarity to join an existing cluster
	CandidateLimit int     // hard cap on the fused candidate pool
	MaxKeywords    int
	Fusion         search.FusionConfig
	AdapterTimeout time.Duration
	LabelTerms     int // keywords used for the auto-label of a new cluster
}

// DefaultConfig returns the standard assignment settings.
func DefaultConfig() Config {
	return Config{
		JoinThreshold:  0.5,
		CandidateLimit: 200,
		MaxKeywords:    keywords.DefaultMaxTerms,
		Fusion:         search.DefaultFusionConfig(),
		AdapterTimeout: 2 * time.Second,
		LabelTerms:     3,
	}
}

// Service performs candidate-subset cluster assignment: extract
// keywords, pull a narrowed candidate pool through both retrieval
// adapters, fuse it, and compare term-frequency vectors pairwise.
type Service struct {
	posts    PostStore
	clusters ClusterStore
	lexical  LexicalAdapter
	semantic SemanticAdapter
	embed    Embedder
	cache    Invalidator
	locks    *keyedMutex
	cfg      Config
	newID    func() string
}

// New creates a cluster assignment service.
func New(
	posts PostStore, clusters ClusterStore,
	lexical LexicalAdapter, semantic SemanticAdapter,
	embed Embedder, cache Invalidator, cfg Config,
) *Service {
	return &Service{
		posts: posts, clusters: clusters,
		lexical: lexical, semantic: semantic,
		embed: embed, cache: cache,
		locks: newKeyedMutex(), cfg: cfg,
		newID: uuid.NewString,
	}
}

// Reassign recomputes the cluster assignment for one post. A post
// deleted since scheduling is a benign no-op. The operation is
// idempotent: re-running for an unchanged post lands on the same
// cluster and skips the centroid update.
func (s *Service) Reassign(ctx context.Context, scope, postID string) error {
	start := time.Now()
	outcome, err := s.reassign(ctx, scope, postID)
	metrics.AssignmentsTotal.WithLabelValues(outcome).Inc()
	metrics.AssignmentDuration.Observe(time.Since(start).Seconds())
	return err
}

func (s *Service) reassign(ctx context.Context, scope, postID string) (string, error) {
	log := logger.FromContext(ctx).With(zap.String("scope", scope), zap.String("post_id", postID))

	p, err := s.posts.Get(ctx, scope, postID)
	if err != nil {
		if errors.Is(err, domain.ErrPostNotFound) {
			log.Debug("post gone before reassignment")
			return "skipped", nil
		}
		return "error", fmt.Errorf("get post: %w", err)
	}

	p, err = s.ensureVector(ctx, p)
	if err != nil {
		return "error", err
	}

	terms := keywords.Extract(p.Text(), s.cfg.MaxKeywords)
	pool := s.candidates(ctx, &p, terms, log)

	target, sim := s.pickCluster(ctx, &p, pool, log)
	if target != "" {
		if target == p.ClusterID() {
			log.Debug("already in best cluster", zap.String("cluster_id", target))
			return "skipped", nil
		}
		if err := s.join(ctx, &p, target); err != nil {
			return "error", err
		}
		log.Info("post joined cluster",
			zap.String("cluster_id", target), zap.Float64("similarity", sim))
		s.cache.InvalidateScope(ctx, scope)
		return "joined", nil
	}

	clusterID, err := s.createCluster(ctx, &p, terms)
	if err != nil {
		return "error", err
	}
	log.Info("post seeded new cluster", zap.String("cluster_id", clusterID))
	s.cache.InvalidateScope(ctx, scope)
	return "created", nil
}

// ensureVector embeds the post text when the stored vector is missing
// or stale (cleared on edit), persisting the refreshed record.
func (s *Service) ensureVector(ctx context.Context, p dompost.Post) (dompost.Post, error) {
	if p.HasVector() {
		return p, nil
	}
	emb, err := s.embed.Embed(ctx, p.Text())
	if err != nil {
		return dompost.Post{}, fmt.Errorf("embed post %s: %w", p.ID(), err)
	}
	p = p.WithVector(domain.NormalizeVector(emb.Embedding))
	if _, err := s.posts.Upsert(ctx, &p); err != nil {
		return dompost.Post{}, fmt.Errorf("persist vector: %w", err)
	}
	return p, nil
}

// candidates pulls the narrowed pool through both adapters and fuses
// it. Either source failing drops to the survivor; both failing means
// an empty pool, which falls through to creating a new cluster.
func (s *Service) candidates(ctx context.Context, p *dompost.Post, terms []string, log *zap.Logger) []fused.Result {
	var lexical, semantic []candidate.Candidate
	var lexErr, semErr error

	if len(terms) > 0 {
		lctx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
		lexical, lexErr = s.lexical.SearchAny(lctx, p.Scope(), terms, s.cfg.CandidateLimit)
		cancel()
	}
	sctx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
	semantic, semErr = s.semantic.NearestNeighbors(sctx, p.Scope(), p.Vector(), s.cfg.CandidateLimit)
	cancel()

	if lexErr != nil {
		log.Warn("lexical candidate fetch failed", zap.Error(lexErr))
	}
	if semErr != nil {
		log.Warn("semantic candidate fetch failed", zap.Error(semErr))
	}

	return search.Fuse(lexical, semantic, s.cfg.Fusion, s.cfg.CandidateLimit)
}

// pickCluster compares term-frequency vectors pairwise against the
// candidate pool and returns the cluster of the best usable candidate
// at or above the join threshold ("" to create a new cluster).
// Similarity ties break toward the candidate with the lowest post id,
// keeping assignment deterministic.
func (s *Service) pickCluster(ctx context.Context, p *dompost.Post, pool []fused.Result, log *zap.Logger) (string, float64) {
	own := termvec.FromText(p.Text())
	if own.IsZero() || len(pool) == 0 {
		return "", 0
	}

	ids := make([]string, 0, len(pool))
	for i := range pool {
		if id := pool[i].DocID(); id != p.ID() {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return "", 0
	}

	others, err := s.posts.GetMulti(ctx, p.Scope(), ids)
	if err != nil {
		log.Warn("candidate fetch failed", zap.Error(err))
		return "", 0
	}

	var bestID, bestCluster string
	var bestSim float64
	for i := range others {
		o := &others[i]
		if o.ClusterID() == "" || o.Text() == "" {
			continue
		}
		ov := termvec.FromText(o.Text())
		if ov.IsZero() {
			continue
		}
		sim := termvec.Cosine(own, ov)
		if sim > bestSim || (sim == bestSim && bestID != "" && o.ID() < bestID) {
			bestID, bestCluster, bestSim = o.ID(), o.ClusterID(), sim
		}
	}

	if bestSim < s.cfg.JoinThreshold {
		return "", bestSim
	}
	return bestCluster, bestSim
}

// join folds the post into an existing cluster: absorb the vector into
// the centroid under the per-cluster lock, retrying once on a revision
// conflict, then move the membership pointer.
func (s *Service) join(ctx context.Context, p *dompost.Post, clusterID string) error {
	oldCluster := p.ClusterID()

	if err := s.absorb(ctx, p, clusterID); err != nil {
		return err
	}
	if err := s.posts.SetCluster(ctx, p.Scope(), p.ID(), clusterID); err != nil {
		return fmt.Errorf("set cluster: %w", err)
	}
	if oldCluster != "" {
		s.release(ctx, p.Scope(), oldCluster)
	}
	return nil
}

func (s *Service) absorb(ctx context.Context, p *dompost.Post, clusterID string) error {
	unlock := s.locks.Lock(clusterID)
	defer unlock()

	for attempt := 0; ; attempt++ {
		c, err := s.clusters.Get(ctx, p.Scope(), clusterID)
		if err != nil {
			return fmt.Errorf("get cluster %s: %w", clusterID, err)
		}
		next, err := c.Absorb(p.Vector())
		if err != nil {
			return fmt.Errorf("absorb into %s: %w", clusterID, err)
		}
		err = s.clusters.Put(ctx, &next, c.Revision())
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrAssignmentConflict) || attempt >= 1 {
			return fmt.Errorf("put cluster %s: %w", clusterID, err)
		}
	}
}

// release decrements the membership of the cluster a post left.
// Best-effort: drift is repaired by the reconciliation sweep. An
// emptied cluster is kept at zero members; removal is an explicit
// administrative action, never automatic.
func (s *Service) release(ctx context.Context, scope, clusterID string) {
	log := logger.FromContext(ctx)

	unlock := s.locks.Lock(clusterID)
	defer unlock()

	c, err := s.clusters.Get(ctx, scope, clusterID)
	if err != nil {
		if !errors.Is(err, domain.ErrClusterNotFound) {
			log.Warn("release old cluster", zap.String("cluster_id", clusterID), zap.Error(err))
		}
		return
	}
	next := c.WithStats(c.Centroid(), max(0, c.MemberCount()-1))
	if err := s.clusters.Put(ctx, &next, c.Revision()); err != nil {
		log.Warn("shrink old cluster", zap.String("cluster_id", clusterID), zap.Error(err))
	}
}

func (s *Service) createCluster(ctx context.Context, p *dompost.Post, terms []string) (string, error) {
	oldCluster := p.ClusterID()

	id := s.newID()
	c, err := domcluster.New(id, p.Scope(), label(terms, s.cfg.LabelTerms), p.Vector())
	if err != nil {
		return "", fmt.Errorf("new cluster: %w", err)
	}
	if err := s.clusters.Create(ctx, &c); err != nil {
		return "", fmt.Errorf("create cluster: %w", err)
	}
	if err := s.posts.SetCluster(ctx, p.Scope(), p.ID(), id); err != nil {
		return "", fmt.Errorf("set cluster: %w", err)
	}
	if oldCluster != "" {
		s.release(ctx, p.Scope(), oldCluster)
	}
	return id, nil
}

// label derives a human-readable cluster label from the seed post's
// top keywords.
func label(terms []string, n int) string {
	if n <= 0 {
		n = 3
	}
	if len(terms) > n {
		terms = terms[:n]
	}
	return strings.Join(terms, " ")
}
