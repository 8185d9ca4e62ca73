// Package post implements the post write and read path. Every write
// invalidates the scope's query cache and queues a debounced cluster
// reassignment.
package post

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/postmesh/internal/domain"
	dompost "github.com/kailas-cloud/postmesh/internal/domain/post"
	"github.com/kailas-cloud/postmesh/internal/logger"
)

// Service handles post CRUD.
type Service struct {
	repo       Repository
	embed      Embedder
	debounce   Debouncer
	cache      Invalidator
	dimensions int
	now        func() int64
}

// New creates a post service. dimensions is the expected embedding
// width; a provider response of any other width is rejected.
func New(repo Repository, embed Embedder, debounce Debouncer, cache Invalidator, dimensions int) *Service {
	return &Service{
		repo: repo, embed: embed, debounce: debounce, cache: cache,
		dimensions: dimensions,
		now:        func() int64 { return time.Now().Unix() },
	}
}

// Create validates and stores a new post, then queues clustering.
// Returns the stored post and whether it was created (false = replaced).
func (s *Service) Create(ctx context.Context, scope, id, text string) (dompost.Post, bool, error) {
	p, err := dompost.New(id, scope, text, s.now())
	if err != nil {
		return dompost.Post{}, false, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	p = s.withVector(ctx, p)

	created, err := s.repo.Upsert(ctx, &p)
	if err != nil {
		return dompost.Post{}, false, fmt.Errorf("upsert post: %w", err)
	}

	s.afterWrite(ctx, scope, id)
	return p, created, nil
}

// Update replaces a post's text. The stale vector is cleared and the
// cluster assignment is kept until the debounced reassignment runs.
func (s *Service) Update(ctx context.Context, scope, id, text string) (dompost.Post, error) {
	if _, err := dompost.New(id, scope, text, 0); err != nil {
		return dompost.Post{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	p, err := s.repo.Get(ctx, scope, id)
	if err != nil {
		return dompost.Post{}, fmt.Errorf("get post: %w", err)
	}

	p = p.WithText(text, s.now())
	p = s.withVector(ctx, p)

	if _, err := s.repo.Upsert(ctx, &p); err != nil {
		return dompost.Post{}, fmt.Errorf("upsert post: %w", err)
	}

	s.afterWrite(ctx, scope, id)
	return p, nil
}

// Get returns a post by scope and id.
func (s *Service) Get(ctx context.Context, scope, id string) (dompost.Post, error) {
	return s.repo.Get(ctx, scope, id)
}

// Delete removes a post. The cluster it belonged to keeps a stale
// member count until the reconciliation sweep runs.
func (s *Service) Delete(ctx context.Context, scope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.cache.InvalidateScope(ctx, scope)
	return nil
}

// withVector embeds the post text. An embedding failure does not fail
// the write: the post lands without a vector and the debounced
// reassignment embeds it once the provider recovers.
func (s *Service) withVector(ctx context.Context, p dompost.Post) dompost.Post {
	emb, err := s.embed.Embed(ctx, p.Text())
	if err != nil {
		logger.FromContext(ctx).Warn("embedding deferred",
			zap.String("post_id", p.ID()), zap.Error(err))
		return p
	}
	if s.dimensions > 0 && len(emb.Embedding) != s.dimensions {
		logger.FromContext(ctx).Warn("embedding dimension mismatch, deferred",
			zap.String("post_id", p.ID()),
			zap.Int("got", len(emb.Embedding)), zap.Int("want", s.dimensions))
		return p
	}
	return p.WithVector(domain.NormalizeVector(emb.Embedding))
}

func (s *Service) afterWrite(ctx context.Context, scope, id string) {
	s.cache.InvalidateScope(ctx, scope)
	s.debounce.Schedule(scope, id)
}
