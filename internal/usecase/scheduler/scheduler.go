// Package scheduler debounces cluster reassignment: rapid edits to
// one post coalesce into a single run after a quiet window.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/postmesh/internal/logger"
	"github.com/kailas-cloud/postmesh/internal/metrics"
)

// Assigner runs the actual reassignment.
type Assigner interface {
	Reassign(ctx context.Context, scope, postID string) error
}

// ExistenceChecker re-checks the post right before the timer fires.
type ExistenceChecker interface {
	Exists(ctx context.Context, scope, id string) (bool, error)
}

type pending struct {
	generation uint64
	timer      *time.Timer
}

// Scheduler holds one pending timer per post. Scheduling again within
// the quiet window bumps the generation and resets the timer; a fire
// whose generation was superseded does nothing. State is in-memory
// only: a restart drops pending work, and the reconciliation sweep
// plus the next edit cover the gap.
type Scheduler struct {
	assigner Assigner
	posts    ExistenceChecker
	quiet    time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	penders map[string]*pending
	wg      sync.WaitGroup
	closed  bool
}

// New creates a debounce scheduler with the given quiet window.
func New(assigner Assigner, posts ExistenceChecker, quiet time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		assigner: assigner,
		posts:    posts,
		quiet:    quiet,
		logger:   logger,
		penders:  make(map[string]*pending),
	}
}

// Schedule queues a reassignment for the post after the quiet window,
// coalescing with any timer already pending for it.
func (s *Scheduler) Schedule(scope, postID string) {
	metrics.DebounceScheduledTotal.Inc()
	key := scope + "/" + postID

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	p, ok := s.penders[key]
	if !ok {
		p = &pending{}
		s.penders[key] = p
	}
	p.generation++
	gen := p.generation

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(s.quiet, func() {
		s.fire(key, scope, postID, gen)
	})
}

// fire runs when a quiet window elapses. The generation check under
// the same mutex guarantees only the latest schedule for a post runs.
func (s *Scheduler) fire(key, scope, postID string, gen uint64) {
	s.mu.Lock()
	p, ok := s.penders[key]
	if !ok || p.generation != gen || s.closed {
		s.mu.Unlock()
		metrics.DebounceFiredTotal.WithLabelValues("superseded").Inc()
		return
	}
	delete(s.penders, key)
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()

	ctx := logger.ContextWithLogger(context.Background(), s.logger)

	exists, err := s.posts.Exists(ctx, scope, postID)
	if err == nil && !exists {
		metrics.DebounceFiredTotal.WithLabelValues("missing").Inc()
		return
	}

	metrics.DebounceFiredTotal.WithLabelValues("run").Inc()
	if err := s.assigner.Reassign(ctx, scope, postID); err != nil {
		s.logger.Error("debounced reassignment failed",
			zap.String("scope", scope), zap.String("post_id", postID), zap.Error(err))
	}
}

// Close stops all pending timers and waits for in-flight runs.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for key, p := range s.penders {
		if p.timer != nil {
			p.timer.Stop()
		}
		delete(s.penders, key)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
