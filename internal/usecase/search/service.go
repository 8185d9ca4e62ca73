package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/postmesh/internal/domain"
	"github.com/kailas-cloud/postmesh/internal/domain/keywords"
	"github.com/kailas-cloud/postmesh/internal/domain/search/candidate"
	"github.com/kailas-cloud/postmesh/internal/domain/search/fused"
	"github.com/kailas-cloud/postmesh/internal/logger"
	"github.com/kailas-cloud/postmesh/internal/metrics"
)

// Config tunes the query path.
type Config struct {
	Fusion         FusionConfig
	AdapterTimeout time.Duration
	DefaultLimit   int
	MaxLimit       int
}

// DefaultConfig returns the standard query path settings.
func DefaultConfig() Config {
	return Config{
		Fusion:         DefaultFusionConfig(),
		AdapterTimeout: 2 * time.Second,
		DefaultLimit:   20,
		MaxLimit:       100,
	}
}

// Response carries fused hits plus which sources failed to contribute.
type Response struct {
	Results  []fused.Result
	Degraded []candidate.Source
}

// Service executes hybrid queries: both ranked lists in parallel, then
// weighted Reciprocal Rank Fusion. Losing one source degrades the
// response; losing both fails it.
type Service struct {
	lexical  LexicalAdapter
	semantic SemanticAdapter
	embed    Embedder
	cache    ResultCache
	cfg      Config
}

// New creates a search service.
func New(lexical LexicalAdapter, semantic SemanticAdapter, embed Embedder, cache ResultCache, cfg Config) *Service {
	return &Service{lexical: lexical, semantic: semantic, embed: embed, cache: cache, cfg: cfg}
}

// Query runs a hybrid search over one scope.
func (s *Service) Query(ctx context.Context, scope, query string, limit int) (Response, error) {
	start := time.Now()
	resp, err := s.query(ctx, scope, query, limit)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return Response{}, err
	}

	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if len(resp.Degraded) > 0 {
		metrics.SearchRequestsTotal.WithLabelValues("degraded").Inc()
	} else {
		metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	}
	return resp, nil
}

func (s *Service) query(ctx context.Context, scope, query string, limit int) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, fmt.Errorf("empty query: %w", domain.ErrInvalidInput)
	}
	limit = s.clampLimit(limit)

	if cached, ok := s.cache.Get(ctx, scope, query, limit); ok {
		return Response{Results: cached}, nil
	}

	lexical, semantic, degraded, err := s.gather(ctx, scope, query, limit)
	if err != nil {
		return Response{}, err
	}

	results := Fuse(lexical, semantic, s.cfg.Fusion, limit)

	// Only complete responses are worth replaying from cache.
	if len(degraded) == 0 {
		s.cache.Set(ctx, scope, query, limit, results)
	}
	return Response{Results: results, Degraded: degraded}, nil
}

// gather fans both adapters out with independent deadlines. A failed
// source is dropped and reported; both failing is a hard error.
func (s *Service) gather(ctx context.Context, scope, query string, limit int) (
	lexical, semantic []candidate.Candidate, degraded []candidate.Source, err error,
) {
	var lexErr, semErr error

	g, gctx := errgroup.WithContext(ctx)

	// A query with no searchable tokens (pure punctuation) has nothing
	// for BM25; only the semantic arm runs.
	if terms := keywords.Tokenize(query); len(terms) > 0 {
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(gctx, s.cfg.AdapterTimeout)
			defer cancel()
			lexical, lexErr = s.lexical.SearchAny(lctx, scope, terms, limit)
			return nil
		})
	}

	g.Go(func() error {
		emb, embErr := s.embed.Embed(gctx, query)
		if embErr != nil {
			semErr = fmt.Errorf("vectorize query: %w", embErr)
			return nil
		}
		sctx, cancel := context.WithTimeout(gctx, s.cfg.AdapterTimeout)
		defer cancel()
		semantic, semErr = s.semantic.NearestNeighbors(sctx, scope, domain.NormalizeVector(emb.Embedding), limit)
		return nil
	})

	_ = g.Wait()

	log := logger.FromContext(ctx)
	if lexErr != nil {
		log.Warn("lexical source failed", zap.String("scope", scope), zap.Error(lexErr))
		metrics.SearchDegradedTotal.WithLabelValues(string(candidate.Lexical)).Inc()
		degraded = append(degraded, candidate.Lexical)
	}
	if semErr != nil {
		log.Warn("semantic source failed", zap.String("scope", scope), zap.Error(semErr))
		metrics.SearchDegradedTotal.WithLabelValues(string(candidate.Semantic)).Inc()
		degraded = append(degraded, candidate.Semantic)
	}
	if lexErr != nil && semErr != nil {
		return nil, nil, nil, fmt.Errorf("all ranking sources failed: %w (lexical: %v)", semErr, lexErr)
	}
	return lexical, semantic, degraded, nil
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}
