// Package resultcache caches fused search results per scope.
//
// Invalidation is eager without key scans: every cache key embeds a
// per-scope version counter, and any write to the scope bumps the
// counter, orphaning all prior entries. The TTL is a backstop that
// lets orphaned entries expire.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/postmesh/internal/db"
	"github.com/kailas-cloud/postmesh/internal/domain"
	"github.com/kailas-cloud/postmesh/internal/domain/search/candidate"
	"github.com/kailas-cloud/postmesh/internal/domain/search/fused"
	"github.com/kailas-cloud/postmesh/internal/logger"
	"github.com/kailas-cloud/postmesh/internal/metrics"
)

// store is the consumer interface for cache entries (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
}

const keyPrefix = domain.KeyPrefix + "qcache:"

// Cache is the fused result cache. Every operation fails open: a cache
// outage degrades search latency, never availability.
type Cache struct {
	store store
	ttl   time.Duration
}

// New creates a result cache with the given entry TTL.
func New(s store, ttl time.Duration) *Cache {
	return &Cache{store: s, ttl: ttl}
}

// cachedResult is the storage form of one fused hit.
type cachedResult struct {
	DocID   string   `json:"doc_id"`
	Score   float64  `json:"score"`
	Sources []string `json:"sources"`
	Quality float64  `json:"quality,omitempty"`
}

// Get returns the cached fused results for a query, or ok=false on a
// miss. Store errors are logged and reported as misses.
func (c *Cache) Get(ctx context.Context, scope, query string, limit int) ([]fused.Result, bool) {
	key, err := c.entryKey(ctx, scope, query, limit)
	if err != nil {
		c.failOpen(ctx, "read version", err)
		return nil, false
	}

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.failOpen(ctx, "get entry", err)
		}
		metrics.QueryCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	var entries []cachedResult
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.failOpen(ctx, "decode entry", err)
		metrics.QueryCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	results := make([]fused.Result, 0, len(entries))
	for _, e := range entries {
		sources := make([]candidate.Source, 0, len(e.Sources))
		for _, s := range e.Sources {
			sources = append(sources, candidate.Source(s))
		}
		results = append(results, fused.New(e.DocID, e.Score, sources, e.Quality))
	}
	metrics.QueryCacheTotal.WithLabelValues("hit").Inc()
	return results, true
}

// Set stores fused results for a query. Errors are logged and dropped.
func (c *Cache) Set(ctx context.Context, scope, query string, limit int, results []fused.Result) {
	key, err := c.entryKey(ctx, scope, query, limit)
	if err != nil {
		c.failOpen(ctx, "read version", err)
		return
	}

	entries := make([]cachedResult, 0, len(results))
	for i := range results {
		r := &results[i]
		sources := make([]string, 0, len(r.Sources()))
		for _, s := range r.Sources() {
			sources = append(sources, string(s))
		}
		entries = append(entries, cachedResult{
			DocID: r.DocID(), Score: r.Score(), Sources: sources, Quality: r.Quality(),
		})
	}

	data, err := json.Marshal(entries)
	if err != nil {
		c.failOpen(ctx, "encode entry", err)
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.failOpen(ctx, "set entry", err)
	}
}

// InvalidateScope bumps the scope version counter, orphaning every
// cached query for the scope at once.
func (c *Cache) InvalidateScope(ctx context.Context, scope string) {
	if err := c.store.IncrBy(ctx, versionKey(scope), 1); err != nil {
		c.failOpen(ctx, "bump version", err)
	}
}

func (c *Cache) entryKey(ctx context.Context, scope, query string, limit int) (string, error) {
	version, err := c.scopeVersion(ctx, scope)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(normalizeQuery(query)))
	return fmt.Sprintf("%s%s:%s:%s:%d", keyPrefix, scope, version, hex.EncodeToString(sum[:]), limit), nil
}

func (c *Cache) scopeVersion(ctx context.Context, scope string) (string, error) {
	raw, err := c.store.Get(ctx, versionKey(scope))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "0", nil
		}
		return "", err
	}
	return string(raw), nil
}

func versionKey(scope string) string {
	return keyPrefix + "ver:" + scope
}

// normalizeQuery canonicalizes a query so trivially equivalent texts
// share a cache entry.
func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

func (c *Cache) failOpen(ctx context.Context, op string, err error) {
	logger.FromContext(ctx).Warn("result cache degraded", zap.String("op", op), zap.Error(err))
}
