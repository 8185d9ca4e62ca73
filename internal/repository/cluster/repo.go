// Package cluster persists topic clusters as hashes with a revision
// field for optimistic concurrency on centroid updates.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/postmesh/internal/db"
	"github.com/kailas-cloud/postmesh/internal/domain"
	domcluster "github.com/kailas-cloud/postmesh/internal/domain/cluster"
)

// store is the consumer interface for cluster records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetCAS(ctx context.Context, key, field, expected string, fields map[string]string) (bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KeyPrefix is the hash key prefix for cluster records. It is disjoint
// from the post prefix so the FT index never picks clusters up.
const KeyPrefix = domain.KeyPrefix + "cluster:"

// Repo implements the cluster persistence contracts of the usecase layer.
type Repo struct {
	store store
}

// New creates a cluster repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Key builds the hash key for a cluster.
func Key(scope, id string) string {
	return KeyPrefix + scope + ":" + id
}

func splitKey(key string) (scope, id string) {
	rest := strings.TrimPrefix(key, KeyPrefix)
	if rest == key {
		return "", ""
	}
	scope, id, ok := strings.Cut(rest, ":")
	if !ok {
		return "", ""
	}
	return scope, id
}

// Create writes a brand-new cluster record.
func (r *Repo) Create(ctx context.Context, c *domcluster.Cluster) error {
	key := Key(c.Scope(), c.ID())
	if err := r.store.HSet(ctx, key, buildHashFields(c)); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// Get returns a cluster by scope and id.
func (r *Repo) Get(ctx context.Context, scope, id string) (domcluster.Cluster, error) {
	key := Key(scope, id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domcluster.Cluster{}, domain.ErrClusterNotFound
		}
		return domcluster.Cluster{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return parseHashFields(id, fields), nil
}

// Put persists an updated cluster if its stored revision still equals
// expectedRevision, bumping the revision. The check and the write run
// as one server-side step, so concurrent writers across processes
// cannot both pass it. A mismatch means another writer got there first
// and returns ErrAssignmentConflict: the caller re-reads and retries
// once.
func (r *Repo) Put(ctx context.Context, c *domcluster.Cluster, expectedRevision int) error {
	key := Key(c.Scope(), c.ID())

	out := buildHashFields(c)
	out[fieldRevision] = strconv.Itoa(expectedRevision + 1)

	swapped, err := r.store.HSetCAS(ctx, key, fieldRevision, strconv.Itoa(expectedRevision), out)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.ErrClusterNotFound
		}
		return fmt.Errorf("hset cas %s: %w", key, err)
	}
	if !swapped {
		return fmt.Errorf("cluster %s no longer at revision %d: %w",
			c.ID(), expectedRevision, domain.ErrAssignmentConflict)
	}
	return nil
}

// ListByScope returns all clusters in a scope. Cluster cardinality is
// orders of magnitude below post cardinality, so a SCAN is acceptable.
func (r *Repo) ListByScope(ctx context.Context, scope string) ([]domcluster.Cluster, error) {
	return r.list(ctx, KeyPrefix+scope+":*")
}

// ListAll returns every cluster across scopes (reconciliation sweep).
func (r *Repo) ListAll(ctx context.Context) ([]domcluster.Cluster, error) {
	return r.list(ctx, KeyPrefix+"*")
}

func (r *Repo) list(ctx context.Context, pattern string) ([]domcluster.Cluster, error) {
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}

	clusters := make([]domcluster.Cluster, 0, len(keys))
	for i, m := range maps {
		if m == nil {
			continue
		}
		_, id := splitKey(keys[i])
		if id == "" {
			continue
		}
		clusters = append(clusters, parseHashFields(id, m))
	}
	return clusters, nil
}
