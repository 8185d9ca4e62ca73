// Package post persists posts as hashes indexed by the shared FT index.
package post

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/postmesh/internal/db"
	"github.com/kailas-cloud/postmesh/internal/domain"
	dompost "github.com/kailas-cloud/postmesh/internal/domain/post"
)

// store is the consumer interface for post records (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// IndexName is the FT index covering all post hashes across scopes.
const IndexName = domain.KeyPrefix + "posts:idx"

// KeyPrefix is the hash key prefix the FT index is declared over.
const KeyPrefix = domain.KeyPrefix + "post:"

// Repo implements the post persistence contracts of the usecase layer.
type Repo struct {
	store store
}

// New creates a post repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Key builds the hash key for a post.
func Key(scope, id string) string {
	return KeyPrefix + scope + ":" + id
}

// SplitKey extracts the post id from a hash key ("" if malformed).
func SplitKey(key string) string {
	rest := strings.TrimPrefix(key, KeyPrefix)
	if rest == key {
		return ""
	}
	_, id, ok := strings.Cut(rest, ":")
	if !ok {
		return ""
	}
	return id
}

// Upsert writes a post record. Returns true if the record was created.
func (r *Repo) Upsert(ctx context.Context, p *dompost.Post) (bool, error) {
	key := Key(p.Scope(), p.ID())

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("check exists %s: %w", key, err)
	}

	if err := r.store.HSet(ctx, key, buildHashFields(p)); err != nil {
		return false, fmt.Errorf("hset %s: %w", key, err)
	}
	return !exists, nil
}

// Get returns a post by scope and id.
func (r *Repo) Get(ctx context.Context, scope, id string) (dompost.Post, error) {
	key := Key(scope, id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return dompost.Post{}, domain.ErrPostNotFound
		}
		return dompost.Post{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return parseHashFields(id, fields), nil
}

// GetMulti returns the posts for the given ids in order, skipping
// missing ones. A missing post is not an error here: the candidate
// pool can reference posts deleted between search and fetch.
func (r *Repo) GetMulti(ctx context.Context, scope string, ids []string) ([]dompost.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = Key(scope, id)
	}
	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}
	posts := make([]dompost.Post, 0, len(ids))
	for i, m := range maps {
		if m == nil {
			continue
		}
		posts = append(posts, parseHashFields(ids[i], m))
	}
	return posts, nil
}

// Exists reports whether a post record exists.
func (r *Repo) Exists(ctx context.Context, scope, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, Key(scope, id))
	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}
	return ok, nil
}

// Delete removes a post record.
func (r *Repo) Delete(ctx context.Context, scope, id string) error {
	key := Key(scope, id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrPostNotFound
	}

	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// SetCluster updates only the cluster assignment field of a post.
func (r *Repo) SetCluster(ctx context.Context, scope, id, clusterID string) error {
	key := Key(scope, id)

	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check exists %s: %w", key, err)
	}
	if !exists {
		return domain.ErrPostNotFound
	}

	if err := r.store.HSet(ctx, key, map[string]string{fieldCluster: clusterID}); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

// ListByCluster returns a page of posts assigned to a cluster.
func (r *Repo) ListByCluster(ctx context.Context, scope, clusterID string, offset, limit int) ([]dompost.Post, error) {
	query := clusterQuery(scope, clusterID)
	result, err := r.store.SearchList(ctx, IndexName, query, offset, limit, nil)
	if err != nil {
		return nil, fmt.Errorf("search list cluster %s: %w", clusterID, err)
	}
	if result == nil {
		return nil, nil
	}
	posts := make([]dompost.Post, 0, len(result.Entries))
	for _, entry := range result.Entries {
		id := SplitKey(entry.Key)
		if id == "" {
			continue
		}
		posts = append(posts, parseHashFields(id, entry.Fields))
	}
	return posts, nil
}

// CountByCluster returns the number of posts assigned to a cluster.
func (r *Repo) CountByCluster(ctx context.Context, scope, clusterID string) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName, clusterQuery(scope, clusterID))
	if err != nil {
		return 0, fmt.Errorf("search count cluster %s: %w", clusterID, err)
	}
	return n, nil
}

var tagEscaper = strings.NewReplacer("-", "\\-", ".", "\\.", ":", "\\:")

func clusterQuery(scope, clusterID string) string {
	return fmt.Sprintf("@%s:{%s} @%s:{%s}",
		fieldScope, tagEscaper.Replace(scope),
		fieldCluster, tagEscaper.Replace(clusterID),
	)
}
