package post

import (
	"fmt"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// MaxTextSize is the maximum post text size in bytes.
const MaxTextSize = 65536 // 64KB, short-form posts

// Post is the post aggregate (immutable value object).
// A post with a cluster id always carries a non-nil vector.
type Post struct {
	id        string
	scope     string
	text      string
	vector    []float32
	clusterID string
	createdAt int64
	updatedAt int64
}

// New validates and creates a Post.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars. Text: non-empty, max 64KB. Scope: required.
func New(id, scope, text string, now int64) (Post, error) {
	if id == "" {
		return Post{}, fmt.Errorf("post ID is required")
	}
	if len(id) > 256 {
		return Post{}, fmt.Errorf("post ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Post{}, fmt.Errorf("post ID must be alphanumeric with underscores and hyphens")
	}
	if scope == "" {
		return Post{}, fmt.Errorf("scope is required")
	}
	if !idRegex.MatchString(scope) {
		return Post{}, fmt.Errorf("scope must be alphanumeric with underscores and hyphens")
	}
	if text == "" {
		return Post{}, fmt.Errorf("text is required")
	}
	if len(text) > MaxTextSize {
		return Post{}, fmt.Errorf("text too large (max %d bytes)", MaxTextSize)
	}

	return Post{id: id, scope: scope, text: text, createdAt: now, updatedAt: now}, nil
}

// Reconstruct creates a Post without validation (storage hydration).
func Reconstruct(
	id, scope, text string, vector []float32, clusterID string,
	createdAt, updatedAt int64,
) Post {
	return Post{
		id: id, scope: scope, text: text, vector: vector,
		clusterID: clusterID, createdAt: createdAt, updatedAt: updatedAt,
	}
}

// ID returns the post identifier.
func (p *Post) ID() string { return p.id }

// Scope returns the partition the post belongs to.
func (p *Post) Scope() string { return p.scope }

// Text returns the post text.
func (p *Post) Text() string { return p.text }

// Vector returns the embedding vector (nil until computed).
func (p *Post) Vector() []float32 { return p.vector }

// HasVector reports whether the embedding has been computed.
func (p *Post) HasVector() bool { return len(p.vector) > 0 }

// ClusterID returns the assigned cluster id ("" if unclustered).
func (p *Post) ClusterID() string { return p.clusterID }

// CreatedAt returns the creation time (unix seconds).
func (p *Post) CreatedAt() int64 { return p.createdAt }

// UpdatedAt returns the last edit time (unix seconds).
func (p *Post) UpdatedAt() int64 { return p.updatedAt }

// WithVector returns a copy with the given vector set.
func (p *Post) WithVector(v []float32) Post {
	c := *p
	c.vector = v
	return c
}

// WithCluster returns a copy assigned to the given cluster.
func (p *Post) WithCluster(clusterID string) Post {
	c := *p
	c.clusterID = clusterID
	return c
}

// WithText returns a copy with edited text. The vector is cleared
// (stale until re-embedded) and the cluster assignment is kept.
func (p *Post) WithText(text string, now int64) Post {
	c := *p
	c.text = text
	c.vector = nil
	c.updatedAt = now
	return c
}
