// Package search adapts FT.SEARCH into the two ranked candidate lists
// the fusion layer consumes: BM25 term matches and KNN neighbors.
package search

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/postmesh/internal/db"
	"github.com/kailas-cloud/postmesh/internal/domain/search/candidate"
	"github.com/kailas-cloud/postmesh/internal/repository/post"
	"github.com/kailas-cloud/postmesh/internal/retry"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo implements the lexical and semantic adapter contracts.
type Repo struct {
	store store
	retry retry.Policy
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s, retry: retry.DefaultPolicy()}
}

// NearestNeighbors returns the semantic candidate list for a scope,
// ranked by vector similarity.
func (r *Repo) NearestNeighbors(ctx context.Context, scope string, vector []float32, limit int) ([]candidate.Candidate, error) {
	q := &db.KNNQuery{
		IndexName:    post.IndexName,
		Tags:         []db.TagFilter{{Field: "scope", Value: scope}},
		Vector:       vector,
		K:            limit,
		ReturnFields: []string{"votes"},
	}

	var sr *db.SearchResult
	err := retry.Do(ctx, r.retry, func(ctx context.Context) error {
		var err error
		sr, err = r.store.SearchKNN(ctx, q)
		return err
	}, retryable)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}

	return toCandidates(sr, candidate.Semantic), nil
}

// SearchAny returns the lexical candidate list for a scope: posts
// matching any of the terms, ranked by BM25 score.
func (r *Repo) SearchAny(ctx context.Context, scope string, terms []string, limit int) ([]candidate.Candidate, error) {
	q := &db.TextQuery{
		IndexName:    post.IndexName,
		Field:        "text",
		Terms:        terms,
		Tags:         []db.TagFilter{{Field: "scope", Value: scope}},
		TopK:         limit,
		ReturnFields: []string{"votes"},
	}

	var sr *db.SearchResult
	err := retry.Do(ctx, r.retry, func(ctx context.Context) error {
		var err error
		sr, err = r.store.SearchBM25(ctx, q)
		return err
	}, retryable)
	if err != nil {
		return nil, fmt.Errorf("search bm25: %w", err)
	}

	return toCandidates(sr, candidate.Lexical), nil
}

// retryable classifies transient store failures. Schema problems and
// caller cancellation never retry.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, db.ErrIndexNotFound) {
		return false
	}
	return true
}

func toCandidates(sr *db.SearchResult, src candidate.Source) []candidate.Candidate {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	out := make([]candidate.Candidate, 0, len(sr.Entries))
	for i, entry := range sr.Entries {
		docID := post.SplitKey(entry.Key)
		if docID == "" {
			continue
		}
		quality, _ := strconv.ParseFloat(entry.Fields["votes"], 64)
		out = append(out, candidate.New(docID, src, i+1, entry.Score, quality))
	}
	return out
}
