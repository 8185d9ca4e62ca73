package search

import (
	"context"
	"testing"

	"github.com/kailas-cloud/postmesh/internal/db"
	"github.com/kailas-cloud/postmesh/internal/domain/search/candidate"
)

// --- Mocks ---

type mockStore struct {
	knnResult  *db.SearchResult
	knnErr     error
	knnCalls   int
	lastKNN    *db.KNNQuery
	bm25Result *db.SearchResult
	bm25Err    error
	lastBM25   *db.TextQuery
}

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.knnCalls++
	m.lastKNN = q
	return m.knnResult, m.knnErr
}

func (m *mockStore) SearchBM25(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	m.lastBM25 = q
	return m.bm25Result, m.bm25Err
}

func entry(key string, score float64, votes string) db.SearchEntry {
	fields := map[string]string{}
	if votes != "" {
		fields["votes"] = votes
	}
	return db.SearchEntry{Key: key, Score: score, Fields: fields}
}

// --- Tests ---

func TestNearestNeighbors_MapsEntries(t *testing.T) {
	store := &mockStore{knnResult: &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			entry("postmesh:post:forum:p1", 0.95, "7"),
			entry("postmesh:post:forum:p2", 0.80, ""),
		},
	}}
	repo := New(store)

	got, err := repo.NearestNeighbors(context.Background(), "forum", []float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}

	first := got[0]
	if first.DocID() != "p1" || first.Source() != candidate.Semantic {
		t.Errorf("first = %s/%s", first.DocID(), first.Source())
	}
	if first.Rank() != 1 || got[1].Rank() != 2 {
		t.Errorf("ranks = %d, %d; want 1, 2", first.Rank(), got[1].Rank())
	}
	if first.Quality() != 7 || got[1].Quality() != 0 {
		t.Errorf("quality = %v, %v", first.Quality(), got[1].Quality())
	}

	if store.lastKNN.K != 10 || len(store.lastKNN.Tags) != 1 || store.lastKNN.Tags[0].Value != "forum" {
		t.Errorf("query not scoped: %+v", store.lastKNN)
	}
}

func TestSearchAny_MapsEntries(t *testing.T) {
	store := &mockStore{bm25Result: &db.SearchResult{
		Total:   1,
		Entries: []db.SearchEntry{entry("postmesh:post:forum:p9", 2.5, "3")},
	}}
	repo := New(store)

	got, err := repo.SearchAny(context.Background(), "forum", []string{"kafka", "lag"}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Source() != candidate.Lexical || got[0].RawScore() != 2.5 {
		t.Fatalf("candidates = %+v", got)
	}
	if len(store.lastBM25.Terms) != 2 || store.lastBM25.TopK != 5 {
		t.Errorf("query not forwarded: %+v", store.lastBM25)
	}
}

func TestToCandidates_SkipsForeignKeys(t *testing.T) {
	store := &mockStore{knnResult: &db.SearchResult{
		Total: 2,
		Entries: []db.SearchEntry{
			entry("unrelated:key", 0.9, ""),
			entry("postmesh:post:forum:p1", 0.8, ""),
		},
	}}
	repo := New(store)

	got, err := repo.NearestNeighbors(context.Background(), "forum", []float32{1}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].DocID() != "p1" {
		t.Fatalf("expected only the well-formed key, got %+v", got)
	}
}

func TestNearestNeighbors_RetriesTransientFailures(t *testing.T) {
	store := &mockStore{knnErr: db.ErrIndexNotFound}
	repo := New(store)

	// Schema errors are not transient: exactly one attempt.
	if _, err := repo.NearestNeighbors(context.Background(), "forum", []float32{1}, 10); err == nil {
		t.Fatal("expected error")
	}
	if store.knnCalls != 1 {
		t.Fatalf("expected 1 attempt for a schema error, got %d", store.knnCalls)
	}
}
