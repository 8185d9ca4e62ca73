package search

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/postmesh/internal/domain"
	"github.com/kailas-cloud/postmesh/internal/domain/search/candidate"
	"github.com/kailas-cloud/postmesh/internal/domain/search/fused"
)

// --- Mocks ---

type mockLexical struct {
	results []candidate.Candidate
	err     error
	called  bool
}

func (m *mockLexical) SearchAny(_ context.Context, _ string, _ []string, _ int) ([]candidate.Candidate, error) {
	m.called = true
	return m.results, m.err
}

type mockSemantic struct {
	results []candidate.Candidate
	err     error
	called  bool
}

func (m *mockSemantic) NearestNeighbors(_ context.Context, _ string, _ []float32, _ int) ([]candidate.Candidate, error) {
	m.called = true
	return m.results, m.err
}

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockCache struct {
	hit      []fused.Result
	getCount int
	setCount int
}

func (m *mockCache) Get(_ context.Context, _, _ string, _ int) ([]fused.Result, bool) {
	m.getCount++
	return m.hit, m.hit != nil
}

func (m *mockCache) Set(_ context.Context, _, _ string, _ int, _ []fused.Result) {
	m.setCount++
}

func newService(l *mockLexical, s *mockSemantic, e *mockEmbedder, c *mockCache) *Service {
	return New(l, s, e, c, DefaultConfig())
}

// --- Tests ---

func TestQuery_EmptyQuery(t *testing.T) {
	svc := newService(&mockLexical{}, &mockSemantic{}, &mockEmbedder{vec: []float32{1}}, &mockCache{})

	_, err := svc.Query(context.Background(), "scope", "   ", 10)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestQuery_FusesBothSources(t *testing.T) {
	lexical := &mockLexical{results: []candidate.Candidate{lex("a", 1), lex("b", 2)}}
	semantic := &mockSemantic{results: []candidate.Candidate{sem("b", 1), sem("c", 2)}}
	cache := &mockCache{}
	svc := newService(lexical, semantic, &mockEmbedder{vec: []float32{1, 0}}, cache)

	resp, err := svc.Query(context.Background(), "scope", "hello world", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Degraded) != 0 {
		t.Errorf("unexpected degradation: %v", resp.Degraded)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(resp.Results))
	}
	if resp.Results[0].DocID() != "b" {
		t.Errorf("expected doc in both lists first, got %s", resp.Results[0].DocID())
	}
	if cache.setCount != 1 {
		t.Errorf("expected 1 cache set, got %d", cache.setCount)
	}
}

func TestQuery_CacheHitSkipsAdapters(t *testing.T) {
	lexical := &mockLexical{}
	semantic := &mockSemantic{}
	cache := &mockCache{hit: []fused.Result{fused.New("a", 0.5, nil, 0)}}
	svc := newService(lexical, semantic, &mockEmbedder{vec: []float32{1}}, cache)

	resp, err := svc.Query(context.Background(), "scope", "hello", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].DocID() != "a" {
		t.Fatalf("expected cached result, got %+v", resp.Results)
	}
	if lexical.called || semantic.called {
		t.Error("adapters must not run on a cache hit")
	}
}

func TestQuery_DegradesOnLexicalFailure(t *testing.T) {
	lexical := &mockLexical{err: errors.New("boom")}
	semantic := &mockSemantic{results: []candidate.Candidate{sem("a", 1)}}
	cache := &mockCache{}
	svc := newService(lexical, semantic, &mockEmbedder{vec: []float32{1}}, cache)

	resp, err := svc.Query(context.Background(), "scope", "hello", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Degraded) != 1 || resp.Degraded[0] != candidate.Lexical {
		t.Fatalf("expected lexical degradation, got %v", resp.Degraded)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected surviving semantic result, got %d", len(resp.Results))
	}
	if cache.setCount != 0 {
		t.Error("degraded results must not be cached")
	}
}

func TestQuery_DegradesOnEmbedFailure(t *testing.T) {
	lexical := &mockLexical{results: []candidate.Candidate{lex("a", 1)}}
	semantic := &mockSemantic{}
	svc := newService(lexical, semantic, &mockEmbedder{err: domain.ErrDependencyTimeout}, &mockCache{})

	resp, err := svc.Query(context.Background(), "scope", "hello", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Degraded) != 1 || resp.Degraded[0] != candidate.Semantic {
		t.Fatalf("expected semantic degradation, got %v", resp.Degraded)
	}
	if semantic.called {
		t.Error("semantic adapter must not run when embedding fails")
	}
}

func TestQuery_TokenlessQuerySkipsLexical(t *testing.T) {
	lexical := &mockLexical{err: errors.New("must not be called")}
	semantic := &mockSemantic{results: []candidate.Candidate{sem("a", 1)}}
	svc := newService(lexical, semantic, &mockEmbedder{vec: []float32{1}}, &mockCache{})

	resp, err := svc.Query(context.Background(), "scope", "?!? ...", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lexical.called {
		t.Error("lexical adapter must not run for a query with no tokens")
	}
	if len(resp.Degraded) != 0 {
		t.Errorf("no tokens is not a degradation, got %v", resp.Degraded)
	}
	if len(resp.Results) != 1 || resp.Results[0].DocID() != "a" {
		t.Fatalf("expected semantic result, got %+v", resp.Results)
	}
}

func TestQuery_BothSourcesFailing(t *testing.T) {
	lexical := &mockLexical{err: errors.New("lex down")}
	semantic := &mockSemantic{err: errors.New("sem down")}
	svc := newService(lexical, semantic, &mockEmbedder{vec: []float32{1}}, &mockCache{})

	if _, err := svc.Query(context.Background(), "scope", "hello", 10); err == nil {
		t.Fatal("expected error when both sources fail")
	}
}

func TestQuery_LimitClamp(t *testing.T) {
	many := make([]candidate.Candidate, 0, 150)
	for i := 0; i < 150; i++ {
		many = append(many, lex(string(rune('a'+i%26))+string(rune('0'+i/26)), i+1))
	}
	svc := newService(&mockLexical{results: many}, &mockSemantic{}, &mockEmbedder{vec: []float32{1}}, &mockCache{})

	resp, err := svc.Query(context.Background(), "scope", "hello", 5000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Results) > DefaultConfig().MaxLimit {
		t.Errorf("limit not clamped: got %d results", len(resp.Results))
	}
}
