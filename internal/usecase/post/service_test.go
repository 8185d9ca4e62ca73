package post

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/postmesh/internal/domain"
	dompost "github.com/kailas-cloud/postmesh/internal/domain/post"
)

// --- Mocks ---

type mockRepo struct {
	byID    map[string]dompost.Post
	upserts []dompost.Post
	deleted []string
}

func newMockRepo(posts ...dompost.Post) *mockRepo {
	m := &mockRepo{byID: make(map[string]dompost.Post)}
	for _, p := range posts {
		m.byID[p.ID()] = p
	}
	return m
}

func (m *mockRepo) Get(_ context.Context, _, id string) (dompost.Post, error) {
	p, ok := m.byID[id]
	if !ok {
		return dompost.Post{}, domain.ErrPostNotFound
	}
	return p, nil
}

func (m *mockRepo) Upsert(_ context.Context, p *dompost.Post) (bool, error) {
	_, existed := m.byID[p.ID()]
	m.byID[p.ID()] = *p
	m.upserts = append(m.upserts, *p)
	return !existed, nil
}

func (m *mockRepo) Delete(_ context.Context, _, id string) error {
	if _, ok := m.byID[id]; !ok {
		return domain.ErrPostNotFound
	}
	delete(m.byID, id)
	m.deleted = append(m.deleted, id)
	return nil
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

type mockDebouncer struct {
	scheduled []string
}

func (m *mockDebouncer) Schedule(scope, postID string) {
	m.scheduled = append(m.scheduled, scope+"/"+postID)
}

type mockInvalidator struct {
	scopes []string
}

func (m *mockInvalidator) InvalidateScope(_ context.Context, scope string) {
	m.scopes = append(m.scopes, scope)
}

func newTestService(repo *mockRepo, emb *mockEmbedder, deb *mockDebouncer, inv *mockInvalidator) *Service {
	s := New(repo, emb, deb, inv, 2)
	s.now = func() int64 { return 1700000000 }
	return s
}

// --- Tests ---

func TestCreate_Valid(t *testing.T) {
	repo := newMockRepo()
	deb := &mockDebouncer{}
	inv := &mockInvalidator{}
	svc := newTestService(repo, &mockEmbedder{vec: []float32{3, 4}}, deb, inv)

	p, created, err := svc.Create(context.Background(), "forum", "p1", "hello clustering world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("expected created=true for new post")
	}
	v := p.Vector()
	if len(v) != 2 || v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("expected normalized vector [0.6 0.8], got %v", v)
	}
	if len(deb.scheduled) != 1 || deb.scheduled[0] != "forum/p1" {
		t.Errorf("expected reassignment scheduled, got %v", deb.scheduled)
	}
	if len(inv.scopes) != 1 || inv.scopes[0] != "forum" {
		t.Errorf("expected cache invalidation, got %v", inv.scopes)
	}
}

func TestCreate_InvalidInput(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockEmbedder{vec: []float32{1, 0}}, &mockDebouncer{}, &mockInvalidator{})

	cases := []struct {
		name, id, text string
	}{
		{"empty id", "", "text"},
		{"bad id chars", "has spaces", "text"},
		{"empty text", "p1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.Create(context.Background(), "forum", tc.id, tc.text)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCreate_EmbedFailureDefersVector(t *testing.T) {
	repo := newMockRepo()
	deb := &mockDebouncer{}
	svc := newTestService(repo, &mockEmbedder{err: domain.ErrDependencyUnavailable}, deb, &mockInvalidator{})

	p, _, err := svc.Create(context.Background(), "forum", "p1", "still stored without vector")
	if err != nil {
		t.Fatalf("write must not fail on embedding outage: %v", err)
	}
	if p.HasVector() {
		t.Error("expected no vector when embedding is down")
	}
	if len(deb.scheduled) != 1 {
		t.Error("reassignment must still be scheduled to embed later")
	}
}

func TestCreate_DimensionMismatchDefersVector(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockEmbedder{vec: []float32{1, 2, 3}}, &mockDebouncer{}, &mockInvalidator{})

	p, _, err := svc.Create(context.Background(), "forum", "p1", "wrong width embedding")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.HasVector() {
		t.Error("mismatched embedding must not be stored")
	}
}

func TestUpdate_ReplacesTextAndKeepsCluster(t *testing.T) {
	existing := dompost.Reconstruct("p1", "forum", "old text", []float32{1, 0}, "cl-1", 100, 100)
	repo := newMockRepo(existing)
	deb := &mockDebouncer{}
	svc := newTestService(repo, &mockEmbedder{vec: []float32{0, 1}}, deb, &mockInvalidator{})

	p, err := svc.Update(context.Background(), "forum", "p1", "brand new text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Text() != "brand new text" {
		t.Errorf("text = %q", p.Text())
	}
	if p.ClusterID() != "cl-1" {
		t.Errorf("cluster must be kept until reassignment, got %q", p.ClusterID())
	}
	if len(deb.scheduled) != 1 {
		t.Error("expected reassignment scheduled after edit")
	}
}

func TestUpdate_MissingPost(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockEmbedder{vec: []float32{1, 0}}, &mockDebouncer{}, &mockInvalidator{})

	_, err := svc.Update(context.Background(), "forum", "ghost", "text")
	if !errors.Is(err, domain.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
}

func TestDelete_InvalidatesCache(t *testing.T) {
	existing := dompost.Reconstruct("p1", "forum", "text", nil, "", 1, 1)
	repo := newMockRepo(existing)
	inv := &mockInvalidator{}
	svc := newTestService(repo, &mockEmbedder{vec: []float32{1, 0}}, &mockDebouncer{}, inv)

	if err := svc.Delete(context.Background(), "forum", "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inv.scopes) != 1 {
		t.Error("expected cache invalidation on delete")
	}

	if err := svc.Delete(context.Background(), "forum", "p1"); !errors.Is(err, domain.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound on double delete, got %v", err)
	}
}
