package search

import (
	"math"
	"testing"

	"github.com/kailas-cloud/postmesh/internal/domain/search/candidate"
)

func lex(id string, rank int) candidate.Candidate {
	return candidate.New(id, candidate.Lexical, rank, 1.0, 0)
}

func sem(id string, rank int) candidate.Candidate {
	return candidate.New(id, candidate.Semantic, rank, 1.0, 0)
}

func TestFuse_WeightedExample(t *testing.T) {
	// lexical [A, B, C], semantic [B, A, D], K=60, weights 0.7/0.3:
	// B = 0.3/62 + 0.7/61 beats A = 0.3/61 + 0.7/62.
	lexical := []candidate.Candidate{lex("A", 1), lex("B", 2), lex("C", 3)}
	semantic := []candidate.Candidate{sem("B", 1), sem("A", 2), sem("D", 3)}

	results := Fuse(lexical, semantic, DefaultFusionConfig(), 10)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	wantOrder := []string{"B", "A", "D", "C"}
	for i, want := range wantOrder {
		if got := results[i].DocID(); got != want {
			t.Errorf("position %d: got %s, want %s", i, got, want)
		}
	}

	wantB := 0.3/62.0 + 0.7/61.0
	if got := results[0].Score(); math.Abs(got-wantB) > 1e-12 {
		t.Errorf("score(B) = %v, want %v", got, wantB)
	}
	wantA := 0.3/61.0 + 0.7/62.0
	if got := results[1].Score(); math.Abs(got-wantA) > 1e-12 {
		t.Errorf("score(A) = %v, want %v", got, wantA)
	}
}

func TestFuse_BothSourcesBeatOne(t *testing.T) {
	// A document near the top of both lists outranks a document at the
	// top of only one, regardless of raw scores.
	lexical := []candidate.Candidate{lex("both", 2), lex("lexOnly", 1)}
	semantic := []candidate.Candidate{sem("both", 2), sem("semOnly", 1)}

	results := Fuse(lexical, semantic, DefaultFusionConfig(), 10)
	if results[0].DocID() != "both" {
		t.Fatalf("expected doc in both lists first, got %s", results[0].DocID())
	}
	if !results[0].FromBoth() {
		t.Error("expected FromBoth for merged doc")
	}
}

func TestFuse_SourcesRecorded(t *testing.T) {
	results := Fuse(
		[]candidate.Candidate{lex("a", 1)},
		[]candidate.Candidate{sem("a", 1), sem("b", 2)},
		DefaultFusionConfig(), 10,
	)

	for _, r := range results {
		switch r.DocID() {
		case "a":
			if len(r.Sources()) != 2 {
				t.Errorf("doc a: got %d sources, want 2", len(r.Sources()))
			}
		case "b":
			if len(r.Sources()) != 1 || r.Sources()[0] != candidate.Semantic {
				t.Errorf("doc b: got sources %v, want [semantic]", r.Sources())
			}
		}
	}
}

func TestFuse_TieBreaks(t *testing.T) {
	t.Run("quality wins", func(t *testing.T) {
		lexical := []candidate.Candidate{
			candidate.New("low", candidate.Lexical, 1, 1.0, 1),
			candidate.New("high", candidate.Lexical, 1, 1.0, 9),
		}
		results := Fuse(lexical, nil, DefaultFusionConfig(), 10)
		if results[0].DocID() != "high" {
			t.Errorf("expected higher-quality doc first, got %s", results[0].DocID())
		}
	})

	t.Run("doc id as final tie-break", func(t *testing.T) {
		lexical := []candidate.Candidate{lex("zzz", 1), lex("aaa", 1)}
		results := Fuse(lexical, nil, DefaultFusionConfig(), 10)
		if results[0].DocID() != "aaa" {
			t.Errorf("expected lexicographically first doc, got %s", results[0].DocID())
		}
	})
}

func TestFuse_Deterministic(t *testing.T) {
	lexical := []candidate.Candidate{lex("a", 1), lex("b", 2), lex("c", 3)}
	semantic := []candidate.Candidate{sem("c", 1), sem("a", 2), sem("d", 3)}

	first := Fuse(lexical, semantic, DefaultFusionConfig(), 10)
	for i := 0; i < 20; i++ {
		again := Fuse(lexical, semantic, DefaultFusionConfig(), 10)
		for j := range first {
			if again[j].DocID() != first[j].DocID() {
				t.Fatalf("run %d: position %d differs (%s vs %s)",
					i, j, again[j].DocID(), first[j].DocID())
			}
		}
	}
}

func TestFuse_KZero(t *testing.T) {
	// K=0 is a valid degenerate configuration: rank 1 contributes
	// weight/1 directly.
	cfg := FusionConfig{K: 0, SemanticWeight: 0.7, LexicalWeight: 0.3}
	results := Fuse([]candidate.Candidate{lex("a", 1)}, nil, cfg, 10)
	if got := results[0].Score(); got != 0.3 {
		t.Errorf("score = %v, want 0.3", got)
	}
}

func TestFuse_EmptyAndLimit(t *testing.T) {
	if got := Fuse(nil, nil, DefaultFusionConfig(), 10); len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}

	lexical := []candidate.Candidate{lex("a", 1), lex("b", 2), lex("c", 3)}
	if got := Fuse(lexical, nil, DefaultFusionConfig(), 2); len(got) != 2 {
		t.Fatalf("expected limit 2, got %d", len(got))
	}
}
