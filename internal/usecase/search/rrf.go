package search

import (
	"sort"

	"github.com/kailas-cloud/postmesh/internal/domain/search/candidate"
	"github.com/kailas-cloud/postmesh/internal/domain/search/fused"
)

// DefaultK is the Reciprocal Rank Fusion constant (Cormack et al. 2009).
const DefaultK = 60

// Default source weights: semantic recall matters more than exact
// term overlap for short conversational posts.
const (
	DefaultSemanticWeight = 0.7
	DefaultLexicalWeight  = 0.3
)

// FusionConfig tunes the fusion formula.
type FusionConfig struct {
	K              int
	SemanticWeight float64
	LexicalWeight  float64
}

// DefaultFusionConfig returns the standard fusion parameters.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{K: DefaultK, SemanticWeight: DefaultSemanticWeight, LexicalWeight: DefaultLexicalWeight}
}

// Fuse merges the two ranked lists via weighted Reciprocal Rank
// Fusion: each appearance of a document contributes
// weight_source / (rank + K). Raw source scores never mix; only ranks
// matter, which makes BM25 and cosine scales commensurable.
//
// Ties on the fused score break by quality (descending), then by
// docID (ascending) so equal inputs always produce equal output.
func Fuse(lexical, semantic []candidate.Candidate, cfg FusionConfig, limit int) []fused.Result {
	type acc struct {
		score   float64
		sources []candidate.Source
		quality float64
	}

	merged := make(map[string]*acc, len(lexical)+len(semantic))

	fold := func(list []candidate.Candidate, weight float64) {
		for i := range list {
			c := &list[i]
			contribution := weight / float64(c.Rank()+cfg.K)
			a, ok := merged[c.DocID()]
			if !ok {
				a = &acc{}
				merged[c.DocID()] = a
			}
			a.score += contribution
			a.sources = append(a.sources, c.Source())
			if c.Quality() > a.quality {
				a.quality = c.Quality()
			}
		}
	}
	fold(lexical, cfg.LexicalWeight)
	fold(semantic, cfg.SemanticWeight)

	results := make([]fused.Result, 0, len(merged))
	for docID, a := range merged {
		results = append(results, fused.New(docID, a.score, a.sources, a.quality))
	}

	sort.Slice(results, func(i, j int) bool {
		ri, rj := &results[i], &results[j]
		if ri.Score() != rj.Score() {
			return ri.Score() > rj.Score()
		}
		if ri.Quality() != rj.Quality() {
			return ri.Quality() > rj.Quality()
		}
		return ri.DocID() < rj.DocID()
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
