package fused

import "github.com/kailas-cloud/postmesh/internal/domain/search/candidate"

// Result is a single fused search hit (ephemeral, never persisted).
type Result struct {
	docID   string
	score   float64
	sources []candidate.Source
	quality float64
}

// New creates a fused result.
func New(docID string, score float64, sources []candidate.Source, quality float64) Result {
	return Result{docID: docID, score: score, sources: sources, quality: quality}
}

// DocID returns the document identifier.
func (r *Result) DocID() string { return r.docID }

// Score returns the cumulative RRF score.
func (r *Result) Score() float64 { return r.score }

// Sources returns the lists that contributed to the score.
func (r *Result) Sources() []candidate.Source { return r.sources }

// Quality returns the document's quality score (tie-break input).
func (r *Result) Quality() float64 { return r.quality }

// FromBoth reports whether both lexical and semantic lists contributed.
func (r *Result) FromBoth() bool { return len(r.sources) == 2 }
