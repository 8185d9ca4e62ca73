package candidate

// Source identifies which ranked list produced a candidate.
type Source string

const (
	// Lexical marks a term-match (BM25) candidate.
	Lexical Source = "lexical"
	// Semantic marks a nearest-neighbor (KNN) candidate.
	Semantic Source = "semantic"
)

// Candidate is a single hit from one ranked source list (ephemeral, never persisted).
type Candidate struct {
	docID    string
	source   Source
	rank     int // 1-based position in its source list
	rawScore float64
	quality  float64 // vote count when the document carries one, else 0
}

// New creates a candidate result.
func New(docID string, source Source, rank int, rawScore, quality float64) Candidate {
	return Candidate{docID: docID, source: source, rank: rank, rawScore: rawScore, quality: quality}
}

// DocID returns the document identifier.
func (c *Candidate) DocID() string { return c.docID }

// Source returns the producing list.
func (c *Candidate) Source() Source { return c.source }

// Rank returns the 1-based position in the source list.
func (c *Candidate) Rank() int { return c.rank }

// RawScore returns the source-native score (BM25 score or cosine similarity).
func (c *Candidate) RawScore() float64 { return c.rawScore }

// Quality returns the document's quality score (0 when unknown).
func (c *Candidate) Quality() float64 { return c.quality }
