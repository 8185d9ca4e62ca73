package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
// Consumers depend on narrow sub-interfaces (ISP); the facade exists
// for the composition root only.
type Store interface {
	Pinger
	HashStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashStore provides hash-based key-value operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	// HSetCAS writes fields only while the guard field still holds
	// expected, as one atomic server-side step. A missing key yields
	// ErrKeyNotFound; a changed guard value yields swapped == false.
	HSetCAS(ctx context.Context, key, field, expected string, fields map[string]string) (swapped bool, err error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	IncrBy(ctx context.Context, key string, val int64) error
}

// IndexDefinition describes the single FT index over post hashes:
// TAG fields for exact filtering, one TEXT field for BM25, one HNSW
// vector field for KNN.
type IndexDefinition struct {
	Name            string
	Prefix          string
	TextField       string
	TagFields       []string
	VectorField     string
	VectorDim       int
	HNSWM           int
	HNSWEFConstruct int
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	EnsureIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// TagFilter restricts a search to documents whose TAG field equals Value.
type TagFilter struct {
	Field string
	Value string
}

// KNNQuery describes a vector similarity search.
type KNNQuery struct {
	IndexName    string
	Tags         []TagFilter
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery describes a BM25 text search. Terms are OR-combined.
type TextQuery struct {
	IndexName    string
	Field        string
	Terms        []string
	Tags         []TagFilter
	TopK         int
	ReturnFields []string
}

// SearchEntry is a single raw hit from FT.SEARCH.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// SearchResult is the raw outcome of an FT.SEARCH call.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// Searcher provides search operations over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchBM25(ctx context.Context, q *TextQuery) (*SearchResult, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
