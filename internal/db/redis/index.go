package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/postmesh/internal/db"
)

// EnsureIndex creates the FT index if it does not exist yet.
func (s *Store) EnsureIndex(ctx context.Context, def *db.IndexDefinition) error {
	if def.Name == "" || def.Prefix == "" {
		return fmt.Errorf("index name and prefix are required")
	}
	if def.VectorField != "" && def.VectorDim <= 0 {
		return fmt.Errorf("vector dimension must be positive")
	}

	args := []string{
		def.Name,
		"ON", "HASH",
		"PREFIX", "1", def.Prefix,
		"SCHEMA",
	}

	for _, tag := range def.TagFields {
		args = append(args, tag, "TAG")
	}
	if def.TextField != "" {
		args = append(args, def.TextField, "TEXT")
	}
	if def.VectorField != "" {
		m := def.HNSWM
		if m <= 0 {
			m = 16
		}
		ef := def.HNSWEFConstruct
		if ef <= 0 {
			ef = 200
		}
		args = append(args,
			def.VectorField, "VECTOR", "HNSW", "10",
			"TYPE", "FLOAT32",
			"DIM", strconv.Itoa(def.VectorDim),
			"DISTANCE_METRIC", "COSINE",
			"M", strconv.Itoa(m),
			"EF_CONSTRUCTION", strconv.Itoa(ef),
		)
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return nil
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// IndexExists checks index presence via FT.INFO.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index") || isRedisErr(err, "no such index") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}
