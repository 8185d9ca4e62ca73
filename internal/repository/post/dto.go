package post

import (
	"encoding/binary"
	"math"
	"strconv"

	dompost "github.com/kailas-cloud/postmesh/internal/domain/post"
)

// Hash field names for post records. The "scope", "cluster" and "text"
// fields are indexed by the FT index; the rest are payload.
const (
	fieldScope     = "scope"
	fieldText      = "text"
	fieldVector    = "vector"
	fieldCluster   = "cluster"
	fieldVotes     = "votes"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// buildHashFields converts a domain Post into a flat map[string]string for HSET.
func buildHashFields(p *dompost.Post) map[string]string {
	m := map[string]string{
		fieldScope:     p.Scope(),
		fieldText:      p.Text(),
		fieldCluster:   p.ClusterID(),
		fieldCreatedAt: strconv.FormatInt(p.CreatedAt(), 10),
		fieldUpdatedAt: strconv.FormatInt(p.UpdatedAt(), 10),
	}
	if p.HasVector() {
		m[fieldVector] = vectorToBytes(p.Vector())
	}
	return m
}

// parseHashFields converts a flat hash map back into a domain Post.
func parseHashFields(id string, m map[string]string) dompost.Post {
	createdAt, _ := strconv.ParseInt(m[fieldCreatedAt], 10, 64)
	updatedAt, _ := strconv.ParseInt(m[fieldUpdatedAt], 10, 64)
	return dompost.Reconstruct(
		id, m[fieldScope], m[fieldText],
		bytesToVector(m[fieldVector]), m[fieldCluster],
		createdAt, updatedAt,
	)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
