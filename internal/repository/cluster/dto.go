package cluster

import (
	"encoding/binary"
	"math"
	"strconv"

	domcluster "github.com/kailas-cloud/postmesh/internal/domain/cluster"
)

const (
	fieldScope       = "scope"
	fieldLabel       = "label"
	fieldCentroid    = "centroid"
	fieldMemberCount = "member_count"
	fieldRevision    = "revision"
)

// buildHashFields converts a domain Cluster into a flat map[string]string for HSET.
func buildHashFields(c *domcluster.Cluster) map[string]string {
	return map[string]string{
		fieldScope:       c.Scope(),
		fieldLabel:       c.Label(),
		fieldCentroid:    vectorToBytes(c.Centroid()),
		fieldMemberCount: strconv.Itoa(c.MemberCount()),
		fieldRevision:    strconv.Itoa(c.Revision()),
	}
}

// parseHashFields converts a flat hash map back into a domain Cluster.
func parseHashFields(id string, m map[string]string) domcluster.Cluster {
	memberCount, _ := strconv.Atoi(m[fieldMemberCount])
	revision, _ := strconv.Atoi(m[fieldRevision])
	return domcluster.Reconstruct(
		id, m[fieldScope], m[fieldLabel],
		bytesToVector(m[fieldCentroid]), memberCount, revision,
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
