package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/postmesh/internal/db"
)

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// Entry scores are cosine similarity in [0, 1] (higher is closer).
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	knnPart := fmt.Sprintf("[KNN %d @vector $BLOB AS __dist]", q.K)
	queryStr := "*=>" + knnPart
	if prefilter := buildTagQuery(q.Tags); prefilter != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", prefilter, knnPart)
	}

	args := []string{q.IndexName, queryStr}
	args = appendReturnFields(args, append([]string{"__dist"}, q.ReturnFields...))
	args = append(args,
		"SORTBY", "__dist",
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBlob(q.Vector),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, searchError(err)
	}

	res := parsePairsResult(raw)
	for i := range res.Entries {
		if distStr, ok := res.Entries[i].Fields["__dist"]; ok {
			if d, perr := strconv.ParseFloat(distStr, 64); perr == nil {
				res.Entries[i].Score = max(0, 1.0-d) // cosine distance -> similarity
			}
			delete(res.Entries[i].Fields, "__dist")
		}
	}
	return res, nil
}

// SearchBM25 runs a BM25 text search via FT.SEARCH with WITHSCORES.
// Terms are OR-combined within the text field; each term is escaped.
func (s *Store) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Terms) == 0 {
		return nil, fmt.Errorf("terms are required")
	}
	if q.TopK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}

	field := q.Field
	if field == "" {
		field = "text"
	}

	escaped := make([]string, 0, len(q.Terms))
	for _, t := range q.Terms {
		if e := escapeTerm(t); e != "" {
			escaped = append(escaped, e)
		}
	}
	if len(escaped) == 0 {
		return &db.SearchResult{}, nil
	}

	queryStr := fmt.Sprintf("@%s:(%s)", field, strings.Join(escaped, "|"))
	if prefilter := buildTagQuery(q.Tags); prefilter != "" {
		queryStr = prefilter + " " + queryStr
	}

	args := []string{q.IndexName, queryStr}
	args = appendReturnFields(args, q.ReturnFields)
	args = append(args,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(q.TopK),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, searchError(err)
	}

	return parseScoredResult(raw), nil
}

// SearchList performs paginated listing via FT.SEARCH.
func (s *Store) SearchList(
	ctx context.Context, index, query string, offset, limit int, fields []string,
) (*db.SearchResult, error) {
	args := []string{index, query, "LIMIT", strconv.Itoa(offset), strconv.Itoa(limit)}
	args = appendReturnFields(args, fields)
	args = append(args, "DIALECT", "2")

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, searchError(err)
	}

	return parsePairsResult(raw), nil
}

// SearchCount returns the matching document count via FT.SEARCH LIMIT 0 0.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, query, "LIMIT", "0", "0", "DIALECT", "2").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, searchError(err)
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// searchError maps unknown-index server errors onto the sentinel so
// callers can tell schema problems from transient failures.
func searchError(err error) error {
	if isRedisErr(err, "unknown index") || isRedisErr(err, "no such index") {
		return db.ErrIndexNotFound
	}
	return &db.Error{Op: db.OpSearch, Err: err}
}

// --- Result parsing ---

// parsePairsResult parses the 2-stride RESP2 form: [total, key1, fields1, ...].
func parsePairsResult(raw []rueidis.RedisMessage) *db.SearchResult {
	total := parseTotal(raw)
	if total == 0 {
		return &db.SearchResult{}
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: fieldPairs(fields)})
	}

	return &db.SearchResult{Total: total, Entries: entries}
}

// parseScoredResult parses the 3-stride WITHSCORES form:
// [total, key1, score1, fields1, ...].
func parseScoredResult(raw []rueidis.RedisMessage) *db.SearchResult {
	total := parseTotal(raw)
	if total == 0 {
		return &db.SearchResult{}
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}
		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Score: score, Fields: fieldPairs(fields)})
	}

	return &db.SearchResult{Total: total, Entries: entries}
}

func parseTotal(raw []rueidis.RedisMessage) int {
	if len(raw) == 0 {
		return 0
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0
	}
	return int(total)
}

func fieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query building ---

func appendReturnFields(args, fields []string) []string {
	if len(fields) == 0 {
		return args
	}
	args = append(args, "RETURN", strconv.Itoa(len(fields)))
	return append(args, fields...)
}

// buildTagQuery renders TAG equality filters: @scope:{s} @cluster:{c}.
func buildTagQuery(tags []db.TagFilter) string {
	if len(tags) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", t.Field, tagEscaper.Replace(t.Value)))
	}
	return strings.Join(parts, " ")
}

var tagEscaper = strings.NewReplacer(
	",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>", "{", "\\{", "}", "\\}",
	"\"", "\\\"", "'", "\\'", ":", "\\:", ";", "\\;", "!", "\\!", "@", "\\@",
	"#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^", "&", "\\&", "*", "\\*",
	"(", "\\(", ")", "\\)", "-", "\\-", "+", "\\+", "=", "\\=", "~", "\\~",
	" ", "\\ ",
)

var termEscaper = strings.NewReplacer(
	`\`, `\\`, `'`, `\'`, `"`, `\"`, `@`, `\@`, `{`, `\{`, `}`, `\}`,
	`(`, `\(`, `)`, `\)`, `|`, `\|`, `-`, `\-`, `~`, `\~`, `*`, `\*`,
	`[`, `\[`, `]`, `\]`, `!`, `\!`, `%`, `\%`, `^`, `\^`, `$`, `\$`,
	`<`, `\<`, `>`, `\>`, `=`, `\=`, `;`, `\;`, `+`, `\+`, `:`, `\:`,
)

func escapeTerm(t string) string {
	return termEscaper.Replace(strings.TrimSpace(t))
}

// vectorToBlob serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBlob(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
