package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/postmesh/internal/db"
)

// casScript checks a guard field and applies the write in one script
// invocation, so two writers racing on the same hash cannot both pass
// the check. -1 signals a missing key, 0 a guard mismatch.
var casScript = rueidis.NewLuaScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur == false then
  return -1
end
if cur ~= ARGV[2] then
  return 0
end
for i = 3, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
return 1`)

// HSetCAS writes fields only while the guard field still holds expected.
func (s *Store) HSetCAS(ctx context.Context, key, field, expected string, fields map[string]string) (bool, error) {
	argv := make([]string, 0, 2+len(fields)*2)
	argv = append(argv, field, expected)
	for f, v := range fields {
		argv = append(argv, f, v)
	}

	n, err := casScript.Exec(ctx, s.client, []string{key}, argv).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpEval, Err: err}
	}
	switch n {
	case -1:
		return false, db.ErrKeyNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}
