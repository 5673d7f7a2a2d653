package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/edwardbudaza/pdfchat/internal/db"
)

// unlockScript deletes KEYS[1] only while it still holds ARGV[1].
var unlockScript = rueidis.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SetNX stores value at key with a TTL unless the key already exists.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	cmd := s.b().Set().Key(key).Value(value).Nx().Px(ttl).Build()
	err := s.do(ctx, cmd).Error()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}
		return false, &db.Error{Op: db.OpSet, Err: err}
	}
	return true, nil
}

// DelIfEqual releases key when its value matches; a stale owner cannot delete a newer holder's lock.
func (s *Store) DelIfEqual(ctx context.Context, key, value string) (bool, error) {
	n, err := unlockScript.Exec(ctx, s.client, []string{key}, []string{value}).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpUnlock, Err: err}
	}
	return n > 0, nil
}
