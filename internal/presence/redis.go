package presence

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/proficiency-backend/internal/config"
)

// touchScript purges expired sessions, records this one and applies the
// conflict-log throttle in a single atomic step.
//
// KEYS: sessions zset, conflict-log hash
// ARGV: now ms, ttl ms, throttle ms, session id
var touchScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
local throttle = tonumber(ARGV[3])
local sid = ARGV[4]
local cutoff = '(' .. (now - ttl)

local stale = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', cutoff)
if #stale > 0 then
  redis.call('ZREM', KEYS[1], unpack(stale))
  redis.call('HDEL', KEYS[2], unpack(stale))
end

redis.call('ZADD', KEYS[1], now, sid)
local live = redis.call('ZCARD', KEYS[1])

local conflict = 0
local logit = 0
if live > 1 then
  conflict = 1
  local last = redis.call('HGET', KEYS[2], sid)
  if (not last) or (now - tonumber(last) >= throttle) then
    logit = 1
    redis.call('HSET', KEYS[2], sid, now)
  end
end

redis.call('PEXPIRE', KEYS[1], ttl + throttle)
redis.call('PEXPIRE', KEYS[2], ttl + throttle)
return {conflict, logit, live}
`)

// expireScript purges expired sessions and drops both keys once empty.
//
// KEYS: sessions zset, conflict-log hash
// ARGV: now ms, ttl ms
var expireScript = redis.NewScript(`
local cutoff = '(' .. (tonumber(ARGV[1]) - tonumber(ARGV[2]))
local stale = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', cutoff)
if #stale > 0 then
  redis.call('ZREM', KEYS[1], unpack(stale))
  redis.call('HDEL', KEYS[2], unpack(stale))
end
local live = redis.call('ZCARD', KEYS[1])
if live == 0 then
  redis.call('DEL', KEYS[1], KEYS[2])
end
return live
`)

// stopScript removes one session and drops both keys once empty.
//
// KEYS: sessions zset, conflict-log hash
// ARGV: session id
var stopScript = redis.NewScript(`
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
local live = redis.call('ZCARD', KEYS[1])
if live == 0 then
  redis.call('DEL', KEYS[1], KEYS[2])
end
return live
`)

// RedisTracker shares presence across API instances. Each attempt is a
// sorted set of session ids scored by last-seen unix milliseconds plus a
// hash of per-session conflict-log times.
type RedisTracker struct {
	rdb      redis.Scripter
	settings Settings
}

// NewRedisTracker creates a tracker backed by rdb.
func NewRedisTracker(rdb redis.Scripter, settings Settings) *RedisTracker {
	return &RedisTracker{rdb: rdb, settings: settings.withDefaults()}
}

// Start records the first signal of a session.
func (t *RedisTracker) Start(ctx context.Context, attemptID, sessionID string) (Observation, error) {
	return t.touch(ctx, attemptID, sessionID)
}

// Ping refreshes a session's liveness.
func (t *RedisTracker) Ping(ctx context.Context, attemptID, sessionID string) (Observation, error) {
	return t.touch(ctx, attemptID, sessionID)
}

// Stop removes a session.
func (t *RedisTracker) Stop(ctx context.Context, attemptID, sessionID string) error {
	if err := stopScript.Run(ctx, t.rdb, t.keys(attemptID), sessionID).Err(); err != nil {
		return fmt.Errorf("presence stop: %w", err)
	}
	return nil
}

// Expire purges sessions past the TTL.
func (t *RedisTracker) Expire(ctx context.Context, attemptID string) error {
	now := t.settings.Clock().UnixMilli()
	if err := expireScript.Run(ctx, t.rdb, t.keys(attemptID), now, t.settings.TTL.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("presence expire: %w", err)
	}
	return nil
}

func (t *RedisTracker) touch(ctx context.Context, attemptID, sessionID string) (Observation, error) {
	now := t.settings.Clock().UnixMilli()
	res, err := touchScript.Run(ctx, t.rdb, t.keys(attemptID),
		now, t.settings.TTL.Milliseconds(), t.settings.Throttle.Milliseconds(), sessionID,
	).Int64Slice()
	if err != nil {
		return Observation{}, fmt.Errorf("presence touch: %w", err)
	}
	if len(res) != 3 {
		return Observation{}, fmt.Errorf("presence touch: unexpected reply %v", res)
	}
	return Observation{
		Conflict:     res[0] == 1,
		LogConflict:  res[1] == 1,
		LiveSessions: int(res[2]),
	}, nil
}

func (t *RedisTracker) keys(attemptID string) []string {
	return []string{
		config.CacheKey.PresenceSessionsKey(attemptID),
		config.CacheKey.PresenceConflictLogKey(attemptID),
	}
}
