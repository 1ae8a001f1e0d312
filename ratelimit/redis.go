package ratelimit

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "rl:"
	sweepBatchSize = 100
)

// checkScript prunes the key's timestamp list to the active window, then
// counts and conditionally records the request. Running as a single Lua
// script makes the read-modify-write atomic under concurrent callers.
//
// KEYS[1] window log (zset of request timestamps, ms)
// KEYS[2] per-key sequence counter (member uniqueness within one ms)
// ARGV[1] now ms, ARGV[2] window ms, ARGV[3] max requests
//
// Returns {allowed, count, oldest-timestamp-ms}.
var checkScript = redis.NewScript(`
local key = KEYS[1]
local seq_key = KEYS[2]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
local count = redis.call('ZCARD', key)
if count >= max then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    return {0, count, tonumber(oldest[2])}
end

local seq = redis.call('INCR', seq_key)
redis.call('PEXPIRE', seq_key, window * 2)
redis.call('ZADD', key, now, now .. '-' .. seq)
redis.call('PEXPIRE', key, window * 2)
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {1, count + 1, tonumber(oldest[2])}
`)

// RedisLimiter shares one sliding window log per user:endpoint key across
// all process instances. Keys expire on their own after twice the window;
// the janitor additionally sweeps logs idle past the retention period.
type RedisLimiter struct {
	rules  Table
	client *redis.Client
	now    func() time.Time
}

// NewRedisLimiter builds a shared limiter over the rule table.
func NewRedisLimiter(client *redis.Client, rules Table) *RedisLimiter {
	return &RedisLimiter{rules: rules, client: client, now: time.Now}
}

// Rule exposes the endpoint's configured rule.
func (l *RedisLimiter) Rule(endpoint string) Rule {
	return l.rules.Rule(endpoint)
}

// Check admits or denies one request. A returned error means Redis itself
// failed; the caller decides between fail-open and fail-closed.
func (l *RedisLimiter) Check(ctx context.Context, userID uint, endpoint string) (Decision, error) {
	rule := l.rules.Rule(endpoint)
	key := redisKeyPrefix + entryKey(userID, endpoint)
	now := l.now()
	nowMs := now.UnixMilli()
	windowMs := rule.Window.Milliseconds()

	res, err := checkScript.Run(ctx, l.client,
		[]string{key, key + ":seq"},
		nowMs, windowMs, rule.MaxRequests,
	).Int64Slice()
	if err != nil {
		return Decision{}, err
	}

	allowed := res[0] == 1
	count := int(res[1])
	resetAt := time.UnixMilli(res[2] + windowMs)

	d := Decision{
		Allowed:   allowed,
		Limit:     rule.MaxRequests,
		Remaining: rule.MaxRequests - count,
		ResetAt:   resetAt,
	}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if !allowed {
		d.RetryAfter = retryAfter(resetAt, now)
	}
	return d, nil
}

// Sweep deletes window logs whose newest entry is older than olderThan.
// It walks at most sweepBatchSize keys per call so a single run stays
// bounded; repeated janitor runs converge. Records still in their active
// window are never touched.
func (l *RedisLimiter) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoffMs := l.now().Add(-olderThan).UnixMilli()

	var (
		cursor  uint64
		scanned int
		removed int
	)
	for {
		keys, next, err := l.client.Scan(ctx, cursor, redisKeyPrefix+"*", sweepBatchSize).Result()
		if err != nil {
			return removed, err
		}
		for _, key := range keys {
			if strings.HasSuffix(key, ":seq") {
				continue
			}
			newest, err := l.client.ZRevRangeWithScores(ctx, key, 0, 0).Result()
			if err != nil {
				return removed, err
			}
			if len(newest) == 0 || int64(newest[0].Score) < cutoffMs {
				if err := l.client.Del(ctx, key, key+":seq").Err(); err != nil {
					return removed, err
				}
				removed++
			}
		}
		scanned += len(keys)
		cursor = next
		if cursor == 0 || scanned >= sweepBatchSize {
			return removed, nil
		}
	}
}
