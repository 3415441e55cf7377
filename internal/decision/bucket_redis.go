package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Refill happens in whole intervals so every instance sharing the key agrees on the count.
var takeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local elapsed = now - ts
if elapsed < 0 then elapsed = 0 end
local intervals = math.floor(elapsed / interval)
if intervals > 0 then
  tokens = math.min(capacity, tokens + intervals * refill)
  ts = ts + intervals * interval
end

local allowed = 0
if tokens >= cost then
  tokens = tokens - cost
  allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', ts)
redis.call('PEXPIRE', KEYS[1], math.ceil(capacity / refill) * interval + interval)

return {allowed, tokens, interval - (now - ts)}
`)

// RedisBucketStore shares bucket state between instances.
type RedisBucketStore struct {
	rdb    redis.Scripter
	prefix string
	now    func() time.Time
}

func NewRedisBucketStore(rdb redis.Scripter, prefix string) *RedisBucketStore {
	return &RedisBucketStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisBucketStore) Take(ctx context.Context, key string, cost int, b Bucket) (Take, error) {
	res, err := takeScript.Run(ctx, s.rdb, []string{s.prefix + key},
		b.Capacity, b.Refill, b.Interval.Milliseconds(), cost, s.now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return Take{}, fmt.Errorf("token bucket %s: %w", key, err)
	}
	if len(res) != 3 {
		return Take{}, fmt.Errorf("token bucket %s: unexpected reply %v", key, res)
	}

	take := Take{
		Allowed:   res[0] == 1,
		Remaining: int(res[1]),
	}
	if !take.Allowed {
		take.ResetIn = time.Duration(res[2]) * time.Millisecond
	}
	return take, nil
}
