package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vertextoedge/estateshare/internal/port"
)

// tokenBucket refills refill_tokens every interval_ms up to capacity and
// takes one token per call. Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = goredis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
	tokens = capacity
	last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
	local elapsed = math.max(0, now_ms - last_refill)
	local intervals = math.floor(elapsed / interval_ms)
	if intervals > 0 then
		tokens = math.min(capacity, tokens + (intervals * refill_tokens))
		last_refill = last_refill + (intervals * interval_ms)
	end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// Config contains Redis limiter configuration
type Config struct {
	Addr     string
	Password string
	DB       int

	Prefix         string
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
}

// NewClient connects to Redis and pings it with a short timeout
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Limiter is a distributed token bucket. A nil client allows everything.
type Limiter struct {
	client goredis.Scripter
	cfg    Config
	now    func() time.Time
}

// Ensure Limiter implements port.RateLimiter
var _ port.RateLimiter = (*Limiter)(nil)

// NewLimiter creates a new Limiter
func NewLimiter(client *goredis.Client, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "estateshare:ratelimit"
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 60
	}
	if cfg.RefillTokens <= 0 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}

	l := &Limiter{cfg: cfg, now: time.Now}
	if client != nil {
		l.client = client
	}
	return l
}

// Allow takes one token from key's bucket
func (l *Limiter) Allow(ctx context.Context, key string) (*port.RateDecision, error) {
	if l.client == nil {
		return &port.RateDecision{Allowed: true, Limit: l.cfg.Capacity, Remaining: int64(l.cfg.Capacity)}, nil
	}

	vals, err := tokenBucket.Run(ctx, l.client, []string{l.cfg.Prefix + ":" + key},
		l.now().UnixMilli(),
		l.cfg.Capacity,
		l.cfg.RefillTokens,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL/time.Second),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit script failed: %w", err)
	}

	decision, err := parseResult(vals)
	if err != nil {
		return nil, err
	}
	decision.Limit = l.cfg.Capacity
	return decision, nil
}

func parseResult(vals any) (*port.RateDecision, error) {
	arr, ok := vals.([]any)
	if !ok || len(arr) != 3 {
		return nil, fmt.Errorf("unexpected rate limit result: %#v", vals)
	}
	return &port.RateDecision{
		Allowed:    asInt64(arr[0]) == 1,
		Remaining:  asInt64(arr[1]),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
