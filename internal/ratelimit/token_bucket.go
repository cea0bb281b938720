package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Tokens are stored in milli-tokens because Lua numbers returned to redis
// are truncated to integers.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2]) * 1000
local ttl = tonumber(ARGV[3])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])

if tokens == nil then
  tokens = burst
else
  local delta = now - ts
  if delta < 0 then
    delta = 0
  end
  tokens = math.min(burst, tokens + delta * rate)
end

local allowed = 0
if tokens >= 1000 then
  allowed = 1
  tokens = tokens - 1000
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, math.floor(tokens), now}
`

var (
	ErrNotConfigured = errors.New("rate_limiter_not_configured")
	ErrEmptyKey      = errors.New("rate_limiter_key_empty")
	ErrInvalidLimit  = errors.New("rate_limiter_invalid_limit")
)

type TokenBucket struct {
	client redis.Scripter
	script *redis.Script
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

func NewTokenBucket(client redis.Scripter) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow takes one token from the bucket stored at key. rate is tokens per
// second and burst the bucket capacity.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Decision, error) {
	if t == nil || t.client == nil {
		return Decision{}, ErrNotConfigured
	}
	if key == "" {
		return Decision{}, ErrEmptyKey
	}
	if rate <= 0 || burst <= 0 {
		return Decision{}, ErrInvalidLimit
	}

	// rate is passed per millisecond in milli-tokens, which is numerically tokens per second.
	res, err := t.script.Run(ctx, t.client, []string{key},
		strconv.FormatFloat(rate, 'f', -1, 64),
		burst,
		bucketTTL(rate, burst).Milliseconds(),
	).Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) < 3 {
		return Decision{}, errors.New("invalid rate limit script response")
	}

	allowed := toInt(res[0]) == 1
	milliTokens := toInt(res[1])
	now := time.UnixMilli(toInt(res[2]))

	var retryAfter time.Duration
	if !allowed {
		missing := float64(1000-milliTokens) / 1000
		retryAfter = time.Duration(math.Ceil(missing/rate*1000)) * time.Millisecond
	}

	return Decision{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(milliTokens / 1000),
		RetryAfter: retryAfter,
		ResetAt:    now.Add(retryAfter),
	}, nil
}

// bucketTTL keeps an idle bucket long enough to refill completely twice.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func toInt(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		n, _ := strconv.ParseInt(val, 10, 64)
		return n
	default:
		return 0
	}
}
