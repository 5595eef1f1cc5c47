// Package ratelimit throttles metered operations with a redis-backed
// sliding window. The window is best effort: losing it over-admits a few
// requests but never corrupts entitlement state.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyFormat = "ratelimit:%s:%s"

// slidingWindowScript prunes expired entries, counts the trailing window,
// and records the request in a single atomic round trip.
const slidingWindowScript = `
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

local nowData = redis.call("TIME")
local now = (nowData[1] * 1000) + math.floor(nowData[2] / 1000)

redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, now - window)
local count = redis.call("ZCARD", KEYS[1])

if count >= limit then
  return 0
end

redis.call("ZADD", KEYS[1], now, ARGV[3])
redis.call("PEXPIRE", KEYS[1], window)
return 1
`

// Policy defines a sliding window: at most Limit permitted calls per
// identity within any trailing Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Limiter is a sliding-window throttle keyed by (operation, identity).
type Limiter struct {
	client *redis.Client
	script *redis.Script
}

// New builds a Limiter on the given redis client.
func New(client *redis.Client) *Limiter {
	if client == nil {
		return nil
	}
	return &Limiter{
		client: client,
		script: redis.NewScript(slidingWindowScript),
	}
}

// Allow records one call for (operation, identity) and reports whether it
// fits the policy. A backend failure is returned as an error; the caller
// owns the fail-open-vs-fail-closed decision.
func (l *Limiter) Allow(ctx context.Context, operation, identity string, policy Policy) (bool, error) {
	if l == nil || l.client == nil {
		return false, errors.New("rate limiter not configured")
	}
	operation = strings.TrimSpace(operation)
	identity = strings.TrimSpace(identity)
	if operation == "" || identity == "" {
		return false, errors.New("rate limiter key is empty")
	}
	if policy.Limit <= 0 {
		return false, errors.New("rate limiter limit must be positive")
	}
	if policy.Window <= 0 {
		return false, errors.New("rate limiter window must be positive")
	}

	key := fmt.Sprintf(keyFormat, operation, identity)
	allowed, err := l.script.Run(
		ctx,
		l.client,
		[]string{key},
		policy.Window.Milliseconds(),
		policy.Limit,
		uuid.NewString(),
	).Int64()
	if err != nil {
		return false, err
	}
	return allowed == 1, nil
}
