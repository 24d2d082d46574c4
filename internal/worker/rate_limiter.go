// Package worker runs the background pipelines: campaign scheduling,
// message sending, segment refreshes, and contact imports.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Default per-organization send limits. Carriers throttle long codes
// around 1 msg/sec, so the per-second default stays conservative.
const (
	DefaultRatePerSecond = 10
	DefaultDailyLimit    = 100000
)

// Lua script that checks the per-second and daily counters and only
// increments when both pass. GET then INCR in separate round trips
// races under concurrent workers.
const reserveLuaScript = `
local secondKey = KEYS[1]
local dailyKey = KEYS[2]
local increment = tonumber(ARGV[1])
local secondLimit = tonumber(ARGV[2])
local dailyLimit = tonumber(ARGV[3])

local secCurrent = tonumber(redis.call("GET", secondKey) or "0")
local dayCurrent = tonumber(redis.call("GET", dailyKey) or "0")

if secCurrent + increment > secondLimit then
    return {0, 1}
end
if dayCurrent + increment > dailyLimit then
    return {0, 2}
end

local newSec = redis.call("INCRBY", secondKey, increment)
if newSec == increment then
    redis.call("EXPIRE", secondKey, 2)
end

local newDay = redis.call("INCRBY", dailyKey, increment)
if newDay == increment then
    redis.call("EXPIRE", dailyKey, 90000)
end

return {1, 0}
`

// RateLimiter throttles outbound sends per organization using atomic
// Redis counters.
type RateLimiter struct {
	redis         *redis.Client
	reserveScript *redis.Script
	ratePerSecond int
	dailyLimit    int
}

func NewRateLimiter(redisClient *redis.Client, ratePerSecond int) *RateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = DefaultRatePerSecond
	}
	return &RateLimiter{
		redis:         redisClient,
		reserveScript: redis.NewScript(reserveLuaScript),
		ratePerSecond: ratePerSecond,
		dailyLimit:    DefaultDailyLimit,
	}
}

// ErrDailyLimit is returned when an organization has exhausted its
// daily send budget.
var ErrDailyLimit = fmt.Errorf("daily send limit exceeded")

// Reserve claims n send slots for the organization. When denied on the
// per-second window it returns the time to wait before retrying.
func (r *RateLimiter) Reserve(ctx context.Context, orgID uuid.UUID, n int) (bool, time.Duration, error) {
	if r.redis == nil {
		return true, 0, nil
	}

	now := time.Now()
	secondKey := fmt.Sprintf("engage:ratelimit:%s:sec:%d", orgID, now.Unix())
	dailyKey := fmt.Sprintf("engage:ratelimit:%s:day:%s", orgID, now.Format("2006-01-02"))

	result, err := r.reserveScript.Run(ctx, r.redis,
		[]string{secondKey, dailyKey},
		n, r.ratePerSecond, r.dailyLimit,
	).Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit check failed: %w", err)
	}

	if result[0].(int64) == 1 {
		return true, 0, nil
	}
	if result[1].(int64) == 2 {
		return false, 0, ErrDailyLimit
	}
	return false, time.Second, nil
}

// Wait reserves n slots, sleeping through per-second denials until the
// reservation succeeds, the daily budget runs out, or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, orgID uuid.UUID, n int) error {
	for {
		allowed, wait, err := r.Reserve(ctx, orgID, n)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
