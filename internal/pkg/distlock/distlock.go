// Package distlock provides distributed locks so that background engines
// (campaign scheduler, segment refresher, journey engine) run on exactly one
// process when both cmd/server and cmd/worker are deployed.
package distlock

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lock is a non-blocking distributed lock.
type Lock interface {
	// TryAcquire attempts to take the lock without blocking.
	TryAcquire(ctx context.Context) (bool, error)
	// Release gives the lock back if this instance still owns it.
	Release(ctx context.Context) error
}

// New returns a Redis-backed lock when redisClient is non-nil, otherwise a
// Postgres advisory lock. Redis is preferred for cross-host deployments;
// advisory locks cover the single-database case with no extra infrastructure.
func New(redisClient *redis.Client, db *sql.DB, name string, ttl time.Duration) Lock {
	if redisClient != nil {
		return newRedisLock(redisClient, name, ttl)
	}
	return newAdvisoryLock(db, name)
}

// redisLock uses SET NX with a TTL and a random owner token so a crashed
// holder cannot be released by someone else.
type redisLock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

func newRedisLock(client *redis.Client, name string, ttl time.Duration) *redisLock {
	b := make([]byte, 16)
	rand.Read(b)
	return &redisLock{
		client: client,
		key:    "engage:lock:" + name,
		token:  hex.EncodeToString(b),
		ttl:    ttl,
	}
}

func (l *redisLock) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

func (l *redisLock) Release(ctx context.Context) error {
	_, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Result()
	return err
}

// advisoryLock maps the lock name onto a pg_try_advisory_lock id. The lock
// is session-scoped, so a dropped connection releases it automatically.
type advisoryLock struct {
	db *sql.DB
	id int64
}

func newAdvisoryLock(db *sql.DB, name string) *advisoryLock {
	h := fnv.New64a()
	h.Write([]byte(name))
	return &advisoryLock{db: db, id: int64(h.Sum64())}
}

func (l *advisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	var ok bool
	err := l.db.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.id).Scan(&ok)
	return ok, err
}

func (l *advisoryLock) Release(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.id)
	return err
}
