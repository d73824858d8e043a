// Package cache holds Redis-backed coordination shared across API instances.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 30 * time.Second

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SubmissionLock is a per-cart mutual exclusion lock used while an order is
// being submitted. Locks expire after ttl so a crashed holder cannot wedge a
// cart.
type SubmissionLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSubmissionLock(client *redis.Client, ttl time.Duration) *SubmissionLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &SubmissionLock{client: client, ttl: ttl}
}

// Acquire tries to take the lock for cartID. acquired is false when another
// holder owns it. The returned release func is a no-op once the lock expired
// or was taken over.
func (l *SubmissionLock) Acquire(ctx context.Context, cartID string) (func(context.Context), bool, error) {
	key := lockKey(cartID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// Ping reports whether Redis is reachable.
func (l *SubmissionLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func lockKey(cartID string) string {
	return fmt.Sprintf("checkout-lock:%s", cartID)
}
