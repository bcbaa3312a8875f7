// Package distributed provides a Redis-backed mutual exclusion
// primitive for state shared between signal instances, such as the
// peak viewer counter a stream's presence record carries.
package distributed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still carries this
// holder's token, so an expired lock reacquired by another instance
// is never released from here.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Lock is a single-use Redis lock. Acquire it with TryLock and release
// it with Unlock; while held, a background goroutine extends the TTL.
type Lock struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration

	stopRenew chan struct{}
	stopOnce  sync.Once
}

// TryLock attempts to take the lock without blocking. It reports false
// when another holder currently owns the key.
func (l *Lock) TryLock(ctx context.Context) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !acquired {
		return false, nil
	}

	go l.renew(ctx)
	return true, nil
}

// Unlock releases the lock and stops TTL renewal. It returns an error
// when the key is no longer held by this instance.
func (l *Lock) Unlock(ctx context.Context) error {
	l.stopOnce.Do(func() { close(l.stopRenew) })

	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Result()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if n, ok := result.(int64); !ok || n == 0 {
		return fmt.Errorf("lock %s was not held by this instance", l.key)
	}
	return nil
}

// renew extends the key at half-TTL intervals until Unlock, the key
// changing hands, or ctx cancellation.
func (l *Lock) renew(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			holder, err := l.client.Get(ctx, l.key).Result()
			if err != nil || holder != l.token {
				return
			}
			l.client.Expire(ctx, l.key, l.ttl)
		case <-l.stopRenew:
			return
		case <-ctx.Done():
			return
		}
	}
}

// LockManager mints locks under a shared key prefix.
type LockManager struct {
	client *redis.Client
	prefix string
}

// NewLockManager returns a manager whose locks live under prefix.
func NewLockManager(client *redis.Client, prefix string) *LockManager {
	return &LockManager{client: client, prefix: prefix}
}

// AcquireLock returns an unheld lock for key with the given TTL. Each
// call mints a fresh holder token.
func (lm *LockManager) AcquireLock(key string, ttl time.Duration) *Lock {
	return &Lock{
		client:    lm.client,
		key:       lm.prefix + key,
		token:     newToken(),
		ttl:       ttl,
		stopRenew: make(chan struct{}),
	}
}

func newToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
