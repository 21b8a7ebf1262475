// Package lock serializes work on wallets across processes. The database
// already serializes ledger transactions on one file; a WalletLocker adds a
// cross-process guard when several services share the ledger.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockFailed = errors.New("failed to acquire wallet lock")

const (
	keyPrefix            = "ledger:lock:wallet:"
	defaultTTL           = 10 * time.Second
	defaultRetryInterval = 20 * time.Millisecond
	defaultMaxRetries    = 50
)

// WalletLocker holds exclusive locks on a set of wallets. The returned
// release function is safe to call once.
type WalletLocker interface {
	Acquire(ctx context.Context, walletIds []string) (release func(), err error)
}

// NoopLocker never blocks.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, []string) (func(), error) {
	return func() {}, nil
}

// Check-and-delete so a holder whose lock expired cannot drop someone else's.
var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker implements WalletLocker with SET NX locks, one key per wallet.
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: defaultRetryInterval,
		maxRetries:    defaultMaxRetries,
	}
}

// Acquire locks every wallet in walletIds. Keys are taken in sorted order so
// two callers locking overlapping sets cannot deadlock.
func (l *RedisLocker) Acquire(ctx context.Context, walletIds []string) (func(), error) {
	keys := lockKeys(walletIds)
	token := uuid.New().String()

	held := make([]string, 0, len(keys))
	release := func() {
		// Release must work even when the caller's context is done.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for _, key := range held {
			if err := unlockScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
				zap.L().Warn("Failed to release wallet lock", zap.String("key", key), zap.Error(err))
			}
		}
	}

	for _, key := range keys {
		if err := l.lockKey(ctx, key, token); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}

	return release, nil
}

func (l *RedisLocker) lockKey(ctx context.Context, key, token string) error {
	for i := 0; i < l.maxRetries; i++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to set lock %s: %w", key, err)
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrLockFailed, key, ctx.Err())
		case <-time.After(l.retryInterval):
		}
	}
	return fmt.Errorf("%w: %s", ErrLockFailed, key)
}

// lockKeys returns the sorted, de-duplicated lock keys of walletIds.
func lockKeys(walletIds []string) []string {
	seen := make(map[string]struct{}, len(walletIds))
	keys := make([]string, 0, len(walletIds))
	for _, id := range walletIds {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, keyPrefix+id)
	}
	sort.Strings(keys)
	return keys
}
