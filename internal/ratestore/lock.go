package ratestore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix    = "lock:rate:"
	lockRetryBackoff = 5 * time.Millisecond
)

// releaseScript deletes the lock only when it still holds the caller's
// token, so an expired-and-reacquired lock is never released by the old
// holder.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// PairLock is a key-scoped mutual-exclusion capability backed by the
// replicated store. Locks auto-expire, so a crashed holder is reclaimed
// after TTL instead of wedging the pair forever.
type PairLock struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewPairLock constructs a PairLock with the given hold TTL.
func NewPairLock(client redis.UniversalClient, ttl time.Duration) *PairLock {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &PairLock{client: client, ttl: ttl}
}

// Acquire blocks until the pair's lock is held or ctx is done, and returns
// a release func. Different pairs never contend with each other.
func (l *PairLock) Acquire(ctx context.Context, pair string) (func(), error) {
	key := lockKeyPrefix + pair
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire pair lock %s: %w", pair, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; an expired lock releases itself
		_, _ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Result()
	}
	return release, nil
}
