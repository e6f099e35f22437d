package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another locker owns the key.
var ErrLockHeld = errors.New("lock held by another request")

// PostingLockKey builds redis keys for posting critical sections.
func PostingLockKey(tenantID uuid.UUID, kind string, documentID uuid.UUID) string {
	return fmt.Sprintf("posting:%s:%s:%s:lock", tenantID, kind, documentID)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is an advisory redis lock owned by a caller supplied token.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker constructs a Locker. A nil client disables locking.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes the lock for token and returns a release func. The release only deletes the
// key while it still holds token.
func (l *Locker) Acquire(ctx context.Context, key, token string) (func(), error) {
	if l == nil || l.client == nil || token == "" {
		return func() {}, nil
	}
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire lock: %w", err)
	}
	if !ok {
		// not re-entrant: a second attempt with the same token must not share the first holder's release
		return nil, ErrLockHeld
	}
	return func() {
		_ = releaseScript.Run(context.WithoutCancel(ctx), l.client, []string{key}, token).Err()
	}, nil
}
