package redis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this process still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SweepLock implements usecase.SweepLock using Redis. It keeps two BybitMover
// processes configured with the same sub-account from sweeping it at once.
type SweepLock struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	tokens map[string]string
}

// NewSweepLock creates a new SweepLock.
func NewSweepLock(client *redis.Client) *SweepLock {
	return &SweepLock{
		client: client,
		prefix: "bybitmover:sweep:",
		tokens: make(map[string]string),
	}
}

// Acquire takes the lock for accountUID. It returns false when another
// holder owns it.
func (l *SweepLock) Acquire(ctx context.Context, accountUID string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.prefix+accountUID, token, ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[accountUID] = token
	l.mu.Unlock()

	return true, nil
}

// Release drops the lock if it is still held by this process. Releasing a
// lock that expired or was never acquired is a no-op.
func (l *SweepLock) Release(ctx context.Context, accountUID string) error {
	l.mu.Lock()
	token, ok := l.tokens[accountUID]
	delete(l.tokens, accountUID)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	return releaseScript.Run(ctx, l.client, []string{l.prefix + accountUID}, token).Err()
}
