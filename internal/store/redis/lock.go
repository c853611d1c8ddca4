package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
)

// compareAndDelete deletes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AcquireLock takes a named mutation lock for ttl. A lock already held by
// someone else is reported as a conflict. The returned token releases it.
func (s *Store) AcquireLock(ctx context.Context, name string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, LockKey(name), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return "", domain.Conflict("another mutation is in progress for %s", name)
	}
	return token, nil
}

// ReleaseLock drops the lock if token still owns it.
func (s *Store) ReleaseLock(ctx context.Context, name, token string) error {
	if err := compareAndDelete.Run(ctx, s.client, []string{LockKey(name)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", name, err)
	}
	return nil
}
