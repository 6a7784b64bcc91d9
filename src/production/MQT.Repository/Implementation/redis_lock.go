package implementation

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	interfaces "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Repository/Interfaces"
)

const siteLockPrefix = "site-dashboard:lock:site:"

// Deletes the key only while it still holds our token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSiteLocker shares the per-site lock across API instances
type RedisSiteLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSiteLocker(client *redis.Client, ttl time.Duration) *RedisSiteLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisSiteLocker{client: client, ttl: ttl}
}

func (l *RedisSiteLocker) Acquire(ctx context.Context, siteName string) (interfaces.ReleaseFunc, error) {
	key := siteLockPrefix + siteName
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, interfaces.ErrLockHeld
	}

	return func(ctx context.Context) error {
		return releaseLockScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}
