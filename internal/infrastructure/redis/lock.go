package redisstore

import (
	"context"
	"sync"
	"time"

	"bcchrates-service/internal/application"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ application.RunLock = (*Lock)(nil)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

// Lock is a TTL-bounded run lock shared by every service instance.
type Lock struct {
	Client *redis.Client
	TTL    time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

func NewLock(client *redis.Client, ttl time.Duration) *Lock {
	return &Lock{Client: client, TTL: ttl, tokens: map[string]string{}}
}

func (l *Lock) TryAcquire(ctx context.Context, key string) (bool, error) {
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, l.TTL).Result()
	if err != nil || !ok {
		return false, err
	}
	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

func (l *Lock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}
	return releaseScript.Run(ctx, l.Client, []string{key}, token).Err()
}

// Ping reports whether the lock backend is reachable.
func (l *Lock) Ping(ctx context.Context) error { return l.Client.Ping(ctx).Err() }
