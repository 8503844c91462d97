package scheduling

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const commitLockPrefix = "lock:"

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisCommitLock is a SETNX lock shared by every process using the same Redis.
type RedisCommitLock struct {
	Client *redis.Client
}

func NewRedisCommitLock(client *redis.Client) *RedisCommitLock {
	return &RedisCommitLock{Client: client}
}

func (l *RedisCommitLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	key = commitLockPrefix + key
	token := uuid.NewString()
	ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.Client, []string{key}, token).Err()
	}, nil
}

// LocalCommitLock serializes commits inside one process.
type LocalCommitLock struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalCommitLock() *LocalCommitLock {
	return &LocalCommitLock{held: make(map[string]time.Time)}
}

func (l *LocalCommitLock) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return nil, ErrLockHeld
	}
	expires := now.Add(ttl)
	l.held[key] = expires
	return func() {
		l.mu.Lock()
		if l.held[key].Equal(expires) {
			delete(l.held, key)
		}
		l.mu.Unlock()
	}, nil
}
