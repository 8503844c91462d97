// File: utils/cache.go
package utils

import (
	"context"
	"time"

	"voicebook/config"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var (
	// SessionCacheClient stores dialogue snapshots.
	SessionCacheClient *redis.Client
	// LockClient holds the per-slot commit locks.
	LockClient *redis.Client
)

func newRedisClient(db int, purpose string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		GetLogger().Fatal("Failed to connect to Redis", zap.String("purpose", purpose), zap.Error(err))
	}
	return client
}

// InitRedis connects every Redis client the service uses.
func InitRedis() {
	SessionCacheClient = newRedisClient(config.AppConfig.RedisSessionDB, "session")
	LockClient = newRedisClient(config.AppConfig.RedisLockDB, "lock")
}

// GetSessionCacheClient returns the dialogue snapshot client.
func GetSessionCacheClient() *redis.Client {
	if SessionCacheClient == nil {
		SessionCacheClient = newRedisClient(config.AppConfig.RedisSessionDB, "session")
	}
	return SessionCacheClient
}

// GetLockClient returns the commit lock client.
func GetLockClient() *redis.Client {
	if LockClient == nil {
		LockClient = newRedisClient(config.AppConfig.RedisLockDB, "lock")
	}
	return LockClient
}
