package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Pinger is satisfied by the Mongo client wrapper and by Redis clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger adapts a go-redis client.
type RedisPinger struct{ Client *redis.Client }

func (p RedisPinger) Ping(ctx context.Context) error { return p.Client.Ping(ctx).Err() }

// HealthStatus represents current status of external services.
type HealthStatus struct {
	Dependencies map[string]bool `json:"dependencies"`
	CheckedAt    time.Time       `json:"checkedAt"`
}

// Healthy is true when every checked dependency answered.
func (h HealthStatus) Healthy() bool {
	for _, ok := range h.Dependencies {
		if !ok {
			return false
		}
	}
	return true
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// CheckHealth pings every dependency once and stores the result.
func CheckHealth(ctx context.Context, deps map[string]Pinger) HealthStatus {
	status := HealthStatus{Dependencies: make(map[string]bool, len(deps)), CheckedAt: time.Now()}
	for name, p := range deps {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		status.Dependencies[name] = p.Ping(pctx) == nil
		cancel()
	}

	mu.Lock()
	currentHealth = status
	mu.Unlock()
	return status
}

// StartHealthMonitor performs periodic health checks until ctx is done.
func StartHealthMonitor(ctx context.Context, deps map[string]Pinger, every time.Duration) {
	go func() {
		CheckHealth(ctx, deps)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				CheckHealth(ctx, deps)
			}
		}
	}()
}
