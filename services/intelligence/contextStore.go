// File: services/intelligence/contextStore.go
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voicebook/models"

	"github.com/go-redis/redis/v8"
)

const dialogueContextPrefix = "dlg:ctx:"

var ErrSnapshotNotFound = errors.New("no dialogue snapshot for call")

// RedisContextStore keeps the latest dialogue snapshot of each call for
// inspection. Entries expire after ttl.
type RedisContextStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisContextStore(client *redis.Client, ttl time.Duration) *RedisContextStore {
	return &RedisContextStore{client: client, ttl: ttl}
}

func (s *RedisContextStore) Get(ctx context.Context, callID string) (models.DialogueSnapshot, error) {
	key := dialogueContextPrefix + callID
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return models.DialogueSnapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return models.DialogueSnapshot{}, fmt.Errorf("load snapshot %s: %w", callID, err)
	}
	var snap models.DialogueSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.DialogueSnapshot{}, fmt.Errorf("decode snapshot %s: %w", callID, err)
	}
	return snap, nil
}

func (s *RedisContextStore) Save(ctx context.Context, snap models.DialogueSnapshot) error {
	key := dialogueContextPrefix + snap.CallID
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, b, s.ttl).Err()
}
