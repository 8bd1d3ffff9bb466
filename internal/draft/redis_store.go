package draft

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// draftPayload is the value stored per slot key.
type draftPayload struct {
	FormData  map[string]any `json:"form_data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RedisStore implements Backend on Redis. Each (user, form type) pair maps
// to one key, so a plain SET is already upsert-on-conflict. Slots carry a
// retention TTL so abandoned drafts age out on their own.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisStore connects to Redis and verifies the connection. retention
// <= 0 defaults to 30 days.
func NewRedisStore(redisURL string, retention time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, retention), nil
}

// NewRedisStoreWithClient wraps an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &RedisStore{
		client:    client,
		prefix:    "draft:",
		retention: retention,
	}
}

func (s *RedisStore) key(userID, formType string) string {
	return s.prefix + userID + ":" + formType
}

// UpsertDraft overwrites the slot and refreshes its retention TTL.
func (s *RedisStore) UpsertDraft(ctx context.Context, userID, formType string, formData map[string]any) error {
	payload := draftPayload{
		FormData:  formData,
		UpdatedAt: time.Now(),
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal draft payload: %w", err)
	}

	if err := s.client.Set(ctx, s.key(userID, formType), jsonData, s.retention).Err(); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// GetDraft returns the stored form data, or nil when no slot exists.
func (s *RedisStore) GetDraft(ctx context.Context, userID, formType string) (map[string]any, error) {
	jsonData, err := s.client.Get(ctx, s.key(userID, formType)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup draft: %w", err)
	}

	var payload draftPayload
	if err := json.Unmarshal([]byte(jsonData), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal draft payload: %w", err)
	}
	return payload.FormData, nil
}

// DeleteDraft removes the slot. Deleting a missing slot is not an error.
func (s *RedisStore) DeleteDraft(ctx context.Context, userID, formType string) error {
	if err := s.client.Del(ctx, s.key(userID, formType)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
