package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"insider-risk/internal/analytics"
	"insider-risk/internal/dataset"
	"insider-risk/internal/models"

	"github.com/go-redis/redis/v8"
)

var ErrSessionNotFound = errors.New("session not found")

const recentSessionsKey = "sessions:recent"

type sessionSnapshot struct {
	ID        string                         `json:"id"`
	CreatedAt time.Time                      `json:"created_at"`
	Profile   analytics.NormalizationProfile `json:"profile"`
	Records   []models.BehavioralRecord      `json:"records"`
}

// RedisClient stores analysis sessions so any replica can serve follow-up
// requests with the same fitted profile.
type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(addr string, ttl time.Duration) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Проверка соединения
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisClient{
		client: client,
		ttl:    ttl,
	}, nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}

func (r *RedisClient) SaveSession(ctx context.Context, s *analytics.Session) error {
	data, err := json.Marshal(sessionSnapshot{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Profile:   s.Profile,
		Records:   s.Population.Records(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := r.client.Set(ctx, sessionKey(s.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session in Redis: %w", err)
	}

	if err := r.client.LPush(ctx, recentSessionsKey, s.ID).Err(); err != nil {
		return fmt.Errorf("failed to update recent sessions list: %w", err)
	}

	// Ограничиваем список 100 элементами
	r.client.LTrim(ctx, recentSessionsKey, 0, 99)

	return nil
}

// LoadSession restores a session with its stored profile; the profile is
// never refitted here.
func (r *RedisClient) LoadSession(ctx context.Context, id string) (*analytics.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session %s: %w", id, err)
	}

	var snap sessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
	}

	pop, err := dataset.NewPopulation(snap.Records)
	if err != nil {
		return nil, fmt.Errorf("stored session %s is corrupt: %w", id, err)
	}

	return analytics.RestoreSession(snap.ID, snap.CreatedAt, pop, snap.Profile), nil
}

func (r *RedisClient) RecentSessions(ctx context.Context, count int64) ([]string, error) {
	ids, err := r.client.LRange(ctx, recentSessionsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get recent session ids: %w", err)
	}

	var live []string
	for _, id := range ids {
		n, err := r.client.Exists(ctx, sessionKey(id)).Result()
		if err != nil || n == 0 {
			continue // Пропускаем истёкшие сессии
		}
		live = append(live, id)
	}

	return live, nil
}

func (r *RedisClient) DeleteSession(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	r.client.LRem(ctx, recentSessionsKey, 0, id)
	return nil
}

func (r *RedisClient) Close() error {
	return r.client.Close()
}
