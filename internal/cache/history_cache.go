package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"ragweaver/internal/model"
)

const (
	defaultHistoryTTL = 60 * time.Second
	defaultDirtyTTL   = 5 * time.Second

	historyKeyPrefix = "chat:history:"
	dirtyKeyPrefix   = "chat:history:dirty:"
)

// HistoryCache keeps a JSON copy of a session's turns in Redis. A dirty
// marker is set on every write so readers skip a copy that may be stale
// until the asynchronous writer has caught up.
type HistoryCache struct {
	client     *redisv9.Client
	historyTTL time.Duration
	dirtyTTL   time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = defaultHistoryTTL
	}
	if dirtyTTL <= 0 {
		dirtyTTL = defaultDirtyTTL
	}
	return &HistoryCache{
		client:     client,
		historyTTL: historyTTL,
		dirtyTTL:   dirtyTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, sessionID string) ([]model.ChatTurn, bool, error) {
	raw, err := c.client.Get(ctx, historyKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var turns []model.ChatTurn
	if err := json.Unmarshal(raw, &turns); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return turns, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, sessionID string, turns []model.ChatTurn) error {
	payload, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, historyKeyPrefix+sessionID, payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, historyKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) MarkDirty(ctx context.Context, sessionID string) error {
	if err := c.client.Set(ctx, dirtyKeyPrefix+sessionID, "1", c.dirtyTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context, sessionID string) (bool, error) {
	n, err := c.client.Exists(ctx, dirtyKeyPrefix+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return n > 0, nil
}
