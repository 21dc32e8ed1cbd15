package contact

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sol1corejz/imgify/internal/models"
)

// RedisTransport кладёт сообщения в список Redis (LPUSH), откуда их забирает внешний обработчик.
type RedisTransport struct {
	client *redis.Client
	queue  string
}

func NewRedisTransport(client *redis.Client, queue string) *RedisTransport {
	if queue == "" {
		queue = "imgify:contact"
	}
	return &RedisTransport{client: client, queue: queue}
}

func (t *RedisTransport) Deliver(ctx context.Context, s models.ContactSubmission) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := t.client.LPush(ctx, t.queue, payload).Err(); err != nil {
		return fmt.Errorf("lpush %s: %w", t.queue, err)
	}
	return nil
}

// List возвращает последние limit сообщений очереди, новые первыми.
func (t *RedisTransport) List(ctx context.Context, limit int) ([]models.ContactSubmission, error) {
	if limit <= 0 {
		limit = 100
	}
	raw, err := t.client.LRange(ctx, t.queue, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", t.queue, err)
	}
	out := make([]models.ContactSubmission, 0, len(raw))
	for _, item := range raw {
		var s models.ContactSubmission
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			return nil, fmt.Errorf("decode queued submission: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
