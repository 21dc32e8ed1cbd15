package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript проверяет квоты и увеличивает счётчики одной командой EVAL,
// поэтому между проверкой и увеличением не может вклиниться другой процесс.
// KEYS[1] — ключ окна; ARGV: запросы, изображения, квота запросов, квота изображений, TTL в мс.
var takeScript = redis.NewScript(`
local requests = tonumber(redis.call('HGET', KEYS[1], 'requests') or '0')
local images = tonumber(redis.call('HGET', KEYS[1], 'images') or '0')
local addRequests = tonumber(ARGV[1])
local addImages = tonumber(ARGV[2])
local requestQuota = tonumber(ARGV[3])
local imageQuota = tonumber(ARGV[4])
if (requestQuota > 0 and requests + addRequests > requestQuota) or
   (imageQuota > 0 and images + addImages > imageQuota) then
	return {0, requests, images}
end
requests = redis.call('HINCRBY', KEYS[1], 'requests', addRequests)
images = redis.call('HINCRBY', KEYS[1], 'images', addImages)
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return {1, requests, images}
`)

// RedisStore хранит счётчики в Redis и позволяет нескольким процессам
// разделять одни и те же лимиты.
type RedisStore struct {
	client *redis.Client
	prefix string
	clk    func() time.Time
}

// Connect создаёт клиента Redis по адресу вида "host:port" или "redis://..." и проверяет соединение.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisStore создаёт хранилище с префиксом ключей prefix (по умолчанию "imgify:rl:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "imgify:rl:"
	}
	return &RedisStore{client: client, prefix: prefix, clk: time.Now}
}

func (s *RedisStore) key(key string, windowStart time.Time) string {
	return s.prefix + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)
}

// Take реализует Store.
func (s *RedisStore) Take(ctx context.Context, ask Ask) (Usage, bool, error) {
	// Ключ живёт до конца окна и ещё минуту сверху на расхождение часов.
	ttl := ask.WindowStart.Add(ask.Window).Sub(s.clk()) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}

	res, err := takeScript.Run(ctx, s.client,
		[]string{s.key(ask.Key, ask.WindowStart)},
		ask.Requests, ask.Images, ask.RequestQuota, ask.ImageQuota, ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Usage{}, false, fmt.Errorf("redis take: %w", err)
	}
	if len(res) != 3 {
		return Usage{}, false, fmt.Errorf("redis take: unexpected reply of %d values", len(res))
	}
	return Usage{Requests: int(res[1]), Images: int(res[2])}, res[0] == 1, nil
}

// Usage реализует Store.
func (s *RedisStore) Usage(ctx context.Context, key string, windowStart time.Time) (Usage, error) {
	vals, err := s.client.HMGet(ctx, s.key(key, windowStart), "requests", "images").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Usage{}, nil
		}
		return Usage{}, fmt.Errorf("redis usage: %w", err)
	}
	return Usage{Requests: toInt(vals, 0), Images: toInt(vals, 1)}, nil
}

// Close закрывает соединение с Redis.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func toInt(vals []any, i int) int {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	str, ok := vals[i].(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(str)
	if err != nil {
		return 0
	}
	return n
}
