package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"x-persona-bot/internal/domain"
)

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get возвращает значение. Отсутствующий ключ — domain.ErrCacheMiss.
func (c *RedisCache) Get(key string) ([]byte, error) {
	value, err := c.client.Get(context.Background(), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	return value, err
}

// Set задаёт значение. Нулевой ttl означает хранение без истечения.
func (c *RedisCache) Set(key string, value []byte, ttl time.Duration) error {
	return c.client.Set(context.Background(), key, value, ttl).Err()
}

// Delete удаляет ключ целиком.
func (c *RedisCache) Delete(key string) error {
	return c.client.Del(context.Background(), key).Err()
}
