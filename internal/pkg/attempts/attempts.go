// Package attempts - счетчик неудачных попыток по ключу со скользящим окном.
// Инкремент атомарен на стороне Redis, общей блокировки между ключами нет.
package attempts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// Backend - операции Redis, нужные счетчику (реализуется pkg/redis.Client)
type Backend interface {
	Incr(ctx context.Context, key string) (int64, error)
	PExpire(ctx context.Context, key string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Counter считает неудачи и блокирует ключ после limit попыток в пределах window
type Counter struct {
	backend Backend
	prefix  string
	limit   int64
	window  time.Duration
}

// New создает счетчик
func New(backend Backend, prefix string, limit int, window time.Duration) *Counter {
	return &Counter{
		backend: backend,
		prefix:  prefix,
		limit:   int64(limit),
		window:  window,
	}
}

func (c *Counter) key(id string) string {
	return c.prefix + id
}

// Blocked сообщает, исчерпан ли лимит для ключа
func (c *Counter) Blocked(ctx context.Context, id string) (bool, error) {
	raw, err := c.backend.Get(ctx, c.key(id))
	if errors.Is(err, redisv9.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read attempts: %w", err)
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse attempts: %w", err)
	}
	return n >= c.limit, nil
}

// Fail регистрирует неудачу и продлевает окно; возвращает текущее число неудач
func (c *Counter) Fail(ctx context.Context, id string) (int64, error) {
	key := c.key(id)

	n, err := c.backend.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	if err := c.backend.PExpire(ctx, key, c.window); err != nil {
		return n, fmt.Errorf("failed to set attempts window: %w", err)
	}
	return n, nil
}

// Reset сбрасывает счетчик после успешной попытки
func (c *Counter) Reset(ctx context.Context, id string) error {
	if err := c.backend.Del(ctx, c.key(id)); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}
