package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisClient implementa Client usando Redis.
type redisClient struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedis crea un cliente de cache Redis.
// Los comandos reintentan con backoff exponencial con tope configurable; cada comando
// individual corre bajo CommandTimeout para que un Redis caído degrade a
// "cache miss" en vez de colgar el flujo de login.
// maxCommandRetries acota los reintentos por comando. Ojo con la semántica de
// go-redis: -1 DESHABILITA los reintentos y 0 usa el default de la librería
// (3); solo un valor positivo deja gobernar al backoff configurado.
const maxCommandRetries = 5

func redisOptions(cfg Config) *redis.Options {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if cfg.Port == 0 {
		addr = cfg.Host + ":6379"
	}

	return &redis.Options{
		Addr:            addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      maxCommandRetries,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: cfg.maxRetryBackoff(),
	}
}

func NewRedis(cfg Config) (*redisClient, error) {
	rdb := redis.NewClient(redisOptions(cfg))

	// Verificar conexión
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis ping failed: %w", err)
	}

	return &redisClient{
		client:  rdb,
		prefix:  cfg.Prefix,
		timeout: cfg.commandTimeout(),
	}, nil
}

func (c *redisClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *redisClient) cmdCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *redisClient) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := c.cmdCtx(ctx)
	defer cancel()

	val, err := c.client.Get(ctx, c.key(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *redisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := c.cmdCtx(ctx)
	defer cancel()

	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *redisClient) Delete(ctx context.Context, key string) error {
	ctx, cancel := c.cmdCtx(ctx)
	defer cancel()

	return c.client.Del(ctx, c.key(key)).Err()
}

func (c *redisClient) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := c.cmdCtx(ctx)
	defer cancel()

	n, err := c.client.Exists(ctx, c.key(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *redisClient) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ctx, cancel := c.cmdCtx(ctx)
	defer cancel()

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, c.key(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	if incr.Val() == 1 && ttl > 0 {
		_ = c.client.Expire(ctx, c.key(key), ttl).Err()
	}
	return incr.Val(), nil
}

func (c *redisClient) Ping(ctx context.Context) error {
	ctx, cancel := c.cmdCtx(ctx)
	defer cancel()

	return c.client.Ping(ctx).Err()
}

func (c *redisClient) Close() error {
	return c.client.Close()
}
