package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client usando go-cache en memoria.
// Útil para desarrollo y testing.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
	// incrMu serializa Incr: el primer hit de una ventana es check-then-set
	// y sin lock dos goroutines pueden pisarse el Set inicial.
	incrMu sync.Mutex
}

// NewMemory crea un cliente de cache en memoria.
func NewMemory(cfg Config) *memoryClient {
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &memoryClient{
		prefix: cfg.Prefix,
		c:      gocache.New(ttl, time.Minute),
	}
}

func (c *memoryClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *memoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := c.c.Get(c.key(key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (c *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.c.Set(c.key(key), value, ttl)
	return nil
}

func (c *memoryClient) Delete(_ context.Context, key string) error {
	c.c.Delete(c.key(key))
	return nil
}

func (c *memoryClient) Exists(_ context.Context, key string) (bool, error) {
	_, ok := c.c.Get(c.key(key))
	return ok, nil
}

func (c *memoryClient) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.incrMu.Lock()
	defer c.incrMu.Unlock()

	k := c.key(key)
	if n, err := c.c.IncrementInt64(k, 1); err == nil {
		return n, nil
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.c.Set(k, int64(1), ttl)
	return 1, nil
}

func (c *memoryClient) Ping(_ context.Context) error { return nil }

func (c *memoryClient) Close() error { return nil }
