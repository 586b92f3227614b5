package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dropDatabas3/hellobff/internal/cache"
)

// brokenCache simulates a dead backend: every operation fails.
type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("connection refused")
}
func (brokenCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("connection refused")
}
func (brokenCache) Delete(ctx context.Context, key string) error {
	return errors.New("connection refused")
}
func (brokenCache) Exists(ctx context.Context, key string) (bool, error) {
	return false, errors.New("connection refused")
}
func (brokenCache) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}
func (brokenCache) Ping(ctx context.Context) error { return errors.New("connection refused") }
func (brokenCache) Close() error                   { return nil }

func TestCacheAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewCacheAdapter(cache.NewMemory(cache.Config{}), time.Minute, nil, nil)

	a.Set(ctx, "k1", "v1", 0)
	if got := a.Get(ctx, "k1"); got != "v1" {
		t.Fatalf("expected v1, got %q", got)
	}

	a.Delete(ctx, "k1")
	if got := a.Get(ctx, "k1"); got != "" {
		t.Fatalf("expected empty after delete, got %q", got)
	}
}

func TestCacheAdapter_EmptyKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	a := NewCacheAdapter(cache.NewMemory(cache.Config{}), time.Minute, nil, nil)

	a.Set(ctx, "", "value", 0)
	if got := a.Get(ctx, ""); got != "" {
		t.Fatalf("empty key must never return data, got %q", got)
	}
	a.Delete(ctx, "")
}

func TestCacheAdapter_SwallowsBackendErrors(t *testing.T) {
	ctx := context.Background()
	a := NewCacheAdapter(brokenCache{}, time.Minute, nil, nil)

	// None of this may panic or propagate: the flow degrades to a cold
	// cache.
	a.Set(ctx, "k1", "v1", time.Minute)
	if got := a.Get(ctx, "k1"); got != "" {
		t.Fatalf("broken backend must read as miss, got %q", got)
	}
	a.Delete(ctx, "k1")
}

func TestCacheAdapter_MissIsEmpty(t *testing.T) {
	a := NewCacheAdapter(cache.NewMemory(cache.Config{}), time.Minute, nil, nil)
	if got := a.Get(context.Background(), "never-written"); got != "" {
		t.Fatalf("expected empty on miss, got %q", got)
	}
}
