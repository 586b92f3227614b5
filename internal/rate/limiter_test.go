package rate

import (
	"context"
	"testing"
	"time"

	"github.com/dropDatabas3/hellobff/internal/cache"
)

func TestFixedWindowLimiter(t *testing.T) {
	ctx := context.Background()
	l := NewFixedWindowLimiter(cache.NewMemory(cache.Config{}), "rl:", 3, time.Minute)

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "203.0.113.7")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d should be allowed", i)
		}
	}

	res, err := l.Allow(ctx, "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("hit 4 should be blocked")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("blocked result must carry RetryAfter, got %v", res.RetryAfter)
	}

	// Otra key no comparte la ventana.
	other, err := l.Allow(ctx, "198.51.100.9")
	if err != nil {
		t.Fatal(err)
	}
	if !other.Allowed {
		t.Fatal("independent key must have its own window")
	}
}
