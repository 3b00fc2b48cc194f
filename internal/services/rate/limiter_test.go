package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/praveenkaruppusamy2005/inter-backend/internal/repo/redis"
)

func TestLimiterBlocksAfterBudget(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewPollRateRepo(client)
	limiter := NewLimiter(repo, 3)

	ctx := context.Background()
	orderID := "order-42"

	for i := 0; i < 3; i++ {
		retryAfter, allowed, err := limiter.AllowPoll(ctx, orderID)
		if err != nil {
			t.Fatalf("allow poll #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on poll #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.AllowPoll(ctx, orderID)
	if err != nil {
		t.Fatalf("allow poll #4: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on fourth poll in window")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry_after, got %d", retryAfter)
	}

	mr.FastForward(61 * time.Second)

	retryAfter, allowed, err = limiter.AllowPoll(ctx, orderID)
	if err != nil {
		t.Fatalf("allow poll after window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("expected fresh window after expiry: allowed=%v retry_after=%d", allowed, retryAfter)
	}
}

func TestLimiterIsolatesOrders(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	repo := redrepo.NewPollRateRepo(client)
	limiter := NewLimiter(repo, 1)

	ctx := context.Background()

	if _, allowed, err := limiter.AllowPoll(ctx, "order-a"); err != nil || !allowed {
		t.Fatalf("first poll for order-a: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.AllowPoll(ctx, "order-a"); err != nil || allowed {
		t.Fatalf("second poll for order-a must be blocked: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.AllowPoll(ctx, "order-b"); err != nil || !allowed {
		t.Fatalf("order-b must have its own window: allowed=%v err=%v", allowed, err)
	}
}

func TestLimiterZeroBudgetDisablesThrottle(t *testing.T) {
	limiter := NewLimiter(nil, 0)

	for i := 0; i < 5; i++ {
		if _, allowed, err := limiter.AllowPoll(context.Background(), "order-1"); err != nil || !allowed {
			t.Fatalf("zero budget must allow everything: allowed=%v err=%v", allowed, err)
		}
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})

	return mr, client
}
