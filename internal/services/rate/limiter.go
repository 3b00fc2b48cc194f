package rate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const pollWindow = time.Minute

type WindowStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Limiter throttles order status polling per order id in a fixed window.
type Limiter struct {
	store     WindowStore
	perMinute int
}

func NewLimiter(store WindowStore, perMinute int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	return &Limiter{
		store:     store,
		perMinute: perMinute,
	}
}

// AllowPoll records one poll attempt for the order and reports whether it is
// within the window budget, with a retry-after hint when it is not. A zero
// budget disables throttling.
func (l *Limiter) AllowPoll(ctx context.Context, orderID string) (int64, bool, error) {
	if strings.TrimSpace(orderID) == "" {
		return 0, false, fmt.Errorf("invalid order id")
	}
	if l.perMinute <= 0 {
		return 0, true, nil
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	count, ttl, err := l.store.Hit(ctx, pollKey(orderID), pollWindow)
	if err != nil {
		return 0, false, err
	}
	if count > int64(l.perMinute) {
		return ceilSeconds(ttl), false, nil
	}

	return 0, true, nil
}

func pollKey(orderID string) string {
	return "rate:poll:min:" + orderID
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
