// Package memory holds process-local stores. The intent registry here is
// correct for a single instance only; a horizontally scaled deployment needs
// the same check-and-set semantics on a shared store (a conditional
// "update where status = PENDING" on a persisted row).
package memory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/model"
)

var ErrIntentNotFound = errors.New("pending intent not found")

// IntentRepo maps order IDs to pending payment intents. MarkTerminal is the
// single synchronization point between the webhook and poll confirmation
// paths: the transition out of PENDING happens at most once, and every caller
// learns the previous status under the same lock.
type IntentRepo struct {
	mu      sync.Mutex
	intents map[string]*model.PendingIntent
	timers  map[string]*time.Timer
	now     func() time.Time
}

func NewIntentRepo() *IntentRepo {
	return &IntentRepo{
		intents: make(map[string]*model.PendingIntent),
		timers:  make(map[string]*time.Timer),
		now:     time.Now,
	}
}

func (r *IntentRepo) Create(intent model.PendingIntent) error {
	if intent.OrderID == "" {
		return fmt.Errorf("order id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.intents[intent.OrderID]; exists {
		return fmt.Errorf("intent %s already exists", intent.OrderID)
	}

	if intent.Status == "" {
		intent.Status = model.IntentPending
	}
	if intent.CreatedAt.IsZero() {
		intent.CreatedAt = r.now().UTC()
	}

	stored := intent
	r.intents[intent.OrderID] = &stored
	return nil
}

func (r *IntentRepo) Get(orderID string) (model.PendingIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[orderID]
	if !ok {
		return model.PendingIntent{}, ErrIntentNotFound
	}
	return *intent, nil
}

// MarkTerminal transitions the intent out of PENDING. The returned previous
// status tells the caller whether it won the transition; losers observe a
// terminal previous status and must treat the call as a no-op. Terminal states
// are never overwritten.
func (r *IntentRepo) MarkTerminal(orderID string, status model.IntentStatus) (model.IntentStatus, error) {
	if !status.Terminal() {
		return "", fmt.Errorf("status %s is not terminal", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[orderID]
	if !ok {
		return "", ErrIntentNotFound
	}

	previous := intent.Status
	if previous != model.IntentPending {
		return previous, nil
	}

	completed := r.now().UTC()
	intent.Status = status
	intent.CompletedAt = &completed
	return previous, nil
}

// EvictAfter schedules removal of a terminal intent. Resource bound only; the
// terminal transition must already be durable when this is called.
func (r *IntentRepo) EvictAfter(orderID string, delay time.Duration) {
	if delay <= 0 {
		r.Remove(orderID)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.intents[orderID]; !ok {
		return
	}
	if timer, ok := r.timers[orderID]; ok {
		timer.Stop()
	}
	r.timers[orderID] = time.AfterFunc(delay, func() {
		r.Remove(orderID)
	})
}

func (r *IntentRepo) Remove(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, ok := r.timers[orderID]; ok {
		timer.Stop()
		delete(r.timers, orderID)
	}
	delete(r.intents, orderID)
}

// SweepOlderThan drops every intent created before the cutoff, whatever its
// status. Bounds the abandoned-checkout leak; no entitlement state is held
// before confirmation, so dropping a PENDING intent only disables late
// confirmation for it.
func (r *IntentRepo) SweepOlderThan(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for orderID, intent := range r.intents {
		if intent.CreatedAt.Before(cutoff) {
			if timer, ok := r.timers[orderID]; ok {
				timer.Stop()
				delete(r.timers, orderID)
			}
			delete(r.intents, orderID)
			removed++
		}
	}
	return removed
}

func (r *IntentRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.intents)
}
