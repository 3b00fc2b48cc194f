package credits

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/enums"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/model"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/rules"
	pgrepo "github.com/praveenkaruppusamy2005/inter-backend/internal/repo/postgres"
)

// userStoreStub mimics the conditional-update semantics of the real store:
// a debit succeeds only while the bucket has headroom, under a lock.
type userStoreStub struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newUserStoreStub(users ...model.User) *userStoreStub {
	s := &userStoreStub{users: make(map[string]*model.User)}
	for _, u := range users {
		stored := u
		s.users[u.Email] = &stored
	}
	return s
}

func (s *userStoreStub) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return model.User{}, pgrepo.ErrUserNotFound
	}
	return *u, nil
}

func (s *userStoreStub) DebitOne(_ context.Context, email string, src rules.DebitSource) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return false, nil
	}

	switch src.Bucket {
	case "paid_chat":
		if u.PaidChatCredits-u.ChatCreditsUsed >= 1 {
			u.ChatCreditsUsed++
			return true, nil
		}
	case "paid_interview":
		if u.PaidInterviewCredits-u.InterviewCreditsUsed >= 1 {
			u.InterviewCreditsUsed++
			return true, nil
		}
	case "free":
		if u.FreeCredits-u.CreditsUsed >= 1 {
			u.CreditsUsed++
			return true, nil
		}
	default:
		return false, errors.New("unknown bucket")
	}
	return false, nil
}

func (s *userStoreStub) ResetFreeCredits(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return pgrepo.ErrUserNotFound
	}
	u.FreeCredits = 1
	u.CreditsUsed = 0
	return nil
}

func (s *userStoreStub) ListTransactions(_ context.Context, _ string) ([]model.Transaction, error) {
	return nil, nil
}

func TestCheckUnknownUserReadsAsZeroBalance(t *testing.T) {
	svc := NewService(newUserStoreStub(), zap.NewNop())

	snap, err := svc.Check(context.Background(), "Nobody@Example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if snap.Email != "nobody@example.com" || snap.Plan != model.PlanFree {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.HasChatAccess || snap.HasInterviewAccess || snap.ChatRemaining != 0 {
		t.Fatalf("unknown user must have no access: %+v", snap)
	}
}

func TestDebitPrefersPaidBucket(t *testing.T) {
	store := newUserStoreStub(model.User{
		Email:           "buyer@example.com",
		Plan:            model.PlanFree,
		FreeCredits:     1,
		PaidChatCredits: 1,
	})
	svc := NewService(store, zap.NewNop())

	result, err := svc.Debit(context.Background(), "buyer@example.com", enums.FeatureChat)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if result.Source != "paid_chat" {
		t.Fatalf("debit source: got %s want paid_chat", result.Source)
	}

	// Paid bucket exhausted; the shared free pool is next.
	result, err = svc.Debit(context.Background(), "buyer@example.com", enums.FeatureChat)
	if err != nil {
		t.Fatalf("second debit: %v", err)
	}
	if result.Source != "free" {
		t.Fatalf("second debit source: got %s want free", result.Source)
	}

	if _, err := svc.Debit(context.Background(), "buyer@example.com", enums.FeatureChat); !errors.Is(err, ErrNoCredits) {
		t.Fatalf("expected no credits, got %v", err)
	}
}

func TestDebitProUserConsumesNothing(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	store := newUserStoreStub(model.User{
		Email:        "pro@example.com",
		Plan:         model.PlanPro,
		ProExpiresAt: &expiry,
	})
	svc := NewService(store, zap.NewNop())

	for i := 0; i < 3; i++ {
		result, err := svc.Debit(context.Background(), "pro@example.com", enums.FeatureInterview)
		if err != nil {
			t.Fatalf("pro debit %d: %v", i, err)
		}
		if result.Source != "pro_plan" {
			t.Fatalf("pro debit source: got %s", result.Source)
		}
	}
}

func TestExpiredProFallsBackToCredits(t *testing.T) {
	expiry := time.Now().Add(-time.Hour)
	store := newUserStoreStub(model.User{
		Email:        "lapsed@example.com",
		Plan:         model.PlanPro,
		ProExpiresAt: &expiry,
		FreeCredits:  1,
	})
	svc := NewService(store, zap.NewNop())

	result, err := svc.Debit(context.Background(), "lapsed@example.com", enums.FeatureChat)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if result.Source != "free" {
		t.Fatalf("lapsed pro must spend credits, got source %s", result.Source)
	}
}

func TestConcurrentDebitsNeverOverspend(t *testing.T) {
	store := newUserStoreStub(model.User{
		Email:       "racer@example.com",
		Plan:        model.PlanFree,
		FreeCredits: 1,
	})
	svc := NewService(store, zap.NewNop())

	const workers = 10
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Debit(context.Background(), "racer@example.com", enums.FeatureInterview); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	won := 0
	for range successes {
		won++
	}
	if won != 1 {
		t.Fatalf("%d debits succeeded for a single credit, want 1", won)
	}

	u, err := store.FindByEmail(context.Background(), "racer@example.com")
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if u.CreditsUsed != 1 {
		t.Fatalf("credits used: got %d want 1", u.CreditsUsed)
	}
}

func TestResetRestoresFreePool(t *testing.T) {
	store := newUserStoreStub(model.User{
		Email:       "spent@example.com",
		Plan:        model.PlanFree,
		FreeCredits: 1,
		CreditsUsed: 1,
	})
	svc := NewService(store, zap.NewNop())

	snap, err := svc.Reset(context.Background(), "spent@example.com")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if snap.FreeRemaining != 1 {
		t.Fatalf("free remaining after reset: got %d want 1", snap.FreeRemaining)
	}
}
