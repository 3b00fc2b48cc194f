// Package credits answers access checks and performs atomic credit debits.
package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/enums"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/model"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/rules"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/repo/postgres"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNoCredits  = errors.New("no credits remaining")
)

type UserStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	DebitOne(ctx context.Context, email string, src rules.DebitSource) (bool, error)
	ResetFreeCredits(ctx context.Context, email string) error
	ListTransactions(ctx context.Context, email string) ([]model.Transaction, error)
}

type Service struct {
	users  UserStore
	logger *zap.Logger
	now    func() time.Time
}

func NewService(users UserStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:  users,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot is a read-only view of one user's balances at check time.
type Snapshot struct {
	Email              string
	Plan               string
	IsPro              bool
	ProExpiresAt       *time.Time
	ChatRemaining      int
	InterviewRemaining int
	FreeRemaining      int
	HasChatAccess      bool
	HasInterviewAccess bool
}

// Check reports balances and access without consuming anything. An unknown
// email is not an error: it reads as a free-plan user with zero balances.
func (s *Service) Check(ctx context.Context, email string) (Snapshot, error) {
	email = normalize(email)
	if email == "" {
		return Snapshot{}, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if s.users == nil {
		return Snapshot{}, fmt.Errorf("credits dependencies are not configured")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return Snapshot{Email: email, Plan: model.PlanFree}, nil
		}
		return Snapshot{}, err
	}

	now := s.now()
	return Snapshot{
		Email:              user.Email,
		Plan:               user.Plan,
		IsPro:              rules.IsPro(user.Plan, user.ProExpiresAt, now),
		ProExpiresAt:       user.ProExpiresAt,
		ChatRemaining:      rules.ChatRemaining(user),
		InterviewRemaining: rules.InterviewRemaining(user),
		FreeRemaining:      rules.FreeRemaining(user.FreeCredits, user.CreditsUsed),
		HasChatAccess:      rules.HasAccess(enums.FeatureChat, user, now),
		HasInterviewAccess: rules.HasAccess(enums.FeatureInterview, user, now),
	}, nil
}

// DebitResult reports which bucket paid for the use, or that the pro plan
// covered it without any deduction.
type DebitResult struct {
	Source    string
	Remaining Snapshot
}

// Debit consumes one credit for a feature. Active pro users pass through
// without deduction. Otherwise the deduction chain is walked in order and
// each bucket is tried with a single conditional update, so concurrent
// debits can never overspend a bucket.
func (s *Service) Debit(ctx context.Context, email string, feature enums.Feature) (DebitResult, error) {
	email = normalize(email)
	if email == "" {
		return DebitResult{}, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if s.users == nil {
		return DebitResult{}, fmt.Errorf("credits dependencies are not configured")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return DebitResult{}, fmt.Errorf("%w: %s", ErrNoCredits, email)
		}
		return DebitResult{}, err
	}

	if rules.IsPro(user.Plan, user.ProExpiresAt, s.now()) {
		snap, err := s.Check(ctx, email)
		if err != nil {
			return DebitResult{}, err
		}
		return DebitResult{Source: "pro_plan", Remaining: snap}, nil
	}

	for _, src := range rules.DebitPlan(feature) {
		ok, err := s.users.DebitOne(ctx, email, src)
		if err != nil {
			return DebitResult{}, err
		}
		if !ok {
			continue
		}

		snap, err := s.Check(ctx, email)
		if err != nil {
			return DebitResult{}, err
		}
		s.logger.Info("credit debited",
			zap.String("email", email),
			zap.String("feature", string(feature)),
			zap.String("bucket", src.Bucket),
		)
		return DebitResult{Source: src.Bucket, Remaining: snap}, nil
	}

	return DebitResult{}, fmt.Errorf("%w: %s", ErrNoCredits, email)
}

// Reset restores the free-trial pool for a user.
func (s *Service) Reset(ctx context.Context, email string) (Snapshot, error) {
	email = normalize(email)
	if email == "" {
		return Snapshot{}, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if s.users == nil {
		return Snapshot{}, fmt.Errorf("credits dependencies are not configured")
	}

	if err := s.users.ResetFreeCredits(ctx, email); err != nil {
		return Snapshot{}, err
	}

	return s.Check(ctx, email)
}

// History lists the completed payment records for a user, oldest first.
func (s *Service) History(ctx context.Context, email string) ([]model.Transaction, error) {
	email = normalize(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if s.users == nil {
		return nil, fmt.Errorf("credits dependencies are not configured")
	}

	return s.users.ListTransactions(ctx, email)
}

func normalize(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
