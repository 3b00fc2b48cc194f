// Package billing reconciles external payments with user entitlements.
// Confirmations arrive over two independent paths (webhook delivery and
// active status polling), possibly duplicated and out of order; the intent
// store's check-and-set transition guarantees the ledger mutation happens
// exactly once per order.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/enums"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/model"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/infra/phonepe"
	memrepo "github.com/praveenkaruppusamy2005/inter-backend/internal/repo/memory"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrUnauthorized     = errors.New("webhook authorization failed")
	ErrOrderNotFound    = errors.New("order not found")
	ErrInitiationFailed = errors.New("payment initiation failed")
)

// Poll outcomes surfaced to the result page.
const (
	PollSuccess = "PAYMENT_SUCCESS"
	PollFailed  = "PAYMENT_FAILED"
	PollPending = "PAYMENT_PENDING"
)

const paymentMethod = "phonepe"

type IntentStore interface {
	Create(intent model.PendingIntent) error
	Get(orderID string) (model.PendingIntent, error)
	MarkTerminal(orderID string, status model.IntentStatus) (model.IntentStatus, error)
	EvictAfter(orderID string, delay time.Duration)
	Remove(orderID string)
}

type Gateway interface {
	Pay(ctx context.Context, req phonepe.PayRequest) (phonepe.PayResponse, error)
	OrderStatus(ctx context.Context, merchantOrderID string) (phonepe.StatusResponse, error)
}

type UserStore interface {
	ApplyGrant(ctx context.Context, email string, grant model.Grant, txRecord model.Transaction, now time.Time) error
}

type Config struct {
	CreditPriceINR     int64
	ProDayPriceINR     int64
	ProHourPriceINR    int64
	ChatBonusPerCredit int
	IntentRetention    time.Duration
	OrderExpiry        time.Duration
	CallbackBaseURL    string
	WebhookUsername    string
	WebhookPassword    string
	ApplyMaxRetries    int
}

type Service struct {
	intents IntentStore
	gateway Gateway
	users   UserStore
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(intents IntentStore, gateway Gateway, users UserStore, cfg Config, logger *zap.Logger) *Service {
	if cfg.IntentRetention <= 0 {
		cfg.IntentRetention = 5 * time.Minute
	}
	if cfg.OrderExpiry <= 0 {
		cfg.OrderExpiry = time.Hour
	}
	if cfg.ApplyMaxRetries <= 0 {
		cfg.ApplyMaxRetries = 3
	}
	if cfg.ChatBonusPerCredit < 0 {
		cfg.ChatBonusPerCredit = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		intents: intents,
		gateway: gateway,
		users:   users,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

type InitiateResult struct {
	OrderID     string
	RedirectURL string
	AmountINR   int64
}

type WebhookResult struct {
	OrderID string
	Status  model.IntentStatus
	Applied bool
}

type PollResult struct {
	Status    string
	State     string
	ErrorCode string
}

// Initiate opens a payment order with the gateway and records the pending
// intent. The charge amount is derived from the plan request server-side;
// client-supplied amounts are never trusted.
func (s *Service) Initiate(ctx context.Context, email string, plan model.PlanRequest) (InitiateResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return InitiateResult{}, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if s.intents == nil || s.gateway == nil {
		return InitiateResult{}, fmt.Errorf("billing dependencies are not configured")
	}

	amountINR, err := s.priceFor(plan)
	if err != nil {
		return InitiateResult{}, err
	}

	orderID := uuid.NewString()
	intent := model.PendingIntent{
		OrderID:   orderID,
		Email:     email,
		AmountINR: amountINR,
		Plan:      plan,
		Grant:     s.grantFor(plan),
		Status:    model.IntentPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.intents.Create(intent); err != nil {
		return InitiateResult{}, fmt.Errorf("record pending intent: %w", err)
	}

	base := strings.TrimRight(s.cfg.CallbackBaseURL, "/")
	payResp, err := s.gateway.Pay(ctx, phonepe.PayRequest{
		MerchantOrderID: orderID,
		AmountPaise:     amountINR * 100,
		RedirectURL:     fmt.Sprintf("%s/payment-complete?orderId=%s", base, orderID),
		CallbackURL:     base + "/phonepe/webhook",
		ExpireAfter:     s.cfg.OrderExpiry,
		Message:         describePlan(plan),
		UserEmail:       email,
	})
	if err != nil || payResp.RedirectURL == "" {
		s.intents.Remove(orderID)
		if err != nil {
			s.logger.Warn("payment initiation failed", zap.String("order_id", orderID), zap.Error(err))
			return InitiateResult{}, fmt.Errorf("%w: %v", ErrInitiationFailed, err)
		}
		return InitiateResult{}, fmt.Errorf("%w: no redirect url received", ErrInitiationFailed)
	}

	s.logger.Info("payment initiated",
		zap.String("order_id", orderID),
		zap.String("email", email),
		zap.Int64("amount_inr", amountINR),
		zap.String("plan_type", string(plan.Type)),
	)

	return InitiateResult{
		OrderID:     orderID,
		RedirectURL: payResp.RedirectURL,
		AmountINR:   amountINR,
	}, nil
}

// HandleWebhook authenticates and processes an asynchronous confirmation.
// Signature validation runs before anything reads the body; failures reject
// with no state change. Duplicate confirmations are absorbed and still
// acknowledged, since the provider retries until it sees success.
func (s *Service) HandleWebhook(ctx context.Context, authHeader string, rawBody []byte) (WebhookResult, error) {
	if s.intents == nil || s.users == nil {
		return WebhookResult{}, fmt.Errorf("billing dependencies are not configured")
	}

	event, err := phonepe.ValidateCallback(s.cfg.WebhookUsername, s.cfg.WebhookPassword, authHeader, rawBody)
	if err != nil {
		s.logger.Warn("webhook rejected", zap.Error(err))
		return WebhookResult{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	orderID := event.Payload.OrderID
	if _, err := s.intents.Get(orderID); err != nil {
		if errors.Is(err, memrepo.ErrIntentNotFound) {
			return WebhookResult{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return WebhookResult{}, err
	}

	if event.Type == phonepe.EventOrderCompleted && strings.EqualFold(event.Payload.State, phonepe.StateCompleted) {
		applied, err := s.apply(ctx, orderID)
		if err != nil {
			return WebhookResult{}, err
		}
		return WebhookResult{OrderID: orderID, Status: model.IntentSuccess, Applied: applied}, nil
	}

	if _, err := s.intents.MarkTerminal(orderID, model.IntentFailed); err != nil && !errors.Is(err, memrepo.ErrIntentNotFound) {
		return WebhookResult{}, err
	}
	s.intents.EvictAfter(orderID, s.cfg.IntentRetention)
	s.logger.Info("webhook reported failed payment",
		zap.String("order_id", orderID),
		zap.String("state", event.Payload.State),
	)
	return WebhookResult{OrderID: orderID, Status: model.IntentFailed}, nil
}

// PollStatus actively checks an order with the gateway; it covers the case
// where the webhook never arrives. Gateway errors are inconclusive and report
// pending rather than failing the order.
func (s *Service) PollStatus(ctx context.Context, orderID string) (PollResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return PollResult{}, fmt.Errorf("%w: order id is required", ErrValidation)
	}
	if s.gateway == nil || s.intents == nil {
		return PollResult{}, fmt.Errorf("billing dependencies are not configured")
	}

	status, err := s.gateway.OrderStatus(ctx, orderID)
	if err != nil {
		s.logger.Warn("order status check inconclusive", zap.String("order_id", orderID), zap.Error(err))
		return PollResult{Status: PollPending, State: phonepe.StatePending}, nil
	}

	switch {
	case strings.EqualFold(status.State, phonepe.StateCompleted):
		if _, err := s.apply(ctx, orderID); err != nil && !errors.Is(err, ErrOrderNotFound) {
			return PollResult{}, err
		}
		return PollResult{Status: PollSuccess, State: status.State}, nil

	case phonepe.IsFailureState(status.State):
		if _, err := s.intents.MarkTerminal(orderID, model.IntentFailed); err == nil {
			s.intents.EvictAfter(orderID, s.cfg.IntentRetention)
		}
		return PollResult{Status: PollFailed, State: status.State, ErrorCode: status.ErrorCode}, nil

	default:
		return PollResult{Status: PollPending, State: status.State}, nil
	}
}

// apply is the idempotent core: the PENDING->SUCCESS check-and-set decides a
// single winner, and only the winner mutates the ledger and appends the audit
// transaction. Losers report applied=false with no error.
func (s *Service) apply(ctx context.Context, orderID string) (bool, error) {
	intent, err := s.intents.Get(orderID)
	if err != nil {
		if errors.Is(err, memrepo.ErrIntentNotFound) {
			return false, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return false, err
	}

	previous, err := s.intents.MarkTerminal(orderID, model.IntentSuccess)
	if err != nil {
		if errors.Is(err, memrepo.ErrIntentNotFound) {
			return false, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return false, err
	}
	if previous != model.IntentPending {
		return false, nil
	}

	completed := s.now().UTC()
	txRecord := model.Transaction{
		TransactionID: orderID,
		Email:         intent.Email,
		AmountINR:     intent.AmountINR,
		Status:        string(model.IntentSuccess),
		PaymentMethod: paymentMethod,
		PlanType:      intent.Plan.Type,
		CreatedAt:     intent.CreatedAt,
		CompletedAt:   &completed,
	}

	// The transition already happened; losing this write means the user paid
	// without being credited. Retry with the same intent, never via a fresh
	// transition.
	var applyErr error
	for attempt := 1; attempt <= s.cfg.ApplyMaxRetries; attempt++ {
		applyErr = s.users.ApplyGrant(ctx, intent.Email, intent.Grant, txRecord, completed)
		if applyErr == nil {
			break
		}
		s.logger.Warn("entitlement grant failed, retrying",
			zap.String("order_id", orderID),
			zap.Int("attempt", attempt),
			zap.Error(applyErr),
		)
		select {
		case <-ctx.Done():
			applyErr = ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			continue
		}
		break
	}
	if applyErr != nil {
		s.logger.Error("entitlement grant lost, manual reconciliation required",
			zap.String("order_id", orderID),
			zap.String("email", intent.Email),
			zap.Int64("amount_inr", intent.AmountINR),
			zap.Error(applyErr),
		)
		return false, fmt.Errorf("apply entitlement for order %s: %w", orderID, applyErr)
	}

	s.intents.EvictAfter(orderID, s.cfg.IntentRetention)
	s.logger.Info("payment reconciled",
		zap.String("order_id", orderID),
		zap.String("email", intent.Email),
		zap.Int64("amount_inr", intent.AmountINR),
	)
	return true, nil
}

func (s *Service) priceFor(plan model.PlanRequest) (int64, error) {
	switch plan.Type {
	case enums.PlanTypeCredits:
		if plan.Credits <= 0 {
			return 0, fmt.Errorf("%w: credits must be positive", ErrValidation)
		}
		return int64(plan.Credits) * s.cfg.CreditPriceINR, nil
	case enums.PlanTypeSubscription:
		if plan.Days <= 0 {
			return 0, fmt.Errorf("%w: days must be positive", ErrValidation)
		}
		return int64(plan.Days) * s.cfg.ProDayPriceINR, nil
	case enums.PlanTypeHours:
		if plan.Hours <= 0 {
			return 0, fmt.Errorf("%w: hours must be positive", ErrValidation)
		}
		return int64(plan.Hours) * s.cfg.ProHourPriceINR, nil
	default:
		return 0, fmt.Errorf("%w: unknown plan type %q", ErrValidation, plan.Type)
	}
}

// grantFor fixes the entitlement mutation at initiation time. Purchased
// interview credits come bundled with chat credits; pro durations overwrite
// the expiry rather than extending it.
func (s *Service) grantFor(plan model.PlanRequest) model.Grant {
	switch plan.Type {
	case enums.PlanTypeCredits:
		return model.Grant{
			InterviewCredits: plan.Credits,
			ChatCredits:      plan.Credits * s.cfg.ChatBonusPerCredit,
		}
	case enums.PlanTypeSubscription:
		return model.Grant{ProDuration: time.Duration(plan.Days) * 24 * time.Hour}
	case enums.PlanTypeHours:
		return model.Grant{ProDuration: time.Duration(plan.Hours) * time.Hour}
	default:
		return model.Grant{}
	}
}

func describePlan(plan model.PlanRequest) string {
	switch plan.Type {
	case enums.PlanTypeCredits:
		return fmt.Sprintf("Interview Credits x%d", plan.Credits)
	case enums.PlanTypeSubscription:
		return fmt.Sprintf("Pro Plan - %d Day Access", plan.Days)
	case enums.PlanTypeHours:
		return fmt.Sprintf("Pro Plan Upgrade - %d Hour Access", plan.Hours)
	default:
		return "InterviewPro Purchase"
	}
}
