package model

import (
	"time"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/enums"
)

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

// User is the persistent entitlement record, keyed by email.
// free_credits/credits_used is the legacy shared trial pool; the paid
// chat/interview buckets are independent.
type User struct {
	Email                string     `json:"email"`
	Name                 string     `json:"name,omitempty"`
	Plan                 string     `json:"plan"`
	ProExpiresAt         *time.Time `json:"pro_expires_at,omitempty"`
	FreeCredits          int        `json:"free_credits"`
	CreditsUsed          int        `json:"credits_used"`
	PaidChatCredits      int        `json:"paid_chat_credits"`
	ChatCreditsUsed      int        `json:"chat_credits_used"`
	PaidInterviewCredits int        `json:"paid_interview_credits"`
	InterviewCreditsUsed int        `json:"interview_credits_used"`
	ResumePath           *string    `json:"resume_path,omitempty"`
	LastCreditUsedAt     *time.Time `json:"last_credit_used_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Transaction is an append-only audit record of a completed payment.
type Transaction struct {
	TransactionID string         `json:"transaction_id"`
	Email         string         `json:"email"`
	AmountINR     int64          `json:"amount_inr"`
	Status        string         `json:"status"`
	PaymentMethod string         `json:"payment_method"`
	PlanType      enums.PlanType `json:"plan_type"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}
