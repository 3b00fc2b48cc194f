package model

import (
	"time"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/enums"
)

type IntentStatus string

const (
	IntentPending IntentStatus = "PENDING"
	IntentSuccess IntentStatus = "SUCCESS"
	IntentFailed  IntentStatus = "FAILED"
)

func (s IntentStatus) Terminal() bool {
	return s == IntentSuccess || s == IntentFailed
}

// PlanRequest describes what the user is buying. Exactly one quantity field is
// meaningful depending on Type.
type PlanRequest struct {
	Type    enums.PlanType `json:"type"`
	Credits int            `json:"credits,omitempty"`
	Days    int            `json:"days,omitempty"`
	Hours   int            `json:"hours,omitempty"`
}

// Grant is the entitlement mutation owed once the payment confirms. It is
// computed at initiation time so confirmation never trusts provider payloads
// for amounts.
type Grant struct {
	ChatCredits      int
	InterviewCredits int
	ProDuration      time.Duration
}

// PendingIntent tracks a payment between initiation and confirmation.
// Process-local and ephemeral; only terminal intents leave a trace in the
// transactions audit log.
type PendingIntent struct {
	OrderID     string
	Email       string
	AmountINR   int64
	Plan        PlanRequest
	Grant       Grant
	Status      IntentStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}
