package dto

import "time"

type CreditsCheckResponse struct {
	Email              string     `json:"email"`
	Plan               string     `json:"plan"`
	IsPro              bool       `json:"is_pro"`
	ProExpiresAt       *time.Time `json:"pro_expires_at,omitempty"`
	ChatRemaining      int        `json:"chat_remaining"`
	InterviewRemaining int        `json:"interview_remaining"`
	FreeRemaining      int        `json:"free_remaining"`
	HasChatAccess      bool       `json:"has_chat_access"`
	HasInterviewAccess bool       `json:"has_interview_access"`
}

type CreditsUseRequest struct {
	Email   string `json:"email"`
	Feature string `json:"feature"`
}

type CreditsUseResponse struct {
	Success bool                 `json:"success"`
	Source  string               `json:"source,omitempty"`
	Message string               `json:"message,omitempty"`
	Balance CreditsCheckResponse `json:"balance"`
}

type CreditsResetRequest struct {
	Email string `json:"email"`
}

type TransactionRecord struct {
	TransactionID string     `json:"transaction_id"`
	AmountINR     int64      `json:"amount_inr"`
	Status        string     `json:"status"`
	PaymentMethod string     `json:"payment_method"`
	PlanType      string     `json:"plan_type"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type TransactionsResponse struct {
	Email        string              `json:"email"`
	Transactions []TransactionRecord `json:"transactions"`
}
