package dto

type PaymentInitiateRequest struct {
	Email   string `json:"email"`
	Plan    string `json:"plan"`
	Credits int    `json:"credits,omitempty"`
	Days    int    `json:"days,omitempty"`
	Hours   int    `json:"hours,omitempty"`
}

type PaymentInitiateResponse struct {
	Success     bool   `json:"success"`
	OrderID     string `json:"order_id"`
	RedirectURL string `json:"redirect_url"`
	AmountINR   int64  `json:"amount_inr"`
}

type PaymentWebhookResponse struct {
	OK      bool   `json:"ok"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type PaymentStatusResponse struct {
	Status    string `json:"status"`
	State     string `json:"state,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}
