// Package phonepe wraps the PhonePe payment gateway. Every response is
// treated as untrusted I/O: calls carry timeouts and a bounded retry count,
// and webhook callbacks are authenticated before the body is parsed.
package phonepe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/infra/httpclient"
)

var (
	ErrUnauthorizedCallback = errors.New("callback authorization invalid")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
	ErrPayRejected          = errors.New("payment initiation rejected")
)

// Order states reported by the gateway.
const (
	StateCompleted     = "COMPLETED"
	StateFailed        = "FAILED"
	StatePending       = "PENDING"
	StateCancelled     = "CANCELLED"
	StateUserCancelled = "USER_CANCELLED"
	StateRejected      = "REJECTED"
)

// EventOrderCompleted is the webhook event type for a successful checkout.
const EventOrderCompleted = "CHECKOUT_ORDER_COMPLETED"

const (
	payPath    = "/pg/v1/pay"
	statusPath = "/pg/v1/status"
)

// IsFailureState reports whether the gateway state is a terminal failure.
func IsFailureState(state string) bool {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case StateFailed, StateCancelled, StateUserCancelled, StateRejected:
		return true
	default:
		return false
	}
}

type Config struct {
	BaseURL       string
	ClientID      string
	ClientSecret  string
	ClientVersion int
	Timeout       time.Duration
	MaxRetries    int
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("phonepe base url is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("phonepe credentials are required")
	}
	if cfg.ClientVersion <= 0 {
		cfg.ClientVersion = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg:    cfg,
		http:   httpclient.New(cfg.Timeout),
		logger: logger,
	}, nil
}

type PayRequest struct {
	MerchantOrderID string
	AmountPaise     int64
	RedirectURL     string
	CallbackURL     string
	ExpireAfter     time.Duration
	Message         string
	UserEmail       string
}

type PayResponse struct {
	RedirectURL string
	OrderID     string
	State       string
}

type StatusResponse struct {
	State             string
	ErrorCode         string
	DetailedErrorCode string
}

// CallbackEvent is the decoded, authenticated webhook payload.
type CallbackEvent struct {
	Type    string          `json:"type"`
	Payload CallbackPayload `json:"payload"`
}

type CallbackPayload struct {
	OrderID string `json:"orderId"`
	State   string `json:"state"`
}

type payEnvelope struct {
	Request string `json:"request"`
}

type payBody struct {
	MerchantID            string              `json:"merchantId"`
	MerchantTransactionID string              `json:"merchantTransactionId"`
	Amount                int64               `json:"amount"`
	RedirectURL           string              `json:"redirectUrl"`
	RedirectMode          string              `json:"redirectMode"`
	CallbackURL           string              `json:"callbackUrl,omitempty"`
	ExpireAfter           int64               `json:"expireAfter,omitempty"`
	Message               string              `json:"message,omitempty"`
	UDF1                  string              `json:"udf1,omitempty"`
	PaymentInstrument     payInstrumentRecord `json:"paymentInstrument"`
}

type payInstrumentRecord struct {
	Type string `json:"type"`
}

type payResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		State                 string `json:"state"`
		InstrumentResponse    struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

type statusResult struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Data    struct {
		State             string `json:"state"`
		ResponseCode      string `json:"responseCode"`
		DetailedErrorCode string `json:"detailedErrorCode"`
	} `json:"data"`
}

// Pay creates a checkout order and returns the page the user must be
// redirected to. An order the gateway accepts starts out PENDING.
func (c *Client) Pay(ctx context.Context, req PayRequest) (PayResponse, error) {
	if req.MerchantOrderID == "" || req.AmountPaise <= 0 || req.RedirectURL == "" {
		return PayResponse{}, fmt.Errorf("invalid pay request")
	}

	body := payBody{
		MerchantID:            c.cfg.ClientID,
		MerchantTransactionID: req.MerchantOrderID,
		Amount:                req.AmountPaise,
		RedirectURL:           req.RedirectURL,
		RedirectMode:          "REDIRECT",
		CallbackURL:           req.CallbackURL,
		Message:               req.Message,
		UDF1:                  req.UserEmail,
		PaymentInstrument:     payInstrumentRecord{Type: "PAY_PAGE"},
	}
	if req.ExpireAfter > 0 {
		body.ExpireAfter = int64(req.ExpireAfter.Seconds())
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return PayResponse{}, fmt.Errorf("marshal pay body: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	envelope, err := json.Marshal(payEnvelope{Request: encoded})
	if err != nil {
		return PayResponse{}, fmt.Errorf("marshal pay envelope: %w", err)
	}

	verify := c.sign(encoded + payPath)
	resp, err := httpclient.DoWithRetries(ctx, c.http, c.cfg.MaxRetries, func() (*http.Request, error) {
		httpReq, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+payPath, bytes.NewReader(envelope))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-VERIFY", verify)
		return httpReq, nil
	})
	if err != nil {
		return PayResponse{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var result payResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return PayResponse{}, fmt.Errorf("%w: decode pay response: %v", ErrGatewayUnavailable, err)
	}

	redirectURL := result.Data.InstrumentResponse.RedirectInfo.URL
	if !result.Success || redirectURL == "" {
		c.logger.Warn("phonepe pay rejected",
			zap.String("order_id", req.MerchantOrderID),
			zap.String("code", result.Code),
		)
		return PayResponse{}, fmt.Errorf("%w: %s", ErrPayRejected, result.Code)
	}

	state := result.Data.State
	if state == "" {
		state = StatePending
	}

	return PayResponse{
		RedirectURL: redirectURL,
		OrderID:     result.Data.MerchantTransactionID,
		State:       state,
	}, nil
}

// OrderStatus asks the gateway for the current state of an order.
func (c *Client) OrderStatus(ctx context.Context, merchantOrderID string) (StatusResponse, error) {
	if merchantOrderID == "" {
		return StatusResponse{}, fmt.Errorf("merchant order id is required")
	}

	path := fmt.Sprintf("%s/%s/%s", statusPath, c.cfg.ClientID, merchantOrderID)
	verify := c.sign(path)
	resp, err := httpclient.DoWithRetries(ctx, c.http, c.cfg.MaxRetries, func() (*http.Request, error) {
		httpReq, err := http.NewRequest(http.MethodGet, c.cfg.BaseURL+path, nil)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-VERIFY", verify)
		httpReq.Header.Set("X-MERCHANT-ID", c.cfg.ClientID)
		return httpReq, nil
	})
	if err != nil {
		return StatusResponse{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var result statusResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return StatusResponse{}, fmt.Errorf("%w: decode status response: %v", ErrGatewayUnavailable, err)
	}

	state := strings.ToUpper(strings.TrimSpace(result.Data.State))
	if state == "" {
		state = StatePending
	}

	return StatusResponse{
		State:             state,
		ErrorCode:         result.Data.ResponseCode,
		DetailedErrorCode: result.Data.DetailedErrorCode,
	}, nil
}

// ValidateCallback authenticates a webhook delivery and decodes its payload.
// The authorization header must equal hex(SHA256(username:password)); the body
// is parsed only after the header checks out.
func ValidateCallback(username, password, authHeader string, rawBody []byte) (CallbackEvent, error) {
	if username == "" || password == "" {
		return CallbackEvent{}, fmt.Errorf("webhook credentials are not configured")
	}

	expected := sha256Hex(username + ":" + password)
	received := strings.TrimSpace(authHeader)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(received))) != 1 {
		return CallbackEvent{}, ErrUnauthorizedCallback
	}

	var event CallbackEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return CallbackEvent{}, fmt.Errorf("decode callback body: %w", err)
	}
	if event.Payload.OrderID == "" {
		return CallbackEvent{}, fmt.Errorf("callback payload missing order id")
	}

	return event, nil
}

// CallbackAuthHeader computes the value PhonePe sends in the webhook
// authorization header. Exposed for tests and local tooling.
func CallbackAuthHeader(username, password string) string {
	return sha256Hex(username + ":" + password)
}

func (c *Client) sign(payload string) string {
	return fmt.Sprintf("%s###%d", sha256Hex(payload+c.cfg.ClientSecret), c.cfg.ClientVersion)
}

func sha256Hex(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
