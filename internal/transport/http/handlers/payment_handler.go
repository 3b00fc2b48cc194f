package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/enums"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/model"
	billingsvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/billing"
	ratesvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/rate"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/transport/http/dto"
	httperrors "github.com/praveenkaruppusamy2005/inter-backend/internal/transport/http/errors"
)

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	billing *billingsvc.Service
	limiter *ratesvc.Limiter
}

func NewPaymentHandler(billing *billingsvc.Service, limiter *ratesvc.Limiter) *PaymentHandler {
	return &PaymentHandler{
		billing: billing,
		limiter: limiter,
	}
}

func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		writeInternal(w, "BILLING_SERVICE_UNAVAILABLE", "billing service is unavailable")
		return
	}

	var req dto.PaymentInitiateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	planType, ok := enums.ParsePlanType(req.Plan)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "unknown plan type")
		return
	}

	result, err := h.billing.Initiate(r.Context(), req.Email, model.PlanRequest{
		Type:    planType,
		Credits: req.Credits,
		Days:    req.Days,
		Hours:   req.Hours,
	})
	if err != nil {
		switch {
		case errors.Is(err, billingsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid payment request")
		case errors.Is(err, billingsvc.ErrInitiationFailed):
			httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
				Code:    "PAYMENT_INITIATION_FAILED",
				Message: "payment could not be initiated",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to initiate payment")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentInitiateResponse{
		Success:     true,
		OrderID:     result.OrderID,
		RedirectURL: result.RedirectURL,
		AmountINR:   result.AmountINR,
	})
}

// Webhook receives asynchronous confirmations from the gateway. The raw body
// is handed to the service unparsed; authentication happens there before
// anything else reads it.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		writeInternal(w, "BILLING_SERVICE_UNAVAILABLE", "billing service is unavailable")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "unreadable webhook body")
		return
	}

	result, err := h.billing.HandleWebhook(r.Context(), r.Header.Get("Authorization"), body)
	if err != nil {
		switch {
		case errors.Is(err, billingsvc.ErrUnauthorized):
			writeUnauthorized(w, "UNAUTHORIZED", "webhook authorization failed")
		case errors.Is(err, billingsvc.ErrOrderNotFound):
			httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
				Code:    "ORDER_NOT_FOUND",
				Message: "order not found",
			})
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to process webhook")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentWebhookResponse{
		OK:      true,
		OrderID: result.OrderID,
		Status:  string(result.Status),
	})
}

func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		writeInternal(w, "BILLING_SERVICE_UNAVAILABLE", "billing service is unavailable")
		return
	}

	orderID := chi.URLParam(r, "orderID")

	if h.limiter != nil {
		retryAfter, allowed, err := h.limiter.AllowPoll(r.Context(), orderID)
		if err == nil && !allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
				Code:          "RATE_LIMITED",
				Message:       "status polled too frequently",
				RetryAfterSec: retryAfter,
			})
			return
		}
	}

	result, err := h.billing.PollStatus(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, billingsvc.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "order id is required")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to check payment status")
		}
		return
	}

	httperrors.Write(w, http.StatusOK, dto.PaymentStatusResponse{
		Status:    result.Status,
		State:     result.State,
		ErrorCode: result.ErrorCode,
	})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(target)
}

func writeBadRequest(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusBadRequest, httperrors.APIError{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusUnauthorized, httperrors.APIError{Code: code, Message: message})
}

func writeInternal(w http.ResponseWriter, code, message string) {
	httperrors.Write(w, http.StatusInternalServerError, httperrors.APIError{Code: code, Message: message})
}
