package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/enums"
	creditsvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/credits"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/transport/http/dto"
	httperrors "github.com/praveenkaruppusamy2005/inter-backend/internal/transport/http/errors"
)

type CreditsHandler struct {
	credits *creditsvc.Service
}

func NewCreditsHandler(credits *creditsvc.Service) *CreditsHandler {
	return &CreditsHandler{credits: credits}
}

func (h *CreditsHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.credits == nil {
		writeInternal(w, "CREDITS_SERVICE_UNAVAILABLE", "credits service is unavailable")
		return
	}

	snapshot, err := h.credits.Check(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		handleCreditsError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, snapshotResponse(snapshot))
}

func (h *CreditsHandler) Use(w http.ResponseWriter, r *http.Request) {
	if h.credits == nil {
		writeInternal(w, "CREDITS_SERVICE_UNAVAILABLE", "credits service is unavailable")
		return
	}

	var req dto.CreditsUseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	feature, ok := enums.ParseFeature(req.Feature)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "unknown feature")
		return
	}

	result, err := h.credits.Debit(r.Context(), req.Email, feature)
	if err != nil {
		// Running out of credits is a business outcome, not a transport
		// failure; clients read success=false off a 200.
		if errors.Is(err, creditsvc.ErrNoCredits) {
			httperrors.Write(w, http.StatusOK, dto.CreditsUseResponse{
				Success: false,
				Message: "no credits remaining",
			})
			return
		}
		handleCreditsError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.CreditsUseResponse{
		Success: true,
		Source:  result.Source,
		Balance: snapshotResponse(result.Remaining),
	})
}

func (h *CreditsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if h.credits == nil {
		writeInternal(w, "CREDITS_SERVICE_UNAVAILABLE", "credits service is unavailable")
		return
	}

	var req dto.CreditsResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	snapshot, err := h.credits.Reset(r.Context(), req.Email)
	if err != nil {
		handleCreditsError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, snapshotResponse(snapshot))
}

func (h *CreditsHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	if h.credits == nil {
		writeInternal(w, "CREDITS_SERVICE_UNAVAILABLE", "credits service is unavailable")
		return
	}

	email := chi.URLParam(r, "email")
	records, err := h.credits.History(r.Context(), email)
	if err != nil {
		handleCreditsError(w, err)
		return
	}

	out := make([]dto.TransactionRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, dto.TransactionRecord{
			TransactionID: rec.TransactionID,
			AmountINR:     rec.AmountINR,
			Status:        rec.Status,
			PaymentMethod: rec.PaymentMethod,
			PlanType:      string(rec.PlanType),
			CreatedAt:     rec.CreatedAt,
			CompletedAt:   rec.CompletedAt,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.TransactionsResponse{
		Email:        email,
		Transactions: out,
	})
}

func handleCreditsError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, creditsvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid credits request")
	default:
		writeInternal(w, "INTERNAL_ERROR", "credits operation failed")
	}
}

func snapshotResponse(s creditsvc.Snapshot) dto.CreditsCheckResponse {
	return dto.CreditsCheckResponse{
		Email:              s.Email,
		Plan:               s.Plan,
		IsPro:              s.IsPro,
		ProExpiresAt:       s.ProExpiresAt,
		ChatRemaining:      s.ChatRemaining,
		InterviewRemaining: s.InterviewRemaining,
		FreeRemaining:      s.FreeRemaining,
		HasChatAccess:      s.HasChatAccess,
		HasInterviewAccess: s.HasInterviewAccess,
	}
}
