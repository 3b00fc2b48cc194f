package handlers

import (
	"net/http"

	httperrors "github.com/praveenkaruppusamy2005/inter-backend/internal/transport/http/errors"
)

type HealthHandler struct {
	service string
	env     string
}

func NewHealthHandler(service, env string) *HealthHandler {
	return &HealthHandler{service: service, env: env}
}

func (h *HealthHandler) Get(w http.ResponseWriter, _ *http.Request) {
	httperrors.Write(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": h.service,
		"env":     h.env,
	})
}
