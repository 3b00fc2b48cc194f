package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/config"
	billingsvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/billing"
	creditsvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/credits"
	ratesvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/rate"
	resumesvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/resumes"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/transport/http/handlers"
)

type Dependencies struct {
	BillingService *billingsvc.Service
	CreditsService *creditsvc.Service
	ResumeService  *resumesvc.Service
	PollLimiter    *ratesvc.Limiter
	Logger         *zap.Logger
	Config         config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler("interviewpro-api", deps.Config.Env)
	paymentHandler := handlers.NewPaymentHandler(deps.BillingService, deps.PollLimiter)
	creditsHandler := handlers.NewCreditsHandler(deps.CreditsService)
	resumeHandler := handlers.NewResumeHandler(deps.ResumeService)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/phonepe", func(r chi.Router) {
		r.Post("/initiate", paymentHandler.Initiate)
		r.Post("/webhook", paymentHandler.Webhook)
		r.Get("/status/{orderID}", paymentHandler.Status)
	})

	r.Route("/credits", func(r chi.Router) {
		r.Get("/check/{email}", creditsHandler.Check)
		r.Get("/transactions/{email}", creditsHandler.Transactions)
		r.Post("/use", creditsHandler.Use)
		r.Post("/reset", creditsHandler.Reset)
	})

	r.Post("/resume/upload", resumeHandler.Upload)
}
