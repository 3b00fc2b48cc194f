package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/config"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/infra/phonepe"
	s3infra "github.com/praveenkaruppusamy2005/inter-backend/internal/infra/s3"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/jobs/sweep"
	memrepo "github.com/praveenkaruppusamy2005/inter-backend/internal/repo/memory"
	pgrepo "github.com/praveenkaruppusamy2005/inter-backend/internal/repo/postgres"
	redrepo "github.com/praveenkaruppusamy2005/inter-backend/internal/repo/redis"
	billingsvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/billing"
	creditsvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/credits"
	ratesvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/rate"
	resumesvc "github.com/praveenkaruppusamy2005/inter-backend/internal/services/resumes"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	sweepJob   *sweep.Job
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	var pool *pgxpool.Pool
	if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
		log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
	} else {
		pool = p
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	pollRateRepo := redrepo.NewPollRateRepo(redisClient)
	userRepo := pgrepo.NewUserRepo(pool)
	intentRepo := memrepo.NewIntentRepo()

	var gateway billingsvc.Gateway
	if gw, err := phonepe.NewClient(phonepe.Config{
		BaseURL:       cfg.PhonePe.BaseURL,
		ClientID:      cfg.PhonePe.ClientID,
		ClientSecret:  cfg.PhonePe.ClientSecret,
		ClientVersion: cfg.PhonePe.ClientVersion,
		Timeout:       cfg.PhonePe.Timeout,
		MaxRetries:    cfg.PhonePe.MaxRetries,
	}, log); err != nil {
		log.Warn("phonepe init failed, continuing in degraded mode", zap.Error(err))
	} else {
		gateway = gw
	}

	billingService := billingsvc.NewService(intentRepo, gateway, userRepo, billingsvc.Config{
		CreditPriceINR:     cfg.Billing.CreditPriceINR,
		ProDayPriceINR:     cfg.Billing.ProDayPriceINR,
		ProHourPriceINR:    cfg.Billing.ProHourPriceINR,
		ChatBonusPerCredit: cfg.Billing.ChatBonusPerCredit,
		IntentRetention:    cfg.Billing.IntentRetention,
		OrderExpiry:        cfg.PhonePe.OrderExpiry,
		CallbackBaseURL:    cfg.PhonePe.CallbackBaseURL,
		WebhookUsername:    cfg.PhonePe.WebhookUsername,
		WebhookPassword:    cfg.PhonePe.WebhookPassword,
	}, log)
	creditsService := creditsvc.NewService(userRepo, log)
	pollLimiter := ratesvc.NewLimiter(pollRateRepo, cfg.Billing.PollRatePerMinute)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
		if err := s3infra.EnsureBucket(ctx, s3Client, cfg.S3.Bucket); err != nil {
			log.Warn("s3 bucket init failed", zap.Error(err))
		}
	}

	var resumeService *resumesvc.Service
	if s3Client != nil {
		resumeService = resumesvc.NewService(s3Client, userRepo, cfg.S3.Bucket, log)
	}

	sweepJob := sweep.New(intentRepo, cfg.Billing.SweepMaxAge, cfg.Billing.SweepInterval, log)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	RegisterRoutes(r, Dependencies{
		BillingService: billingService,
		CreditsService: creditsService,
		ResumeService:  resumeService,
		PollLimiter:    pollLimiter,
		Logger:         log,
		Config:         cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		sweepJob:   sweepJob,
		httpRouter: r,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	if a.sweepJob != nil {
		a.sweepJob.Start(ctx)
	}

	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
