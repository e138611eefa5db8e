package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/expensa-app/expensa/internal/app"
	"github.com/expensa-app/expensa/internal/areas"
	"github.com/expensa-app/expensa/internal/audit"
	"github.com/expensa-app/expensa/internal/auth"
	"github.com/expensa-app/expensa/internal/companies"
	"github.com/expensa-app/expensa/internal/expenses"
	"github.com/expensa-app/expensa/internal/files"
	"github.com/expensa-app/expensa/internal/notify"
	"github.com/expensa-app/expensa/internal/observability"
	"github.com/expensa-app/expensa/internal/platform/cache"
	"github.com/expensa-app/expensa/internal/platform/db"
	"github.com/expensa-app/expensa/internal/rbac"
	"github.com/expensa-app/expensa/internal/reports"
	"github.com/expensa-app/expensa/internal/shared"
	"github.com/expensa-app/expensa/internal/users"
	"github.com/expensa-app/expensa/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "expensa_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(pool)
	approvalRecorder := shared.NewApprovalRecorder(pool, logger)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersImporter := users.NewImporter(usersService)

	rbacService := rbac.NewService(usersRepo)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	usersHandler := users.NewHandler(logger, usersService, usersImporter, rbacMiddleware)

	companiesRepo := companies.NewRepository(pool)
	companiesService := companies.NewService(companiesRepo)
	companiesHandler := companies.NewHandler(logger, companiesService, rbacMiddleware)

	areasRepo := areas.NewRepository(pool)
	areasService := areas.NewService(areasRepo, auditLogger)
	areasHandler := areas.NewHandler(logger, areasService, rbacMiddleware)

	fileStore := files.NewClient(cfg.FileStoreURL)
	if err := fileStore.Ping(ctx); err != nil {
		logger.Warn("file store ping", slog.Any("error", err))
	}

	expensesRepo := expenses.NewRepository(pool)
	expensesService := expenses.NewService(expensesRepo, fileStore, auditLogger)
	expensesHandler := expenses.NewHandler(logger, expensesService, rbacMiddleware)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	notifier := notify.NewNotifier(jobsClient, logger)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, areasRepo, approvalRecorder, auditLogger, notifier)
	reportsHandler := reports.NewHandler(logger, reportsService, rbacMiddleware, idempotencyStore)

	auditRepo := audit.NewPGRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService, rbacMiddleware)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		CompaniesHandler: companiesHandler,
		AreasHandler:     areasHandler,
		ExpensesHandler:  expensesHandler,
		ReportsHandler:   reportsHandler,
		AuditHandler:     auditHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
