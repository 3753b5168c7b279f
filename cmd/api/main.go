package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaultarc/archive-backend/api/routes"
	"github.com/vaultarc/archive-backend/internal/audit"
	"github.com/vaultarc/archive-backend/internal/auth"
	"github.com/vaultarc/archive-backend/internal/barcode"
	"github.com/vaultarc/archive-backend/internal/notify"
	"github.com/vaultarc/archive-backend/internal/policy"
	"github.com/vaultarc/archive-backend/internal/privilege"
	"github.com/vaultarc/archive-backend/internal/signature"
	"github.com/vaultarc/archive-backend/internal/storageloc"
	"github.com/vaultarc/archive-backend/internal/users"
	"github.com/vaultarc/archive-backend/internal/workflow"
	"github.com/vaultarc/archive-backend/pkg/auth/session"
	"github.com/vaultarc/archive-backend/pkg/config"
	"github.com/vaultarc/archive-backend/pkg/db"
	"github.com/vaultarc/archive-backend/pkg/logger"
	"github.com/vaultarc/archive-backend/pkg/metrics"
	"github.com/vaultarc/archive-backend/pkg/migrate"
	"github.com/vaultarc/archive-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	complianceMetrics := metrics.NewComplianceMetrics(registry)

	usersRepo := users.NewRepository(dbClient.DB())

	auditService, err := audit.NewService(audit.NewRepository(dbClient.DB()), complianceMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit service", err)
		os.Exit(1)
	}

	signatureService, err := signature.NewService(signature.NewRepository(dbClient.DB()), auditService, dbClient, logg, complianceMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create signature service", err)
		os.Exit(1)
	}

	privilegeService, err := privilege.NewService(privilege.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create privilege service", err)
		os.Exit(1)
	}

	policyService, err := policy.NewService(policy.NewRepository(dbClient.DB()), auditService, privilegeService, cfg.Session, cfg.Compliance)
	if err != nil {
		logg.Error(context.Background(), "failed to create policy service", err)
		os.Exit(1)
	}

	// Session TTL honors the policy row, capped by the configured ceiling.
	sessionCfg := cfg.Session
	if effective, err := policyService.Resolve(context.Background()); err == nil {
		sessionCfg.InactivityTimeout = effective.SessionTimeout
	}
	sessionManager, err := session.NewManager(redisClient, sessionCfg)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(usersRepo, auditService, sessionManager, cfg.JWT, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	dispatcher, err := notify.NewDispatcher(redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	workflowService, err := workflow.NewService(
		dbClient,
		workflow.NewRepository(dbClient.DB()),
		auditService,
		signatureService,
		privilegeService,
		barcode.NewSequencer(),
		dispatcher,
		logg,
		complianceMetrics,
		policyService,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create workflow service", err)
		os.Exit(1)
	}

	storageService, err := storageloc.NewService(storageloc.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create storage location service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:         cfg,
			Logger:         logg,
			DBPinger:       dbClient,
			RedisPing:      redisClient,
			Sessions:       sessionManager,
			UsersRepo:      usersRepo,
			AuthService:    authService,
			AuditService:   auditService,
			Signatures:     signatureService,
			Privileges:     privilegeService,
			Workflows:      workflowService,
			StorageService: storageService,
			Policies:       policyService,
			MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
