package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	accountService "flock/internal/account/service"
	accountStore "flock/internal/account/store"
	"flock/internal/audit"
	"flock/internal/auth"
	authmetrics "flock/internal/auth/metrics"
	"flock/internal/idp"
	idpmetrics "flock/internal/idp/metrics"
	"flock/internal/platform/config"
	"flock/internal/platform/database"
	"flock/internal/platform/health"
	"flock/internal/platform/logger"
	"flock/internal/platform/metrics"
	"flock/internal/platform/redis"
	rolemetrics "flock/internal/role/metrics"
	roleService "flock/internal/role/service"
	roleStore "flock/internal/role/store"
	httptransport "flock/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logger.New().Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	log := logger.New()

	log.Info("initializing flock",
		"addr", cfg.Addr,
		"idp_domain", cfg.IdPDomain,
	)

	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	if pool == nil {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	} else {
		defer pool.Close() //nolint:errcheck // process is exiting
	}

	cache, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close() //nolint:errcheck // process is exiting
	}

	idpClient := idp.NewHTTPClient(idp.HTTPClientConfig{
		BaseURL:      cfg.IdPBaseURL(),
		ClientID:     cfg.IdPClientID,
		ClientSecret: cfg.IdPClientSecret,
		Audience:     cfg.IdPAudience,
		Connection:   cfg.IdPConnection,
		Timeout:      cfg.IdPTimeout,
	}, idp.WithMetrics(idpmetrics.New()))
	provider := idp.NewResilientClient(idpClient, log)

	var profiles auth.ProfileFetcher = provider
	if cache != nil {
		profiles = idp.NewCachedProfileFetcher(provider, cache, cfg.Redis.CacheTTL, log)
	}

	codec, err := auth.NewCodec([]byte(cfg.IdPPublicKey))
	if err != nil {
		log.Error("identity provider public key invalid", "error", err)
		os.Exit(1)
	}
	verifier := auth.NewVerifier(codec,
		auth.TrustConfig{Issuer: cfg.IdPIssuer},
		auth.WithLogger(log),
		auth.WithMetrics(authmetrics.New()),
		auth.WithProfileFetcher(profiles),
	)

	var (
		roleSt    roleService.Store
		accountSt accountStore.Store
		auditSt   audit.Store
		txRunner  roleService.Tx
	)
	if pool != nil {
		roleSt = roleStore.NewPostgres(pool.DB())
		accountSt = accountStore.NewPostgres(pool.DB())
		auditSt = audit.NewPostgresStore(pool.DB())
		txRunner = newPostgresTx(pool.DB())
	} else {
		roleSt = roleStore.NewMemory()
		accountSt = accountStore.NewMemory()
		auditSt = audit.NewInMemoryStore()
		txRunner = roleService.NopTx{}
	}

	auditor := audit.NewPublisher(auditSt,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)
	defer auditor.Close()

	roles := roleService.NewService(provider, roleSt, txRunner, log,
		roleService.WithMetrics(rolemetrics.New()),
		roleService.WithAuditor(auditor),
	)
	accounts := accountService.NewService(provider, accountSt, txRunner, log,
		accountService.WithAuditor(auditor),
	)

	probes := health.New()
	if pool != nil {
		probes.RegisterCheck("database", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(ctx)
		})
	}
	if cache != nil {
		probes.RegisterCheck("redis", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return cache.Health(ctx)
		})
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:   log,
		Verifier: verifier,
		Roles:    httptransport.NewRoleHandler(roles, log),
		Accounts: httptransport.NewAccountHandler(accounts, log),
		Audit:    httptransport.NewAuditHandler(auditor),
		Health:   probes,
		Metrics:  metrics.New(),
		Timeout:  cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
