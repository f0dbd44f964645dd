// Package main implements the server entry point for the SAP Digital
// Manufacturing gateway. This application follows Clean Architecture
// principles with clear separation of concerns across multiple layers:
// Repository (data access) -> component (business logic) -> Handler
// (HTTP interface). The main function wires every dependency by hand
// and performs a graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sdmg-platform/gateway/config"
	"github.com/sdmg-platform/gateway/internal/adminauth"
	"github.com/sdmg-platform/gateway/internal/cryptovault"
	httpresp "github.com/sdmg-platform/gateway/internal/delivery/http"
	"github.com/sdmg-platform/gateway/internal/explorer"
	"github.com/sdmg-platform/gateway/internal/gateway"
	"github.com/sdmg-platform/gateway/internal/gwauth"
	authmiddleware "github.com/sdmg-platform/gateway/internal/middleware"
	"github.com/sdmg-platform/gateway/internal/oauthcache"
	"github.com/sdmg-platform/gateway/internal/orchestrator"
	"github.com/sdmg-platform/gateway/internal/proxy"
	"github.com/sdmg-platform/gateway/internal/ratelimit"
	"github.com/sdmg-platform/gateway/internal/repository/postgres"
	"github.com/sdmg-platform/gateway/internal/requestlog"
	"github.com/sdmg-platform/gateway/internal/revocation"
	"github.com/sdmg-platform/gateway/internal/urlvalidate"
)

// Version information - set during build time via ldflags
var (
	version   = "1.0.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func printVersion() {
	fmt.Printf("sdmg-gateway version %s\n", version)
	if buildTime != "unknown" {
		fmt.Printf("Build Time: %s\n", buildTime)
	}
	if gitCommit != "unknown" {
		fmt.Printf("Git Commit: %s\n", gitCommit)
	}
	os.Exit(0)
}

func main() {
	if len(os.Args) > 1 {
		for _, arg := range os.Args[1:] {
			if arg == "--version" || arg == "-v" {
				printVersion()
			}
		}
	}

	// PHASE 1: Configuration and logging.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// PHASE 2: Database connection and health check.
	db, err := pgxpool.New(context.Background(), cfg.Database.URL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	if err := db.Ping(context.Background()); err != nil {
		logger.Fatal("failed to ping database", zap.Error(err))
	}
	logger.Info("connected to database")

	// PHASE 3: Repository layer.
	tenantRepo := postgres.NewTenantRepository(db)
	connectionRepo := postgres.NewConnectionRepository(db)
	apiTokenRepo := postgres.NewApiTokenRepository(db)
	apiDefinitionRepo := postgres.NewApiDefinitionRepository(db)
	requestLogRepo := postgres.NewRequestLogRepository(db)
	adminUserRepo := postgres.NewAdminUserRepository(db)
	adminRefreshTokenRepo := postgres.NewAdminRefreshTokenRepository(db)
	useCaseTemplateRepo := postgres.NewUseCaseTemplateRepository(db)

	// PHASE 4: Component layer (C1-C9).
	vault, err := cryptovault.New(cfg.Encryption.Key)
	if err != nil {
		logger.Fatal("failed to initialize encryption vault", zap.Error(err))
	}

	urlValidator := urlvalidate.New(false)

	authenticator := gwauth.New(apiTokenRepo, tenantRepo, logger)
	tokenCache := oauthcache.New(connectionRepo, vault)
	streamProxy := proxy.New(urlValidator.SafeDialContext)
	callExecutor := explorer.New(connectionRepo, tokenCache, urlValidator.SafeDialContext)
	orch := orchestrator.New(apiDefinitionRepo, callExecutor)
	logWriter := requestlog.New(requestLogRepo, logger)

	revocationSet := revocation.New(logger)
	revocationSet.StartSweeper()
	defer revocationSet.Stop()

	// Rate limits are configured per-minute; the token bucket wants a
	// per-second refill rate, with the per-minute figure doubling as
	// burst so a caller can spend a full minute's budget at once after
	// sitting idle.
	proxyLimiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: float64(cfg.RateLimit.ProxyPerMinute) / 60,
		Burst:             cfg.RateLimit.ProxyPerMinute,
	})
	apiLimiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: float64(cfg.RateLimit.APIPerMinute) / 60,
		Burst:             cfg.RateLimit.APIPerMinute,
	})
	loginLimiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: float64(cfg.RateLimit.LoginPerMinute) / 60,
		Burst:             cfg.RateLimit.LoginPerMinute,
	})

	maintenance := cron.New()
	if _, err := maintenance.AddFunc("@every 10m", func() {
		for _, l := range []*ratelimit.Limiter{proxyLimiter, apiLimiter, loginLimiter} {
			l.Sweep(30 * time.Minute)
		}
	}); err != nil {
		logger.Error("failed to schedule rate limiter sweep", zap.Error(err))
	}
	if _, err := maintenance.AddFunc("@daily", func() {
		cutoff := time.Now().AddDate(0, 0, -cfg.Log.RetentionDays)
		deleted, err := requestLogRepo.DeleteOlderThan(cutoff)
		if err != nil {
			logger.Error("request log retention sweep failed", zap.Error(err))
			return
		}
		logger.Info("request log retention sweep complete", zap.Int64("deleted", deleted))
	}); err != nil {
		logger.Error("failed to schedule request log retention sweep", zap.Error(err))
	}
	maintenance.Start()
	defer maintenance.Stop()

	jwtService := adminauth.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry)
	adminUseCase := adminauth.NewUseCase(adminUserRepo, adminRefreshTokenRepo, jwtService, revocationSet)
	adminHandler := adminauth.NewHandler(adminUseCase)

	// PHASE 5: Gateway handler (C10).
	gatewayHandler := gateway.New(gateway.Deps{
		Auth:         authenticator,
		Definitions:  apiDefinitionRepo,
		UseCases:     useCaseTemplateRepo,
		Tokens:       tokenCache,
		Vault:        vault,
		Proxy:        streamProxy,
		Orchestrator: orch,
		RequestLog:   logWriter,
		ProxyLimiter: proxyLimiter,
		APILimiter:   apiLimiter,
		Logger:       logger,
	})

	// PHASE 6: Router and middleware chain.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(authmiddleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Timeout(180 * time.Second))

	r.Route("/gw", gatewayHandler.RegisterRoutes)

	r.Group(func(r chi.Router) {
		r.Use(loginRateLimitMiddleware(loginLimiter))
		adminHandler.RegisterRoutes(r)
	})

	// PHASE 7: Server start and graceful shutdown.
	server := &http.Server{
		Addr:    cfg.GetServerAddr(),
		Handler: r,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.GetServerAddr()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

// loginRateLimitMiddleware guards the admin auth surface with
// RATE_LIMIT_LOGIN, keyed by client IP since there is no token yet at
// this point in the request lifecycle.
func loginRateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				key = r.RemoteAddr
			}
			if !limiter.Allow(key) {
				httpresp.WriteError(w, http.StatusTooManyRequests, "too many login attempts", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
