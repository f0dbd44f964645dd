// Package gateway implements the gateway entry point: it wires the
// rate limiter, the authenticator, and the proxy, executor, resolver,
// and orchestrator components into the five routes a caller actually
// hits.
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sdmg-platform/gateway/internal/cryptovault"
	httpresp "github.com/sdmg-platform/gateway/internal/delivery/http"
	"github.com/sdmg-platform/gateway/internal/domain"
	"github.com/sdmg-platform/gateway/internal/gwauth"
	"github.com/sdmg-platform/gateway/internal/oauthcache"
	"github.com/sdmg-platform/gateway/internal/orchestrator"
	"github.com/sdmg-platform/gateway/internal/proxy"
	"github.com/sdmg-platform/gateway/internal/ratelimit"
	"github.com/sdmg-platform/gateway/internal/requestlog"
)

// Handler owns every dependency the gateway routes need. It is built once
// in cmd/server/main.go and mounted under /gw.
type Handler struct {
	auth         *gwauth.Authenticator
	definitions  domain.ApiDefinitionRepository
	useCases     domain.UseCaseTemplateRepository
	tokens       *oauthcache.Cache
	vault        *cryptovault.Vault
	proxy        *proxy.Proxy
	orchestrator *orchestrator.Orchestrator
	requestlog   *requestlog.Logger
	// proxyLimiter backs RATE_LIMIT_PROXY (/gw/dm, /gw/agent); apiLimiter
	// backs RATE_LIMIT_API (/gw/query, /gw/use-case).
	proxyLimiter *ratelimit.Limiter
	apiLimiter   *ratelimit.Limiter
	logger       *zap.Logger
}

// Deps groups the Handler constructor's dependencies so the call site in
// main.go doesn't need an eleven-argument constructor call.
type Deps struct {
	Auth         *gwauth.Authenticator
	Definitions  domain.ApiDefinitionRepository
	UseCases     domain.UseCaseTemplateRepository
	Tokens       *oauthcache.Cache
	Vault        *cryptovault.Vault
	Proxy        *proxy.Proxy
	Orchestrator *orchestrator.Orchestrator
	RequestLog   *requestlog.Logger
	ProxyLimiter *ratelimit.Limiter
	APILimiter   *ratelimit.Limiter
	Logger       *zap.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		auth:         d.Auth,
		definitions:  d.Definitions,
		useCases:     d.UseCases,
		tokens:       d.Tokens,
		vault:        d.Vault,
		proxy:        d.Proxy,
		orchestrator: d.Orchestrator,
		requestlog:   d.RequestLog,
		proxyLimiter: d.ProxyLimiter,
		apiLimiter:   d.APILimiter,
		logger:       d.Logger,
	}
}

// RegisterRoutes mounts the gateway surface under r, which the caller
// has already scoped to the /gw prefix.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimitMiddleware(h.proxyLimiter), h.authMiddleware)
		r.Handle("/dm/*", http.HandlerFunc(h.DM))
		r.Post("/agent/*", h.Agent)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.rateLimitMiddleware(h.apiLimiter), h.authMiddleware)
		r.Post("/query", h.Query)
		r.Post("/use-case/{slug}", h.UseCase)
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httpresp.WriteSuccess(w, map[string]string{"status": "healthy"}, "")
}

type ctxKey int

const ctxKeyAuth ctxKey = iota

func authFromContext(r *http.Request) *domain.AuthenticatedToken {
	v, _ := r.Context().Value(ctxKeyAuth).(*domain.AuthenticatedToken)
	return v
}

// rateLimitMiddleware keys the limiter by the SHA-256 hex of the raw
// x-api-key header, falling back to client IP when the header is absent,
// without paying for a DB round trip before the limiter runs: the header
// value is a stable per-caller key on its own (it hashes to the same
// token every time), so it stands in for the token id and authentication
// never has to run twice.
func (h *Handler) rateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)
			if !limiter.Allow(key) {
				httpresp.WriteAppError(w, domain.RateLimitedErr("RATE_LIMITED"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimitKey(r *http.Request) string {
	if apiKey := r.Header.Get("x-api-key"); apiKey != "" {
		sum := sha256.Sum256([]byte(apiKey))
		return hex.EncodeToString(sum[:])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, appErr := h.auth.Authenticate(r.Header.Get("x-api-key"))
		if appErr != nil {
			httpresp.WriteAppError(w, appErr)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyAuth, result)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func stripPrefix(path, prefix string) string {
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == "" {
		trimmed = "/"
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return trimmed
}
