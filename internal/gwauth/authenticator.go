// Package gwauth implements the gateway API-key authenticator: format
// check, single round-trip hash lookup, and a fire-and-forget usage
// counter update that must never affect the response path.
package gwauth

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdmg-platform/gateway/internal/domain"
)

// Authenticator validates the x-api-key header and loads the token and
// connection it authorizes in a single database round trip.
type Authenticator struct {
	tokens   domain.ApiTokenRepository
	tenants  domain.TenantRepository
	logger   *zap.Logger
	nowFunc  func() time.Time
}

func New(tokens domain.ApiTokenRepository, tenants domain.TenantRepository, logger *zap.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, tenants: tenants, logger: logger, nowFunc: time.Now}
}

// Authenticate validates the key, loads its token and connection, and
// checks activation and expiry. On success it returns the token and
// connection; the caller attaches both to the request context, and the
// usage-touch goroutine is already in flight by the time Authenticate
// returns.
func (a *Authenticator) Authenticate(apiKeyHeader string) (*domain.AuthenticatedToken, *domain.AppError) {
	if apiKeyHeader == "" {
		return nil, domain.AuthErr("MISSING_KEY")
	}
	if !domain.ValidAPIKeyFormat(apiKeyHeader) {
		return nil, domain.AuthErr("BAD_FORMAT")
	}

	hash := domain.HashAPIKey(apiKeyHeader)
	row, err := a.tokens.FindByHashWithConnection(hash)
	if err != nil {
		return nil, domain.InternalErr(err)
	}
	if row == nil {
		return nil, domain.AuthErr("INVALID")
	}
	if !row.Token.IsActive {
		return nil, domain.AuthErr("DEACTIVATED")
	}
	now := a.nowFunc()
	if row.Token.ExpiresAt != nil && now.After(*row.Token.ExpiresAt) {
		return nil, domain.AuthErr("EXPIRED")
	}
	tenantActive, err := a.tenants.IsActive(row.Connection.TenantID)
	if err != nil {
		return nil, domain.InternalErr(err)
	}
	if !row.Connection.Usable(tenantActive) {
		return nil, &domain.AppError{Kind: domain.KindPolicy, Message: "CONN_DEACTIVATED"}
	}

	a.touchUsageAsync(row.Token.ID, now)
	return row, nil
}

// touchUsageAsync updates the usage counter off the request path; any
// failure is logged, never surfaced.
func (a *Authenticator) touchUsageAsync(tokenID uuid.UUID, at time.Time) {
	go func() {
		if err := a.tokens.TouchUsage(tokenID, at); err != nil {
			a.logger.Warn("failed to record api token usage", zap.Error(err))
		}
	}()
}
