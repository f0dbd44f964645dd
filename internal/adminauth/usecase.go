package adminauth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sdmg-platform/gateway/internal/domain"
	"github.com/sdmg-platform/gateway/internal/revocation"
	"github.com/sdmg-platform/gateway/pkg/password"
)

// UseCase implements the admin control plane's login/logout/refresh
// slice: authenticating against the stored password hash, issuing an
// access/refresh token pair, and revoking an access token's jti on
// logout.
type UseCase struct {
	users         domain.AdminUserRepository
	refreshTokens domain.AdminRefreshTokenRepository
	jwt           *JWTService
	revocation    *revocation.Set
}

func NewUseCase(users domain.AdminUserRepository, refreshTokens domain.AdminRefreshTokenRepository, jwt *JWTService, revocationSet *revocation.Set) *UseCase {
	return &UseCase{users: users, refreshTokens: refreshTokens, jwt: jwt, revocation: revocationSet}
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

func (u *UseCase) Login(email, plainPassword string) (*LoginResult, *domain.AppError) {
	user, err := u.users.GetByEmail(email)
	if err != nil {
		return nil, domain.InternalErr(err)
	}
	if user == nil || !user.IsActive {
		return nil, domain.AuthErr("invalid email or password")
	}
	if err := password.VerifyPassword(user.PasswordHash, plainPassword); err != nil {
		return nil, domain.AuthErr("invalid email or password")
	}

	access, _, err := u.jwt.GenerateAccessToken(user.ID, user.TenantID, user.Email)
	if err != nil {
		return nil, domain.InternalErr(err)
	}
	refresh, expiresAt, err := u.jwt.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, domain.InternalErr(err)
	}
	record := &domain.AdminRefreshToken{
		ID:        uuid.New(),
		UserID:    user.ID,
		TokenHash: HashRefreshToken(refresh),
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if err := u.refreshTokens.Create(record); err != nil {
		return nil, domain.InternalErr(err)
	}

	return &LoginResult{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(u.jwt.accessExpiry.Seconds())}, nil
}

// Logout revokes the access token's jti so IntrospectToken rejects it
// for the remainder of its natural lifetime, and deletes the backing
// refresh token so it cannot mint a new one.
func (u *UseCase) Logout(accessToken, refreshToken string) *domain.AppError {
	claims, err := u.jwt.ValidateAccessToken(accessToken)
	if err != nil {
		return domain.AuthErr("invalid access token")
	}
	u.revocation.Revoke(claims.JTI, claims.ExpiresAt)

	if refreshToken != "" {
		hash := HashRefreshToken(refreshToken)
		record, err := u.refreshTokens.GetByTokenHash(hash)
		if err == nil && record != nil {
			_ = u.refreshTokens.Delete(record.ID)
		}
	}
	return nil
}

func (u *UseCase) RefreshToken(refreshToken string) (*LoginResult, *domain.AppError) {
	hash := HashRefreshToken(refreshToken)
	record, err := u.refreshTokens.GetByTokenHash(hash)
	if err != nil {
		return nil, domain.InternalErr(err)
	}
	if record == nil || time.Now().After(record.ExpiresAt) {
		return nil, domain.AuthErr("refresh token invalid or expired")
	}

	user, err := u.users.GetByID(record.UserID)
	if err != nil {
		return nil, domain.InternalErr(err)
	}
	if user == nil || !user.IsActive {
		return nil, domain.AuthErr("account deactivated")
	}

	access, _, err := u.jwt.GenerateAccessToken(user.ID, user.TenantID, user.Email)
	if err != nil {
		return nil, domain.InternalErr(err)
	}

	return &LoginResult{AccessToken: access, RefreshToken: refreshToken, ExpiresIn: int64(u.jwt.accessExpiry.Seconds())}, nil
}

// IntrospectToken validates an access token's signature, expiry, and
// revocation status.
func (u *UseCase) IntrospectToken(accessToken string) (*domain.TokenClaims, *domain.AppError) {
	claims, err := u.jwt.ValidateAccessToken(accessToken)
	if err != nil {
		return nil, domain.AuthErr(fmt.Sprintf("invalid token: %v", err))
	}
	if u.revocation.IsRevoked(claims.JTI) {
		return nil, domain.AuthErr("token has been revoked")
	}
	return claims, nil
}
