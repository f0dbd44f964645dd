// Package adminauth implements the minimal control-plane authentication
// slice: login/logout/refresh for the single AdminUser role that exists
// only to give the JWT revocation set something real to revoke. It
// issues and validates access/refresh tokens directly against
// golang-jwt/jwt/v5 (GenerateAccessToken/ValidateAccessToken/IntrospectToken).
package adminauth

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type claims struct {
	jwt.RegisteredClaims
	TenantID uuid.UUID `json:"tenant_id"`
	Email    string    `json:"email"`
}

// JWTService issues and validates admin access/refresh tokens.
type JWTService struct {
	secretKey     []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

func NewJWTService(secretKey string, accessExpiry, refreshExpiry time.Duration) *JWTService {
	return &JWTService{secretKey: []byte(secretKey), accessExpiry: accessExpiry, refreshExpiry: refreshExpiry}
}

// GenerateAccessToken issues a short-lived bearer token for userID.
func (s *JWTService) GenerateAccessToken(userID, tenantID uuid.UUID, email string) (string, string, error) {
	jti := uuid.New().String()
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
			Issuer:    "sdmg-gateway",
		},
		TenantID: tenantID,
		Email:    email,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secretKey)
	return signed, jti, err
}

// GenerateRefreshToken issues a signed refresh JWT with a random jti; the
// caller persists its hash alongside userID so RefreshToken can look it
// back up in the admin_refresh_tokens table.
func (s *JWTService) GenerateRefreshToken(userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	c := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshExpiry)),
		Issuer:    "sdmg-gateway",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secretKey)
	return signed, now.Add(s.refreshExpiry), err
}

// ValidateAccessToken parses and verifies an access token's signature
// and expiry, returning its claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*domain.TokenClaims, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("adminauth: invalid access token: %w", err)
	}
	userID, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("adminauth: invalid subject claim: %w", err)
	}
	return &domain.TokenClaims{
		UserID:    userID,
		TenantID:  c.TenantID,
		Email:     c.Email,
		JTI:       c.ID,
		ExpiresAt: c.ExpiresAt.Time,
		IssuedAt:  c.IssuedAt.Time,
	}, nil
}

// HashRefreshToken returns the sha256 hex digest persisted alongside a
// refresh token; the plaintext itself is never stored.
func HashRefreshToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", hash)
}
