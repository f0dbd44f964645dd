package domain

import (
	"time"

	"github.com/google/uuid"
)

// AdminUser is a control-plane operator account used to authenticate
// against the admin-facing API. It is not a tenant-scoped identity.
type AdminUser struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TenantID     uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

type AdminUserRepository interface {
	GetByEmail(email string) (*AdminUser, error)
	GetByID(id uuid.UUID) (*AdminUser, error)
}

// AdminRefreshToken backs rotation of the admin JWT refresh token.
type AdminRefreshToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	TokenHash string    `json:"-" db:"token_hash"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type AdminRefreshTokenRepository interface {
	Create(t *AdminRefreshToken) error
	GetByTokenHash(hash string) (*AdminRefreshToken, error)
	Delete(id uuid.UUID) error
	DeleteByUserID(userID uuid.UUID) error
	DeleteExpired() error
}

// TokenClaims carries the identity of the caller of the admin-facing API.
type TokenClaims struct {
	UserID    uuid.UUID
	TenantID  uuid.UUID
	Email     string
	JTI       string
	ExpiresAt time.Time
	IssuedAt  time.Time
}
