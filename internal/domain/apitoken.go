package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// TokenPrefix is the fixed literal prefix of every gateway key.
	TokenPrefix = "sdmg_"
	// TokenPlaintextLength is the total length of a gateway key, prefix included.
	TokenPlaintextLength = 45
	// tokenRandomHexLen is the number of hex characters following the prefix.
	tokenRandomHexLen = 40
	// TokenDisplayPrefixLen is how many leading characters are retained
	// for display once the plaintext is gone.
	TokenDisplayPrefixLen = 12
)

// ApiToken is a gateway credential. The plaintext is never stored;
// only its SHA-256 hex digest is.
type ApiToken struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	UserID       uuid.UUID  `json:"user_id" db:"user_id"`
	TenantID     uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	ConnectionID uuid.UUID  `json:"connection_id" db:"connection_id"`
	TokenHash    string     `json:"-" db:"token_hash"`
	TokenPrefix  string     `json:"token_prefix" db:"token_prefix"`
	Label        string     `json:"label" db:"label"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	RequestCount int64      `json:"request_count" db:"request_count"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// Valid reports whether a token is active and not expired. Its
// connection's activation is checked separately by the caller, who
// also has the Connection.
func (t *ApiToken) Valid(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	if t.ExpiresAt != nil && now.After(*t.ExpiresAt) {
		return false
	}
	return true
}

// GenerateAPIKey mints a new gateway key: "sdmg_" + 40 lowercase hex
// characters, drawn from a CSPRNG.
func GenerateAPIKey() (plaintext string, err error) {
	raw := make([]byte, tokenRandomHexLen/2)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	plaintext = TokenPrefix + hex.EncodeToString(raw)
	return plaintext, nil
}

// HashAPIKey returns the lowercase hex SHA-256 digest of the plaintext
// key, the only form that is ever persisted.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// ValidAPIKeyFormat rejects malformed keys without touching the
// database.
func ValidAPIKeyFormat(plaintext string) bool {
	if len(plaintext) != TokenPlaintextLength {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(plaintext[:len(TokenPrefix)]), []byte(TokenPrefix)) != 1 {
		return false
	}
	return true
}

// DisplayPrefix returns the portion of the plaintext retained for
// display after creation.
func DisplayPrefix(plaintext string) string {
	if len(plaintext) < TokenDisplayPrefixLen {
		return plaintext
	}
	return plaintext[:TokenDisplayPrefixLen]
}

// AuthenticatedToken is the join row produced by a single round trip:
// a token and the connection it targets, fetched together.
type AuthenticatedToken struct {
	Token      *ApiToken
	Connection *Connection
}

type ApiTokenRepository interface {
	// FindByHashWithConnection performs a single-round-trip join on
	// token_hash; returns (nil, nil) when no row matches.
	FindByHashWithConnection(tokenHash string) (*AuthenticatedToken, error)
	Create(t *ApiToken) error
	GetByID(id uuid.UUID) (*ApiToken, error)
	List(userID, tenantID uuid.UUID) ([]*ApiToken, error)
	Revoke(id uuid.UUID) error
	// TouchUsage is a fire-and-forget update; it must never be allowed to
	// affect the caller's response.
	TouchUsage(id uuid.UUID, at time.Time) error
}
