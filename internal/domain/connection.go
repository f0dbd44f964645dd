package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Connection is a configured upstream: an OAuth2 client-credentials
// target plus an optional companion agent endpoint.
type Connection struct {
	ID             uuid.UUID `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	TenantID       uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name           string    `json:"name" db:"name"`
	SapBaseURL     string    `json:"sap_base_url" db:"sap_base_url"`
	TokenURL       string    `json:"token_url" db:"token_url"`
	ClientID       string    `json:"client_id" db:"client_id"`
	ClientSecretEnc string   `json:"-" db:"client_secret_enc"`
	AgentAPIURL    *string   `json:"agent_api_url,omitempty" db:"agent_api_url"`
	AgentAPIKeyEnc *string   `json:"-" db:"agent_api_key_enc"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// BaseURL returns sap_base_url with any trailing slash trimmed, as used
// everywhere the gateway composes a target URL.
func (c *Connection) BaseURL() string {
	return strings.TrimRight(c.SapBaseURL, "/")
}

// HasAgent reports whether this connection is configured for the
// companion agent route.
func (c *Connection) HasAgent() bool {
	return c.AgentAPIURL != nil && *c.AgentAPIURL != "" && c.AgentAPIKeyEnc != nil && *c.AgentAPIKeyEnc != ""
}

// AgentBaseURL mirrors BaseURL for the companion agent endpoint. Callers
// must check HasAgent first; this panics on a nil AgentAPIURL otherwise.
func (c *Connection) AgentBaseURL() string {
	return strings.TrimRight(*c.AgentAPIURL, "/")
}

// Usable reports whether a connection is usable: active, and its
// owning tenant active.
func (c *Connection) Usable(tenantActive bool) bool {
	return c.IsActive && tenantActive
}

type ConnectionRepository interface {
	GetByID(id uuid.UUID) (*Connection, error)
	GetByIDForUser(id, userID, tenantID uuid.UUID) (*Connection, error)
	Create(c *Connection) error
	Update(c *Connection) error
	Delete(id uuid.UUID) error
}
