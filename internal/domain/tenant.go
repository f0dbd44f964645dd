package domain

import (
	"time"

	"github.com/google/uuid"
)

// Well-known tenant ids seeded by migration. Platform can never be
// deactivated; Default is the fallback tenant for single-tenant deployments.
var (
	PlatformTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	DefaultTenantID  = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TenantRepository is the narrow slice of tenant persistence the core
// depends on; CRUD beyond activity checks is an out-of-scope surface.
type TenantRepository interface {
	GetByID(id uuid.UUID) (*Tenant, error)
	IsActive(id uuid.UUID) (bool, error)
}
