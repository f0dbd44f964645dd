package domain

import (
	"time"

	"github.com/google/uuid"
)

// UseCaseTemplateCall is one named call in a saved use-case template.
// Param values may contain "{{key}}" placeholders resolved against the
// caller-supplied context at invocation time.
type UseCaseTemplateCall struct {
	Slug   string            `json:"slug"`
	Params map[string]string `json:"params,omitempty"`
}

// UseCaseTemplate is a saved, named orchestration recipe owned by a
// tenant: a fixed list of calls plus the context keys a caller must
// supply.
type UseCaseTemplate struct {
	ID              uuid.UUID             `json:"id" db:"id"`
	TenantID        uuid.UUID             `json:"tenant_id" db:"tenant_id"`
	Slug            string                `json:"slug" db:"slug"`
	Name            string                `json:"name" db:"name"`
	Mode            string                `json:"mode" db:"mode"` // "parallel" | "sequential"
	Calls           []UseCaseTemplateCall `json:"calls" db:"calls"`
	RequiredContext []string              `json:"required_context,omitempty" db:"required_context"`
	IsActive        bool                  `json:"is_active" db:"is_active"`
	CreatedAt       time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at" db:"updated_at"`
}

// MissingContextKeys returns which of RequiredContext are absent from
// ctx, used to reject a use-case invocation with a 400.
func (t *UseCaseTemplate) MissingContextKeys(ctx map[string]string) []string {
	var missing []string
	for _, key := range t.RequiredContext {
		if _, ok := ctx[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

type UseCaseTemplateRepository interface {
	GetBySlug(tenantID uuid.UUID, slug string) (*UseCaseTemplate, error)
	List(tenantID uuid.UUID, limit, offset int) ([]*UseCaseTemplate, error)
	Create(t *UseCaseTemplate) error
}
