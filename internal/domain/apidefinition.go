package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueryParam describes one declared query parameter of an API definition.
type QueryParam struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Example  string `json:"example,omitempty"`
}

// FieldMapping is one {source, target} entry of a DependsOn edge.
type FieldMapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// DependsOn names an explicit dependency on another slug and how fields
// from its response map onto this definition's parameters.
type DependsOn struct {
	APISlug       string         `json:"api_slug"`
	FieldMappings []FieldMapping `json:"field_mappings"`
}

// ResponseField is one flattened leaf of a definition's declared response
// shape: a dot/bracket path plus the bare leaf name extracted from it.
type ResponseField struct {
	Path     string `json:"path"`
	LeafName string `json:"leaf_name"`
}

// ApiDefinition is a named, callable upstream operation.
type ApiDefinition struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	TenantID       uuid.UUID       `json:"tenant_id" db:"tenant_id"`
	Slug           string          `json:"slug" db:"slug"`
	Name           string          `json:"name" db:"name"`
	Method         string          `json:"method" db:"method"`
	PathTemplate   string          `json:"path_template" db:"path_template"`
	QueryParams    []QueryParam    `json:"query_params" db:"query_params"`
	RequestHeaders map[string]string `json:"request_headers,omitempty" db:"request_headers"`
	RequestBody    map[string]any  `json:"request_body,omitempty" db:"request_body"`
	ResponseSchema map[string]any  `json:"response_schema,omitempty" db:"response_schema"`
	Provides       []string        `json:"provides,omitempty" db:"provides"`
	DependsOn      []DependsOn     `json:"depends_on,omitempty" db:"depends_on"`
	ResponseFields []ResponseField `json:"response_fields,omitempty" db:"response_fields"`
	Tags           []string        `json:"tags,omitempty" db:"tags"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// RequiredQueryParamNames returns the names of every required query param,
// in declaration order.
func (d *ApiDefinition) RequiredQueryParamNames() []string {
	var out []string
	for _, qp := range d.QueryParams {
		if qp.Required {
			out = append(out, qp.Name)
		}
	}
	return out
}

type ApiDefinitionRepository interface {
	GetBySlug(tenantID uuid.UUID, slug string) (*ApiDefinition, error)
	// GetBySlugs fetches every definition matching the given slugs in one
	// query, ordered by slug so that provider-index construction is
	// reproducible.
	GetBySlugs(tenantID uuid.UUID, slugs []string) ([]*ApiDefinition, error)
	List(tenantID uuid.UUID, tags []string, search string, limit, offset int) ([]*ApiDefinition, error)
	Create(d *ApiDefinition) error
}
