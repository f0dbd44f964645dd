package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type ApiDefinitionRepository struct {
	db *pgxpool.Pool
}

func NewApiDefinitionRepository(db *pgxpool.Pool) domain.ApiDefinitionRepository {
	return &ApiDefinitionRepository{db: db}
}

const apiDefinitionColumns = `id, tenant_id, slug, name, method, path_template, query_params,
	request_headers, request_body, response_schema, provides, depends_on, response_fields, tags,
	is_active, created_at, updated_at`

func scanApiDefinition(row pgx.Row) (*domain.ApiDefinition, error) {
	var d domain.ApiDefinition
	var queryParamsJSON, requestHeadersJSON, requestBodyJSON, responseSchemaJSON []byte
	var dependsOnJSON, responseFieldsJSON []byte

	err := row.Scan(
		&d.ID, &d.TenantID, &d.Slug, &d.Name, &d.Method, &d.PathTemplate, &queryParamsJSON,
		&requestHeadersJSON, &requestBodyJSON, &responseSchemaJSON, &d.Provides, &dependsOnJSON,
		&responseFieldsJSON, &d.Tags, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if err := unmarshalIfPresent(queryParamsJSON, &d.QueryParams); err != nil {
		return nil, fmt.Errorf("decode query_params: %w", err)
	}
	if err := unmarshalIfPresent(requestHeadersJSON, &d.RequestHeaders); err != nil {
		return nil, fmt.Errorf("decode request_headers: %w", err)
	}
	if err := unmarshalIfPresent(requestBodyJSON, &d.RequestBody); err != nil {
		return nil, fmt.Errorf("decode request_body: %w", err)
	}
	if err := unmarshalIfPresent(responseSchemaJSON, &d.ResponseSchema); err != nil {
		return nil, fmt.Errorf("decode response_schema: %w", err)
	}
	if err := unmarshalIfPresent(dependsOnJSON, &d.DependsOn); err != nil {
		return nil, fmt.Errorf("decode depends_on: %w", err)
	}
	if err := unmarshalIfPresent(responseFieldsJSON, &d.ResponseFields); err != nil {
		return nil, fmt.Errorf("decode response_fields: %w", err)
	}
	return &d, nil
}

func unmarshalIfPresent(raw []byte, out any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (r *ApiDefinitionRepository) GetBySlug(tenantID uuid.UUID, slug string) (*domain.ApiDefinition, error) {
	query := fmt.Sprintf(`SELECT %s FROM api_definitions WHERE tenant_id = $1 AND slug = $2 AND is_active = TRUE`, apiDefinitionColumns)
	return scanApiDefinition(r.db.QueryRow(context.Background(), query, tenantID, slug))
}

// GetBySlugs fetches every matching definition in one query, ordered by
// slug so the auto-resolver's provider index is built in a reproducible
// traversal order.
func (r *ApiDefinitionRepository) GetBySlugs(tenantID uuid.UUID, slugs []string) ([]*domain.ApiDefinition, error) {
	if len(slugs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM api_definitions WHERE tenant_id = $1 AND slug = ANY($2) AND is_active = TRUE ORDER BY slug`, apiDefinitionColumns)
	rows, err := r.db.Query(context.Background(), query, tenantID, slugs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ApiDefinition
	for rows.Next() {
		d, err := scanApiDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *ApiDefinitionRepository) List(tenantID uuid.UUID, tags []string, search string, limit, offset int) ([]*domain.ApiDefinition, error) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(`SELECT %s FROM api_definitions WHERE tenant_id = $1 AND is_active = TRUE`, apiDefinitionColumns))
	args := []any{tenantID}

	if len(tags) > 0 {
		args = append(args, tags)
		b.WriteString(fmt.Sprintf(` AND tags && $%d`, len(args)))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		b.WriteString(fmt.Sprintf(` AND (name ILIKE $%d OR slug ILIKE $%d)`, len(args), len(args)))
	}
	args = append(args, limit, offset)
	b.WriteString(fmt.Sprintf(` ORDER BY slug LIMIT $%d OFFSET $%d`, len(args)-1, len(args)))

	rows, err := r.db.Query(context.Background(), b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ApiDefinition
	for rows.Next() {
		d, err := scanApiDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *ApiDefinitionRepository) Create(d *domain.ApiDefinition) error {
	queryParams, err := json.Marshal(d.QueryParams)
	if err != nil {
		return err
	}
	requestHeaders, err := json.Marshal(d.RequestHeaders)
	if err != nil {
		return err
	}
	requestBody, err := json.Marshal(d.RequestBody)
	if err != nil {
		return err
	}
	responseSchema, err := json.Marshal(d.ResponseSchema)
	if err != nil {
		return err
	}
	dependsOn, err := json.Marshal(d.DependsOn)
	if err != nil {
		return err
	}
	responseFields, err := json.Marshal(d.ResponseFields)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO api_definitions (id, tenant_id, slug, name, method, path_template, query_params,
			request_headers, request_body, response_schema, provides, depends_on, response_fields, tags,
			is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.db.Exec(context.Background(), query,
		d.ID, d.TenantID, d.Slug, d.Name, d.Method, d.PathTemplate, queryParams,
		requestHeaders, requestBody, responseSchema, d.Provides, dependsOn, responseFields, d.Tags,
		d.IsActive, d.CreatedAt, d.UpdatedAt)
	return err
}
