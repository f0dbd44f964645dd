package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type UseCaseTemplateRepository struct {
	db *pgxpool.Pool
}

func NewUseCaseTemplateRepository(db *pgxpool.Pool) domain.UseCaseTemplateRepository {
	return &UseCaseTemplateRepository{db: db}
}

const useCaseTemplateColumns = `id, tenant_id, slug, name, mode, calls, required_context, is_active, created_at, updated_at`

func scanUseCaseTemplate(row pgx.Row) (*domain.UseCaseTemplate, error) {
	var t domain.UseCaseTemplate
	var callsJSON []byte
	err := row.Scan(&t.ID, &t.TenantID, &t.Slug, &t.Name, &t.Mode, &callsJSON, &t.RequiredContext, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := unmarshalIfPresent(callsJSON, &t.Calls); err != nil {
		return nil, fmt.Errorf("decode calls: %w", err)
	}
	return &t, nil
}

func (r *UseCaseTemplateRepository) GetBySlug(tenantID uuid.UUID, slug string) (*domain.UseCaseTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM use_case_templates WHERE tenant_id = $1 AND slug = $2 AND is_active = TRUE`, useCaseTemplateColumns)
	return scanUseCaseTemplate(r.db.QueryRow(context.Background(), query, tenantID, slug))
}

func (r *UseCaseTemplateRepository) List(tenantID uuid.UUID, limit, offset int) ([]*domain.UseCaseTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM use_case_templates WHERE tenant_id = $1 AND is_active = TRUE ORDER BY slug LIMIT $2 OFFSET $3`, useCaseTemplateColumns)
	rows, err := r.db.Query(context.Background(), query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.UseCaseTemplate
	for rows.Next() {
		t, err := scanUseCaseTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *UseCaseTemplateRepository) Create(t *domain.UseCaseTemplate) error {
	calls, err := json.Marshal(t.Calls)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO use_case_templates (id, tenant_id, slug, name, mode, calls, required_context, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.Exec(context.Background(), query, t.ID, t.TenantID, t.Slug, t.Name, t.Mode, calls, t.RequiredContext, t.IsActive, t.CreatedAt, t.UpdatedAt)
	return err
}
