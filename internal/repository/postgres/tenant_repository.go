package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type TenantRepository struct {
	db *pgxpool.Pool
}

func NewTenantRepository(db *pgxpool.Pool) domain.TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) GetByID(id uuid.UUID) (*domain.Tenant, error) {
	query := `SELECT id, name, is_active, created_at, updated_at FROM tenants WHERE id = $1`
	var t domain.Tenant
	err := r.db.QueryRow(context.Background(), query, id).Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *TenantRepository) IsActive(id uuid.UUID) (bool, error) {
	var active bool
	err := r.db.QueryRow(context.Background(), `SELECT is_active FROM tenants WHERE id = $1`, id).Scan(&active)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return active, nil
}
