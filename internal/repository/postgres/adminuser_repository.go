package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type AdminUserRepository struct {
	db *pgxpool.Pool
}

func NewAdminUserRepository(db *pgxpool.Pool) domain.AdminUserRepository {
	return &AdminUserRepository{db: db}
}

func (r *AdminUserRepository) GetByEmail(email string) (*domain.AdminUser, error) {
	query := `SELECT id, tenant_id, email, password_hash, is_active, created_at FROM admin_users WHERE email = $1`
	var u domain.AdminUser
	err := r.db.QueryRow(context.Background(), query, email).Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *AdminUserRepository) GetByID(id uuid.UUID) (*domain.AdminUser, error) {
	query := `SELECT id, tenant_id, email, password_hash, is_active, created_at FROM admin_users WHERE id = $1`
	var u domain.AdminUser
	err := r.db.QueryRow(context.Background(), query, id).Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
