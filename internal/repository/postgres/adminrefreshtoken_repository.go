package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type AdminRefreshTokenRepository struct {
	db *pgxpool.Pool
}

func NewAdminRefreshTokenRepository(db *pgxpool.Pool) domain.AdminRefreshTokenRepository {
	return &AdminRefreshTokenRepository{db: db}
}

func (r *AdminRefreshTokenRepository) Create(t *domain.AdminRefreshToken) error {
	query := `INSERT INTO admin_refresh_tokens (id, user_id, token_hash, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Exec(context.Background(), query, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return err
}

func (r *AdminRefreshTokenRepository) GetByTokenHash(hash string) (*domain.AdminRefreshToken, error) {
	query := `SELECT id, user_id, token_hash, expires_at, created_at FROM admin_refresh_tokens WHERE token_hash = $1`
	var t domain.AdminRefreshToken
	err := r.db.QueryRow(context.Background(), query, hash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *AdminRefreshTokenRepository) Delete(id uuid.UUID) error {
	_, err := r.db.Exec(context.Background(), `DELETE FROM admin_refresh_tokens WHERE id = $1`, id)
	return err
}

func (r *AdminRefreshTokenRepository) DeleteByUserID(userID uuid.UUID) error {
	_, err := r.db.Exec(context.Background(), `DELETE FROM admin_refresh_tokens WHERE user_id = $1`, userID)
	return err
}

func (r *AdminRefreshTokenRepository) DeleteExpired() error {
	_, err := r.db.Exec(context.Background(), `DELETE FROM admin_refresh_tokens WHERE expires_at < now()`)
	return err
}
