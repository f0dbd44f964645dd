package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type ApiTokenRepository struct {
	db *pgxpool.Pool
}

func NewApiTokenRepository(db *pgxpool.Pool) domain.ApiTokenRepository {
	return &ApiTokenRepository{db: db}
}

// FindByHashWithConnection runs the token/connection lookup as a single
// round-trip join: one query returns both the token and the
// connection it authorizes.
func (r *ApiTokenRepository) FindByHashWithConnection(tokenHash string) (*domain.AuthenticatedToken, error) {
	query := `
		SELECT
			t.id, t.user_id, t.tenant_id, t.connection_id, t.token_hash, t.token_prefix, t.label,
			t.is_active, t.expires_at, t.last_used_at, t.request_count, t.created_at,
			c.id, c.user_id, c.tenant_id, c.name, c.sap_base_url, c.token_url, c.client_id,
			c.client_secret_enc, c.agent_api_url, c.agent_api_key_enc, c.is_active, c.created_at, c.updated_at
		FROM api_tokens t
		JOIN connections c ON c.id = t.connection_id
		WHERE t.token_hash = $1
	`
	var tok domain.ApiToken
	var conn domain.Connection
	err := r.db.QueryRow(context.Background(), query, tokenHash).Scan(
		&tok.ID, &tok.UserID, &tok.TenantID, &tok.ConnectionID, &tok.TokenHash, &tok.TokenPrefix, &tok.Label,
		&tok.IsActive, &tok.ExpiresAt, &tok.LastUsedAt, &tok.RequestCount, &tok.CreatedAt,
		&conn.ID, &conn.UserID, &conn.TenantID, &conn.Name, &conn.SapBaseURL, &conn.TokenURL, &conn.ClientID,
		&conn.ClientSecretEnc, &conn.AgentAPIURL, &conn.AgentAPIKeyEnc, &conn.IsActive, &conn.CreatedAt, &conn.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &domain.AuthenticatedToken{Token: &tok, Connection: &conn}, nil
}

func (r *ApiTokenRepository) Create(t *domain.ApiToken) error {
	query := `
		INSERT INTO api_tokens (id, user_id, tenant_id, connection_id, token_hash, token_prefix, label,
			is_active, expires_at, request_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(context.Background(), query,
		t.ID, t.UserID, t.TenantID, t.ConnectionID, t.TokenHash, t.TokenPrefix, t.Label,
		t.IsActive, t.ExpiresAt, t.RequestCount, t.CreatedAt)
	return err
}

func (r *ApiTokenRepository) GetByID(id uuid.UUID) (*domain.ApiToken, error) {
	query := `
		SELECT id, user_id, tenant_id, connection_id, token_hash, token_prefix, label,
			is_active, expires_at, last_used_at, request_count, created_at
		FROM api_tokens WHERE id = $1
	`
	var t domain.ApiToken
	err := r.db.QueryRow(context.Background(), query, id).Scan(
		&t.ID, &t.UserID, &t.TenantID, &t.ConnectionID, &t.TokenHash, &t.TokenPrefix, &t.Label,
		&t.IsActive, &t.ExpiresAt, &t.LastUsedAt, &t.RequestCount, &t.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *ApiTokenRepository) List(userID, tenantID uuid.UUID) ([]*domain.ApiToken, error) {
	query := `
		SELECT id, user_id, tenant_id, connection_id, token_hash, token_prefix, label,
			is_active, expires_at, last_used_at, request_count, created_at
		FROM api_tokens WHERE user_id = $1 AND tenant_id = $2 ORDER BY created_at DESC
	`
	rows, err := r.db.Query(context.Background(), query, userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ApiToken
	for rows.Next() {
		var t domain.ApiToken
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.TenantID, &t.ConnectionID, &t.TokenHash, &t.TokenPrefix, &t.Label,
			&t.IsActive, &t.ExpiresAt, &t.LastUsedAt, &t.RequestCount, &t.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *ApiTokenRepository) Revoke(id uuid.UUID) error {
	_, err := r.db.Exec(context.Background(), `UPDATE api_tokens SET is_active = FALSE WHERE id = $1`, id)
	return err
}

// TouchUsage is a fire-and-forget counter update called after a
// successful authentication.
func (r *ApiTokenRepository) TouchUsage(id uuid.UUID, at time.Time) error {
	_, err := r.db.Exec(context.Background(),
		`UPDATE api_tokens SET last_used_at = $2, request_count = request_count + 1 WHERE id = $1`, id, at)
	return err
}
