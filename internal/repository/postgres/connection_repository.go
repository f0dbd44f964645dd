package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type ConnectionRepository struct {
	db *pgxpool.Pool
}

func NewConnectionRepository(db *pgxpool.Pool) domain.ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, user_id, tenant_id, name, sap_base_url, token_url, client_id, client_secret_enc,
	agent_api_url, agent_api_key_enc, is_active, created_at, updated_at`

func scanConnection(row pgx.Row) (*domain.Connection, error) {
	var c domain.Connection
	err := row.Scan(
		&c.ID, &c.UserID, &c.TenantID, &c.Name, &c.SapBaseURL, &c.TokenURL, &c.ClientID, &c.ClientSecretEnc,
		&c.AgentAPIURL, &c.AgentAPIKeyEnc, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *ConnectionRepository) GetByID(id uuid.UUID) (*domain.Connection, error) {
	query := fmt.Sprintf(`SELECT %s FROM connections WHERE id = $1`, connectionColumns)
	return scanConnection(r.db.QueryRow(context.Background(), query, id))
}

func (r *ConnectionRepository) GetByIDForUser(id, userID, tenantID uuid.UUID) (*domain.Connection, error) {
	query := fmt.Sprintf(`SELECT %s FROM connections WHERE id = $1 AND user_id = $2 AND tenant_id = $3`, connectionColumns)
	return scanConnection(r.db.QueryRow(context.Background(), query, id, userID, tenantID))
}

func (r *ConnectionRepository) Create(c *domain.Connection) error {
	query := `
		INSERT INTO connections (id, user_id, tenant_id, name, sap_base_url, token_url, client_id,
			client_secret_enc, agent_api_url, agent_api_key_enc, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.Exec(context.Background(), query,
		c.ID, c.UserID, c.TenantID, c.Name, c.SapBaseURL, c.TokenURL, c.ClientID,
		c.ClientSecretEnc, c.AgentAPIURL, c.AgentAPIKeyEnc, c.IsActive, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *ConnectionRepository) Update(c *domain.Connection) error {
	query := `
		UPDATE connections SET name = $2, sap_base_url = $3, token_url = $4, client_id = $5,
			client_secret_enc = $6, agent_api_url = $7, agent_api_key_enc = $8, is_active = $9, updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.Exec(context.Background(), query,
		c.ID, c.Name, c.SapBaseURL, c.TokenURL, c.ClientID, c.ClientSecretEnc, c.AgentAPIURL, c.AgentAPIKeyEnc, c.IsActive)
	return err
}

func (r *ConnectionRepository) Delete(id uuid.UUID) error {
	_, err := r.db.Exec(context.Background(), `DELETE FROM connections WHERE id = $1`, id)
	return err
}
