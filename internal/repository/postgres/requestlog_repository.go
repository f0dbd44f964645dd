package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type RequestLogRepository struct {
	db *pgxpool.Pool
}

func NewRequestLogRepository(db *pgxpool.Pool) domain.RequestLogRepository {
	return &RequestLogRepository{db: db}
}

// Append persists one RequestLog row. It is always called from the
// fire-and-forget goroutine in internal/requestlog; a failure here is
// logged by the caller, never surfaced to the HTTP client.
func (r *RequestLogRepository) Append(l *domain.RequestLog) error {
	requestHeaders, err := json.Marshal(l.RequestHeaders)
	if err != nil {
		return err
	}
	responseHeaders, err := json.Marshal(l.ResponseHeaders)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO request_logs (token_id, connection_id, direction, target, method, path,
			request_headers, request_body_size, request_body, response_status, response_headers,
			response_body_size, duration_ms, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
	`
	_, err = r.db.Exec(context.Background(), query,
		l.TokenID, l.ConnectionID, l.Direction, l.Target, l.Method, l.Path,
		requestHeaders, l.RequestBodySize, l.RequestBody, l.ResponseStatus, responseHeaders,
		l.ResponseBodySize, l.DurationMs, l.ErrorMessage)
	return err
}

func (r *RequestLogRepository) List(tokenID uuid.UUID, limit, offset int) ([]*domain.RequestLog, error) {
	query := `
		SELECT id, token_id, connection_id, direction, target, method, path, request_headers,
			request_body_size, request_body, response_status, response_headers, response_body_size,
			duration_ms, error_message, created_at
		FROM request_logs WHERE token_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(context.Background(), query, tokenID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RequestLog
	for rows.Next() {
		var l domain.RequestLog
		var requestHeaders, responseHeaders []byte
		if err := rows.Scan(
			&l.ID, &l.TokenID, &l.ConnectionID, &l.Direction, &l.Target, &l.Method, &l.Path, &requestHeaders,
			&l.RequestBodySize, &l.RequestBody, &l.ResponseStatus, &responseHeaders, &l.ResponseBodySize,
			&l.DurationMs, &l.ErrorMessage, &l.CreatedAt,
		); err != nil {
			return nil, err
		}
		_ = unmarshalIfPresent(requestHeaders, &l.RequestHeaders)
		_ = unmarshalIfPresent(responseHeaders, &l.ResponseHeaders)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// DeleteOlderThan backs the LOG_RETENTION_DAYS cron job (robfig/cron/v3).
func (r *RequestLogRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(context.Background(), `DELETE FROM request_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
