package domain

import (
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Target string

const (
	TargetAgent Target = "agent"
	TargetSapDM Target = "sap_dm"
)

// RequestLog is the persisted record of one proxy/orchestrator call.
type RequestLog struct {
	ID               int64             `json:"id" db:"id"`
	TokenID          uuid.UUID         `json:"token_id" db:"token_id"`
	ConnectionID     uuid.UUID         `json:"connection_id" db:"connection_id"`
	Direction        Direction         `json:"direction" db:"direction"`
	Target           Target            `json:"target" db:"target"`
	Method           string            `json:"method" db:"method"`
	Path             string            `json:"path" db:"path"`
	RequestHeaders   map[string]string `json:"request_headers,omitempty" db:"request_headers"`
	RequestBodySize  int64             `json:"request_body_size" db:"request_body_size"`
	RequestBody      *string           `json:"request_body,omitempty" db:"request_body"`
	ResponseStatus   int               `json:"response_status" db:"response_status"`
	ResponseHeaders  map[string]string `json:"response_headers,omitempty" db:"response_headers"`
	ResponseBodySize int64             `json:"response_body_size" db:"response_body_size"`
	DurationMs       int64             `json:"duration_ms" db:"duration_ms"`
	ErrorMessage     *string           `json:"error_message,omitempty" db:"error_message"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
}

type RequestLogRepository interface {
	Append(l *RequestLog) error
	List(tokenID uuid.UUID, limit, offset int) ([]*RequestLog, error)
	// DeleteOlderThan supports the LOG_RETENTION_DAYS pruning job.
	DeleteOlderThan(cutoff time.Time) (int64, error)
}
