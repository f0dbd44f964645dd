// Package requestlog implements the request logger: it captures a
// request's shape before the call runs, then persists the outcome
// asynchronously so a slow or failing write never blocks the client
// response.
package requestlog

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sdmg-platform/gateway/internal/domain"
)

const redactedValue = "[redacted]"

// Capture is the in-flight record started at the top of a proxy or
// orchestrator route.
type Capture struct {
	start          time.Time
	tokenID        uuid.UUID
	connectionID   uuid.UUID
	direction      domain.Direction
	target         domain.Target
	method         string
	path           string
	requestHeaders map[string]string
	requestBodySize int64
}

func Start(tokenID, connectionID uuid.UUID, direction domain.Direction, target domain.Target, r *http.Request) *Capture {
	return &Capture{
		start:           time.Now(),
		tokenID:         tokenID,
		connectionID:    connectionID,
		direction:       direction,
		target:          target,
		method:          r.Method,
		path:            r.URL.Path,
		requestHeaders:  redactHeaders(r.Header),
		requestBodySize: r.ContentLength,
	}
}

func redactHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		if k == "Authorization" || k == "X-Api-Key" {
			out[k] = redactedValue
			continue
		}
		out[k] = v[0]
	}
	return out
}

// Logger persists completed Captures fire-and-forget: a write failure
// logs to stderr and does not affect the client.
type Logger struct {
	repo   domain.RequestLogRepository
	logger *zap.Logger
}

func New(repo domain.RequestLogRepository, logger *zap.Logger) *Logger {
	return &Logger{repo: repo, logger: logger}
}

// Finish persists the outcome once the response has ended. It never
// blocks the caller: persistence happens in a background goroutine.
func (l *Logger) Finish(c *Capture, status int, responseSizeBytes int64, errMessage string) {
	entry := &domain.RequestLog{
		TokenID:          c.tokenID,
		ConnectionID:     c.connectionID,
		Direction:        c.direction,
		Target:           c.target,
		Method:           c.method,
		Path:             c.path,
		RequestHeaders:   c.requestHeaders,
		RequestBodySize:  c.requestBodySize,
		ResponseStatus:   status,
		ResponseBodySize: responseSizeBytes,
		DurationMs:       time.Since(c.start).Milliseconds(),
	}
	if errMessage != "" {
		entry.ErrorMessage = &errMessage
	}

	go func() {
		if err := l.repo.Append(entry); err != nil {
			msg := fmt.Sprintf("requestlog: failed to persist entry for token %s: %v\n", c.tokenID, err)
			if _, werr := os.Stderr.WriteString(msg); werr != nil && l.logger != nil {
				l.logger.Error("requestlog: failed to write to stderr", zap.Error(werr))
			}
		}
	}()
}
