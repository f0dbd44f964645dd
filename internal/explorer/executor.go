// Package explorer implements the non-streaming call executor used by
// the orchestrator: it buffers a response up to 1 MiB, truncating the
// rest, and retries once on a 401 after invalidating the cached bearer.
package explorer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sdmg-platform/gateway/internal/domain"
	"github.com/sdmg-platform/gateway/internal/oauthcache"
)

const (
	DefaultTimeout  = 30 * time.Second
	maxBufferedBody = 1 << 20 // 1 MiB
	truncatedSuffix = "\n...[truncated at 1MB]"
)

// Result mirrors the executor's return shape.
type Result struct {
	StatusCode        int
	ResponseHeaders   http.Header
	ResponseBody      *string
	ResponseSizeBytes int64
	DurationMs        int64
	ErrorMessage      string
}

type Executor struct {
	connections domain.ConnectionRepository
	tokens      *oauthcache.Cache
	client      *http.Client
}

func New(connections domain.ConnectionRepository, tokens *oauthcache.Cache, dialer func(ctx context.Context, network, addr string) (net.Conn, error)) *Executor {
	transport := &http.Transport{DialContext: dialer}
	return &Executor{
		connections: connections,
		tokens:      tokens,
		client:      &http.Client{Transport: transport, Timeout: DefaultTimeout},
	}
}

// Execute runs one call against the connection's upstream in full,
// including the single 401 retry with an invalidated, freshly-acquired
// bearer.
func (e *Executor) Execute(ctx context.Context, connectionID uuid.UUID, method, path string, headers http.Header, body []byte) Result {
	start := time.Now()

	conn, err := e.connections.GetByID(connectionID)
	if err != nil {
		return Result{ErrorMessage: fmt.Sprintf("load connection: %v", err), DurationMs: elapsedMs(start)}
	}
	if conn == nil || !conn.IsActive {
		return Result{ErrorMessage: "connection not found or inactive", DurationMs: elapsedMs(start)}
	}

	target := conn.BaseURL() + path

	result := e.attempt(ctx, conn.ID, target, method, headers, body)
	if result.StatusCode == http.StatusUnauthorized {
		e.tokens.Invalidate(conn.ID)
		result = e.attempt(ctx, conn.ID, target, method, headers, body)
	}
	result.DurationMs = elapsedMs(start)
	return result
}

func (e *Executor) attempt(ctx context.Context, connectionID uuid.UUID, target, method string, headers http.Header, body []byte) Result {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	token, err := e.tokens.GetToken(ctx, connectionID)
	if err != nil {
		return Result{ErrorMessage: fmt.Sprintf("acquire bearer: %v", err)}
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return Result{ErrorMessage: fmt.Sprintf("build request: %v", err)}
	}
	for k, v := range headers {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := e.client.Do(req)
	if err != nil {
		msg, _ := classifyTransportError(err)
		return Result{ErrorMessage: msg}
	}
	defer resp.Body.Close()

	bodyStr, size := readCapped(resp.Body)

	return Result{
		StatusCode:        resp.StatusCode,
		ResponseHeaders:   resp.Header,
		ResponseBody:      &bodyStr,
		ResponseSizeBytes: size,
	}
}

// readCapped buffers up to maxBufferedBody bytes, appending the
// truncation marker if more bytes were available.
func readCapped(r io.Reader) (string, int64) {
	limited := io.LimitReader(r, maxBufferedBody)
	buf, _ := io.ReadAll(limited)

	var discarded int64
	if n, _ := io.Copy(io.Discard, r); n > 0 {
		discarded = n
	}

	size := int64(len(buf)) + discarded
	if discarded > 0 {
		return string(buf) + truncatedSuffix, size
	}
	return string(buf), size
}

func classifyTransportError(err error) (string, int) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Upstream request timed out", http.StatusGatewayTimeout
	}
	if strings.Contains(err.Error(), "connection refused") {
		return "Upstream connection failed", http.StatusBadGateway
	}
	return "Upstream connection failed", http.StatusBadGateway
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
