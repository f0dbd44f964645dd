// Package proxy implements the streaming single-API proxy: it forwards
// one inbound request to a target URL, sanitizing headers and applying
// the GET/HEAD/OPTIONS body policy, and streams the upstream response
// back to the client without buffering it in memory.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const DefaultTimeout = 120 * time.Second

// hopByHop is the header set stripped before forwarding in either
// direction.
var hopByHop = map[string]struct{}{
	"host":                {},
	"connection":          {},
	"keep-alive":          {},
	"transfer-encoding":   {},
	"te":                  {},
	"trailer":             {},
	"upgrade":             {},
	"proxy-authorization": {},
	"proxy-connection":    {},
	"x-api-key":           {},
}

func stripHopByHop(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		if _, blocked := hopByHop[strings.ToLower(k)]; blocked {
			continue
		}
		out[k] = v
	}
	return out
}

// Result is the outcome returned once the response has ended, or an
// error is surfaced.
type Result struct {
	StatusCode       int
	ResponseSizeBytes int64
	DurationMs       int64
	ErrorMessage     string
}

// Proxy streams one request through to targetURL using client.
type Proxy struct {
	client *http.Client
}

func New(dialer func(ctx context.Context, network, addr string) (net.Conn, error)) *Proxy {
	transport := &http.Transport{
		DialContext:           dialer,
		ForceAttemptHTTP2:     true,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Proxy{client: &http.Client{
		Transport: transport,
		// Redirects are followed by the caller's chosen policy; the
		// gateway never wants the Go client silently re-issuing the
		// request with a stripped Authorization header, so redirects
		// are surfaced as the final response instead.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

// Proxy forwards r to targetURL with the given override headers, writing
// the upstream response (status, headers, streamed body) to w. timeout
// defaults to 120s.
//
// retryGate, when non-nil, is consulted with the upstream status code
// before anything is written downstream: if it returns true, the
// response is drained and discarded without touching w, so the dm
// route's at-most-once 401 retry can swap in a fresh bearer and replay
// the call before the client has seen a single byte. Pass nil to
// always commit the response as soon as it arrives.
func (p *Proxy) Proxy(ctx context.Context, w http.ResponseWriter, r *http.Request, targetURL string, overrides http.Header, timeout time.Duration, retryGate func(statusCode int) bool) Result {
	start := time.Now()
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outHeaders := stripHopByHop(r.Header)
	for k, v := range overrides {
		outHeaders[http.CanonicalHeaderKey(k)] = v
	}

	var body io.Reader = r.Body
	method := strings.ToUpper(r.Method)
	noBody := method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
	if noBody {
		body = nil
		outHeaders.Del("Content-Length")
		outHeaders.Del("Content-Type")
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, targetURL, body)
	if err != nil {
		return Result{ErrorMessage: fmt.Sprintf("build request: %v", err), DurationMs: elapsedMs(start)}
	}
	req.Header = outHeaders
	req.Host = req.URL.Host
	if !noBody && r.ContentLength > 0 {
		req.ContentLength = r.ContentLength
	}

	resp, err := p.client.Do(req)
	if err != nil {
		msg, status := classifyTransportError(err)
		w.WriteHeader(status)
		fmt.Fprint(w, msg)
		return Result{StatusCode: status, ErrorMessage: msg, DurationMs: elapsedMs(start)}
	}
	defer resp.Body.Close()

	if retryGate != nil && retryGate(resp.StatusCode) {
		io.Copy(io.Discard, resp.Body)
		return Result{StatusCode: resp.StatusCode, DurationMs: elapsedMs(start)}
	}

	respHeaders := stripHopByHop(resp.Header)
	for k, v := range respHeaders {
		w.Header()[k] = v
	}
	w.WriteHeader(resp.StatusCode)

	n, copyErr := io.Copy(w, resp.Body)

	result := Result{
		StatusCode:        resp.StatusCode,
		ResponseSizeBytes: n,
		DurationMs:        elapsedMs(start),
	}
	if copyErr != nil {
		// Headers are already flushed downstream: the response is
		// terminated but not rewritten.
		result.ErrorMessage = fmt.Sprintf("stream interrupted: %v", copyErr)
	}
	return result
}

func classifyTransportError(err error) (string, int) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Upstream request timed out", http.StatusGatewayTimeout
	}
	return "Upstream connection failed", http.StatusBadGateway
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

// HeadersSentWriter wraps a ResponseWriter so callers (the dm route's
// 401-retry-once policy) can tell whether bytes already left the server.
type HeadersSentWriter struct {
	http.ResponseWriter
	sent   bool
	status int
}

func NewHeadersSentWriter(w http.ResponseWriter) *HeadersSentWriter {
	return &HeadersSentWriter{ResponseWriter: w}
}

func (h *HeadersSentWriter) WriteHeader(status int) {
	h.sent = true
	h.status = status
	h.ResponseWriter.WriteHeader(status)
}

func (h *HeadersSentWriter) Write(b []byte) (int, error) {
	h.sent = true
	return h.ResponseWriter.Write(b)
}

func (h *HeadersSentWriter) HeadersSent() bool { return h.sent }
func (h *HeadersSentWriter) StatusCode() int    { return h.status }
