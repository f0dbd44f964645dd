package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProxy() *Proxy {
	return New(nil)
}

func TestProxy_StripsHopByHopAndForwardsOverrides(t *testing.T) {
	var gotAuth, gotConnection, gotXAPIKey string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotConnection = r.Header.Get("Connection")
		gotXAPIKey = r.Header.Get("X-Api-Key")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodGet, "/gw/dm/foo", nil)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("X-Api-Key", "client-supplied-should-be-stripped")

	rec := httptest.NewRecorder()
	overrides := http.Header{"Authorization": []string{"Bearer tok-123"}}

	result := newTestProxy().Proxy(req.Context(), rec, req, upstream.URL+"/target", overrides, time.Second, nil)

	require.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Empty(t, gotConnection)
	assert.Empty(t, gotXAPIKey)
	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
	assert.Equal(t, "ok", rec.Body.String())
}

func TestProxy_GetStripsBody(t *testing.T) {
	var gotContentLength string
	var gotBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentLength = r.Header.Get("Content-Length")
		b := make([]byte, 16)
		n, _ := r.Body.Read(b)
		gotBody = b[:n]
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodGet, "/gw/dm/foo", strings.NewReader("should-not-be-sent"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	result := newTestProxy().Proxy(req.Context(), rec, req, upstream.URL, nil, time.Second, nil)

	require.Equal(t, http.StatusOK, result.StatusCode)
	assert.Empty(t, gotContentLength)
	assert.Empty(t, gotBody)
}

func TestProxy_PostForwardsBody(t *testing.T) {
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusCreated)
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodPost, "/gw/dm/foo", strings.NewReader(`{"a":1}`))
	req.ContentLength = 7
	rec := httptest.NewRecorder()

	result := newTestProxy().Proxy(req.Context(), rec, req, upstream.URL, nil, time.Second, nil)

	require.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, `{"a":1}`, gotBody)
}

func TestProxy_UpstreamConnectFailureReturns502(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/gw/dm/foo", nil)
	rec := httptest.NewRecorder()

	result := newTestProxy().Proxy(req.Context(), rec, req, "http://127.0.0.1:1", nil, time.Second, nil)

	assert.Equal(t, http.StatusBadGateway, result.StatusCode)
	assert.Equal(t, "Upstream connection failed", result.ErrorMessage)
}

func TestProxy_TimeoutReturns504(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodGet, "/gw/dm/foo", nil)
	rec := httptest.NewRecorder()

	result := newTestProxy().Proxy(req.Context(), rec, req, upstream.URL, nil, 10*time.Millisecond, nil)

	assert.Equal(t, http.StatusGatewayTimeout, result.StatusCode)
	assert.Equal(t, "Upstream request timed out", result.ErrorMessage)
}

func TestHeadersSentWriter_TracksWrites(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewHeadersSentWriter(rec)
	assert.False(t, w.HeadersSent())
	w.WriteHeader(http.StatusOK)
	assert.True(t, w.HeadersSent())
	assert.Equal(t, http.StatusOK, w.StatusCode())
}

func TestProxy_RetryGateSuppressesDownstreamWrite(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("unauthorized"))
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodGet, "/gw/dm/foo", nil)
	rec := httptest.NewRecorder()
	hw := NewHeadersSentWriter(rec)
	gate := func(status int) bool { return status == http.StatusUnauthorized }

	result := newTestProxy().Proxy(req.Context(), hw, req, upstream.URL, nil, time.Second, gate)

	assert.Equal(t, http.StatusUnauthorized, result.StatusCode)
	assert.False(t, hw.HeadersSent())
	assert.Empty(t, rec.Body.String())
}

func TestProxy_RetryGateDoesNotSuppressNonMatchingStatus(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	req := httptest.NewRequest(http.MethodGet, "/gw/dm/foo", nil)
	rec := httptest.NewRecorder()
	gate := func(status int) bool { return status == http.StatusUnauthorized }

	result := newTestProxy().Proxy(req.Context(), rec, req, upstream.URL, nil, time.Second, gate)

	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStripHopByHop(t *testing.T) {
	h := http.Header{}
	h.Set("Host", "example.com")
	h.Set("Connection", "close")
	h.Set("X-Custom", "keep-me")

	out := stripHopByHop(h)
	assert.Empty(t, out.Get("Host"))
	assert.Empty(t, out.Get("Connection"))
	assert.Equal(t, "keep-me", out.Get("X-Custom"))
}
