package gateway

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdmg-platform/gateway/internal/cryptovault"
	"github.com/sdmg-platform/gateway/internal/domain"
	"github.com/sdmg-platform/gateway/internal/gwauth"
	"github.com/sdmg-platform/gateway/internal/oauthcache"
	"github.com/sdmg-platform/gateway/internal/proxy"
	"github.com/sdmg-platform/gateway/internal/ratelimit"
	"github.com/sdmg-platform/gateway/internal/requestlog"
)

const dmTestVaultKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type dmFakeConnRepo struct{ conn *domain.Connection }

func (f *dmFakeConnRepo) GetByID(id uuid.UUID) (*domain.Connection, error) { return f.conn, nil }
func (f *dmFakeConnRepo) GetByIDForUser(id, userID, tenantID uuid.UUID) (*domain.Connection, error) {
	return f.conn, nil
}
func (f *dmFakeConnRepo) Create(c *domain.Connection) error { return nil }
func (f *dmFakeConnRepo) Update(c *domain.Connection) error { return nil }
func (f *dmFakeConnRepo) Delete(id uuid.UUID) error         { return nil }

type dmFakeTokenRepo struct {
	hash string
	row  *domain.AuthenticatedToken
}

func (f *dmFakeTokenRepo) FindByHashWithConnection(hash string) (*domain.AuthenticatedToken, error) {
	if hash != f.hash {
		return nil, nil
	}
	return f.row, nil
}
func (f *dmFakeTokenRepo) Create(t *domain.ApiToken) error                           { return nil }
func (f *dmFakeTokenRepo) GetByID(id uuid.UUID) (*domain.ApiToken, error)            { return nil, nil }
func (f *dmFakeTokenRepo) List(u, t uuid.UUID) ([]*domain.ApiToken, error)           { return nil, nil }
func (f *dmFakeTokenRepo) Revoke(id uuid.UUID) error                                 { return nil }
func (f *dmFakeTokenRepo) TouchUsage(id uuid.UUID, at time.Time) error               { return nil }

type dmFakeTenantRepo struct{}

func (dmFakeTenantRepo) GetByID(id uuid.UUID) (*domain.Tenant, error) { return nil, nil }
func (dmFakeTenantRepo) IsActive(id uuid.UUID) (bool, error)          { return true, nil }

type dmFakeLogRepo struct{}

func (dmFakeLogRepo) Append(l *domain.RequestLog) error                                { return nil }
func (dmFakeLogRepo) List(tokenID uuid.UUID, limit, offset int) ([]*domain.RequestLog, error) {
	return nil, nil
}
func (dmFakeLogRepo) DeleteOlderThan(cutoff time.Time) (int64, error) { return 0, nil }

// buildDMTestServer wires a full Handler behind a live HTTP server, using
// fakes for every persistence boundary but the real gwauth/oauthcache/proxy
// components, so the 401-retry behavior exercised here is the real thing.
func buildDMTestServer(t *testing.T, sapServer *httptest.Server, tokenCallCount *int32) (*httptest.Server, string) {
	t.Helper()

	vault, err := cryptovault.New(dmTestVaultKey)
	require.NoError(t, err)
	secretEnc, err := vault.Encrypt("shh")
	require.NoError(t, err)

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(tokenCallCount, 1)
		w.Write([]byte(`{"access_token":"tok-` + string(rune('0'+n)) + `","expires_in":3600}`))
	}))
	t.Cleanup(tokenServer.Close)

	conn := &domain.Connection{
		ID:              uuid.New(),
		TenantID:        uuid.New(),
		SapBaseURL:      sapServer.URL,
		TokenURL:        tokenServer.URL,
		ClientID:        "client",
		ClientSecretEnc: secretEnc,
		IsActive:        true,
	}
	connRepo := &dmFakeConnRepo{conn: conn}

	plaintext := "sdmg_" + "0123456789abcdef0123456789abcdef01234567"
	hash := domain.HashAPIKey(plaintext)
	tokenRepo := &dmFakeTokenRepo{
		hash: hash,
		row: &domain.AuthenticatedToken{
			Token:      &domain.ApiToken{ID: uuid.New(), IsActive: true, ConnectionID: conn.ID},
			Connection: conn,
		},
	}

	authenticator := gwauth.New(tokenRepo, dmFakeTenantRepo{}, zap.NewNop())
	tokenCache := oauthcache.New(connRepo, vault)
	streamProxy := proxy.New(nil)
	logWriter := requestlog.New(dmFakeLogRepo{}, zap.NewNop())
	noLimit := ratelimit.New(ratelimit.Config{RequestsPerSecond: 1000, Burst: 1000})

	h := New(Deps{
		Auth:         authenticator,
		Tokens:       tokenCache,
		Vault:        vault,
		Proxy:        streamProxy,
		RequestLog:   logWriter,
		ProxyLimiter: noLimit,
		APILimiter:   noLimit,
		Logger:       zap.NewNop(),
	})

	r := chi.NewRouter()
	r.Route("/gw", h.RegisterRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return srv, plaintext
}

func TestDM_RetriesOnceOn401AndSurfacesOneFailure(t *testing.T) {
	var sapCalls int32
	sapServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sapCalls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("nope"))
	}))
	defer sapServer.Close()

	var tokenCalls int32
	srv, apiKey := buildDMTestServer(t, sapServer, &tokenCalls)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/gw/dm/v1/foo", nil)
	require.NoError(t, err)
	req.Header.Set("x-api-key", apiKey)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.EqualValues(t, 2, atomic.LoadInt32(&sapCalls), "dm route must retry exactly once on 401")
	require.EqualValues(t, 2, atomic.LoadInt32(&tokenCalls), "the retry must acquire a fresh bearer")
}

func TestDM_SucceedsWithoutRetryOn200(t *testing.T) {
	var sapCalls int32
	var gotAuth string
	sapServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sapCalls, 1)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer sapServer.Close()

	var tokenCalls int32
	srv, apiKey := buildDMTestServer(t, sapServer, &tokenCalls)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/gw/dm/v1/foo?q=1", nil)
	require.NoError(t, err)
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("x-forwarded-for-test", "unused")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Bearer tok-1", gotAuth)
	require.EqualValues(t, 1, atomic.LoadInt32(&sapCalls))
	require.EqualValues(t, 1, atomic.LoadInt32(&tokenCalls))
}
