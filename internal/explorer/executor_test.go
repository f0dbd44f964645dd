package explorer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sdmg-platform/gateway/internal/cryptovault"
	"github.com/sdmg-platform/gateway/internal/domain"
	"github.com/sdmg-platform/gateway/internal/oauthcache"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

type fakeConnRepo struct {
	conn *domain.Connection
}

func (f *fakeConnRepo) GetByID(id uuid.UUID) (*domain.Connection, error) { return f.conn, nil }
func (f *fakeConnRepo) GetByIDForUser(id, userID, tenantID uuid.UUID) (*domain.Connection, error) {
	return f.conn, nil
}
func (f *fakeConnRepo) Create(c *domain.Connection) error { return nil }
func (f *fakeConnRepo) Update(c *domain.Connection) error { return nil }
func (f *fakeConnRepo) Delete(id uuid.UUID) error         { return nil }

func setup(t *testing.T, sapServer, tokenServer *httptest.Server) *Executor {
	t.Helper()
	vault, err := cryptovault.New(testKey)
	require.NoError(t, err)
	secretEnc, err := vault.Encrypt("shh")
	require.NoError(t, err)

	conn := &domain.Connection{
		ID:              uuid.New(),
		SapBaseURL:      sapServer.URL,
		TokenURL:        tokenServer.URL,
		ClientID:        "client",
		ClientSecretEnc: secretEnc,
		IsActive:        true,
	}
	repo := &fakeConnRepo{conn: conn}
	cache := oauthcache.New(repo, vault)
	return New(repo, cache, nil)
}

func tokenServerWith(token string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"` + token + `","expires_in":3600}`))
	}))
}

func TestExecute_SuccessBuffersBody(t *testing.T) {
	tokenSrv := tokenServerWith("tok-1")
	defer tokenSrv.Close()

	var gotAuth string
	sapSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"hello":"world"}`))
	}))
	defer sapSrv.Close()

	ex := setup(t, sapSrv, tokenSrv)
	result := ex.Execute(context.Background(), ex.connIDFromRepo(), http.MethodGet, "/v1/thing", nil, nil)

	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Equal(t, "Bearer tok-1", gotAuth)
	require.NotNil(t, result.ResponseBody)
	require.Equal(t, `{"hello":"world"}`, *result.ResponseBody)
}

func TestExecute_TruncatesAt1MiB(t *testing.T) {
	tokenSrv := tokenServerWith("tok-1")
	defer tokenSrv.Close()

	big := strings.Repeat("a", maxBufferedBody+500)
	sapSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(big))
	}))
	defer sapSrv.Close()

	ex := setup(t, sapSrv, tokenSrv)
	result := ex.Execute(context.Background(), ex.connIDFromRepo(), http.MethodGet, "/v1/big", nil, nil)

	require.NotNil(t, result.ResponseBody)
	require.True(t, strings.HasSuffix(*result.ResponseBody, truncatedSuffix))
	require.True(t, len(*result.ResponseBody) < len(big))
}

func TestExecute_RetriesOnceOn401(t *testing.T) {
	var tokenCalls int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokenCalls, 1)
		w.Write([]byte(`{"access_token":"tok-` + string(rune('0'+n)) + `","expires_in":3600}`))
	}))
	defer tokenSrv.Close()

	var sapCalls int32
	sapSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&sapCalls, 1)
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer sapSrv.Close()

	ex := setup(t, sapSrv, tokenSrv)
	result := ex.Execute(context.Background(), ex.connIDFromRepo(), http.MethodGet, "/v1/thing", nil, nil)

	require.Equal(t, http.StatusOK, result.StatusCode)
	require.EqualValues(t, 2, atomic.LoadInt32(&sapCalls))
	require.EqualValues(t, 2, atomic.LoadInt32(&tokenCalls))
}

// connIDFromRepo is a small test helper exposing the fixed connection id
// configured in setup without threading it through every call site.
func (e *Executor) connIDFromRepo() uuid.UUID {
	repo := e.connections.(*fakeConnRepo)
	return repo.conn.ID
}
