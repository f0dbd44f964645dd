package oauthcache

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sdmg-platform/gateway/internal/cryptovault"
	"github.com/sdmg-platform/gateway/internal/domain"
)

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

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func setupCache(t *testing.T, tokenServer *httptest.Server) (*Cache, uuid.UUID) {
	t.Helper()
	vault, err := cryptovault.New(testKey)
	require.NoError(t, err)

	secretEnc, err := vault.Encrypt("shh")
	require.NoError(t, err)

	connID := uuid.New()
	conn := &domain.Connection{
		ID:              connID,
		TokenURL:        tokenServer.URL,
		ClientID:        "client-1",
		ClientSecretEnc: secretEnc,
		IsActive:        true,
	}

	cache := New(&fakeConnRepo{conn: conn}, vault)
	return cache, connID
}

func TestGetToken_CachesWithinSkew(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 3600})
	}))
	defer srv.Close()

	cache, connID := setupCache(t, srv)

	tok1, err := cache.GetToken(context.Background(), connID)
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok1)

	tok2, err := cache.GetToken(context.Background(), connID)
	require.NoError(t, err)
	require.Equal(t, "tok-1", tok2)

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetToken_InvalidateForcesReacquire(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-" + string(rune('0'+n)), "expires_in": 3600})
	}))
	defer srv.Close()

	cache, connID := setupCache(t, srv)

	_, err := cache.GetToken(context.Background(), connID)
	require.NoError(t, err)
	cache.Invalidate(connID)

	_, err = cache.GetToken(context.Background(), connID)
	require.NoError(t, err)

	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGetToken_CoalescesConcurrentAcquisitions(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-shared", "expires_in": 3600})
	}))
	defer srv.Close()

	cache, connID := setupCache(t, srv)

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			tok, err := cache.GetToken(context.Background(), connID)
			require.NoError(t, err)
			require.Equal(t, "tok-shared", tok)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetToken_UpstreamErrorNotCached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cache, connID := setupCache(t, srv)

	_, err := cache.GetToken(context.Background(), connID)
	require.Error(t, err)

	_, ok := cache.peek(connID)
	require.False(t, ok)
}
