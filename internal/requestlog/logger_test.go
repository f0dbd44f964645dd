package requestlog

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*domain.RequestLog
	failAll bool
	done    chan struct{}
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{done: make(chan struct{}, 8)}
}

func (f *fakeLogRepo) Append(l *domain.RequestLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		f.done <- struct{}{}
		return assert.AnError
	}
	f.entries = append(f.entries, l)
	f.done <- struct{}{}
	return nil
}
func (f *fakeLogRepo) List(tokenID uuid.UUID, limit, offset int) ([]*domain.RequestLog, error) {
	return nil, nil
}
func (f *fakeLogRepo) DeleteOlderThan(cutoff time.Time) (int64, error) { return 0, nil }

func TestCapture_RedactsAuthorizationHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/gw/dm/foo", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("X-Api-Key", "sdmg_abc")
	req.Header.Set("X-Custom", "visible")

	c := Start(uuid.New(), uuid.New(), domain.DirectionOutbound, domain.TargetSapDM, req)

	assert.Equal(t, redactedValue, c.requestHeaders["Authorization"])
	assert.Equal(t, redactedValue, c.requestHeaders["X-Api-Key"])
	assert.Equal(t, "visible", c.requestHeaders["X-Custom"])
}

func TestLogger_FinishPersistsAsynchronously(t *testing.T) {
	repo := newFakeLogRepo()
	logger := New(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/gw/dm/foo", nil)
	c := Start(uuid.New(), uuid.New(), domain.DirectionOutbound, domain.TargetSapDM, req)

	logger.Finish(c, http.StatusOK, 128, "")

	select {
	case <-repo.done:
	case <-time.After(time.Second):
		t.Fatal("expected async persist")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.entries, 1)
	assert.Equal(t, http.StatusOK, repo.entries[0].ResponseStatus)
	assert.Equal(t, int64(128), repo.entries[0].ResponseBodySize)
	assert.Nil(t, repo.entries[0].ErrorMessage)
}

func TestLogger_FinishRecordsErrorMessage(t *testing.T) {
	repo := newFakeLogRepo()
	logger := New(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/gw/dm/foo", nil)
	c := Start(uuid.New(), uuid.New(), domain.DirectionOutbound, domain.TargetSapDM, req)

	logger.Finish(c, http.StatusBadGateway, 0, "Upstream connection failed")

	<-repo.done
	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.entries, 1)
	require.NotNil(t, repo.entries[0].ErrorMessage)
	assert.Equal(t, "Upstream connection failed", *repo.entries[0].ErrorMessage)
}

func TestLogger_AppendFailureDoesNotPanic(t *testing.T) {
	repo := newFakeLogRepo()
	repo.failAll = true
	logger := New(repo, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/gw/dm/foo", nil)
	c := Start(uuid.New(), uuid.New(), domain.DirectionOutbound, domain.TargetSapDM, req)

	logger.Finish(c, http.StatusOK, 0, "")

	<-repo.done
}
