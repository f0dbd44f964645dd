package gwauth

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sdmg-platform/gateway/internal/domain"
)

type fakeTokenRepo struct {
	mu         sync.Mutex
	byHash     map[string]*domain.AuthenticatedToken
	findCalls  int
	touchCalls int
	touchCh    chan struct{}
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{byHash: map[string]*domain.AuthenticatedToken{}, touchCh: make(chan struct{}, 8)}
}

func (f *fakeTokenRepo) FindByHashWithConnection(hash string) (*domain.AuthenticatedToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	return f.byHash[hash], nil
}
func (f *fakeTokenRepo) Create(t *domain.ApiToken) error { return nil }
func (f *fakeTokenRepo) GetByID(id uuid.UUID) (*domain.ApiToken, error) { return nil, nil }
func (f *fakeTokenRepo) List(userID, tenantID uuid.UUID) ([]*domain.ApiToken, error) { return nil, nil }
func (f *fakeTokenRepo) Revoke(id uuid.UUID) error { return nil }
func (f *fakeTokenRepo) TouchUsage(id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	f.touchCalls++
	f.mu.Unlock()
	f.touchCh <- struct{}{}
	return nil
}

type fakeTenantRepo struct {
	active bool
}

func (fakeTenantRepo) GetByID(id uuid.UUID) (*domain.Tenant, error) { return nil, nil }
func (f fakeTenantRepo) IsActive(id uuid.UUID) (bool, error)        { return f.active, nil }

func activeTenantRepo() fakeTenantRepo { return fakeTenantRepo{active: true} }

func TestAuthenticate_MissingKey(t *testing.T) {
	a := New(newFakeTokenRepo(), activeTenantRepo(), zap.NewNop())
	_, err := a.Authenticate("")
	require.NotNil(t, err)
	assert.Equal(t, domain.KindAuth, err.Kind)
	assert.Contains(t, err.Message, "MISSING_KEY")
}

func TestAuthenticate_BadFormatNeverHitsRepo(t *testing.T) {
	repo := newFakeTokenRepo()
	a := New(repo, activeTenantRepo(), zap.NewNop())

	_, err := a.Authenticate("not-the-right-shape")
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "BAD_FORMAT")
	assert.Equal(t, 0, repo.findCalls)
	assert.Equal(t, 0, repo.touchCalls)
}

func TestAuthenticate_WrongPrefixRightLength(t *testing.T) {
	a := New(newFakeTokenRepo(), activeTenantRepo(), zap.NewNop())

	_, err := a.Authenticate("xxxx_" + "0000000000000000000000000000000000000000")
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "BAD_FORMAT")
}

func TestAuthenticate_Success(t *testing.T) {
	plaintext, err := domain.GenerateAPIKey()
	require.NoError(t, err)
	hash := domain.HashAPIKey(plaintext)

	repo := newFakeTokenRepo()
	conn := &domain.Connection{ID: uuid.New(), IsActive: true}
	tok := &domain.ApiToken{ID: uuid.New(), TokenHash: hash, IsActive: true}
	repo.byHash[hash] = &domain.AuthenticatedToken{Token: tok, Connection: conn}

	a := New(repo, activeTenantRepo(), zap.NewNop())
	result, aerr := a.Authenticate(plaintext)
	require.Nil(t, aerr)
	require.NotNil(t, result)
	assert.Equal(t, tok.ID, result.Token.ID)

	select {
	case <-repo.touchCh:
	case <-time.After(time.Second):
		t.Fatal("expected fire-and-forget usage touch")
	}
}

func TestAuthenticate_DeactivatedConnection(t *testing.T) {
	plaintext, err := domain.GenerateAPIKey()
	require.NoError(t, err)
	hash := domain.HashAPIKey(plaintext)

	repo := newFakeTokenRepo()
	conn := &domain.Connection{ID: uuid.New(), IsActive: false}
	tok := &domain.ApiToken{ID: uuid.New(), TokenHash: hash, IsActive: true}
	repo.byHash[hash] = &domain.AuthenticatedToken{Token: tok, Connection: conn}

	a := New(repo, activeTenantRepo(), zap.NewNop())
	_, aerr := a.Authenticate(plaintext)
	require.NotNil(t, aerr)
	assert.Equal(t, domain.KindPolicy, aerr.Kind)
}

func TestAuthenticate_DeactivatedTenant(t *testing.T) {
	plaintext, err := domain.GenerateAPIKey()
	require.NoError(t, err)
	hash := domain.HashAPIKey(plaintext)

	repo := newFakeTokenRepo()
	conn := &domain.Connection{ID: uuid.New(), TenantID: uuid.New(), IsActive: true}
	tok := &domain.ApiToken{ID: uuid.New(), TokenHash: hash, IsActive: true}
	repo.byHash[hash] = &domain.AuthenticatedToken{Token: tok, Connection: conn}

	a := New(repo, fakeTenantRepo{active: false}, zap.NewNop())
	_, aerr := a.Authenticate(plaintext)
	require.NotNil(t, aerr)
	assert.Equal(t, domain.KindPolicy, aerr.Kind)
	assert.Contains(t, aerr.Message, "CONN_DEACTIVATED")
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	plaintext, err := domain.GenerateAPIKey()
	require.NoError(t, err)
	hash := domain.HashAPIKey(plaintext)

	past := time.Now().Add(-time.Hour)
	repo := newFakeTokenRepo()
	conn := &domain.Connection{ID: uuid.New(), IsActive: true}
	tok := &domain.ApiToken{ID: uuid.New(), TokenHash: hash, IsActive: true, ExpiresAt: &past}
	repo.byHash[hash] = &domain.AuthenticatedToken{Token: tok, Connection: conn}

	a := New(repo, activeTenantRepo(), zap.NewNop())
	_, aerr := a.Authenticate(plaintext)
	require.NotNil(t, aerr)
	assert.Contains(t, aerr.Message, "EXPIRED")
}
