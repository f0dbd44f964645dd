// Package oauthcache implements the per-connection OAuth2 bearer cache:
// concurrent acquisitions for the same connection coalesce into one
// upstream POST via golang.org/x/sync/singleflight, so a burst of
// requests against an expired token never fans out into a thundering
// herd of redundant token-endpoint calls.
package oauthcache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/sdmg-platform/gateway/internal/cryptovault"
	"github.com/sdmg-platform/gateway/internal/domain"
)

// refreshSkew is the margin before expiry at which a cached token is
// treated as stale.
const refreshSkew = 120 * time.Second

const acquireTimeout = 10 * time.Second

// CachedToken is the in-memory record of an acquired bearer token.
type CachedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (c CachedToken) freshAt(now time.Time) bool {
	return now.Add(refreshSkew).Before(c.ExpiresAt)
}

// Cache is the process-global map from connection id to CachedToken.
// A per-connection lock is provided by the singleflight group keying;
// the map itself is guarded by a single RWMutex since entries are small
// and reads vastly outnumber writes.
type Cache struct {
	mu     sync.RWMutex
	tokens map[uuid.UUID]CachedToken

	connections domain.ConnectionRepository
	vault       *cryptovault.Vault
	httpClient  *http.Client

	group singleflight.Group
	now   func() time.Time
}

func New(connections domain.ConnectionRepository, vault *cryptovault.Vault) *Cache {
	return &Cache{
		tokens:      make(map[uuid.UUID]CachedToken),
		connections: connections,
		vault:       vault,
		httpClient:  &http.Client{Timeout: acquireTimeout},
		now:         time.Now,
	}
}

// GetToken returns a cached token if one is fresh, otherwise acquires a
// new one, coalescing concurrent callers for the same connection.
func (c *Cache) GetToken(ctx context.Context, connectionID uuid.UUID) (string, error) {
	if tok, ok := c.peek(connectionID); ok && tok.freshAt(c.now()) {
		return tok.AccessToken, nil
	}

	key := connectionID.String()
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the singleflight key: another caller may have
		// already refreshed while this goroutine waited to be scheduled.
		if tok, ok := c.peek(connectionID); ok && tok.freshAt(c.now()) {
			return tok.AccessToken, nil
		}
		return c.acquire(ctx, connectionID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate removes the cached entry so the next GetToken call is
// forced to re-acquire.
func (c *Cache) Invalidate(connectionID uuid.UUID) {
	c.mu.Lock()
	delete(c.tokens, connectionID)
	c.mu.Unlock()
}

func (c *Cache) peek(connectionID uuid.UUID) (CachedToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tok, ok := c.tokens[connectionID]
	return tok, ok
}

func (c *Cache) store(connectionID uuid.UUID, tok CachedToken) {
	c.mu.Lock()
	c.tokens[connectionID] = tok
	c.mu.Unlock()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   *int64 `json:"expires_in"`
}

// acquire performs the client-credentials POST. It never caches a
// failed acquisition.
func (c *Cache) acquire(ctx context.Context, connectionID uuid.UUID) (string, error) {
	conn, err := c.connections.GetByID(connectionID)
	if err != nil {
		return "", fmt.Errorf("oauthcache: load connection: %w", err)
	}
	if conn == nil {
		return "", fmt.Errorf("oauthcache: connection %s not found", connectionID)
	}

	clientSecret, err := c.vault.Decrypt(conn.ClientSecretEnc)
	if err != nil {
		return "", fmt.Errorf("oauthcache: decrypt client secret: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	ctx, cancel := context.WithTimeout(ctx, acquireTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conn.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("oauthcache: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(conn.ClientID, clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauthcache: token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("oauthcache: read token response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return "", fmt.Errorf("oauthcache: token endpoint rejected credentials (401)")
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("oauthcache: token endpoint returned %d", resp.StatusCode)
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("oauthcache: invalid token response json: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("oauthcache: token response missing access_token")
	}

	expiresIn := int64(3600)
	if parsed.ExpiresIn != nil {
		expiresIn = *parsed.ExpiresIn
	}
	c.store(connectionID, CachedToken{
		AccessToken: parsed.AccessToken,
		ExpiresAt:   c.now().Add(time.Duration(expiresIn) * time.Second),
	})

	return parsed.AccessToken, nil
}
