// Package sdmgw is a minimal Go client for the SAP Digital Manufacturing
// gateway's /gw surface: health, the raw DM/agent proxies, and the
// orchestrated query/use-case endpoints.
package sdmgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps a configured gateway connection identified by an API
// key in the sdmg_<40 hex chars> format.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// APIResponse mirrors the gateway's delivery/http.Response envelope.
type APIResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var apiResp APIResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return nil, fmt.Errorf("gateway returned non-JSON response (status %d): %s", resp.StatusCode, raw)
	}
	if resp.StatusCode >= 400 {
		return &apiResp, fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, apiResp.Error)
	}
	return &apiResp, nil
}

// Health calls GET /gw/health.
func (c *Client) Health(ctx context.Context) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/gw/health", nil)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

// DM issues an arbitrary method/path call through the SAP DM proxy
// route. body may be nil.
func (c *Client) DM(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	return c.proxyRequest(ctx, "/gw/dm"+path, method, body)
}

// Agent issues a call through the companion agent proxy route.
func (c *Client) Agent(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	return c.proxyRequest(ctx, "/gw/agent"+path, method, body)
}

func (c *Client) proxyRequest(ctx context.Context, path, method string, body []byte) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	return c.httpClient.Do(req)
}

// QueryCall is one explicit call in a POST /gw/query request.
type QueryCall struct {
	Slug    string            `json:"slug"`
	Params  map[string]string `json:"params,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

// QueryExplicit runs an explicit call batch through POST /gw/query.
func (c *Client) QueryExplicit(ctx context.Context, calls []QueryCall, mode string) (*APIResponse, error) {
	return c.do(ctx, http.MethodPost, "/gw/query", map[string]interface{}{
		"calls": calls,
		"mode":  mode,
	})
}

// QueryAutoResolve runs an auto-resolved slug plan through POST
// /gw/query, using the gateway's dependency-graph resolution path.
func (c *Client) QueryAutoResolve(ctx context.Context, slugs []string, queryContext map[string]string) (*APIResponse, error) {
	return c.do(ctx, http.MethodPost, "/gw/query", map[string]interface{}{
		"slugs":   slugs,
		"context": queryContext,
	})
}

// UseCase invokes a saved template via POST /gw/use-case/<slug>.
func (c *Client) UseCase(ctx context.Context, slug string, useCaseContext map[string]string) (*APIResponse, error) {
	return c.do(ctx, http.MethodPost, "/gw/use-case/"+slug, map[string]interface{}{
		"context": useCaseContext,
	})
}
