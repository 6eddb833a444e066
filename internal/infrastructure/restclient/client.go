// Package restclient talks to the site document backend over HTTP.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/blocks"
	"github.com/AtRiskMedia/kendr-go/internal/domain/entities/content"
	"github.com/AtRiskMedia/kendr-go/internal/infrastructure/security"
)

const apiPrefix = "/api/v1"

// TokenSource yields the bearer token for each request.
type TokenSource func() (string, error)

// StaticToken always returns token.
func StaticToken(token string) TokenSource {
	return func() (string, error) { return token, nil }
}

// ServiceTokens signs service tokens and reuses each one for half its lifetime.
func ServiceTokens(secret string, ttl time.Duration) TokenSource {
	var mu sync.Mutex
	var token string
	var renewAt time.Time
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if token != "" && time.Now().Before(renewAt) {
			return token, nil
		}
		t, err := security.GenerateServiceToken(security.ServiceIssuer, secret, ttl)
		if err != nil {
			return "", err
		}
		token, renewAt = t, time.Now().Add(ttl/2)
		return token, nil
	}
}

type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	logger  *slog.Logger
}

// New creates a client. A nil httpClient gets a 10s timeout; a nil tokens
// sends no Authorization header.
func New(baseURL string, tokens TokenSource, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    httpClient,
		logger:  logger,
	}
}

type sitesResponse struct {
	Sites []*content.Site `json:"sites"`
}

type libraryResponse struct {
	Blocks []*content.SavedBlock `json:"blocks"`
}

type SaveToLibraryRequest struct {
	Name  string        `json:"name"`
	Block *blocks.Block `json:"block"`
}

type PreferencesRequest struct {
	Collapsed []string `json:"collapsed"`
}

func (c *Client) ListSites(ctx context.Context) ([]*content.Site, error) {
	var out sitesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/sites", nil, &out); err != nil {
		return nil, err
	}
	return out.Sites, nil
}

func (c *Client) CreateSite(ctx context.Context, name string) (*content.Site, error) {
	var out content.Site
	if err := c.doJSON(ctx, http.MethodPost, "/sites", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSite(ctx context.Context, siteID string) (*content.Site, error) {
	var out content.Site
	if err := c.doJSON(ctx, http.MethodGet, sitePath(siteID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetDocument(ctx context.Context, siteID string) (*blocks.SiteDocument, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodGet, sitePath(siteID)+"/document", nil, &out); err != nil {
		return nil, err
	}
	return blocks.DocumentFromMap(out)
}

// PutDocument replaces the whole document and returns it as persisted.
func (c *Client) PutDocument(ctx context.Context, siteID string, doc map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodPut, sitePath(siteID)+"/document", doc, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListLibrary(ctx context.Context, siteID string) ([]*content.SavedBlock, error) {
	var out libraryResponse
	if err := c.doJSON(ctx, http.MethodGet, sitePath(siteID)+"/library", nil, &out); err != nil {
		return nil, err
	}
	return out.Blocks, nil
}

func (c *Client) SaveToLibrary(ctx context.Context, siteID, name string, b *blocks.Block) (*content.SavedBlock, error) {
	var out content.SavedBlock
	req := SaveToLibraryRequest{Name: name, Block: b}
	if err := c.doJSON(ctx, http.MethodPost, sitePath(siteID)+"/library", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteLibraryBlock(ctx context.Context, siteID, id string) error {
	return c.doJSON(ctx, http.MethodDelete, sitePath(siteID)+"/library/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetPreferences(ctx context.Context, siteID, surface string) (*content.EditorPreferences, error) {
	var out content.EditorPreferences
	if err := c.doJSON(ctx, http.MethodGet, sitePath(siteID)+"/preferences/"+url.PathEscape(surface), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PutPreferences(ctx context.Context, siteID, surface string, collapsed []string) error {
	req := PreferencesRequest{Collapsed: collapsed}
	return c.doJSON(ctx, http.MethodPut, sitePath(siteID)+"/preferences/"+url.PathEscape(surface), req, nil)
}

func sitePath(siteID string) string {
	return "/sites/" + url.PathEscape(siteID)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.tokens != nil {
		token, err := c.tokens()
		if err != nil {
			return fmt.Errorf("failed to obtain bearer token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed", "method", method, "path", path, "error", err.Error())
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("Backend request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	type errorPayload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	var payload errorPayload
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	switch {
	case payload.Error != "":
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	case payload.Message != "":
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Message}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err to an *APIError, or returns nil.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	apiErr := AsAPIError(err)
	return apiErr != nil && apiErr.StatusCode == status
}
