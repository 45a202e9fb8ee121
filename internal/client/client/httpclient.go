package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/dialkeeper/internal/client/models"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 1 << 20

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to the platform API with HTTP basic authentication.
// It is safe for concurrent use.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client

	mu       sync.RWMutex
	username string
	password string
	hasAuth  bool
}

// NewHTTPClient builds a client for the API rooted at baseURL
// (e.g. "https://partner.voipgrid.nl/").
func NewHTTPClient(baseURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("parsing base URL: %q is not absolute", baseURL)
	}
	if u.Path == "" || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}
	return &HTTPClient{baseURL: u, http: &http.Client{Timeout: timeout}}, nil
}

func (c *HTTPClient) SetupClient(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username, c.password, c.hasAuth = username, password, true
}

func (c *HTTPClient) ClearClient() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username, c.password, c.hasAuth = "", "", false
}

func (c *HTTPClient) credentials() (string, string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username, c.password, c.hasAuth
}

// Get performs a GET against path, relative to the base URL. Transport
// failures are reported as ErrUnavailable; any HTTP status is returned in
// the Response without being treated as an error.
func (c *HTTPClient) Get(ctx context.Context, path string) (*Response, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.ResolveReference(ref).String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if username, password, ok := c.credentials(); ok {
		req.SetBasicAuth(username, password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}

	return &Response{Status: resp.StatusCode, Data: body}, nil
}

// Profile fetches and validates the profile of the authenticated user.
func (c *HTTPClient) Profile(ctx context.Context) (*models.Profile, error) {
	resp, err := c.Get(ctx, ProfilePath)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, statusError(resp)
	}

	var p models.Profile
	if err := json.Unmarshal(resp.Data, &p); err != nil {
		return nil, fmt.Errorf("%w: profile: %v", ErrBadPayload, err)
	}
	return &p, nil
}

// AutologinToken fetches a fresh portal autologin token.
func (c *HTTPClient) AutologinToken(ctx context.Context) (string, error) {
	resp, err := c.Get(ctx, AutologinTokenPath)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", statusError(resp)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Data, &body); err != nil {
		return "", fmt.Errorf("%w: autologin token: %v", ErrBadPayload, err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("%w: autologin token is empty", ErrBadPayload)
	}
	return body.Token, nil
}
