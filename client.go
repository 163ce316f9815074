package sigverifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPClient implements Client over the JSON API. It is safe for concurrent
// use; the session token is shared between calls.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Option configures an HTTPClient
type Option func(*HTTPClient)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.httpClient = c }
}

// WithSessionToken resumes an existing session
func WithSessionToken(token string) Option {
	return func(h *HTTPClient) { h.token = token }
}

// NewHTTPClient creates a client for the service at baseURL
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionToken returns the token of the current session, if any
func (c *HTTPClient) SessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *HTTPClient) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Message    string          `json:"message"`
	RetryAfter int             `json:"retryAfter"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, withToken bool, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withToken {
		if token := c.SessionToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode %d response: %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.Success {
		return &APIError{
			StatusCode: resp.StatusCode,
			Code:       env.Error,
			Message:    env.Message,
			RetryAfter: env.RetryAfter,
		}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	return nil
}

// VerifySignature implements Client
func (c *HTTPClient) VerifySignature(ctx context.Context, message, signature, expectedSigner string) (VerificationResult, error) {
	var result VerificationResult
	err := c.do(ctx, http.MethodPost, "/api/auth/verify-signature", map[string]string{
		"message":        message,
		"signature":      signature,
		"expectedSigner": expectedSigner,
	}, false, &result)
	return result, err
}

// CreateSession implements Client
func (c *HTTPClient) CreateSession(ctx context.Context, message, signature, walletAddress string) (Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/api/auth/session", map[string]string{
		"message":       message,
		"signature":     signature,
		"walletAddress": walletAddress,
	}, false, &session)
	if err != nil {
		return Session{}, err
	}

	c.setToken(session.SessionToken)
	return session, nil
}

// GetSession implements Client
func (c *HTTPClient) GetSession(ctx context.Context) (Session, error) {
	if c.SessionToken() == "" {
		return Session{}, ErrNoSession
	}

	var session Session
	err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, true, &session)
	return session, err
}

// DestroySession implements Client. The stored token is dropped even when
// the call fails.
func (c *HTTPClient) DestroySession(ctx context.Context) error {
	defer c.setToken("")
	return c.do(ctx, http.MethodDelete, "/api/auth/session", nil, true, nil)
}

var _ Client = (*HTTPClient)(nil)
