// Package api is the request layer for the storefront REST API.
//
// Every call gets a bearer token (unless anonymous), a per-attempt timeout,
// one automatic retry on timeout or connectivity failure, and a single
// token refresh + replay when the backend answers 401. Failures come back
// as *model.APIError so callers classify them with errors.Is.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"storefront/internal/model"
)

// service names the upstream in error messages.
const service = "storefront API"

// userAgent identifies this client to the backend.
const userAgent = "Storefront-Client/1.0"

// maxResponseBytes caps how much of a response body we read.
const maxResponseBytes = 4 << 20

// TokenSource supplies bearer tokens. Refresh obtains a new access token;
// concurrent callers share one refresh round.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
}

// Config holds request layer settings.
type Config struct {
	BaseURL   string            // e.g. http://127.0.0.1:8000/api
	Timeout   time.Duration     // per attempt; default 10s
	Retries   int               // extra attempts on transient failure; 0 = 1, negative disables
	Transport http.RoundTripper // nil uses http.DefaultTransport
}

// Client performs storefront API calls.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	retries    int
	tokens     TokenSource
	logger     *slog.Logger
}

// New creates a request layer client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("API base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	switch {
	case cfg.Retries == 0:
		cfg.Retries = 1
	case cfg.Retries < 0:
		cfg.Retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		// Deadlines come from per-attempt contexts, not Client.Timeout
		httpClient: &http.Client{Transport: cfg.Transport},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		retries:    cfg.Retries,
		logger:     logger,
	}, nil
}

// SetTokenSource installs the token provider. Must be called before any
// authenticated request; the auth session and the client reference each
// other, so this is not a constructor argument.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.tokens = ts
}

// Request describes one API call.
type Request struct {
	Method string
	Path   string // relative to the base URL, e.g. "orders/cart/"
	Body   any    // JSON-encoded when non-nil
	// Anonymous calls carry no bearer token and never trigger a refresh.
	Anonymous bool
	// Header is sent on every attempt, retries included.
	Header map[string]string
}

// Do performs req and decodes the JSON response into out (if non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	token := ""
	if !req.Anonymous && c.tokens != nil {
		token = c.tokens.AccessToken()
	}

	status, body, err := c.sendWithRetry(ctx, req, payload, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && !req.Anonymous && c.tokens != nil {
		fresh, rerr := c.tokens.Refresh(ctx)
		if rerr != nil {
			c.logger.Info("token refresh failed",
				slog.String("path", req.Path),
				slog.String("error", rerr.Error()),
			)
			// Network trouble during refresh is not proof the session is dead
			if model.IsAuthorization(rerr) || model.IsTransient(rerr) || IsCanceled(rerr) {
				return rerr
			}
			return &model.APIError{
				Code:       "UNAUTHORIZED",
				Message:    "token refresh failed",
				StatusCode: http.StatusUnauthorized,
				Err:        fmt.Errorf("%w: %v", model.ErrUnauthorized, rerr),
			}
		}
		status, body, err = c.sendWithRetry(ctx, req, payload, fresh)
		if err != nil {
			return err
		}
	}

	if status >= 400 {
		return parseErrorResponse(status, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return model.NewUpstreamError(service, fmt.Errorf("parsing response: %w", err))
	}
	return nil
}

// Get performs an authenticated GET.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path}, out)
}

// GetPublic performs an anonymous GET.
func (c *Client) GetPublic(ctx context.Context, path string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Anonymous: true}, out)
}

// Post performs an authenticated POST.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// PostPublic performs an anonymous POST.
func (c *Client) PostPublic(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Anonymous: true}, out)
}

// Patch performs an authenticated PATCH.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

// sendWithRetry sends once, then up to c.retries more times while the
// failure is transient. HTTP error statuses are not retried here.
func (c *Client) sendWithRetry(ctx context.Context, req Request, payload []byte, token string) (int, []byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		status, body, err := c.send(ctx, req, payload, token)
		if err == nil {
			return status, body, nil
		}
		lastErr = err
		if !model.IsTransient(err) {
			return 0, nil, err
		}
		if attempt < c.retries {
			c.logger.Debug("retrying request",
				slog.String("method", req.Method),
				slog.String("path", req.Path),
				slog.String("error", err.Error()),
			)
		}
	}
	return 0, nil, lastErr
}

// send performs a single HTTP exchange bounded by the per-attempt timeout.
func (c *Client) send(ctx context.Context, req Request, payload []byte, token string) (int, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, c.url(req.Path), bodyReader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	setHeaders(httpReq, token)
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Caller gave up: not ours to retry
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, model.NewTransientError(service, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		return 0, nil, model.NewTransientError(service, fmt.Errorf("reading response: %w", err))
	}

	c.logger.Debug("api request",
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
		slog.Int("size", len(body)),
		slog.String("request_id", httpReq.Header.Get("X-Request-ID")),
	)

	return resp.StatusCode, body, nil
}

func (c *Client) url(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func setHeaders(req *http.Request, token string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// errorBody covers the shapes the backend uses for errors.
type errorBody struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e errorBody) text() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Error != "":
		return e.Error
	default:
		return e.Message
	}
}

// parseErrorResponse converts a backend error status to an APIError.
func parseErrorResponse(statusCode int, body []byte) error {
	var eb errorBody
	json.Unmarshal(body, &eb) // Best effort parse

	switch statusCode {
	case 404:
		return model.NewNotFoundError("resource")
	case 401, 403:
		reason := eb.text()
		if reason == "" {
			reason = "authentication failed"
		}
		return model.NewUnauthorizedError(reason)
	case 400:
		msg := eb.text()
		if msg == "" {
			msg = "invalid request"
		}
		return model.NewValidationError("request", msg)
	case 429:
		return model.NewRateLimitError(service)
	default:
		return model.NewUpstreamError(service,
			fmt.Errorf("status %d: %s", statusCode, eb.text()))
	}
}

// IsCanceled reports whether err is a caller cancellation rather than a
// backend failure.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
