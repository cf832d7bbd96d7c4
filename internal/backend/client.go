package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"aircall-sync/internal/domain"
	"aircall-sync/internal/observability/logger"

	"go.uber.org/zap"
)

// maxBodyBytes bounds how much of a backend response is read into memory.
const maxBodyBytes = 1 << 20

// Credentials is the part of credential.Cache the client depends on.
type Credentials interface {
	GetValid(ctx context.Context) (domain.Credential, error)
	Reject(ctx context.Context, token string)
}

// Request is one call to a backend API. Path is relative to the base URL.
type Request struct {
	Method       string
	Path         string
	Query        url.Values
	Body         interface{}
	AuthRequired bool
}

// Response is a successful (2xx) backend response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v interface{}) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Config configures a Client.
type Config struct {
	Name        string
	BaseURL     string
	HTTPClient  *http.Client
	Credentials Credentials
	// AuthScheme prefixes the token in the Authorization header ("Bearer", "Zoho-oauthtoken").
	AuthScheme string
	Timeout    time.Duration
	Logger     *logger.Logger
}

// Client executes authenticated requests against one CRM backend.
//
// A 401 invalidates the credential used, refreshes once and replays the
// request exactly once. Any other non-2xx status, network failure or timeout
// is returned as *domain.BackendError without retry.
type Client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	scheme     string
	timeout    time.Duration
	log        *logger.Logger
}

// NewClient creates a backend client.
func NewClient(cfg Config) *Client {
	c := &Client{
		name:       cfg.Name,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		creds:      cfg.Credentials,
		scheme:     cfg.AuthScheme,
		timeout:    cfg.Timeout,
		log:        cfg.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if c.scheme == "" {
		c.scheme = "Bearer"
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	return c
}

// Name returns the backend name.
func (c *Client) Name() string {
	return c.name
}

// Execute sends req and returns the 2xx response.
func (c *Client) Execute(ctx context.Context, req Request) (*Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal request body: %w", c.name, err)
		}
	}

	if !req.AuthRequired {
		status, resp, err := c.send(ctx, req, body, "")
		if err != nil {
			return nil, err
		}
		return c.checkStatus(ctx, req, status, resp)
	}

	cred, err := c.creds.GetValid(ctx)
	if err != nil {
		return nil, err
	}

	status, resp, err := c.send(ctx, req, body, cred.Token)
	if err != nil {
		return nil, err
	}
	if status != http.StatusUnauthorized {
		return c.checkStatus(ctx, req, status, resp)
	}

	c.log.Warn(ctx, "backend rejected credential, refreshing and retrying once",
		logger.Module("backend"),
		logger.Action("auth_retry"),
		logger.Backend(c.name),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
	)

	c.creds.Reject(ctx, cred.Token)
	cred, err = c.creds.GetValid(ctx)
	if err != nil {
		return nil, err
	}

	status, resp, err = c.send(ctx, req, body, cred.Token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		c.creds.Reject(ctx, cred.Token)
		c.log.Error(ctx, "backend rejected refreshed credential",
			logger.Module("backend"),
			logger.Action("auth_retry"),
			logger.Backend(c.name),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
		)
		return nil, domain.NewAuthError(c.name, domain.AuthFailureRejected, &domain.BackendError{
			Backend: c.name,
			Status:  status,
			Body:    string(resp.Body),
		})
	}
	return c.checkStatus(ctx, req, status, resp)
}

func (c *Client) checkStatus(ctx context.Context, req Request, status int, resp *Response) (*Response, error) {
	if status >= 200 && status < 300 {
		return resp, nil
	}

	c.log.Warn(ctx, "backend returned non-2xx status",
		logger.Module("backend"),
		logger.Action("execute"),
		logger.Backend(c.name),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", status),
	)
	return nil, &domain.BackendError{
		Backend: c.name,
		Status:  status,
		Body:    string(resp.Body),
	}
}

// send performs one HTTP exchange. Only transport-level failures return an error.
func (c *Client) send(ctx context.Context, req Request, body []byte, token string) (int, *Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, reader)
	if err != nil {
		return 0, nil, &domain.BackendError{Backend: c.name, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", c.scheme+" "+token)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		timeout := isTimeout(err)
		c.log.Error(ctx, "backend request failed",
			logger.Module("backend"),
			logger.Action("execute"),
			logger.Backend(c.name),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Bool("timeout", timeout),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return 0, nil, &domain.BackendError{Backend: c.name, Timeout: timeout, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, &domain.BackendError{
			Backend: c.name,
			Status:  httpResp.StatusCode,
			Timeout: isTimeout(err),
			Err:     fmt.Errorf("failed to read response: %w", err),
		}
	}

	c.log.Debug(ctx, "backend request completed",
		logger.Module("backend"),
		logger.Action("execute"),
		logger.Backend(c.name),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	return httpResp.StatusCode, &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   respBody,
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
