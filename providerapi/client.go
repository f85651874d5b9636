// Package providerapi is a client for the storage provider's management API.
//
// It covers the calls the URL resolver needs: reading and enabling the
// bucket's managed development domain and reading custom domain status.
// Every response is a JSON envelope carrying a success flag and either a
// result or a list of errors.
package providerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/input-output-hk/catalyst-forge-libs/s3sync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/s3sync/metrics"
)

// DefaultBaseURL is the public management API root.
const DefaultBaseURL = "https://api.cloudflare.com/client/v4"

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// slogLogger implements the retryablehttp.LeveledLogger interface
type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Error(msg string, keysAndValues ...interface{}) {
	s.l.Error(msg, keysAndValues...)
}

func (s *slogLogger) Info(msg string, keysAndValues ...interface{}) {
	s.l.Debug(msg, keysAndValues...)
}

func (s *slogLogger) Debug(msg string, keysAndValues ...interface{}) {
	s.l.Debug(msg, keysAndValues...)
}

func (s *slogLogger) Warn(msg string, keysAndValues ...interface{}) {
	s.l.Warn(msg, keysAndValues...)
}

// Client represents a management API client bound to one account.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	accountID  string
	logger     *slog.Logger
}

type clientConfig struct {
	baseURL      string
	httpClient   *http.Client
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) {
		c.baseURL = u
	}
}

// WithHTTPClient sets the client the retrying transport wraps.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// WithRetry sets the retry budget and the backoff bounds.
// Default is 3 retries between 200ms and 2s.
func WithRetry(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *clientConfig) {
		c.retryMax = retryMax
		c.retryWaitMin = waitMin
		c.retryWaitMax = waitMax
	}
}

// WithLogger sets the logger. Default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// New creates a client authenticating with a bearer token.
func New(token, accountID string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.NewError("providerapi", errors.ErrInvalidInput).WithMessage("api token is required")
	}
	if accountID == "" {
		return nil, errors.NewError("providerapi", errors.ErrInvalidInput).WithMessage("account id is required")
	}

	cfg := &clientConfig{
		baseURL:      DefaultBaseURL,
		retryMax:     3,
		retryWaitMin: 200 * time.Millisecond,
		retryWaitMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "providerapi")

	// Wrap with retry logic
	retryClient := retryablehttp.NewClient()
	if cfg.httpClient != nil {
		retryClient.HTTPClient = cfg.httpClient
	}
	retryClient.RetryMax = cfg.retryMax
	retryClient.RetryWaitMin = cfg.retryWaitMin
	retryClient.RetryWaitMax = cfg.retryWaitMax
	retryClient.Logger = &slogLogger{l: logger}
	// Hand the last response back so error envelopes can be decoded.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    strings.TrimSuffix(cfg.baseURL, "/"),
		token:      strings.TrimSpace(token),
		accountID:  accountID,
		logger:     logger,
	}, nil
}

// AccountID returns the account the client is bound to.
func (c *Client) AccountID() string {
	return c.accountID
}

// APIError is one entry of an envelope's error list.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e APIError) String() string {
	if e.Message == "" {
		return fmt.Sprintf("error code: %d", e.Code)
	}
	return e.Message
}

type envelope struct {
	Success  bool            `json:"success"`
	Result   json.RawMessage `json:"result"`
	Errors   []APIError      `json:"errors"`
	Messages []any           `json:"messages"`
}

func (e *envelope) errorText() string {
	if len(e.Errors) == 0 {
		return "unknown api error"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, apiErr := range e.Errors {
		parts = append(parts, apiErr.String())
	}
	return strings.Join(parts, ", ")
}

func (c *Client) bucketPath(bucket, suffix string) string {
	return fmt.Sprintf("/accounts/%s/r2/buckets/%s/domains/%s",
		url.PathEscape(c.accountID), url.PathEscape(bucket), suffix)
}

// do performs an authenticated request and decodes the envelope's result
// into out.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) (err error) {
	start := time.Now()
	defer func() { metrics.Get().ObserveRequest("provider."+op, start, err) }()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.NewError(op, errors.Kind(errors.ErrProviderAPI, err))
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.NewError(op, errors.Kind(errors.ErrProviderAPI, err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("api call failed", "op", op, "method", method, "error", err)
		return errors.NewError(op, errors.Kind(errors.ErrProviderAPI, errors.Network(err)))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewError(op, errors.Kind(errors.ErrProviderAPI, errors.Network(err)))
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(raw))
		if decodeErr == nil && len(env.Errors) > 0 {
			detail = env.errorText()
		}
		if len(detail) > maxErrorBody {
			detail = detail[:maxErrorBody]
		}
		c.logger.Warn("api returned error status", "op", op, "status", resp.StatusCode)
		return errors.NewError(op, errors.Kind(errors.ErrProviderAPI,
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, detail)))
	}
	if decodeErr != nil {
		return errors.NewError(op, errors.Kind(errors.ErrProviderAPI, decodeErr)).
			WithMessage("decode response")
	}
	if !env.Success {
		return errors.NewError(op, errors.Kind(errors.ErrProviderAPI, fmt.Errorf("%s", env.errorText())))
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return errors.NewError(op, errors.Kind(errors.ErrProviderAPI, err)).
				WithMessage("decode result")
		}
	}
	return nil
}
