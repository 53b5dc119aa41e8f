package upload

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harrylevesque/scanrelay/internal/models"
)

const (
	// DefaultEndpoint is where scan results go unless the station is pointed elsewhere.
	DefaultEndpoint = "https://solid-shining-scorpion.ngrok-free.app/api/handle-scan"
	// FormField is the single form field carrying the decoded text.
	FormField      = "scanResult"
	ContentType    = "application/x-www-form-urlencoded"
	DefaultTimeout = 15 * time.Second
)

// StatusError reports a response other than 200 OK.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

// TransportError wraps any failure below the HTTP status layer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Client posts decoded text to a fixed endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	timeout  time.Duration
	logger   *zap.Logger
}

type Option func(*Client)

// WithHTTPClient sends through hc. The client is shared, never modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each Send. Zero or less keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client for endpoint. An empty endpoint means DefaultEndpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		http:     http.DefaultClient,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the URL scans are posted to.
func (c *Client) Endpoint() string { return c.endpoint }

// EncodeBody returns the request body for text: scanResult=<percent-encoded UTF-8>.
func EncodeBody(text string) string {
	return url.Values{FormField: []string{text}}.Encode()
}

// Send issues one POST for text and classifies the result. It never retries.
// The whole exchange is bounded by the client timeout.
func (c *Client) Send(ctx context.Context, text string) models.UploadOutcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(EncodeBody(text)))
	if err != nil {
		return transportFailure(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", ContentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return transportFailure(err)
	}
	defer resp.Body.Close()
	// body is not inspected, drain it so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("endpoint rejected scan", zap.Int("status", resp.StatusCode))
		return models.UploadOutcome{
			Kind:       models.OutcomeHTTPError,
			StatusCode: resp.StatusCode,
			Err:        &StatusError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)},
		}
	}
	return models.UploadOutcome{Kind: models.OutcomeSuccess, StatusCode: resp.StatusCode}
}

func transportFailure(err error) models.UploadOutcome {
	return models.UploadOutcome{Kind: models.OutcomeTransportError, Err: &TransportError{Err: err}}
}
