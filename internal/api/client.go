// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api is the HTTP transport for the AuroraX API. It attaches the
// API key, retries idempotent requests on transient failures, and maps HTTP
// outcomes onto the error taxonomy in pkg/types.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/aurorax-go/internal/httputil"
	"github.com/pdiddy/aurorax-go/pkg/types"
)

// APIKeyHeader carries the API key on authenticated requests.
const APIKeyHeader = "x-aurorax-api-key"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Endpoint paths relative to the base URL.
const (
	PathEphemerisSearch     = "/api/v1/ephemeris/search"
	PathEphemerisRequest    = "/api/v1/ephemeris/requests/%s"
	PathConjunctionSearch   = "/api/v1/conjunctions/search"
	PathConjunctionRequest  = "/api/v1/conjunctions/requests/%s"
	PathDataProductSearch   = "/api/v1/data_products/search"
	PathDataProductRequest  = "/api/v1/data_products/requests/%s"
	PathDescribeConjunction = "/api/v1/utils/describe/query/conjunction"
	PathDataSources         = "/api/v1/data_sources"
	PathDataSourcesSearch   = "/api/v1/data_sources/search"
	PathDataSource          = "/api/v1/data_sources/%d"
	PathEphemerisUpload     = "/api/v1/data_sources/%d/ephemeris"
	PathAvailability        = "/api/v1/availability/%s"
)

// Client issues requests against one AuroraX deployment. It is safe for
// concurrent use; it holds no per-request state.
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	maxRetries int
	httpClient *http.Client
	log        *zap.Logger
	metrics    *Metrics
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. The client's Timeout is
// kept as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for retry and request diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics instruments every request with the given collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New creates a Client from cfg. Zero fields in cfg take their defaults.
func New(cfg types.ClientConfig, opts ...Option) *Client {
	cfg = cfg.WithDefaults()
	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics != nil {
		hc := *c.httpClient
		rt := hc.Transport
		if rt == nil {
			rt = http.DefaultTransport
		}
		hc.Transport = c.metrics.instrument(rt)
		c.httpClient = &hc
	}
	c.log = c.log.Named("api")
	return c
}

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Logger returns the client's logger.
func (c *Client) Logger() *zap.Logger { return c.log }

// HasAPIKey reports whether requests will carry an API key.
func (c *Client) HasAPIKey() bool { return c.apiKey != "" }

// URL resolves a path against the base URL. Absolute URLs are returned
// unchanged.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// RequestURL returns the status URL for a request ID under the given
// request path template (one of the Path*Request constants).
func (c *Client) RequestURL(template, requestID string) string {
	return c.URL(fmt.Sprintf(template, requestID))
}

// Get issues a GET to path with query params and decodes a JSON response
// into out. out may be nil to discard the body.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.URL(path)
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + params.Encode()
	}
	resp, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp.Body, out)
}

// Post issues a POST with a JSON body and decodes the JSON response into
// out. POST requests are never retried.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	resp, err := c.do(ctx, http.MethodPost, c.URL(path), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp.Body, out)
}

// Submit posts a search query and returns the request URL from the
// Location header of the 202 Accepted response.
func (c *Client) Submit(ctx context.Context, path string, query any) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, c.URL(path), query)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", &types.RemoteError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodPost,
			URL:        c.URL(path),
			Message:    "expected 202 Accepted for search submission",
		}
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", &types.ParseError{Index: -1, Field: "Location", Err: errors.New("missing Location header on 202 response")}
	}
	return c.URL(loc), nil
}

// GetStatus fetches the status document at a request URL.
func (c *Client) GetStatus(ctx context.Context, requestURL string) (types.RequestStatus, error) {
	var st types.RequestStatus
	if err := c.Get(ctx, requestURL, nil, &st); err != nil {
		return types.RequestStatus{}, err
	}
	return st, nil
}

// Page selects a window of result records.
type Page struct {
	Offset int
	Limit  int
}

// resultEnvelope wraps the records served at a data URL.
type resultEnvelope struct {
	Result []json.RawMessage `json:"result"`
}

// GetResults fetches one page of raw result records from a data URL. When
// responseFormat is non-nil the records are requested with a POST carrying
// the format, which returns the whole result set and ignores page.
func (c *Client) GetResults(ctx context.Context, dataURL string, page Page, responseFormat map[string]any) ([]json.RawMessage, error) {
	var env resultEnvelope
	if responseFormat != nil {
		if err := c.Post(ctx, dataURL, responseFormat, &env); err != nil {
			return nil, err
		}
		return env.Result, nil
	}

	params := url.Values{}
	if page.Limit > 0 {
		params.Set("offset", strconv.Itoa(page.Offset))
		params.Set("limit", strconv.Itoa(page.Limit))
	}
	if err := c.Get(ctx, dataURL, params, &env); err != nil {
		return nil, err
	}
	return env.Result, nil
}

// Cancel asks the API to cancel the request at requestURL. The API
// processes cancellation asynchronously.
func (c *Client) Cancel(ctx context.Context, requestURL string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.URL(requestURL), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// do sends one logical request and converts transport failures and
// non-2xx statuses into typed errors. On success the caller owns the body.
func (c *Client) do(ctx context.Context, method, rawURL string, body any) (*http.Response, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(payload)), nil
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	c.log.Debug("request", zap.String("method", method), zap.String("url", rawURL))

	var onRetry func(int)
	if c.metrics != nil {
		onRetry = func(int) { c.metrics.retries.Inc() }
	}
	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries, c.log, onRetry)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		attempts := 1
		var ae *httputil.AttemptError
		if errors.As(err, &ae) {
			attempts = ae.Attempts
		}
		return nil, &types.NetworkError{Method: method, URL: rawURL, Attempts: attempts, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, remoteError(resp, method, rawURL)
}

// apiErrorBody is the error document the API returns with 4xx/5xx.
type apiErrorBody struct {
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func remoteError(resp *http.Response, method, rawURL string) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	re := &types.RemoteError{StatusCode: resp.StatusCode, Method: method, URL: rawURL}

	var body apiErrorBody
	if json.Unmarshal(data, &body) == nil && (body.ErrorCode != "" || body.ErrorMessage != "") {
		re.Code = body.ErrorCode
		re.Message = body.ErrorMessage
	} else if msg := strings.TrimSpace(string(data)); msg != "" {
		if len(msg) > 200 {
			msg = msg[:197] + "..."
		}
		re.Message = msg
	}
	return re
}

func decode(r io.Reader, out any) error {
	if out == nil {
		io.Copy(io.Discard, r)
		return nil
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return &types.ParseError{Index: -1, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
