package dar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/aibus/dar-go/pkg/retry"
)

// Version is reported in the User-Agent header.
const Version = "0.4.0"

const (
	// DefaultMaxRetries bounds retries of idempotent and opted-in requests.
	DefaultMaxRetries = 7
	// DefaultBackoff is the wait before the first retry. It doubles after
	// each attempt.
	DefaultBackoff = 50 * time.Millisecond
	// DefaultRequestTimeout applies to connecting and to reading headers.
	DefaultRequestTimeout = 240 * time.Second
)

// Operation names passed to MetricsRecorder.
const (
	OpHTTPGet        = "http_get"
	OpHTTPPost       = "http_post"
	OpHTTPDelete     = "http_delete"
	OpInferenceChunk = "inference_chunk"
	OpWaitDataset    = "wait_dataset"
	OpWaitJob        = "wait_job"
	OpWaitDeployment = "wait_deployment"
)

// MetricsRecorder receives operation timings.
type MetricsRecorder interface {
	RecordTiming(op string, d time.Duration)
}

var errRetryableStatus = errors.New("retryable status code")

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestEntityTooLarge,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// requireHTTPS rejects any URL that is not https, except plain http on
// localhost.
func requireHTTPS(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse URL %q: %w", rawURL, err)
	}
	if u.Scheme == "https" {
		return nil
	}
	if u.Scheme == "http" && u.Hostname() == "localhost" {
		return nil
	}
	return ErrHTTPSRequired
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (r *Response) prettyBody() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Body, "", "  "); err == nil {
		return buf.String()
	}
	return string(r.Body)
}

// Session performs authenticated requests against one service instance.
// It is safe for concurrent use.
type Session struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    MetricsRecorder
	logger     *slog.Logger
	maxRetries int
	backoff    time.Duration
}

type SessionOption func(*Session)

// WithHTTPClient replaces the default client, e.g. to trust a test server.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) { s.httpClient = c }
}

// WithLogger sets the logger for the session and all clients built on it.
func WithLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithRateLimit caps the request rate. Each attempt, retries included,
// takes one token.
func WithRateLimit(perSecond float64, burst int) SessionOption {
	return func(s *Session) { s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func WithMetrics(m MetricsRecorder) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithRetryPolicy overrides the number of retries and the initial backoff.
func WithRetryPolicy(maxRetries int, backoff time.Duration) SessionOption {
	return func(s *Session) {
		s.maxRetries = maxRetries
		s.backoff = backoff
	}
}

// NewSession creates a session for the service at baseURL.
// It fails with ErrHTTPSRequired for non-https URLs.
func NewSession(baseURL string, tokens TokenSource, opts ...SessionOption) (*Session, error) {
	if err := requireHTTPS(baseURL); err != nil {
		return nil, err
	}
	s := &Session{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: defaultHTTPClient(),
		logger:     slog.Default(),
		maxRetries: DefaultMaxRetries,
		backoff:    DefaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewSessionFromServiceKey creates a session authenticated with the key's
// client credentials.
func NewSessionFromServiceKey(key ServiceKey, opts ...SessionOption) (*Session, error) {
	tokens, err := key.TokenSource()
	if err != nil {
		return nil, err
	}
	return NewSession(key.URL, tokens, opts...)
}

func defaultHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: DefaultRequestTimeout}).DialContext
	transport.ResponseHeaderTimeout = DefaultRequestTimeout
	return &http.Client{Transport: transport}
}

// BaseURL returns the service root without a trailing slash.
func (s *Session) BaseURL() string { return s.baseURL }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

func (s *Session) record(op string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordTiming(op, d)
	}
}

// Get fetches endpoint, retrying transient failures.
func (s *Session) Get(ctx context.Context, endpoint string) (*Response, error) {
	return s.do(ctx, http.MethodGet, s.baseURL+endpoint, nil, "", true)
}

// Delete removes endpoint, retrying transient failures.
func (s *Session) Delete(ctx context.Context, endpoint string) (*Response, error) {
	return s.do(ctx, http.MethodDelete, s.baseURL+endpoint, nil, "", true)
}

// Post sends payload as JSON. POST is not idempotent in general, so it is
// retried only when retry is true.
func (s *Session) Post(ctx context.Context, endpoint string, payload any, retry bool) (*Response, error) {
	return s.PostURL(ctx, s.baseURL+endpoint, payload, retry)
}

// PostURL is Post against an absolute URL. The URL must pass the same HTTPS
// check as the session base URL.
func (s *Session) PostURL(ctx context.Context, rawURL string, payload any, retry bool) (*Response, error) {
	if err := requireHTTPS(rawURL); err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return s.do(ctx, http.MethodPost, rawURL, bytes.NewReader(body), "application/json", retry)
}

// PostData streams data as the request body. A stream cannot be replayed,
// so the request is never retried.
func (s *Session) PostData(ctx context.Context, endpoint string, data io.Reader) (*Response, error) {
	return s.do(ctx, http.MethodPost, s.baseURL+endpoint, data, "application/octet-stream", false)
}

func opFor(method string) string {
	switch method {
	case http.MethodGet:
		return OpHTTPGet
	case http.MethodDelete:
		return OpHTTPDelete
	}
	return OpHTTPPost
}

func (s *Session) do(ctx context.Context, method, rawURL string, body io.Reader, contentType string, allowRetry bool) (*Response, error) {
	// A bytes.Reader is rewound for every attempt; other readers are used once.
	seeker, replayable := body.(*bytes.Reader)

	attempt := func() (*Response, error) {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}
		if replayable {
			if _, err := seeker.Seek(0, io.SeekStart); err != nil {
				return nil, fmt.Errorf("rewind body: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("get token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("User-Agent", "DAR-SDK go/"+Version)
		req.Header.Set("Accept", "application/json;charset=UTF-8")
		req.Header.Set("X-Correlation-Id", uuid.NewString())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		start := time.Now()
		resp, err := s.httpClient.Do(req)
		s.record(opFor(method), time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Debug("request failed", "method", method, "url", rawURL, "error", err)
			return nil, retry.Retryable(fmt.Errorf("%s %s: %w", method, rawURL, err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, retry.Retryable(fmt.Errorf("read response: %w", err))
		}
		r := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
		if retryableStatus(resp.StatusCode) {
			s.logger.Debug("retryable response", "method", method, "url", rawURL, "status", resp.StatusCode)
			return r, retry.Retryable(errRetryableStatus)
		}
		return r, nil
	}

	backoff := retry.Limited(0, nil)
	if allowRetry {
		backoff = retry.Limited(s.maxRetries, retry.ExponentialBackoff(s.backoff, 2))
	}

	resp, err := retry.Blocking(ctx, backoff, attempt)
	if err != nil && !(errors.Is(err, errRetryableStatus) && resp != nil) {
		return nil, err
	}
	if resp.StatusCode > 299 {
		httpErr := newHTTPError(method, rawURL, resp)
		s.logger.Debug("request returned error status", "method", method, "url", rawURL,
			"status", resp.StatusCode, "correlation_id", httpErr.CorrelationID)
		return nil, httpErr
	}
	return resp, nil
}
