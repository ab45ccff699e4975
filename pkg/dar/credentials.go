package dar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// tokenExpiryMargin is subtracted from the server-reported lifetime so a
// token is never used right before it expires.
const tokenExpiryMargin = 300 * time.Second

// TokenSource supplies bearer tokens for requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type staticToken string

func (t staticToken) Token(context.Context) (string, error) { return string(t), nil }

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource { return staticToken(token) }

// ServiceKey is the credential document issued for a service instance.
// JSON is valid YAML, so both encodings parse.
type ServiceKey struct {
	URL string `json:"url" yaml:"url"`
	UAA struct {
		ClientID     string `json:"clientid" yaml:"clientid"`
		ClientSecret string `json:"clientsecret" yaml:"clientsecret"`
		URL          string `json:"url" yaml:"url"`
	} `json:"uaa" yaml:"uaa"`
}

// ParseServiceKey decodes a service key in JSON or YAML form.
func ParseServiceKey(data []byte) (ServiceKey, error) {
	var key ServiceKey
	if err := yaml.Unmarshal(data, &key); err != nil {
		return ServiceKey{}, fmt.Errorf("parse service key: %w", err)
	}
	if key.URL == "" {
		return ServiceKey{}, fmt.Errorf("parse service key: missing url")
	}
	if key.UAA.URL == "" || key.UAA.ClientID == "" {
		return ServiceKey{}, fmt.Errorf("parse service key: missing uaa credentials")
	}
	return key, nil
}

// TokenSource returns an OnlineTokenSource for the key's UAA credentials.
func (k ServiceKey) TokenSource(opts ...TokenOption) (*OnlineTokenSource, error) {
	return NewOnlineTokenSource(k.UAA.URL, k.UAA.ClientID, k.UAA.ClientSecret, opts...)
}

// OnlineTokenSource fetches tokens with the OAuth client credentials grant
// and caches them until shortly before expiry.
type OnlineTokenSource struct {
	url          string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type TokenOption func(*OnlineTokenSource)

// WithTokenHTTPClient sets the client used to reach the token endpoint.
func WithTokenHTTPClient(c *http.Client) TokenOption {
	return func(s *OnlineTokenSource) { s.httpClient = c }
}

// WithTokenClock overrides the time source used for expiry checks.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *OnlineTokenSource) { s.now = now }
}

func NewOnlineTokenSource(uaaURL, clientID, clientSecret string, opts ...TokenOption) (*OnlineTokenSource, error) {
	if err := requireHTTPS(uaaURL); err != nil {
		return nil, err
	}
	s := &OnlineTokenSource{
		url:          strings.TrimRight(uaaURL, "/") + "/oauth/token?grant_type=client_credentials",
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   http.DefaultClient,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

func (s *OnlineTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt) {
		return s.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode > 299 {
		return "", newHTTPError(http.MethodGet, s.url, &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body})
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response did not contain an access token")
	}

	s.token = tr.AccessToken
	s.expiresAt = s.now().Add(time.Duration(tr.ExpiresIn)*time.Second - tokenExpiryMargin)
	return s.token, nil
}
