package stm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mtlrider/stm-live/config"
)

// expirySafetyMargin is subtracted from expires_in to cover clock skew and
// in-flight request latency.
const expirySafetyMargin = 60 * time.Second

// AuthError reports a failed credential fetch or refresh. It is the one
// upstream failure that propagates instead of degrading to an empty result.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "stm auth: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// TokenSource caches a single bearer token for the authority API, re-issuing
// it once the cached value reaches its safety-adjusted expiry. On any fetch
// failure the slot is cleared first, so a retry never reuses a poisoned
// token.
type TokenSource struct {
	authURL      string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	log          *zap.Logger
	metrics      Metrics
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenSource(cfg config.STMConfig, timeout time.Duration, log *zap.Logger, m Metrics) *TokenSource {
	return &TokenSource{
		authURL:      cfg.AuthURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log,
		metrics:      m,
		now:          time.Now,
	}
}

// Token returns the cached token while it is still valid, otherwise issues a
// client-credentials request. The mutex doubles as single-flight for
// concurrent callers; observable behavior matches independent refreshes.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Before(ts.expiresAt) {
		return ts.token, nil
	}
	ts.token = ""
	ts.expiresAt = time.Time{}

	if ts.metrics != nil {
		ts.metrics.TokenRefreshInc()
	}
	token, expiresIn, err := ts.fetch(ctx)
	if err != nil {
		ts.log.Warn("token refresh failed", zap.Error(err))
		return "", &AuthError{Err: err}
	}
	ts.token = token
	ts.expiresAt = ts.now().Add(time.Duration(expiresIn)*time.Second - expirySafetyMargin)
	return ts.token, nil
}

func (ts *TokenSource) fetch(ctx context.Context) (string, int64, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", ts.clientID)
	form.Set("client_secret", ts.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", 0, fmt.Errorf("HTTP %d from auth endpoint", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return "", 0, fmt.Errorf("auth response missing access_token")
	}
	return body.AccessToken, body.ExpiresIn, nil
}
