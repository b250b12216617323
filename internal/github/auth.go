// Package github implements the GitHub App integration: installation
// authentication, a retrying API client, repository import and the
// publish pipeline.
package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/siteforge/siteforge/internal/logging"
	"github.com/siteforge/siteforge/internal/metrics"
)

const (
	// Clock skew allowance on the app assertion.
	assertionSkew = 60 * time.Second
	// Assertion lifetime (GitHub caps app JWTs at 10 minutes).
	assertionTTL = 10 * time.Minute
	// Cached installation tokens are treated as expired this long before
	// the provider's own expiry.
	tokenSafetyMargin = 60 * time.Second
)

// installationToken is a cached short-lived installation credential.
// Tokens live only in process memory and are never persisted.
type installationToken struct {
	token     string
	expiresAt time.Time
}

// Authenticator mints signed app assertions and exchanges them for
// installation access tokens, caching one token per installation.
type Authenticator struct {
	appID      string
	privateKey *rsa.PrivateKey
	baseURL    string
	httpClient *http.Client
	now        func() time.Time

	mu     sync.RWMutex
	tokens map[int64]installationToken
}

// AuthConfig holds Authenticator settings.
type AuthConfig struct {
	AppID          string
	PrivateKeyPath string
	PrivateKeyPEM  []byte // takes precedence over PrivateKeyPath
	BaseURL        string // e.g. https://api.github.com
	HTTPClient     *http.Client
	Now            func() time.Time // injectable clock for tests
}

// NewAuthenticator creates an Authenticator from config.
func NewAuthenticator(cfg AuthConfig) (*Authenticator, error) {
	if cfg.AppID == "" {
		return nil, &AuthError{Message: "app ID is required"}
	}

	pemBytes := cfg.PrivateKeyPEM
	if len(pemBytes) == 0 {
		if cfg.PrivateKeyPath == "" {
			return nil, &AuthError{Message: "private key is required"}
		}
		data, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, &AuthError{Message: "read private key", Err: err}
		}
		pemBytes = data
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, &AuthError{Message: "parse private key", Err: err}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Authenticator{
		appID:      cfg.AppID,
		privateKey: key,
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		now:        now,
		tokens:     make(map[int64]installationToken),
	}, nil
}

// AppJWT builds a signed, time-boxed app assertion. Pure apart from key
// access: issued-at is backdated by the skew allowance.
func (a *Authenticator) AppJWT() (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-assertionSkew)),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(a.privateKey)
	if err != nil {
		return "", &AuthError{Message: "sign app assertion", Err: err}
	}
	return signed, nil
}

// AccessToken returns a valid installation token, serving from cache when
// possible. There is no lock held across a cache miss: concurrent misses may
// both exchange a token and the last write into the cache wins — tokens are
// idempotent credentials, not consumable resources.
func (a *Authenticator) AccessToken(ctx context.Context, installationID int64) (string, error) {
	a.mu.RLock()
	cached, ok := a.tokens[installationID]
	a.mu.RUnlock()

	if ok && a.now().Before(cached.expiresAt) {
		metrics.RecordTokenCacheHit()
		return cached.token, nil
	}

	token, expiresAt, err := a.exchange(ctx, installationID)
	if err != nil {
		metrics.RecordTokenExchange(false)
		return "", err
	}
	metrics.RecordTokenExchange(true)

	a.mu.Lock()
	a.tokens[installationID] = installationToken{
		token:     token,
		expiresAt: expiresAt.Add(-tokenSafetyMargin),
	}
	a.mu.Unlock()

	logging.Debug("installation token exchanged",
		zap.Int64("installation_id", installationID),
		zap.Time("expires_at", expiresAt))

	return token, nil
}

// exchange mints an assertion and trades it for an installation token.
func (a *Authenticator) exchange(ctx context.Context, installationID int64) (string, time.Time, error) {
	assertion, err := a.AppJWT()
	if err != nil {
		return "", time.Time{}, err
	}

	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", a.baseURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", time.Time{}, &AuthError{Message: "build token request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+assertion)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, &AuthError{Message: "token exchange request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		logging.Error("token exchange failed",
			zap.Int64("installation_id", installationID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", data))
		return "", time.Time{}, &AuthError{
			Message: fmt.Sprintf("token exchange returned %d", resp.StatusCode),
		}
	}

	var tr accessTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", time.Time{}, &AuthError{Message: "parse token response", Err: err}
	}
	if tr.Token == "" {
		return "", time.Time{}, &AuthError{Message: "token response missing token"}
	}

	return tr.Token, tr.ExpiresAt, nil
}
