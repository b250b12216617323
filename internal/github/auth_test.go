package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testKeyPEM(t *testing.T) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return pemBytes, key
}

// fakeClock is a mutable clock for deterministic expiry tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func newTestAuthenticator(t *testing.T, baseURL string, clock *fakeClock) *Authenticator {
	t.Helper()
	pemBytes, _ := testKeyPEM(t)
	auth, err := NewAuthenticator(AuthConfig{
		AppID:         "12345",
		PrivateKeyPEM: pemBytes,
		BaseURL:       baseURL,
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return auth
}

func TestAppJWTClaims(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	pemBytes, key := testKeyPEM(t)
	auth, err := NewAuthenticator(AuthConfig{
		AppID:         "12345",
		PrivateKeyPEM: pemBytes,
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}

	signed, err := auth.AppJWT()
	if err != nil {
		t.Fatalf("AppJWT: %v", err)
	}

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	}, jwt.WithTimeFunc(clock.Now))
	if err != nil || !parsed.Valid {
		t.Fatalf("parse signed assertion: %v", err)
	}

	if claims.Issuer != "12345" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
	if got := clock.now.Sub(claims.IssuedAt.Time); got != assertionSkew {
		t.Errorf("issued-at backdated by %v, want %v", got, assertionSkew)
	}
	if got := claims.ExpiresAt.Time.Sub(clock.now); got != assertionTTL {
		t.Errorf("expiry %v after now, want %v", got, assertionTTL)
	}
}

func TestAccessTokenCaching(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var exchanges atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/access_tokens") {
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			t.Error("missing bearer assertion")
		}
		exchanges.Add(1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "ghs_test",
			"expires_at": clock.now.Add(time.Hour).Format(time.RFC3339),
		})
	}))
	defer ts.Close()

	auth := newTestAuthenticator(t, ts.URL, clock)
	ctx := context.Background()

	// Two calls inside the TTL: one exchange, identical token.
	first, err := auth.AccessToken(ctx, 42)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	second, err := auth.AccessToken(ctx, 42)
	if err != nil {
		t.Fatalf("AccessToken: %v", err)
	}
	if first != second || first != "ghs_test" {
		t.Errorf("tokens = %q, %q", first, second)
	}
	if got := exchanges.Load(); got != 1 {
		t.Fatalf("exchanges = %d, want 1", got)
	}

	// Jump past expiry (including the safety margin): exactly one more.
	clock.now = clock.now.Add(time.Hour)
	if _, err := auth.AccessToken(ctx, 42); err != nil {
		t.Fatalf("AccessToken after expiry: %v", err)
	}
	if got := exchanges.Load(); got != 2 {
		t.Fatalf("exchanges = %d, want 2", got)
	}
}

func TestAccessTokenSafetyMargin(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var exchanges atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges.Add(1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "ghs_test",
			"expires_at": clock.now.Add(2 * time.Minute).Format(time.RFC3339),
		})
	}))
	defer ts.Close()

	auth := newTestAuthenticator(t, ts.URL, clock)
	ctx := context.Background()

	auth.AccessToken(ctx, 42)
	// 90s in: still inside the provider TTL (2m) but past TTL minus the
	// safety margin, so the cached token is treated as expired.
	clock.now = clock.now.Add(90 * time.Second)
	auth.AccessToken(ctx, 42)

	if got := exchanges.Load(); got != 2 {
		t.Fatalf("exchanges = %d, want 2", got)
	}
}

func TestAccessTokenPerInstallation(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "token-for-" + strings.Split(r.URL.Path, "/")[3],
			"expires_at": clock.now.Add(time.Hour).Format(time.RFC3339),
		})
	}))
	defer ts.Close()

	auth := newTestAuthenticator(t, ts.URL, clock)
	ctx := context.Background()

	a, _ := auth.AccessToken(ctx, 1)
	b, _ := auth.AccessToken(ctx, 2)
	if a == b {
		t.Errorf("installations share a token: %q", a)
	}
}

func TestAccessTokenExchangeFailure(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "bad credentials"})
	}))
	defer ts.Close()

	auth := newTestAuthenticator(t, ts.URL, clock)

	_, err := auth.AccessToken(context.Background(), 42)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("err = %v, want AuthError", err)
	}
}

func TestNewAuthenticatorMissingCredentials(t *testing.T) {
	var authErr *AuthError

	_, err := NewAuthenticator(AuthConfig{PrivateKeyPEM: []byte("x")})
	if !errors.As(err, &authErr) {
		t.Errorf("missing app ID: %v", err)
	}

	_, err = NewAuthenticator(AuthConfig{AppID: "1"})
	if !errors.As(err, &authErr) {
		t.Errorf("missing key: %v", err)
	}

	_, err = NewAuthenticator(AuthConfig{AppID: "1", PrivateKeyPEM: []byte("not a key")})
	if !errors.As(err, &authErr) {
		t.Errorf("bad key: %v", err)
	}
}
