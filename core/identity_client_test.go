package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClientSecret = "provider-shared-secret"

func signIDToken(t *testing.T, secret string, claims idTokenClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func validClaims() idTokenClaims {
	return idTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1234567890",
			Issuer:    "https://accounts.example.com",
			Audience:  jwt.ClaimStrings{"dashboard"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email:         "someone@example.com",
		EmailVerified: true,
		Name:          "Someone",
	}
}

func newTokenServer(t *testing.T, idToken string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "dashboard" || pass != testClientSecret {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_client"})
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "authorization_code" || r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "at", "id_token": idToken, "token_type": "Bearer"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(tokenURL string) *HTTPIdentityProvider {
	return NewHTTPIdentityProvider(Config{
		FederatedProvider:     "Google",
		FederatedTokenURL:     tokenURL,
		FederatedClientID:     "dashboard",
		FederatedClientSecret: testClientSecret,
		FederatedIssuer:       "https://accounts.example.com",
	})
}

func TestHTTPIdentityProvider_Authenticate(t *testing.T) {
	srv := newTokenServer(t, signIDToken(t, testClientSecret, validClaims()), http.StatusOK)
	p := testProvider(srv.URL)
	assert.Equal(t, "google", p.Name())

	id, err := p.Authenticate(context.Background(), map[string]string{"code": "good-code"})
	require.NoError(t, err)
	assert.Equal(t, Identity{Provider: "google", Subject: "1234567890", Email: "someone@example.com", Name: "Someone"}, id)
}

func TestHTTPIdentityProvider_Rejects(t *testing.T) {
	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongAud := validClaims()
	wrongAud.Audience = jwt.ClaimStrings{"someone-else"}
	unverified := validClaims()
	unverified.EmailVerified = false

	cases := map[string]string{
		"wrong signature": signIDToken(t, "another-secret", validClaims()),
		"expired":         signIDToken(t, testClientSecret, expired),
		"wrong audience":  signIDToken(t, testClientSecret, wrongAud),
		"unverified":      signIDToken(t, testClientSecret, unverified),
		"empty":           "",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newTokenServer(t, token, http.StatusOK)
			_, err := testProvider(srv.URL).Authenticate(context.Background(), map[string]string{"code": "good-code"})
			assert.Error(t, err)
		})
	}
}

func TestHTTPIdentityProvider_TokenEndpointErrors(t *testing.T) {
	srv := newTokenServer(t, "unused", http.StatusOK)
	p := testProvider(srv.URL)

	_, err := p.Authenticate(context.Background(), map[string]string{})
	assert.ErrorContains(t, err, "missing authorization code")

	_, err = p.Authenticate(context.Background(), map[string]string{"code": "bad-code"})
	assert.ErrorContains(t, err, "invalid_grant")
}

func TestHTTPIdentityProvider_ThroughSessionGate(t *testing.T) {
	srv := newTokenServer(t, signIDToken(t, testClientSecret, validClaims()), http.StatusOK)
	g := NewSessionGate(&memUserStore{}, BcryptVerifier{}, testProvider(srv.URL))

	s, err := g.SignIn(context.Background(), SignInRequest{Provider: "google", Params: map[string]string{"code": "good-code"}})
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", s.Email)

	_, err = g.SignIn(context.Background(), SignInRequest{Provider: "google", Params: map[string]string{"code": "bad-code"}})
	assert.ErrorIs(t, err, ErrProviderFailure)
}
