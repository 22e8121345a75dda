package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HTTPIdentityProvider signs users in through an external OAuth/OIDC-style
// provider: it exchanges an authorization code at the token endpoint and
// verifies the id_token it gets back.
type HTTPIdentityProvider struct {
	client       *http.Client
	name         string
	tokenURL     string
	clientID     string
	clientSecret []byte
	issuer       string
	redirectURL  string
}

func NewHTTPIdentityProvider(cfg Config) *HTTPIdentityProvider {
	return &HTTPIdentityProvider{
		client:       &http.Client{Timeout: 10 * time.Second},
		name:         strings.ToLower(cfg.FederatedProvider),
		tokenURL:     cfg.FederatedTokenURL,
		clientID:     cfg.FederatedClientID,
		clientSecret: []byte(cfg.FederatedClientSecret),
		issuer:       cfg.FederatedIssuer,
		redirectURL:  cfg.FederatedRedirectURL,
	}
}

func (p *HTTPIdentityProvider) Name() string { return p.name }

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// idTokenClaims are the OIDC claims the dashboard reads.
type idTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

// Authenticate expects params["code"]; params["redirect_uri"] overrides the configured one.
func (p *HTTPIdentityProvider) Authenticate(ctx context.Context, params map[string]string) (Identity, error) {
	code := strings.TrimSpace(params["code"])
	if code == "" {
		return Identity{}, errors.New("missing authorization code")
	}
	redirect := firstNonEmpty(params["redirect_uri"], p.redirectURL)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", p.clientID)
	if redirect != "" {
		form.Set("redirect_uri", redirect)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(p.clientID, string(p.clientSecret))

	resp, err := p.client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, fmt.Errorf("read token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Identity{}, fmt.Errorf("decode token response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || tr.Error != "" {
		return Identity{}, fmt.Errorf("token endpoint status %d: %s %s", resp.StatusCode, tr.Error, tr.ErrorDesc)
	}
	if tr.IDToken == "" {
		return Identity{}, errors.New("token response has no id_token")
	}
	return p.verifyIDToken(tr.IDToken)
}

func (p *HTTPIdentityProvider) verifyIDToken(raw string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if p.clientID != "" {
		opts = append(opts, jwt.WithAudience(p.clientID))
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	claims := &idTokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return p.clientSecret, nil
	}, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("id_token: %w", err)
	}
	if !token.Valid {
		return Identity{}, errors.New("id_token is not valid")
	}
	if claims.Email != "" && !claims.EmailVerified {
		return Identity{}, errors.New("provider e-mail is not verified")
	}
	return Identity{
		Provider: p.name,
		Subject:  claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
	}, nil
}
