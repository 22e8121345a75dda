package core

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

// UserStore looks up dashboard users by e-mail.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
}

// FederatedProvider authenticates a user with an external identity service.
// The exchange itself is opaque to the gate.
type FederatedProvider interface {
	Name() string
	Authenticate(ctx context.Context, params map[string]string) (Identity, error)
}

// SignInThrottle limits repeated failed credential attempts.
type SignInThrottle interface {
	Allow(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// SignInRequest is the discriminated sign-in payload. Provider selects between
// credentials (empty or "credentials") and a named federated provider.
type SignInRequest struct {
	Provider string            `form:"provider" json:"provider"`
	Email    string            `form:"email" json:"email"`
	Password string            `form:"password" json:"password"`
	Params   map[string]string `form:"-" json:"params,omitempty"`
}

type credentialsForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// SessionGate turns a sign-in request into a Session or a classified *AuthError.
type SessionGate struct {
	users     UserStore
	verifier  CredentialVerifier
	providers map[string]FederatedProvider
	throttle  SignInThrottle
	now       func() time.Time
}

// NewSessionGate wires the credential path. Federated providers and a throttle are optional.
func NewSessionGate(users UserStore, verifier CredentialVerifier, providers ...FederatedProvider) *SessionGate {
	g := &SessionGate{
		users:     users,
		verifier:  verifier,
		providers: make(map[string]FederatedProvider, len(providers)),
		now:       time.Now,
	}
	for _, p := range providers {
		if p != nil {
			g.providers[strings.ToLower(p.Name())] = p
		}
	}
	return g
}

// WithThrottle enables failed-attempt limiting for credential sign-ins.
func (g *SessionGate) WithThrottle(t SignInThrottle) *SessionGate {
	g.throttle = t
	return g
}

// Providers lists the configured federated provider names.
func (g *SessionGate) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	return names
}

// SignIn authenticates req. Classified failures are *AuthError; any other
// error (store outage, cancelled context) is returned unmodified.
func (g *SessionGate) SignIn(ctx context.Context, req SignInRequest) (Session, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" || provider == CredentialsProvider {
		return g.signInWithCredentials(ctx, req)
	}
	p, ok := g.providers[provider]
	if !ok {
		return Session{}, newAuthError(AuthInvalidInput, errors.New("unknown provider "+provider))
	}
	return g.signInFederated(ctx, p, req.Params)
}

func (g *SessionGate) signInWithCredentials(ctx context.Context, req SignInRequest) (Session, error) {
	form := credentialsForm{Email: strings.TrimSpace(req.Email), Password: req.Password}
	if err := validate.Struct(form); err != nil {
		return Session{}, newAuthError(AuthInvalidInput, nil)
	}
	email := strings.ToLower(form.Email)

	if g.throttle != nil {
		allowed, err := g.throttle.Allow(ctx, email)
		if err != nil {
			return Session{}, err
		}
		if !allowed {
			return Session{}, newAuthError(AuthThrottled, nil)
		}
	}

	user, err := g.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return Session{}, err
	}

	hash := dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	matched := g.verifier.Verify(form.Password, hash)
	if user == nil || !matched {
		if g.throttle != nil {
			if err := g.throttle.Fail(ctx, email); err != nil {
				log.Printf("[signin] throttle record failed: %v", err)
			}
		}
		return Session{}, newAuthError(AuthInvalidCredentials, nil)
	}

	if g.throttle != nil {
		if err := g.throttle.Reset(ctx, email); err != nil {
			log.Printf("[signin] throttle reset failed: %v", err)
		}
	}
	return Session{
		Email:           user.Email,
		Name:            user.Name,
		Provider:        CredentialsProvider,
		AuthenticatedAt: g.now().UTC(),
	}, nil
}

func (g *SessionGate) signInFederated(ctx context.Context, p FederatedProvider, params map[string]string) (Session, error) {
	id, err := p.Authenticate(ctx, params)
	if err != nil {
		return Session{}, newAuthError(AuthProviderFailure, err)
	}
	if strings.TrimSpace(id.Email) == "" && strings.TrimSpace(id.Subject) == "" {
		return Session{}, newAuthError(AuthProviderFailure, errors.New("provider returned an empty identity"))
	}
	email := id.Email
	if email == "" {
		email = id.Subject
	}
	return Session{
		Email:           strings.ToLower(email),
		Name:            id.Name,
		Provider:        p.Name(),
		AuthenticatedAt: g.now().UTC(),
	}, nil
}
