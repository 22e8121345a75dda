package core

import (
	"errors"
	"fmt"
	"time"
)

// CredentialsProvider is the sign-in provider name for e-mail + password.
const CredentialsProvider = "credentials"

// User is a dashboard account as read from the users table.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
}

// Session is what a successful sign-in hands to the HTTP layer for storage.
type Session struct {
	Email           string    `json:"email"`
	Name            string    `json:"name,omitempty"`
	Provider        string    `json:"provider"`
	AuthenticatedAt time.Time `json:"authenticated_at"`
}

// Identity is what a federated provider asserts about the signed-in person.
type Identity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

var (
	// ErrUserNotFound is returned by UserStore when no row matches.
	ErrUserNotFound = errors.New("user not found")
)

// AuthErrorKind classifies sign-in failures the gate knows how to explain.
type AuthErrorKind int

const (
	AuthInvalidInput AuthErrorKind = iota + 1
	AuthInvalidCredentials
	AuthProviderFailure
	AuthThrottled
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthInvalidInput:
		return "INVALID_INPUT"
	case AuthInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case AuthProviderFailure:
		return "PROVIDER_FAILURE"
	case AuthThrottled:
		return "TOO_MANY_ATTEMPTS"
	default:
		return "UNKNOWN"
	}
}

// AuthError is a classified sign-in failure. Errors that are not *AuthError
// come from infrastructure and are returned unmodified by SessionGate.
type AuthError struct {
	Kind  AuthErrorKind
	cause error
}

func (e *AuthError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return e.Kind.String()
}

func (e *AuthError) Unwrap() error { return e.cause }

// Message is the short text shown to the user. It never depends on the cause,
// so an unknown e-mail and a wrong password read the same.
func (e *AuthError) Message() string {
	switch e.Kind {
	case AuthInvalidCredentials:
		return "Invalid credentials."
	case AuthInvalidInput:
		return "Enter a valid e-mail and a password of at least 6 characters."
	case AuthThrottled:
		return "Too many sign-in attempts. Try again later."
	default:
		return "Something went wrong."
	}
}

// Is matches any *AuthError of the same kind, so callers can write
// errors.Is(err, ErrInvalidCredentials).
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidInput       = &AuthError{Kind: AuthInvalidInput}
	ErrInvalidCredentials = &AuthError{Kind: AuthInvalidCredentials}
	ErrProviderFailure    = &AuthError{Kind: AuthProviderFailure}
	ErrSignInThrottled    = &AuthError{Kind: AuthThrottled}
)

func newAuthError(kind AuthErrorKind, cause error) *AuthError {
	return &AuthError{Kind: kind, cause: cause}
}

// AsAuthError extracts a classified sign-in error.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
