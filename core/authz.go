package core

import "strings"

const (
	// DashboardPrefix is the path namespace that requires a signed-in user.
	DashboardPrefix = "/dashboard"
	// SignInPath is where unauthenticated dashboard requests are sent.
	SignInPath = "/login"
	// InvoicesPath is the invoice list view and its cache token.
	InvoicesPath = "/dashboard/invoices"
)

// AuthDecision is the per-request outcome of AuthorizationPolicy.Decide.
// When Allow is false, RedirectTarget names where the caller must send the client.
type AuthDecision struct {
	Allow          bool
	RedirectTarget string
}

// AuthorizationPolicy maps session state and the requested path to an AuthDecision.
type AuthorizationPolicy struct {
	ProtectedPrefix string
	SignInPath      string
	LandingPath     string
}

// DefaultAuthorizationPolicy protects /dashboard and sends visitors to /login.
func DefaultAuthorizationPolicy() AuthorizationPolicy {
	return AuthorizationPolicy{
		ProtectedPrefix: DashboardPrefix,
		SignInPath:      SignInPath,
		LandingPath:     DashboardPrefix,
	}
}

// Decide evaluates the rules in order:
//  1. protected path, anonymous     -> deny, go to sign-in
//  2. protected path, signed in     -> allow
//  3. public path, signed in        -> redirect to the landing page
//  4. public path, anonymous        -> allow
func (p AuthorizationPolicy) Decide(isAuthenticated bool, requestedPath string) AuthDecision {
	onDashboard := strings.HasPrefix(requestedPath, p.ProtectedPrefix)
	switch {
	case onDashboard && !isAuthenticated:
		return AuthDecision{Allow: false, RedirectTarget: p.SignInPath}
	case onDashboard:
		return AuthDecision{Allow: true}
	case isAuthenticated:
		return AuthDecision{Allow: false, RedirectTarget: p.LandingPath}
	default:
		return AuthDecision{Allow: true}
	}
}
