package core

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionEmailKey    = "email"
	sessionNameKey     = "name"
	sessionProviderKey = "provider"
	sessionAuthAtKey   = "authenticated_at"
	traceIDHeader      = "X-Trace-ID"
)

// AuthorizationMiddleware applies policy to every request of the group it is attached to.
func AuthorizationMiddleware(policy AuthorizationPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		authed := currentSession(c) != nil
		d := policy.Decide(authed, c.Request.URL.Path)
		switch {
		case d.Allow:
			authDecisions.WithLabelValues("allow").Inc()
			c.Next()
		case !authed:
			authDecisions.WithLabelValues("deny").Inc()
			if wantsHTML(c) {
				c.Redirect(http.StatusSeeOther, d.RedirectTarget)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      gin.H{"code": "UNAUTHORIZED", "message": "Sign in to continue."},
				"navigation": Navigation{Mode: NavigateReplace, Path: d.RedirectTarget},
			})
		default:
			authDecisions.WithLabelValues("redirect").Inc()
			c.Redirect(http.StatusSeeOther, d.RedirectTarget)
			c.Abort()
		}
	}
}

// TraceMiddleware tags each request with a trace id, reusing the caller's when present.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(traceIDHeader))
		if traceID == "" || len(traceID) > 64 {
			traceID = newTraceID()
		}
		c.Set("trace_id", traceID)
		c.Header(traceIDHeader, traceID)
		c.Next()
	}
}

func wantsHTML(c *gin.Context) bool {
	return c.Request.Method == http.MethodGet && strings.Contains(c.GetHeader("Accept"), "text/html")
}

func cookieSession(c *gin.Context) *sessions.Session {
	sessionAny, _ := c.Get(sessionCtxKey)
	sess, _ := sessionAny.(*sessions.Session)
	return sess
}

// currentSession returns the signed-in user's session, or nil for anonymous requests.
func currentSession(c *gin.Context) *Session {
	sess := cookieSession(c)
	if sess == nil {
		return nil
	}
	email, _ := sess.Values[sessionEmailKey].(string)
	if strings.TrimSpace(email) == "" {
		return nil
	}
	name, _ := sess.Values[sessionNameKey].(string)
	provider, _ := sess.Values[sessionProviderKey].(string)
	out := &Session{Email: email, Name: name, Provider: provider}
	if at, ok := sess.Values[sessionAuthAtKey].(int64); ok {
		out.AuthenticatedAt = time.Unix(at, 0).UTC()
	}
	return out
}

// storeSession rotates the cookie session and records s in it.
func storeSession(c *gin.Context, cfg Config, sess *sessions.Session, s Session) error {
	csrf := sess.Values[csrfSessionKey]
	sess.Values = map[interface{}]interface{}{}
	if csrf != nil {
		sess.Values[csrfSessionKey] = csrf
	}
	sess.Values[sessionEmailKey] = s.Email
	sess.Values[sessionNameKey] = s.Name
	sess.Values[sessionProviderKey] = s.Provider
	sess.Values[sessionAuthAtKey] = s.AuthenticatedAt.Unix()
	applySessionOptions(cfg, sess)
	return sess.Save(c.Request, c.Writer)
}

func clearSession(c *gin.Context, cfg Config, sess *sessions.Session) error {
	sess.Values = map[interface{}]interface{}{}
	applySessionOptions(cfg, sess)
	sess.Options.MaxAge = -1 // Must be set AFTER applySessionOptions to properly delete cookie
	return sess.Save(c.Request, c.Writer)
}
