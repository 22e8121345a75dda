package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionName     = "dashboard_session"
	sessionMaxAge   = 8 * 60 * 60
	sessionCtxKey   = "session"
	csrfSessionKey  = "csrf_token"
	csrfHeader      = "X-CSRF-Token"
	corsAllowHeader = "Content-Type, X-CSRF-Token, X-Trace-ID"
	corsAllowMethod = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
)

// SessionMiddleware loads the cookie session into the context. A cookie that
// no longer decodes (rotated SESSION_KEY, expired or tampered value) is
// replaced by an empty session, so the request continues anonymously.
func SessionMiddleware(cfg Config, store *sessions.CookieStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := loadSession(c, store)
		applySessionOptions(cfg, session)
		if err := session.Save(c.Request, c.Writer); err != nil {
			respondInternal(c, "failed to persist session", err)
			c.Abort()
			return
		}
		c.Set(sessionCtxKey, session)
		c.Next()
	}
}

func loadSession(c *gin.Context, store *sessions.CookieStore) *sessions.Session {
	session, err := store.Get(c.Request, sessionName)
	if err == nil && session != nil {
		return session
	}
	log.Printf("[session] discarding unreadable cookie trace=%s: %v", c.GetString("trace_id"), err)
	fresh := sessions.NewSession(store, sessionName)
	fresh.IsNew = true
	return fresh
}

// OriginRefererMiddleware rejects cross-origin requests from origins outside
// cfg.AllowedOrigins and answers CORS preflights for the allowed ones.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}

	return func(c *gin.Context) {
		origin := requestOrigin(c)
		// No Origin and no Referer: same-origin navigation or a non-browser client.
		if origin != "" && !allowed[strings.ToLower(origin)] {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", corsAllowHeader)
			h.Set("Access-Control-Allow-Methods", corsAllowMethod)
			h.Add("Vary", "Origin")
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
		}
		c.Next()
	}
}

func requestOrigin(c *gin.Context) string {
	if o := c.GetHeader("Origin"); o != "" {
		return o
	}
	ref := c.GetHeader("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// CSRFMiddleware keeps one token per session and requires it in the
// X-CSRF-Token header on unsafe methods. It runs after the authorization
// guard, so anonymous writes to protected paths are answered with 401 first.
func CSRFMiddleware(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := cookieSession(c)
		if session == nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
			c.Abort()
			return
		}

		token, _ := session.Values[csrfSessionKey].(string)
		if token == "" {
			var err error
			if token, err = generateCSRFToken(); err != nil {
				respondInternal(c, "failed to issue csrf token", err)
				c.Abort()
				return
			}
			session.Values[csrfSessionKey] = token
			applySessionOptions(cfg, session)
			if err := session.Save(c.Request, c.Writer); err != nil {
				respondInternal(c, "failed to persist session", err)
				c.Abort()
				return
			}
		}

		if needsCSRFCheck(c.Request) {
			sent := c.GetHeader(csrfHeader)
			if sent == "" || subtle.ConstantTimeCompare([]byte(sent), []byte(token)) != 1 {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "invalid csrf token")
				c.Abort()
				return
			}
		}

		c.Header(csrfHeader, token)
		c.Next()
	}
}

// needsCSRFCheck is false for safe methods and for sign-in, which has no session yet.
func needsCSRFCheck(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return r.URL.Path != SignInPath
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func applySessionOptions(cfg Config, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	session.Options.Path = "/"
	session.Options.MaxAge = sessionMaxAge
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = sameSiteFromString(cfg.CookieSameSite)
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}
