package core

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// SignInService authenticates sign-in requests.
type SignInService interface {
	SignIn(ctx context.Context, req SignInRequest) (Session, error)
	Providers() []string
}

// InvoiceMutator runs invoice mutations end to end.
type InvoiceMutator interface {
	Create(ctx context.Context, in InvoiceInput) (MutationResult, error)
	Update(ctx context.Context, id string, in InvoiceInput) (MutationResult, error)
	Delete(ctx context.Context, id string) (MutationResult, error)
}

// InvoicePager serves rendered invoice list pages.
type InvoicePager interface {
	Page(ctx context.Context, query string, page, perPage int) (InvoicePage, error)
}

type InvoiceGetter interface {
	Get(ctx context.Context, id string) (*Invoice, error)
}

type CustomerLister interface {
	List(ctx context.Context) ([]Customer, error)
}

// RouterDeps are the services behind the HTTP API. Metrics and Views may be nil.
type RouterDeps struct {
	Auth      SignInService
	Mutations InvoiceMutator
	Pages     InvoicePager
	Invoices  InvoiceGetter
	Customers CustomerLister
	Metrics   *MetricsService
	Views     *ViewCache
	Policy    AuthorizationPolicy
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, store *sessions.CookieStore, deps RouterDeps) *gin.Engine {
	startedAt := time.Now()
	if deps.Policy == (AuthorizationPolicy{}) {
		deps.Policy = DefaultAuthorizationPolicy()
	}
	r := gin.Default()

	// Global middleware: trace -> metrics -> origin/CORS -> session.
	// Groups add the authorization guard, then CSRF.
	r.Use(TraceMiddleware())
	r.Use(MetricsMiddleware())
	r.Use(OriginRefererMiddleware(cfg))
	r.Use(SessionMiddleware(cfg, store))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	guard := AuthorizationMiddleware(deps.Policy)
	csrf := CSRFMiddleware(cfg)

	public := r.Group("/", guard, csrf)
	{
		public.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"app": "billing-dashboard", "sign_in": SignInPath})
		})

		public.GET(SignInPath, func(c *gin.Context) {
			providers := append([]string{CredentialsProvider}, deps.Auth.Providers()...)
			c.JSON(http.StatusOK, gin.H{
				"providers":  providers,
				"csrf_token": c.Writer.Header().Get("X-CSRF-Token"),
			})
		})

		public.POST(SignInPath, func(c *gin.Context) {
			var req SignInRequest
			if err := c.ShouldBind(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
				return
			}
			if req.Params == nil {
				req.Params = federatedParams(c)
			}

			s, err := deps.Auth.SignIn(c.Request.Context(), req)
			signInAttempts.WithLabelValues(providerLabel(req.Provider, deps.Auth.Providers()), signInResult(err)).Inc()
			if err != nil {
				respondSignInError(c, err)
				return
			}

			sess := cookieSession(c)
			if sess == nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
				return
			}
			if err := storeSession(c, cfg, sess, s); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to set session")
				return
			}
			log.Printf("[auth] signed in provider=%s trace=%s", s.Provider, c.GetString("trace_id"))
			c.JSON(http.StatusOK, gin.H{
				"user":       gin.H{"email": s.Email, "name": s.Name, "provider": s.Provider},
				"navigation": Navigation{Mode: NavigateReplace, Path: deps.Policy.LandingPath},
			})
		})
	}

	dash := r.Group(DashboardPrefix, guard, csrf)
	{
		dash.GET("", func(c *gin.Context) {
			s := currentSession(c)
			c.JSON(http.StatusOK, gin.H{
				"user":  gin.H{"email": s.Email, "name": s.Name, "provider": s.Provider},
				"links": []string{InvoicesPath, DashboardPrefix + "/customers"},
			})
		})

		dash.POST("/logout", func(c *gin.Context) {
			sess := cookieSession(c)
			if sess == nil {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Sign in to continue.")
				return
			}
			if err := clearSession(c, cfg, sess); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to clear session")
				return
			}
			c.JSON(http.StatusOK, gin.H{"navigation": Navigation{Mode: NavigateReplace, Path: SignInPath}})
		})

		dash.GET("/customers", func(c *gin.Context) {
			customers, err := deps.Customers.List(c.Request.Context())
			if err != nil {
				respondInternal(c, "failed to load customers", err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"items": customers})
		})

		invoices := dash.Group("/invoices")
		{
			invoices.GET("", func(c *gin.Context) {
				page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
				if err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
					return
				}
				out, err := deps.Pages.Page(c.Request.Context(), strings.TrimSpace(c.Query("query")), page, perPage)
				if err != nil {
					respondInternal(c, "failed to load invoices", err)
					return
				}
				c.JSON(http.StatusOK, out)
			})

			invoices.POST("", func(c *gin.Context) {
				var in InvoiceInput
				if err := c.ShouldBind(&in); err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request body")
					return
				}
				res, err := deps.Mutations.Create(c.Request.Context(), in)
				invoiceMutations.WithLabelValues("create", mutationResult(err)).Inc()
				if err != nil {
					respondMutationError(c, err)
					return
				}
				c.JSON(http.StatusCreated, res)
			})

			invoices.GET("/:id", func(c *gin.Context) {
				id, err := uuid.Parse(c.Param("id"))
				if err != nil {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "Invoice not found.")
					return
				}
				inv, err := deps.Invoices.Get(c.Request.Context(), id.String())
				if errors.Is(err, ErrInvoiceNotFound) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "Invoice not found.")
					return
				}
				if err != nil {
					respondInternal(c, "failed to load invoice", err)
					return
				}
				c.JSON(http.StatusOK, inv)
			})

			invoices.PUT("/:id", func(c *gin.Context) {
				var in InvoiceInput
				if err := c.ShouldBind(&in); err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_FAILED", "invalid request body")
					return
				}
				res, err := deps.Mutations.Update(c.Request.Context(), c.Param("id"), in)
				invoiceMutations.WithLabelValues("update", mutationResult(err)).Inc()
				if err != nil {
					respondMutationError(c, err)
					return
				}
				c.JSON(http.StatusOK, res)
			})

			invoices.DELETE("/:id", func(c *gin.Context) {
				res, err := deps.Mutations.Delete(c.Request.Context(), c.Param("id"))
				invoiceMutations.WithLabelValues("delete", mutationResult(err)).Inc()
				if err != nil {
					respondMutationError(c, err)
					return
				}
				c.JSON(http.StatusOK, res)
			})
		}

		system := dash.Group("/system")
		{
			system.GET("/status", func(c *gin.Context) {
				c.JSON(http.StatusOK, CollectSystemStatus(c.Request.Context(), deps.Metrics, deps.Views, startedAt))
			})

			system.GET("/queue", func(c *gin.Context) {
				if deps.Metrics == nil {
					respondError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "metrics are not configured")
					return
				}
				qm, err := deps.Metrics.Queue(c.Request.Context())
				if err != nil {
					respondInternal(c, "failed to load queue metrics", err)
					return
				}
				c.JSON(http.StatusOK, qm)
			})

			system.GET("/workers", func(c *gin.Context) {
				if deps.Metrics == nil {
					respondError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "metrics are not configured")
					return
				}
				workers, err := deps.Metrics.Workers(c.Request.Context())
				if err != nil {
					respondInternal(c, "failed to load workers", err)
					return
				}
				c.JSON(http.StatusOK, gin.H{"items": workers})
			})

			system.GET("/workers/:id", func(c *gin.Context) {
				if deps.Metrics == nil {
					respondError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "metrics are not configured")
					return
				}
				hb, err := deps.Metrics.WorkerByID(c.Request.Context(), c.Param("id"))
				if errors.Is(err, redis.Nil) {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "worker not found")
					return
				}
				if err != nil {
					respondInternal(c, "failed to load worker", err)
					return
				}
				c.JSON(http.StatusOK, hb)
			})
		}
	}

	return r
}

// respondSignInError maps a sign-in failure to a status. Unclassified errors
// never reach the client.
func respondSignInError(c *gin.Context, err error) {
	ae, ok := AsAuthError(err)
	if !ok {
		respondInternal(c, "Something went wrong.", err)
		return
	}
	switch ae.Kind {
	case AuthInvalidInput:
		respondError(c, http.StatusBadRequest, ae.Kind.String(), ae.Message())
	case AuthInvalidCredentials:
		respondError(c, http.StatusUnauthorized, ae.Kind.String(), ae.Message())
	case AuthThrottled:
		respondError(c, http.StatusTooManyRequests, ae.Kind.String(), ae.Message())
	case AuthProviderFailure:
		log.Printf("[auth] provider failure trace=%s: %v", c.GetString("trace_id"), err)
		respondError(c, http.StatusBadGateway, ae.Kind.String(), ae.Message())
	default:
		respondInternal(c, "Something went wrong.", err)
	}
}

func respondMutationError(c *gin.Context, err error) {
	me, ok := AsMutationError(err)
	if !ok {
		respondInternal(c, "Something went wrong.", err)
		return
	}
	switch me.Kind {
	case ValidationFailed:
		respondFieldErrors(c, http.StatusBadRequest, me.Kind.String(), me.Message(), me.FieldErrors)
	case InvoiceNotFound:
		respondError(c, http.StatusNotFound, me.Kind.String(), me.Message())
	default:
		log.Printf("[invoices] %v trace=%s", err, c.GetString("trace_id"))
		respondError(c, http.StatusInternalServerError, me.Kind.String(), me.Message())
	}
}

func respondInternal(c *gin.Context, message string, err error) {
	log.Printf("[http] %s %s: %v trace=%s", c.Request.Method, c.FullPath(), err, c.GetString("trace_id"))
	respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message)
}

// federatedParams picks the provider callback fields out of a form post.
func federatedParams(c *gin.Context) map[string]string {
	params := map[string]string{}
	for _, k := range []string{"code", "state", "redirect_uri"} {
		if v := c.PostForm(k); v != "" {
			params[k] = v
		}
	}
	return params
}

func providerLabel(provider string, known []string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if p == "" || p == CredentialsProvider {
		return CredentialsProvider
	}
	for _, k := range known {
		if k == p {
			return p
		}
	}
	return "unknown"
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
	maxPage        = 10000
)

func parsePagination(pageStr, perPageStr string) (int, int, error) {
	page := 1
	perPage := defaultPerPage
	if strings.TrimSpace(pageStr) != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("page must be a positive integer")
		}
		if p > maxPage {
			return 0, 0, errors.New("page must not exceed " + strconv.Itoa(maxPage))
		}
		page = p
	}
	if strings.TrimSpace(perPageStr) != "" {
		p, err := strconv.Atoi(perPageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("per_page must be a positive integer")
		}
		if p > maxPerPage {
			p = maxPerPage
		}
		perPage = p
	}
	return page, perPage, nil
}

func calcTotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
