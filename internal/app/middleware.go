package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/pohlai88/ledgercore/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger *slog.Logger
	Config *Config
}

// ScopeMiddleware resolves the tenant scope from trusted gateway headers.
// Authentication happens upstream; by the time a request reaches this
// service the X-Tenant-ID, X-Company-ID, X-User-ID and X-User-Role
// headers carry an already verified identity.
func ScopeMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err1 := strconv.ParseInt(r.Header.Get("X-Tenant-ID"), 10, 64)
			companyID, err2 := strconv.ParseInt(r.Header.Get("X-Company-ID"), 10, 64)
			userID, err3 := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
			if err1 != nil || err2 != nil || err3 != nil {
				next.ServeHTTP(w, r)
				return
			}
			scope := shared.Scope{
				TenantID:  tenantID,
				CompanyID: companyID,
				UserID:    userID,
				Role:      shared.UserRole(r.Header.Get("X-User-Role")),
			}
			if !scope.Valid() {
				logger.Warn("rejecting request with malformed scope headers",
					slog.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithScope(r.Context(), scope)))
		})
	}
}

// MiddlewareStack installs the service middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		ScopeMiddleware(cfg.Logger),
	}
}
