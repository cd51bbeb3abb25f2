package app

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/meridian-compliance/meridian/internal/authz"
	"github.com/meridian-compliance/meridian/internal/directory"
	"github.com/meridian-compliance/meridian/internal/observability"
	"github.com/meridian-compliance/meridian/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger    *slog.Logger
	Config    *Config
	Sessions  *shared.SessionStore
	CSRF      *shared.CSRFManager
	Directory *directory.Service
	Metrics   *observability.Metrics
}

// MiddlewareStack installs the Meridian middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		FeaturePolicy:         "none",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	// actorMiddleware resolves the caller's identity into an authz.Actor.
	// Identity arrives either as a platform session cookie or, for trusted
	// service-to-service calls, as the configured actor header. Requests that
	// carry neither stay anonymous; route guards decide whether that matters.
	actorMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			var userID string
			if cfg.Sessions != nil {
				sess, err := cfg.Sessions.Load(ctx, r)
				if err != nil {
					cfg.Logger.Error("failed to load session", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if sess != nil {
					ctx = shared.ContextWithSession(ctx, sess)
					userID = sess.UserID
				}
			}
			if userID == "" && cfg.Config != nil && cfg.Config.ActorHeader != "" {
				userID = r.Header.Get(cfg.Config.ActorHeader)
			}
			if userID == "" {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			actor, err := cfg.Directory.Resolve(ctx, userID)
			if err != nil {
				// A stale cookie, a suspended account or a role this build
				// does not know are anonymous requests, not server failures.
				if errors.Is(err, directory.ErrNotFound) || errors.Is(err, directory.ErrAccountInactive) || errors.Is(err, authz.ErrUnknownRole) {
					cfg.Logger.Warn("could not resolve actor", slog.String("user_id", userID), slog.Any("error", err))
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
				cfg.Logger.Error("resolve actor", slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(authz.WithActor(ctx, actor)))
		})
	}

	csrfMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			sess := shared.SessionFromContext(r.Context())
			if sess == nil {
				// Header-authenticated callers are not cookie-bound, so there
				// is nothing for a cross-site request to ride on.
				next.ServeHTTP(w, r)
				return
			}
			if err := cfg.CSRF.Verify(sess.ID, r.Header.Get(shared.CSRFHeader)); err != nil {
				cfg.Logger.Warn("csrf validation failed", slog.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		actorMiddleware,
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
		httprate.Limit(60, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		csrfMiddleware,
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, func(next http.Handler) http.Handler {
			return cfg.Metrics.Middleware(next)
		})
	}
	return middlewares
}
