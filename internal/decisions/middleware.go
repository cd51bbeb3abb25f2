package decisions

import (
	"log/slog"
	"net/http"

	"github.com/meridian-compliance/meridian/internal/authz"
	"github.com/meridian-compliance/meridian/internal/platform/httpx"
)

// Middleware guards HTTP routes with capability checks against the actor the
// app middleware resolved into the request context.
type Middleware struct {
	Logger *slog.Logger
}

// RequireActor rejects requests that carry no resolvable actor.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := authz.ActorFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission guards a route with one capability check. Anonymous
// requests get 401; authenticated actors without the grant get 403.
func (m Middleware) RequirePermission(module authz.Module, action authz.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := authz.ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if err := authz.AssertPermission(actor, module, action); err != nil {
				if m.Logger != nil {
					m.Logger.Warn("capability denied",
						slog.String("user_id", actor.UserID),
						slog.String("role", string(actor.Role)),
						slog.String("module", string(module)),
						slog.String("action", string(action)),
					)
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
