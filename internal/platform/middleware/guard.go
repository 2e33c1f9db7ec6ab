package middleware

import (
	"log/slog"
	"net/http"

	"calorie/internal/auth/guard"
	"calorie/internal/auth/models"
	"calorie/pkg/platform/httputil"
)

// StateReader exposes the current auth state.
type StateReader interface {
	Get() models.AuthState
}

// Guard gates a route group on the route guard's decision. Pending answers
// 503 with Retry-After; Redirect answers 303 to the target.
func Guard(g guard.Guard, states StateReader, class guard.RouteClass, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := g.Decide(states.Get(), class)
			switch decision.Outcome {
			case guard.Allow:
				next.ServeHTTP(w, r)
			case guard.Pending:
				w.Header().Set("Retry-After", "1")
				httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{
					Error:   "bootstrapping",
					Message: "session is still loading",
				})
			default:
				logger.DebugContext(r.Context(), "route guard redirect",
					"path", r.URL.Path,
					"class", class.String(),
					"target", decision.Target,
				)
				w.Header().Set("Location", decision.Target)
				httputil.WriteJSON(w, http.StatusSeeOther, map[string]string{"redirect": decision.Target})
			}
		})
	}
}
