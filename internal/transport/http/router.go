// Package httptransport is the thin HTTP layer in front of the session core
// and meal log. Handlers decode, validate, delegate and encode; they hold no
// business rules.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"calorie/internal/auth/guard"
	"calorie/internal/platform/metrics"
	"calorie/internal/platform/middleware"
	"calorie/pkg/platform/httputil"
	"calorie/pkg/platform/middleware/metadata"
	"calorie/pkg/platform/middleware/requesttime"
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the router serves.
type Deps struct {
	Auth    AuthService
	States  middleware.StateReader
	Guard   guard.Guard
	Meals   MealService
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// Health checks run by /healthz, keyed by dependency name.
	Health map[string]HealthCheck
}

// NewRouter wires every endpoint.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	auth := &AuthHandler{auth: d.Auth, states: d.States, guard: d.Guard, logger: d.Logger}
	mealsHandler := &MealsHandler{meals: d.Meals, states: d.States, logger: d.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(d.Logger, d.Metrics))

	r.Get("/healthz", healthz(d.Health))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/auth/state", auth.handleState)
	r.Get("/navigation/decision", auth.handleDecision)
	// Signing out while signed out succeeds, so it is not guarded.
	r.Post("/auth/sign-out", auth.handleSignOut)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(d.Guard, d.States, guard.Public, d.Logger))
		r.Post("/auth/sign-in", auth.handleSignIn)
		r.Post("/auth/sign-up", auth.handleSignUp)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(d.Guard, d.States, guard.Protected, d.Logger))
		r.Post("/auth/refresh", auth.handleRefresh)
		r.Put("/auth/profile", auth.handleUpdateProfile)
		if d.Meals != nil {
			r.Get("/meals", mealsHandler.handleList)
			r.Post("/meals", mealsHandler.handleSave)
		}
	})

	return r
}

func healthz(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				results[name] = err.Error()
				continue
			}
			results[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": results})
	}
}
