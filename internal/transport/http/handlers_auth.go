package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"calorie/internal/auth/guard"
	"calorie/internal/auth/models"
	"calorie/internal/auth/synchronizer"
	"calorie/internal/platform/middleware"
	dErrors "calorie/pkg/domain-errors"
	"calorie/pkg/platform/httputil"
)

// AuthService is the session synchronizer's command surface.
type AuthService interface {
	SignIn(ctx context.Context, email, password string) (*models.Session, error)
	SignUp(ctx context.Context, email, password string, profile models.Profile) (synchronizer.SignUpResult, error)
	SignOut(ctx context.Context) error
	Refresh(ctx context.Context) (*models.Session, error)
	UpdateProfile(ctx context.Context, profile models.Profile) (*models.Identity, error)
}

type AuthHandler struct {
	auth   AuthService
	states middleware.StateReader
	guard  guard.Guard
	logger *slog.Logger
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Profile  models.Profile `json:"profile"`
}

type userResponse struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name"`
	Profile     models.Profile `json:"profile"`
}

type stateResponse struct {
	Phase            string        `json:"phase"`
	Ready            bool          `json:"ready"`
	User             *userResponse `json:"user,omitempty"`
	SessionExpiresAt *time.Time    `json:"session_expires_at,omitempty"`
}

type decisionResponse struct {
	Outcome string `json:"outcome"`
	Target  string `json:"target,omitempty"`
}

func toStateResponse(s models.AuthState) stateResponse {
	resp := stateResponse{Phase: s.Phase().String(), Ready: s.Ready}
	if s.Identity != nil {
		resp.User = &userResponse{
			ID:          s.Identity.ID,
			Email:       s.Identity.Email,
			DisplayName: s.Identity.DisplayName(),
			Profile:     models.ProfileFromMetadata(s.Identity.Metadata),
		}
	}
	if s.Session != nil && !s.Session.ExpiresAt.IsZero() {
		exp := s.Session.ExpiresAt
		resp.SessionExpiresAt = &exp
	}
	return resp
}

func (h *AuthHandler) writeState(w http.ResponseWriter, status int) {
	httputil.WriteJSON(w, status, toStateResponse(h.states.Get()))
}

func (h *AuthHandler) handleState(w http.ResponseWriter, _ *http.Request) {
	h.writeState(w, http.StatusOK)
}

func (h *AuthHandler) handleDecision(w http.ResponseWriter, r *http.Request) {
	class, ok := guard.ParseRouteClass(r.URL.Query().Get("class"))
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "class must be public or protected"))
		return
	}
	d := h.guard.Decide(h.states.Get(), class)
	httputil.WriteJSON(w, http.StatusOK, decisionResponse{Outcome: d.Outcome.String(), Target: d.Target})
}

func (h *AuthHandler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateCredentials(req.Email, req.Password); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.auth.SignIn(r.Context(), req.Email, req.Password); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeState(w, http.StatusOK)
}

func (h *AuthHandler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := validateCredentials(req.Email, req.Password); err != nil {
		httputil.WriteError(w, err)
		return
	}
	res, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.Profile)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if res.VerificationPending {
		httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
			"verification_pending": true,
			"message":              "check your email to confirm the account",
		})
		return
	}
	h.writeState(w, http.StatusCreated)
}

func (h *AuthHandler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeState(w, http.StatusOK)
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.Refresh(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeState(w, http.StatusOK)
}

func (h *AuthHandler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.Profile
	if err := httputil.DecodeJSON(r, &profile); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if _, err := h.auth.UpdateProfile(r.Context(), profile); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.writeState(w, http.StatusOK)
}

func validateCredentials(email, password string) error {
	if !govalidator.StringLength(email, "3", "254") || !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeBadRequest, "invalid email")
	}
	// bcrypt-based providers ignore bytes past 72.
	if password == "" || len(password) > 72 {
		return dErrors.New(dErrors.CodeBadRequest, "password must be 1-72 bytes")
	}
	return nil
}
