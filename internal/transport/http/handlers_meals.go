package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"calorie/internal/meals"
	"calorie/internal/platform/middleware"
	dErrors "calorie/pkg/domain-errors"
	"calorie/pkg/platform/httputil"
)

// MealService is the meal log.
type MealService interface {
	Save(ctx context.Context, userID string, in meals.MealInput) (*meals.Meal, error)
	List(ctx context.Context, userID string) ([]meals.Meal, error)
}

type MealsHandler struct {
	meals  MealService
	states middleware.StateReader
	logger *slog.Logger
}

type mealListResponse struct {
	Meals  []meals.Meal `json:"meals"`
	Totals meals.Totals `json:"totals"`
}

// userID reads the signed-in user from the store. The route guard admitted
// the request, but the session may have ended since.
func (h *MealsHandler) userID() (string, error) {
	s := h.states.Get()
	if s.Identity == nil {
		return "", dErrors.New(dErrors.CodeUnauthorized, "sign in required")
	}
	return s.Identity.ID, nil
}

func (h *MealsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out, err := h.meals.List(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, mealListResponse{Meals: out, Totals: meals.Sum(out)})
}

func (h *MealsHandler) handleSave(w http.ResponseWriter, r *http.Request) {
	userID, err := h.userID()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var in meals.MealInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	meal, err := h.meals.Save(r.Context(), userID, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "meal saved", "user_id", userID, "meal_id", meal.ID)
	httputil.WriteJSON(w, http.StatusCreated, meal)
}
