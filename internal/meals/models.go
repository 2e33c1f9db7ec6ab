package meals

import (
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	dErrors "calorie/pkg/domain-errors"
)

const maxNameLength = 120

// Meal is one logged meal with its estimated nutrition.
type Meal struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Calories  float64   `json:"calories"`
	Protein   float64   `json:"protein"`
	Carbs     float64   `json:"carbs"`
	Fat       float64   `json:"fat"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MealInput is what a caller supplies; ID, owner and timestamp are assigned.
type MealInput struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	ImageURL string  `json:"image_url,omitempty"`
}

// Normalize trims whitespace from text fields.
func (in *MealInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
}

// Validate checks the input after Normalize.
func (in MealInput) Validate() error {
	if in.Name == "" {
		return dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	if !govalidator.StringLength(in.Name, "1", strconv.Itoa(maxNameLength)) {
		return dErrors.New(dErrors.CodeBadRequest, "name must be at most 120 characters")
	}
	for field, v := range map[string]float64{
		"calories": in.Calories,
		"protein":  in.Protein,
		"carbs":    in.Carbs,
		"fat":      in.Fat,
	} {
		if v < 0 {
			return dErrors.New(dErrors.CodeBadRequest, field+" must not be negative")
		}
	}
	if in.ImageURL != "" && !govalidator.IsURL(in.ImageURL) {
		return dErrors.New(dErrors.CodeBadRequest, "image_url must be a URL")
	}
	return nil
}

// Totals sums nutrition over a set of meals.
type Totals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

func Sum(meals []Meal) Totals {
	var t Totals
	for _, m := range meals {
		t.Calories += m.Calories
		t.Protein += m.Protein
		t.Carbs += m.Carbs
		t.Fat += m.Fat
	}
	return t
}
