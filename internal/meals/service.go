// Package meals records what a signed-in user ate.
package meals

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"calorie/internal/platform/metrics"
	dErrors "calorie/pkg/domain-errors"
	"calorie/pkg/requestcontext"
)

// Service owns meal validation and persistence.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Save validates in and stores it as a new meal owned by userID.
func (s *Service) Save(ctx context.Context, userID string, in MealInput) (*Meal, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "sign in to log meals")
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	meal := Meal{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      in.Name,
		Calories:  in.Calories,
		Protein:   in.Protein,
		Carbs:     in.Carbs,
		Fat:       in.Fat,
		ImageURL:  in.ImageURL,
		CreatedAt: requestcontext.Now(ctx).UTC(),
	}
	if err := s.store.Insert(ctx, meal); err != nil {
		s.logger.ErrorContext(ctx, "failed to save meal", "user_id", userID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save meal")
	}
	if s.metrics != nil {
		s.metrics.MealsSaved.Inc()
	}
	return &meal, nil
}

// List returns userID's meals, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Meal, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "sign in to view meals")
	}
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list meals", "user_id", userID, "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load meals")
	}
	return out, nil
}
