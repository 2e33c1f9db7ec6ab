package meals_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"calorie/internal/meals"
	"calorie/internal/meals/mocks"
	"calorie/internal/platform/logger"
	"calorie/internal/platform/metrics"
	dErrors "calorie/pkg/domain-errors"
	"calorie/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	metrics *metrics.Metrics
	service *meals.Service
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = meals.New(s.store, meals.WithLogger(logger.Discard()), meals.WithMetrics(s.metrics))
	s.now = time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) TestSave() {
	s.Run("assigns id, owner and time", func() {
		var stored meals.Meal
		s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, m meals.Meal) error {
			stored = m
			return nil
		})

		got, err := s.service.Save(s.ctx, "user-1", meals.MealInput{Name: "  Oatmeal ", Calories: 350, Protein: 12, Carbs: 60, Fat: 6})
		s.Require().NoError(err)
		s.NotEmpty(got.ID)
		s.Equal("user-1", got.UserID)
		s.Equal("Oatmeal", got.Name)
		s.Equal(s.now, got.CreatedAt)
		s.Equal(*got, stored)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.MealsSaved))
	})

	s.Run("rejects invalid input without touching the store", func() {
		for _, in := range []meals.MealInput{
			{Name: "   "},
			{Name: "Toast", Calories: -1},
			{Name: "Toast", Fat: -0.5},
			{Name: "Toast", ImageURL: "not a url"},
		} {
			_, err := s.service.Save(s.ctx, "user-1", in)
			s.True(dErrors.HasCode(err, dErrors.CodeBadRequest), "input %+v", in)
		}
	})

	s.Run("requires a user", func() {
		_, err := s.service.Save(s.ctx, "", meals.MealInput{Name: "Toast"})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("store failure is internal", func() {
		s.store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
		_, err := s.service.Save(s.ctx, "user-1", meals.MealInput{Name: "Toast"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestList() {
	want := []meals.Meal{{ID: "m2"}, {ID: "m1"}}
	s.store.EXPECT().ListByUser(gomock.Any(), "user-1").Return(want, nil)

	got, err := s.service.List(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Equal(want, got)

	_, err = s.service.List(s.ctx, "")
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestSum(t *testing.T) {
	got := meals.Sum([]meals.Meal{
		{Calories: 100, Protein: 1, Carbs: 2, Fat: 3},
		{Calories: 250, Protein: 4, Carbs: 5, Fat: 6},
	})
	if got != (meals.Totals{Calories: 350, Protein: 5, Carbs: 7, Fat: 9}) {
		t.Fatalf("unexpected totals %+v", got)
	}
}
