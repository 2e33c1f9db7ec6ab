package events

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"calorie/internal/auth/models"
	"calorie/internal/auth/state"
	"calorie/internal/platform/logger"
	"calorie/internal/platform/metrics"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type RecorderSuite struct {
	suite.Suite
	store    *state.Store
	metrics  *metrics.Metrics
	recorder *Recorder
}

func TestRecorderSuite(t *testing.T) {
	suite.Run(t, new(RecorderSuite))
}

func (s *RecorderSuite) SetupTest() {
	s.store = state.New()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.recorder = NewRecorder(8,
		WithRecorderLogger(logger.Discard()),
		WithRecorderMetrics(s.metrics),
		WithClock(func() time.Time { return fixedNow }),
	)
	s.store.Subscribe(s.recorder.Observe)
}

func sessionFor(userID string) *models.Session {
	return &models.Session{AccessToken: "a-" + userID, User: models.Identity{ID: userID}}
}

func (s *RecorderSuite) drain() []Transition {
	var out []Transition
	for {
		select {
		case t := <-s.recorder.Inbox():
			out = append(out, t)
		default:
			return out
		}
	}
}

func (s *RecorderSuite) TestBaselineProducesNothing() {
	s.Empty(s.drain())
}

func (s *RecorderSuite) TestLifecycle() {
	s.Require().NoError(s.store.Set(models.NewAuthState(nil, true)))
	s.Require().NoError(s.store.Set(models.NewAuthState(sessionFor("u1"), true)))
	// token refresh for the same user is not a transition
	s.Require().NoError(s.store.Set(models.NewAuthState(sessionFor("u1"), true)))
	s.Require().NoError(s.store.Set(models.NewAuthState(sessionFor("u2"), true)))
	s.Require().NoError(s.store.Set(models.NewAuthState(nil, true)))

	s.Equal([]Transition{
		{From: "bootstrapping", To: "unauthenticated", At: fixedNow},
		{From: "unauthenticated", To: "authenticated", UserID: "u1", At: fixedNow},
		{From: "authenticated", To: "authenticated", UserID: "u2", At: fixedNow},
		{From: "authenticated", To: "unauthenticated", UserID: "u2", At: fixedNow},
	}, s.drain())

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Ready))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.PhaseTransitions.WithLabelValues("unauthenticated", "authenticated")))
}

func (s *RecorderSuite) TestFullInboxDropsWithoutBlocking() {
	recorder := NewRecorder(1, WithRecorderLogger(logger.Discard()), WithRecorderMetrics(s.metrics))
	store := state.New()
	store.Subscribe(recorder.Observe)

	s.Require().NoError(store.Set(models.NewAuthState(nil, true)))
	s.Require().NoError(store.Set(models.NewAuthState(sessionFor("u1"), true)))
	s.Require().NoError(store.Set(models.NewAuthState(nil, true)))

	s.Equal(int64(2), recorder.Dropped())
	s.Equal(2.0, testutil.ToFloat64(s.metrics.EventsDropped))
	s.Len(recorder.Inbox(), 1)
}
