package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"calorie/internal/auth/models"
	dErrors "calorie/pkg/domain-errors"
	"calorie/pkg/platform/sentinel"
)

type StoreSuite struct {
	suite.Suite
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = New()
}

func session(userID string) *models.Session {
	return &models.Session{AccessToken: "at-" + userID, User: models.Identity{ID: userID}}
}

func (s *StoreSuite) TestInitialState() {
	st := s.store.Get()
	s.False(st.Ready)
	s.Nil(st.Session)
	s.Nil(st.Identity)
	s.Equal(models.PhaseBootstrapping, st.Phase())
}

func (s *StoreSuite) TestSetReplacesState() {
	s.Require().NoError(s.store.Set(models.NewAuthState(session("u1"), true)))

	st := s.store.Get()
	s.True(st.Ready)
	s.Require().NotNil(st.Identity)
	s.Equal("u1", st.Identity.ID)

	s.Require().NoError(s.store.Set(models.NewAuthState(nil, true)))
	s.False(s.store.Get().IsAuthenticated())
}

func (s *StoreSuite) TestSetRejectsInvariantViolations() {
	s.Run("identity without session", func() {
		err := s.store.Set(models.AuthState{Identity: &models.Identity{ID: "u1"}, Ready: true})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
		s.True(errors.Is(err, sentinel.ErrInvalidState))
	})

	s.Run("session without identity", func() {
		err := s.store.Set(models.AuthState{Session: session("u1"), Ready: true})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
	})

	s.Run("ready reverting to false", func() {
		s.Require().NoError(s.store.Set(models.NewAuthState(nil, true)))
		err := s.store.Set(models.NewAuthState(nil, false))
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidStateTransition))
		s.True(errors.Is(err, sentinel.ErrInvalidState))
		s.True(s.store.Get().Ready)
	})
}

func (s *StoreSuite) TestSubscribeDeliversCurrentThenUpdates() {
	s.Require().NoError(s.store.Set(models.NewAuthState(session("u1"), true)))

	var seen []models.AuthState
	unsubscribe := s.store.Subscribe(func(st models.AuthState) {
		seen = append(seen, st)
	})

	s.Require().Len(seen, 1)
	s.Equal("u1", seen[0].Identity.ID)

	s.Require().NoError(s.store.Set(models.NewAuthState(nil, true)))
	s.Require().Len(seen, 2)
	s.False(seen[1].IsAuthenticated())

	unsubscribe()
	unsubscribe()
	s.Require().NoError(s.store.Set(models.NewAuthState(session("u2"), true)))
	s.Len(seen, 2)
}

func (s *StoreSuite) TestObserversRunInSubscriptionOrder() {
	var calls []string
	s.store.Subscribe(func(models.AuthState) { calls = append(calls, "a") })
	s.store.Subscribe(func(models.AuthState) { calls = append(calls, "b") })
	calls = nil

	s.Require().NoError(s.store.Set(models.NewAuthState(nil, true)))
	s.Equal([]string{"a", "b"}, calls)
}

func (s *StoreSuite) TestConcurrentWritersKeepInvariant() {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.store.Set(models.NewAuthState(session("u1"), true))
		}()
		go func() {
			defer wg.Done()
			_ = s.store.Set(models.NewAuthState(nil, true))
			s.NoError(s.store.Get().Validate())
		}()
	}
	wg.Wait()
	s.NoError(s.store.Get().Validate())
	s.True(s.store.Get().Ready)
}

// withinDeadline fails the test instead of hanging when fn blocks.
func (s *StoreSuite) withinDeadline(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.FailNow("store call did not return")
	}
}

func (s *StoreSuite) TestObserverCanUnsubscribeItself() {
	var calls int
	var unsubscribe func()
	unsubscribe = s.store.Subscribe(func(st models.AuthState) {
		calls++
		if st.Ready {
			unsubscribe()
		}
	})

	s.withinDeadline(func() {
		s.Require().NoError(s.store.Set(models.NewAuthState(nil, true)))
		s.Require().NoError(s.store.Set(models.NewAuthState(session("u1"), true)))
	})
	s.Equal(2, calls)
}

func (s *StoreSuite) TestObserverCanSubscribeAnother() {
	var late []models.AuthState
	var once sync.Once
	s.store.Subscribe(func(st models.AuthState) {
		if !st.Ready {
			return
		}
		once.Do(func() {
			s.store.Subscribe(func(st models.AuthState) { late = append(late, st) })
		})
	})

	s.withinDeadline(func() {
		s.Require().NoError(s.store.Set(models.NewAuthState(session("u1"), true)))
		s.Require().NoError(s.store.Set(models.NewAuthState(nil, true)))
	})
	s.Require().Len(late, 2)
	s.Equal("u1", late[0].Identity.ID)
	s.False(late[1].IsAuthenticated())
}

func (s *StoreSuite) TestObserverCanUnsubscribeLaterObserver() {
	var secondCalls int
	var unsubscribeSecond func()
	s.store.Subscribe(func(st models.AuthState) {
		if st.Ready {
			unsubscribeSecond()
		}
	})
	unsubscribeSecond = s.store.Subscribe(func(models.AuthState) { secondCalls++ })
	secondCalls = 0

	s.withinDeadline(func() {
		s.Require().NoError(s.store.Set(models.NewAuthState(nil, true)))
	})
	s.Equal(0, secondCalls)
}
