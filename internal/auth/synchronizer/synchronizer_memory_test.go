package synchronizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"calorie/internal/auth/gateway/memory"
	"calorie/internal/auth/guard"
	"calorie/internal/auth/models"
	"calorie/internal/auth/state"
	"calorie/internal/platform/logger"
	dErrors "calorie/pkg/domain-errors"
)

// TestLifecycleAgainstMemoryGateway drives the whole core through a real
// in-process provider: bootstrap, sign up, guard decisions, expiry.
func TestLifecycleAgainstMemoryGateway(t *testing.T) {
	ctx := context.Background()
	gw := memory.New("test-key", memory.WithBcryptCost(bcrypt.MinCost))
	store := state.New()
	g := guard.New("/auth/sign-in", "/(tabs)/home")
	s := New(gw, store, WithLogger(logger.Discard()))

	assert.Equal(t, guard.Pending, g.Decide(store.Get(), guard.Protected).Outcome)

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.WaitReady(ctx))
	t.Cleanup(s.Stop)

	assert.Equal(t, guard.Decision{Outcome: guard.Redirect, Target: "/auth/sign-in"}, g.Decide(store.Get(), guard.Protected))

	name := "Jane Doe"
	res, err := s.SignUp(ctx, "jane@example.com", "secret-pw", models.Profile{FullName: &name})
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	assert.Equal(t, "Jane Doe", store.Get().Identity.DisplayName())
	assert.Equal(t, guard.Decision{Outcome: guard.Redirect, Target: "/(tabs)/home"}, g.Decide(store.Get(), guard.Public))

	gw.RevokeRefreshTokens("jane@example.com")
	_, err = s.Refresh(ctx)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeSessionExpired))
	assert.False(t, store.Get().IsAuthenticated())

	_, err = s.SignIn(ctx, "jane@example.com", "wrong")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAuthenticationFailed))
	assert.False(t, store.Get().IsAuthenticated())

	_, err = s.SignIn(ctx, "jane@example.com", "secret-pw")
	require.NoError(t, err)
	assert.Equal(t, guard.Allow, g.Decide(store.Get(), guard.Protected).Outcome)

	require.NoError(t, s.SignOut(ctx))
	require.NoError(t, s.SignOut(ctx))
	assert.Equal(t, models.PhaseUnauthenticated, store.Get().Phase())
}

// TestStopFromObserverOnSignOut tears the core down from a store observer
// while the gateway is delivering the sign-out event.
func TestStopFromObserverOnSignOut(t *testing.T) {
	ctx := context.Background()
	gw := memory.New("test-key", memory.WithBcryptCost(bcrypt.MinCost))
	store := state.New()
	s := New(gw, store, WithLogger(logger.Discard()))

	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.WaitReady(ctx))
	_, err := s.SignUp(ctx, "jane@example.com", "secret-pw", models.Profile{})
	require.NoError(t, err)

	unsubscribe := store.Subscribe(func(st models.AuthState) {
		if st.Ready && !st.IsAuthenticated() {
			s.Stop()
		}
	})
	defer unsubscribe()

	done := make(chan error, 1)
	go func() { done <- s.SignOut(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SignOut did not return after Stop from an observer")
	}

	assert.False(t, store.Get().IsAuthenticated())

	// The subscription is gone: a new sign-in on the provider no longer
	// reaches the store.
	_, err = gw.SignInWithPassword(ctx, "jane@example.com", "secret-pw")
	require.NoError(t, err)
	assert.False(t, store.Get().IsAuthenticated())
}
