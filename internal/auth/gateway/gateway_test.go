package gateway

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calorie/internal/auth/models"
)

func TestListenersEmitAndUnsubscribe(t *testing.T) {
	var ls Listeners
	var got []models.SessionEvent

	sub := ls.Add(func(e models.SessionEvent) { got = append(got, e) })
	assert.Equal(t, 1, ls.Len())

	session := &models.Session{AccessToken: "at", User: models.Identity{ID: "u1"}}
	ls.Emit(models.SessionEvent{Kind: models.EventSignedIn, Session: session})
	ls.Emit(models.SessionEvent{Kind: models.EventSignedOut})

	require.Len(t, got, 2)
	assert.Equal(t, models.EventSignedIn, got[0].Kind)
	assert.Equal(t, "u1", got[0].Session.User.ID)
	assert.NotSame(t, session, got[0].Session, "listeners get their own copy")
	assert.Nil(t, got[1].Session)

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, ls.Len())

	ls.Emit(models.SessionEvent{Kind: models.EventSignedOut})
	assert.Len(t, got, 2)
}

func TestListenerCanUnsubscribeDuringEmit(t *testing.T) {
	var ls Listeners
	var first, second int
	var firstSub, secondSub Subscription

	firstSub = ls.Add(func(models.SessionEvent) {
		first++
		firstSub.Unsubscribe()
		secondSub.Unsubscribe()
	})
	secondSub = ls.Add(func(models.SessionEvent) { second++ })

	done := make(chan struct{})
	go func() {
		defer close(done)
		ls.Emit(models.SessionEvent{Kind: models.EventSignedOut})
		ls.Emit(models.SessionEvent{Kind: models.EventSignedOut})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit did not return")
	}

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second, "a listener removed mid-delivery is skipped")
	assert.Equal(t, 0, ls.Len())
}

func TestErrorKeepsProviderMessage(t *testing.T) {
	kind := errors.New("invalid credentials")
	err := fmt.Errorf("sign in: %w", NewError(kind, 400, "Invalid login credentials"))

	assert.ErrorIs(t, err, kind)
	assert.Equal(t, "Invalid login credentials", Message(err))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, "invalid credentials", NewError(kind, 0, "").Error())
}
