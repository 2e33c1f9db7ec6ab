package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestNewAuthStateCopiesSession(t *testing.T) {
	session := &Session{
		AccessToken: "at",
		User:        Identity{ID: "u1", Email: "u1@example.com", Metadata: Metadata{KeyFullName: "U One"}},
	}

	state := NewAuthState(session, true)
	require.NotNil(t, state.Identity)
	assert.Equal(t, "u1", state.Identity.ID)
	assert.True(t, state.IsAuthenticated())
	assert.Equal(t, PhaseAuthenticated, state.Phase())
	require.NoError(t, state.Validate())

	session.AccessToken = "mutated"
	session.User.Metadata[KeyFullName] = "Mutated"
	assert.Equal(t, "at", state.Session.AccessToken)
	assert.Equal(t, "U One", state.Identity.Metadata[KeyFullName])
}

func TestAuthStatePhases(t *testing.T) {
	assert.Equal(t, PhaseBootstrapping, AuthState{}.Phase())
	assert.Equal(t, PhaseUnauthenticated, NewAuthState(nil, true).Phase())
	assert.Equal(t, "unauthenticated", PhaseUnauthenticated.String())
}

func TestAuthStateValidate(t *testing.T) {
	assert.NoError(t, AuthState{}.Validate())
	assert.Error(t, AuthState{Identity: &Identity{ID: "u1"}}.Validate())
	assert.Error(t, AuthState{Session: &Session{}}.Validate())
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, (&Session{}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: now}).Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Second)}).Expired(now))
}

func TestIdentityDisplayName(t *testing.T) {
	assert.Equal(t, "Jane", Identity{Metadata: Metadata{KeyFullName: "Jane"}}.DisplayName())
	assert.Equal(t, "Jane Doe", Identity{Email: "jane.doe@example.com"}.DisplayName())
}

func TestProfileValidate(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	valid := Profile{
		FullName:        ptr("Jane Doe"),
		DateOfBirth:     ptr("1990-04-12"),
		HeightCm:        ptr(172.0),
		WeightKg:        ptr(64.5),
		Phone:           ptr("+1 555-123-4567"),
		RecoveryEmail:   ptr("backup@example.com"),
		ThemePreference: ptr("dark"),
	}
	require.NoError(t, valid.Validate(now))

	invalid := map[string]Profile{
		"empty name":    {FullName: ptr("  ")},
		"bad dob":       {DateOfBirth: ptr("12/04/1990")},
		"future dob":    {DateOfBirth: ptr("2030-01-01")},
		"short height":  {HeightCm: ptr(10.0)},
		"heavy weight":  {WeightKg: ptr(900.0)},
		"bad phone":     {Phone: ptr("call me")},
		"bad recovery":  {RecoveryEmail: ptr("nope")},
		"unknown theme": {ThemePreference: ptr("neon")},
	}
	for name, p := range invalid {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, p.Validate(now))
		})
	}
}

func TestProfileApplyAndRead(t *testing.T) {
	md := Metadata{KeyFullName: "Old", "other": "kept"}
	p := Profile{FullName: ptr("New"), HeightCm: ptr(180.0)}

	out := p.Apply(md)
	assert.Equal(t, "New", out[KeyFullName])
	assert.Equal(t, 180.0, out[KeyHeight])
	assert.Equal(t, "kept", out["other"])
	assert.Equal(t, "Old", md[KeyFullName], "input must not be modified")

	back := ProfileFromMetadata(Metadata{KeyFullName: "New", KeyHeight: "180", KeyWeight: 70, KeyPhone: 5})
	require.NotNil(t, back.FullName)
	assert.Equal(t, "New", *back.FullName)
	require.NotNil(t, back.HeightCm)
	assert.Equal(t, 180.0, *back.HeightCm)
	require.NotNil(t, back.WeightKg)
	assert.Equal(t, 70.0, *back.WeightKg)
	assert.Nil(t, back.Phone)

	assert.True(t, Profile{}.IsEmpty())
	assert.False(t, p.IsEmpty())
}
