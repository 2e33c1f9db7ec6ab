package models

import (
	"maps"
	"time"

	"calorie/pkg/email"
)

// Metadata is the identity provider's free-form user metadata bag. Profile
// fields travel through it; see Profile for the typed view.
type Metadata map[string]any

// Clone returns a shallow copy; values are JSON scalars so this is sufficient.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Identity is the authenticated principal as reported by the gateway.
type Identity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Metadata  Metadata  `json:"user_metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the identity.
func (i Identity) Clone() Identity {
	i.Metadata = i.Metadata.Clone()
	return i
}

// DisplayName prefers the profile's full name and falls back to the email.
func (i Identity) DisplayName() string {
	if p := ProfileFromMetadata(i.Metadata); p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return email.DisplayName(i.Email)
}

// Session is the token bundle issued by the gateway. Holders treat it as an
// immutable snapshot and replace it wholesale.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

// Clone returns a deep copy, or nil for a nil session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.User = s.User.Clone()
	return &c
}

// Expired reports whether the access token has passed its expiry at now.
// A zero expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// EventKind names why the gateway's session changed.
type EventKind string

const (
	EventInitialSession EventKind = "INITIAL_SESSION"
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
	EventUserUpdated    EventKind = "USER_UPDATED"
)

// SessionEvent is pushed by the gateway whenever its session changes.
// Session is nil when the gateway no longer holds one.
type SessionEvent struct {
	Kind    EventKind
	Session *Session
}
