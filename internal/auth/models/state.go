package models

import (
	"fmt"

	"calorie/pkg/platform/sentinel"
)

// AuthState is the content of the session store.
//
// Identity is present exactly when Session is present. Ready is false only
// while the bootstrap fetch is outstanding.
type AuthState struct {
	Session  *Session
	Identity *Identity
	Ready    bool
}

// NewAuthState derives a state from a session snapshot. The session is
// copied so later mutation by the caller cannot leak into the store.
func NewAuthState(session *Session, ready bool) AuthState {
	if session == nil {
		return AuthState{Ready: ready}
	}
	s := session.Clone()
	return AuthState{Session: s, Identity: &s.User, Ready: ready}
}

// IsAuthenticated reports whether a session is present.
func (a AuthState) IsAuthenticated() bool {
	return a.Session != nil
}

// Phase projects the state onto the lifecycle state machine.
func (a AuthState) Phase() Phase {
	switch {
	case !a.Ready:
		return PhaseBootstrapping
	case a.IsAuthenticated():
		return PhaseAuthenticated
	default:
		return PhaseUnauthenticated
	}
}

// Validate checks the identity/session pairing invariant.
func (a AuthState) Validate() error {
	if (a.Session == nil) != (a.Identity == nil) {
		return fmt.Errorf("%w: identity present=%t but session present=%t", sentinel.ErrInvalidState, a.Identity != nil, a.Session != nil)
	}
	return nil
}

// Phase is the coarse lifecycle position of an AuthState.
type Phase int

const (
	PhaseBootstrapping Phase = iota
	PhaseAuthenticated
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseBootstrapping:
		return "bootstrapping"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}
