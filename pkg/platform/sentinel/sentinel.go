package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Gateways and stores return these
// (optionally wrapped) so the synchronizer can translate them into domain errors.
//
// These represent factual states reported by a collaborator, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrExpired: session or refresh token is no longer accepted
// - ErrInvalidCredentials: the identity provider rejected the presented credentials
// - ErrInvalidState: a state write would break the session/identity pairing or readiness rules
// - ErrUnavailable: provider or backing store temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound           = errors.New("not found")
	ErrExpired            = errors.New("expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidState       = errors.New("invalid state")
	ErrUnavailable        = errors.New("unavailable")
)
