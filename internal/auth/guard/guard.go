// Package guard decides whether a view is reachable for a given auth state.
package guard

import "calorie/internal/auth/models"

// RouteClass tags a navigable view. The presentation layer owns the mapping
// from views to classes.
type RouteClass int

const (
	// Public views are reachable only while signed out (sign-in, sign-up).
	Public RouteClass = iota
	// Protected views are reachable only while signed in.
	Protected
)

func (c RouteClass) String() string {
	if c == Public {
		return "public"
	}
	return "protected"
}

// ParseRouteClass maps "public"/"protected" to a RouteClass.
func ParseRouteClass(s string) (RouteClass, bool) {
	switch s {
	case "public":
		return Public, true
	case "protected":
		return Protected, true
	default:
		return Protected, false
	}
}

// Outcome is the kind of a guard decision.
type Outcome int

const (
	// Pending means bootstrap has not resolved; render a loading indicator.
	Pending Outcome = iota
	Allow
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	default:
		return "redirect"
	}
}

// Decision is the guard's answer. Target is set only for Redirect.
type Decision struct {
	Outcome Outcome
	Target  string
}

// Guard holds the two redirect targets. It keeps no other state.
type Guard struct {
	unauthenticatedRoute string
	authenticatedRoute   string
}

// New builds a guard redirecting signed-out users to unauthenticatedRoute and
// signed-in users away from public views to authenticatedRoute.
func New(unauthenticatedRoute, authenticatedRoute string) Guard {
	return Guard{
		unauthenticatedRoute: unauthenticatedRoute,
		authenticatedRoute:   authenticatedRoute,
	}
}

// Decide is pure: same input, same answer, no side effects.
func (g Guard) Decide(state models.AuthState, class RouteClass) Decision {
	if !state.Ready {
		return Decision{Outcome: Pending}
	}
	authenticated := state.IsAuthenticated()
	switch {
	case class == Protected && !authenticated:
		return Decision{Outcome: Redirect, Target: g.unauthenticatedRoute}
	case class == Public && authenticated:
		return Decision{Outcome: Redirect, Target: g.authenticatedRoute}
	default:
		return Decision{Outcome: Allow}
	}
}
