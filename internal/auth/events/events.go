// Package events turns session store writes into lifecycle transitions and
// ships them to a publisher off the write path.
package events

import (
	"context"
	"time"
)

// Transition is one lifecycle change: a phase change, or a switch to a
// different user without passing through signed out.
type Transition struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	UserID string    `json:"user_id,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher delivers transitions somewhere durable or visible.
type Publisher interface {
	Publish(ctx context.Context, t Transition) error
}
