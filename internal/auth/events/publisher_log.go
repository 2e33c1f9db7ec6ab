package events

import (
	"context"
	"log/slog"
)

// LogPublisher writes transitions to the structured log. It is the
// publisher when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, t Transition) error {
	p.logger.InfoContext(ctx, "auth transition",
		"from", t.From,
		"to", t.To,
		"user_id", t.UserID,
		"at", t.At,
	)
	return nil
}
