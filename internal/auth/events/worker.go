package events

import (
	"context"
	"log/slog"

	"calorie/pkg/platform/circuit"
)

// Worker consumes transitions from an inbox and publishes them. A failed
// publish is logged and skipped; the auth flow never waits on the broker.
type Worker struct {
	publisher Publisher
	inbox     <-chan Transition
	logger    *slog.Logger

	breaker  *circuit.Breaker
	fallback Publisher
}

type WorkerOption func(*Worker)

// WithBreaker routes transitions to fallback while the breaker is open.
// The primary publisher is still tried for every transition so the
// circuit can close again.
func WithBreaker(b *circuit.Breaker, fallback Publisher) WorkerOption {
	return func(w *Worker) {
		w.breaker = b
		w.fallback = fallback
	}
}

func NewWorker(publisher Publisher, inbox <-chan Transition, logger *slog.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{publisher: publisher, inbox: inbox, logger: logger}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until ctx is done or the inbox is closed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.publish(ctx, t)
		}
	}
}

func (w *Worker) publish(ctx context.Context, t Transition) {
	err := w.publisher.Publish(ctx, t)
	if w.breaker == nil {
		if err != nil {
			w.logPublishError(ctx, t, err)
		}
		return
	}

	if err == nil {
		usePrimary, change := w.breaker.RecordSuccess()
		if change.Closed {
			w.logger.InfoContext(ctx, "publisher circuit closed", "circuit", w.breaker.Name())
		}
		if !usePrimary {
			w.publishFallback(ctx, t)
		}
		return
	}

	w.logPublishError(ctx, t, err)
	useFallback, change := w.breaker.RecordFailure()
	if change.Opened {
		w.logger.WarnContext(ctx, "publisher circuit opened", "circuit", w.breaker.Name())
	}
	if useFallback {
		w.publishFallback(ctx, t)
	}
}

func (w *Worker) publishFallback(ctx context.Context, t Transition) {
	if w.fallback == nil {
		return
	}
	if err := w.fallback.Publish(ctx, t); err != nil {
		w.logPublishError(ctx, t, err)
	}
}

func (w *Worker) logPublishError(ctx context.Context, t Transition, err error) {
	w.logger.ErrorContext(ctx, "failed to publish auth transition",
		"from", t.From,
		"to", t.To,
		"error", err,
	)
}
