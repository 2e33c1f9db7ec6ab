// Package synchronizer keeps the local session store consistent with the
// identity gateway's session lifecycle.
//
// On Start it subscribes to gateway events and issues one bootstrap fetch.
// Every observed session (pushed event, bootstrap result, command result) is
// written to the store as soon as it arrives; the last write wins. Store
// writes are serialized by the synchronizer's write mutex so the store only
// ever has one writer. Stop may be called from anywhere, including a store
// observer or gateway listener running inside one of those writes.
package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"calorie/internal/auth/gateway"
	"calorie/internal/auth/models"
	"calorie/internal/auth/state"
	"calorie/internal/platform/metrics"
	dErrors "calorie/pkg/domain-errors"
	"calorie/pkg/platform/sentinel"
)

const tracerName = "calorie/internal/auth/synchronizer"

// Gateway operation names used for spans, metrics and logs.
const (
	opFetch         = "fetch_current_session"
	opSignIn        = "sign_in"
	opSignUp        = "sign_up"
	opSignOut       = "sign_out"
	opRefresh       = "refresh"
	opUpdateProfile = "update_profile"
)

// Synchronizer bridges a gateway.Gateway into a state.Store.
type Synchronizer struct {
	gateway gateway.Gateway
	store   *state.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	strict  bool

	writeMu sync.Mutex
	stopped atomic.Bool

	mu      sync.Mutex
	started bool
	sub     gateway.Subscription
	ready   chan struct{}
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// WithTracer overrides the OpenTelemetry tracer (defaults to the global provider).
func WithTracer(t trace.Tracer) Option {
	return func(s *Synchronizer) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithStrictTransitions makes a rejected store write panic instead of only
// being logged and returned. Meant for development builds.
func WithStrictTransitions(strict bool) Option {
	return func(s *Synchronizer) {
		s.strict = strict
	}
}

// New wires a synchronizer. Nothing happens until Start.
func New(gw gateway.Gateway, store *state.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		gateway: gw,
		store:   store,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start subscribes to gateway events and launches the bootstrap fetch in the
// background. It returns immediately. The bootstrap fetch uses ctx.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return dErrors.New(dErrors.CodeInvalidStateTransition, "synchronizer already started")
	}
	s.started = true
	s.mu.Unlock()

	// Subscribe outside the lock: gateways may deliver an initial event
	// synchronously from OnSessionChanged.
	sub := s.gateway.OnSessionChanged(s.handleEvent)

	s.mu.Lock()
	if s.stopped.Load() {
		s.mu.Unlock()
		sub.Unsubscribe()
		close(s.ready)
		return nil
	}
	s.sub = sub
	s.mu.Unlock()

	go s.bootstrap(ctx)
	return nil
}

// Stop releases the gateway subscription. After Stop the store is never
// written again. Stop is idempotent and never waits on an in-flight write.
func (s *Synchronizer) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Ready is closed once the bootstrap fetch has resolved (or Stop preempted it).
func (s *Synchronizer) Ready() <-chan struct{} {
	return s.ready
}

// WaitReady blocks until Ready is closed or ctx is done.
func (s *Synchronizer) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current store snapshot.
func (s *Synchronizer) State() models.AuthState {
	return s.store.Get()
}

func (s *Synchronizer) bootstrap(ctx context.Context) {
	defer close(s.ready)

	session, err := observe(ctx, s, opFetch, func(ctx context.Context) (*models.Session, error) {
		return s.gateway.FetchCurrentSession(ctx)
	})

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.stopped.Load() {
		return
	}

	next := models.NewAuthState(session, true)
	if err != nil {
		// Never leave the UI stuck loading: keep whatever session events
		// already delivered and mark the store ready.
		s.logger.WarnContext(ctx, "bootstrap session fetch failed", "error", err)
		current := s.store.Get()
		next = models.AuthState{Session: current.Session, Identity: current.Identity, Ready: true}
	}
	if err := s.write(ctx, next, opFetch); err != nil {
		return
	}
	s.logger.InfoContext(ctx, "auth bootstrap resolved", "authenticated", next.IsAuthenticated())
}

func (s *Synchronizer) handleEvent(event models.SessionEvent) {
	ctx := context.Background()
	s.logger.DebugContext(ctx, "auth state changed", "event", string(event.Kind), "authenticated", event.Session != nil)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.stopped.Load() {
		return
	}
	_ = s.write(ctx, models.NewAuthState(event.Session, s.store.Get().Ready), "event")
}

// apply writes a command result, keeping the current Ready flag.
func (s *Synchronizer) apply(ctx context.Context, session *models.Session, op string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.stopped.Load() {
		return nil
	}
	return s.write(ctx, models.NewAuthState(session, s.store.Get().Ready), op)
}

// write must be called with s.writeMu held.
func (s *Synchronizer) write(ctx context.Context, next models.AuthState, source string) error {
	if err := s.store.Set(next); err != nil {
		s.logger.ErrorContext(ctx, "rejected auth state write", "source", source, "error", err)
		if s.strict {
			panic(fmt.Sprintf("synchronizer: rejected auth state write from %s: %v", source, err))
		}
		return err
	}
	return nil
}

// observe runs one gateway call inside a span and records its latency.
func observe[T any](ctx context.Context, s *Synchronizer, op string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "auth.gateway."+op)
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)
	if s.metrics != nil {
		s.metrics.ObserveGatewayLatency(op, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// translate converts a gateway failure into the domain error taxonomy.
func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrInvalidCredentials):
		return dErrors.Wrap(err, dErrors.CodeAuthenticationFailed, gateway.Message(err))
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.Wrap(err, dErrors.CodeSessionExpired, "session expired, sign in again")
	default:
		return dErrors.Wrap(err, dErrors.CodeGateway, "identity provider unavailable")
	}
}

func (s *Synchronizer) record(command string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(dErrors.CodeOf(err))
	}
	s.metrics.ObserveCommand(command, outcome)
}
