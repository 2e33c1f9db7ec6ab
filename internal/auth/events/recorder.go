package events

import (
	"log/slog"
	"sync"
	"time"

	"calorie/internal/auth/models"
	"calorie/internal/platform/metrics"
)

const defaultCapacity = 256

// Recorder observes the session store and queues a Transition whenever the
// phase or the signed-in user changes. Queuing never blocks the store: when
// the inbox is full the transition is dropped and counted.
type Recorder struct {
	inbox   chan Transition
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	seen    bool
	phase   models.Phase
	userID  string
	dropped int64
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

func WithRecorderMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder whose inbox holds capacity transitions.
func NewRecorder(capacity int, opts ...RecorderOption) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	r := &Recorder{
		inbox:  make(chan Transition, capacity),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Observe is a state.Observer. The first state it sees is the baseline and
// produces no transition.
func (r *Recorder) Observe(s models.AuthState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	phase := s.Phase()
	userID := ""
	if s.Identity != nil {
		userID = s.Identity.ID
	}
	if !r.seen {
		r.seen, r.phase, r.userID = true, phase, userID
		return
	}
	if phase == r.phase && userID == r.userID {
		return
	}

	t := Transition{From: r.phase.String(), To: phase.String(), UserID: userID, At: r.now().UTC()}
	if t.UserID == "" {
		t.UserID = r.userID
	}
	r.phase, r.userID = phase, userID

	if r.metrics != nil {
		r.metrics.ObserveTransition(t.From, t.To)
	}
	select {
	case r.inbox <- t:
	default:
		r.dropped++
		if r.metrics != nil {
			r.metrics.EventsDropped.Inc()
		}
		r.logger.Warn("auth transition dropped, publish queue full",
			"from", t.From,
			"to", t.To,
			"user_id", t.UserID,
		)
	}
}

// Inbox is drained by a Worker.
func (r *Recorder) Inbox() <-chan Transition {
	return r.inbox
}

// Dropped returns how many transitions were discarded.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
