package events

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calorie/internal/platform/logger"
	"calorie/pkg/platform/circuit"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []Transition
	fail      bool
}

func (p *recordingPublisher) Publish(_ context.Context, t Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.published = append(p.published, t)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestWorkerPublishesUntilInboxCloses(t *testing.T) {
	inbox := make(chan Transition, 2)
	pub := &recordingPublisher{}
	inbox <- Transition{From: "bootstrapping", To: "unauthenticated"}
	inbox <- Transition{From: "unauthenticated", To: "authenticated", UserID: "u1"}
	close(inbox)

	err := NewWorker(pub, inbox, logger.Discard()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pub.count())
}

func TestWorkerSurvivesPublishFailure(t *testing.T) {
	inbox := make(chan Transition, 1)
	pub := &recordingPublisher{fail: true}
	var buf bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewWorker(pub, inbox, logger.NewWithWriter(&buf, "info")).Run(ctx) }()
	inbox <- Transition{From: "authenticated", To: "unauthenticated"}

	require.Eventually(t, func() bool { return len(inbox) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Contains(t, buf.String(), "failed to publish auth transition")
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	pub := NewLogPublisher(logger.NewWithWriter(&buf, "info"))
	require.NoError(t, pub.Publish(context.Background(), Transition{From: "a", To: "b", UserID: "u1"}))
	assert.Contains(t, buf.String(), `"user_id":"u1"`)
}

func TestWorkerFallsBackWhileCircuitOpen(t *testing.T) {
	inbox := make(chan Transition, 4)
	primary := &recordingPublisher{fail: true}
	fallback := &recordingPublisher{}
	breaker := circuit.New("kafka", circuit.WithFailureThreshold(2))

	inbox <- Transition{From: "bootstrapping", To: "unauthenticated"}
	inbox <- Transition{From: "unauthenticated", To: "authenticated", UserID: "u1"}
	inbox <- Transition{From: "authenticated", To: "unauthenticated", UserID: "u1"}
	close(inbox)

	w := NewWorker(primary, inbox, logger.Discard(), WithBreaker(breaker, fallback))
	require.NoError(t, w.Run(context.Background()))

	assert.True(t, breaker.IsOpen())
	assert.Equal(t, 0, primary.count())
	// the first failure is below the threshold and is not rerouted
	assert.Equal(t, 2, fallback.count())
}

func TestWorkerClosesCircuitWhenPrimaryRecovers(t *testing.T) {
	primary := &recordingPublisher{}
	fallback := &recordingPublisher{}
	breaker := circuit.New("kafka", circuit.WithFailureThreshold(1))
	breaker.RecordFailure()

	inbox := make(chan Transition, 1)
	inbox <- Transition{From: "unauthenticated", To: "authenticated", UserID: "u1"}
	close(inbox)

	w := NewWorker(primary, inbox, logger.Discard(), WithBreaker(breaker, fallback))
	require.NoError(t, w.Run(context.Background()))

	assert.False(t, breaker.IsOpen())
	assert.Equal(t, 1, primary.count())
	assert.Equal(t, 0, fallback.count())
}
