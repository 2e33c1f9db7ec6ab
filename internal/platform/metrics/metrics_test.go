package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCommand("sign_in", "success")
	m.ObserveCommand("sign_in", "success")
	m.ObserveCommand("sign_in", "authentication_failed")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthCommands.WithLabelValues("sign_in", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthCommands.WithLabelValues("sign_in", "authentication_failed")))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.Ready))
	m.ObserveTransition("bootstrapping", "unauthenticated")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Ready))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PhaseTransitions.WithLabelValues("bootstrapping", "unauthenticated")))

	m.ObserveGatewayLatency("sign_in", 12*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(m.GatewayLatency))
}
