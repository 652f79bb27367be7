package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveNotification(t *testing.T) {
	before := testutil.ToFloat64(NotificationsTotal.WithLabelValues("booked", "failed"))
	ObserveNotification("booked", false)
	assert.Equal(t, before+1, testutil.ToFloat64(NotificationsTotal.WithLabelValues("booked", "failed")))
}

func TestObserveBreakerState(t *testing.T) {
	ObserveBreakerState("amqp", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(BreakerState.WithLabelValues("amqp")))

	ObserveBreakerState("amqp", "half-open")
	assert.Equal(t, 1.0, testutil.ToFloat64(BreakerState.WithLabelValues("amqp")))

	ObserveBreakerState("amqp", "closed")
	assert.Zero(t, testutil.ToFloat64(BreakerState.WithLabelValues("amqp")))
}

func TestObserveLapsed(t *testing.T) {
	before := testutil.ToFloat64(LapsedTotal)
	ObserveLapsed(3)
	assert.Equal(t, before+3, testutil.ToFloat64(LapsedTotal))
}
