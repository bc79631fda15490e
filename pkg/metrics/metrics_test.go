package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	m := New("scheduler", prometheus.NewRegistry())

	m.ObserveBooking("success")
	m.ObserveBooking("slot_unavailable")
	m.ObserveBooking("success")
	m.ObserveTransition("pending", "confirmed", "success")
	m.ObserveAvailabilityUpdate()
	m.ObserveDatabase("get_pending_events", errors.New("timeout"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Bookings.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Bookings.WithLabelValues("slot_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("pending", "confirmed", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AvailabilityUpdates))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("get_pending_events", "error")))
}

func TestMetrics_Outbox(t *testing.T) {
	m := New("scheduler", prometheus.NewRegistry())

	m.ObserveOutboxProcessed()
	m.ObserveOutboxRetry("appointment.booked")
	m.ObserveOutboxRetry("appointment.booked")
	m.ObserveOutboxFailed()
	m.ObserveOutboxCleaned(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OutboxRetries.WithLabelValues("appointment.booked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutboxEventsFailed))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.OutboxEventsCleaned))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBooking("success")
		m.ObserveTransition("pending", "confirmed", "success")
		m.ObserveAvailabilityUpdate()
		m.ObserveDatabase("op", nil)
		m.ObserveNotification("appointment.booked", nil)
		m.ObserveOutboxBatch(time.Second)
		m.ObserveOutboxProcessed()
		m.ObserveOutboxRetry("appointment.booked")
		m.ObserveOutboxFailed()
		m.ObserveOutboxCleaned(3)
	})
}
