package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	inboundTotal       *prometheus.CounterVec
	confirmedTotal     prometheus.Counter
	conflictsTotal     prometheus.Counter
	cancellationsTotal prometheus.Counter
	remindersScheduled prometheus.Counter
	remindersFired     *prometheus.CounterVec
	remindersCancelled prometheus.Counter
	handleLatency      *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "conversation",
			Name:      "inbound_events_total",
			Help:      "Total inbound chat events by kind and outcome",
		}, []string{"kind", "status"}),
		confirmedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "confirmed_total",
			Help:      "Total bookings confirmed",
		}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "conflicts_total",
			Help:      "Total confirmation attempts that lost the slot race",
		}),
		cancellationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Total bookings cancelled by clients",
		}),
		remindersScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "reminder",
			Name:      "scheduled_total",
			Help:      "Total reminder jobs scheduled",
		}),
		remindersFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "reminder",
			Name:      "fired_total",
			Help:      "Total reminder jobs fired by delivery status",
		}, []string{"status"}),
		remindersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon",
			Subsystem: "reminder",
			Name:      "cancelled_total",
			Help:      "Total reminder jobs cancelled before firing",
		}),
		handleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salon",
			Subsystem: "conversation",
			Name:      "handle_latency_seconds",
			Help:      "Latency of state machine event handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.inboundTotal,
		m.confirmedTotal,
		m.conflictsTotal,
		m.cancellationsTotal,
		m.remindersScheduled,
		m.remindersFired,
		m.remindersCancelled,
		m.handleLatency,
	)
	return m
}

func (m *BookingMetrics) ObserveInbound(kind, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *BookingMetrics) ObserveConfirmed() {
	if m == nil {
		return
	}
	m.confirmedTotal.Inc()
}

func (m *BookingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *BookingMetrics) ObserveCancellation() {
	if m == nil {
		return
	}
	m.cancellationsTotal.Inc()
}

func (m *BookingMetrics) ObserveReminderScheduled() {
	if m == nil {
		return
	}
	m.remindersScheduled.Inc()
}

func (m *BookingMetrics) ObserveReminderFired(status string) {
	if m == nil {
		return
	}
	m.remindersFired.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveReminderCancelled() {
	if m == nil {
		return
	}
	m.remindersCancelled.Inc()
}

func (m *BookingMetrics) ObserveHandleLatency(step string, seconds float64) {
	if m == nil {
		return
	}
	m.handleLatency.WithLabelValues(step).Observe(seconds)
}
