package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_tracking_events_sent_total",
		Help: "Tracking events dispatched, labelled by channel and event name.",
	}, []string{"channel", "event"})

	eventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_tracking_events_skipped_total",
		Help: "Tracking events skipped, labelled by reason (consent, config).",
	}, []string{"reason"})

	relayDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "capture_relay_deliveries_total",
		Help: "Best-effort webhook relay deliveries attempted, labelled by kind.",
	}, []string{"kind"})
)
