package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WasteEntriesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medwaste_waste_entries_recorded_total",
		Help: "Total number of waste disposals recorded in the ledger.",
	})

	PickupRequestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medwaste_pickup_requests_created_total",
		Help: "Total number of pickup requests opened, automatically or manually.",
	})

	PickupRequestsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medwaste_pickup_requests_completed_total",
		Help: "Total number of pickup requests completed by waste handlers.",
	})

	OperationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medwaste_operation_errors_total",
		Help: "Total number of errors encountered during specific operations.",
	},
		[]string{"operation"},
	)

	ActivityLogFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medwaste_activity_log_failures_total",
		Help: "Total number of activity log entries that could not be written.",
	})

	OutboxPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medwaste_outbox_published_total",
		Help: "Total number of outbox events delivered to the broker.",
	})

	OutboxFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "medwaste_outbox_failures_total",
		Help: "Total number of failed outbox delivery attempts.",
	})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "medwaste_websocket_clients",
		Help: "Current number of connected dashboard websocket clients.",
	})

	PushNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medwaste_push_notifications_total",
		Help: "Total number of push notifications attempted, by result.",
	},
		[]string{"result"},
	)
)
