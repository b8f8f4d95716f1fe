package metrics

import "github.com/prometheus/client_golang/prometheus"

// Key constants are exported primarily for documentation reasons. Typically,
// they will not be used programmatically outside of defining the collectors.

// Keys for graphsync metrics.
const (
	BootstrapTriplesTotalKey       = "graphsync_bootstrap_triples_total"
	BootstrapMalformedRowsTotalKey = "graphsync_bootstrap_malformed_rows_total"
	BootstrapDurationSecondsKey    = "graphsync_bootstrap_duration_seconds"
	NotificationsTotalKey          = "graphsync_notifications_total"
	NotificationsDroppedTotalKey   = "graphsync_notifications_dropped_total"
	ListenerReconnectsTotalKey     = "graphsync_listener_reconnects_total"
	PendingTriplesKey              = "graphsync_pending_triples"
	MergesTotalKey                 = "graphsync_merges_total"
	MergeDurationSecondsKey        = "graphsync_merge_duration_seconds"
	GatewayRequestsTotalKey        = "graphsync_gateway_requests_total"
	GatewayResponseTimeSecondsKey  = "graphsync_gateway_response_time_seconds"
	GatewayRejectedQueriesTotalKey = "graphsync_gateway_rejected_queries_total"

	Fail = "fail"
	Ok   = "ok"

	// Notification statuses.
	Malformed   = "malformed"
	Undecodable = "undecodable"
	Unsupported = "unsupported"
)

// Collectors for graphsync metrics.
var (
	BootstrapTriplesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: BootstrapTriplesTotalKey,
		Help: "Cumulative number of triples loaded at bootstrap.",
	})
	BootstrapMalformedRowsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: BootstrapMalformedRowsTotalKey,
		Help: "Cumulative number of rows skipped at bootstrap due to a malformed term.",
	})
	BootstrapDurationSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: BootstrapDurationSecondsKey,
		Help: "Duration of the completed bootstrap.",
	})
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: NotificationsTotalKey,
		Help: "Cumulative number of change notifications received.",
	}, []string{"status"})
	NotificationsDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: NotificationsDroppedTotalKey,
		Help: "Cumulative number of buffered notifications dropped due to a full buffer.",
	})
	ListenerReconnectsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: ListenerReconnectsTotalKey,
		Help: "Cumulative number of notification listener reconnections.",
	})
	PendingTriples = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: PendingTriplesKey,
		Help: "Number of triples awaiting the next flush.",
	})
	MergesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: MergesTotalKey,
		Help: "Cumulative number of graph merges.",
	}, []string{"status"})
	MergeDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: MergeDurationSecondsKey,
		Help: "Duration of graph merges.",
	})
	GatewayRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: GatewayRequestsTotalKey,
		Help: "Cumulative number of query requests.",
	}, []string{"scope", "code"})
	GatewayResponseTimeSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: GatewayResponseTimeSecondsKey,
		Help: "Response time of query requests.",
	}, []string{"scope"})
	GatewayRejectedQueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: GatewayRejectedQueriesTotalKey,
		Help: "Cumulative number of query requests rejected before execution.",
	}, []string{"reason"})
)

// GraphsyncCollectors lists collectors used by the graphsync service.
func GraphsyncCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		BootstrapTriplesTotal,
		BootstrapMalformedRowsTotal,
		BootstrapDurationSeconds,
		NotificationsTotal,
		NotificationsDroppedTotal,
		ListenerReconnectsTotal,
		PendingTriples,
		MergesTotal,
		MergeDurationSeconds,
		GatewayRequestsTotal,
		GatewayResponseTimeSeconds,
		GatewayRejectedQueriesTotal,
	}
}
