package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "affiliate_lead_service"

var (
	metricsEnabled = true // Flag to control metric collection

	// Referral, visit and lead counters
	ReferralResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "referral_resolutions_total",
			Help:      "Referral code lookups, labeled by result (resolved, unknown, error).",
		},
		[]string{"result"},
	)
	VisitsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_recorded_total",
			Help:      "Visit writes, labeled by status (success, error).",
		},
		[]string{"status"},
	)
	LeadsSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_submitted_total",
			Help:      "Lead submissions, labeled by outcome.",
		},
		[]string{"status"},
	)
)

// Event consumer metrics
var (
	eventProcessingLabels = []string{"event_type", "consumer_type"}
	eventActionLabels     = []string{"event_type", "consumer_type", "action", "error_type"}

	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of events received from NATS, labeled by consumer type.",
		},
		eventProcessingLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Total number of events successfully processed and acknowledged.",
		},
		eventProcessingLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of events that failed processing (Nak, DLQ or error).",
		},
		eventProcessingLabels,
	)
	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_processing_duration_seconds",
			Help:      "Histogram of event processing durations.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		eventProcessingLabels,
	)
	EventProcessingActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_processing_actions_total",
			Help:      "Actions taken after event processing (ack, nak, dlq), labeled by error type.",
		},
		eventActionLabels,
	)
)

// Notification metrics
var (
	NotificationDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_total",
			Help:      "WhatsApp deliveries, labeled by recipient role and status (sent, failed, skipped).",
		},
		[]string{"role", "status"},
	)
	GatewayRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Histogram of WhatsApp gateway call durations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "status"},
	)
	FailureBreachesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failure_breaches_total",
		Help:      "Number of times the rolling delivery failure count reached the alert threshold.",
	})
	OperatorAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operator_alerts_total",
			Help:      "Operator alerts, labeled by channel (email, in_app) and status.",
		},
		[]string{"channel", "status"},
	)
	notificationQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "notification_queue_length",
		Help:      "Deliveries waiting for a free worker in the notification pool.",
	})
	OutboxRelayTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_relay_total",
			Help:      "Outbox rows handled by the relay, labeled by status (published, failed).",
		},
		[]string{"status"},
	)
)

// Metrics related to DLQ processing
var (
	dlqFetchRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dlq_fetch_requests_total",
		Help:      "Total number of fetch requests made to the DLQ stream.",
	})
	dlqFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dlq_fetch_errors_total",
		Help:      "Total number of errors encountered during DLQ fetch requests.",
	})
	dlqQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dlq_queue_length",
		Help:      "Current number of messages waiting for a DLQ worker.",
	})
	dlqWorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "dlq_workers_active",
		Help:      "Current number of active worker goroutines in the DLQ pool.",
	})

	dlqSubjectLabels = []string{"source_subject"}

	dlqTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_tasks_submitted_total",
			Help:      "Total number of tasks submitted to the DLQ worker pool.",
		},
		dlqSubjectLabels,
	)
	dlqProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dlq_processing_duration_seconds",
			Help:      "Histogram of processing durations for DLQ messages.",
			Buckets:   prometheus.DefBuckets,
		},
		dlqSubjectLabels,
	)
	dlqTaskRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_task_retries_total",
			Help:      "Total number of retry attempts (NAKs with delay) for DLQ messages.",
		},
		dlqSubjectLabels,
	)
	dlqAcksSuccessTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_acks_success_total",
			Help:      "Total number of successful acknowledgements for DLQ messages.",
		},
		dlqSubjectLabels,
	)
	dlqAcksFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_acks_failure_total",
			Help:      "Total number of failed acknowledgements (NAK, Term) for DLQ messages, excluding retries.",
		},
		dlqSubjectLabels,
	)
	dlqTasksDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dlq_tasks_dropped_total",
			Help:      "Total number of DLQ messages persisted as exhausted after max retries.",
		},
		dlqSubjectLabels,
	)
)

// Labels for database operations
var (
	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Histogram of database operation durations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		[]string{"operation", "entity", "status"},
	)
)

// Load generator metrics
var (
	loadgenRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loadgen_requests_total",
			Help:      "Requests sent by the load generator, labeled by kind (referral, inquiry) and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

// InitMetrics turns metric collection on or off. Call it once during startup.
// Collectors are registered by promauto either way.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

// Enabled reports whether helpers record anything.
func Enabled() bool {
	return metricsEnabled
}

func IncReferralResolution(result string) {
	if !metricsEnabled {
		return
	}
	ReferralResolutionsTotal.WithLabelValues(result).Inc()
}

func IncVisitRecorded(status string) {
	if !metricsEnabled {
		return
	}
	VisitsRecordedTotal.WithLabelValues(status).Inc()
}

func IncLeadSubmitted(status string) {
	if !metricsEnabled {
		return
	}
	LeadsSubmittedTotal.WithLabelValues(status).Inc()
}

// IncEventsReceived increments the events received counter.
func IncEventsReceived(eventType, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(sanitizeLabel(eventType), consumerType).Inc()
}

// IncEventsProcessed increments the events processed counter.
func IncEventsProcessed(eventType, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(sanitizeLabel(eventType), consumerType).Inc()
}

// IncEventsFailed increments the events failed counter.
func IncEventsFailed(eventType, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(sanitizeLabel(eventType), consumerType).Inc()
}

// ObserveEventProcessingDuration records the processing time for a specific event.
func ObserveEventProcessingDuration(eventType, consumerType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventProcessingDurationSeconds.WithLabelValues(sanitizeLabel(eventType), consumerType).Observe(duration.Seconds())
}

// IncEventProcessingAction increments the counter for a specific processing outcome.
func IncEventProcessingAction(eventType, consumerType, action, errorType string) {
	if !metricsEnabled {
		return
	}
	EventProcessingActionsTotal.WithLabelValues(sanitizeLabel(eventType), consumerType, action, SanitizeErrorType(errorType)).Inc()
}

func IncNotificationDelivery(role, status string) {
	if !metricsEnabled {
		return
	}
	NotificationDeliveriesTotal.WithLabelValues(role, status).Inc()
}

// ObserveGatewayDuration records one gateway call.
func ObserveGatewayDuration(provider string, duration time.Duration, ok bool) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if !ok {
		status = "error"
	}
	GatewayRequestDurationSeconds.WithLabelValues(provider, status).Observe(duration.Seconds())
}

func IncFailureBreach() {
	if !metricsEnabled {
		return
	}
	FailureBreachesTotal.Inc()
}

func IncOperatorAlert(channel string, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	OperatorAlertsTotal.WithLabelValues(channel, status).Inc()
}

func SetNotificationQueueLength(length int) {
	if !metricsEnabled {
		return
	}
	notificationQueueLength.Set(float64(length))
}

func IncOutboxRelay(status string) {
	if !metricsEnabled {
		return
	}
	OutboxRelayTotal.WithLabelValues(status).Inc()
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, status).Observe(duration.Seconds())
}

// --- DLQ Metric Helpers ---

// IncDlqFetchRequest increments the DLQ fetch request counter.
func IncDlqFetchRequest() {
	if metricsEnabled {
		dlqFetchRequestsTotal.Inc()
	}
}

// IncDlqFetchError increments the DLQ fetch error counter.
func IncDlqFetchError() {
	if metricsEnabled {
		dlqFetchErrorsTotal.Inc()
	}
}

// SetDlqQueueLength sets the number of DLQ tasks waiting for a worker.
func SetDlqQueueLength(length int) {
	if metricsEnabled {
		dlqQueueLength.Set(float64(length))
	}
}

// SetDlqWorkersActive sets the current number of active DLQ workers.
func SetDlqWorkersActive(count int) {
	if metricsEnabled {
		dlqWorkersActive.Set(float64(count))
	}
}

func IncDlqTasksSubmitted(subject string) {
	if metricsEnabled {
		dlqTasksSubmittedTotal.WithLabelValues(sanitizeLabel(subject)).Inc()
	}
}

func ObserveDlqProcessingDuration(subject string, duration time.Duration) {
	if metricsEnabled {
		dlqProcessingDurationSeconds.WithLabelValues(sanitizeLabel(subject)).Observe(duration.Seconds())
	}
}

func IncDlqTaskRetry(subject string) {
	if metricsEnabled {
		dlqTaskRetriesTotal.WithLabelValues(sanitizeLabel(subject)).Inc()
	}
}

func IncDlqAckSuccess(subject string) {
	if metricsEnabled {
		dlqAcksSuccessTotal.WithLabelValues(sanitizeLabel(subject)).Inc()
	}
}

func IncDlqAckFailure(subject string) {
	if metricsEnabled {
		dlqAcksFailureTotal.WithLabelValues(sanitizeLabel(subject)).Inc()
	}
}

func IncDlqTasksDropped(subject string) {
	if metricsEnabled {
		dlqTasksDroppedTotal.WithLabelValues(sanitizeLabel(subject)).Inc()
	}
}

func sanitizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// SanitizeErrorType maps an error string to a small set of categories.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	lower := strings.ToLower(errStr)
	switch {
	case strings.Contains(lower, "database"), strings.Contains(lower, "sql"), strings.Contains(lower, "duplicate key"), strings.Contains(lower, "constraint"), strings.Contains(lower, "connection"):
		return "database"
	case strings.Contains(lower, "validation failed"), strings.Contains(lower, "bad request"), strings.Contains(lower, "invalid"), strings.Contains(lower, "missing field"):
		return "validation"
	case strings.Contains(lower, "not found"), strings.Contains(lower, "no rows"):
		return "not_found"
	case strings.Contains(lower, "nats"), strings.Contains(lower, "jetstream"):
		return "nats"
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline exceeded"):
		return "timeout"
	case strings.Contains(lower, "unmarshal"), strings.Contains(lower, "json"):
		return "unmarshal"
	case strings.Contains(lower, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}

// IncLoadgenRequest counts one load generator request. outcome is a status
// class such as 2xx, 4xx or error.
func IncLoadgenRequest(kind, outcome string) {
	if !metricsEnabled {
		return
	}
	loadgenRequestsTotal.WithLabelValues(kind, outcome).Inc()
}
