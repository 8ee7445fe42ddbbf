package observer

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSanitizeErrorType(t *testing.T) {
	tests := map[string]string{
		"":                                  "none",
		"none":                              "none",
		"database error: connection reset":  "database",
		"validation failed: visitor_phone":  "validation",
		"record not found":                  "not_found",
		"nats: no responders":               "nats",
		"context deadline exceeded":         "timeout",
		"json: cannot unmarshal string":     "unmarshal",
		"panic recovered: nil map":          "panic",
		"something else entirely":           "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeErrorType(in), in)
	}
}

func TestHelpersRespectEnabledFlag(t *testing.T) {
	t.Cleanup(func() { InitMetrics(true) })

	InitMetrics(true)
	before := testutil.ToFloat64(NotificationDeliveriesTotal.WithLabelValues("affiliate", "sent"))
	IncNotificationDelivery("affiliate", "sent")
	assert.Equal(t, before+1, testutil.ToFloat64(NotificationDeliveriesTotal.WithLabelValues("affiliate", "sent")))

	InitMetrics(false)
	assert.False(t, Enabled())
	IncNotificationDelivery("affiliate", "sent")
	assert.Equal(t, before+1, testutil.ToFloat64(NotificationDeliveriesTotal.WithLabelValues("affiliate", "sent")))
}

func TestStatusLabels(t *testing.T) {
	InitMetrics(true)

	before := testutil.ToFloat64(OperatorAlertsTotal.WithLabelValues("email", "error"))
	IncOperatorAlert("email", errors.New("smtp down"))
	assert.Equal(t, before+1, testutil.ToFloat64(OperatorAlertsTotal.WithLabelValues("email", "error")))

	beforeLead := testutil.ToFloat64(LeadsSubmittedTotal.WithLabelValues("created"))
	IncLeadSubmitted("created")
	assert.Equal(t, beforeLead+1, testutil.ToFloat64(LeadsSubmittedTotal.WithLabelValues("created")))

	ObserveDbOperationDuration("create", "lead", 3*time.Millisecond, nil)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(DatabaseOperationDurationSeconds), 1)
}
