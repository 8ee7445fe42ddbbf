package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	now := Now()
	assert.WithinDuration(t, time.Now().UTC(), now, 50*time.Millisecond)
	assert.Equal(t, time.UTC, now.Location())
}

func TestFormatISO8601(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, jakarta)
	assert.Equal(t, "2024-03-01T03:00:00Z", FormatISO8601(ts))
}
