package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	clientmock "gitlab.com/timkado/api/affiliate-lead-service/internal/jetstream/mock"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

func TestPublisher_PublishLeadCreated(t *testing.T) {
	client := new(clientmock.ClientMock)
	p := NewPublisher(client)
	affID := "aff-1"
	event := model.LeadCreatedEvent{
		EventID:     "evt-1",
		LeadID:      "lead-1",
		PropertyID:  "prop-1",
		AffiliateID: &affID,
		OccurredAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	client.On("Publish", mock.Anything, "v1.leads.created", mock.MatchedBy(func(data []byte) bool {
		var got model.LeadCreatedEvent
		require.NoError(t, json.Unmarshal(data, &got))
		return got.LeadID == "lead-1" && got.AffiliateID != nil && *got.AffiliateID == "aff-1"
	}), map[string]string{nats.MsgIdHdr: "evt-1"}).Return(nil)

	require.NoError(t, p.PublishLeadCreated(context.Background(), event))
	client.AssertExpectations(t)
}

func TestPublisher_Publish_WrapsNATSError(t *testing.T) {
	client := new(clientmock.ClientMock)
	p := NewPublisher(client)
	client.On("Publish", mock.Anything, "v1.leads.created", []byte(`{}`), map[string]string{}).
		Return(errors.New("nats: no responders available for request"))

	err := p.Publish(context.Background(), "v1.leads.created", "", []byte(`{}`))
	assert.ErrorIs(t, err, apperrors.ErrNATS)
}
