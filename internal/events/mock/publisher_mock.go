package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

// PublisherMock mocks events.Publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) PublishLeadCreated(ctx context.Context, event model.LeadCreatedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *PublisherMock) Publish(ctx context.Context, subject, eventID string, data []byte) error {
	args := m.Called(ctx, subject, eventID, data)
	return args.Error(0)
}
