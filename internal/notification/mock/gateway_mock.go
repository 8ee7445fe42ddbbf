package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/notification"
)

var (
	_ notification.Gateway = (*GatewayMock)(nil)
	_ notification.Alerter = (*AlerterMock)(nil)
	_ notification.Mailer  = (*MailerMock)(nil)
)

// GatewayMock mocks the Gateway interface
type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) SendMessage(ctx context.Context, to, body string, opts notification.SendOptions) bool {
	return m.Called(ctx, to, body, opts).Bool(0)
}

// AlerterMock mocks the Alerter interface
type AlerterMock struct {
	mock.Mock
}

func (m *AlerterMock) Alert(ctx context.Context, breach notification.Breach) {
	m.Called(ctx, breach)
}

// MailerMock mocks the Mailer interface
type MailerMock struct {
	mock.Mock
}

func (m *MailerMock) Send(ctx context.Context, email notification.Email) error {
	return m.Called(ctx, email).Error(0)
}
