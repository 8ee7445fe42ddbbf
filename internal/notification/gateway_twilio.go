package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

const (
	providerTwilio = "twilio"
	whatsappPrefix = "whatsapp:"
)

type twilioMessageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioGateway sends WhatsApp messages through the Twilio messaging API.
type TwilioGateway struct {
	api     twilioMessageCreator
	from    string
	timeout time.Duration
	logger  *zap.Logger
}

// NewTwilioGateway creates a Twilio-backed gateway. from is the WhatsApp
// enabled sender number in E.164 form.
func NewTwilioGateway(accountSID, authToken, from string, timeout time.Duration, log *zap.Logger) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioGateway{
		api:     client.Api,
		from:    whatsappAddress(from),
		timeout: timeout,
		logger:  log.Named("twilio_gateway"),
	}
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}

func (g *TwilioGateway) SendMessage(ctx context.Context, to, body string, opts SendOptions) bool {
	start := time.Now()
	err := g.send(ctx, to, body, opts)
	observer.ObserveGatewayDuration(providerTwilio, time.Since(start), err == nil)
	if err != nil {
		logger.FromContextOr(ctx, g.logger).Warn("Twilio send failed",
			zap.String("to", utils.MaskPhone(to)),
			zap.Error(err),
		)
		return false
	}
	return true
}

// send bounds the client call by ctx and the gateway timeout. The Twilio
// client call itself is not cancellable, so a late reply is dropped.
func (g *TwilioGateway) send(ctx context.Context, to, body string, opts SendOptions) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetFrom(g.from)
	params.SetTo(whatsappAddress(to))
	params.SetBody(body)
	if opts.MediaURL != "" {
		params.SetMediaUrl([]string{opts.MediaURL})
	}

	done := make(chan error, 1)
	go func() {
		resp, err := g.api.CreateMessage(params)
		if err == nil && (resp == nil || resp.Sid == nil) {
			err = fmt.Errorf("twilio returned no message sid")
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", apperrors.ErrTimeout, ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrGateway, err)
		}
		return nil
	}
}
