package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/settings"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

const alertTimeout = 15 * time.Second

// Alerter tells operators that deliveries keep failing.
type Alerter interface {
	Alert(ctx context.Context, breach Breach)
}

// OperatorAlerter emails the operators and stores an in-app notification.
// The two channels run concurrently and neither failure is returned.
type OperatorAlerter struct {
	mailer        Mailer
	notifications storage.OperatorNotificationRepo
	site          *settings.SiteSettings
	from          string
	logger        *zap.Logger
}

func NewOperatorAlerter(mailer Mailer, notifications storage.OperatorNotificationRepo, site *settings.SiteSettings, from string, log *zap.Logger) *OperatorAlerter {
	return &OperatorAlerter{
		mailer:        mailer,
		notifications: notifications,
		site:          site,
		from:          from,
		logger:        log.Named("operator_alerter"),
	}
}

func (a *OperatorAlerter) Alert(ctx context.Context, breach Breach) {
	log := logger.FromContextOr(ctx, a.logger)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	title := a.title(breach)
	body := alertBody(breach)

	var wg conc.WaitGroup
	wg.Go(func() {
		err := a.sendEmail(ctx, title, body)
		observer.IncOperatorAlert("email", err)
		if err != nil {
			log.Error("Failed to email operator alert", zap.Error(err))
		}
	})
	wg.Go(func() {
		err := a.storeNotification(ctx, title, body, breach)
		observer.IncOperatorAlert("in_app", err)
		if err != nil {
			log.Error("Failed to store operator notification", zap.Error(err))
		}
	})
	if recovered := wg.WaitAndRecover(); recovered != nil {
		log.Error("Operator alert panicked", zap.String("panic", recovered.String()))
	}

	log.Warn("Operators alerted about notification failures",
		zap.Int("count", breach.Count),
		zap.Duration("window", breach.Window),
	)
}

func (a *OperatorAlerter) title(breach Breach) string {
	return fmt.Sprintf("[%s] %d WhatsApp notifications failed in the last %s",
		a.site.SiteName, breach.Count, breach.Window)
}

func (a *OperatorAlerter) sendEmail(ctx context.Context, subject, body string) error {
	if a.mailer == nil {
		return nil
	}
	if len(a.site.OperatorEmails) == 0 {
		a.logger.Warn("No operator emails configured, skipping alert email")
		return nil
	}
	return a.mailer.Send(ctx, Email{
		From:    a.from,
		To:      a.site.OperatorEmails,
		Subject: subject,
		Text:    body,
	})
}

func (a *OperatorAlerter) storeNotification(ctx context.Context, title, body string, breach Breach) error {
	payload, err := json.Marshal(map[string]interface{}{
		"count":          breach.Count,
		"window_seconds": int64(breach.Window / time.Second),
		"recent":         breach.Recent,
	})
	if err != nil {
		return err
	}
	return a.notifications.Save(ctx, &model.OperatorNotification{
		Kind:    model.NotificationKindDeliveryFailures,
		Title:   title,
		Body:    body,
		Payload: datatypes.JSON(payload),
	})
}

func alertBody(breach Breach) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d lead notifications failed within %s.\n", breach.Count, breach.Window)
	if len(breach.Recent) == 0 {
		return b.String()
	}
	b.WriteString("\nMost recent failures:\n")
	for _, fc := range breach.Recent {
		fmt.Fprintf(&b, "- %s lead=%s property=%s role=%s to=%s: %s\n",
			fc.At.Format(time.RFC3339), fc.LeadID, fc.PropertyID, fc.Role, fc.Recipient, fc.Error)
	}
	return b.String()
}
