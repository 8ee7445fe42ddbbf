package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
)

const sendGridHost = "https://api.sendgrid.com"

// Email is a plain-text message to one or more recipients.
type Email struct {
	From    string
	To      []string
	Subject string
	Text    string
}

// Mailer sends operator email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

type smtpSendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers mail through an SMTP relay.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	send     smtpSendFunc
}

func NewSMTPMailer(host string, port int, username, password string) *SMTPMailer {
	return &SMTPMailer{host: host, port: port, username: username, password: password, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(email.To) == 0 {
		return fmt.Errorf("%w: no recipients", apperrors.ErrBadRequest)
	}

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := m.send(addr, auth, email.From, email.To, buildMessage(email)); err != nil {
		return fmt.Errorf("%w: smtp: %w", apperrors.ErrGateway, err)
	}
	return nil
}

func buildMessage(email Email) []byte {
	var msg strings.Builder
	msg.WriteString("From: " + email.From + "\r\n")
	msg.WriteString("To: " + strings.Join(email.To, ", ") + "\r\n")
	msg.WriteString("Subject: " + email.Subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(email.Text)
	return []byte(msg.String())
}

// SendGridMailer delivers mail through the SendGrid v3 API.
type SendGridMailer struct {
	apiKey string
	host   string
}

func NewSendGridMailer(apiKey string) *SendGridMailer {
	return &SendGridMailer{apiKey: apiKey, host: sendGridHost}
}

func (m *SendGridMailer) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("%w: no recipients", apperrors.ErrBadRequest)
	}

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail("", email.From))
	message.Subject = email.Subject
	p := mail.NewPersonalization()
	for _, to := range email.To {
		p.AddTos(mail.NewEmail("", to))
	}
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", email.Text))

	request := sendgrid.GetRequest(m.apiKey, "/v3/mail/send", m.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	resp, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("%w: sendgrid: %w", apperrors.ErrGateway, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: sendgrid status %d: %s", apperrors.ErrGateway, resp.StatusCode, resp.Body)
	}
	return nil
}
