// utils/email.go
package utils

import (
	"context"
	"fmt"
	"html"
	"log"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Message is a single outgoing email.
type Message struct {
	ToName  string
	ToEmail string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers messages through a transactional mail provider.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// MailConfig selects and configures a Mailer.
type MailConfig struct {
	Provider         string // postmark, sendgrid or log
	PostmarkAPIToken string
	SendgridAPIKey   string
	SenderEmail      string
	SenderName       string
}

// NewMailer returns the Mailer named by cfg.Provider.
func NewMailer(cfg MailConfig) (Mailer, error) {
	switch cfg.Provider {
	case "postmark":
		if cfg.PostmarkAPIToken == "" {
			return nil, fmt.Errorf("POSTMARK_API_TOKEN is not set")
		}
		return &PostmarkMailer{client: postmark.NewClient(cfg.PostmarkAPIToken, ""), from: cfg.SenderEmail}, nil
	case "sendgrid":
		if cfg.SendgridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
		}
		return &SendgridMailer{client: sendgrid.NewSendClient(cfg.SendgridAPIKey), fromName: cfg.SenderName, fromEmail: cfg.SenderEmail}, nil
	case "", "log":
		return LogMailer{}, nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// PostmarkMailer sends email using Postmark.
type PostmarkMailer struct {
	client *postmark.Client
	from   string
}

func (m *PostmarkMailer) Send(_ context.Context, msg Message) error {
	_, err := m.client.SendEmail(postmark.Email{
		From:     m.from,
		To:       msg.ToEmail,
		Subject:  msg.Subject,
		HtmlBody: msg.HTML,
		TextBody: msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendgridMailer sends email using SendGrid.
type SendgridMailer struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
}

func (m *SendgridMailer) Send(_ context.Context, msg Message) error {
	from := mail.NewEmail(m.fromName, m.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	response, err := m.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}
	return nil
}

// LogMailer prints messages instead of sending them. Used in development.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	log.Printf("mail to %s <%s>: %s\n%s", msg.ToName, msg.ToEmail, msg.Subject, msg.Text)
	return nil
}

// EmailService composes the application's emails on top of a Mailer.
type EmailService struct {
	mailer Mailer
}

func NewEmailService(mailer Mailer) *EmailService {
	return &EmailService{mailer: mailer}
}

// SendPasswordReset mails the reset URL to the user.
func (es *EmailService) SendPasswordReset(ctx context.Context, toName, toEmail, resetURL string) error {
	text := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\nIf you didn't forget your password, please ignore this email!", resetURL)
	htmlContent := fmt.Sprintf(
		"<p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to:</p><p><a href=\"%s\">%s</a></p><p>If you didn't forget your password, please ignore this email!</p>",
		html.EscapeString(resetURL), html.EscapeString(resetURL),
	)
	return es.mailer.Send(ctx, Message{
		ToName:  toName,
		ToEmail: toEmail,
		Subject: "Your password reset token (valid for 10 min)",
		Text:    text,
		HTML:    htmlContent,
	})
}
