// Package email delivers transactional mail through SendGrid, or prints it when no API key is
// configured.
package email

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const defaultSendGridHost = "https://api.sendgrid.com"

// Message is one outgoing email. Category tags it in SendGrid's activity feed.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTML     string
	Text     string
	Category string
}

func (m Message) validate() error {
	if m.To == "" {
		return errors.New("email: recipient is required")
	}
	if m.Subject == "" {
		return errors.New("email: subject is required")
	}
	return nil
}

// Service sends Messages from a fixed sender.
type Service struct {
	fromEmail string
	fromName  string
	apiKey    string
	host      string
}

// NewService creates the sender. Without a SendGrid key messages are only logged.
func NewService(fromEmail, fromName, sendGridAPIKey string) *Service {
	if sendGridAPIKey != "" {
		log.Printf("✅ Email service initialized with SendGrid")
	} else {
		log.Printf("⚠️  Email service in console-only mode (set SENDGRID_API_KEY for production)")
	}
	return &Service{
		fromEmail: fromEmail,
		fromName:  fromName,
		apiKey:    sendGridAPIKey,
		host:      defaultSendGridHost,
	}
}

// Live reports whether messages actually leave the process.
func (s *Service) Live() bool {
	return s.apiKey != ""
}

// Send delivers msg.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	if !s.Live() {
		log.Printf("📧 [EMAIL] %s -> %s (not sent, console mode)", msg.Subject, msg.To)
		return nil
	}

	message := mail.NewSingleEmail(
		mail.NewEmail(s.fromName, s.fromEmail),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Text,
		msg.HTML,
	)
	if msg.Category != "" {
		message.AddCategories(msg.Category)
	}

	request := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	request.Method = "POST"
	request.Body = mail.GetRequestBody(message)

	response, err := sendgrid.MakeRequestWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned error status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}
