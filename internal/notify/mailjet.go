package notify

import (
	"context"

	"github.com/mailjet/mailjet-apiv3-go/v4"
)

// Email is a fully rendered message ready for delivery.
type Email struct {
	From     string
	FromName string
	To       []string
	Subject  string
	Text     string
	HTML     string
}

// Transport delivers a rendered email.
type Transport interface {
	Deliver(ctx context.Context, email Email) error
}

// MailjetTransport delivers through the Mailjet Send API v3.1.
type MailjetTransport struct {
	client *mailjet.Client
}

// NewMailjetTransport constructs a MailjetTransport.
func NewMailjetTransport(apiKey, apiSecret string) *MailjetTransport {
	return &MailjetTransport{client: mailjet.NewMailjetClient(apiKey, apiSecret)}
}

// Deliver sends one message addressed to all recipients.
// The client has no context support; ctx is only checked before the call.
func (t *MailjetTransport) Deliver(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := make(mailjet.RecipientsV31, 0, len(email.To))
	for _, addr := range email.To {
		to = append(to, mailjet.RecipientV31{Email: addr})
	}

	msg := mailjet.MessagesV31{Info: []mailjet.InfoMessagesV31{{
		From:     &mailjet.RecipientV31{Email: email.From, Name: email.FromName},
		To:       &to,
		Subject:  email.Subject,
		TextPart: email.Text,
		HTMLPart: email.HTML,
	}}}

	if _, err := t.client.SendMailV31(&msg); err != nil {
		return &SendError{Provider: "mailjet", Diagnostic: err.Error(), Err: err}
	}
	return nil
}
