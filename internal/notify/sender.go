package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hanse-dev/eventbocker/internal/config"
	"github.com/rs/zerolog"
)

// Sender renders and dispatches one email per call.
type Sender struct {
	mail      config.MailConfig
	disabled  bool
	renderer  Renderer
	transport Transport
	logger    zerolog.Logger
}

// NewSender constructs a Sender.
func NewSender(mail config.MailConfig, emails config.EmailsConfig, renderer Renderer, transport Transport, logger zerolog.Logger) *Sender {
	return &Sender{
		mail:      mail,
		disabled:  emails.Disabled,
		renderer:  renderer,
		transport: transport,
		logger:    logger.With().Str("component", "notify").Logger(),
	}
}

// Send renders kind with data and delivers it to recipients.
//
// With emails disabled the message is logged and nil is returned. Missing
// credentials yield a *ConfigurationError; a failed delivery a *SendError.
func (s *Sender) Send(ctx context.Context, kind Kind, recipients []string, data Data) error {
	subject, err := kind.Subject(data)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return fmt.Errorf("send %s: no recipients", kind)
	}

	if s.disabled {
		s.logger.Info().
			Str("kind", string(kind)).
			Str("subject", subject).
			Strs("recipients", recipients).
			Msg("emails disabled, not sending")
		return nil
	}

	if err := s.checkConfig(); err != nil {
		return err
	}

	text, html, err := s.renderer.Render(kind, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", kind, err)
	}

	fromName := s.mail.SenderName
	if fromName == "" {
		fromName = s.mail.Sender
	}

	err = s.transport.Deliver(ctx, Email{
		From:     s.mail.Sender,
		FromName: fromName,
		To:       recipients,
		Subject:  subject,
		Text:     text,
		HTML:     html,
	})
	if err != nil {
		var sendErr *SendError
		if !errors.As(err, &sendErr) {
			err = &SendError{Provider: "unknown", Err: err}
		}
		s.logger.Error().Err(err).
			Str("kind", string(kind)).
			Strs("recipients", recipients).
			Msg("failed to send email")
		return err
	}

	s.logger.Info().
		Str("kind", string(kind)).
		Strs("recipients", recipients).
		Msg("email sent")
	return nil
}

// SendAdminNotification notifies the configured admin address. Without one
// the notice is skipped with a warning.
func (s *Sender) SendAdminNotification(ctx context.Context, data Data) error {
	if s.mail.AdminEmail == "" {
		s.logger.Warn().Msg("admin email not configured, skipping admin notification")
		return nil
	}
	return s.Send(ctx, AdminNotification, []string{s.mail.AdminEmail}, data)
}

func (s *Sender) checkConfig() error {
	var missing []string
	if strings.TrimSpace(s.mail.APIKey) == "" {
		missing = append(missing, "mail.api_key")
	}
	if strings.TrimSpace(s.mail.APISecret) == "" {
		missing = append(missing, "mail.api_secret")
	}
	if strings.TrimSpace(s.mail.Sender) == "" {
		missing = append(missing, "mail.sender")
	}
	if len(missing) > 0 {
		return &ConfigurationError{Missing: missing}
	}
	return nil
}
