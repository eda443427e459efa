package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hanse-dev/eventbocker/internal/config"
	"github.com/hanse-dev/eventbocker/internal/model"
	"github.com/hanse-dev/eventbocker/internal/notify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []notify.Email
	err  error
}

func (f *fakeTransport) Deliver(_ context.Context, email notify.Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

func (f *fakeTransport) Sent() []notify.Email {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Email(nil), f.sent...)
}

var mailCfg = config.MailConfig{
	APIKey:     "key",
	APISecret:  "secret",
	Sender:     "noreply@example.com",
	SenderName: "Veranstaltungsmanager",
	AdminEmail: "admin@example.com",
}

func berlin(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	return loc
}

func newSender(t *testing.T, mail config.MailConfig, disabled bool, transport notify.Transport) *notify.Sender {
	t.Helper()
	renderer, err := notify.NewTemplateRenderer(berlin(t))
	require.NoError(t, err)
	return notify.NewSender(mail, config.EmailsConfig{Disabled: disabled}, renderer, transport, zerolog.Nop())
}

func sampleData() notify.Data {
	return notify.Data{
		Event: &model.Event{
			ID:          "ev-1",
			Title:       "Töpferkurs <Anfänger>",
			Date:        time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC),
			Capacity:    10,
			BookedCount: 3,
			Room:        "Werkstatt",
			Price:       15,
		},
		Booking: &model.Booking{ID: "b-1", Name: "Erika Mustermann", Email: "erika@example.com", Phone: "0123"},
	}
}

func TestSend_RegistrationConfirmation(t *testing.T) {
	transport := &fakeTransport{}
	s := newSender(t, mailCfg, false, transport)

	err := s.Send(context.Background(), notify.RegistrationConfirmation, []string{"erika@example.com"}, sampleData())
	require.NoError(t, err)

	sent := transport.Sent()
	require.Len(t, sent, 1)
	email := sent[0]
	assert.Equal(t, "Anmeldebestätigung - Töpferkurs <Anfänger>", email.Subject)
	assert.Equal(t, []string{"erika@example.com"}, email.To)
	assert.Equal(t, "noreply@example.com", email.From)
	assert.Equal(t, "Veranstaltungsmanager", email.FromName)
	assert.Contains(t, email.Text, "10.06.2025 um 10:00 Uhr")
	assert.Contains(t, email.Text, "Raum: Werkstatt")
	assert.Contains(t, email.Text, "15.00 €")
	assert.Contains(t, email.HTML, "Töpferkurs &lt;Anfänger&gt;")
}

func TestSend_Disabled(t *testing.T) {
	transport := &fakeTransport{}
	s := newSender(t, config.MailConfig{}, true, transport)

	err := s.Send(context.Background(), notify.Reminder, []string{"erika@example.com"}, sampleData())
	require.NoError(t, err)
	assert.Empty(t, transport.Sent())
}

func TestSend_MissingConfiguration(t *testing.T) {
	transport := &fakeTransport{}
	s := newSender(t, config.MailConfig{Sender: "noreply@example.com"}, false, transport)

	err := s.Send(context.Background(), notify.Reminder, []string{"erika@example.com"}, sampleData())

	var cfgErr *notify.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ElementsMatch(t, []string{"mail.api_key", "mail.api_secret"}, cfgErr.Missing)
	assert.Empty(t, transport.Sent())
}

func TestSend_DeliveryFailure(t *testing.T) {
	cause := errors.New("connection refused")
	s := newSender(t, mailCfg, false, &fakeTransport{err: cause})

	err := s.Send(context.Background(), notify.Reminder, []string{"erika@example.com"}, sampleData())

	var sendErr *notify.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.ErrorIs(t, err, cause)
}

func TestSend_ProviderErrorKeepsDiagnostic(t *testing.T) {
	provErr := &notify.SendError{Provider: "mailjet", Diagnostic: "401 unauthorized", Err: errors.New("api error")}
	s := newSender(t, mailCfg, false, &fakeTransport{err: provErr})

	err := s.Send(context.Background(), notify.Reminder, []string{"erika@example.com"}, sampleData())

	var sendErr *notify.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, "mailjet", sendErr.Provider)
	assert.Equal(t, "401 unauthorized", sendErr.Diagnostic)
}

func TestSend_NoRecipients(t *testing.T) {
	transport := &fakeTransport{}
	s := newSender(t, mailCfg, false, transport)

	assert.Error(t, s.Send(context.Background(), notify.Reminder, nil, sampleData()))
	assert.Empty(t, transport.Sent())
}

func TestSendAdminNotification(t *testing.T) {
	t.Run("configured", func(t *testing.T) {
		transport := &fakeTransport{}
		s := newSender(t, mailCfg, false, transport)

		require.NoError(t, s.SendAdminNotification(context.Background(), sampleData()))
		sent := transport.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, []string{"admin@example.com"}, sent[0].To)
		assert.Equal(t, "Neue Anmeldung - Töpferkurs <Anfänger>", sent[0].Subject)
		assert.Contains(t, sent[0].Text, "erika@example.com")
		assert.Contains(t, sent[0].Text, "3 von 10")
	})

	t.Run("no admin address", func(t *testing.T) {
		transport := &fakeTransport{}
		cfg := mailCfg
		cfg.AdminEmail = ""
		s := newSender(t, cfg, false, transport)

		require.NoError(t, s.SendAdminNotification(context.Background(), sampleData()))
		assert.Empty(t, transport.Sent())
	})
}

func TestTemplateRenderer_AllKinds(t *testing.T) {
	r, err := notify.NewTemplateRenderer(berlin(t))
	require.NoError(t, err)

	data := sampleData()
	data.ResetURL = "http://localhost:8080/reset-password/token"

	for _, kind := range []notify.Kind{
		notify.RegistrationConfirmation,
		notify.AdminNotification,
		notify.Reminder,
		notify.PasswordReset,
	} {
		t.Run(string(kind), func(t *testing.T) {
			text, html, err := r.Render(kind, data)
			require.NoError(t, err)
			assert.NotEmpty(t, text)
			assert.NotEmpty(t, html)

			_, err = kind.Subject(data)
			assert.NoError(t, err)
		})
	}
}

func TestKind_UnknownSubject(t *testing.T) {
	_, err := notify.Kind("newsletter").Subject(notify.Data{})
	assert.Error(t, err)
}
