package notifiers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ilindan-dev/windowed-notifier/internal/config"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

// EmailConfiguration is the per-notification configuration of the email channel.
type EmailConfiguration struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	HTML    bool     `json:"html,omitempty"`
}

// ParseEmailConfiguration decodes and validates an email notification's configuration.
func ParseEmailConfiguration(raw json.RawMessage) (EmailConfiguration, error) {
	var cfg EmailConfiguration
	if err := decodeConfiguration(raw, &cfg); err != nil {
		return cfg, err
	}
	if len(cfg.To) == 0 {
		return cfg, &model.ConfigurationError{Field: "to", Value: cfg.To, Err: errors.New("at least one recipient is required")}
	}
	return cfg, nil
}

// mailDialer is the part of gomail.Dialer the notifier uses.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier sends notifications via SMTP.
type EmailNotifier struct {
	Base
	dialer   mailDialer
	from     string
	renderer *Renderer
	logger   zerolog.Logger
}

// NewEmailNotifier creates a new instance of EmailNotifier.
func NewEmailNotifier(cfg config.EmailConfig, renderer *Renderer, logger *zerolog.Logger) *EmailNotifier {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return newEmailNotifier(d, cfg.From, renderer, logger)
}

func newEmailNotifier(dialer mailDialer, from string, renderer *Renderer, logger *zerolog.Logger) *EmailNotifier {
	n := &EmailNotifier{
		dialer:   dialer,
		from:     from,
		renderer: renderer,
		logger:   logger.With().Str("component", "email_notifier").Logger(),
	}
	n.Base = NewBase(TypeEmail, n)
	return n
}

// DoSend implements Sender for email.
func (n *EmailNotifier) DoSend(_ context.Context, notification *model.Notification, params map[string]any) error {
	cfg, err := ParseEmailConfiguration(notification.Configuration)
	if err != nil {
		return err
	}

	subject, err := n.renderer.Render(cfg.Subject, params)
	if err != nil {
		return fmt.Errorf("email subject: %w", err)
	}
	body, err := n.renderer.Render(cfg.Body, params)
	if err != nil {
		return fmt.Errorf("email body: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", cfg.To...)
	if len(cfg.Cc) > 0 {
		m.SetHeader("Cc", cfg.Cc...)
	}
	m.SetHeader("Subject", subject)
	if cfg.HTML {
		m.SetBody("text/html", body)
	} else {
		m.SetBody("text/plain", body)
	}

	// DialAndSend opens a connection, sends the email, and closes it.
	if err := n.dialer.DialAndSend(m); err != nil {
		n.logger.Error().Err(err).Stringer("notification_id", notification.ID).Msg("failed to send email")
		return err
	}

	n.logger.Info().Stringer("notification_id", notification.ID).Strs("recipients", cfg.To).Msg("email sent successfully")
	return nil
}

// decodeConfiguration unmarshals a raw notification configuration, reporting
// malformed payloads as configuration errors.
func decodeConfiguration(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return &model.ConfigurationError{Field: "configuration", Value: "", Err: errors.New("configuration is required")}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &model.ConfigurationError{Field: "configuration", Value: string(raw), Err: err}
	}
	return nil
}
