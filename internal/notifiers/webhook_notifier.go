package notifiers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ilindan-dev/windowed-notifier/internal/config"
	"github.com/ilindan-dev/windowed-notifier/internal/domain/model"
	"github.com/rs/zerolog"
)

// WebhookConfiguration is the per-notification configuration of the webhook channel.
// When Body is empty the parameters are posted as a JSON object.
type WebhookConfiguration struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// ParseWebhookConfiguration decodes and validates a webhook notification's configuration.
func ParseWebhookConfiguration(raw json.RawMessage) (WebhookConfiguration, error) {
	var cfg WebhookConfiguration
	if err := decodeConfiguration(raw, &cfg); err != nil {
		return cfg, err
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return cfg, &model.ConfigurationError{Field: "url", Value: cfg.URL, Err: errors.New("absolute http(s) url is required")}
	}

	cfg.Method = strings.ToUpper(cfg.Method)
	switch cfg.Method {
	case "":
		cfg.Method = http.MethodPost
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return cfg, &model.ConfigurationError{Field: "method", Value: cfg.Method, Err: errors.New("must be POST, PUT or PATCH")}
	}
	return cfg, nil
}

// WebhookNotifier delivers notifications as HTTP requests.
type WebhookNotifier struct {
	Base
	client   *http.Client
	renderer *Renderer
	logger   zerolog.Logger
}

// NewWebhookNotifier creates a new instance of WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig, renderer *Renderer, logger *zerolog.Logger) *WebhookNotifier {
	return newWebhookNotifier(&http.Client{Timeout: cfg.Timeout}, renderer, logger)
}

func newWebhookNotifier(client *http.Client, renderer *Renderer, logger *zerolog.Logger) *WebhookNotifier {
	n := &WebhookNotifier{
		client:   client,
		renderer: renderer,
		logger:   logger.With().Str("component", "webhook_notifier").Logger(),
	}
	n.Base = NewBase(TypeWebhook, n)
	return n
}

// DoSend implements Sender for webhooks.
func (n *WebhookNotifier) DoSend(ctx context.Context, notification *model.Notification, params map[string]any) error {
	cfg, err := ParseWebhookConfiguration(notification.Configuration)
	if err != nil {
		return err
	}

	var body []byte
	if cfg.Body != "" {
		rendered, err := n.renderer.Render(cfg.Body, params)
		if err != nil {
			return fmt.Errorf("webhook body: %w", err)
		}
		body = []byte(rendered)
	} else {
		body, err = json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal webhook parameters: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error().Err(err).Stringer("notification_id", notification.ID).Msg("webhook request failed")
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusMultipleChoices {
		n.logger.Error().Int("status", resp.StatusCode).Stringer("notification_id", notification.ID).Msg("webhook rejected notification")
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.Info().Stringer("notification_id", notification.ID).Int("status", resp.StatusCode).Msg("webhook delivered successfully")
	return nil
}
