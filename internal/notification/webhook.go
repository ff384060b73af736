package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookConfig holds webhook notifier configuration
type WebhookConfig struct {
	URL     string `json:"url"`
	Enabled bool   `json:"enabled"`
}

// WebhookNotifier delivers notifications as JSON POSTs to a configured URL.
type WebhookNotifier struct {
	config WebhookConfig
	client *http.Client
}

// NewWebhookNotifier creates a webhook notification provider
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) IsEnabled() bool { return w.config.Enabled && w.config.URL != "" }

// Send posts the notification payload to the webhook URL.
func (w *WebhookNotifier) Send(n *Notification) error {
	payload, err := json.Marshal(map[string]interface{}{
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"symbol":    n.Symbol,
		"timestamp": n.Timestamp.Format(time.RFC3339),
		"extra":     n.Extra,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	resp, err := w.client.Post(w.config.URL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
