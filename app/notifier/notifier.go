package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Notification kinds.
const (
	KindNew            = "new"
	KindUpdated        = "updated"
	KindSystemUnstable = "systemUnstable"
)

// Payload is the message handed to the host notification service.
type Payload struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier delivers notifications to a host service. Delivery is
// fire-and-forget: failures are logged by callers and never fail a run.
type Notifier interface {
	Notify(ctx context.Context, kind string, payload Payload) error
}

var _ Notifier = (*WebhookNotifier)(nil)

// WebhookNotifier posts notifications as JSON to a configured webhook.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, kind string, payload Payload) error {
	if n.webhookURL == "" {
		return fmt.Errorf("webhook notifier misconfigured")
	}

	body, err := json.Marshal(map[string]string{
		"kind":    kind,
		"title":   payload.Title,
		"message": payload.Message,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook error: %s", resp.Status)
	}

	return nil
}

var _ Notifier = (*LogNotifier)(nil)

// LogNotifier is used when no webhook is configured: notifications land
// in the service log instead of being dropped silently.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, kind string, payload Payload) error {
	slog.Info("Notification", "kind", kind, "title", payload.Title, "message", payload.Message)
	return nil
}
