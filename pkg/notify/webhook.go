package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single delivery attempt
const DefaultTimeout = 10 * time.Second

// Notifier delivers a titled message to operators
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// slackPayload is the incoming-webhook message body
type slackPayload struct {
	Channel   string `json:"channel,omitempty"`
	Text      string `json:"text"`
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji"`
}

// WebhookNotifier posts Slack-compatible messages to an incoming webhook
type WebhookNotifier struct {
	url     string
	channel string
	client  *http.Client
}

// NewWebhookNotifier creates a notifier for url posting into channel
func NewWebhookNotifier(url, channel string) *WebhookNotifier {
	return &WebhookNotifier{
		url:     url,
		channel: channel,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

// Notify sends one message. There is no retry: delivery is best effort.
func (n *WebhookNotifier) Notify(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(slackPayload{
		Channel:   n.channel,
		Text:      fmt.Sprintf("*%s*\n%s", title, body),
		Username:  "Self-Healing Controller",
		IconEmoji: ":robot_face:",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
