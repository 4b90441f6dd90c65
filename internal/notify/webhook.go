package notify

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// WebhookSink posts notifications as JSON to a user-configured
// endpoint.
type WebhookSink struct {
	url    string
	client *resty.Client
}

var _ Sink = (*WebhookSink)(nil)

func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

func (w *WebhookSink) Name() string {
	return "webhook"
}

func (w *WebhookSink) Emit(notification Notification) error {
	resp, err := w.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(notification).
		Post(w.url)

	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}
