// Package notify delivers out-of-band failure notifications.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfell/rotator/pkg/httputil"
	"github.com/quantfell/rotator/pkg/logger"
)

// WebhookPayload is the body POSTed to the configured failure webhook.
type WebhookPayload struct {
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// WebhookNotifier POSTs failure notifications to a single webhook URL.
// A notification failure is logged and reported to the caller but must
// never take down the scheduler, so callers treat the error as advisory.
type WebhookNotifier struct {
	url    string
	client *httputil.Client
	logger *logger.Logger
}

func NewWebhookNotifier(url string, client *httputil.Client, log *logger.Logger) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: client, logger: log}
}

// NotifyFailure implements contracts.Notifier. With no URL configured it
// logs the notification and returns nil.
func (n *WebhookNotifier) NotifyFailure(ctx context.Context, subject, body string) error {
	if n.url == "" {
		n.logger.WithField("subject", subject).Warn("no webhook configured, notification logged only")
		return nil
	}

	payload := WebhookPayload{
		Subject:   subject,
		Body:      body,
		Timestamp: time.Now().UTC(),
	}

	resp, err := n.client.PostJSON(ctx, n.url, payload)
	if err != nil {
		n.logger.WithError(err).Error("webhook delivery failed")
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.WithField("status", resp.StatusCode).Error("webhook rejected notification")
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	n.logger.WithField("subject", subject).Info("failure notification delivered")
	return nil
}
