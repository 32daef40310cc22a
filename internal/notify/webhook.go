// Package notify delivers incident notifications to on-call engineers
// and tracks acknowledgement against SLA targets. Delivery channels are
// capability interfaces; the webhook implementation ships in-repo.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/remedyops/remedy/internal/models"
)

// Notifier makes one delivery attempt for a notification. Retries and
// attempt accounting belong to the Manager; implementations must
// respect the context deadline.
type Notifier interface {
	Send(ctx context.Context, n *models.Notification, inc *models.Incident, ackURL string) error
}

// WebhookNotifier posts incident notifications as JSON to a fixed
// endpoint (Slack-compatible payload shape).
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	NotificationID string `json:"notificationId"`
	IncidentID     string `json:"incidentId"`
	Title          string `json:"title"`
	Severity       string `json:"severity"`
	Service        string `json:"service"`
	Status         string `json:"status"`
	Engineer       string `json:"engineer"`
	AckURL         string `json:"ackUrl,omitempty"`
	Text           string `json:"text"`
}

// Send posts the payload once. Any non-2xx response is a failure.
func (w *WebhookNotifier) Send(ctx context.Context, n *models.Notification, inc *models.Incident, ackURL string) error {
	payload := webhookPayload{
		NotificationID: n.ID,
		IncidentID:     inc.ID,
		Title:          inc.Title,
		Severity:       string(inc.Severity),
		Service:        inc.Service,
		Status:         string(inc.Status),
		Engineer:       n.Engineer,
		AckURL:         ackURL,
		Text: fmt.Sprintf("[%s] %s on %s, assigned to %s",
			inc.Severity, inc.Title, inc.Service, n.Engineer),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
