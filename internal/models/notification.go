package models

import "time"

// NotificationChannel enumerates delivery channels.
type NotificationChannel string

const (
	ChannelWebhook NotificationChannel = "webhook"
	ChannelEmail   NotificationChannel = "email"
	ChannelSlack   NotificationChannel = "slack"
	ChannelSMS     NotificationChannel = "sms"
)

// Notification is one delivery attempt to an engineer about an incident.
type Notification struct {
	ID               string              `json:"id"`
	IncidentID       string              `json:"incidentId"`
	Engineer         string              `json:"engineer"`
	Channel          NotificationChannel `json:"channel"`
	Priority         Severity            `json:"priority"`
	Recipient        string              `json:"recipient"` // address for the channel
	SLATargetSeconds int                 `json:"slaTargetSeconds"`
	RetryCount       int                 `json:"retryCount"`
	MaxRetries       int                 `json:"maxRetries"`
	SentAt           *time.Time          `json:"sentAt,omitempty"`
	AcknowledgedAt   *time.Time          `json:"acknowledgedAt,omitempty"`
	Escalated        bool                `json:"escalated"`
	EscalationTarget string              `json:"escalationTarget,omitempty"`
	LastError        string              `json:"lastError,omitempty"`
	CreatedAt        time.Time           `json:"createdAt"`
}

// SLAMet reports whether the notification was acknowledged within its
// SLA target. Returns false while unacknowledged.
func (n *Notification) SLAMet() bool {
	if n.SentAt == nil || n.AcknowledgedAt == nil {
		return false
	}
	latency := n.AcknowledgedAt.Sub(*n.SentAt)
	return latency <= time.Duration(n.SLATargetSeconds)*time.Second
}
