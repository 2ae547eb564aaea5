package domain

import "time"

// Webhook is an identity's subscription to one event type. Secret, when set,
// signs each delivery.
type Webhook struct {
	WebhookID string
	Owner     string
	Event     EventType
	URL       string
	Secret    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
