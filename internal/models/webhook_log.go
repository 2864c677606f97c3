package models

import "time"

// WebhookLogStatus tracks how far a webhook delivery got.
type WebhookLogStatus string

const (
	// WebhookLogStatusReceived is set when the event is first persisted.
	WebhookLogStatusReceived WebhookLogStatus = "received"
	// WebhookLogStatusProcessed means fulfillment finished all writes.
	WebhookLogStatusProcessed WebhookLogStatus = "processed"
	// WebhookLogStatusFailed means a write failed after acknowledgment;
	// the reconciler retries these out of band.
	WebhookLogStatusFailed WebhookLogStatus = "failed"
)

// WebhookLog records one inbound payment-provider event for auditing and
// out-of-band repair of partial fulfillment.
type WebhookLog struct {
	ID           int64            `json:"id"`
	EventType    string           `json:"event_type"`
	EventID      string           `json:"event_id"`
	Payload      []byte           `json:"-"`
	Status       WebhookLogStatus `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// NewWebhookLog creates a WebhookLog in the received state.
func NewWebhookLog(eventType, eventID string, payload []byte) *WebhookLog {
	return &WebhookLog{
		EventType: eventType,
		EventID:   eventID,
		Payload:   payload,
		Status:    WebhookLogStatusReceived,
		CreatedAt: time.Now(),
	}
}
