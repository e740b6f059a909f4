package models

// Notification records the outcome of one dispatch across all channels.
type Notification struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`      // "dealer_approved", "dealer_rejected", ...
	Recipient string            `json:"recipient"` // email address of the applicant
	Status    string            `json:"status"`    // "sent", "failed", "disabled"
	Channels  map[string]string `json:"channels,omitempty"`
	SentAt    string            `json:"sentAt"`
}

type NotificationTemplate struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
