// Package notification delivers best-effort dealer notifications over
// email, SMS and an HTTP relay. Delivery problems are reported in the
// returned result and never to the caller as an error.
package notification

// Kind selects the template a message is rendered with.
type Kind string

const (
	KindApplicationReceived Kind = "application_received"
	KindDealerApproved      Kind = "dealer_approved"
	KindDealerRejected      Kind = "dealer_rejected"
	KindDealerInvited       Kind = "dealer_invited"
)

// Overall and per-channel statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
	StatusLogged   = "logged"
	StatusSkipped  = "skipped"
)

type Recipient struct {
	Name     string
	Email    string
	Phone    string
	WhatsApp string
}

// Message is a channel-agnostic notification request. Data fills the
// template placeholders.
type Message struct {
	Kind      Kind
	Recipient Recipient
	Data      map[string]interface{}
}

// Rendered is a message after template expansion, as handed to channels.
type Rendered struct {
	ID        string
	Kind      Kind
	Recipient Recipient
	Subject   string
	Body      string
}
