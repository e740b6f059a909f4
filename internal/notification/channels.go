package notification

import (
	"context"
	"errors"

	commonaws "dealer-portal/internal/common/aws"
	commonhttp "dealer-portal/internal/common/http"
	"dealer-portal/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// ErrNoAddress means the recipient has no address for the channel.
var ErrNoAddress = errors.New("recipient has no address for channel")

// Channel delivers a rendered message. It returns the channel status
// (sent or logged) on success.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Rendered) (string, error)
}

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ==========================
// Email
// ==========================

// EmailChannel sends through SES, or only logs the content when no SES
// client is configured.
type EmailChannel struct {
	ses    SESService
	from   string
	logger logger.Logger
}

func NewEmailChannel(client SESService, from string, log logger.Logger) *EmailChannel {
	return &EmailChannel{ses: client, from: from, logger: log}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, msg Rendered) (string, error) {
	if msg.Recipient.Email == "" {
		return "", ErrNoAddress
	}
	if c.ses == nil {
		c.logger.Info("email content logged", map[string]interface{}{
			"notificationId": msg.ID,
			"to":             msg.Recipient.Email,
			"subject":        msg.Subject,
			"body":           msg.Body,
		})
		return StatusLogged, nil
	}
	if _, err := c.ses.SendEmail(ctx, commonaws.NewEmailInput(c.from, msg.Recipient.Email, msg.Subject, msg.Body)); err != nil {
		return "", err
	}
	return StatusSent, nil
}

// ==========================
// SMS
// ==========================

type SMSChannel struct {
	sns      SNSService
	senderID string
}

func NewSMSChannel(client SNSService, senderID string) *SMSChannel {
	return &SMSChannel{sns: client, senderID: senderID}
}

func (c *SMSChannel) Name() string { return "sms" }

func (c *SMSChannel) Send(ctx context.Context, msg Rendered) (string, error) {
	if msg.Recipient.Phone == "" {
		return "", ErrNoAddress
	}
	if _, err := c.sns.Publish(ctx, commonaws.NewSMSInput(msg.Recipient.Phone, msg.Body, c.senderID)); err != nil {
		return "", err
	}
	return StatusSent, nil
}

// ==========================
// Webhook relay
// ==========================

// WebhookPayload is posted to the relay endpoint. A WhatsApp gateway
// behind the relay delivers Body to To.
type WebhookPayload struct {
	NotificationID string `json:"notificationId"`
	Channel        string `json:"channel"`
	Kind           string `json:"kind"`
	To             string `json:"to"`
	Name           string `json:"name,omitempty"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
}

type WebhookChannel struct {
	client *commonhttp.Client
	url    string
}

// NewWebhookChannel posts to url. A non-empty token is sent as a bearer token.
func NewWebhookChannel(client *commonhttp.Client, url, token string) *WebhookChannel {
	if token != "" {
		client = client.WithHeader("Authorization", "Bearer "+token)
	}
	return &WebhookChannel{client: client, url: url}
}

func (c *WebhookChannel) Name() string { return "whatsapp" }

func (c *WebhookChannel) Send(ctx context.Context, msg Rendered) (string, error) {
	to := msg.Recipient.WhatsApp
	if to == "" {
		to = msg.Recipient.Phone
	}
	if to == "" {
		return "", ErrNoAddress
	}

	payload := WebhookPayload{
		NotificationID: msg.ID,
		Channel:        "whatsapp",
		Kind:           string(msg.Kind),
		To:             to,
		Name:           msg.Recipient.Name,
		Subject:        msg.Subject,
		Body:           msg.Body,
	}
	if err := c.client.PostJSON(ctx, c.url, payload, nil); err != nil {
		return "", err
	}
	return StatusSent, nil
}
