package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	commonaws "dealer-portal/internal/common/aws"
	"dealer-portal/internal/common/config"
	commonhttp "dealer-portal/internal/common/http"
	"dealer-portal/internal/common/logger"
	"dealer-portal/internal/common/metrics"
	"dealer-portal/internal/models"

	"github.com/google/uuid"
)

// Dispatcher renders messages and fans them out to the configured channels.
type Dispatcher struct {
	channels  []Channel
	templates map[Kind]models.NotificationTemplate
	defaults  map[string]interface{}
	timeout   time.Duration
	logger    logger.Logger
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithTemplates overrides templates per kind.
func WithTemplates(templates map[Kind]models.NotificationTemplate) Option {
	return func(d *Dispatcher) {
		for k, v := range templates {
			d.templates[k] = v
		}
	}
}

// WithDefaults sets placeholder values used when a message does not provide them.
func WithDefaults(data map[string]interface{}) Option {
	return func(d *Dispatcher) {
		for k, v := range data {
			d.defaults[k] = v
		}
	}
}

// WithTimeout bounds one Dispatch across all channels. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher creates a dispatcher over channels. With no channels every
// dispatch reports StatusDisabled.
func NewDispatcher(channels []Channel, log logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channels:  channels,
		templates: DefaultTemplates(),
		defaults:  map[string]interface{}{},
		timeout:   10 * time.Second,
		logger:    log.WithFields(map[string]interface{}{"component": "notification"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FromConfig builds the channels enabled in cfg. Channels that are not
// enabled are left out; no configuration yields a disabled dispatcher.
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) (*Dispatcher, error) {
	ncfg := cfg.Notifications
	aws := cfg.Integrations.AWS
	var channels []Channel

	if ncfg.Email.Enabled {
		var sesClient SESService
		if aws.SES.Enabled {
			client, err := commonaws.NewSESClient(ctx, aws.Region)
			if err != nil {
				return nil, fmt.Errorf("create SES client: %w", err)
			}
			sesClient = client
		}
		channels = append(channels, NewEmailChannel(sesClient, ncfg.Email.FromEmail, log))
	}

	if ncfg.SMS.Enabled && aws.SNS.Enabled {
		client, err := commonaws.NewSNSClient(ctx, aws.Region)
		if err != nil {
			return nil, fmt.Errorf("create SNS client: %w", err)
		}
		channels = append(channels, NewSMSChannel(client, aws.SNS.DefaultSMSSenderID))
	}

	if ncfg.Webhook.Enabled {
		httpClient := commonhttp.NewClient(time.Duration(ncfg.Webhook.Timeout) * time.Millisecond)
		channels = append(channels, NewWebhookChannel(httpClient, ncfg.Webhook.URL, ncfg.Webhook.Token))
	}

	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = ch.Name()
	}
	log.Info("notification channels configured", map[string]interface{}{"channels": names})

	return NewDispatcher(channels, log,
		WithTimeout(time.Duration(ncfg.Timeout)*time.Millisecond),
		WithDefaults(map[string]interface{}{"portalUrl": ncfg.PortalURL}),
	), nil
}

// Dispatch sends msg on every channel. It never returns an error; the
// outcome is described by the returned notification record.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) (result *models.Notification) {
	result = &models.Notification{
		ID:        uuid.New().String(),
		Type:      string(msg.Kind),
		Recipient: msg.Recipient.Email,
		Status:    StatusDisabled,
		Channels:  map[string]string{},
		SentAt:    time.Now().UTC().Format(time.RFC3339),
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification dispatch panicked", map[string]interface{}{
				"notificationId": result.ID,
				"panic":          fmt.Sprint(r),
			})
			result.Status = StatusFailed
		}
	}()

	if len(d.channels) == 0 {
		return result
	}

	tmpl, ok := d.templates[msg.Kind]
	if !ok {
		d.logger.Warn("no template for notification kind", map[string]interface{}{"kind": msg.Kind})
		result.Status = StatusFailed
		return result
	}

	data := make(map[string]interface{}, len(d.defaults)+len(msg.Data))
	for k, v := range d.defaults {
		data[k] = v
	}
	for k, v := range msg.Data {
		data[k] = v
	}

	rendered := Rendered{
		ID:        result.ID,
		Kind:      msg.Kind,
		Recipient: msg.Recipient,
		Subject:   renderTemplate(tmpl.Subject, data),
		Body:      renderTemplate(tmpl.Body, data),
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	sent, failed := 0, 0
	for _, ch := range d.channels {
		status := d.send(ctx, ch, rendered)
		result.Channels[ch.Name()] = status
		metrics.NotificationsSent.WithLabelValues(string(msg.Kind), ch.Name(), status).Inc()
		switch status {
		case StatusSent, StatusLogged:
			sent++
		case StatusFailed:
			failed++
		}
	}

	switch {
	case sent > 0:
		result.Status = StatusSent
	case failed > 0:
		result.Status = StatusFailed
	}
	return result
}

func (d *Dispatcher) send(ctx context.Context, ch Channel, msg Rendered) (status string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("notification channel panicked", map[string]interface{}{
				"channel":        ch.Name(),
				"notificationId": msg.ID,
				"panic":          fmt.Sprint(r),
			})
			status = StatusFailed
		}
	}()

	status, err := ch.Send(ctx, msg)
	if errors.Is(err, ErrNoAddress) {
		return StatusSkipped
	}
	if err != nil {
		d.logger.Error("notification send failed", map[string]interface{}{
			"channel":        ch.Name(),
			"notificationId": msg.ID,
			"kind":           msg.Kind,
			"error":          err,
		})
		return StatusFailed
	}
	return status
}
