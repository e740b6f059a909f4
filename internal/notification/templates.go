package notification

import (
	"fmt"
	"strings"

	"dealer-portal/internal/models"
)

var defaultTemplates = map[Kind]models.NotificationTemplate{
	KindApplicationReceived: {
		Type:    string(KindApplicationReceived),
		Subject: "We received your dealer application",
		Body:    "Hello {{contactPerson}}, thank you for applying to become a dealer with {{businessName}}. Your application {{applicationId}} is under review.",
	},
	KindDealerApproved: {
		Type:    string(KindDealerApproved),
		Subject: "Your dealer application has been approved",
		Body:    "Congratulations {{contactPerson}}! {{businessName}} is now an approved dealer. Sign in at {{portalUrl}} to start ordering.",
	},
	KindDealerRejected: {
		Type:    string(KindDealerRejected),
		Subject: "Update on your dealer application",
		Body:    "Hello {{contactPerson}}, we are unable to approve the application for {{businessName}} at this time. Reason: {{reason}}",
	},
	KindDealerInvited: {
		Type:    string(KindDealerInvited),
		Subject: "You have been invited to the dealer portal",
		Body:    "Welcome {{contactPerson}}! {{businessName}} has been set up as a dealer. Check your inbox for a link to set your password, then sign in at {{portalUrl}}.",
	},
}

// DefaultTemplates returns a copy of the built-in templates.
func DefaultTemplates() map[Kind]models.NotificationTemplate {
	out := make(map[Kind]models.NotificationTemplate, len(defaultTemplates))
	for k, v := range defaultTemplates {
		out[k] = v
	}
	return out
}

// renderTemplate replaces {{key}} placeholders from data in a single pass
// over tmpl. Placeholders without a value are dropped; substituted values
// are never expanded again.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	var b strings.Builder
	rest := tmpl

	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(rest[:start])
		b.WriteString(placeholderValue(data[rest[start+2:end]]))
		rest = rest[end+2:]
	}
	b.WriteString(rest)

	return b.String()
}

func placeholderValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
