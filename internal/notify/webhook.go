package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sabohub/sabohub/internal/events"
)

// Webhook posts a short text message for selected domain events to a
// Slack-compatible incoming webhook.
type Webhook struct {
	httpClient *http.Client
	url        string
	baseURL    string
	timeout    time.Duration
}

// NewWebhook creates a notifier. baseURL is used to link back to the API.
func NewWebhook(url, baseURL string, timeout time.Duration) *Webhook {
	return &Webhook{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
	}
}

type webhookPayload struct {
	Text  string       `json:"text"`
	Event events.Event `json:"event"`
}

// Register subscribes the notifier to the events it reports.
func (n *Webhook) Register(d events.Dispatcher) {
	d.Subscribe(events.EventInvitationCreated, n.HandleEvent)
	d.Subscribe(events.EventUserRedeemed, n.HandleEvent)
	d.Subscribe(events.EventCEOUniquenessRepaired, n.HandleEvent)
}

// HandleEvent delivers ev. Delivery failures are logged at WARN and never
// returned: a notification must not affect the operation that caused it.
func (n *Webhook) HandleEvent(ctx context.Context, ev events.Event) error {
	body, err := json.Marshal(webhookPayload{Text: n.messageText(ev), Event: ev})
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to marshal webhook payload")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Str("webhook_url", "<set>").Msg("Failed to create webhook request")
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			log.Warn().
				Err(err).
				Dur("timeout", n.timeout).
				Str("event_type", string(ev.Type)).
				Msg("Webhook notification timed out")
		} else {
			log.Warn().
				Err(err).
				Str("event_type", string(ev.Type)).
				Msg("Failed to send webhook notification")
		}
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("event_type", string(ev.Type)).
			Str("company_id", ev.CompanyID.String()).
			Msg("Webhook returned non-success status")
		return nil
	}

	log.Debug().
		Str("event_type", string(ev.Type)).
		Str("event_id", ev.ID.String()).
		Msg("Webhook notification sent")
	return nil
}

func (n *Webhook) messageText(ev events.Event) string {
	var text string
	switch p := ev.Payload.(type) {
	case events.InvitationCreatedPayload:
		text = fmt.Sprintf("*Invitation created* for role %s (%d use(s), expires %s)",
			p.RoleType, p.UsageLimit, p.ExpiresAt.UTC().Format(time.RFC3339))
	case events.UserRedeemedPayload:
		// Chat channels are outside the company; identify the user by ID only.
		text = fmt.Sprintf("*New employee* `%s` joined as %s (invitation %d/%d used)",
			p.UserID, p.Role, p.UsedCount, p.UsageLimit)
	case events.CEORepairedPayload:
		text = fmt.Sprintf("*CEO assignment repaired*: %d demoted to %s", len(p.Demoted), p.DemoteTo)
		if p.Promoted != nil {
			text += fmt.Sprintf(", %s promoted to CEO", p.Promoted)
		}
	default:
		text = fmt.Sprintf("*%s*", ev.Type)
	}

	text += fmt.Sprintf("\nCompany: `%s`", ev.CompanyID)
	if n.baseURL != "" {
		text += fmt.Sprintf("\n<%s/api/v1/companies/%s|Open company>", n.baseURL, ev.CompanyID)
	}
	return text
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
