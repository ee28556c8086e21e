package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/netwatch/internal/models"
)

// Channel names used in the target map.
const (
	ChannelPush    = "push"
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
	ChannelWebhook = "webhook"
	ChannelSlack   = "slack"
)

// Message is one notification for one target.
type Message struct {
	Target  string       `json:"target"`
	Channel string       `json:"channel"`
	Text    string       `json:"message"`
	Alert   models.Alert `json:"alert"`
}

// Notifier delivers messages over one channel. Implementations must give up
// when ctx is done.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// FormatMessage renders "[SEVERITY] title - target" where target is the
// device and metric or, for aggregated alerts, the number of devices.
func FormatMessage(a models.Alert) string {
	return fmt.Sprintf("[%s] %s - %s", strings.ToUpper(string(a.Severity)), a.Title, a.Target())
}

func severityColor(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return "#FF0000"
	case models.SeverityWarning:
		return "#FFA500"
	case models.SeverityInfo:
		return "#0000FF"
	default:
		return "#808080"
	}
}

func severityEmoji(s models.Severity) string {
	switch s {
	case models.SeverityCritical:
		return ":red_circle:"
	case models.SeverityWarning:
		return ":warning:"
	case models.SeverityInfo:
		return ":information_source:"
	default:
		return ":bell:"
	}
}
