package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	"github.com/netwatch/internal/config"
)

type SlackNotifier struct {
	client  *slack.Client
	channel string
}

func NewSlackNotifier(cfg config.SlackConfig) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(cfg.Token),
		channel: cfg.Channel,
	}
}

func (s *SlackNotifier) Notify(ctx context.Context, msg Message) error {
	a := msg.Alert
	attachment := slack.Attachment{
		Color: severityColor(a.Severity),
		Title: msg.Text,
		Text:  a.Description,
		Fields: []slack.AttachmentField{
			{
				Title: "Device",
				Value: a.Target(),
				Short: true,
			},
			{
				Title: "Severity",
				Value: string(a.Severity),
				Short: true,
			},
			{
				Title: "Value",
				Value: a.Value.String(),
				Short: true,
			},
			{
				Title: "Threshold",
				Value: fmt.Sprintf("%s %s", a.Operator, a.Threshold),
				Short: true,
			},
		},
		Footer: "netwatch alert " + a.ID,
		Ts:     json.Number(strconv.FormatInt(a.Timestamp.Unix(), 10)),
	}

	_, _, err := s.client.PostMessageContext(ctx,
		s.channel,
		slack.MsgOptionText(severityEmoji(a.Severity)+" "+msg.Text, false),
		slack.MsgOptionAttachments(attachment),
	)
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}

// alertTime is shared by the text channels.
func alertTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
