package notify

import (
	"context"
	"errors"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/netwatch/internal/config"
)

// Sender sends a composed email. *gomail.Dialer satisfies it.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type EmailNotifier struct {
	sender     Sender
	from       string
	receivers  []string
	recipients map[string][]string
}

func NewEmailNotifier(cfg config.EmailConfig) *EmailNotifier {
	return &EmailNotifier{
		sender:     gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.From, cfg.Password),
		from:       cfg.From,
		receivers:  cfg.Receivers,
		recipients: cfg.Recipients,
	}
}

func (e *EmailNotifier) Notify(ctx context.Context, msg Message) error {
	to := e.recipients[msg.Target]
	if len(to) == 0 {
		to = e.receivers
	}
	if len(to) == 0 {
		return errors.New("no email recipients configured")
	}

	m := composeEmail(e.from, to, msg)

	// gomail has no context support; give up waiting once ctx is done.
	errc := make(chan error, 1)
	go func() { errc <- e.sender.DialAndSend(m) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func composeEmail(from string, to []string, msg Message) *gomail.Message {
	a := msg.Alert
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", msg.Text)

	body := fmt.Sprintf(`Alert: %s
Severity: %s
Target: %s
Metric: %s
Value: %s
Threshold: %s %s
Description: %s
Time: %s
Alert ID: %s
`, a.Title, a.Severity, a.Target(), a.Metric,
		a.Value, a.Operator, a.Threshold, a.Description,
		alertTime(a.Timestamp), a.ID)

	m.SetBody("text/plain", body)
	return m
}
