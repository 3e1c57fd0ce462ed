package mailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	gomail "gopkg.in/gomail.v2"
)

const DriverSMTP = "smtp"

// SMTPConfig carries relay connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPTransport delivers messages through an SMTP relay, one dial per send.
// Connection reuse is intentionally not attempted; the engine's batch sizes
// are small and a stale cached connection would surface as a spurious failure.
type SMTPTransport struct {
	dialer *gomail.Dialer
	from   string
	send   func(m *gomail.Message) error
}

func NewSMTPTransport(cfg SMTPConfig) (*SMTPTransport, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("smtp port is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("smtp sender address is required")
	}

	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	t := &SMTPTransport{
		dialer: dialer,
		from:   strings.TrimSpace(cfg.From),
	}
	t.send = func(m *gomail.Message) error {
		return t.dialer.DialAndSend(m)
	}

	return t, nil
}

func (t *SMTPTransport) Driver() string { return DriverSMTP }

func (t *SMTPTransport) Send(ctx context.Context, msg Message) (*SendResult, error) {
	if t == nil || t.send == nil {
		return nil, fmt.Errorf("smtp transport is not initialized")
	}
	if strings.TrimSpace(msg.Recipient) == "" {
		return nil, &TransportError{Message: "recipient is required"}
	}

	messageID := fmt.Sprintf("<%s@notifier>", uuid.NewString())

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", msg.Recipient)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-Id", messageID)
	m.SetBody("text/html", msg.Body)

	// gomail has no context support; run the dial+send in a goroutine so a
	// stuck relay cannot outlive the per-attempt deadline. The abandoned
	// send finishes in the background, which is why timeouts are accounted
	// as failures even though the relay may still deliver.
	done := make(chan error, 1)
	go func() {
		done <- t.send(m)
	}()

	select {
	case <-ctx.Done():
		return nil, &TransportError{
			Message:   "smtp send aborted",
			Transient: ctx.Err() == context.DeadlineExceeded,
			Cause:     ctx.Err(),
		}
	case err := <-done:
		if err != nil {
			return nil, &TransportError{
				Message:   "smtp send failed",
				Transient: true,
				Cause:     err,
			}
		}
	}

	return &SendResult{MessageID: messageID}, nil
}
