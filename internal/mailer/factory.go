package mailer

import (
	"fmt"
	"strings"
)

// FactoryConfig selects and configures the concrete transport.
type FactoryConfig struct {
	Driver     string
	SMTP       SMTPConfig
	MailAPIURL string
}

// NewTransport builds the transport named by cfg.Driver.
func NewTransport(cfg FactoryConfig) (Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverSMTP, "":
		return NewSMTPTransport(cfg.SMTP)
	case DriverHTTP:
		return NewHTTPTransport(cfg.MailAPIURL)
	default:
		return nil, fmt.Errorf("unknown mailer driver %q", cfg.Driver)
	}
}
