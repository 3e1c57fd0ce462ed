package mailer

import (
	"context"

	"github.com/rentaplace/notifier/internal/domain"
)

// Transport is the outbound delivery port. Implementations perform exactly
// one send per call; all retry policy lives in the delivery engine.
type Transport interface {
	Send(ctx context.Context, msg Message) (*SendResult, error)
	Driver() string
}

// Message is the payload handed to a transport. The body is treated as
// opaque, pre-rendered content.
type Message struct {
	Recipient string
	Subject   string
	Body      string
	Category  string
}

// SendResult stores transport call metadata for audit and persistence.
type SendResult struct {
	MessageID string
}

// MessageFromRecord builds the transport payload from a stored record.
func MessageFromRecord(n *domain.NotificationRecord) Message {
	if n == nil {
		return Message{}
	}
	return Message{
		Recipient: n.Recipient,
		Subject:   n.Subject,
		Body:      n.Body,
		Category:  n.Category,
	}
}
