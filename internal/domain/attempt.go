package domain

import "time"

// DeliveryAttempt records a single physical send attempt for a notification.
type DeliveryAttempt struct {
	ID                 string
	NotificationID     string
	AttemptNumber      int
	TransportMessageID *string
	Error              *string
	CreatedAt          time.Time
}
