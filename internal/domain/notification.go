package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a notification record.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusRetrying Status = "RETRYING"
	StatusSent     Status = "SENT"
	StatusFailed   Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRetrying, StatusSent, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether a status admits no further automatic transition.
func (s Status) IsTerminal() bool {
	return s == StatusSent || s == StatusFailed
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Field limits mirror the column widths of the notifications table.
const (
	MaxRecipientLen = 450
	MaxSubjectLen   = 200
	MaxCategoryLen  = 50
)

// NotificationRecord is the unit of durable delivery work. Subject and body
// are opaque to the engine; the body may carry pre-rendered markup.
type NotificationRecord struct {
	ID              string
	Recipient       string
	Subject         string
	Body            string
	Category        string
	RelatedEntityID *string
	Status          Status
	RetryCount      int
	LastError       *string
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SentAt          *time.Time
	LastRetryAt     *time.Time
	NextRetryAt     *time.Time
}

func (n *NotificationRecord) Validate() error {
	if strings.TrimSpace(n.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(n.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if strings.TrimSpace(n.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if !n.Status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, n.Status)
	}
	if n.RetryCount < 0 {
		return fmt.Errorf("%w: retry count must not be negative", ErrValidation)
	}

	if l := len([]rune(n.Recipient)); l > MaxRecipientLen {
		return fmt.Errorf("%w: recipient exceeds %d characters (got %d)", ErrValidation, MaxRecipientLen, l)
	}
	if l := len([]rune(n.Subject)); l > MaxSubjectLen {
		return fmt.Errorf("%w: subject exceeds %d characters (got %d)", ErrValidation, MaxSubjectLen, l)
	}
	if l := len([]rune(n.Category)); l > MaxCategoryLen {
		return fmt.Errorf("%w: category exceeds %d characters (got %d)", ErrValidation, MaxCategoryLen, l)
	}

	return nil
}

// IsDue reports whether the record is eligible for a processing attempt at
// the given instant: pending work is always due, retrying work once its
// scheduled time has passed (a missing schedule counts as due).
func (n *NotificationRecord) IsDue(now time.Time) bool {
	switch n.Status {
	case StatusPending:
		return true
	case StatusRetrying:
		return n.NextRetryAt == nil || !n.NextRetryAt.After(now)
	}
	return false
}
