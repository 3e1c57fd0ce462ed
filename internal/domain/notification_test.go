package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid uppercase", input: "SENT", want: StatusSent},
		{name: "valid lowercase with spaces", input: " retrying ", want: StatusRetrying},
		{name: "invalid", input: "queued", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	t.Parallel()

	terminal := map[Status]bool{
		StatusPending:  false,
		StatusRetrying: false,
		StatusSent:     true,
		StatusFailed:   true,
	}

	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", status, got, want)
		}
	}
}

func validRecord() NotificationRecord {
	return NotificationRecord{
		ID:        "n1",
		Recipient: "owner@example.com",
		Subject:   "New Booking Confirmation",
		Body:      "<p>A new reservation was made.</p>",
		Category:  "BookingConfirmation",
		Status:    StatusPending,
	}
}

func TestNotificationRecordValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(n *NotificationRecord)
		wantErr bool
	}{
		{name: "valid", mutate: func(n *NotificationRecord) {}},
		{name: "missing recipient", mutate: func(n *NotificationRecord) { n.Recipient = "  " }, wantErr: true},
		{name: "missing subject", mutate: func(n *NotificationRecord) { n.Subject = "" }, wantErr: true},
		{name: "missing body", mutate: func(n *NotificationRecord) { n.Body = "" }, wantErr: true},
		{name: "invalid status", mutate: func(n *NotificationRecord) { n.Status = Status("QUEUED") }, wantErr: true},
		{name: "negative retry count", mutate: func(n *NotificationRecord) { n.RetryCount = -1 }, wantErr: true},
		{name: "subject too long", mutate: func(n *NotificationRecord) {
			n.Subject = strings.Repeat("s", MaxSubjectLen+1)
		}, wantErr: true},
		{name: "category too long", mutate: func(n *NotificationRecord) {
			n.Category = strings.Repeat("c", MaxCategoryLen+1)
		}, wantErr: true},
		{name: "empty category ok", mutate: func(n *NotificationRecord) { n.Category = "" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record := validRecord()
			tt.mutate(&record)

			err := record.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestNotificationRecordIsDue(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name   string
		record NotificationRecord
		want   bool
	}{
		{name: "pending is always due", record: NotificationRecord{Status: StatusPending}, want: true},
		{name: "retrying without schedule is due", record: NotificationRecord{Status: StatusRetrying}, want: true},
		{name: "retrying past schedule is due", record: NotificationRecord{Status: StatusRetrying, NextRetryAt: &past}, want: true},
		{name: "retrying future schedule is not due", record: NotificationRecord{Status: StatusRetrying, NextRetryAt: &future}, want: false},
		{name: "sent is never due", record: NotificationRecord{Status: StatusSent}, want: false},
		{name: "failed is never due", record: NotificationRecord{Status: StatusFailed}, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.record.IsDue(now); got != tt.want {
				t.Fatalf("IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}
