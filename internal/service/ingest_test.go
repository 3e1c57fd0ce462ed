package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rentaplace/notifier/internal/domain"
	"github.com/rentaplace/notifier/internal/repository"
	"go.uber.org/zap"
)

func newTestNotificationService(t *testing.T, repo *memoryNotificationRepo) *NotificationService {
	t.Helper()

	svc, err := NewNotificationService(repo, &fakeAttemptRepo{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewNotificationService() error = %v", err)
	}
	return svc
}

func TestInsertForcesPendingState(t *testing.T) {
	t.Parallel()

	repo := newMemoryNotificationRepo()
	svc := newTestNotificationService(t, repo)

	sentAt := time.Unix(1_700_000_000, 0)
	staleErr := "stale"
	record := &domain.NotificationRecord{
		Recipient:  "  owner@example.com  ",
		Subject:    " New Booking Confirmation ",
		Body:       "<p>hello</p>",
		Category:   "BookingConfirmation",
		Status:     domain.StatusSent,
		RetryCount: 7,
		LastError:  &staleErr,
		SentAt:     &sentAt,
	}

	created, err := svc.Insert(context.Background(), record)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.Status != domain.StatusPending {
		t.Fatalf("status = %s, want PENDING", created.Status)
	}
	if created.RetryCount != 0 {
		t.Fatalf("retryCount = %d, want 0", created.RetryCount)
	}
	if created.Recipient != "owner@example.com" {
		t.Fatalf("recipient = %q, want trimmed", created.Recipient)
	}
	if created.SentAt != nil || created.LastError != nil || created.NextRetryAt != nil {
		t.Fatal("delivery bookkeeping must be cleared on insert")
	}

	stored := repo.get(created.ID)
	if stored.Status != domain.StatusPending {
		t.Fatalf("stored status = %s, want PENDING", stored.Status)
	}
}

func TestInsertRejectsInvalidRecord(t *testing.T) {
	t.Parallel()

	svc := newTestNotificationService(t, newMemoryNotificationRepo())

	_, err := svc.Insert(context.Background(), &domain.NotificationRecord{
		Recipient: "owner@example.com",
		Subject:   "",
		Body:      "b",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Insert() error = %v, want ErrValidation", err)
	}

	_, err = svc.Insert(context.Background(), nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Insert(nil) error = %v, want ErrValidation", err)
	}
}

func TestInsertNoDeduplication(t *testing.T) {
	t.Parallel()

	repo := newMemoryNotificationRepo()
	svc := newTestNotificationService(t, repo)

	entityID := "booking-42"
	for i := 0; i < 2; i++ {
		_, err := svc.Insert(context.Background(), &domain.NotificationRecord{
			Recipient:       "owner@example.com",
			Subject:         "New Booking Confirmation",
			Body:            "<p>hello</p>",
			Category:        "BookingConfirmation",
			RelatedEntityID: &entityID,
		})
		if err != nil {
			t.Fatalf("Insert() #%d error = %v", i+1, err)
		}
	}

	_, total, err := svc.List(context.Background(), repository.ListParams{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 2 {
		t.Fatalf("total = %d, want 2 (no insert-time de-duplication)", total)
	}
}

func TestGetByIDValidation(t *testing.T) {
	t.Parallel()

	svc := newTestNotificationService(t, newMemoryNotificationRepo())

	_, err := svc.GetByID(context.Background(), "   ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("GetByID() error = %v, want ErrValidation", err)
	}

	_, err = svc.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	repo := newMemoryNotificationRepo()
	repo.put(pendingRecord("n1", time.Unix(1_700_000_000, 0)))
	svc := newTestNotificationService(t, repo)

	if err := svc.Delete(context.Background(), "n1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(context.Background(), "n1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestAttemptsRequiresExistingRecord(t *testing.T) {
	t.Parallel()

	svc := newTestNotificationService(t, newMemoryNotificationRepo())

	_, err := svc.Attempts(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Attempts() error = %v, want ErrNotFound", err)
	}
}
