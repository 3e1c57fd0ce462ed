package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rentaplace/notifier/internal/domain"
	"github.com/rentaplace/notifier/internal/repository"
	"go.uber.org/zap"
)

// NotificationService is the producer- and operator-facing surface over the
// store: inserts, reads and deletes. Status transitions are the engine's job;
// this service only ever creates records in the pending state.
type NotificationService struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	logger        *zap.Logger
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	logger *zap.Logger,
) (*NotificationService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		attempts:      attempts,
		logger:        logger,
	}, nil
}

// Insert stores a fully-rendered notification for asynchronous delivery.
// Content must be final at this point; the engine never re-renders from
// RelatedEntityID. No de-duplication is performed: two inserts for the same
// business event yield two notifications.
func (s *NotificationService) Insert(ctx context.Context, record *domain.NotificationRecord) (*domain.NotificationRecord, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if record == nil {
		return nil, fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}

	record.Recipient = strings.TrimSpace(record.Recipient)
	record.Subject = strings.TrimSpace(record.Subject)
	record.Category = strings.TrimSpace(record.Category)
	record.RelatedEntityID = normalizeOptionalString(record.RelatedEntityID)

	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	record.Status = domain.StatusPending
	record.RetryCount = 0
	record.Version = 0
	record.LastError = nil
	record.SentAt = nil
	record.LastRetryAt = nil
	record.NextRetryAt = nil

	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := s.notifications.Create(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("notification accepted",
		zap.String("notificationId", record.ID),
		zap.String("category", record.Category),
	)
	return record, nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return s.notifications.GetByID(ctx, strings.TrimSpace(id))
}

func (s *NotificationService) List(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.NotificationRecord, int64, error) {
	return s.notifications.List(ctx, params)
}

func (s *NotificationService) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return s.notifications.Delete(ctx, strings.TrimSpace(id))
}

func (s *NotificationService) StatusCounts(ctx context.Context) ([]repository.StatusCount, error) {
	return s.notifications.StatusCounts(ctx)
}

// Attempts returns the audit trail of physical sends for one notification.
func (s *NotificationService) Attempts(ctx context.Context, id string) ([]domain.DeliveryAttempt, error) {
	record, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.attempts == nil {
		return nil, nil
	}
	return s.attempts.GetByNotificationID(ctx, record.ID)
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
