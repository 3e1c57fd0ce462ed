package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rentaplace/notifier/internal/domain"
	"github.com/rentaplace/notifier/internal/mailer"
	"github.com/rentaplace/notifier/internal/observability"
	"github.com/rentaplace/notifier/internal/ratelimit"
	"github.com/rentaplace/notifier/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxRetries    = 3
	defaultSendTimeout   = 30 * time.Second
	minEngineConcurrency = 1
	maxLastErrorLen      = 1000
)

// DeliveryEngine owns every status transition a notification record goes
// through. Both the batch path (ProcessDue) and the operator path (Retry)
// funnel into the same transition function, so there is exactly one
// authority over what a legal transition is.
type DeliveryEngine struct {
	notifications repository.NotificationRepository
	attempts      repository.AttemptRepository
	transport     mailer.Transport
	rateLimiter   ratelimit.RateLimiter
	logger        *zap.Logger
	metrics       *observability.Metrics
	maxRetries    int
	sendTimeout   time.Duration
	concurrency   int
	now           func() time.Time
}

func NewDeliveryEngine(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	transport mailer.Transport,
	rateLimiter ratelimit.RateLimiter,
	maxRetries int,
	sendTimeout time.Duration,
	concurrency int,
	logger *zap.Logger,
) (*DeliveryEngine, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if concurrency < minEngineConcurrency {
		concurrency = minEngineConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryEngine{
		notifications: notifications,
		attempts:      attempts,
		transport:     transport,
		rateLimiter:   rateLimiter,
		logger:        logger,
		maxRetries:    maxRetries,
		sendTimeout:   sendTimeout,
		concurrency:   concurrency,
		now:           time.Now,
	}, nil
}

func (e *DeliveryEngine) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

// ProcessDue selects up to limit due records, oldest first, and applies one
// delivery attempt to each. Failures are isolated per record; the only error
// returned is a failure to select work or the context's own error. The
// cancellation check sits between records, not mid-send, so shutdown drains
// without losing an in-flight transition.
func (e *DeliveryEngine) ProcessDue(ctx context.Context, limit int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		return nil
	}

	due, err := e.notifications.QueryDue(ctx, limit, e.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to select due notifications: %w", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)

	for i := range due {
		if ctx.Err() != nil {
			break
		}

		record := due[i]
		g.Go(func() error {
			// Re-check after waiting for a worker slot; a shutdown that
			// arrived meanwhile must not start new sends.
			if ctx.Err() != nil {
				return nil
			}
			if _, err := e.attempt(ctx, &record); err != nil {
				e.logger.Error("failed to process due notification",
					zap.String("notificationId", record.ID),
					zap.Error(err),
				)
			}
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}

// Retry applies one delivery attempt to an exhausted record, synchronously.
// Pending and retrying records are already owned by the schedule and are
// rejected; the transport outcome lands in the returned record's status.
func (e *DeliveryEngine) Retry(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	record, err := e.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.Status != domain.StatusFailed {
		return nil, fmt.Errorf("%w: cannot retry notification in status %s", domain.ErrInvalidState, record.Status)
	}

	if _, err := e.attempt(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// ResetForRetry returns an exhausted record to the normal pipeline as if it
// were freshly inserted. Operator-only.
func (e *DeliveryEngine) ResetForRetry(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	record, err := e.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if record.Status != domain.StatusFailed {
		return nil, fmt.Errorf("%w: cannot reset notification in status %s", domain.ErrInvalidState, record.Status)
	}

	record.Status = domain.StatusPending
	record.RetryCount = 0
	record.LastError = nil
	record.NextRetryAt = nil

	if err := e.notifications.UpdateChecked(ctx, record); err != nil {
		return nil, err
	}

	e.logger.Info("notification reset for retry", zap.String("notificationId", record.ID))
	return record, nil
}

// attempt performs one transport send and persists the resulting transition.
// The returned sendErr reports the transport outcome; the error reports
// everything else (store failures, lost races). A lost race means another
// worker already applied a transition, so the record is skipped, never
// double-applied.
func (e *DeliveryEngine) attempt(ctx context.Context, record *domain.NotificationRecord) (sendErr error, err error) {
	driver := e.transport.Driver()

	if e.metrics != nil {
		e.metrics.IncInFlight(driver)
		defer e.metrics.DecInFlight(driver)
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Wait(ctx, driver); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	attemptNumber := record.RetryCount + 1

	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	sendStart := e.now()
	result, sendErr := e.transport.Send(sendCtx, mailer.MessageFromRecord(record))
	cancel()
	if e.metrics != nil {
		e.metrics.ObserveSendDuration(driver, e.now().Sub(sendStart))
	}

	e.recordAttempt(ctx, record.ID, attemptNumber, result, sendErr)

	now := e.now().UTC()
	if sendErr == nil {
		record.Status = domain.StatusSent
		record.SentAt = &now
		record.LastError = nil
		record.NextRetryAt = nil
	} else {
		record.RetryCount++
		record.LastRetryAt = &now
		reason := truncateError(sendErr.Error())
		record.LastError = &reason

		if record.RetryCount < e.maxRetries {
			record.Status = domain.StatusRetrying
			next := now.Add(backoffDelay(record.RetryCount))
			record.NextRetryAt = &next
		} else {
			record.Status = domain.StatusFailed
			record.NextRetryAt = nil
		}
	}

	if err := e.notifications.UpdateChecked(ctx, record); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			e.logger.Warn("notification changed concurrently, skipping write-back",
				zap.String("notificationId", record.ID),
			)
			return sendErr, nil
		}
		// The transition may or may not have landed; do not assume either
		// way, leave reconciliation to the next due scan.
		return sendErr, fmt.Errorf("failed to persist notification transition: %w", err)
	}

	e.observeTransition(record, driver)
	return sendErr, nil
}

func (e *DeliveryEngine) observeTransition(record *domain.NotificationRecord, driver string) {
	switch record.Status {
	case domain.StatusSent:
		if e.metrics != nil {
			e.metrics.IncSent(driver)
		}
		e.logger.Info("notification delivered",
			zap.String("notificationId", record.ID),
			zap.Int("retryCount", record.RetryCount),
		)
	case domain.StatusRetrying:
		if e.metrics != nil {
			e.metrics.IncRetryScheduled(driver)
		}
		e.logger.Warn("notification delivery failed, retry scheduled",
			zap.String("notificationId", record.ID),
			zap.Int("retryCount", record.RetryCount),
			zap.Timep("nextRetryAt", record.NextRetryAt),
		)
	case domain.StatusFailed:
		if e.metrics != nil {
			e.metrics.IncFailed(driver, "retry_exhausted")
		}
		e.logger.Error("notification delivery failed permanently",
			zap.String("notificationId", record.ID),
			zap.Int("retryCount", record.RetryCount),
		)
	}
}

func (e *DeliveryEngine) recordAttempt(
	ctx context.Context,
	notificationID string,
	attemptNumber int,
	result *mailer.SendResult,
	sendErr error,
) {
	if e.attempts == nil {
		return
	}

	var transportMessageID *string
	if result != nil && result.MessageID != "" {
		value := result.MessageID
		transportMessageID = &value
	}

	var attemptErr *string
	if sendErr != nil {
		value := truncateError(sendErr.Error())
		attemptErr = &value
	}

	attempt := &domain.DeliveryAttempt{
		ID:                 uuid.NewString(),
		NotificationID:     notificationID,
		AttemptNumber:      attemptNumber,
		TransportMessageID: transportMessageID,
		Error:              attemptErr,
		CreatedAt:          e.now().UTC(),
	}

	// The attempt log is an audit trail; losing a row must not block the
	// status transition itself.
	if err := e.attempts.Create(ctx, attempt); err != nil {
		e.logger.Error("failed to record delivery attempt",
			zap.String("notificationId", notificationID),
			zap.Error(err),
		)
	}
}

// backoffDelay grows as 2^retryCount minutes with no ceiling. The uncapped
// formula is the documented contract; with the default of 3 attempts the
// largest delay is 8 minutes.
func backoffDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	return time.Duration(1<<uint(retryCount)) * time.Minute
}

func truncateError(msg string) string {
	runes := []rune(msg)
	if len(runes) <= maxLastErrorLen {
		return msg
	}
	return string(runes[:maxLastErrorLen])
}
