package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rentaplace/notifier/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	Status   *domain.Status
	Category *string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type StatusCount struct {
	Status domain.Status `gorm:"column:status"`
	Count  int           `gorm:"column:count"`
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.NotificationRecord) error
	GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error)
	List(ctx context.Context, params ListParams) ([]domain.NotificationRecord, int64, error)
	QueryDue(ctx context.Context, limit int, now time.Time) ([]domain.NotificationRecord, error)
	UpdateChecked(ctx context.Context, n *domain.NotificationRecord) error
	Delete(ctx context.Context, id string) error
	StatusCounts(ctx context.Context) ([]StatusCount, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.NotificationRecord) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.NotificationRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Category != nil {
		query = query.Where("category = ?", *params.Category)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	records := make([]domain.NotificationRecord, 0, len(models))
	for i := range models {
		records = append(records, *notificationModelToDomain(&models[i]))
	}

	return records, total, nil
}

// QueryDue selects records eligible for an immediate delivery attempt:
// pending work, plus retrying work whose schedule has elapsed or is missing.
// Oldest records come first so one noisy producer cannot starve the rest.
func (r *GormNotificationRepo) QueryDue(ctx context.Context, limit int, now time.Time) ([]domain.NotificationRecord, error) {
	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusPending).
		Or(
			r.db.Where("status = ?", domain.StatusRetrying).
				Where(r.db.Where("next_retry_at IS NULL").Or("next_retry_at <= ?", now)),
		).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	records := make([]domain.NotificationRecord, 0, len(models))
	for i := range models {
		records = append(records, *notificationModelToDomain(&models[i]))
	}

	return records, nil
}

// UpdateChecked replaces the record's mutable fields, conditioned on the
// version stamp the caller read. A concurrent writer that got there first
// makes the condition miss; the caller gets ErrConflict and must not assume
// its transition took effect.
func (r *GormNotificationRepo) UpdateChecked(ctx context.Context, n *domain.NotificationRecord) error {
	if n == nil {
		return domain.ErrNotFound
	}

	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND version = ?", n.ID, n.Version).
		Updates(map[string]any{
			"status":        n.Status,
			"retry_count":   n.RetryCount,
			"last_error":    n.LastError,
			"sent_at":       n.SentAt,
			"last_retry_at": n.LastRetryAt,
			"next_retry_at": n.NextRetryAt,
			"version":       n.Version + 1,
			"updated_at":    time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&NotificationModel{}).
			Where("id = ?", n.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}

	n.Version++
	return nil
}

func (r *GormNotificationRepo) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&NotificationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *GormNotificationRepo) StatusCounts(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}
