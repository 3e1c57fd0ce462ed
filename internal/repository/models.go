package repository

import (
	"time"

	"github.com/rentaplace/notifier/internal/domain"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID              string        `gorm:"type:uuid;primaryKey"`
	Recipient       string        `gorm:"type:varchar(450);not null"`
	Subject         string        `gorm:"type:varchar(200);not null"`
	Body            string        `gorm:"type:text;not null"`
	Category        string        `gorm:"type:varchar(50);not null;default:''"`
	RelatedEntityID *string       `gorm:"type:varchar(255)"`
	Status          domain.Status `gorm:"type:varchar(20);not null"`
	RetryCount      int           `gorm:"not null;default:0"`
	LastError       *string       `gorm:"type:text"`
	Version         int64         `gorm:"not null;default:0"`
	SentAt          *time.Time
	LastRetryAt     *time.Time
	NextRetryAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts.
type DeliveryAttemptModel struct {
	ID                 string  `gorm:"type:uuid;primaryKey"`
	NotificationID     string  `gorm:"type:uuid;not null"`
	AttemptNumber      int     `gorm:"not null"`
	TransportMessageID *string `gorm:"type:varchar(255)"`
	Error              *string `gorm:"type:text"`
	CreatedAt          time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func notificationModelFromDomain(n *domain.NotificationRecord) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:              n.ID,
		Recipient:       n.Recipient,
		Subject:         n.Subject,
		Body:            n.Body,
		Category:        n.Category,
		RelatedEntityID: n.RelatedEntityID,
		Status:          n.Status,
		RetryCount:      n.RetryCount,
		LastError:       n.LastError,
		Version:         n.Version,
		SentAt:          n.SentAt,
		LastRetryAt:     n.LastRetryAt,
		NextRetryAt:     n.NextRetryAt,
		CreatedAt:       n.CreatedAt,
		UpdatedAt:       n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.NotificationRecord {
	if m == nil {
		return nil
	}

	return &domain.NotificationRecord{
		ID:              m.ID,
		Recipient:       m.Recipient,
		Subject:         m.Subject,
		Body:            m.Body,
		Category:        m.Category,
		RelatedEntityID: m.RelatedEntityID,
		Status:          m.Status,
		RetryCount:      m.RetryCount,
		LastError:       m.LastError,
		Version:         m.Version,
		SentAt:          m.SentAt,
		LastRetryAt:     m.LastRetryAt,
		NextRetryAt:     m.NextRetryAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:                 a.ID,
		NotificationID:     a.NotificationID,
		AttemptNumber:      a.AttemptNumber,
		TransportMessageID: a.TransportMessageID,
		Error:              a.Error,
		CreatedAt:          a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:                 m.ID,
		NotificationID:     m.NotificationID,
		AttemptNumber:      m.AttemptNumber,
		TransportMessageID: m.TransportMessageID,
		Error:              m.Error,
		CreatedAt:          m.CreatedAt,
	}
}
