package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rentaplace/notifier/internal/domain"
	"github.com/rentaplace/notifier/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type NotificationService interface {
	Insert(ctx context.Context, record *domain.NotificationRecord) (*domain.NotificationRecord, error)
	GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.NotificationRecord, int64, error)
	Delete(ctx context.Context, id string) error
	StatusCounts(ctx context.Context) ([]repository.StatusCount, error)
	Attempts(ctx context.Context, id string) ([]domain.DeliveryAttempt, error)
}

// DeliveryService is the operator-facing slice of the delivery engine.
type DeliveryService interface {
	Retry(ctx context.Context, id string) (*domain.NotificationRecord, error)
	ResetForRetry(ctx context.Context, id string) (*domain.NotificationRecord, error)
}

type NotificationHandler struct {
	service  NotificationService
	delivery DeliveryService
}

func NewNotificationHandler(service NotificationService, delivery DeliveryService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	if delivery == nil {
		return nil, fmt.Errorf("delivery service is required")
	}
	return &NotificationHandler{service: service, delivery: delivery}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService, delivery DeliveryService) error {
	h, err := NewNotificationHandler(service, delivery)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.CreateNotification)
	v1.Get("/notifications", h.ListNotifications)
	// Registered before the :id routes so "stats" is not taken for an id.
	v1.Get("/notifications/stats", h.NotificationStats)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Get("/notifications/:id/attempts", h.ListAttempts)
	v1.Post("/notifications/:id/retry", h.RetryNotification)
	v1.Post("/notifications/:id/reset", h.ResetNotification)
	v1.Delete("/notifications/:id", h.DeleteNotification)

	return nil
}

type createNotificationRequest struct {
	Recipient       string  `json:"recipient"`
	Subject         string  `json:"subject"`
	Body            string  `json:"body"`
	Category        string  `json:"category"`
	RelatedEntityID *string `json:"relatedEntityId"`
}

type notificationResponse struct {
	ID              string     `json:"id"`
	Recipient       string     `json:"recipient"`
	Subject         string     `json:"subject"`
	Body            string     `json:"body"`
	Category        string     `json:"category,omitempty"`
	RelatedEntityID *string    `json:"relatedEntityId,omitempty"`
	Status          string     `json:"status"`
	RetryCount      int        `json:"retryCount"`
	LastError       *string    `json:"lastError,omitempty"`
	SentAt          *time.Time `json:"sentAt,omitempty"`
	LastRetryAt     *time.Time `json:"lastRetryAt,omitempty"`
	NextRetryAt     *time.Time `json:"nextRetryAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type statsResponse struct {
	Total  int64             `json:"total"`
	Counts []statusCountItem `json:"counts"`
}

type statusCountItem struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type attemptResponse struct {
	ID                 string    `json:"id"`
	NotificationID     string    `json:"notificationId"`
	AttemptNumber      int       `json:"attemptNumber"`
	TransportMessageID *string   `json:"transportMessageId,omitempty"`
	Error              *string   `json:"error,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (h *NotificationHandler) CreateNotification(c *fiber.Ctx) error {
	var req createNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	record := domain.NotificationRecord{
		Recipient:       req.Recipient,
		Subject:         req.Subject,
		Body:            req.Body,
		Category:        req.Category,
		RelatedEntityID: req.RelatedEntityID,
	}

	created, err := h.service.Insert(c.Context(), &record)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toNotificationResponse(created))
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	record, err := h.service.GetByID(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(record))
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	records, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(records),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *NotificationHandler) NotificationStats(c *fiber.Ctx) error {
	counts, err := h.service.StatusCounts(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]statusCountItem, 0, len(counts))
	var total int64
	for _, count := range counts {
		total += int64(count.Count)
		items = append(items, statusCountItem{
			Status: count.Status.String(),
			Count:  count.Count,
		})
	}

	return c.Status(fiber.StatusOK).JSON(statsResponse{
		Total:  total,
		Counts: items,
	})
}

func (h *NotificationHandler) ListAttempts(c *fiber.Ctx) error {
	attempts, err := h.service.Attempts(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	responses := make([]attemptResponse, 0, len(attempts))
	for _, attempt := range attempts {
		responses = append(responses, attemptResponse{
			ID:                 attempt.ID,
			NotificationID:     attempt.NotificationID,
			AttemptNumber:      attempt.AttemptNumber,
			TransportMessageID: attempt.TransportMessageID,
			Error:              attempt.Error,
			CreatedAt:          attempt.CreatedAt,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": responses,
	})
}

// RetryNotification performs one synchronous delivery attempt on a failed
// notification. The transport outcome lands in the returned record's status;
// the call itself only fails for unknown ids or records not in a failed state.
func (h *NotificationHandler) RetryNotification(c *fiber.Ctx) error {
	record, err := h.delivery.Retry(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(record))
}

func (h *NotificationHandler) ResetNotification(c *fiber.Ctx) error {
	record, err := h.delivery.ResetForRetry(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(record))
}

func (h *NotificationHandler) DeleteNotification(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if category := strings.TrimSpace(c.Query("category")); category != "" {
		params.Category = &category
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toNotificationResponses(records []domain.NotificationRecord) []notificationResponse {
	responses := make([]notificationResponse, 0, len(records))
	for _, record := range records {
		r := record
		responses = append(responses, toNotificationResponse(&r))
	}
	return responses
}

func toNotificationResponse(record *domain.NotificationRecord) notificationResponse {
	if record == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:              record.ID,
		Recipient:       record.Recipient,
		Subject:         record.Subject,
		Body:            record.Body,
		Category:        record.Category,
		RelatedEntityID: record.RelatedEntityID,
		Status:          record.Status.String(),
		RetryCount:      record.RetryCount,
		LastError:       record.LastError,
		SentAt:          record.SentAt,
		LastRetryAt:     record.LastRetryAt,
		NextRetryAt:     record.NextRetryAt,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidState):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
