package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rentaplace/notifier/internal/domain"
	"github.com/rentaplace/notifier/internal/mailer"
	"github.com/rentaplace/notifier/internal/repository"
)

type fakeNotificationRepo struct {
	createFn        func(ctx context.Context, n *domain.NotificationRecord) error
	getByIDFn       func(ctx context.Context, id string) (*domain.NotificationRecord, error)
	listFn          func(ctx context.Context, params repository.ListParams) ([]domain.NotificationRecord, int64, error)
	queryDueFn      func(ctx context.Context, limit int, now time.Time) ([]domain.NotificationRecord, error)
	updateCheckedFn func(ctx context.Context, n *domain.NotificationRecord) error
	deleteFn        func(ctx context.Context, id string) error
	statusCountsFn  func(ctx context.Context) ([]repository.StatusCount, error)
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.NotificationRecord) error {
	if f.createFn == nil {
		return nil
	}
	return f.createFn(ctx, n)
}

func (f *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	if f.getByIDFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.getByIDFn(ctx, id)
}

func (f *fakeNotificationRepo) List(ctx context.Context, params repository.ListParams) ([]domain.NotificationRecord, int64, error) {
	if f.listFn == nil {
		return nil, 0, nil
	}
	return f.listFn(ctx, params)
}

func (f *fakeNotificationRepo) QueryDue(ctx context.Context, limit int, now time.Time) ([]domain.NotificationRecord, error) {
	if f.queryDueFn == nil {
		return nil, nil
	}
	return f.queryDueFn(ctx, limit, now)
}

func (f *fakeNotificationRepo) UpdateChecked(ctx context.Context, n *domain.NotificationRecord) error {
	if f.updateCheckedFn == nil {
		return nil
	}
	return f.updateCheckedFn(ctx, n)
}

func (f *fakeNotificationRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn == nil {
		return nil
	}
	return f.deleteFn(ctx, id)
}

func (f *fakeNotificationRepo) StatusCounts(ctx context.Context) ([]repository.StatusCount, error) {
	if f.statusCountsFn == nil {
		return nil, nil
	}
	return f.statusCountsFn(ctx)
}

type fakeAttemptRepo struct {
	mu       sync.Mutex
	createFn func(ctx context.Context, a *domain.DeliveryAttempt) error
	attempts []domain.DeliveryAttempt
}

func (f *fakeAttemptRepo) Create(ctx context.Context, a *domain.DeliveryAttempt) error {
	f.mu.Lock()
	f.attempts = append(f.attempts, *a)
	f.mu.Unlock()
	if f.createFn == nil {
		return nil
	}
	return f.createFn(ctx, a)
}

func (f *fakeAttemptRepo) GetByNotificationID(ctx context.Context, notificationID string) ([]domain.DeliveryAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.DeliveryAttempt
	for _, a := range f.attempts {
		if a.NotificationID == notificationID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeTransport struct {
	driver string
	sendFn func(ctx context.Context, msg mailer.Message) (*mailer.SendResult, error)
}

func (f *fakeTransport) Driver() string {
	if f.driver == "" {
		return "smtp"
	}
	return f.driver
}

func (f *fakeTransport) Send(ctx context.Context, msg mailer.Message) (*mailer.SendResult, error) {
	if f.sendFn == nil {
		return &mailer.SendResult{MessageID: "fake-msg"}, nil
	}
	return f.sendFn(ctx, msg)
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, driver string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, driver string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, driver string) error {
	if f.waitFn == nil {
		return nil
	}
	return f.waitFn(ctx, driver)
}

// memoryNotificationRepo is a map-backed store with real version-checked
// writes, for tests that exercise full delivery cycles.
type memoryNotificationRepo struct {
	mu      sync.Mutex
	records map[string]*domain.NotificationRecord
}

func newMemoryNotificationRepo() *memoryNotificationRepo {
	return &memoryNotificationRepo{records: make(map[string]*domain.NotificationRecord)}
}

func (m *memoryNotificationRepo) put(n domain.NotificationRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[n.ID] = &n
}

func (m *memoryNotificationRepo) get(id string) domain.NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.records[id]
}

func (m *memoryNotificationRepo) Create(ctx context.Context, n *domain.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[n.ID]; exists {
		return fmt.Errorf("duplicate id %s", n.ID)
	}
	clone := *n
	m.records[n.ID] = &clone
	return nil
}

func (m *memoryNotificationRepo) GetByID(ctx context.Context, id string) (*domain.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (m *memoryNotificationRepo) List(ctx context.Context, params repository.ListParams) ([]domain.NotificationRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.NotificationRecord
	for _, record := range m.records {
		out = append(out, *record)
	}
	return out, int64(len(out)), nil
}

func (m *memoryNotificationRepo) QueryDue(ctx context.Context, limit int, now time.Time) ([]domain.NotificationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []domain.NotificationRecord
	for _, record := range m.records {
		if record.IsDue(now) {
			due = append(due, *record)
		}
	}

	// Oldest first.
	for i := 0; i < len(due); i++ {
		for j := i + 1; j < len(due); j++ {
			if due[j].CreatedAt.Before(due[i].CreatedAt) {
				due[i], due[j] = due[j], due[i]
			}
		}
	}

	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *memoryNotificationRepo) UpdateChecked(ctx context.Context, n *domain.NotificationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.records[n.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != n.Version {
		return domain.ErrConflict
	}

	clone := *n
	clone.Version++
	m.records[n.ID] = &clone
	n.Version = clone.Version
	return nil
}

func (m *memoryNotificationRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *memoryNotificationRepo) StatusCounts(ctx context.Context) ([]repository.StatusCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byStatus := make(map[domain.Status]int)
	for _, record := range m.records {
		byStatus[record.Status]++
	}

	var counts []repository.StatusCount
	for status, count := range byStatus {
		counts = append(counts, repository.StatusCount{Status: status, Count: count})
	}
	return counts, nil
}
