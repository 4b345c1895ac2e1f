package repository

import (
	"context"
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
)

// MutateFunc меняет агрегат заявки. Ошибка отменяет все изменения операции.
type MutateFunc func(agg *entity.RequestAggregate) error

type RequestFilter struct {
	CustomerID string
	OperatorID string
	Status     string
	Limit      int
	Offset     int
}

// RequestStore хранилище агрегатов заявок.
// InRequest выполняет fn под эксклюзивной блокировкой заявки: изменения и события фиксируются вместе
// и только при успехе, иначе ничего не меняется.
type RequestStore interface {
	Create(ctx context.Context, agg *entity.RequestAggregate) ([]*entity.StatusEvent, error)
	InRequest(ctx context.Context, requestID string, fn MutateFunc) ([]*entity.StatusEvent, error)

	Get(ctx context.Context, requestID string) (*entity.RequestAggregate, error)
	List(ctx context.Context, filter RequestFilter) ([]*entity.ServiceRequest, error)
	RequestIDByQuote(ctx context.Context, quoteID string) (string, error)
	RequestIDByEntry(ctx context.Context, entryID string) (string, error)
	ListEvents(ctx context.Context, requestID string) ([]*entity.StatusEvent, error)

	// DueForQuoteSweep заявки с просроченными предложениями или истёкшим окном.
	DueForQuoteSweep(ctx context.Context, now time.Time) ([]string, error)
	// DueForDispatchSweep заявки с просроченными уведомлениями в активном прогоне.
	DueForDispatchSweep(ctx context.Context, now time.Time) ([]string, error)
}
