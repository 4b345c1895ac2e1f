package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

// OperatorRoster внешний реестр исполнителей (местоположение, статус, рейтинг).
type OperatorRoster interface {
	Snapshot(ctx context.Context) ([]*entity.Operator, error)
	Get(ctx context.Context, operatorID string) (*entity.Operator, error)
}

type PriceInput struct {
	Tier        valueobject.Tier
	ServiceType valueobject.ServiceType
	DistanceKm  float64
	Urgent      bool
}

type Price struct {
	Amount    decimal.Decimal
	Breakdown valueobject.Payload
}

// PricingCalculator чистая функция расчёта цены, внутренняя логика снаружи движка.
type PricingCalculator interface {
	Price(input PriceInput) (Price, error)
}

// EventPublisher рассылка событий после фиксации. Не должна блокировать вызывающего.
type EventPublisher interface {
	Publish(ctx context.Context, req *entity.ServiceRequest, events []*entity.StatusEvent)
}
