package request

import (
	"context"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

type GetRequestUseCase struct {
	store repository.RequestStore
}

func NewGetRequestUseCase(store repository.RequestStore) *GetRequestUseCase {
	return &GetRequestUseCase{store: store}
}

// Execute возвращает заявку в объёме, доступном участнику.
func (uc *GetRequestUseCase) Execute(ctx context.Context, requestID string, actor valueobject.Actor) (*entity.RequestAggregate, error) {
	agg, err := uc.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	view := agg.ViewFor(actor)
	if view == nil {
		return nil, apperror.ErrForbidden
	}
	return view, nil
}

type ListRequestsInput struct {
	Actor  valueobject.Actor
	Status string
	Limit  int
	Offset int
}

type ListRequestsUseCase struct {
	store repository.RequestStore
}

func NewListRequestsUseCase(store repository.RequestStore) *ListRequestsUseCase {
	return &ListRequestsUseCase{store: store}
}

// Execute заказчик видит свои заявки, исполнитель заявки, в которых участвует, система все.
func (uc *ListRequestsUseCase) Execute(ctx context.Context, input ListRequestsInput) ([]*entity.ServiceRequest, error) {
	filter := repository.RequestFilter{Status: input.Status, Limit: input.Limit, Offset: input.Offset}
	if input.Status != "" {
		if _, err := valueobject.NewRequestStatus(input.Status); err != nil {
			return nil, err
		}
	}
	switch input.Actor.Role {
	case valueobject.ActorCustomer:
		filter.CustomerID = input.Actor.ID
	case valueobject.ActorOperator:
		filter.OperatorID = input.Actor.ID
	case valueobject.ActorSystem:
	default:
		return nil, apperror.ErrForbidden
	}
	return uc.store.List(ctx, filter)
}

type ListEventsUseCase struct {
	store repository.RequestStore
}

func NewListEventsUseCase(store repository.RequestStore) *ListEventsUseCase {
	return &ListEventsUseCase{store: store}
}

// Execute журнал заявки в порядке Seq.
func (uc *ListEventsUseCase) Execute(ctx context.Context, requestID string, actor valueobject.Actor) ([]*entity.StatusEvent, error) {
	agg, err := uc.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !agg.CanSeeHistory(actor) {
		return nil, apperror.ErrForbidden
	}
	return uc.store.ListEvents(ctx, requestID)
}
