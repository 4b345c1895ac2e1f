package quote

import (
	"context"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

type GetQuoteUseCase struct {
	store repository.RequestStore
}

func NewGetQuoteUseCase(store repository.RequestStore) *GetQuoteUseCase {
	return &GetQuoteUseCase{store: store}
}

func (uc *GetQuoteUseCase) Execute(ctx context.Context, quoteID string, actor valueobject.Actor) (*entity.Quote, error) {
	requestID, err := uc.store.RequestIDByQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	agg, err := uc.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	view := agg.ViewFor(actor)
	if view == nil {
		return nil, apperror.ErrForbidden
	}
	q := view.Quote(quoteID)
	if q == nil {
		return nil, apperror.ErrForbidden
	}
	return q, nil
}

type ListQuotesUseCase struct {
	store repository.RequestStore
}

func NewListQuotesUseCase(store repository.RequestStore) *ListQuotesUseCase {
	return &ListQuotesUseCase{store: store}
}

// Execute заказчик видит все предложения по своей заявке, исполнитель только свои.
func (uc *ListQuotesUseCase) Execute(ctx context.Context, requestID string, actor valueobject.Actor) ([]*entity.Quote, error) {
	agg, err := uc.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	view := agg.ViewFor(actor)
	if view == nil {
		return nil, apperror.ErrForbidden
	}
	if view.Quotes == nil {
		return []*entity.Quote{}, nil
	}
	return view.Quotes, nil
}
