package request

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
	"github.com/ignatzorin/dispatch-engine/internal/validation"
)

type CreateRequestInput struct {
	Actor         valueobject.Actor
	ServiceTypes  []string
	Emergency     bool
	Description   string
	Lat           float64
	Lon           float64
	Address       string
	Region        string
	PreferredTime *time.Time
	BudgetHint    *string
	Now           time.Time
}

type CreateRequestUseCase struct {
	runner      *unitofwork.Runner
	quoteWindow time.Duration
}

func NewCreateRequestUseCase(runner *unitofwork.Runner, quoteWindow time.Duration) *CreateRequestUseCase {
	return &CreateRequestUseCase{runner: runner, quoteWindow: quoteWindow}
}

func (uc *CreateRequestUseCase) Execute(ctx context.Context, input CreateRequestInput) (*entity.ServiceRequest, error) {
	if input.Actor.Role != valueobject.ActorCustomer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать заявки может только заказчик")
	}

	types, err := valueobject.NewServiceTypes(input.ServiceTypes)
	if err != nil {
		return nil, err
	}
	point, err := valueobject.NewGeoPoint(input.Lat, input.Lon)
	if err != nil {
		return nil, err
	}

	description, err := validation.CleanText("описание", input.Description, validation.MaxDescriptionLength)
	if err != nil {
		return nil, err
	}
	address, err := validation.CleanText("адрес", input.Address, validation.MaxAddressLength)
	if err != nil {
		return nil, err
	}
	region, err := validation.CleanText("регион", input.Region, validation.MaxRegionLength)
	if err != nil {
		return nil, err
	}

	var budget *decimal.Decimal
	if input.BudgetHint != nil && strings.TrimSpace(*input.BudgetHint) != "" {
		b, err := decimal.NewFromString(strings.TrimSpace(*input.BudgetHint))
		if err != nil {
			return nil, apperror.New(apperror.ErrCodeValidation, "некорректный бюджет")
		}
		budget = &b
	}

	req, err := entity.NewServiceRequest(entity.NewServiceRequestParams{
		CustomerID:   input.Actor.ID,
		ServiceTypes: types,
		Emergency:    input.Emergency,
		Description:  description,
		Location: valueobject.Location{
			Point:   point,
			Address: address,
			Region:  region,
		},
		PreferredTime: input.PreferredTime,
		BudgetHint:    budget,
	}, uc.quoteWindow, input.Now)
	if err != nil {
		return nil, err
	}

	agg := entity.NewRequestAggregate(req, input.Actor, input.Now)
	if err := uc.runner.Create(ctx, agg); err != nil {
		return nil, err
	}
	return req, nil
}
