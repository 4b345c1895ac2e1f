package request

import (
	"context"
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/eligibility"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
)

type OfferToOperatorInput struct {
	RequestID  string
	OperatorID string
	Actor      valueobject.Actor
	Now        time.Time
}

type OfferToOperatorUseCase struct {
	runner *unitofwork.Runner
	roster repository.OperatorRoster
	policy valueobject.TierPolicy
}

func NewOfferToOperatorUseCase(runner *unitofwork.Runner, roster repository.OperatorRoster, policy valueobject.TierPolicy) *OfferToOperatorUseCase {
	return &OfferToOperatorUseCase{runner: runner, roster: roster, policy: policy}
}

// Execute заказчик напрямую предлагает заявку одному подходящему исполнителю.
func (uc *OfferToOperatorUseCase) Execute(ctx context.Context, input OfferToOperatorInput) (*entity.ServiceRequest, error) {
	if input.OperatorID == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указан исполнитель")
	}
	op, err := uc.roster.Get(ctx, input.OperatorID)
	if err != nil {
		return nil, err
	}

	agg, _, err := uc.runner.Do(ctx, input.RequestID, func(agg *entity.RequestAggregate) error {
		if !input.Actor.IsCustomer(agg.Request.CustomerID) {
			return apperror.ErrForbidden
		}
		if ok, _ := eligibility.Check(agg.Request, op, uc.policy); !ok {
			return apperror.ErrOperatorNotEligible
		}
		return agg.OfferToOperator(op.ID, input.Actor, input.Now)
	})
	if err != nil {
		return nil, err
	}
	return agg.Request, nil
}

type RespondToOfferInput struct {
	RequestID string
	Actor     valueobject.Actor
	Accept    bool
	Reason    string
	Now       time.Time
}

type RespondToOfferUseCase struct {
	runner *unitofwork.Runner
}

func NewRespondToOfferUseCase(runner *unitofwork.Runner) *RespondToOfferUseCase {
	return &RespondToOfferUseCase{runner: runner}
}

// Execute принятие сразу связывает заявку с исполнителем и закрывает все открытые предложения.
func (uc *RespondToOfferUseCase) Execute(ctx context.Context, input RespondToOfferInput) (*entity.ServiceRequest, error) {
	if input.Actor.Role != valueobject.ActorOperator {
		return nil, apperror.ErrForbidden
	}
	var reason *valueobject.DeclineReason
	if !input.Accept && input.Reason != "" {
		r, err := valueobject.NewDeclineReason(input.Reason)
		if err != nil {
			return nil, err
		}
		reason = &r
	}

	agg, _, err := uc.runner.Do(ctx, input.RequestID, func(agg *entity.RequestAggregate) error {
		return agg.RespondToOffer(input.Actor, input.Accept, reason, input.Now)
	})
	if err != nil {
		return nil, err
	}
	return agg.Request, nil
}
