package request

import (
	"context"
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
	"github.com/ignatzorin/dispatch-engine/internal/validation"
)

type TransitionInput struct {
	RequestID string
	Actor     valueobject.Actor
	Reason    string
	Now       time.Time
}

type StartWorkUseCase struct {
	runner *unitofwork.Runner
}

func NewStartWorkUseCase(runner *unitofwork.Runner) *StartWorkUseCase {
	return &StartWorkUseCase{runner: runner}
}

func (uc *StartWorkUseCase) Execute(ctx context.Context, input TransitionInput) (*entity.ServiceRequest, error) {
	agg, _, err := uc.runner.Do(ctx, input.RequestID, func(agg *entity.RequestAggregate) error {
		if !isAssignedOperator(agg, input.Actor) {
			return apperror.ErrForbidden
		}
		return agg.StartWork(input.Actor, input.Now)
	})
	if err != nil {
		return nil, err
	}
	return agg.Request, nil
}

type CompleteUseCase struct {
	runner *unitofwork.Runner
}

func NewCompleteUseCase(runner *unitofwork.Runner) *CompleteUseCase {
	return &CompleteUseCase{runner: runner}
}

func (uc *CompleteUseCase) Execute(ctx context.Context, input TransitionInput) (*entity.ServiceRequest, error) {
	agg, _, err := uc.runner.Do(ctx, input.RequestID, func(agg *entity.RequestAggregate) error {
		if !isAssignedOperator(agg, input.Actor) && !isOwnerOrSystem(agg, input.Actor) {
			return apperror.ErrForbidden
		}
		return agg.Complete(input.Actor, input.Now)
	})
	if err != nil {
		return nil, err
	}
	return agg.Request, nil
}

type DisputeUseCase struct {
	runner *unitofwork.Runner
}

func NewDisputeUseCase(runner *unitofwork.Runner) *DisputeUseCase {
	return &DisputeUseCase{runner: runner}
}

func (uc *DisputeUseCase) Execute(ctx context.Context, input TransitionInput) (*entity.ServiceRequest, error) {
	reason, err := validation.Reason(input.Reason)
	if err != nil {
		return nil, err
	}
	agg, _, err := uc.runner.Do(ctx, input.RequestID, func(agg *entity.RequestAggregate) error {
		if !isAssignedOperator(agg, input.Actor) && !input.Actor.IsCustomer(agg.Request.CustomerID) {
			return apperror.ErrForbidden
		}
		return agg.Dispute(input.Actor, reason, input.Now)
	})
	if err != nil {
		return nil, err
	}
	return agg.Request, nil
}

type ResolveDisputeInput struct {
	RequestID string
	Actor     valueobject.Actor
	Outcome   string
	Notes     string
	Now       time.Time
}

type ResolveDisputeUseCase struct {
	runner *unitofwork.Runner
}

func NewResolveDisputeUseCase(runner *unitofwork.Runner) *ResolveDisputeUseCase {
	return &ResolveDisputeUseCase{runner: runner}
}

// Execute спор разрешает только система (поддержка).
func (uc *ResolveDisputeUseCase) Execute(ctx context.Context, input ResolveDisputeInput) (*entity.ServiceRequest, error) {
	if !input.Actor.IsSystem() {
		return nil, apperror.ErrForbidden
	}
	to, err := valueobject.NewRequestStatus(input.Outcome)
	if err != nil {
		return nil, err
	}
	notes, err := validation.Notes(input.Notes)
	if err != nil {
		return nil, err
	}
	agg, _, err := uc.runner.Do(ctx, input.RequestID, func(agg *entity.RequestAggregate) error {
		return agg.ResolveDispute(input.Actor, to, notes, input.Now)
	})
	if err != nil {
		return nil, err
	}
	return agg.Request, nil
}

type CancelRequestUseCase struct {
	runner *unitofwork.Runner
}

func NewCancelRequestUseCase(runner *unitofwork.Runner) *CancelRequestUseCase {
	return &CancelRequestUseCase{runner: runner}
}

// Execute отменяет заявку вместе со всеми активными предложениями и очередью вызова.
func (uc *CancelRequestUseCase) Execute(ctx context.Context, input TransitionInput) (*entity.ServiceRequest, error) {
	reason, err := validation.Reason(input.Reason)
	if err != nil {
		return nil, err
	}
	agg, _, err := uc.runner.Do(ctx, input.RequestID, func(agg *entity.RequestAggregate) error {
		if !isOwnerOrSystem(agg, input.Actor) {
			return apperror.ErrForbidden
		}
		return agg.Cancel(input.Actor, reason, input.Now)
	})
	if err != nil {
		return nil, err
	}
	return agg.Request, nil
}

func isAssignedOperator(agg *entity.RequestAggregate, actor valueobject.Actor) bool {
	return actor.Role == valueobject.ActorOperator && agg.Request.IsAssignedTo(actor.ID)
}

func isOwnerOrSystem(agg *entity.RequestAggregate, actor valueobject.Actor) bool {
	return actor.IsSystem() || actor.IsCustomer(agg.Request.CustomerID)
}
