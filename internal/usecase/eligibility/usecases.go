package eligibility

import (
	"context"

	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

type ListEligibleOperatorsInput struct {
	RequestID string
	Actor     valueobject.Actor
}

type ListEligibleOperatorsUseCase struct {
	store  repository.RequestStore
	roster repository.OperatorRoster
	policy valueobject.TierPolicy
}

func NewListEligibleOperatorsUseCase(store repository.RequestStore, roster repository.OperatorRoster, policy valueobject.TierPolicy) *ListEligibleOperatorsUseCase {
	return &ListEligibleOperatorsUseCase{store: store, roster: roster, policy: policy}
}

func (uc *ListEligibleOperatorsUseCase) Execute(ctx context.Context, input ListEligibleOperatorsInput) ([]Candidate, error) {
	agg, err := uc.store.Get(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}
	if !input.Actor.IsSystem() && !input.Actor.IsCustomer(agg.Request.CustomerID) {
		return nil, apperror.ErrForbidden
	}

	roster, err := uc.roster.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return Candidates(agg.Request, roster, uc.policy), nil
}
