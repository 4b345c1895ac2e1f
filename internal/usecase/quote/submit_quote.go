package quote

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/eligibility"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
	"github.com/ignatzorin/dispatch-engine/internal/validation"
)

type SubmitQuoteInput struct {
	RequestID string
	Actor     valueobject.Actor
	Amount    string
	Breakdown valueobject.Payload
	Notes     string
	AutoPrice bool
	Now       time.Time
}

type SubmitQuoteUseCase struct {
	runner  *unitofwork.Runner
	roster  repository.OperatorRoster
	pricing repository.PricingCalculator
	policy  valueobject.TierPolicy
	ttl     time.Duration
}

func NewSubmitQuoteUseCase(
	runner *unitofwork.Runner,
	roster repository.OperatorRoster,
	pricing repository.PricingCalculator,
	policy valueobject.TierPolicy,
	ttl time.Duration,
) *SubmitQuoteUseCase {
	return &SubmitQuoteUseCase{runner: runner, roster: roster, pricing: pricing, policy: policy, ttl: ttl}
}

// Execute исполнитель подаёт предложение. При AutoPrice или пустой сумме цену считает калькулятор.
func (uc *SubmitQuoteUseCase) Execute(ctx context.Context, input SubmitQuoteInput) (*entity.Quote, error) {
	if input.Actor.Role != valueobject.ActorOperator {
		return nil, apperror.New(apperror.ErrCodeForbidden, "подавать предложения может только исполнитель")
	}
	notes, err := validation.Notes(input.Notes)
	if err != nil {
		return nil, err
	}
	op, err := uc.roster.Get(ctx, input.Actor.ID)
	if err != nil {
		return nil, err
	}

	var quoteID string
	agg, _, err := uc.runner.Do(ctx, input.RequestID, func(agg *entity.RequestAggregate) error {
		if !agg.Request.AcceptsQuotes(input.Now) {
			return apperror.ErrNotAcceptingQuotes
		}
		eligible, distance := eligibility.Check(agg.Request, op, uc.policy)
		if !eligible {
			return apperror.ErrOperatorNotEligible
		}

		amount, breakdown, err := uc.price(agg.Request, op, distance, input)
		if err != nil {
			return err
		}
		q, err := entity.NewQuote(entity.NewQuoteParams{
			RequestID:  agg.Request.ID,
			OperatorID: op.ID,
			Tier:       op.Tier,
			Amount:     amount,
			Breakdown:  breakdown,
			Notes:      notes,
		}, uc.ttl, input.Now)
		if err != nil {
			return err
		}
		quoteID = q.ID
		return agg.SubmitQuote(q, input.Now)
	})
	if err != nil {
		return nil, err
	}
	return agg.Quote(quoteID), nil
}

func (uc *SubmitQuoteUseCase) price(req *entity.ServiceRequest, op *entity.Operator, distance float64, input SubmitQuoteInput) (decimal.Decimal, valueobject.Payload, error) {
	if !input.AutoPrice && strings.TrimSpace(input.Amount) != "" {
		amount, err := valueobject.NewAmount(strings.TrimSpace(input.Amount))
		if err != nil {
			return decimal.Zero, nil, err
		}
		return amount, input.Breakdown, nil
	}
	if uc.pricing == nil {
		return decimal.Zero, nil, apperror.New(apperror.ErrCodeValidation, "укажите сумму предложения")
	}
	price, err := uc.pricing.Price(repository.PriceInput{
		Tier:        op.Tier,
		ServiceType: req.ServiceTypes[0],
		DistanceKm:  distance,
		Urgent:      req.Emergency,
	})
	if err != nil {
		return decimal.Zero, nil, err
	}
	return price.Amount, price.Breakdown, nil
}
