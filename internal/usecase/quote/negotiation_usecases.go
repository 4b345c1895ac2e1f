package quote

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

type quoteMutation func(agg *entity.RequestAggregate, q *entity.Quote) error

// onQuote находит заявку предложения и выполняет fn под её блокировкой.
func onQuote(ctx context.Context, runner *unitofwork.Runner, quoteID string, fn quoteMutation) (*entity.Quote, error) {
	requestID, err := runner.Store().RequestIDByQuote(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	agg, _, err := runner.Do(ctx, requestID, func(agg *entity.RequestAggregate) error {
		q := agg.Quote(quoteID)
		if q == nil {
			return apperror.ErrQuoteNotFound
		}
		return fn(agg, q)
	})
	if err != nil {
		return nil, err
	}
	return agg.Quote(quoteID), nil
}

type CounterQuoteInput struct {
	QuoteID string
	Actor   valueobject.Actor
	Amount  string
	Notes   string
	Now     time.Time
}

type CounterQuoteUseCase struct {
	runner *unitofwork.Runner
}

func NewCounterQuoteUseCase(runner *unitofwork.Runner) *CounterQuoteUseCase {
	return &CounterQuoteUseCase{runner: runner}
}

// Execute встречная сумма заказчика на предложение в статусе sent.
func (uc *CounterQuoteUseCase) Execute(ctx context.Context, input CounterQuoteInput) (*entity.Quote, error) {
	amount, err := valueobject.NewAmount(strings.TrimSpace(input.Amount))
	if err != nil {
		return nil, err
	}
	notes, err := validation.Notes(input.Notes)
	if err != nil {
		return nil, err
	}
	return onQuote(ctx, uc.runner, input.QuoteID, func(agg *entity.RequestAggregate, q *entity.Quote) error {
		if !input.Actor.IsCustomer(agg.Request.CustomerID) {
			return apperror.ErrForbidden
		}
		return agg.CounterQuote(q.ID, input.Actor, amount, notes, input.Now)
	})
}

type RespondToCounterInput struct {
	QuoteID string
	Actor   valueobject.Actor
	// Amount пустой: исполнитель соглашается с суммой заказчика.
	Amount string
	Notes  string
	Now    time.Time
}

type RespondToCounterUseCase struct {
	runner *unitofwork.Runner
	ttl    time.Duration
}

func NewRespondToCounterUseCase(runner *unitofwork.Runner, ttl time.Duration) *RespondToCounterUseCase {
	return &RespondToCounterUseCase{runner: runner, ttl: ttl}
}

func (uc *RespondToCounterUseCase) Execute(ctx context.Context, input RespondToCounterInput) (*entity.Quote, error) {
	var newAmount *decimal.Decimal
	if raw := strings.TrimSpace(input.Amount); raw != "" {
		amount, err := valueobject.NewAmount(raw)
		if err != nil {
			return nil, err
		}
		newAmount = &amount
	}
	notes, err := validation.Notes(input.Notes)
	if err != nil {
		return nil, err
	}
	return onQuote(ctx, uc.runner, input.QuoteID, func(agg *entity.RequestAggregate, q *entity.Quote) error {
		if !input.Actor.IsOperator(q.OperatorID) {
			return apperror.ErrForbidden
		}
		return agg.RespondToCounter(q.ID, input.Actor, newAmount, notes, uc.ttl, input.Now)
	})
}

type QuoteActionInput struct {
	QuoteID string
	Actor   valueobject.Actor
	Now     time.Time
}

type AcceptQuoteUseCase struct {
	runner *unitofwork.Runner
}

func NewAcceptQuoteUseCase(runner *unitofwork.Runner) *AcceptQuoteUseCase {
	return &AcceptQuoteUseCase{runner: runner}
}

// Execute связывающее принятие: заявка назначается, остальные предложения вытесняются в той же операции.
func (uc *AcceptQuoteUseCase) Execute(ctx context.Context, input QuoteActionInput) (*entity.Quote, error) {
	return onQuote(ctx, uc.runner, input.QuoteID, func(agg *entity.RequestAggregate, q *entity.Quote) error {
		if !input.Actor.IsCustomer(agg.Request.CustomerID) {
			return apperror.ErrForbidden
		}
		return agg.AcceptQuote(q.ID, input.Actor, input.Now)
	})
}

type DeclineQuoteInput struct {
	QuoteID string
	Actor   valueobject.Actor
	Reason  string
	Notes   string
	Now     time.Time
}

type DeclineQuoteUseCase struct {
	runner *unitofwork.Runner
}

func NewDeclineQuoteUseCase(runner *unitofwork.Runner) *DeclineQuoteUseCase {
	return &DeclineQuoteUseCase{runner: runner}
}

// Execute отклонить может владелец предложения или заказчик.
func (uc *DeclineQuoteUseCase) Execute(ctx context.Context, input DeclineQuoteInput) (*entity.Quote, error) {
	reason, err := valueobject.NewDeclineReason(input.Reason)
	if err != nil {
		return nil, err
	}
	notes, err := validation.Notes(input.Notes)
	if err != nil {
		return nil, err
	}
	return onQuote(ctx, uc.runner, input.QuoteID, func(agg *entity.RequestAggregate, q *entity.Quote) error {
		if !input.Actor.IsOperator(q.OperatorID) && !input.Actor.IsCustomer(agg.Request.CustomerID) {
			return apperror.ErrForbidden
		}
		return agg.DeclineQuote(q.ID, input.Actor, reason, notes, input.Now)
	})
}

type WithdrawQuoteUseCase struct {
	runner *unitofwork.Runner
}

func NewWithdrawQuoteUseCase(runner *unitofwork.Runner) *WithdrawQuoteUseCase {
	return &WithdrawQuoteUseCase{runner: runner}
}

func (uc *WithdrawQuoteUseCase) Execute(ctx context.Context, input QuoteActionInput) (*entity.Quote, error) {
	return onQuote(ctx, uc.runner, input.QuoteID, func(agg *entity.RequestAggregate, q *entity.Quote) error {
		if !input.Actor.IsOperator(q.OperatorID) {
			return apperror.ErrForbidden
		}
		return agg.WithdrawQuote(q.ID, input.Actor, input.Now)
	})
}
