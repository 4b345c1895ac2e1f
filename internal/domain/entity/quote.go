package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

type QuoteAction string

const (
	QuoteActionSubmitted        QuoteAction = "submitted"
	QuoteActionCountered        QuoteAction = "countered"
	QuoteActionCounterResponded QuoteAction = "counter_responded"
	QuoteActionCounterAccepted  QuoteAction = "counter_accepted"
	QuoteActionAccepted         QuoteAction = "accepted"
	QuoteActionDeclined         QuoteAction = "declined"
	QuoteActionWithdrawn        QuoteAction = "withdrawn"
	QuoteActionExpired          QuoteAction = "expired"
	QuoteActionSuperseded       QuoteAction = "superseded"
	QuoteActionCancelled        QuoteAction = "cancelled"
)

// QuoteHistoryEntry запись переговоров, хранится в jsonb.
type QuoteHistoryEntry struct {
	Action QuoteAction                `json:"action"`
	Actor  valueobject.Actor          `json:"actor"`
	Status valueobject.QuoteStatus    `json:"status"`
	Amount *decimal.Decimal           `json:"amount,omitempty"`
	Reason *valueobject.DeclineReason `json:"reason,omitempty"`
	Notes  string                     `json:"notes,omitempty"`
	At     time.Time                  `json:"at"`
}

type Quote struct {
	ID         string
	RequestID  string
	OperatorID string
	Tier       valueobject.Tier
	Amount     decimal.Decimal
	Breakdown  valueobject.Payload
	Notes      string

	Status           valueobject.QuoteStatus
	OperatorAccepted bool
	CounterAmount    *decimal.Decimal
	CounterNotes     string
	DeclineReason    *valueobject.DeclineReason
	DeclineNotes     string

	ExpiresAt   time.Time
	SubmittedAt time.Time
	RespondedAt *time.Time
	UpdatedAt   time.Time

	History []QuoteHistoryEntry
}

type NewQuoteParams struct {
	RequestID  string
	OperatorID string
	Tier       valueobject.Tier
	Amount     decimal.Decimal
	Breakdown  valueobject.Payload
	Notes      string
}

// NewQuote создаёт предложение в статусе sent. Подача предложения считается согласием исполнителя.
func NewQuote(p NewQuoteParams, ttl time.Duration, now time.Time) (*Quote, error) {
	if p.OperatorID == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указан исполнитель")
	}
	if err := valueobject.ValidateAmount(p.Amount); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "срок действия предложения должен быть положительным")
	}

	amount := p.Amount.Round(2)
	q := &Quote{
		ID:               uuid.NewString(),
		RequestID:        p.RequestID,
		OperatorID:       p.OperatorID,
		Tier:             p.Tier,
		Amount:           amount,
		Breakdown:        p.Breakdown.Clone(),
		Notes:            p.Notes,
		Status:           valueobject.QuoteStatusSent,
		OperatorAccepted: true,
		ExpiresAt:        now.Add(ttl),
		SubmittedAt:      now,
		UpdatedAt:        now,
	}
	q.appendHistory(QuoteActionSubmitted, valueobject.Operator(p.OperatorID), &amount, nil, p.Notes, now)
	return q, nil
}

func (q *Quote) IsOwnedBy(operatorID string) bool {
	return q.OperatorID == operatorID
}

func (q *Quote) IsTerminal() bool {
	return q.Status.IsTerminal()
}

// IsDue истёк срок, но свип ещё не перевёл предложение в expired.
func (q *Quote) IsDue(now time.Time) bool {
	return !q.IsTerminal() && !now.Before(q.ExpiresAt)
}

// ensureLive отвергает действия над завершёнными или просроченными предложениями.
func (q *Quote) ensureLive(now time.Time) error {
	if q.IsTerminal() || q.IsDue(now) {
		return apperror.ErrQuoteNoLongerActive
	}
	return nil
}

func (q *Quote) invalid(action string) error {
	return apperror.Newf(apperror.ErrCodeInvalidTransition,
		"действие %s недоступно для предложения в статусе %s", action, q.Status)
}

// Counter встречное предложение заказчика, допустимо только из sent.
func (q *Quote) Counter(actor valueobject.Actor, amount decimal.Decimal, notes string, now time.Time) error {
	if err := q.ensureLive(now); err != nil {
		return err
	}
	if q.Status != valueobject.QuoteStatusSent {
		return q.invalid("counter")
	}
	if err := valueobject.ValidateAmount(amount); err != nil {
		return err
	}
	amount = amount.Round(2)
	q.Status = valueobject.QuoteStatusCounterPending
	q.CounterAmount = &amount
	q.CounterNotes = notes
	q.touch(now)
	q.appendHistory(QuoteActionCountered, actor, &amount, nil, notes, now)
	return nil
}

// RespondToCounter ответ исполнителя: новая сумма (counter_sent) или согласие с суммой заказчика (operator_accepted).
// Срок действия продлевается, но никогда не уменьшается.
func (q *Quote) RespondToCounter(actor valueobject.Actor, newAmount *decimal.Decimal, notes string, ttl time.Duration, now time.Time) error {
	if err := q.ensureLive(now); err != nil {
		return err
	}
	if q.Status != valueobject.QuoteStatusCounterPending {
		return q.invalid("counter_response")
	}

	action := QuoteActionCounterAccepted
	if newAmount != nil {
		if err := valueobject.ValidateAmount(*newAmount); err != nil {
			return err
		}
		q.Amount = newAmount.Round(2)
		q.Status = valueobject.QuoteStatusCounterSent
		action = QuoteActionCounterResponded
	} else {
		q.Amount = *q.CounterAmount
		q.Status = valueobject.QuoteStatusOperatorAccepted
	}
	q.OperatorAccepted = true
	if extended := now.Add(ttl); extended.After(q.ExpiresAt) {
		q.ExpiresAt = extended
	}
	q.touch(now)
	amount := q.Amount
	q.appendHistory(action, actor, &amount, nil, notes, now)
	return nil
}

// Accept связывающее принятие заказчиком.
func (q *Quote) Accept(actor valueobject.Actor, now time.Time) error {
	if err := q.ensureLive(now); err != nil {
		return err
	}
	if !q.Status.IsAcceptable() {
		return q.invalid("accept")
	}
	q.Status = valueobject.QuoteStatusCustomerAccepted
	q.touch(now)
	amount := q.Amount
	q.appendHistory(QuoteActionAccepted, actor, &amount, nil, "", now)
	return nil
}

func (q *Quote) Decline(actor valueobject.Actor, reason valueobject.DeclineReason, notes string, now time.Time) error {
	if err := q.ensureLive(now); err != nil {
		return err
	}
	q.Status = reason.QuoteStatus()
	q.DeclineReason = &reason
	q.DeclineNotes = notes
	q.touch(now)
	q.appendHistory(QuoteActionDeclined, actor, nil, &reason, notes, now)
	return nil
}

// Withdraw отзыв исполнителем до любого ответа заказчика.
func (q *Quote) Withdraw(actor valueobject.Actor, now time.Time) error {
	if err := q.ensureLive(now); err != nil {
		return err
	}
	if q.Status != valueobject.QuoteStatusSent {
		return q.invalid("withdraw")
	}
	q.Status = valueobject.QuoteStatusOperatorWithdrawn
	q.touch(now)
	q.appendHistory(QuoteActionWithdrawn, actor, nil, nil, "", now)
	return nil
}

// close системное завершение (expired, superseded, cancelled). Повторный вызов ничего не меняет.
func (q *Quote) close(status valueobject.QuoteStatus, action QuoteAction, actor valueobject.Actor, now time.Time) bool {
	if q.IsTerminal() {
		return false
	}
	q.Status = status
	q.UpdatedAt = now
	q.appendHistory(action, actor, nil, nil, "", now)
	return true
}

func (q *Quote) touch(now time.Time) {
	q.RespondedAt = ptr(now)
	q.UpdatedAt = now
}

func (q *Quote) appendHistory(action QuoteAction, actor valueobject.Actor, amount *decimal.Decimal, reason *valueobject.DeclineReason, notes string, now time.Time) {
	q.History = append(q.History, QuoteHistoryEntry{
		Action: action,
		Actor:  actor,
		Status: q.Status,
		Amount: amount,
		Reason: reason,
		Notes:  notes,
		At:     now,
	})
}

func (q *Quote) Clone() *Quote {
	c := *q
	c.Breakdown = q.Breakdown.Clone()
	if q.CounterAmount != nil {
		v := *q.CounterAmount
		c.CounterAmount = &v
	}
	if q.DeclineReason != nil {
		v := *q.DeclineReason
		c.DeclineReason = &v
	}
	c.RespondedAt = cloneTime(q.RespondedAt)
	c.History = append([]QuoteHistoryEntry(nil), q.History...)
	return &c
}
