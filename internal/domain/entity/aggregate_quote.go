package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// SubmitQuote добавляет предложение. Уже просроченное, но не зачищенное предложение того же исполнителя
// закрывается здесь же, чтобы не блокировать новую подачу.
func (a *RequestAggregate) SubmitQuote(q *Quote, now time.Time) error {
	if !a.Request.AcceptsQuotes(now) {
		return apperror.ErrNotAcceptingQuotes
	}
	for _, existing := range a.Quotes {
		if existing.OperatorID != q.OperatorID || existing.IsTerminal() {
			continue
		}
		if !existing.IsDue(now) {
			return apperror.ErrDuplicateActiveQuote
		}
		a.closeQuote(existing, valueobject.QuoteStatusExpired, QuoteActionExpired, EventQuoteExpired,
			valueobject.System("quote-expiry"), now)
	}

	q.RequestID = a.Request.ID
	a.Quotes = append(a.Quotes, q)
	meta := quoteMeta(q)
	meta["expiresAt"] = q.ExpiresAt.UTC().Format(time.RFC3339)
	a.record(valueobject.Operator(q.OperatorID), EventQuoteSubmitted, "", string(q.Status), meta, now)
	return nil
}

func (a *RequestAggregate) quoteOrErr(id string) (*Quote, error) {
	q := a.Quote(id)
	if q == nil {
		return nil, apperror.ErrQuoteNotFound
	}
	return q, nil
}

func (a *RequestAggregate) CounterQuote(quoteID string, actor valueobject.Actor, amount decimal.Decimal, notes string, now time.Time) error {
	q, err := a.quoteOrErr(quoteID)
	if err != nil {
		return err
	}
	from := q.Status
	if err := q.Counter(actor, amount, notes, now); err != nil {
		return err
	}
	meta := quoteMeta(q)
	meta["counterAmount"] = q.CounterAmount.String()
	a.record(actor, EventQuoteCountered, string(from), string(q.Status), meta, now)
	return nil
}

// RespondToCounter newAmount == nil означает согласие с суммой заказчика.
func (a *RequestAggregate) RespondToCounter(quoteID string, actor valueobject.Actor, newAmount *decimal.Decimal, notes string, ttl time.Duration, now time.Time) error {
	q, err := a.quoteOrErr(quoteID)
	if err != nil {
		return err
	}
	from := q.Status
	if err := q.RespondToCounter(actor, newAmount, notes, ttl, now); err != nil {
		return err
	}
	meta := quoteMeta(q)
	meta["expiresAt"] = q.ExpiresAt.UTC().Format(time.RFC3339)
	a.record(actor, EventQuoteCounterResponded, string(from), string(q.Status), meta, now)
	return nil
}

// AcceptQuote связывает заявку с исполнителем предложения.
func (a *RequestAggregate) AcceptQuote(quoteID string, actor valueobject.Actor, now time.Time) error {
	q, err := a.quoteOrErr(quoteID)
	if err != nil {
		return err
	}
	if err := q.ensureLive(now); err != nil {
		return err
	}
	if err := a.ensureRequestOpen(); err != nil {
		return err
	}
	from := q.Status
	if err := q.Accept(actor, now); err != nil {
		return err
	}
	a.record(actor, EventQuoteAccepted, string(from), string(q.Status), quoteMeta(q), now)
	return a.bind(q.OperatorID, &q.ID, nil, actor, now)
}

func (a *RequestAggregate) DeclineQuote(quoteID string, actor valueobject.Actor, reason valueobject.DeclineReason, notes string, now time.Time) error {
	q, err := a.quoteOrErr(quoteID)
	if err != nil {
		return err
	}
	from := q.Status
	if err := q.Decline(actor, reason, notes, now); err != nil {
		return err
	}
	meta := quoteMeta(q)
	meta["reason"] = string(reason)
	a.record(actor, EventQuoteDeclined, string(from), string(q.Status), meta, now)
	return nil
}

func (a *RequestAggregate) WithdrawQuote(quoteID string, actor valueobject.Actor, now time.Time) error {
	q, err := a.quoteOrErr(quoteID)
	if err != nil {
		return err
	}
	from := q.Status
	if err := q.Withdraw(actor, now); err != nil {
		return err
	}
	a.record(actor, EventQuoteWithdrawn, string(from), string(q.Status), quoteMeta(q), now)
	return nil
}

// ExpireDue переводит просроченные предложения в expired и закрывает истёкшее окно.
// Возвращает число переходов; повторный вызов с тем же now вернёт 0.
func (a *RequestAggregate) ExpireDue(actor valueobject.Actor, now time.Time) int {
	changed := 0
	for _, q := range a.Quotes {
		if !q.IsDue(now) {
			continue
		}
		if a.closeQuote(q, valueobject.QuoteStatusExpired, QuoteActionExpired, EventQuoteExpired, actor, now) {
			changed++
		}
	}
	req := a.Request
	if req.QuoteStatus == valueobject.QuoteWindowOpen && !now.Before(req.QuoteWindowExpiresAt) {
		a.setWindow(valueobject.QuoteWindowExpired, actor, now)
		changed++
	}
	return changed
}

// HasDueQuotes есть ли у заявки работа для свипа предложений.
func (a *RequestAggregate) HasDueQuotes(now time.Time) bool {
	for _, q := range a.Quotes {
		if q.IsDue(now) {
			return true
		}
	}
	return a.Request.QuoteStatus == valueobject.QuoteWindowOpen && !now.Before(a.Request.QuoteWindowExpiresAt)
}
