package quote_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/quote"
)

var customer = valueobject.Customer("cust-1")

func TestCounterNegotiationThenAccept(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)

	q := f.submitQuote(t, req.ID, "op-1", "100", t0)
	assert.Equal(t, valueobject.QuoteStatusSent, q.Status)
	assert.True(t, q.OperatorAccepted)
	assert.Equal(t, t0.Add(quoteTTL), q.ExpiresAt)

	q, err := f.counter.Execute(f.ctx, quote.CounterQuoteInput{QuoteID: q.ID, Actor: customer, Amount: "80", Now: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, valueobject.QuoteStatusCounterPending, q.Status)
	assert.Equal(t, "80", q.CounterAmount.String())

	q, err = f.respond.Execute(f.ctx, quote.RespondToCounterInput{QuoteID: q.ID, Actor: valueobject.Operator("op-1"), Amount: "90", Now: t0.Add(2 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, valueobject.QuoteStatusCounterSent, q.Status)
	assert.Equal(t, "90", q.Amount.String())
	assert.Equal(t, t0.Add(2*time.Hour+quoteTTL), q.ExpiresAt)

	q, err = f.accept.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q.ID, Actor: customer, Now: t0.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, valueobject.QuoteStatusCustomerAccepted, q.Status)

	agg := f.load(t, req.ID)
	assert.Equal(t, valueobject.RequestStatusAssigned, agg.Request.Status)
	require.NotNil(t, agg.Request.AssignedOperatorID)
	assert.Equal(t, "op-1", *agg.Request.AssignedOperatorID)
	require.NotNil(t, agg.Request.SelectedQuoteID)
	assert.Equal(t, q.ID, *agg.Request.SelectedQuoteID)
	assert.NotNil(t, agg.Request.ActiveJobID)
	assert.Equal(t, valueobject.QuoteWindowDecided, agg.Request.QuoteStatus)

	actions := make([]entity.QuoteAction, 0, len(q.History))
	for _, h := range q.History {
		actions = append(actions, h.Action)
	}
	assert.Equal(t, []entity.QuoteAction{
		entity.QuoteActionSubmitted,
		entity.QuoteActionCountered,
		entity.QuoteActionCounterResponded,
		entity.QuoteActionAccepted,
	}, actions)
}

func TestAcceptSupersedesOtherQuotes(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 1)
	f.addOperator("op-2", 3)
	req := f.createRequest(t, false)

	q1 := f.submitQuote(t, req.ID, "op-1", "120", t0)
	q2 := f.submitQuote(t, req.ID, "op-2", "110", t0.Add(time.Minute))

	_, err := f.accept.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q1.ID, Actor: customer, Now: t0.Add(time.Hour)})
	require.NoError(t, err)

	agg := f.load(t, req.ID)
	assert.Equal(t, valueobject.QuoteStatusSuperseded, agg.Quote(q2.ID).Status)

	_, err = f.accept.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q2.ID, Actor: customer, Now: t0.Add(2 * time.Hour)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeQuoteNoLongerActive))

	_, err = f.withdraw.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q2.ID, Actor: valueobject.Operator("op-2"), Now: t0.Add(2 * time.Hour)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeQuoteNoLongerActive))

	var superseded int
	for _, ev := range f.events(t, req.ID) {
		if ev.EventType == entity.EventQuoteSuperseded {
			superseded++
			assert.Equal(t, q2.ID, ev.Metadata["quoteId"])
		}
	}
	assert.Equal(t, 1, superseded)
}

func TestSweptQuoteCannotBeAccepted(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)
	q := f.submitQuote(t, req.ID, "op-1", "100", t0)

	sweepAt := t0.Add(quoteTTL)
	report, err := f.expire.Execute(f.ctx, sweepAt)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Changed)
	assert.Zero(t, report.Failed)
	assert.Equal(t, valueobject.QuoteStatusExpired, f.load(t, req.ID).Quote(q.ID).Status)

	_, err = f.accept.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q.ID, Actor: customer, Now: sweepAt.Add(time.Second)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeQuoteNoLongerActive))

	// повторный свип ничего не меняет
	report, err = f.expire.Execute(f.ctx, sweepAt)
	require.NoError(t, err)
	assert.Zero(t, report.Changed)
}

func TestAcceptUnsweptExpiredQuoteIsRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)
	q := f.submitQuote(t, req.ID, "op-1", "100", t0)
	before := len(f.events(t, req.ID))

	_, err := f.accept.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q.ID, Actor: customer, Now: t0.Add(13 * time.Hour)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeQuoteNoLongerActive))

	agg := f.load(t, req.ID)
	assert.Equal(t, valueobject.QuoteStatusSent, agg.Quote(q.ID).Status)
	assert.Equal(t, valueobject.RequestStatusPending, agg.Request.Status)
	assert.Len(t, f.events(t, req.ID), before)
}

func TestWindowExpirySweep(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)

	report, err := f.expire.Execute(f.ctx, t0.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)

	agg := f.load(t, req.ID)
	assert.Equal(t, valueobject.QuoteWindowExpired, agg.Request.QuoteStatus)

	_, err = f.submit.Execute(f.ctx, quote.SubmitQuoteInput{RequestID: req.ID, Actor: valueobject.Operator("op-1"), Amount: "50", Now: t0.Add(25 * time.Hour)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeRequestNotAcceptingQuotes))

	events := f.events(t, req.ID)
	last := events[len(events)-1]
	assert.Equal(t, entity.EventQuoteWindowChanged, last.EventType)
	assert.Equal(t, "expired", last.ToStatus)
}

func TestSubmitQuote_DuplicateActiveQuote(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)
	q := f.submitQuote(t, req.ID, "op-1", "100", t0)

	_, err := f.submit.Execute(f.ctx, quote.SubmitQuoteInput{RequestID: req.ID, Actor: valueobject.Operator("op-1"), Amount: "95", Now: t0.Add(time.Minute)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeDuplicateActiveQuote))
	assert.Len(t, f.load(t, req.ID).Quotes, 1)

	_, err = f.withdraw.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q.ID, Actor: valueobject.Operator("op-1"), Now: t0.Add(2 * time.Minute)})
	require.NoError(t, err)

	again := f.submitQuote(t, req.ID, "op-1", "95", t0.Add(3*time.Minute))
	assert.NotEqual(t, q.ID, again.ID)
}

func TestSubmitQuote_ReplacesDueQuoteInline(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)
	old := f.submitQuote(t, req.ID, "op-1", "100", t0)

	fresh := f.submitQuote(t, req.ID, "op-1", "90", t0.Add(quoteTTL+time.Minute))

	agg := f.load(t, req.ID)
	assert.Equal(t, valueobject.QuoteStatusExpired, agg.Quote(old.ID).Status)
	assert.Equal(t, valueobject.QuoteStatusSent, agg.Quote(fresh.ID).Status)
}

func TestSubmitQuote_RequestNotAccepting(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)

	emergency := f.createRequest(t, true)
	_, err := f.submit.Execute(f.ctx, quote.SubmitQuoteInput{RequestID: emergency.ID, Actor: valueobject.Operator("op-1"), Amount: "100", Now: t0})
	assert.True(t, apperror.Is(err, apperror.ErrCodeRequestNotAcceptingQuotes))

	normal := f.createRequest(t, false)
	_, err = f.submit.Execute(f.ctx, quote.SubmitQuoteInput{RequestID: normal.ID, Actor: valueobject.Operator("op-1"), Amount: "100", Now: t0.Add(24 * time.Hour)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeRequestNotAcceptingQuotes))
	assert.True(t, apperror.IsConflict(err))
}

func TestSubmitQuote_OperatorNotEligible(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-far", 8)
	req := f.createRequest(t, false)

	_, err := f.submit.Execute(f.ctx, quote.SubmitQuoteInput{RequestID: req.ID, Actor: valueobject.Operator("op-far"), Amount: "100", Now: t0})
	assert.True(t, apperror.Is(err, apperror.ErrCodeOperatorNotEligible))
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.submit.Execute(f.ctx, quote.SubmitQuoteInput{RequestID: req.ID, Actor: customer, Amount: "100", Now: t0})
	assert.True(t, apperror.IsForbidden(err))
}

func TestSubmitQuote_AutoPrice(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)

	q, err := f.submit.Execute(f.ctx, quote.SubmitQuoteInput{RequestID: req.ID, Actor: valueobject.Operator("op-1"), AutoPrice: true, Now: t0})
	require.NoError(t, err)
	assert.Equal(t, "43", q.Amount.String())
	assert.Equal(t, "40.00", q.Breakdown["base"])
	assert.Equal(t, valueobject.TierManual, q.Tier)
}

func TestAcceptQuote_ConcurrentRaceHasOneWinner(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t, false)

	var quotes []*entity.Quote
	for _, id := range []string{"op-1", "op-2", "op-3", "op-4", "op-5"} {
		f.addOperator(id, 1)
		quotes = append(quotes, f.submitQuote(t, req.ID, id, "100", t0))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  []error
	)
	for _, q := range quotes {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.accept.Execute(f.ctx, quote.QuoteActionInput{QuoteID: id, Actor: customer, Now: t0.Add(time.Hour)})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, id)
			} else {
				losers = append(losers, err)
			}
		}(q.ID)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	for _, err := range losers {
		assert.True(t, apperror.IsConflict(err), "unexpected error: %v", err)
	}

	agg := f.load(t, req.ID)
	accepted := 0
	for _, q := range agg.Quotes {
		assert.True(t, q.IsTerminal())
		if q.Status == valueobject.QuoteStatusCustomerAccepted {
			accepted++
			assert.Equal(t, winners[0], q.ID)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, winners[0], *agg.Request.SelectedQuoteID)
}

func TestRespondToCounter_ExpiryNeverDecreases(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)
	q := f.submitQuote(t, req.ID, "op-1", "100", t0)

	_, err := f.counter.Execute(f.ctx, quote.CounterQuoteInput{QuoteID: q.ID, Actor: customer, Amount: "70", Now: t0.Add(time.Hour)})
	require.NoError(t, err)

	shortTTL := quote.NewRespondToCounterUseCase(f.runner, time.Hour)
	q, err = shortTTL.Execute(f.ctx, quote.RespondToCounterInput{QuoteID: q.ID, Actor: valueobject.Operator("op-1"), Now: t0.Add(2 * time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, valueobject.QuoteStatusOperatorAccepted, q.Status)
	assert.Equal(t, "70", q.Amount.String())
	assert.Equal(t, t0.Add(quoteTTL), q.ExpiresAt)
}

func TestInvalidTransitionLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)
	q := f.submitQuote(t, req.ID, "op-1", "100", t0)

	_, err := f.counter.Execute(f.ctx, quote.CounterQuoteInput{QuoteID: q.ID, Actor: customer, Amount: "80", Now: t0.Add(time.Minute)})
	require.NoError(t, err)
	before := f.load(t, req.ID)
	eventsBefore := len(f.events(t, req.ID))

	_, err = f.counter.Execute(f.ctx, quote.CounterQuoteInput{QuoteID: q.ID, Actor: customer, Amount: "60", Now: t0.Add(2 * time.Minute)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidTransition))

	_, err = f.withdraw.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q.ID, Actor: valueobject.Operator("op-1"), Now: t0.Add(3 * time.Minute)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidTransition))

	after := f.load(t, req.ID)
	assert.Equal(t, before.Quote(q.ID).Status, after.Quote(q.ID).Status)
	assert.Equal(t, "80", after.Quote(q.ID).CounterAmount.String())
	assert.Len(t, after.Quote(q.ID).History, len(before.Quote(q.ID).History))
	assert.Len(t, f.events(t, req.ID), eventsBefore)
	assert.Equal(t, before.Request.EventSeq, after.Request.EventSeq)
}

func TestQuoteActions_Authorization(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	f.addOperator("op-2", 2)
	req := f.createRequest(t, false)
	q := f.submitQuote(t, req.ID, "op-1", "100", t0)

	_, err := f.counter.Execute(f.ctx, quote.CounterQuoteInput{QuoteID: q.ID, Actor: valueobject.Customer("cust-2"), Amount: "80", Now: t0})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.withdraw.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q.ID, Actor: valueobject.Operator("op-2"), Now: t0})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.accept.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q.ID, Actor: valueobject.Operator("op-1"), Now: t0})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.accept.Execute(f.ctx, quote.QuoteActionInput{QuoteID: "missing", Actor: customer, Now: t0})
	assert.True(t, apperror.IsNotFound(err))
}

func TestDeclineQuote(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)
	q := f.submitQuote(t, req.ID, "op-1", "100", t0)

	_, err := f.decline.Execute(f.ctx, quote.DeclineQuoteInput{QuoteID: q.ID, Actor: customer, Reason: "weather", Now: t0})
	assert.True(t, apperror.IsValidation(err))

	q, err = f.decline.Execute(f.ctx, quote.DeclineQuoteInput{QuoteID: q.ID, Actor: customer, Reason: "budget", Notes: "дорого", Now: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, valueobject.QuoteStatusDeclinedBudget, q.Status)
	require.NotNil(t, q.DeclineReason)
	assert.Equal(t, valueobject.DeclineReasonBudget, *q.DeclineReason)

	// заявка остаётся открытой для других предложений
	assert.Equal(t, valueobject.RequestStatusPending, f.load(t, req.ID).Request.Status)
}

func TestListAndGetQuotes_Visibility(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	f.addOperator("op-2", 2)
	req := f.createRequest(t, false)
	q1 := f.submitQuote(t, req.ID, "op-1", "100", t0)
	q2 := f.submitQuote(t, req.ID, "op-2", "110", t0)

	all, err := f.list.Execute(f.ctx, req.ID, customer)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	own, err := f.list.Execute(f.ctx, req.ID, valueobject.Operator("op-1"))
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, q1.ID, own[0].ID)

	_, err = f.list.Execute(f.ctx, req.ID, valueobject.Customer("cust-2"))
	assert.True(t, apperror.IsForbidden(err))

	got, err := f.get.Execute(f.ctx, q2.ID, customer)
	require.NoError(t, err)
	assert.Equal(t, "110", got.Amount.String())

	_, err = f.get.Execute(f.ctx, q2.ID, valueobject.Operator("op-1"))
	assert.True(t, apperror.IsForbidden(err))
}

func TestPublishedEventsMatchJournal(t *testing.T) {
	f := newFixture(t)
	f.addOperator("op-1", 2)
	req := f.createRequest(t, false)
	q := f.submitQuote(t, req.ID, "op-1", "100", t0)
	_, err := f.accept.Execute(f.ctx, quote.QuoteActionInput{QuoteID: q.ID, Actor: customer, Now: t0.Add(time.Hour)})
	require.NoError(t, err)

	journal := f.events(t, req.ID)
	require.Len(t, f.pub.events, len(journal))
	for i, ev := range journal {
		assert.Equal(t, int64(i+1), ev.Seq)
		assert.Equal(t, ev.ID, f.pub.events[i].ID)
	}
}
