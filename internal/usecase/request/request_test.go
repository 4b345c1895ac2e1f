package request_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/persistence"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/roster"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/request"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
)

var (
	t0       = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	customer = valueobject.Customer("cust-1")
	support  = valueobject.System("support")
)

const (
	lat = 56.84
	lon = 60.61
)

type fixture struct {
	ctx    context.Context
	store  *persistence.MemoryStore
	runner *unitofwork.Runner
	roster *roster.MemoryRoster

	create   *request.CreateRequestUseCase
	offer    *request.OfferToOperatorUseCase
	reply    *request.RespondToOfferUseCase
	start    *request.StartWorkUseCase
	complete *request.CompleteUseCase
	dispute  *request.DisputeUseCase
	resolve  *request.ResolveDisputeUseCase
	cancel   *request.CancelRequestUseCase
	get      *request.GetRequestUseCase
	list     *request.ListRequestsUseCase
	events   *request.ListEventsUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := persistence.NewMemoryStore()
	runner := unitofwork.NewRunner(store, nil)
	ops := roster.NewMemoryRoster(
		&entity.Operator{
			ID: "op-1", Tier: valueobject.TierManual, Online: true,
			HomeLocation: valueobject.GeoPoint{Lat: lat + 0.01, Lon: lon},
			Services:     []valueobject.ServiceType{valueobject.ServicePlowing},
		},
		&entity.Operator{
			ID: "op-2", Tier: valueobject.TierManual, Online: true,
			HomeLocation: valueobject.GeoPoint{Lat: lat, Lon: lon + 0.01},
			Services:     []valueobject.ServiceType{valueobject.ServicePlowing},
		},
		&entity.Operator{
			ID: "op-far", Tier: valueobject.TierManual, Online: true,
			HomeLocation: valueobject.GeoPoint{Lat: lat + 1, Lon: lon},
			Services:     []valueobject.ServiceType{valueobject.ServicePlowing},
		},
	)
	policy := valueobject.DefaultTierPolicy()

	return &fixture{
		ctx:      context.Background(),
		store:    store,
		runner:   runner,
		roster:   ops,
		create:   request.NewCreateRequestUseCase(runner, 24*time.Hour),
		offer:    request.NewOfferToOperatorUseCase(runner, ops, policy),
		reply:    request.NewRespondToOfferUseCase(runner),
		start:    request.NewStartWorkUseCase(runner),
		complete: request.NewCompleteUseCase(runner),
		dispute:  request.NewDisputeUseCase(runner),
		resolve:  request.NewResolveDisputeUseCase(runner),
		cancel:   request.NewCancelRequestUseCase(runner),
		get:      request.NewGetRequestUseCase(store),
		list:     request.NewListRequestsUseCase(store),
		events:   request.NewListEventsUseCase(store),
	}
}

func (f *fixture) newRequest(t *testing.T, emergency bool) *entity.ServiceRequest {
	t.Helper()
	req, err := f.create.Execute(f.ctx, request.CreateRequestInput{
		Actor:        customer,
		ServiceTypes: []string{"plowing"},
		Emergency:    emergency,
		Lat:          lat,
		Lon:          lon,
		Address:      "ул. Ленина, 5",
		Now:          t0,
	})
	require.NoError(t, err)
	return req
}

func (f *fixture) submitQuote(t *testing.T, requestID, operatorID string) *entity.Quote {
	t.Helper()
	q, err := entity.NewQuote(entity.NewQuoteParams{
		OperatorID: operatorID,
		Tier:       valueobject.TierManual,
		Amount:     decimal.NewFromInt(100),
	}, 12*time.Hour, t0)
	require.NoError(t, err)
	_, _, err = f.runner.Do(f.ctx, requestID, func(agg *entity.RequestAggregate) error {
		return agg.SubmitQuote(q, t0)
	})
	require.NoError(t, err)
	return q
}

// assignViaOffer доводит заявку до assigned через прямое предложение op-1.
func (f *fixture) assignViaOffer(t *testing.T) *entity.ServiceRequest {
	t.Helper()
	req := f.newRequest(t, false)
	_, err := f.offer.Execute(f.ctx, request.OfferToOperatorInput{RequestID: req.ID, OperatorID: "op-1", Actor: customer, Now: t0})
	require.NoError(t, err)
	req, err = f.reply.Execute(f.ctx, request.RespondToOfferInput{RequestID: req.ID, Actor: valueobject.Operator("op-1"), Accept: true, Now: t0.Add(time.Minute)})
	require.NoError(t, err)
	return req
}

func (f *fixture) journal(t *testing.T, requestID string) []*entity.StatusEvent {
	t.Helper()
	events, err := f.store.ListEvents(f.ctx, requestID)
	require.NoError(t, err)
	return events
}

func statusChanges(events []*entity.StatusEvent) []string {
	var out []string
	for _, ev := range events {
		if ev.EventType == entity.EventRequestStatusChanged {
			out = append(out, ev.FromStatus+">"+ev.ToStatus)
		}
	}
	return out
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	budget := "1500"
	req, err := f.create.Execute(f.ctx, request.CreateRequestInput{
		Actor:        customer,
		ServiceTypes: []string{"plowing", "hauling", "plowing"},
		Lat:          lat,
		Lon:          lon,
		Address:      "  ул. Ленина, 5 ",
		BudgetHint:   &budget,
		Now:          t0,
	})
	require.NoError(t, err)

	assert.Equal(t, valueobject.RequestStatusPending, req.Status)
	assert.Equal(t, valueobject.QuoteWindowOpen, req.QuoteStatus)
	assert.Equal(t, t0.Add(24*time.Hour), req.QuoteWindowExpiresAt)
	assert.Equal(t, []valueobject.ServiceType{valueobject.ServicePlowing, valueobject.ServiceHauling}, req.ServiceTypes)
	assert.Equal(t, "ул. Ленина, 5", req.Location.Address)
	require.NotNil(t, req.BudgetHint)
	assert.Equal(t, "1500", req.BudgetHint.String())

	events := f.journal(t, req.ID)
	require.Len(t, events, 1)
	assert.Equal(t, entity.EventRequestCreated, events[0].EventType)
	assert.Equal(t, int64(1), events[0].Seq)
}

func TestCreateRequest_Validation(t *testing.T) {
	f := newFixture(t)
	bad := "много"

	cases := []struct {
		name  string
		input request.CreateRequestInput
		check func(error) bool
	}{
		{"no services", request.CreateRequestInput{Actor: customer, Lat: lat, Lon: lon, Address: "a"}, apperror.IsValidation},
		{"unknown service", request.CreateRequestInput{Actor: customer, ServiceTypes: []string{"painting"}, Lat: lat, Lon: lon}, apperror.IsValidation},
		{"bad coordinates", request.CreateRequestInput{Actor: customer, ServiceTypes: []string{"towing"}, Lat: 120, Lon: lon}, apperror.IsValidation},
		{"bad budget", request.CreateRequestInput{Actor: customer, ServiceTypes: []string{"towing"}, Lat: lat, Lon: lon, BudgetHint: &bad}, apperror.IsValidation},
		{"operator cannot create", request.CreateRequestInput{Actor: valueobject.Operator("op-1"), ServiceTypes: []string{"towing"}, Lat: lat, Lon: lon}, apperror.IsForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.input.Now = t0
			_, err := f.create.Execute(f.ctx, tc.input)
			require.Error(t, err)
			assert.True(t, tc.check(err), "unexpected error: %v", err)
		})
	}

	listed, err := f.list.Execute(f.ctx, request.ListRequestsInput{Actor: customer})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestDirectOffer_AcceptBindsAndSupersedesQuotes(t *testing.T) {
	f := newFixture(t)
	req := f.newRequest(t, false)
	q := f.submitQuote(t, req.ID, "op-2")

	got, err := f.offer.Execute(f.ctx, request.OfferToOperatorInput{RequestID: req.ID, OperatorID: "op-1", Actor: customer, Now: t0})
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusOperatorPending, got.Status)
	assert.Equal(t, "op-1", *got.PendingOperatorID)

	got, err = f.reply.Execute(f.ctx, request.RespondToOfferInput{RequestID: req.ID, Actor: valueobject.Operator("op-1"), Accept: true, Now: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusAssigned, got.Status)
	assert.Equal(t, "op-1", *got.AssignedOperatorID)
	assert.Nil(t, got.PendingOperatorID)
	assert.Nil(t, got.SelectedQuoteID)
	assert.Equal(t, valueobject.QuoteWindowDecided, got.QuoteStatus)

	events := f.journal(t, req.ID)
	assert.Equal(t, []string{
		"pending>operator_pending",
		"operator_pending>operator_accepted",
		"operator_accepted>assigned",
	}, statusChanges(events))

	agg, err := f.store.Get(f.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.QuoteStatusSuperseded, agg.Quote(q.ID).Status)
}

func TestDirectOffer_DeclineAllowsAnotherOffer(t *testing.T) {
	f := newFixture(t)
	req := f.newRequest(t, false)

	_, err := f.offer.Execute(f.ctx, request.OfferToOperatorInput{RequestID: req.ID, OperatorID: "op-1", Actor: customer, Now: t0})
	require.NoError(t, err)

	_, err = f.reply.Execute(f.ctx, request.RespondToOfferInput{RequestID: req.ID, Actor: valueobject.Operator("op-2"), Accept: true, Now: t0})
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidTransition))

	got, err := f.reply.Execute(f.ctx, request.RespondToOfferInput{RequestID: req.ID, Actor: valueobject.Operator("op-1"), Reason: "distance", Now: t0.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusOperatorDeclined, got.Status)
	assert.Nil(t, got.PendingOperatorID)

	got, err = f.offer.Execute(f.ctx, request.OfferToOperatorInput{RequestID: req.ID, OperatorID: "op-2", Actor: customer, Now: t0.Add(2 * time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, "op-2", *got.PendingOperatorID)
}

func TestDirectOffer_Rejections(t *testing.T) {
	f := newFixture(t)
	req := f.newRequest(t, false)

	_, err := f.offer.Execute(f.ctx, request.OfferToOperatorInput{RequestID: req.ID, OperatorID: "op-far", Actor: customer, Now: t0})
	assert.True(t, apperror.Is(err, apperror.ErrCodeOperatorNotEligible))

	_, err = f.offer.Execute(f.ctx, request.OfferToOperatorInput{RequestID: req.ID, OperatorID: "ghost", Actor: customer, Now: t0})
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.offer.Execute(f.ctx, request.OfferToOperatorInput{RequestID: req.ID, OperatorID: "op-1", Actor: valueobject.Customer("cust-2"), Now: t0})
	assert.True(t, apperror.IsForbidden(err))

	emergency := f.newRequest(t, true)
	_, err = f.offer.Execute(f.ctx, request.OfferToOperatorInput{RequestID: emergency.ID, OperatorID: "op-1", Actor: customer, Now: t0})
	assert.True(t, apperror.IsValidation(err))

	assert.Len(t, f.journal(t, req.ID), 1)
}

func TestLifecycle_WorkCompleteDisputeResolve(t *testing.T) {
	f := newFixture(t)
	req := f.assignViaOffer(t)
	op := valueobject.Operator("op-1")
	in := func(actor valueobject.Actor, at time.Duration) request.TransitionInput {
		return request.TransitionInput{RequestID: req.ID, Actor: actor, Now: t0.Add(at)}
	}

	_, err := f.complete.Execute(f.ctx, in(op, time.Hour))
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidTransition))

	_, err = f.start.Execute(f.ctx, in(valueobject.Operator("op-2"), time.Hour))
	assert.True(t, apperror.IsForbidden(err))

	got, err := f.start.Execute(f.ctx, in(op, time.Hour))
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusInProgress, got.Status)

	got, err = f.complete.Execute(f.ctx, in(op, 2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusCompleted, got.Status)

	disputeIn := in(customer, 3*time.Hour)
	disputeIn.Reason = "снег остался у ворот"
	got, err = f.dispute.Execute(f.ctx, disputeIn)
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusDisputed, got.Status)

	_, err = f.resolve.Execute(f.ctx, request.ResolveDisputeInput{RequestID: req.ID, Actor: customer, Outcome: "completed", Now: t0.Add(4 * time.Hour)})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.resolve.Execute(f.ctx, request.ResolveDisputeInput{RequestID: req.ID, Actor: support, Outcome: "cancelled", Now: t0.Add(4 * time.Hour)})
	assert.True(t, apperror.IsValidation(err))

	got, err = f.resolve.Execute(f.ctx, request.ResolveDisputeInput{RequestID: req.ID, Actor: support, Outcome: "in_progress", Notes: "доделать", Now: t0.Add(4 * time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusInProgress, got.Status)
	assert.Equal(t, "op-1", *got.AssignedOperatorID)

	events := f.journal(t, req.ID)
	for i, ev := range events {
		assert.Equal(t, int64(i+1), ev.Seq)
		if i > 0 {
			assert.False(t, ev.OccurredAt.Before(events[i-1].OccurredAt))
		}
	}
}

func TestCancel_ClosesQuotesAndWindow(t *testing.T) {
	f := newFixture(t)
	req := f.newRequest(t, false)
	q1 := f.submitQuote(t, req.ID, "op-1")
	q2 := f.submitQuote(t, req.ID, "op-2")

	_, err := f.cancel.Execute(f.ctx, request.TransitionInput{RequestID: req.ID, Actor: valueobject.Operator("op-1"), Now: t0})
	assert.True(t, apperror.IsForbidden(err))

	got, err := f.cancel.Execute(f.ctx, request.TransitionInput{RequestID: req.ID, Actor: customer, Reason: "сам почистил", Now: t0.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusCancelled, got.Status)
	assert.Equal(t, valueobject.QuoteWindowExpired, got.QuoteStatus)

	agg, err := f.store.Get(f.ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.QuoteStatusCancelled, agg.Quote(q1.ID).Status)
	assert.Equal(t, valueobject.QuoteStatusCancelled, agg.Quote(q2.ID).Status)
	assert.False(t, agg.HasDueQuotes(t0.Add(48*time.Hour)))

	eventsAfterCancel := len(f.journal(t, req.ID))
	_, err = f.cancel.Execute(f.ctx, request.TransitionInput{RequestID: req.ID, Actor: customer, Now: t0.Add(2 * time.Hour)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidTransition))
	assert.Len(t, f.journal(t, req.ID), eventsAfterCancel)
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	req := f.newRequest(t, false)
	f.submitQuote(t, req.ID, "op-1")
	other := f.newRequest(t, false)

	view, err := f.get.Execute(f.ctx, req.ID, valueobject.Operator("op-2"))
	require.NoError(t, err)
	assert.Empty(t, view.Quotes)

	_, err = f.get.Execute(f.ctx, req.ID, valueobject.Customer("cust-2"))
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.events.Execute(f.ctx, req.ID, valueobject.Operator("op-2"))
	assert.True(t, apperror.IsForbidden(err))

	history, err := f.events.Execute(f.ctx, req.ID, valueobject.Operator("op-1"))
	require.NoError(t, err)
	assert.Len(t, history, 2)

	mine, err := f.list.Execute(f.ctx, request.ListRequestsInput{Actor: customer})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, other.ID, mine[0].ID)

	involved, err := f.list.Execute(f.ctx, request.ListRequestsInput{Actor: valueobject.Operator("op-1")})
	require.NoError(t, err)
	require.Len(t, involved, 1)
	assert.Equal(t, req.ID, involved[0].ID)

	_, err = f.list.Execute(f.ctx, request.ListRequestsInput{Actor: support, Status: "sleeping"})
	assert.True(t, apperror.IsValidation(err))

	_, err = f.get.Execute(f.ctx, "missing", customer)
	assert.True(t, apperror.IsNotFound(err))
}
