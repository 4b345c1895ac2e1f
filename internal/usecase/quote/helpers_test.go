package quote_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/persistence"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/pricing"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/roster"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/quote"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
)

const quoteTTL = 12 * time.Hour

var t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

var origin = valueobject.GeoPoint{Lat: 59.93, Lon: 30.31}

func near(km float64) valueobject.GeoPoint {
	return valueobject.GeoPoint{Lat: origin.Lat + km/111.195, Lon: origin.Lon}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*entity.StatusEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, req *entity.ServiceRequest, events []*entity.StatusEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

type fixture struct {
	ctx    context.Context
	store  *persistence.MemoryStore
	runner *unitofwork.Runner
	roster *roster.MemoryRoster
	pub    *recordingPublisher

	submit   *quote.SubmitQuoteUseCase
	counter  *quote.CounterQuoteUseCase
	respond  *quote.RespondToCounterUseCase
	accept   *quote.AcceptQuoteUseCase
	decline  *quote.DeclineQuoteUseCase
	withdraw *quote.WithdrawQuoteUseCase
	expire   *quote.ExpireQuotesUseCase
	list     *quote.ListQuotesUseCase
	get      *quote.GetQuoteUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := persistence.NewMemoryStore()
	pub := &recordingPublisher{}
	runner := unitofwork.NewRunner(store, pub)
	ops := roster.NewMemoryRoster()
	policy := valueobject.DefaultTierPolicy()

	return &fixture{
		ctx:      context.Background(),
		store:    store,
		runner:   runner,
		roster:   ops,
		pub:      pub,
		submit:   quote.NewSubmitQuoteUseCase(runner, ops, pricing.NewTableCalculator(pricing.DefaultTable()), policy, quoteTTL),
		counter:  quote.NewCounterQuoteUseCase(runner),
		respond:  quote.NewRespondToCounterUseCase(runner, quoteTTL),
		accept:   quote.NewAcceptQuoteUseCase(runner),
		decline:  quote.NewDeclineQuoteUseCase(runner),
		withdraw: quote.NewWithdrawQuoteUseCase(runner),
		expire:   quote.NewExpireQuotesUseCase(runner, nil),
		list:     quote.NewListQuotesUseCase(store),
		get:      quote.NewGetQuoteUseCase(store),
	}
}

func (f *fixture) addOperator(id string, km float64) {
	f.roster.Upsert(&entity.Operator{
		ID:           id,
		Name:         "Operator " + id,
		Tier:         valueobject.TierManual,
		HomeLocation: near(km),
		Services:     []valueobject.ServiceType{valueobject.ServicePlowing},
		Rating:       4.5,
		Online:       true,
	})
}

func (f *fixture) createRequest(t *testing.T, emergency bool) *entity.ServiceRequest {
	t.Helper()
	req, err := entity.NewServiceRequest(entity.NewServiceRequestParams{
		CustomerID:   "cust-1",
		ServiceTypes: []valueobject.ServiceType{valueobject.ServicePlowing},
		Emergency:    emergency,
		Location:     valueobject.Location{Point: origin, Address: "Невский пр., 1"},
	}, 24*time.Hour, t0)
	require.NoError(t, err)
	require.NoError(t, f.runner.Create(f.ctx, entity.NewRequestAggregate(req, valueobject.Customer("cust-1"), t0)))
	return req
}

func (f *fixture) submitQuote(t *testing.T, requestID, operatorID, amount string, at time.Time) *entity.Quote {
	t.Helper()
	q, err := f.submit.Execute(f.ctx, quote.SubmitQuoteInput{
		RequestID: requestID,
		Actor:     valueobject.Operator(operatorID),
		Amount:    amount,
		Now:       at,
	})
	require.NoError(t, err)
	return q
}

func (f *fixture) load(t *testing.T, requestID string) *entity.RequestAggregate {
	t.Helper()
	agg, err := f.store.Get(f.ctx, requestID)
	require.NoError(t, err)
	return agg
}

func (f *fixture) events(t *testing.T, requestID string) []*entity.StatusEvent {
	t.Helper()
	events, err := f.store.ListEvents(f.ctx, requestID)
	require.NoError(t, err)
	return events
}
