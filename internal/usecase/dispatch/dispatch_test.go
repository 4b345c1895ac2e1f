package dispatch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/persistence"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/roster"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/dispatch"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
)

const entryTTL = 60 * time.Second

var (
	t0       = time.Date(2026, 1, 15, 6, 30, 0, 0, time.UTC)
	origin   = valueobject.GeoPoint{Lat: 55.75, Lon: 37.62}
	customer = valueobject.Customer("cust-1")
)

func near(km float64) valueobject.GeoPoint {
	return valueobject.GeoPoint{Lat: origin.Lat + km/111.195, Lon: origin.Lon}
}

type fixture struct {
	ctx    context.Context
	store  *persistence.MemoryStore
	runner *unitofwork.Runner
	roster *roster.MemoryRoster

	settings dispatch.Settings
	start    *dispatch.StartRunUseCase
	respond  *dispatch.RecordResponseUseCase
	sweep    *dispatch.SweepExpiredUseCase
	getRun   *dispatch.GetRunUseCase
}

func newFixture(t *testing.T, policy valueobject.ExhaustedPolicy, pool *workerpool.WorkerPool) *fixture {
	t.Helper()
	store := persistence.NewMemoryStore()
	runner := unitofwork.NewRunner(store, nil)
	ops := roster.NewMemoryRoster()
	settings := dispatch.Settings{
		Mode:      valueobject.DispatchModeSequential,
		EntryTTL:  entryTTL,
		Exhausted: policy,
		Tiers:     valueobject.DefaultTierPolicy(),
	}
	return &fixture{
		ctx:      context.Background(),
		store:    store,
		runner:   runner,
		roster:   ops,
		settings: settings,
		start:    dispatch.NewStartRunUseCase(runner, ops, settings),
		respond:  dispatch.NewRecordResponseUseCase(runner, settings),
		sweep:    dispatch.NewSweepExpiredUseCase(runner, pool, settings),
		getRun:   dispatch.NewGetRunUseCase(store),
	}
}

func (f *fixture) addOperator(id string, km float64) {
	f.roster.Upsert(&entity.Operator{
		ID:           id,
		Tier:         valueobject.TierManual,
		HomeLocation: near(km),
		Services:     []valueobject.ServiceType{valueobject.ServiceTowing},
		Rating:       4,
		Online:       true,
	})
}

func (f *fixture) createRequest(t *testing.T, emergency bool) string {
	t.Helper()
	req, err := entity.NewServiceRequest(entity.NewServiceRequestParams{
		CustomerID:   customer.ID,
		ServiceTypes: []valueobject.ServiceType{valueobject.ServiceTowing},
		Emergency:    emergency,
		Location:     valueobject.Location{Point: origin, Address: "Тверская ул., 7"},
	}, 24*time.Hour, t0)
	require.NoError(t, err)
	require.NoError(t, f.runner.Create(f.ctx, entity.NewRequestAggregate(req, customer, t0)))
	return req.ID
}

func (f *fixture) startRun(t *testing.T, requestID, mode string) *dispatch.StartRunResult {
	t.Helper()
	res, err := f.start.Execute(f.ctx, dispatch.StartRunInput{RequestID: requestID, Actor: customer, Mode: mode, Now: t0})
	require.NoError(t, err)
	return res
}

func (f *fixture) load(t *testing.T, requestID string) *entity.RequestAggregate {
	t.Helper()
	agg, err := f.store.Get(f.ctx, requestID)
	require.NoError(t, err)
	return agg
}

func entryStatuses(run *entity.DispatchRun) []valueobject.EntryStatus {
	out := make([]valueobject.EntryStatus, len(run.Entries))
	for i, e := range run.Entries {
		out[i] = e.Status
	}
	return out
}

func TestSequentialDispatch_ExpiryAdvancesQueue(t *testing.T) {
	f := newFixture(t, valueobject.ExhaustedNoCoverage, nil)
	f.addOperator("op-3", 3)
	f.addOperator("op-1", 1)
	f.addOperator("op-2", 2)
	requestID := f.createRequest(t, true)

	res := f.startRun(t, requestID, "")
	assert.Equal(t, valueobject.OutcomeDispatched, res.Outcome)
	assert.Equal(t, valueobject.RequestStatusOperatorPending, res.Request.Status)
	require.Len(t, res.Run.Entries, 3)
	for i, id := range []string{"op-1", "op-2", "op-3"} {
		assert.Equal(t, id, res.Run.Entries[i].OperatorID)
		assert.Equal(t, i+1, res.Run.Entries[i].QueuePosition)
	}
	assert.Equal(t, []valueobject.EntryStatus{
		valueobject.EntryStatusNotified, valueobject.EntryStatusPending, valueobject.EntryStatusPending,
	}, entryStatuses(res.Run))

	report, err := f.sweep.Execute(f.ctx, t0.Add(entryTTL))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 2, report.Changed)

	run := f.load(t, requestID).ActiveRun()
	require.NotNil(t, run)
	assert.Equal(t, []valueobject.EntryStatus{
		valueobject.EntryStatusExpired, valueobject.EntryStatusNotified, valueobject.EntryStatusPending,
	}, entryStatuses(run))
	second := run.Entries[1]

	view, err := f.respond.Execute(f.ctx, dispatch.RecordResponseInput{
		EntryID: second.ID,
		Actor:   valueobject.Operator("op-2"),
		Outcome: "accepted",
		Now:     t0.Add(entryTTL + 30*time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, valueobject.RequestStatusAssigned, view.Request.Status)

	agg := f.load(t, requestID)
	assert.Equal(t, "op-2", *agg.Request.AssignedOperatorID)
	assert.Nil(t, agg.ActiveRun())
	latest := agg.LatestRun()
	assert.Equal(t, valueobject.DispatchRunAccepted, latest.Status)
	assert.Equal(t, []valueobject.EntryStatus{
		valueobject.EntryStatusExpired, valueobject.EntryStatusAccepted, valueobject.EntryStatusCancelled,
	}, entryStatuses(latest))

	_, err = f.respond.Execute(f.ctx, dispatch.RecordResponseInput{
		EntryID: latest.Entries[2].ID,
		Actor:   valueobject.Operator("op-3"),
		Outcome: "accepted",
		Now:     t0.Add(2 * entryTTL),
	})
	assert.True(t, apperror.Is(err, apperror.ErrCodeEntryNotActive))
}

func TestParallelDispatch_FirstAcceptWins(t *testing.T) {
	f := newFixture(t, valueobject.ExhaustedNoCoverage, nil)
	f.addOperator("op-1", 1)
	f.addOperator("op-2", 2)
	f.addOperator("op-3", 3)
	requestID := f.createRequest(t, true)

	res := f.startRun(t, requestID, "parallel")
	assert.Equal(t, valueobject.DispatchModeParallel, res.Run.Mode)
	for _, e := range res.Run.Entries {
		assert.Equal(t, valueobject.EntryStatusNotified, e.Status)
	}

	_, err := f.respond.Execute(f.ctx, dispatch.RecordResponseInput{
		EntryID: res.Run.Entries[2].ID, Actor: valueobject.Operator("op-3"), Outcome: "accepted", Now: t0.Add(10 * time.Second),
	})
	require.NoError(t, err)

	_, err = f.respond.Execute(f.ctx, dispatch.RecordResponseInput{
		EntryID: res.Run.Entries[0].ID, Actor: valueobject.Operator("op-1"), Outcome: "accepted", Now: t0.Add(11 * time.Second),
	})
	assert.True(t, apperror.Is(err, apperror.ErrCodeEntryNotActive))

	agg := f.load(t, requestID)
	assert.Equal(t, "op-3", *agg.Request.AssignedOperatorID)
	assert.Equal(t, []valueobject.EntryStatus{
		valueobject.EntryStatusCancelled, valueobject.EntryStatusCancelled, valueobject.EntryStatusAccepted,
	}, entryStatuses(agg.LatestRun()))
}

func TestParallelDispatch_ConcurrentAcceptsHaveOneWinner(t *testing.T) {
	f := newFixture(t, valueobject.ExhaustedNoCoverage, nil)
	for i, id := range []string{"op-1", "op-2", "op-3", "op-4", "op-5"} {
		f.addOperator(id, 0.5+float64(i)*0.8)
	}
	requestID := f.createRequest(t, true)

	res := f.startRun(t, requestID, "parallel")
	require.Len(t, res.Run.Entries, 5)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
		losers  []error
	)
	for _, e := range res.Run.Entries {
		wg.Add(1)
		go func(entryID, operatorID string) {
			defer wg.Done()
			_, err := f.respond.Execute(f.ctx, dispatch.RecordResponseInput{
				EntryID: entryID, Actor: valueobject.Operator(operatorID), Outcome: "accepted", Now: t0.Add(10 * time.Second),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, operatorID)
			} else {
				losers = append(losers, err)
			}
		}(e.ID, e.OperatorID)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	for _, err := range losers {
		assert.True(t, apperror.IsConflict(err), "unexpected error: %v", err)
	}

	agg := f.load(t, requestID)
	require.NotNil(t, agg.Request.AssignedOperatorID)
	assert.Equal(t, winners[0], *agg.Request.AssignedOperatorID)
	accepted := 0
	for _, e := range agg.LatestRun().Entries {
		assert.True(t, e.Status.IsTerminal())
		if e.Status == valueobject.EntryStatusAccepted {
			accepted++
			assert.Equal(t, winners[0], e.OperatorID)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, valueobject.DispatchRunAccepted, agg.LatestRun().Status)
}

func TestStartRun_NoCoverage(t *testing.T) {
	cases := []struct {
		name   string
		policy valueobject.ExhaustedPolicy
		want   valueobject.RequestStatus
	}{
		{name: "no_coverage policy", policy: valueobject.ExhaustedNoCoverage, want: valueobject.RequestStatusNoOperatorAvailable},
		{name: "retry policy", policy: valueobject.ExhaustedRetry, want: valueobject.RequestStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.policy, nil)
			f.addOperator("op-far", 40)
			requestID := f.createRequest(t, true)

			res := f.startRun(t, requestID, "")
			assert.Equal(t, valueobject.OutcomeNoCoverage, res.Outcome)
			assert.Equal(t, valueobject.DispatchRunNoCoverage, res.Run.Status)
			assert.Empty(t, res.Run.Entries)
			assert.Equal(t, tc.want, res.Request.Status)
			assert.Nil(t, f.load(t, requestID).ActiveRun())
		})
	}
}

func TestRetryPolicy_AllowsNewRunAfterNoCoverage(t *testing.T) {
	f := newFixture(t, valueobject.ExhaustedRetry, nil)
	requestID := f.createRequest(t, true)

	res := f.startRun(t, requestID, "")
	require.Equal(t, valueobject.OutcomeNoCoverage, res.Outcome)

	f.addOperator("op-1", 1)
	res = f.startRun(t, requestID, "")
	assert.Equal(t, valueobject.OutcomeDispatched, res.Outcome)
	assert.Len(t, f.load(t, requestID).Runs, 2)
}

func TestSequentialDispatch_ExhaustedByDeclines(t *testing.T) {
	cases := []struct {
		policy valueobject.ExhaustedPolicy
		want   valueobject.RequestStatus
	}{
		{policy: valueobject.ExhaustedNoCoverage, want: valueobject.RequestStatusNoOperatorAvailable},
		{policy: valueobject.ExhaustedRetry, want: valueobject.RequestStatusPending},
	}
	for _, tc := range cases {
		t.Run(string(tc.policy), func(t *testing.T) {
			f := newFixture(t, tc.policy, nil)
			f.addOperator("op-1", 1)
			f.addOperator("op-2", 2)
			requestID := f.createRequest(t, true)
			res := f.startRun(t, requestID, "")

			for i, e := range res.Run.Entries {
				_, err := f.respond.Execute(f.ctx, dispatch.RecordResponseInput{
					EntryID: e.ID, Actor: valueobject.Operator(e.OperatorID), Outcome: "declined", Now: t0.Add(time.Duration(i+1) * time.Second),
				})
				require.NoError(t, err)
			}

			agg := f.load(t, requestID)
			assert.Equal(t, tc.want, agg.Request.Status)
			assert.Equal(t, valueobject.DispatchRunExhausted, agg.LatestRun().Status)
			assert.Nil(t, agg.Request.AssignedOperatorID)
		})
	}
}

func TestStartRun_Rejections(t *testing.T) {
	f := newFixture(t, valueobject.ExhaustedNoCoverage, nil)
	f.addOperator("op-1", 1)

	normal := f.createRequest(t, false)
	_, err := f.start.Execute(f.ctx, dispatch.StartRunInput{RequestID: normal, Actor: customer, Now: t0})
	assert.True(t, apperror.IsValidation(err))

	emergency := f.createRequest(t, true)
	_, err = f.start.Execute(f.ctx, dispatch.StartRunInput{RequestID: emergency, Actor: valueobject.Customer("cust-2"), Now: t0})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.start.Execute(f.ctx, dispatch.StartRunInput{RequestID: emergency, Actor: customer, Mode: "broadcast", Now: t0})
	assert.True(t, apperror.IsValidation(err))

	f.startRun(t, emergency, "")
	_, err = f.start.Execute(f.ctx, dispatch.StartRunInput{RequestID: emergency, Actor: valueobject.System("ops"), Now: t0.Add(time.Second)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeDispatchAlreadyActive))
	assert.Len(t, f.load(t, emergency).Runs, 1)
}

func TestCancelDuringDispatch_LeavesNothingDangling(t *testing.T) {
	f := newFixture(t, valueobject.ExhaustedNoCoverage, nil)
	f.addOperator("op-1", 1)
	f.addOperator("op-2", 2)
	requestID := f.createRequest(t, true)
	res := f.startRun(t, requestID, "")

	_, _, err := f.runner.Do(f.ctx, requestID, func(agg *entity.RequestAggregate) error {
		return agg.Cancel(customer, "передумал", t0.Add(10*time.Second))
	})
	require.NoError(t, err)

	agg := f.load(t, requestID)
	assert.Equal(t, valueobject.RequestStatusCancelled, agg.Request.Status)
	assert.Nil(t, agg.ActiveRun())
	assert.Equal(t, valueobject.DispatchRunCancelled, agg.LatestRun().Status)
	for _, e := range agg.LatestRun().Entries {
		assert.True(t, e.Status.IsTerminal())
	}

	due, err := f.store.DueForDispatchSweep(f.ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	_, err = f.respond.Execute(f.ctx, dispatch.RecordResponseInput{
		EntryID: res.Run.Entries[0].ID, Actor: valueobject.Operator("op-1"), Outcome: "accepted", Now: t0.Add(20 * time.Second),
	})
	assert.True(t, apperror.Is(err, apperror.ErrCodeEntryNotActive))
}

func TestRecordResponse_LateOrForeign(t *testing.T) {
	f := newFixture(t, valueobject.ExhaustedNoCoverage, nil)
	f.addOperator("op-1", 1)
	f.addOperator("op-2", 2)
	requestID := f.createRequest(t, true)
	res := f.startRun(t, requestID, "")
	first := res.Run.Entries[0]

	_, err := f.respond.Execute(f.ctx, dispatch.RecordResponseInput{EntryID: first.ID, Actor: valueobject.Operator("op-2"), Outcome: "accepted", Now: t0})
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.respond.Execute(f.ctx, dispatch.RecordResponseInput{EntryID: first.ID, Actor: valueobject.Operator("op-1"), Outcome: "maybe", Now: t0})
	assert.True(t, apperror.IsValidation(err))

	// срок истёк, свип ещё не прошёл
	_, err = f.respond.Execute(f.ctx, dispatch.RecordResponseInput{EntryID: first.ID, Actor: valueobject.Operator("op-1"), Outcome: "accepted", Now: t0.Add(entryTTL)})
	assert.True(t, apperror.Is(err, apperror.ErrCodeEntryNotActive))
	assert.Equal(t, valueobject.EntryStatusNotified, f.load(t, requestID).ActiveRun().Entries[0].Status)

	_, err = f.respond.Execute(f.ctx, dispatch.RecordResponseInput{EntryID: "missing", Actor: valueobject.Operator("op-1"), Outcome: "accepted", Now: t0})
	assert.True(t, apperror.IsNotFound(err))
}

func TestSweepExpired_IdempotentAcrossPool(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.StopWait()

	f := newFixture(t, valueobject.ExhaustedNoCoverage, pool)
	f.addOperator("op-1", 1)
	var ids []string
	for i := 0; i < 3; i++ {
		id := f.createRequest(t, true)
		f.startRun(t, id, "")
		ids = append(ids, id)
	}

	report, err := f.sweep.Execute(f.ctx, t0.Add(entryTTL))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Zero(t, report.Failed)

	for _, id := range ids {
		agg := f.load(t, id)
		assert.Equal(t, valueobject.RequestStatusNoOperatorAvailable, agg.Request.Status)
		assert.Equal(t, valueobject.DispatchRunExhausted, agg.LatestRun().Status)
	}

	report, err = f.sweep.Execute(f.ctx, t0.Add(entryTTL))
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Zero(t, report.Changed)
}

func TestGetRun(t *testing.T) {
	f := newFixture(t, valueobject.ExhaustedNoCoverage, nil)
	f.addOperator("op-1", 1)
	f.addOperator("op-2", 2)
	requestID := f.createRequest(t, true)

	_, err := f.getRun.Execute(f.ctx, requestID, customer)
	assert.True(t, apperror.IsNotFound(err))

	f.startRun(t, requestID, "")

	run, err := f.getRun.Execute(f.ctx, requestID, customer)
	require.NoError(t, err)
	assert.Len(t, run.Entries, 2)

	own, err := f.getRun.Execute(f.ctx, requestID, valueobject.Operator("op-2"))
	require.NoError(t, err)
	require.Len(t, own.Entries, 1)
	assert.Equal(t, "op-2", own.Entries[0].OperatorID)

	_, err = f.getRun.Execute(f.ctx, requestID, valueobject.Customer("cust-2"))
	assert.True(t, apperror.IsForbidden(err))
}
