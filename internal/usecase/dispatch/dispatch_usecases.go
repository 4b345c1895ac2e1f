package dispatch

import (
	"context"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/eligibility"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
)

// Settings параметры очереди вызова из конфигурации.
type Settings struct {
	Mode      valueobject.DispatchMode
	EntryTTL  time.Duration
	Exhausted valueobject.ExhaustedPolicy
	Tiers     valueobject.TierPolicy
}

type StartRunInput struct {
	RequestID string
	Actor     valueobject.Actor
	// Mode пустой: режим по умолчанию из настроек.
	Mode string
	Now  time.Time
}

type StartRunResult struct {
	Run     *entity.DispatchRun
	Outcome valueobject.DispatchOutcome
	Request *entity.ServiceRequest
}

type StartRunUseCase struct {
	runner   *unitofwork.Runner
	roster   repository.OperatorRoster
	settings Settings
}

func NewStartRunUseCase(runner *unitofwork.Runner, roster repository.OperatorRoster, settings Settings) *StartRunUseCase {
	return &StartRunUseCase{runner: runner, roster: roster, settings: settings}
}

// Execute строит очередь из подходящих исполнителей и рассылает первые уведомления.
// Отсутствие кандидатов возвращается как исход no_coverage, а не ошибка.
func (uc *StartRunUseCase) Execute(ctx context.Context, input StartRunInput) (*StartRunResult, error) {
	mode := uc.settings.Mode
	if input.Mode != "" {
		m, err := valueobject.NewDispatchMode(input.Mode)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	snapshot, err := uc.roster.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var (
		runID   string
		outcome valueobject.DispatchOutcome
	)
	agg, _, err := uc.runner.Do(ctx, input.RequestID, func(agg *entity.RequestAggregate) error {
		if !input.Actor.IsSystem() && !input.Actor.IsCustomer(agg.Request.CustomerID) {
			return apperror.ErrForbidden
		}
		candidates := eligibility.Candidates(agg.Request, snapshot, uc.settings.Tiers)
		run := BuildQueue(agg.Request, candidates, mode, uc.settings.EntryTTL, input.Now)
		runID = run.ID

		var err error
		outcome, err = agg.StartDispatch(run, input.Actor, uc.settings.Exhausted, input.Now)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &StartRunResult{Outcome: outcome, Request: agg.Request}
	for _, r := range agg.Runs {
		if r.ID == runID {
			result.Run = r
		}
	}
	return result, nil
}

type RecordResponseInput struct {
	EntryID string
	Actor   valueobject.Actor
	Outcome string
	Now     time.Time
}

type RecordResponseUseCase struct {
	runner   *unitofwork.Runner
	settings Settings
}

func NewRecordResponseUseCase(runner *unitofwork.Runner, settings Settings) *RecordResponseUseCase {
	return &RecordResponseUseCase{runner: runner, settings: settings}
}

// Execute ответ исполнителя на уведомление. Первый принявший получает заявку.
func (uc *RecordResponseUseCase) Execute(ctx context.Context, input RecordResponseInput) (*entity.RequestAggregate, error) {
	outcome, err := valueobject.NewResponseOutcome(input.Outcome)
	if err != nil {
		return nil, err
	}
	requestID, err := uc.runner.Store().RequestIDByEntry(ctx, input.EntryID)
	if err != nil {
		return nil, err
	}
	agg, _, err := uc.runner.Do(ctx, requestID, func(agg *entity.RequestAggregate) error {
		_, entry := agg.FindEntry(input.EntryID)
		if entry == nil {
			return apperror.ErrEntryNotFound
		}
		if !input.Actor.IsOperator(entry.OperatorID) {
			return apperror.ErrForbidden
		}
		return agg.RecordEntryResponse(input.EntryID, input.Actor, outcome, uc.settings.Exhausted, input.Now)
	})
	if err != nil {
		return nil, err
	}
	return agg.ViewFor(input.Actor), nil
}

type SweepExpiredUseCase struct {
	runner   *unitofwork.Runner
	pool     *workerpool.WorkerPool
	settings Settings
}

func NewSweepExpiredUseCase(runner *unitofwork.Runner, pool *workerpool.WorkerPool, settings Settings) *SweepExpiredUseCase {
	return &SweepExpiredUseCase{runner: runner, pool: pool, settings: settings}
}

// Execute истекает просроченные уведомления, двигает последовательные очереди и закрывает исчерпанные прогоны.
func (uc *SweepExpiredUseCase) Execute(ctx context.Context, now time.Time) (unitofwork.SweepReport, error) {
	ids, err := uc.runner.Store().DueForDispatchSweep(ctx, now)
	if err != nil {
		return unitofwork.SweepReport{}, err
	}
	return uc.runner.Sweep(ctx, uc.pool, ids, func(agg *entity.RequestAggregate) (int, error) {
		return agg.SweepDispatch(uc.settings.Exhausted, now)
	}), nil
}

type GetRunUseCase struct {
	store repository.RequestStore
}

func NewGetRunUseCase(store repository.RequestStore) *GetRunUseCase {
	return &GetRunUseCase{store: store}
}

// Execute последний прогон вызова по заявке.
func (uc *GetRunUseCase) Execute(ctx context.Context, requestID string, actor valueobject.Actor) (*entity.DispatchRun, error) {
	agg, err := uc.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	view := agg.ViewFor(actor)
	if view == nil {
		return nil, apperror.ErrForbidden
	}
	run := view.LatestRun()
	if run == nil {
		return nil, apperror.ErrRunNotFound
	}
	return run, nil
}
