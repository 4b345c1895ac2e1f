package entity

import (
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// StartDispatch добавляет построенный прогон и рассылает первые уведомления.
func (a *RequestAggregate) StartDispatch(run *DispatchRun, actor valueobject.Actor, policy valueobject.ExhaustedPolicy, now time.Time) (valueobject.DispatchOutcome, error) {
	req := a.Request
	if !req.Emergency {
		return "", apperror.New(apperror.ErrCodeValidation, "очередь вызова запускается только для срочных заявок")
	}
	if a.ActiveRun() != nil {
		return "", apperror.ErrDispatchActive
	}
	if !req.Status.CanTransitionTo(valueobject.RequestStatusOperatorPending) {
		return "", apperror.Newf(apperror.ErrCodeInvalidTransition,
			"нельзя запустить вызов для заявки в статусе %s", req.Status)
	}

	run.RequestID = req.ID
	a.Runs = append(a.Runs, run)

	if len(run.Entries) == 0 {
		a.finishRun(run, valueobject.DispatchRunNoCoverage, actor, now)
		if policy == valueobject.ExhaustedNoCoverage {
			if err := a.transitionRequest(valueobject.RequestStatusNoOperatorAvailable, actor,
				valueobject.Payload{"runId": run.ID, "reason": "no_coverage"}, now); err != nil {
				return "", err
			}
		}
		return valueobject.OutcomeNoCoverage, nil
	}

	a.record(actor, EventDispatchStarted, "", string(run.Status), valueobject.Payload{
		"runId":   run.ID,
		"mode":    string(run.Mode),
		"entries": len(run.Entries),
	}, now)
	if err := a.transitionRequest(valueobject.RequestStatusOperatorPending, actor,
		valueobject.Payload{"runId": run.ID}, now); err != nil {
		return "", err
	}

	switch run.Mode {
	case valueobject.DispatchModeParallel:
		for _, e := range run.Entries {
			a.notifyEntry(e, run.EntryTTL, actor, now)
		}
	default:
		a.notifyEntry(run.nextPending(), run.EntryTTL, actor, now)
	}
	return valueobject.OutcomeDispatched, nil
}

func (a *RequestAggregate) notifyEntry(e *DispatchEntry, ttl time.Duration, actor valueobject.Actor, now time.Time) {
	from := e.Status
	e.notify(ttl, now)
	a.record(actor, EventEntryNotified, string(from), string(e.Status), entryMeta(e), now)
}

// RecordEntryResponse ответ исполнителя из очереди. Первый принявший выигрывает, остальные получают ENTRY_NOT_ACTIVE.
func (a *RequestAggregate) RecordEntryResponse(entryID string, actor valueobject.Actor, outcome valueobject.ResponseOutcome, policy valueobject.ExhaustedPolicy, now time.Time) error {
	run, entry := a.FindEntry(entryID)
	if entry == nil {
		return apperror.ErrEntryNotFound
	}
	if !run.IsActive() || !entry.IsLive(now) {
		return apperror.ErrEntryNotActive
	}

	switch outcome {
	case valueobject.ResponseAccepted:
		if err := a.ensureRequestOpen(); err != nil {
			return err
		}
		a.finishEntry(entry, valueobject.EntryStatusAccepted, actor, now)
		return a.bind(entry.OperatorID, nil, entry, actor, now)
	case valueobject.ResponseDeclined:
		a.finishEntry(entry, valueobject.EntryStatusDeclined, actor, now)
		return a.advance(run, policy, now)
	default:
		return apperror.New(apperror.ErrCodeValidation, "неизвестный ответ")
	}
}

// SweepDispatch истекает просроченные уведомления активного прогона и двигает очередь.
// Возвращает число переходов; повторный вызов с тем же now вернёт 0.
func (a *RequestAggregate) SweepDispatch(policy valueobject.ExhaustedPolicy, now time.Time) (int, error) {
	run := a.ActiveRun()
	if run == nil {
		return 0, nil
	}
	system := valueobject.System("dispatch-expiry")
	before := len(a.pending)

	for _, e := range run.Entries {
		if e.IsDue(now) {
			a.finishEntry(e, valueobject.EntryStatusExpired, system, now)
		}
	}
	if len(a.pending) == before {
		return 0, nil
	}
	if err := a.advance(run, policy, now); err != nil {
		return 0, err
	}
	return len(a.pending) - before, nil
}

// HasDueEntries есть ли у заявки работа для свипа очереди.
func (a *RequestAggregate) HasDueEntries(now time.Time) bool {
	run := a.ActiveRun()
	if run == nil {
		return false
	}
	for _, e := range run.Entries {
		if e.IsDue(now) {
			return true
		}
	}
	return false
}

// advance в последовательном режиме уведомляет следующего, если никого не ждём; при исчерпании применяет политику.
func (a *RequestAggregate) advance(run *DispatchRun, policy valueobject.ExhaustedPolicy, now time.Time) error {
	system := valueobject.System("dispatch")
	if run.Mode == valueobject.DispatchModeSequential && !run.hasNotified() {
		if next := run.nextPending(); next != nil {
			a.notifyEntry(next, run.EntryTTL, system, now)
			return nil
		}
	}
	if !run.allTerminal() {
		return nil
	}

	a.finishRun(run, valueobject.DispatchRunExhausted, system, now)
	meta := valueobject.Payload{"runId": run.ID, "policy": string(policy)}
	if policy == valueobject.ExhaustedRetry {
		a.Request.PendingOperatorID = nil
		return a.transitionRequest(valueobject.RequestStatusPending, system, meta, now)
	}
	return a.transitionRequest(valueobject.RequestStatusNoOperatorAvailable, system, meta, now)
}
