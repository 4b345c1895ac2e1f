package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// RequestAggregate заявка со всеми предложениями и прогонами вызова.
// Все изменения одной операции делаются над одним агрегатом под эксклюзивной блокировкой заявки.
type RequestAggregate struct {
	Request *ServiceRequest
	Quotes  []*Quote
	Runs    []*DispatchRun

	pending []*StatusEvent
}

// NewRequestAggregate новая заявка с первым событием журнала.
func NewRequestAggregate(req *ServiceRequest, actor valueobject.Actor, now time.Time) *RequestAggregate {
	agg := &RequestAggregate{Request: req}
	agg.record(actor, EventRequestCreated, "", string(req.Status), valueobject.Payload{
		"emergency":    req.Emergency,
		"serviceTypes": req.ServiceTypes,
	}, now)
	return agg
}

func (a *RequestAggregate) Clone() *RequestAggregate {
	c := &RequestAggregate{
		Request: a.Request.Clone(),
		Quotes:  make([]*Quote, len(a.Quotes)),
		Runs:    make([]*DispatchRun, len(a.Runs)),
		pending: append([]*StatusEvent(nil), a.pending...),
	}
	for i, q := range a.Quotes {
		c.Quotes[i] = q.Clone()
	}
	for i, r := range a.Runs {
		c.Runs[i] = r.Clone()
	}
	return c
}

// PendingEvents события, записанные с момента загрузки агрегата.
func (a *RequestAggregate) PendingEvents() []*StatusEvent {
	return a.pending
}

func (a *RequestAggregate) ClearPending() {
	a.pending = nil
}

func (a *RequestAggregate) record(actor valueobject.Actor, eventType EventType, from, to string, meta valueobject.Payload, now time.Time) *StatusEvent {
	a.Request.EventSeq++
	ev := &StatusEvent{
		ID:         uuid.NewString(),
		RequestID:  a.Request.ID,
		Seq:        a.Request.EventSeq,
		Actor:      actor,
		FromStatus: from,
		ToStatus:   to,
		EventType:  eventType,
		Metadata:   meta,
		OccurredAt: now,
	}
	a.pending = append(a.pending, ev)
	return ev
}

func (a *RequestAggregate) Quote(id string) *Quote {
	for _, q := range a.Quotes {
		if q.ID == id {
			return q
		}
	}
	return nil
}

func (a *RequestAggregate) ActiveRun() *DispatchRun {
	for _, r := range a.Runs {
		if r.IsActive() {
			return r
		}
	}
	return nil
}

// LatestRun последний по времени запуска прогон.
func (a *RequestAggregate) LatestRun() *DispatchRun {
	var latest *DispatchRun
	for _, r := range a.Runs {
		if latest == nil || r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}
	return latest
}

func (a *RequestAggregate) FindEntry(entryID string) (*DispatchRun, *DispatchEntry) {
	for _, r := range a.Runs {
		if e := r.Entry(entryID); e != nil {
			return r, e
		}
	}
	return nil, nil
}

func (a *RequestAggregate) transitionRequest(to valueobject.RequestStatus, actor valueobject.Actor, meta valueobject.Payload, now time.Time) error {
	from := a.Request.Status
	if err := a.Request.transitionTo(to, now); err != nil {
		return err
	}
	a.record(actor, EventRequestStatusChanged, string(from), string(to), meta, now)
	return nil
}

func (a *RequestAggregate) setWindow(status valueobject.QuoteWindowStatus, actor valueobject.Actor, now time.Time) {
	from := a.Request.QuoteStatus
	if from == status {
		return
	}
	a.Request.QuoteStatus = status
	a.Request.UpdatedAt = now
	a.record(actor, EventQuoteWindowChanged, string(from), string(status), nil, now)
}

func (a *RequestAggregate) closeQuote(q *Quote, status valueobject.QuoteStatus, action QuoteAction, eventType EventType, actor valueobject.Actor, now time.Time) bool {
	from := q.Status
	if !q.close(status, action, actor, now) {
		return false
	}
	a.record(actor, eventType, string(from), string(status), quoteMeta(q), now)
	return true
}

func (a *RequestAggregate) finishEntry(e *DispatchEntry, status valueobject.EntryStatus, actor valueobject.Actor, now time.Time) {
	from := e.Status
	e.Status = status
	if status == valueobject.EntryStatusAccepted || status == valueobject.EntryStatusDeclined {
		e.RespondedAt = ptr(now)
	}
	a.record(actor, entryEventType(status), string(from), string(status), entryMeta(e), now)
}

func (a *RequestAggregate) finishRun(r *DispatchRun, status valueobject.DispatchRunStatus, actor valueobject.Actor, now time.Time) {
	from := r.Status
	r.finish(status, now)
	a.record(actor, runEventType(status), string(from), string(status), valueobject.Payload{
		"runId": r.ID,
		"mode":  string(r.Mode),
	}, now)
}

// bind единственная точка связывающего назначения: прямой ответ, принятие предложения или ответ из очереди.
// Все остальные активные предложения и позиции очереди закрываются в той же операции.
func (a *RequestAggregate) bind(operatorID string, quoteID *string, winner *DispatchEntry, actor valueobject.Actor, now time.Time) error {
	req := a.Request
	jobID := uuid.NewString()
	meta := valueobject.Payload{"operatorId": operatorID, "jobId": jobID}
	if quoteID != nil {
		meta["quoteId"] = *quoteID
	}
	if err := a.transitionRequest(valueobject.RequestStatusAssigned, actor, meta, now); err != nil {
		return err
	}
	req.AssignedOperatorID = ptr(operatorID)
	req.SelectedQuoteID = cloneString(quoteID)
	req.ActiveJobID = ptr(jobID)
	req.PendingOperatorID = nil

	a.setWindow(valueobject.QuoteWindowDecided, actor, now)

	for _, q := range a.Quotes {
		if quoteID != nil && q.ID == *quoteID {
			continue
		}
		a.closeQuote(q, valueobject.QuoteStatusSuperseded, QuoteActionSuperseded, EventQuoteSuperseded, actor, now)
	}

	if run := a.ActiveRun(); run != nil {
		for _, e := range run.Entries {
			if e == winner || e.Status.IsTerminal() {
				continue
			}
			a.finishEntry(e, valueobject.EntryStatusCancelled, actor, now)
		}
		if winner != nil && winner.RunID == run.ID {
			a.finishRun(run, valueobject.DispatchRunAccepted, actor, now)
		} else {
			a.finishRun(run, valueobject.DispatchRunCancelled, actor, now)
		}
	}
	return nil
}

func (a *RequestAggregate) ensureRequestOpen() error {
	if !a.Request.Status.AcceptsAssignment() {
		return apperror.Newf(apperror.ErrCodeInvalidTransition,
			"заявка уже в статусе %s и не может быть назначена", a.Request.Status)
	}
	return nil
}

func quoteMeta(q *Quote) valueobject.Payload {
	return valueobject.Payload{
		"quoteId":    q.ID,
		"operatorId": q.OperatorID,
		"amount":     q.Amount.String(),
	}
}

func entryMeta(e *DispatchEntry) valueobject.Payload {
	meta := valueobject.Payload{
		"entryId":    e.ID,
		"runId":      e.RunID,
		"operatorId": e.OperatorID,
		"position":   e.QueuePosition,
	}
	if e.ExpiresAt != nil {
		meta["expiresAt"] = e.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return meta
}

func entryEventType(status valueobject.EntryStatus) EventType {
	switch status {
	case valueobject.EntryStatusNotified:
		return EventEntryNotified
	case valueobject.EntryStatusAccepted:
		return EventEntryAccepted
	case valueobject.EntryStatusDeclined:
		return EventEntryDeclined
	case valueobject.EntryStatusExpired:
		return EventEntryExpired
	default:
		return EventEntryCancelled
	}
}

func runEventType(status valueobject.DispatchRunStatus) EventType {
	switch status {
	case valueobject.DispatchRunAccepted:
		return EventDispatchAccepted
	case valueobject.DispatchRunExhausted:
		return EventDispatchExhausted
	case valueobject.DispatchRunNoCoverage:
		return EventDispatchNoCoverage
	case valueobject.DispatchRunCancelled:
		return EventDispatchCancelled
	default:
		return EventDispatchStarted
	}
}
