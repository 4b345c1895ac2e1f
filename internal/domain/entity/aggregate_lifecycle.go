package entity

import (
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// OfferToOperator прямое предложение одному исполнителю (обычная заявка).
func (a *RequestAggregate) OfferToOperator(operatorID string, actor valueobject.Actor, now time.Time) error {
	if a.Request.Emergency {
		return apperror.New(apperror.ErrCodeValidation, "срочные заявки назначаются через очередь вызова")
	}
	if a.ActiveRun() != nil {
		return apperror.ErrDispatchActive
	}
	if err := a.transitionRequest(valueobject.RequestStatusOperatorPending, actor,
		valueobject.Payload{"operatorId": operatorID, "direct": true}, now); err != nil {
		return err
	}
	a.Request.PendingOperatorID = ptr(operatorID)
	return nil
}

// RespondToOffer ответ исполнителя на прямое предложение. Принятие сразу связывает заявку.
func (a *RequestAggregate) RespondToOffer(actor valueobject.Actor, accept bool, reason *valueobject.DeclineReason, now time.Time) error {
	req := a.Request
	if req.Status != valueobject.RequestStatusOperatorPending || req.PendingOperatorID == nil || *req.PendingOperatorID != actor.ID {
		return apperror.New(apperror.ErrCodeInvalidTransition, "для вас нет ожидающего прямого предложения по этой заявке")
	}

	meta := valueobject.Payload{"operatorId": actor.ID, "direct": true}
	if !accept {
		if reason != nil {
			meta["reason"] = string(*reason)
		}
		if err := a.transitionRequest(valueobject.RequestStatusOperatorDeclined, actor, meta, now); err != nil {
			return err
		}
		req.PendingOperatorID = nil
		return nil
	}

	if err := a.transitionRequest(valueobject.RequestStatusOperatorAccepted, actor, meta, now); err != nil {
		return err
	}
	return a.bind(actor.ID, nil, nil, actor, now)
}

func (a *RequestAggregate) StartWork(actor valueobject.Actor, now time.Time) error {
	return a.transitionRequest(valueobject.RequestStatusInProgress, actor, a.jobMeta(), now)
}

func (a *RequestAggregate) Complete(actor valueobject.Actor, now time.Time) error {
	return a.transitionRequest(valueobject.RequestStatusCompleted, actor, a.jobMeta(), now)
}

// Dispute фиксирует спор; работа при этом не завершается.
func (a *RequestAggregate) Dispute(actor valueobject.Actor, reason string, now time.Time) error {
	meta := a.jobMeta()
	meta["reason"] = reason
	return a.transitionRequest(valueobject.RequestStatusDisputed, actor, meta, now)
}

// ResolveDispute возвращает спорную заявку в работу или закрывает её как выполненную.
func (a *RequestAggregate) ResolveDispute(actor valueobject.Actor, to valueobject.RequestStatus, notes string, now time.Time) error {
	if a.Request.Status != valueobject.RequestStatusDisputed {
		return apperror.Newf(apperror.ErrCodeInvalidTransition, "заявка в статусе %s, а не в споре", a.Request.Status)
	}
	if to != valueobject.RequestStatusInProgress && to != valueobject.RequestStatusCompleted {
		return apperror.New(apperror.ErrCodeValidation, "спор можно разрешить только в in_progress или completed")
	}
	meta := a.jobMeta()
	meta["notes"] = notes
	return a.transitionRequest(to, actor, meta, now)
}

// Cancel отменяет заявку и в той же операции закрывает все активные предложения, позиции очереди и окно.
func (a *RequestAggregate) Cancel(actor valueobject.Actor, reason string, now time.Time) error {
	if err := a.transitionRequest(valueobject.RequestStatusCancelled, actor, valueobject.Payload{"reason": reason}, now); err != nil {
		return err
	}
	a.Request.PendingOperatorID = nil

	for _, q := range a.Quotes {
		a.closeQuote(q, valueobject.QuoteStatusCancelled, QuoteActionCancelled, EventQuoteCancelled, actor, now)
	}
	if run := a.ActiveRun(); run != nil {
		for _, e := range run.Entries {
			if !e.Status.IsTerminal() {
				a.finishEntry(e, valueobject.EntryStatusCancelled, actor, now)
			}
		}
		a.finishRun(run, valueobject.DispatchRunCancelled, actor, now)
	}
	if a.Request.QuoteStatus == valueobject.QuoteWindowOpen {
		a.setWindow(valueobject.QuoteWindowExpired, actor, now)
	}
	return nil
}

func (a *RequestAggregate) jobMeta() valueobject.Payload {
	meta := valueobject.Payload{}
	if id := a.Request.ActiveJobID; id != nil {
		meta["jobId"] = *id
	}
	if id := a.Request.AssignedOperatorID; id != nil {
		meta["operatorId"] = *id
	}
	return meta
}
