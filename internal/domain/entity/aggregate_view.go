package entity

import "github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"

// Involves участвует ли исполнитель в заявке: назначен, ждёт прямого ответа, подал предложение или стоит в очереди.
func (a *RequestAggregate) Involves(operatorID string) bool {
	req := a.Request
	if req.IsAssignedTo(operatorID) || (req.PendingOperatorID != nil && *req.PendingOperatorID == operatorID) {
		return true
	}
	for _, q := range a.Quotes {
		if q.OperatorID == operatorID {
			return true
		}
	}
	for _, r := range a.Runs {
		for _, e := range r.Entries {
			if e.OperatorID == operatorID {
				return true
			}
		}
	}
	return false
}

// CanSeeHistory журнал доступен владельцу, системе и вовлечённым исполнителям.
func (a *RequestAggregate) CanSeeHistory(actor valueobject.Actor) bool {
	switch actor.Role {
	case valueobject.ActorSystem:
		return true
	case valueobject.ActorCustomer:
		return a.Request.IsOwnedBy(actor.ID)
	case valueobject.ActorOperator:
		return a.Involves(actor.ID)
	}
	return false
}

// ViewFor копия агрегата в объёме, доступном участнику. nil, если заявка ему недоступна.
// Исполнитель видит заявку целиком, но только свои предложения и позиции очереди.
func (a *RequestAggregate) ViewFor(actor valueobject.Actor) *RequestAggregate {
	switch actor.Role {
	case valueobject.ActorSystem:
		return a.Clone()
	case valueobject.ActorCustomer:
		if !a.Request.IsOwnedBy(actor.ID) {
			return nil
		}
		return a.Clone()
	case valueobject.ActorOperator:
		view := &RequestAggregate{Request: a.Request.Clone()}
		for _, q := range a.Quotes {
			if q.OperatorID == actor.ID {
				view.Quotes = append(view.Quotes, q.Clone())
			}
		}
		for _, r := range a.Runs {
			run := r.Clone()
			run.Entries = nil
			for _, e := range r.Entries {
				if e.OperatorID == actor.ID {
					run.Entries = append(run.Entries, e.Clone())
				}
			}
			view.Runs = append(view.Runs, run)
		}
		return view
	}
	return nil
}
