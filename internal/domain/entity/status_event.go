package entity

import (
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

type EventType string

const (
	EventRequestCreated       EventType = "request.created"
	EventRequestStatusChanged EventType = "request.status_changed"
	EventQuoteWindowChanged   EventType = "quote_window.changed"

	EventQuoteSubmitted        EventType = "quote.submitted"
	EventQuoteCountered        EventType = "quote.countered"
	EventQuoteCounterResponded EventType = "quote.counter_responded"
	EventQuoteAccepted         EventType = "quote.accepted"
	EventQuoteDeclined         EventType = "quote.declined"
	EventQuoteWithdrawn        EventType = "quote.withdrawn"
	EventQuoteExpired          EventType = "quote.expired"
	EventQuoteSuperseded       EventType = "quote.superseded"
	EventQuoteCancelled        EventType = "quote.cancelled"

	EventDispatchStarted    EventType = "dispatch.started"
	EventDispatchAccepted   EventType = "dispatch.accepted"
	EventDispatchExhausted  EventType = "dispatch.exhausted"
	EventDispatchNoCoverage EventType = "dispatch.no_coverage"
	EventDispatchCancelled  EventType = "dispatch.cancelled"

	EventEntryNotified  EventType = "dispatch.entry_notified"
	EventEntryAccepted  EventType = "dispatch.entry_accepted"
	EventEntryDeclined  EventType = "dispatch.entry_declined"
	EventEntryExpired   EventType = "dispatch.entry_expired"
	EventEntryCancelled EventType = "dispatch.entry_cancelled"
)

// StatusEvent запись журнала аудита. Только добавление, Seq строго растёт в пределах заявки.
type StatusEvent struct {
	ID         string
	RequestID  string
	Seq        int64
	Actor      valueobject.Actor
	FromStatus string
	ToStatus   string
	EventType  EventType
	Metadata   valueobject.Payload
	OccurredAt time.Time
}

// Recipients участники, которых касается событие (для push-уведомлений).
func (e *StatusEvent) Recipients(req *ServiceRequest) []valueobject.Actor {
	seen := map[string]struct{}{}
	var out []valueobject.Actor
	add := func(a valueobject.Actor) {
		if a.ID == "" {
			return
		}
		if _, ok := seen[a.Key()]; ok {
			return
		}
		seen[a.Key()] = struct{}{}
		out = append(out, a)
	}

	add(valueobject.Customer(req.CustomerID))
	if id, ok := e.Metadata["operatorId"].(string); ok {
		add(valueobject.Operator(id))
	}
	if req.AssignedOperatorID != nil {
		add(valueobject.Operator(*req.AssignedOperatorID))
	}
	return out
}
