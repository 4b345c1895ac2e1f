package feed

import (
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
)

// GlobalTopic получает все события всех заявок.
const GlobalTopic = "*"

// Message событие журнала в виде для SSE, websocket и Redis.
type Message struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	RequestID  string         `json:"requestId"`
	Seq        int64          `json:"seq"`
	ActorRole  string         `json:"actorRole"`
	ActorID    string         `json:"actorId,omitempty"`
	FromStatus string         `json:"fromStatus,omitempty"`
	ToStatus   string         `json:"toStatus,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

func NewMessage(ev *entity.StatusEvent) Message {
	return Message{
		ID:         ev.ID,
		Type:       string(ev.EventType),
		RequestID:  ev.RequestID,
		Seq:        ev.Seq,
		ActorRole:  string(ev.Actor.Role),
		ActorID:    ev.Actor.ID,
		FromStatus: ev.FromStatus,
		ToStatus:   ev.ToStatus,
		Data:       ev.Metadata.Clone(),
		OccurredAt: ev.OccurredAt,
	}
}

// Broker pub/sub по темам. Тема это идентификатор заявки или GlobalTopic.
type Broker interface {
	Subscribe(topic string) chan Message
	Unsubscribe(topic string, ch chan Message)
	Publish(topic string, msg Message)
}
