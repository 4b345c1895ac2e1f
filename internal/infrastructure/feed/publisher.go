package feed

import (
	"context"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
)

// BrokerPublisher публикует события в тему заявки и в общую тему.
type BrokerPublisher struct {
	broker Broker
}

func NewBrokerPublisher(broker Broker) *BrokerPublisher {
	return &BrokerPublisher{broker: broker}
}

func (p *BrokerPublisher) Publish(ctx context.Context, req *entity.ServiceRequest, events []*entity.StatusEvent) {
	for _, ev := range events {
		msg := NewMessage(ev)
		p.broker.Publish(ev.RequestID, msg)
		p.broker.Publish(GlobalTopic, msg)
	}
}

// Fanout рассылает события нескольким получателям по очереди.
type Fanout []repository.EventPublisher

func NewFanout(publishers ...repository.EventPublisher) Fanout {
	out := make(Fanout, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

func (f Fanout) Publish(ctx context.Context, req *entity.ServiceRequest, events []*entity.StatusEvent) {
	for _, p := range f {
		p.Publish(ctx, req, events)
	}
}

var (
	_ repository.EventPublisher = (*BrokerPublisher)(nil)
	_ repository.EventPublisher = Fanout(nil)
)
