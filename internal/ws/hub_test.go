package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

// клиент без соединения: хабу нужен только канал send
func fakeClient(hub *Hub, actor valueobject.Actor) *Client {
	return &Client{hub: hub, key: actor.Key(), send: make(chan []byte, 4)}
}

func TestHubPublisher_DeliversToRecipients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub()
	go hub.Run(ctx)

	customer := fakeClient(hub, valueobject.Customer("cust-1"))
	operator := fakeClient(hub, valueobject.Operator("op-1"))
	stranger := fakeClient(hub, valueobject.Operator("op-2"))
	hub.Register(customer)
	hub.Register(operator)
	hub.Register(stranger)

	req := &entity.ServiceRequest{ID: "req-1", CustomerID: "cust-1"}
	ev := &entity.StatusEvent{
		ID:        "ev-1",
		RequestID: "req-1",
		Seq:       2,
		Actor:     valueobject.Operator("op-1"),
		EventType: entity.EventQuoteSubmitted,
		Metadata:  valueobject.Payload{"operatorId": "op-1", "quoteId": "q-1"},
	}
	NewHubPublisher(hub).Publish(ctx, req, []*entity.StatusEvent{ev})

	for _, c := range []*Client{customer, operator} {
		select {
		case raw := <-c.send:
			var got struct {
				Type string `json:"type"`
			}
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, "quote.submitted", got.Type)
		case <-time.After(time.Second):
			t.Fatalf("no message for %s", c.key)
		}
	}

	select {
	case <-stranger.send:
		t.Fatal("unrelated operator must not receive the event")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 1, hub.Connected(valueobject.Customer("cust-1")))
}
