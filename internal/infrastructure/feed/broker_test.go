package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe("r1")

	b.Publish("r1", Message{Type: "quote.submitted", Data: map[string]any{"x": 1}})

	select {
	case got := <-ch:
		assert.Equal(t, "quote.submitted", got.Type)
		assert.Equal(t, 1, got.Data["x"])
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe("r1", ch)
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")

	// повторная отписка не паникует
	b.Unsubscribe("r1", ch)
}

func TestMemoryBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewMemoryBroker()
	ch := b.Subscribe("r1")
	defer b.Unsubscribe("r1", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish("r1", Message{Type: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, cap(ch))
}

func TestBrokerPublisher_RequestAndGlobalTopics(t *testing.T) {
	b := NewMemoryBroker()
	perRequest := b.Subscribe("req-1")
	global := b.Subscribe(GlobalTopic)
	other := b.Subscribe("req-2")

	ev := &entity.StatusEvent{
		ID:        "ev-1",
		RequestID: "req-1",
		Seq:       3,
		Actor:     valueobject.Customer("cust-1"),
		EventType: entity.EventQuoteAccepted,
		Metadata:  valueobject.Payload{"quoteId": "q-1"},
	}
	NewFanout(NewBrokerPublisher(b), nil).Publish(context.Background(), &entity.ServiceRequest{ID: "req-1"}, []*entity.StatusEvent{ev})

	got := <-perRequest
	assert.Equal(t, "quote.accepted", got.Type)
	assert.Equal(t, int64(3), got.Seq)
	assert.Equal(t, "q-1", got.Data["quoteId"])

	g := <-global
	assert.Equal(t, "req-1", g.RequestID)

	require.Len(t, other, 0)
}
