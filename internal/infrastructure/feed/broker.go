package feed

import "sync"

// MemoryBroker брокер в пределах процесса. Медленные подписчики теряют сообщения.
type MemoryBroker struct {
	mu   sync.Mutex
	subs map[string]map[chan Message]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: map[string]map[chan Message]struct{}{}}
}

var _ Broker = (*MemoryBroker)(nil)

func (b *MemoryBroker) Subscribe(topic string) chan Message {
	ch := make(chan Message, 16)
	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = map[chan Message]struct{}{}
	}
	b.subs[topic][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *MemoryBroker) Unsubscribe(topic string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[topic]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, topic)
	}
	close(ch)
}

func (b *MemoryBroker) Publish(topic string, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
		}
	}
}
