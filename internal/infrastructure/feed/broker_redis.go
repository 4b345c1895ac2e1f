package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/dispatch-engine/internal/goroutine"
	"github.com/ignatzorin/dispatch-engine/internal/logger"
)

const (
	publishTimeout = 2 * time.Second
	outboxSize     = 1024
)

// RedisBroker брокер поверх Redis Pub/Sub, события видны всем инстансам.
type RedisBroker struct {
	rdb    *redis.Client
	prefix string

	mu   sync.Mutex
	subs map[chan Message]*redis.PubSub

	// одна горутина отправляет очередь, порядок публикаций сохраняется
	outbox    chan outbound
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type outbound struct {
	channel string
	data    []byte
	msg     Message
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return NewRedisBrokerWithClient(redis.NewClient(opt)), nil
}

func NewRedisBrokerWithClient(rdb *redis.Client) *RedisBroker {
	b := &RedisBroker{
		rdb:     rdb,
		prefix:  "dispatch:request:",
		subs:    map[chan Message]*redis.PubSub{},
		outbox:  make(chan outbound, outboxSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	goroutine.SafeGo(b.drain)
	return b
}

var _ Broker = (*RedisBroker)(nil)

// Ping проверяет соединение при старте.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.rdb.Ping(ctx).Err()
}

func (b *RedisBroker) Subscribe(topic string) chan Message {
	ch := make(chan Message, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.channel(topic))
	// дожидаемся подтверждения подписки
	if _, err := ps.Receive(ctx); err != nil {
		logger.Log.WithError(err).WithField("topic", topic).Warn("feed: не удалось подписаться на redis")
	}

	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()

	goroutine.SafeGo(func() {
		for msg := range ps.Channel() {
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				continue
			}
			b.deliver(ch, m)
		}
	})
	return ch
}

func (b *RedisBroker) deliver(ch chan Message, m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	select {
	case ch <- m:
	default:
	}
}

func (b *RedisBroker) Unsubscribe(topic string, ch chan Message) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	if ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

// Publish не ждёт Redis: событие встаёт в очередь, при переполнении теряется.
func (b *RedisBroker) Publish(topic string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Log.WithError(err).Warn("feed: не удалось сериализовать событие")
		return
	}
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.outbox <- outbound{channel: b.channel(topic), data: data, msg: msg}:
	default:
		logger.Log.WithFields(logrus.Fields{
			"request_id": msg.RequestID,
			"event_type": msg.Type,
		}).Warn("feed: очередь публикации в redis переполнена")
	}
}

func (b *RedisBroker) drain() {
	defer close(b.stopped)
	for {
		select {
		case out := <-b.outbox:
			b.send(out)
		case <-b.done:
			for {
				select {
				case out := <-b.outbox:
					b.send(out)
				default:
					return
				}
			}
		}
	}
}

func (b *RedisBroker) send(out outbound) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := b.rdb.Publish(ctx, out.channel, out.data).Err(); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"request_id": out.msg.RequestID,
			"event_type": out.msg.Type,
		}).Warn("feed: не удалось опубликовать событие в redis")
	}
}

// Close отправляет оставшуюся очередь и закрывает клиент.
func (b *RedisBroker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	<-b.stopped
	return b.rdb.Close()
}

func (b *RedisBroker) channel(topic string) string {
	if topic == GlobalTopic {
		return b.prefix + "all"
	}
	return b.prefix + topic
}
