package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/goroutine"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/feed"
	"github.com/ignatzorin/dispatch-engine/internal/logger"
)

// Hub управляет всеми WebSocket клиентами. Клиенты сгруппированы по ключу участника (role:id).
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
}

type message struct {
	key     string
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
	}
}

// Run запускает главный цикл хаба до отмены контекста.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.key, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// SendTo ставит сообщение участнику в очередь. Не блокирует: при переполнении сообщение теряется.
func (h *Hub) SendTo(actor valueobject.Actor, event string, data any) error {
	// Сообщение для клиента: поле "type" содержит имя события, "data" полезную нагрузку.
	raw, err := json.Marshal(map[string]any{
		"type": event,
		"data": data,
	})
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	select {
	case h.broadcast <- message{key: actor.Key(), payload: raw}:
		return nil
	default:
		return fmt.Errorf("ws: очередь рассылки переполнена")
	}
}

// Connected число подключений участника.
func (h *Hub) Connected(actor valueobject.Actor) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[actor.Key()])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.key]; !ok {
		h.clients[client.key] = make(map[*Client]struct{})
	}
	h.clients[client.key][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.key]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.key)
		}
	}
}

func (h *Hub) send(key string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[key] {
		select {
		case client.send <- payload:
		default:
			// Закрываем отстающего клиента асинхронно
			c := client
			goroutine.SafeGo(c.Close)
		}
	}
}

// HubPublisher доставляет события журнала участникам заявки через websocket.
type HubPublisher struct {
	hub *Hub
}

func NewHubPublisher(hub *Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

var _ repository.EventPublisher = (*HubPublisher)(nil)

func (p *HubPublisher) Publish(ctx context.Context, req *entity.ServiceRequest, events []*entity.StatusEvent) {
	for _, ev := range events {
		msg := feed.NewMessage(ev)
		for _, actor := range ev.Recipients(req) {
			if err := p.hub.SendTo(actor, msg.Type, msg); err != nil {
				logger.WithRequest(ev.RequestID).WithError(err).Warn("ws: событие не доставлено")
			}
		}
	}
}
