package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/infrastructure/feed"
	"github.com/ignatzorin/dispatch-engine/internal/interface/http/response"
	"github.com/ignatzorin/dispatch-engine/internal/logger"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/request"
)

const streamKeepAlive = 25 * time.Second

// StreamHandler отдаёт журнал заявки потоком SSE: сначала накопленные события, затем новые.
type StreamHandler struct {
	broker   feed.Broker
	eventsUC *request.ListEventsUseCase
}

func NewStreamHandler(broker feed.Broker, eventsUC *request.ListEventsUseCase) *StreamHandler {
	return &StreamHandler{broker: broker, eventsUC: eventsUC}
}

// StreamEvents GET /requests/:id/events/stream
func (h *StreamHandler) StreamEvents(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	requestID := c.Param("id")

	// подписка до чтения журнала, чтобы не потерять события между ними
	ch := h.broker.Subscribe(requestID)
	defer h.broker.Unsubscribe(requestID, ch)

	backlog, err := h.eventsUC.Execute(c.Request.Context(), requestID, actor)
	if err != nil {
		fail(c, err)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.BadRequest(c, "стриминг не поддерживается")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	lastSeq, _ := strconv.ParseInt(c.GetHeader("Last-Event-ID"), 10, 64)
	for _, ev := range backlog {
		if ev.Seq <= lastSeq {
			continue
		}
		if err := writeSSEMessage(c.Writer, feed.NewMessage(ev)); err != nil {
			return
		}
		lastSeq = ev.Seq
	}
	flusher.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	log := logger.WithRequest(requestID)
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-keepAlive.C:
			if _, err := io.WriteString(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case msg, open := <-ch:
			if !open {
				return
			}
			if msg.Seq <= lastSeq {
				continue
			}
			var err error
			if msg.Seq > lastSeq+1 {
				// пропуск в ленте: догружаем недостающее из журнала
				lastSeq, err = h.catchUp(c, requestID, actor, lastSeq)
			} else if err = writeSSEMessage(c.Writer, msg); err == nil {
				lastSeq = msg.Seq
			}
			if err != nil {
				log.WithError(err).Debug("sse: поток прерван")
				return
			}
			flusher.Flush()
		}
	}
}

// catchUp пишет события журнала после lastSeq и возвращает новый lastSeq.
func (h *StreamHandler) catchUp(c *gin.Context, requestID string, actor valueobject.Actor, lastSeq int64) (int64, error) {
	events, err := h.eventsUC.Execute(c.Request.Context(), requestID, actor)
	if err != nil {
		return lastSeq, err
	}
	for _, ev := range events {
		if ev.Seq <= lastSeq {
			continue
		}
		if err := writeSSEMessage(c.Writer, feed.NewMessage(ev)); err != nil {
			return lastSeq, err
		}
		lastSeq = ev.Seq
	}
	return lastSeq, nil
}

// writeSSEMessage пишет событие с id = seq, чтобы клиент мог переподключиться с Last-Event-ID.
func writeSSEMessage(w io.Writer, msg feed.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, "id: "+strconv.FormatInt(msg.Seq, 10)+"\nevent: "+msg.Type+"\ndata: "+string(data)+"\n\n")
	return err
}
