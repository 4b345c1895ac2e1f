package dto

import (
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
)

type EventResponse struct {
	ID         string         `json:"id"`
	RequestID  string         `json:"request_id"`
	Seq        int64          `json:"seq"`
	EventType  string         `json:"event_type"`
	ActorRole  string         `json:"actor_role"`
	ActorID    string         `json:"actor_id"`
	FromStatus string         `json:"from_status,omitempty"`
	ToStatus   string         `json:"to_status,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

func ToEventResponses(events []*entity.StatusEvent) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, ev := range events {
		out[i] = EventResponse{
			ID:         ev.ID,
			RequestID:  ev.RequestID,
			Seq:        ev.Seq,
			EventType:  string(ev.EventType),
			ActorRole:  string(ev.Actor.Role),
			ActorID:    ev.Actor.ID,
			FromStatus: ev.FromStatus,
			ToStatus:   ev.ToStatus,
			Metadata:   ev.Metadata.Clone(),
			OccurredAt: ev.OccurredAt,
		}
	}
	return out
}

type SweepReportResponse struct {
	Scanned int               `json:"scanned"`
	Changed int               `json:"changed"`
	Failed  int               `json:"failed"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func ToSweepReportResponses(reports map[string]unitofwork.SweepReport) map[string]SweepReportResponse {
	out := make(map[string]SweepReportResponse, len(reports))
	for kind, r := range reports {
		item := SweepReportResponse{Scanned: r.Scanned, Changed: r.Changed, Failed: r.Failed}
		if len(r.Errors) > 0 {
			item.Errors = make(map[string]string, len(r.Errors))
			for id, err := range r.Errors {
				item.Errors[id] = err.Error()
			}
		}
		out[kind] = item
	}
	return out
}
