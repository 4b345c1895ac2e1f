package dto

import (
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/dispatch"
)

type StartDispatchRequest struct {
	// Mode sequential или parallel; пустое значение берёт режим из конфигурации.
	Mode string `json:"mode"`
}

type EntryResponseRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

type EntryResponse struct {
	ID                  string     `json:"id"`
	OperatorID          string     `json:"operator_id"`
	QueuePosition       int        `json:"queue_position"`
	Status              string     `json:"status"`
	DistanceKm          float64    `json:"distance_km"`
	RatingSnapshot      float64    `json:"rating_snapshot"`
	AvgResponseSnapshot float64    `json:"avg_response_snapshot"`
	NotifiedAt          *time.Time `json:"notified_at,omitempty"`
	RespondedAt         *time.Time `json:"responded_at,omitempty"`
	ExpiresAt           *time.Time `json:"expires_at,omitempty"`
}

type RunResponse struct {
	ID              string          `json:"id"`
	RequestID       string          `json:"request_id"`
	Mode            string          `json:"mode"`
	Status          string          `json:"status"`
	EntryTTLSeconds float64         `json:"entry_ttl_seconds"`
	StartedAt       time.Time       `json:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	Entries         []EntryResponse `json:"entries"`
}

type StartDispatchResponse struct {
	Outcome string          `json:"outcome"`
	Request RequestResponse `json:"request"`
	Run     *RunResponse    `json:"run,omitempty"`
}

func ToRunResponse(run *entity.DispatchRun) RunResponse {
	out := RunResponse{
		ID:              run.ID,
		RequestID:       run.RequestID,
		Mode:            string(run.Mode),
		Status:          string(run.Status),
		EntryTTLSeconds: run.EntryTTL.Seconds(),
		StartedAt:       run.StartedAt,
		EndedAt:         run.EndedAt,
		Entries:         make([]EntryResponse, len(run.Entries)),
	}
	for i, e := range run.Entries {
		out.Entries[i] = EntryResponse{
			ID:                  e.ID,
			OperatorID:          e.OperatorID,
			QueuePosition:       e.QueuePosition,
			Status:              string(e.Status),
			DistanceKm:          e.DistanceKm,
			RatingSnapshot:      e.RatingSnapshot,
			AvgResponseSnapshot: e.AvgResponseSnapshot,
			NotifiedAt:          e.NotifiedAt,
			RespondedAt:         e.RespondedAt,
			ExpiresAt:           e.ExpiresAt,
		}
	}
	return out
}

func ToStartDispatchResponse(res *dispatch.StartRunResult) StartDispatchResponse {
	out := StartDispatchResponse{
		Outcome: string(res.Outcome),
		Request: ToRequestResponse(res.Request),
	}
	if res.Run != nil {
		r := ToRunResponse(res.Run)
		out.Run = &r
	}
	return out
}
