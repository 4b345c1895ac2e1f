package dto

import (
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
)

type SubmitQuoteRequest struct {
	// Amount пустой или AutoPrice: сумма считается по тарифной таблице.
	Amount    string         `json:"amount"`
	AutoPrice bool           `json:"auto_price"`
	Breakdown map[string]any `json:"breakdown"`
	Notes     string         `json:"notes"`
}

type CounterQuoteRequest struct {
	Amount string `json:"amount" binding:"required"`
	Notes  string `json:"notes"`
}

// CounterResponseRequest пустая сумма означает согласие с ценой заказчика.
type CounterResponseRequest struct {
	Amount string `json:"amount"`
	Notes  string `json:"notes"`
}

type DeclineQuoteRequest struct {
	Reason string `json:"reason" binding:"required"`
	Notes  string `json:"notes"`
}

type QuoteHistoryDTO struct {
	Action    string    `json:"action"`
	ActorRole string    `json:"actor_role"`
	ActorID   string    `json:"actor_id"`
	Status    string    `json:"status"`
	Amount    *string   `json:"amount,omitempty"`
	Reason    *string   `json:"reason,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	At        time.Time `json:"at"`
}

type QuoteResponse struct {
	ID               string            `json:"id"`
	RequestID        string            `json:"request_id"`
	OperatorID       string            `json:"operator_id"`
	Tier             string            `json:"tier"`
	Amount           string            `json:"amount"`
	Breakdown        map[string]any    `json:"breakdown,omitempty"`
	Notes            string            `json:"notes,omitempty"`
	Status           string            `json:"status"`
	OperatorAccepted bool              `json:"operator_accepted"`
	CounterAmount    *string           `json:"counter_amount,omitempty"`
	CounterNotes     string            `json:"counter_notes,omitempty"`
	DeclineReason    *string           `json:"decline_reason,omitempty"`
	DeclineNotes     string            `json:"decline_notes,omitempty"`
	ExpiresAt        time.Time         `json:"expires_at"`
	SubmittedAt      time.Time         `json:"submitted_at"`
	RespondedAt      *time.Time        `json:"responded_at,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at"`
	History          []QuoteHistoryDTO `json:"history"`
}

func ToQuoteResponse(q *entity.Quote) QuoteResponse {
	out := QuoteResponse{
		ID:               q.ID,
		RequestID:        q.RequestID,
		OperatorID:       q.OperatorID,
		Tier:             string(q.Tier),
		Amount:           q.Amount.StringFixed(2),
		Breakdown:        q.Breakdown.Clone(),
		Notes:            q.Notes,
		Status:           string(q.Status),
		OperatorAccepted: q.OperatorAccepted,
		CounterNotes:     q.CounterNotes,
		DeclineNotes:     q.DeclineNotes,
		ExpiresAt:        q.ExpiresAt,
		SubmittedAt:      q.SubmittedAt,
		RespondedAt:      q.RespondedAt,
		UpdatedAt:        q.UpdatedAt,
		History:          make([]QuoteHistoryDTO, len(q.History)),
	}
	if q.CounterAmount != nil {
		s := q.CounterAmount.StringFixed(2)
		out.CounterAmount = &s
	}
	if q.DeclineReason != nil {
		s := string(*q.DeclineReason)
		out.DeclineReason = &s
	}

	for i, h := range q.History {
		item := QuoteHistoryDTO{
			Action:    string(h.Action),
			ActorRole: string(h.Actor.Role),
			ActorID:   h.Actor.ID,
			Status:    string(h.Status),
			Notes:     h.Notes,
			At:        h.At,
		}
		if h.Amount != nil {
			s := h.Amount.StringFixed(2)
			item.Amount = &s
		}
		if h.Reason != nil {
			s := string(*h.Reason)
			item.Reason = &s
		}
		out.History[i] = item
	}
	return out
}

func ToQuoteResponses(quotes []*entity.Quote) []QuoteResponse {
	out := make([]QuoteResponse, len(quotes))
	for i, q := range quotes {
		out[i] = ToQuoteResponse(q)
	}
	return out
}
