package persistence

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

// jsonb колонка с произвольным JSON-значением.
type jsonb[T any] struct {
	V T
}

func (j jsonb[T]) Value() (driver.Value, error) {
	raw, err := json.Marshal(j.V)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (j *jsonb[T]) Scan(src any) error {
	switch b := src.(type) {
	case nil:
		var zero T
		j.V = zero
		return nil
	case []byte:
		return json.Unmarshal(b, &j.V)
	case string:
		return json.Unmarshal([]byte(b), &j.V)
	default:
		return fmt.Errorf("persistence: jsonb не поддерживает тип %T", src)
	}
}

type requestRow struct {
	ID                   string              `db:"id"`
	CustomerID           string              `db:"customer_id"`
	ServiceTypes         pq.StringArray      `db:"service_types"`
	Emergency            bool                `db:"emergency"`
	Description          string              `db:"description"`
	Lat                  float64             `db:"lat"`
	Lon                  float64             `db:"lon"`
	Address              string              `db:"address"`
	Region               string              `db:"region"`
	PreferredTime        *time.Time          `db:"preferred_time"`
	BudgetHint           decimal.NullDecimal `db:"budget_hint"`
	Status               string              `db:"status"`
	QuoteStatus          string              `db:"quote_status"`
	QuoteWindowExpiresAt time.Time           `db:"quote_window_expires_at"`
	SelectedQuoteID      *string             `db:"selected_quote_id"`
	AssignedOperatorID   *string             `db:"assigned_operator_id"`
	PendingOperatorID    *string             `db:"pending_operator_id"`
	ActiveJobID          *string             `db:"active_job_id"`
	EventSeq             int64               `db:"event_seq"`
	CreatedAt            time.Time           `db:"created_at"`
	UpdatedAt            time.Time           `db:"updated_at"`
}

const requestColumns = `id, customer_id, service_types, emergency, description, lat, lon, address, region,
	preferred_time, budget_hint, status, quote_status, quote_window_expires_at, selected_quote_id,
	assigned_operator_id, pending_operator_id, active_job_id, event_seq, created_at, updated_at`

func newRequestRow(r *entity.ServiceRequest) requestRow {
	types := make(pq.StringArray, len(r.ServiceTypes))
	for i, t := range r.ServiceTypes {
		types[i] = string(t)
	}
	row := requestRow{
		ID:                   r.ID,
		CustomerID:           r.CustomerID,
		ServiceTypes:         types,
		Emergency:            r.Emergency,
		Description:          r.Description,
		Lat:                  r.Location.Point.Lat,
		Lon:                  r.Location.Point.Lon,
		Address:              r.Location.Address,
		Region:               r.Location.Region,
		PreferredTime:        r.PreferredTime,
		Status:               string(r.Status),
		QuoteStatus:          string(r.QuoteStatus),
		QuoteWindowExpiresAt: r.QuoteWindowExpiresAt,
		SelectedQuoteID:      r.SelectedQuoteID,
		AssignedOperatorID:   r.AssignedOperatorID,
		PendingOperatorID:    r.PendingOperatorID,
		ActiveJobID:          r.ActiveJobID,
		EventSeq:             r.EventSeq,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.BudgetHint != nil {
		row.BudgetHint = decimal.NullDecimal{Decimal: *r.BudgetHint, Valid: true}
	}
	return row
}

func (r *requestRow) toEntity() *entity.ServiceRequest {
	types := make([]valueobject.ServiceType, len(r.ServiceTypes))
	for i, t := range r.ServiceTypes {
		types[i] = valueobject.ServiceType(t)
	}
	req := &entity.ServiceRequest{
		ID:           r.ID,
		CustomerID:   r.CustomerID,
		ServiceTypes: types,
		Emergency:    r.Emergency,
		Description:  r.Description,
		Location: valueobject.Location{
			Point:   valueobject.GeoPoint{Lat: r.Lat, Lon: r.Lon},
			Address: r.Address,
			Region:  r.Region,
		},
		PreferredTime:        r.PreferredTime,
		Status:               valueobject.RequestStatus(r.Status),
		QuoteStatus:          valueobject.QuoteWindowStatus(r.QuoteStatus),
		QuoteWindowExpiresAt: r.QuoteWindowExpiresAt,
		SelectedQuoteID:      r.SelectedQuoteID,
		AssignedOperatorID:   r.AssignedOperatorID,
		PendingOperatorID:    r.PendingOperatorID,
		ActiveJobID:          r.ActiveJobID,
		EventSeq:             r.EventSeq,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
	if r.BudgetHint.Valid {
		b := r.BudgetHint.Decimal
		req.BudgetHint = &b
	}
	return req
}

type quoteRow struct {
	ID               string                            `db:"id"`
	RequestID        string                            `db:"request_id"`
	OperatorID       string                            `db:"operator_id"`
	Tier             string                            `db:"tier"`
	Amount           decimal.Decimal                   `db:"amount"`
	Breakdown        jsonb[valueobject.Payload]        `db:"breakdown"`
	Notes            string                            `db:"notes"`
	Status           string                            `db:"status"`
	OperatorAccepted bool                              `db:"operator_accepted"`
	CounterAmount    decimal.NullDecimal               `db:"counter_amount"`
	CounterNotes     string                            `db:"counter_notes"`
	DeclineReason    sql.NullString                    `db:"decline_reason"`
	DeclineNotes     string                            `db:"decline_notes"`
	ExpiresAt        time.Time                         `db:"expires_at"`
	SubmittedAt      time.Time                         `db:"submitted_at"`
	RespondedAt      *time.Time                        `db:"responded_at"`
	UpdatedAt        time.Time                         `db:"updated_at"`
	History          jsonb[[]entity.QuoteHistoryEntry] `db:"history"`
}

const quoteColumns = `id, request_id, operator_id, tier, amount, breakdown, notes, status, operator_accepted,
	counter_amount, counter_notes, decline_reason, decline_notes, expires_at, submitted_at, responded_at,
	updated_at, history`

func newQuoteRow(q *entity.Quote) quoteRow {
	row := quoteRow{
		ID:               q.ID,
		RequestID:        q.RequestID,
		OperatorID:       q.OperatorID,
		Tier:             string(q.Tier),
		Amount:           q.Amount,
		Breakdown:        jsonb[valueobject.Payload]{V: q.Breakdown},
		Notes:            q.Notes,
		Status:           string(q.Status),
		OperatorAccepted: q.OperatorAccepted,
		CounterNotes:     q.CounterNotes,
		DeclineNotes:     q.DeclineNotes,
		ExpiresAt:        q.ExpiresAt,
		SubmittedAt:      q.SubmittedAt,
		RespondedAt:      q.RespondedAt,
		UpdatedAt:        q.UpdatedAt,
		History:          jsonb[[]entity.QuoteHistoryEntry]{V: q.History},
	}
	if q.CounterAmount != nil {
		row.CounterAmount = decimal.NullDecimal{Decimal: *q.CounterAmount, Valid: true}
	}
	if q.DeclineReason != nil {
		row.DeclineReason = sql.NullString{String: string(*q.DeclineReason), Valid: true}
	}
	return row
}

func (r *quoteRow) toEntity() *entity.Quote {
	q := &entity.Quote{
		ID:               r.ID,
		RequestID:        r.RequestID,
		OperatorID:       r.OperatorID,
		Tier:             valueobject.Tier(r.Tier),
		Amount:           r.Amount,
		Breakdown:        r.Breakdown.V,
		Notes:            r.Notes,
		Status:           valueobject.QuoteStatus(r.Status),
		OperatorAccepted: r.OperatorAccepted,
		CounterNotes:     r.CounterNotes,
		DeclineNotes:     r.DeclineNotes,
		ExpiresAt:        r.ExpiresAt,
		SubmittedAt:      r.SubmittedAt,
		RespondedAt:      r.RespondedAt,
		UpdatedAt:        r.UpdatedAt,
		History:          r.History.V,
	}
	if r.CounterAmount.Valid {
		c := r.CounterAmount.Decimal
		q.CounterAmount = &c
	}
	if r.DeclineReason.Valid {
		d := valueobject.DeclineReason(r.DeclineReason.String)
		q.DeclineReason = &d
	}
	return q
}

type runRow struct {
	ID         string     `db:"id"`
	RequestID  string     `db:"request_id"`
	Mode       string     `db:"mode"`
	Status     string     `db:"status"`
	EntryTTLMs int64      `db:"entry_ttl_ms"`
	StartedAt  time.Time  `db:"started_at"`
	EndedAt    *time.Time `db:"ended_at"`
}

const runColumns = `id, request_id, mode, status, entry_ttl_ms, started_at, ended_at`

func newRunRow(r *entity.DispatchRun) runRow {
	return runRow{
		ID:         r.ID,
		RequestID:  r.RequestID,
		Mode:       string(r.Mode),
		Status:     string(r.Status),
		EntryTTLMs: r.EntryTTL.Milliseconds(),
		StartedAt:  r.StartedAt,
		EndedAt:    r.EndedAt,
	}
}

func (r *runRow) toEntity() *entity.DispatchRun {
	return &entity.DispatchRun{
		ID:        r.ID,
		RequestID: r.RequestID,
		Mode:      valueobject.DispatchMode(r.Mode),
		Status:    valueobject.DispatchRunStatus(r.Status),
		EntryTTL:  time.Duration(r.EntryTTLMs) * time.Millisecond,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
	}
}

type entryRow struct {
	ID                  string     `db:"id"`
	RunID               string     `db:"run_id"`
	RequestID           string     `db:"request_id"`
	OperatorID          string     `db:"operator_id"`
	QueuePosition       int        `db:"queue_position"`
	Status              string     `db:"status"`
	DistanceKm          float64    `db:"distance_km"`
	RatingSnapshot      float64    `db:"rating_snapshot"`
	AvgResponseSnapshot float64    `db:"avg_response_snapshot"`
	NotifiedAt          *time.Time `db:"notified_at"`
	RespondedAt         *time.Time `db:"responded_at"`
	ExpiresAt           *time.Time `db:"expires_at"`
}

const entryColumns = `id, run_id, request_id, operator_id, queue_position, status, distance_km,
	rating_snapshot, avg_response_snapshot, notified_at, responded_at, expires_at`

func newEntryRow(requestID string, e *entity.DispatchEntry) entryRow {
	return entryRow{
		ID:                  e.ID,
		RunID:               e.RunID,
		RequestID:           requestID,
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

func (r *entryRow) toEntity() *entity.DispatchEntry {
	return &entity.DispatchEntry{
		ID:                  r.ID,
		RunID:               r.RunID,
		OperatorID:          r.OperatorID,
		QueuePosition:       r.QueuePosition,
		Status:              valueobject.EntryStatus(r.Status),
		DistanceKm:          r.DistanceKm,
		RatingSnapshot:      r.RatingSnapshot,
		AvgResponseSnapshot: r.AvgResponseSnapshot,
		NotifiedAt:          r.NotifiedAt,
		RespondedAt:         r.RespondedAt,
		ExpiresAt:           r.ExpiresAt,
	}
}

type eventRow struct {
	ID         string                     `db:"id"`
	RequestID  string                     `db:"request_id"`
	Seq        int64                      `db:"seq"`
	ActorRole  string                     `db:"actor_role"`
	ActorID    string                     `db:"actor_id"`
	ActorName  string                     `db:"actor_name"`
	FromStatus string                     `db:"from_status"`
	ToStatus   string                     `db:"to_status"`
	EventType  string                     `db:"event_type"`
	Metadata   jsonb[valueobject.Payload] `db:"metadata"`
	OccurredAt time.Time                  `db:"occurred_at"`
}

const eventColumns = `id, request_id, seq, actor_role, actor_id, actor_name, from_status, to_status,
	event_type, metadata, occurred_at`

func newEventRow(e *entity.StatusEvent) eventRow {
	return eventRow{
		ID:         e.ID,
		RequestID:  e.RequestID,
		Seq:        e.Seq,
		ActorRole:  string(e.Actor.Role),
		ActorID:    e.Actor.ID,
		ActorName:  e.Actor.Name,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		EventType:  string(e.EventType),
		Metadata:   jsonb[valueobject.Payload]{V: e.Metadata},
		OccurredAt: e.OccurredAt,
	}
}

func (r *eventRow) toEntity() *entity.StatusEvent {
	return &entity.StatusEvent{
		ID:        r.ID,
		RequestID: r.RequestID,
		Seq:       r.Seq,
		Actor: valueobject.Actor{
			Role: valueobject.ActorRole(r.ActorRole),
			ID:   r.ActorID,
			Name: r.ActorName,
		},
		FromStatus: r.FromStatus,
		ToStatus:   r.ToStatus,
		EventType:  entity.EventType(r.EventType),
		Metadata:   r.Metadata.V,
		OccurredAt: r.OccurredAt,
	}
}
