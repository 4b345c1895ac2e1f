package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
)

// DispatchRun одна попытка вызова исполнителя по срочной заявке.
type DispatchRun struct {
	ID        string
	RequestID string
	Mode      valueobject.DispatchMode
	Status    valueobject.DispatchRunStatus
	EntryTTL  time.Duration
	Entries   []*DispatchEntry
	StartedAt time.Time
	EndedAt   *time.Time
}

type DispatchEntry struct {
	ID            string
	RunID         string
	OperatorID    string
	QueuePosition int
	Status        valueobject.EntryStatus

	DistanceKm          float64
	RatingSnapshot      float64
	AvgResponseSnapshot float64

	NotifiedAt  *time.Time
	RespondedAt *time.Time
	ExpiresAt   *time.Time
}

// QueueSlot исполнитель на своём месте в очереди с зафиксированными показателями.
type QueueSlot struct {
	OperatorID         string
	DistanceKm         float64
	Rating             float64
	AvgResponseSeconds float64
}

// NewDispatchRun создаёт прогон со всеми позициями сразу; slots уже отсортированы.
func NewDispatchRun(requestID string, mode valueobject.DispatchMode, ttl time.Duration, slots []QueueSlot, now time.Time) *DispatchRun {
	run := &DispatchRun{
		ID:        uuid.NewString(),
		RequestID: requestID,
		Mode:      mode,
		Status:    valueobject.DispatchRunActive,
		EntryTTL:  ttl,
		StartedAt: now,
		Entries:   make([]*DispatchEntry, 0, len(slots)),
	}
	for i, s := range slots {
		run.Entries = append(run.Entries, &DispatchEntry{
			ID:                  uuid.NewString(),
			RunID:               run.ID,
			OperatorID:          s.OperatorID,
			QueuePosition:       i + 1,
			Status:              valueobject.EntryStatusPending,
			DistanceKm:          s.DistanceKm,
			RatingSnapshot:      s.Rating,
			AvgResponseSnapshot: s.AvgResponseSeconds,
		})
	}
	return run
}

func (r *DispatchRun) IsActive() bool {
	return r.Status == valueobject.DispatchRunActive
}

func (r *DispatchRun) Entry(id string) *DispatchEntry {
	for _, e := range r.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// nextPending следующая по рангу позиция, которую ещё не уведомляли.
func (r *DispatchRun) nextPending() *DispatchEntry {
	var next *DispatchEntry
	for _, e := range r.Entries {
		if e.Status != valueobject.EntryStatusPending {
			continue
		}
		if next == nil || e.QueuePosition < next.QueuePosition {
			next = e
		}
	}
	return next
}

func (r *DispatchRun) hasNotified() bool {
	for _, e := range r.Entries {
		if e.Status == valueobject.EntryStatusNotified {
			return true
		}
	}
	return false
}

func (r *DispatchRun) allTerminal() bool {
	for _, e := range r.Entries {
		if !e.Status.IsTerminal() {
			return false
		}
	}
	return true
}

func (r *DispatchRun) finish(status valueobject.DispatchRunStatus, now time.Time) {
	r.Status = status
	r.EndedAt = ptr(now)
}

func (r *DispatchRun) Clone() *DispatchRun {
	c := *r
	c.EndedAt = cloneTime(r.EndedAt)
	c.Entries = make([]*DispatchEntry, len(r.Entries))
	for i, e := range r.Entries {
		c.Entries[i] = e.Clone()
	}
	return &c
}

// IsLive позиция уведомлена и её срок ещё не истёк.
func (e *DispatchEntry) IsLive(now time.Time) bool {
	return e.Status == valueobject.EntryStatusNotified && e.ExpiresAt != nil && now.Before(*e.ExpiresAt)
}

func (e *DispatchEntry) IsDue(now time.Time) bool {
	return e.Status == valueobject.EntryStatusNotified && e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

func (e *DispatchEntry) notify(ttl time.Duration, now time.Time) {
	e.Status = valueobject.EntryStatusNotified
	e.NotifiedAt = ptr(now)
	e.ExpiresAt = ptr(now.Add(ttl))
}

func (e *DispatchEntry) Clone() *DispatchEntry {
	c := *e
	c.NotifiedAt = cloneTime(e.NotifiedAt)
	c.RespondedAt = cloneTime(e.RespondedAt)
	c.ExpiresAt = cloneTime(e.ExpiresAt)
	return &c
}
