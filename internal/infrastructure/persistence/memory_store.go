package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// MemoryStore хранилище в памяти, используется когда DATABASE_URL не задан.
// Каждая заявка блокируется своим мьютексом, fn работает над копией агрегата.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*entity.RequestAggregate // requestID -> зафиксированное состояние
	events   map[string][]*entity.StatusEvent    // requestID -> журнал
	byQuote  map[string]string                   // quoteID -> requestID
	byEntry  map[string]string                   // entryID -> requestID
	order    []string                            // порядок создания

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: map[string]*entity.RequestAggregate{},
		events:   map[string][]*entity.StatusEvent{},
		byQuote:  map[string]string{},
		byEntry:  map[string]string{},
		locks:    map[string]*sync.Mutex{},
	}
}

var _ repository.RequestStore = (*MemoryStore)(nil)

func (m *MemoryStore) lockFor(requestID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	l, ok := m.locks[requestID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[requestID] = l
	}
	return l
}

func (m *MemoryStore) Create(ctx context.Context, agg *entity.RequestAggregate) ([]*entity.StatusEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := agg.Request.ID
	if _, exists := m.requests[id]; exists {
		return nil, apperror.New(apperror.ErrCodeConflict, "заявка с таким идентификатором уже существует")
	}
	m.order = append(m.order, id)
	return m.commitLocked(agg), nil
}

func (m *MemoryStore) InRequest(ctx context.Context, requestID string, fn repository.MutateFunc) ([]*entity.StatusEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := m.lockFor(requestID)
	l.Lock()
	defer l.Unlock()

	m.mu.RLock()
	current, ok := m.requests[requestID]
	m.mu.RUnlock()
	if !ok {
		return nil, apperror.ErrRequestNotFound
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitLocked(working), nil
}

// commitLocked сохраняет копию агрегата, индексы и журнал. Вызывается под m.mu.
func (m *MemoryStore) commitLocked(agg *entity.RequestAggregate) []*entity.StatusEvent {
	events := agg.PendingEvents()
	agg.ClearPending()

	id := agg.Request.ID
	m.requests[id] = agg.Clone()
	m.events[id] = append(m.events[id], events...)
	for _, q := range agg.Quotes {
		m.byQuote[q.ID] = id
	}
	for _, r := range agg.Runs {
		for _, e := range r.Entries {
			m.byEntry[e.ID] = id
		}
	}
	return events
}

func (m *MemoryStore) Get(ctx context.Context, requestID string) (*entity.RequestAggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	agg, ok := m.requests[requestID]
	if !ok {
		return nil, apperror.ErrRequestNotFound
	}
	return agg.Clone(), nil
}

func (m *MemoryStore) List(ctx context.Context, filter repository.RequestFilter) ([]*entity.ServiceRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*entity.ServiceRequest
	for i := len(m.order) - 1; i >= 0; i-- {
		agg := m.requests[m.order[i]]
		if !matchesFilter(agg, filter) {
			continue
		}
		out = append(out, agg.Request.Clone())
	}
	return paginate(out, filter.Limit, filter.Offset), nil
}

func matchesFilter(agg *entity.RequestAggregate, f repository.RequestFilter) bool {
	req := agg.Request
	if f.CustomerID != "" && req.CustomerID != f.CustomerID {
		return false
	}
	if f.Status != "" && string(req.Status) != f.Status {
		return false
	}
	if f.OperatorID != "" && !req.IsAssignedTo(f.OperatorID) {
		involved := false
		for _, q := range agg.Quotes {
			if q.OperatorID == f.OperatorID {
				involved = true
				break
			}
		}
		if !involved {
			return false
		}
	}
	return true
}

func paginate(items []*entity.ServiceRequest, limit, offset int) []*entity.ServiceRequest {
	if offset >= len(items) {
		return []*entity.ServiceRequest{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (m *MemoryStore) RequestIDByQuote(ctx context.Context, quoteID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byQuote[quoteID]
	if !ok {
		return "", apperror.ErrQuoteNotFound
	}
	return id, nil
}

func (m *MemoryStore) RequestIDByEntry(ctx context.Context, entryID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEntry[entryID]
	if !ok {
		return "", apperror.ErrEntryNotFound
	}
	return id, nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, requestID string) ([]*entity.StatusEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.requests[requestID]; !ok {
		return nil, apperror.ErrRequestNotFound
	}
	return append([]*entity.StatusEvent(nil), m.events[requestID]...), nil
}

func (m *MemoryStore) DueForQuoteSweep(ctx context.Context, now time.Time) ([]string, error) {
	return m.due(func(agg *entity.RequestAggregate) bool { return agg.HasDueQuotes(now) }), nil
}

func (m *MemoryStore) DueForDispatchSweep(ctx context.Context, now time.Time) ([]string, error) {
	return m.due(func(agg *entity.RequestAggregate) bool { return agg.HasDueEntries(now) }), nil
}

func (m *MemoryStore) due(match func(*entity.RequestAggregate) bool) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, agg := range m.requests {
		if match(agg) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
