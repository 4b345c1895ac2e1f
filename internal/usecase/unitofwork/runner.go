package unitofwork

import (
	"context"
	"sync"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/metrics"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// Runner выполняет мутацию заявки в хранилище и публикует зафиксированные события.
// Фиксация и публикация одной заявки идут под общей блокировкой, поэтому события
// попадают в ленту в порядке Seq.
type Runner struct {
	store     repository.RequestStore
	publisher repository.EventPublisher
	locks     *requestLocks
}

func NewRunner(store repository.RequestStore, publisher repository.EventPublisher) *Runner {
	return &Runner{store: store, publisher: publisher, locks: newRequestLocks()}
}

func (r *Runner) Store() repository.RequestStore {
	return r.store
}

// Create сохраняет новую заявку вместе с событием создания.
func (r *Runner) Create(ctx context.Context, agg *entity.RequestAggregate) error {
	unlock := r.locks.lock(agg.Request.ID)
	defer unlock()

	events, err := r.store.Create(ctx, agg)
	if err != nil {
		return err
	}
	r.afterCommit(ctx, agg.Request, events)
	return nil
}

// Do выполняет fn над агрегатом заявки и возвращает зафиксированное состояние.
func (r *Runner) Do(ctx context.Context, requestID string, fn repository.MutateFunc) (*entity.RequestAggregate, []*entity.StatusEvent, error) {
	unlock := r.locks.lock(requestID)
	defer unlock()

	var committed *entity.RequestAggregate
	events, err := r.store.InRequest(ctx, requestID, func(agg *entity.RequestAggregate) error {
		if err := fn(agg); err != nil {
			return err
		}
		committed = agg
		return nil
	})
	if err != nil {
		if code := apperror.CodeOf(err); code != "" && apperror.IsConflict(err) {
			metrics.EngineConflicts.WithLabelValues(string(code)).Inc()
		}
		return nil, nil, err
	}
	r.afterCommit(ctx, committed.Request, events)
	return committed, events, nil
}

func (r *Runner) afterCommit(ctx context.Context, req *entity.ServiceRequest, events []*entity.StatusEvent) {
	for _, ev := range events {
		metrics.EngineEvents.WithLabelValues(string(ev.EventType)).Inc()
	}
	if r.publisher != nil && len(events) > 0 {
		r.publisher.Publish(ctx, req, events)
	}
}

// requestLocks мьютексы по заявкам; запись удаляется, когда её никто не держит.
type requestLocks struct {
	mu    sync.Mutex
	locks map[string]*requestLock
}

type requestLock struct {
	sync.Mutex
	refs int
}

func newRequestLocks() *requestLocks {
	return &requestLocks{locks: map[string]*requestLock{}}
}

func (l *requestLocks) lock(requestID string) func() {
	l.mu.Lock()
	rl, ok := l.locks[requestID]
	if !ok {
		rl = &requestLock{}
		l.locks[requestID] = rl
	}
	rl.refs++
	l.mu.Unlock()

	rl.Lock()
	return func() {
		rl.Unlock()
		l.mu.Lock()
		rl.refs--
		if rl.refs == 0 {
			delete(l.locks, requestID)
		}
		l.mu.Unlock()
	}
}
