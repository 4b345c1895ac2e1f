package roster

import (
	"context"
	"sort"
	"sync"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/repository"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

// MemoryRoster реестр исполнителей в памяти. Используется в тестах и без БД.
type MemoryRoster struct {
	mu        sync.RWMutex
	operators map[string]*entity.Operator
}

func NewMemoryRoster(operators ...*entity.Operator) *MemoryRoster {
	r := &MemoryRoster{operators: make(map[string]*entity.Operator, len(operators))}
	for _, op := range operators {
		r.operators[op.ID] = op
	}
	return r
}

var _ repository.OperatorRoster = (*MemoryRoster)(nil)

// Upsert добавляет или заменяет исполнителя.
func (r *MemoryRoster) Upsert(op *entity.Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[op.ID] = op
}

func (r *MemoryRoster) Snapshot(ctx context.Context) ([]*entity.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*entity.Operator, 0, len(r.operators))
	for _, op := range r.operators {
		cp := *op
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRoster) Get(ctx context.Context, operatorID string) (*entity.Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.operators[operatorID]
	if !ok {
		return nil, apperror.ErrOperatorUnknown
	}
	cp := *op
	return &cp, nil
}
