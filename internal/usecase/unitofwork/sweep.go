package unitofwork

import (
	"context"
	"sync"

	"github.com/gammazero/workerpool"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/goroutine"
)

// SweepReport итог прохода свипа. Ошибки по отдельным заявкам не прерывают остальные.
type SweepReport struct {
	Scanned int
	Changed int
	Failed  int
	Errors  map[string]error
}

// SweepFunc применяет переходы по таймерам к одной заявке и возвращает их число.
type SweepFunc func(agg *entity.RequestAggregate) (int, error)

// Sweep выполняет fn для каждой заявки в отдельной операции. pool == nil означает последовательный проход.
func (r *Runner) Sweep(ctx context.Context, pool *workerpool.WorkerPool, requestIDs []string, fn SweepFunc) SweepReport {
	report := SweepReport{Scanned: len(requestIDs), Errors: map[string]error{}}
	var mu sync.Mutex

	one := func(id string) error {
		changed := 0
		_, _, err := r.Do(ctx, id, func(agg *entity.RequestAggregate) error {
			n, err := fn(agg)
			changed = n
			return err
		})
		if err != nil {
			return err
		}
		mu.Lock()
		report.Changed += changed
		mu.Unlock()
		return nil
	}

	if pool == nil {
		for _, id := range requestIDs {
			if err := one(id); err != nil {
				report.Errors[id] = err
			}
		}
	} else {
		report.Errors = goroutine.FanOut(pool, requestIDs, one)
	}
	report.Failed = len(report.Errors)
	return report
}
