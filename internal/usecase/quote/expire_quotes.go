package quote

import (
	"context"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
)

type ExpireQuotesUseCase struct {
	runner *unitofwork.Runner
	pool   *workerpool.WorkerPool
}

func NewExpireQuotesUseCase(runner *unitofwork.Runner, pool *workerpool.WorkerPool) *ExpireQuotesUseCase {
	return &ExpireQuotesUseCase{runner: runner, pool: pool}
}

// Execute переводит просроченные предложения в expired и закрывает истёкшие окна. Идемпотентен.
func (uc *ExpireQuotesUseCase) Execute(ctx context.Context, now time.Time) (unitofwork.SweepReport, error) {
	ids, err := uc.runner.Store().DueForQuoteSweep(ctx, now)
	if err != nil {
		return unitofwork.SweepReport{}, err
	}
	system := valueobject.System("quote-expiry")
	return uc.runner.Sweep(ctx, uc.pool, ids, func(agg *entity.RequestAggregate) (int, error) {
		return agg.ExpireDue(system, now), nil
	}), nil
}
