package worker

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/dispatch-engine/internal/goroutine"
	"github.com/ignatzorin/dispatch-engine/internal/logger"
	"github.com/ignatzorin/dispatch-engine/internal/metrics"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/clock"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/unitofwork"
)

// SweepJob один вид свипа: истечение предложений или позиций очереди.
type SweepJob interface {
	Execute(ctx context.Context, now time.Time) (unitofwork.SweepReport, error)
}

type namedJob struct {
	kind string
	job  SweepJob
}

// Sweeper периодически применяет переходы по таймерам. Тот же проход можно вызвать вручную через RunOnce.
type Sweeper struct {
	mu       sync.Mutex
	interval time.Duration
	clock    clock.Clock
	jobs     []namedJob
	done     chan struct{}
}

func NewSweeper(interval time.Duration, clk clock.Clock) *Sweeper {
	return &Sweeper{interval: interval, clock: clk}
}

func (s *Sweeper) Add(kind string, job SweepJob) *Sweeper {
	s.jobs = append(s.jobs, namedJob{kind: kind, job: job})
	return s
}

// Start запускает цикл в фоне и возвращается сразу. Цикл завершается вместе с ctx.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		logger.Log.Warn("Sweeper disabled: interval is not positive")
		return
	}
	s.done = make(chan struct{})
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		logger.Log.WithField("interval", s.interval.String()).Info("Sweeper started")
		defer close(s.done)
		defer logger.Log.Info("Sweeper stopped")

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	})
}

// Wait ждёт завершения цикла, запущенного Start. Без Start возвращается сразу.
func (s *Sweeper) Wait() {
	if s.done != nil {
		<-s.done
	}
}

// RunOnce один проход всех свипов с текущим временем часов. Проходы не перекрываются.
func (s *Sweeper) RunOnce(ctx context.Context) map[string]unitofwork.SweepReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	reports := make(map[string]unitofwork.SweepReport, len(s.jobs))
	for _, j := range s.jobs {
		started := time.Now()
		report, err := j.job.Execute(ctx, now)
		metrics.SweepDuration.WithLabelValues(j.kind).Observe(time.Since(started).Seconds())

		log := logger.Log.WithFields(logrus.Fields{"kind": j.kind, "now": now.Format(time.RFC3339)})
		switch {
		case err != nil:
			metrics.SweepRuns.WithLabelValues(j.kind, "error").Inc()
			log.WithError(err).Error("Sweep failed")
			continue
		case report.Failed > 0:
			metrics.SweepRuns.WithLabelValues(j.kind, "partial").Inc()
			for id, e := range report.Errors {
				log.WithField("request_id", id).WithError(e).Warn("Sweep failed for request")
			}
		default:
			metrics.SweepRuns.WithLabelValues(j.kind, "ok").Inc()
		}
		if report.Changed > 0 {
			log.WithFields(logrus.Fields{"scanned": report.Scanned, "changed": report.Changed}).Info("Sweep applied transitions")
		}
		reports[j.kind] = report
	}
	return reports
}
