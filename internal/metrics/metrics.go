package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry отдельный реестр Prometheus для сервиса.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// EngineEvents зафиксированные события журнала по типу.
	EngineEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engine_events_total", Help: "Committed audit events by type."},
		[]string{"event_type"},
	)
	// EngineConflicts отклонённые из-за гонки или порядка переходов операции.
	EngineConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engine_conflicts_total", Help: "Rejected operations by error code."},
		[]string{"code"},
	)

	SweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "engine_sweep_runs_total", Help: "Sweep passes by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	SweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "engine_sweep_duration_seconds", Help: "Sweep pass duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"kind"},
	)
)

var regOnce sync.Once

// RegisterDefault регистрирует коллекторы один раз.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(EngineEvents)
		Registry.MustRegister(EngineConflicts)
		Registry.MustRegister(SweepRuns)
		Registry.MustRegister(SweepDuration)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
