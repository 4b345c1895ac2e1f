package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/gammazero/workerpool"

	"github.com/ignatzorin/dispatch-engine/internal/logger"
)

// Logger интерфейс для логирования ошибок
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler обрабатывает panic в горутинах
type RecoveryHandler struct {
	logger Logger
}

// NewRecoveryHandler создает новый обработчик
func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SafeGo запускает горутину с обработкой panic
func (rh *RecoveryHandler) SafeGo(fn func()) {
	go func() {
		defer rh.recover("goroutine")
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic
func (rh *RecoveryHandler) SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer rh.recover("goroutine (with context)")
		fn(ctx)
	}()
}

func (rh *RecoveryHandler) recover(where string) {
	if r := recover(); r != nil {
		rh.logger.Errorf("Panic in %s: %v\nStack trace:\n%s", where, r, debug.Stack())
	}
}

// logrusLogger пишет в текущий logger.Log, даже если его переинициализировали после старта.
type logrusLogger struct{}

func (logrusLogger) Errorf(format string, args ...interface{}) {
	logger.Log.WithField("component", "goroutine").Errorf(format, args...)
}

// DefaultRecoveryHandler - глобальный обработчик, пишет в logrus
var DefaultRecoveryHandler = NewRecoveryHandler(logrusLogger{})

// SafeGo - упрощенная функция для запуска безопасной горутины
func SafeGo(fn func()) {
	DefaultRecoveryHandler.SafeGo(fn)
}

// SafeGoWithContext - упрощенная функция для запуска безопасной горутины с контекстом
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	DefaultRecoveryHandler.SafeGoWithContext(ctx, fn)
}

// FanOut выполняет fn для каждого id в пуле и ждёт завершения всех задач.
// Возвращает ошибки по id; паника в задаче превращается в ошибку и не останавливает остальные.
func FanOut(pool *workerpool.WorkerPool, ids []string, fn func(id string) error) map[string]error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = map[string]error{}
	)
	for _, id := range ids {
		id := id
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			err := runRecovered(id, fn)
			if err != nil {
				mu.Lock()
				errs[id] = err
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errs
}

func runRecovered(id string, fn func(id string) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			DefaultRecoveryHandler.logger.Errorf("Panic in pool task %s: %v\nStack trace:\n%s", id, r, debug.Stack())
		}
	}()
	return fn(id)
}
