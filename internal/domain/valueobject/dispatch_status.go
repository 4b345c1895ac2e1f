package valueobject

import "github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"

type DispatchMode string

const (
	DispatchModeSequential DispatchMode = "sequential"
	DispatchModeParallel   DispatchMode = "parallel"
)

func NewDispatchMode(mode string) (DispatchMode, error) {
	m := DispatchMode(mode)
	switch m {
	case DispatchModeSequential, DispatchModeParallel:
		return m, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "режим диспетчеризации должен быть sequential или parallel")
}

type DispatchRunStatus string

const (
	DispatchRunActive     DispatchRunStatus = "active"
	DispatchRunAccepted   DispatchRunStatus = "accepted"
	DispatchRunExhausted  DispatchRunStatus = "exhausted"
	DispatchRunNoCoverage DispatchRunStatus = "no_coverage"
	DispatchRunCancelled  DispatchRunStatus = "cancelled"
)

type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "pending"
	EntryStatusNotified  EntryStatus = "notified"
	EntryStatusAccepted  EntryStatus = "accepted"
	EntryStatusDeclined  EntryStatus = "declined"
	EntryStatusExpired   EntryStatus = "expired"
	EntryStatusCancelled EntryStatus = "cancelled"
)

func (s EntryStatus) IsTerminal() bool {
	switch s {
	case EntryStatusAccepted, EntryStatusDeclined, EntryStatusExpired, EntryStatusCancelled:
		return true
	}
	return false
}

// ExhaustedPolicy определяет судьбу заявки, когда очередь исчерпана без принятия.
type ExhaustedPolicy string

const (
	// ExhaustedNoCoverage переводит заявку в no_operator_available.
	ExhaustedNoCoverage ExhaustedPolicy = "no_coverage"
	// ExhaustedRetry возвращает заявку в pending для повторного запуска.
	ExhaustedRetry ExhaustedPolicy = "retry"
)

func NewExhaustedPolicy(policy string) (ExhaustedPolicy, error) {
	p := ExhaustedPolicy(policy)
	switch p {
	case ExhaustedNoCoverage, ExhaustedRetry:
		return p, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "политика исчерпания должна быть no_coverage или retry")
}

type ResponseOutcome string

const (
	ResponseAccepted ResponseOutcome = "accepted"
	ResponseDeclined ResponseOutcome = "declined"
)

func NewResponseOutcome(outcome string) (ResponseOutcome, error) {
	o := ResponseOutcome(outcome)
	switch o {
	case ResponseAccepted, ResponseDeclined:
		return o, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "ответ должен быть accepted или declined")
}

// DispatchOutcome результат запуска вызова. Отсутствие покрытия не ошибка, а отдельный исход.
type DispatchOutcome string

const (
	OutcomeDispatched DispatchOutcome = "dispatched"
	OutcomeNoCoverage DispatchOutcome = "no_coverage"
)
