package valueobject

import "github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"

type RequestStatus string

const (
	RequestStatusPending             RequestStatus = "pending"
	RequestStatusOperatorPending     RequestStatus = "operator_pending"
	RequestStatusOperatorAccepted    RequestStatus = "operator_accepted"
	RequestStatusOperatorDeclined    RequestStatus = "operator_declined"
	RequestStatusAssigned            RequestStatus = "assigned"
	RequestStatusInProgress          RequestStatus = "in_progress"
	RequestStatusCompleted           RequestStatus = "completed"
	RequestStatusCancelled           RequestStatus = "cancelled"
	RequestStatusDisputed            RequestStatus = "disputed"
	RequestStatusNoOperatorAvailable RequestStatus = "no_operator_available"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestStatusPending: {
		RequestStatusOperatorPending, RequestStatusAssigned,
		RequestStatusCancelled, RequestStatusNoOperatorAvailable,
	},
	RequestStatusOperatorPending: {
		RequestStatusOperatorAccepted, RequestStatusOperatorDeclined, RequestStatusAssigned,
		RequestStatusPending, RequestStatusCancelled, RequestStatusNoOperatorAvailable,
	},
	RequestStatusOperatorAccepted: {RequestStatusAssigned, RequestStatusCancelled},
	RequestStatusOperatorDeclined: {
		RequestStatusOperatorPending, RequestStatusAssigned,
		RequestStatusPending, RequestStatusCancelled,
	},
	RequestStatusAssigned:   {RequestStatusInProgress, RequestStatusCancelled},
	RequestStatusInProgress: {RequestStatusCompleted, RequestStatusCancelled, RequestStatusDisputed},
	RequestStatusCompleted:  {RequestStatusDisputed},
	RequestStatusDisputed:   {RequestStatusInProgress, RequestStatusCompleted, RequestStatusCancelled},
	RequestStatusCancelled:  {},

	RequestStatusNoOperatorAvailable: {},
}

func (s RequestStatus) IsValid() bool {
	_, ok := requestTransitions[s]
	return ok
}

func (s RequestStatus) CanTransitionTo(newStatus RequestStatus) bool {
	allowed, ok := requestTransitions[s]
	if !ok {
		return false
	}

	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

func (s RequestStatus) IsTerminal() bool {
	return s.IsValid() && len(requestTransitions[s]) == 0
}

// AcceptsAssignment: из этих статусов заявку ещё можно назначить исполнителю.
func (s RequestStatus) AcceptsAssignment() bool {
	switch s {
	case RequestStatusPending, RequestStatusOperatorPending, RequestStatusOperatorDeclined:
		return true
	}
	return false
}

func NewRequestStatus(status string) (RequestStatus, error) {
	s := RequestStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус заявки")
	}
	return s, nil
}

// QuoteWindowStatus состояние окна сбора предложений по заявке.
type QuoteWindowStatus string

const (
	QuoteWindowOpen    QuoteWindowStatus = "open"
	QuoteWindowDecided QuoteWindowStatus = "decided"
	QuoteWindowExpired QuoteWindowStatus = "expired"
)

func (s QuoteWindowStatus) IsValid() bool {
	switch s {
	case QuoteWindowOpen, QuoteWindowDecided, QuoteWindowExpired:
		return true
	}
	return false
}
