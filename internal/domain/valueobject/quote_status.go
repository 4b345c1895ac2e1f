package valueobject

import "github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"

type QuoteStatus string

const (
	QuoteStatusSent              QuoteStatus = "sent"
	QuoteStatusCounterPending    QuoteStatus = "counter_pending"
	QuoteStatusCounterSent       QuoteStatus = "counter_sent"
	QuoteStatusOperatorAccepted  QuoteStatus = "operator_accepted"
	QuoteStatusCustomerAccepted  QuoteStatus = "customer_accepted"
	QuoteStatusDeclinedDistance  QuoteStatus = "declined_distance"
	QuoteStatusDeclinedBudget    QuoteStatus = "declined_budget"
	QuoteStatusDeclinedNature    QuoteStatus = "declined_nature_of_job"
	QuoteStatusDeclinedOther     QuoteStatus = "declined_other"
	QuoteStatusOperatorWithdrawn QuoteStatus = "operator_withdrawn"
	QuoteStatusExpired           QuoteStatus = "expired"
	QuoteStatusSuperseded        QuoteStatus = "superseded"
	QuoteStatusCancelled         QuoteStatus = "cancelled"
)

var quoteStatuses = map[QuoteStatus]bool{
	QuoteStatusSent:              false,
	QuoteStatusCounterPending:    false,
	QuoteStatusCounterSent:       false,
	QuoteStatusOperatorAccepted:  false,
	QuoteStatusCustomerAccepted:  true,
	QuoteStatusDeclinedDistance:  true,
	QuoteStatusDeclinedBudget:    true,
	QuoteStatusDeclinedNature:    true,
	QuoteStatusDeclinedOther:     true,
	QuoteStatusOperatorWithdrawn: true,
	QuoteStatusExpired:           true,
	QuoteStatusSuperseded:        true,
	QuoteStatusCancelled:         true,
}

func (s QuoteStatus) IsValid() bool {
	_, ok := quoteStatuses[s]
	return ok
}

// IsTerminal: значение true означает, что по предложению больше ничего не произойдёт.
func (s QuoteStatus) IsTerminal() bool {
	return quoteStatuses[s]
}

// IsAcceptable: из этих статусов заказчик может принять предложение.
func (s QuoteStatus) IsAcceptable() bool {
	switch s {
	case QuoteStatusSent, QuoteStatusCounterSent, QuoteStatusOperatorAccepted:
		return true
	}
	return false
}

func NewQuoteStatus(status string) (QuoteStatus, error) {
	s := QuoteStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус предложения")
	}
	return s, nil
}

// DeclineReason закрытый набор причин отказа.
type DeclineReason string

const (
	DeclineReasonDistance    DeclineReason = "distance"
	DeclineReasonBudget      DeclineReason = "budget"
	DeclineReasonNatureOfJob DeclineReason = "nature_of_job"
	DeclineReasonOther       DeclineReason = "other"
)

func NewDeclineReason(reason string) (DeclineReason, error) {
	r := DeclineReason(reason)
	switch r {
	case DeclineReasonDistance, DeclineReasonBudget, DeclineReasonNatureOfJob, DeclineReasonOther:
		return r, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "некорректная причина отказа")
}

// QuoteStatus возвращает терминальный статус предложения для причины отказа.
func (r DeclineReason) QuoteStatus() QuoteStatus {
	switch r {
	case DeclineReasonDistance:
		return QuoteStatusDeclinedDistance
	case DeclineReasonBudget:
		return QuoteStatusDeclinedBudget
	case DeclineReasonNatureOfJob:
		return QuoteStatusDeclinedNature
	default:
		return QuoteStatusDeclinedOther
	}
}
