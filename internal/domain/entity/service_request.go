package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/dispatch-engine/internal/domain/valueobject"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/apperror"
)

type ServiceRequest struct {
	ID            string
	CustomerID    string
	ServiceTypes  []valueobject.ServiceType
	Emergency     bool
	Description   string
	Location      valueobject.Location
	PreferredTime *time.Time
	BudgetHint    *decimal.Decimal

	Status               valueobject.RequestStatus
	QuoteStatus          valueobject.QuoteWindowStatus
	QuoteWindowExpiresAt time.Time
	SelectedQuoteID      *string
	AssignedOperatorID   *string
	PendingOperatorID    *string
	ActiveJobID          *string

	EventSeq  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type NewServiceRequestParams struct {
	CustomerID    string
	ServiceTypes  []valueobject.ServiceType
	Emergency     bool
	Description   string
	Location      valueobject.Location
	PreferredTime *time.Time
	BudgetHint    *decimal.Decimal
}

func NewServiceRequest(p NewServiceRequestParams, quoteWindow time.Duration, now time.Time) (*ServiceRequest, error) {
	if p.CustomerID == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "не указан заказчик")
	}
	if len(p.ServiceTypes) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "нужно указать хотя бы один тип услуги")
	}
	// геокодирование снаружи движка: без координат нельзя ни отфильтровать, ни упорядочить исполнителей
	if p.Location.Point.IsZero() {
		return nil, apperror.New(apperror.ErrCodeValidation, "нужно указать координаты заявки")
	}
	if p.BudgetHint != nil && p.BudgetHint.IsNegative() {
		return nil, apperror.New(apperror.ErrCodeValidation, "бюджет не может быть отрицательным")
	}
	if quoteWindow <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "окно сбора предложений должно быть положительным")
	}

	return &ServiceRequest{
		ID:                   uuid.NewString(),
		CustomerID:           p.CustomerID,
		ServiceTypes:         append([]valueobject.ServiceType(nil), p.ServiceTypes...),
		Emergency:            p.Emergency,
		Description:          p.Description,
		Location:             p.Location,
		PreferredTime:        p.PreferredTime,
		BudgetHint:           p.BudgetHint,
		Status:               valueobject.RequestStatusPending,
		QuoteStatus:          valueobject.QuoteWindowOpen,
		QuoteWindowExpiresAt: now.Add(quoteWindow),
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func (r *ServiceRequest) IsOwnedBy(customerID string) bool {
	return r.CustomerID == customerID
}

func (r *ServiceRequest) IsAssignedTo(operatorID string) bool {
	return r.AssignedOperatorID != nil && *r.AssignedOperatorID == operatorID
}

// AcceptsQuotes проверяет окно, статус и тип заявки. Срочные заявки идут через очередь вызова.
func (r *ServiceRequest) AcceptsQuotes(now time.Time) bool {
	if r.Emergency || r.QuoteStatus != valueobject.QuoteWindowOpen {
		return false
	}
	if !now.Before(r.QuoteWindowExpiresAt) {
		return false
	}
	return r.Status.AcceptsAssignment()
}

func (r *ServiceRequest) transitionTo(status valueobject.RequestStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(status) {
		return apperror.Newf(apperror.ErrCodeInvalidTransition,
			"нельзя перевести заявку из статуса %s в %s", r.Status, status)
	}
	r.Status = status
	r.UpdatedAt = now
	return nil
}

// Clone глубокая копия, изменения в копии не видны оригиналу.
func (r *ServiceRequest) Clone() *ServiceRequest {
	c := *r
	c.ServiceTypes = append([]valueobject.ServiceType(nil), r.ServiceTypes...)
	c.PreferredTime = cloneTime(r.PreferredTime)
	if r.BudgetHint != nil {
		b := *r.BudgetHint
		c.BudgetHint = &b
	}
	c.SelectedQuoteID = cloneString(r.SelectedQuoteID)
	c.AssignedOperatorID = cloneString(r.AssignedOperatorID)
	c.PendingOperatorID = cloneString(r.PendingOperatorID)
	c.ActiveJobID = cloneString(r.ActiveJobID)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func ptr[T any](v T) *T { return &v }
