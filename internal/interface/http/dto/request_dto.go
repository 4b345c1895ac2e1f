package dto

import (
	"time"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/eligibility"
)

type CreateRequestRequest struct {
	ServiceTypes  []string   `json:"service_types" binding:"required,min=1"`
	Emergency     bool       `json:"emergency"`
	Description   string     `json:"description"`
	Lat           *float64   `json:"lat" binding:"required"`
	Lon           *float64   `json:"lon" binding:"required"`
	Address       string     `json:"address" binding:"required"`
	Region        string     `json:"region"`
	PreferredTime *time.Time `json:"preferred_time"`
	BudgetHint    *string    `json:"budget_hint"`
}

type OfferRequest struct {
	OperatorID string `json:"operator_id" binding:"required"`
}

type OfferResponseRequest struct {
	Accept bool   `json:"accept"`
	Reason string `json:"reason"`
}

type TransitionRequest struct {
	Reason string `json:"reason"`
}

type ResolveDisputeRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Notes   string `json:"notes"`
}

type LocationDTO struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Address string  `json:"address"`
	Region  string  `json:"region,omitempty"`
}

type RequestResponse struct {
	ID                   string      `json:"id"`
	CustomerID           string      `json:"customer_id"`
	ServiceTypes         []string    `json:"service_types"`
	Emergency            bool        `json:"emergency"`
	Description          string      `json:"description"`
	Location             LocationDTO `json:"location"`
	PreferredTime        *time.Time  `json:"preferred_time,omitempty"`
	BudgetHint           *string     `json:"budget_hint,omitempty"`
	Status               string      `json:"status"`
	QuoteStatus          string      `json:"quote_status"`
	QuoteWindowExpiresAt time.Time   `json:"quote_window_expires_at"`
	SelectedQuoteID      *string     `json:"selected_quote_id,omitempty"`
	AssignedOperatorID   *string     `json:"assigned_operator_id,omitempty"`
	PendingOperatorID    *string     `json:"pending_operator_id,omitempty"`
	ActiveJobID          *string     `json:"active_job_id,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// RequestDetailsResponse заявка с видимыми участнику предложениями и последним прогоном вызова.
type RequestDetailsResponse struct {
	RequestResponse
	Quotes      []QuoteResponse `json:"quotes"`
	DispatchRun *RunResponse    `json:"dispatch_run,omitempty"`
}

type CandidateResponse struct {
	OperatorID         string  `json:"operator_id"`
	Name               string  `json:"name"`
	Tier               string  `json:"tier"`
	DistanceKm         float64 `json:"distance_km"`
	Rating             float64 `json:"rating"`
	AvgResponseSeconds float64 `json:"avg_response_seconds"`
}

func ToRequestResponse(req *entity.ServiceRequest) RequestResponse {
	types := make([]string, len(req.ServiceTypes))
	for i, t := range req.ServiceTypes {
		types[i] = string(t)
	}

	var budget *string
	if req.BudgetHint != nil {
		s := req.BudgetHint.StringFixed(2)
		budget = &s
	}

	return RequestResponse{
		ID:           req.ID,
		CustomerID:   req.CustomerID,
		ServiceTypes: types,
		Emergency:    req.Emergency,
		Description:  req.Description,
		Location: LocationDTO{
			Lat:     req.Location.Point.Lat,
			Lon:     req.Location.Point.Lon,
			Address: req.Location.Address,
			Region:  req.Location.Region,
		},
		PreferredTime:        req.PreferredTime,
		BudgetHint:           budget,
		Status:               string(req.Status),
		QuoteStatus:          string(req.QuoteStatus),
		QuoteWindowExpiresAt: req.QuoteWindowExpiresAt,
		SelectedQuoteID:      req.SelectedQuoteID,
		AssignedOperatorID:   req.AssignedOperatorID,
		PendingOperatorID:    req.PendingOperatorID,
		ActiveJobID:          req.ActiveJobID,
		CreatedAt:            req.CreatedAt,
		UpdatedAt:            req.UpdatedAt,
	}
}

func ToRequestResponses(reqs []*entity.ServiceRequest) []RequestResponse {
	out := make([]RequestResponse, len(reqs))
	for i, r := range reqs {
		out[i] = ToRequestResponse(r)
	}
	return out
}

// ToRequestDetailsResponse ожидает агрегат, уже отфильтрованный под участника.
func ToRequestDetailsResponse(agg *entity.RequestAggregate) RequestDetailsResponse {
	out := RequestDetailsResponse{
		RequestResponse: ToRequestResponse(agg.Request),
		Quotes:          ToQuoteResponses(agg.Quotes),
	}
	if run := agg.LatestRun(); run != nil {
		r := ToRunResponse(run)
		out.DispatchRun = &r
	}
	return out
}

func ToCandidateResponses(candidates []eligibility.Candidate) []CandidateResponse {
	out := make([]CandidateResponse, len(candidates))
	for i, c := range candidates {
		out[i] = CandidateResponse{
			OperatorID:         c.Operator.ID,
			Name:               c.Operator.Name,
			Tier:               string(c.Operator.Tier),
			DistanceKm:         c.DistanceKm,
			Rating:             c.Operator.Rating,
			AvgResponseSeconds: c.Operator.AvgResponseSeconds,
		}
	}
	return out
}
