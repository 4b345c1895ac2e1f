package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/dispatch-engine/internal/domain/entity"
	"github.com/ignatzorin/dispatch-engine/internal/interface/http/dto"
	"github.com/ignatzorin/dispatch-engine/internal/interface/http/response"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/clock"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/eligibility"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/request"
)

// RequestUseCases сценарии жизненного цикла заявки.
type RequestUseCases struct {
	Create       *request.CreateRequestUseCase
	Get          *request.GetRequestUseCase
	List         *request.ListRequestsUseCase
	Events       *request.ListEventsUseCase
	Eligible     *eligibility.ListEligibleOperatorsUseCase
	Offer        *request.OfferToOperatorUseCase
	RespondOffer *request.RespondToOfferUseCase
	StartWork    *request.StartWorkUseCase
	Complete     *request.CompleteUseCase
	Dispute      *request.DisputeUseCase
	Resolve      *request.ResolveDisputeUseCase
	Cancel       *request.CancelRequestUseCase
}

type RequestHandler struct {
	uc    RequestUseCases
	clock clock.Clock
}

func NewRequestHandler(uc RequestUseCases, clk clock.Clock) *RequestHandler {
	return &RequestHandler{uc: uc, clock: clk}
}

func (h *RequestHandler) CreateRequest(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.CreateRequestRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.uc.Create.Execute(c.Request.Context(), request.CreateRequestInput{
		Actor:         actor,
		ServiceTypes:  req.ServiceTypes,
		Emergency:     req.Emergency,
		Description:   req.Description,
		Lat:           *req.Lat,
		Lon:           *req.Lon,
		Address:       req.Address,
		Region:        req.Region,
		PreferredTime: req.PreferredTime,
		BudgetHint:    req.BudgetHint,
		Now:           h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, dto.ToRequestResponse(created))
}

func (h *RequestHandler) GetRequest(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	agg, err := h.uc.Get.Execute(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToRequestDetailsResponse(agg))
}

// ListRequests GET /requests?status=&limit=&offset=
func (h *RequestHandler) ListRequests(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	limit, offset := pageParams(c)
	items, err := h.uc.List.Execute(c.Request.Context(), request.ListRequestsInput{
		Actor:  actor,
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.List(c, dto.ToRequestResponses(items), len(items), limit, offset)
}

func (h *RequestHandler) ListEvents(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	events, err := h.uc.Events.Execute(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToEventResponses(events))
}

func (h *RequestHandler) ListEligibleOperators(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	candidates, err := h.uc.Eligible.Execute(c.Request.Context(), eligibility.ListEligibleOperatorsInput{
		RequestID: c.Param("id"),
		Actor:     actor,
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToCandidateResponses(candidates))
}

func (h *RequestHandler) OfferToOperator(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.OfferRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.uc.Offer.Execute(c.Request.Context(), request.OfferToOperatorInput{
		RequestID:  c.Param("id"),
		OperatorID: req.OperatorID,
		Actor:      actor,
		Now:        h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToRequestResponse(updated))
}

func (h *RequestHandler) RespondToOffer(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.OfferResponseRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.uc.RespondOffer.Execute(c.Request.Context(), request.RespondToOfferInput{
		RequestID: c.Param("id"),
		Actor:     actor,
		Accept:    req.Accept,
		Reason:    req.Reason,
		Now:       h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToRequestResponse(updated))
}

func (h *RequestHandler) StartWork(c *gin.Context) {
	h.transition(c, h.uc.StartWork.Execute)
}

func (h *RequestHandler) Complete(c *gin.Context) {
	h.transition(c, h.uc.Complete.Execute)
}

func (h *RequestHandler) Dispute(c *gin.Context) {
	h.transition(c, h.uc.Dispute.Execute)
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	h.transition(c, h.uc.Cancel.Execute)
}

func (h *RequestHandler) ResolveDispute(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.ResolveDisputeRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := h.uc.Resolve.Execute(c.Request.Context(), request.ResolveDisputeInput{
		RequestID: c.Param("id"),
		Actor:     actor,
		Outcome:   req.Outcome,
		Notes:     req.Notes,
		Now:       h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToRequestResponse(updated))
}

type transitionFunc func(ctx context.Context, input request.TransitionInput) (*entity.ServiceRequest, error)

func (h *RequestHandler) transition(c *gin.Context, exec transitionFunc) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.TransitionRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	updated, err := exec(c.Request.Context(), request.TransitionInput{
		RequestID: c.Param("id"),
		Actor:     actor,
		Reason:    req.Reason,
		Now:       h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToRequestResponse(updated))
}
