package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/dispatch-engine/internal/interface/http/dto"
	"github.com/ignatzorin/dispatch-engine/internal/interface/http/response"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/clock"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/dispatch"
)

type DispatchHandler struct {
	startRunUC       *dispatch.StartRunUseCase
	getRunUC         *dispatch.GetRunUseCase
	recordResponseUC *dispatch.RecordResponseUseCase
	clock            clock.Clock
}

func NewDispatchHandler(
	startRunUC *dispatch.StartRunUseCase,
	getRunUC *dispatch.GetRunUseCase,
	recordResponseUC *dispatch.RecordResponseUseCase,
	clk clock.Clock,
) *DispatchHandler {
	return &DispatchHandler{
		startRunUC:       startRunUC,
		getRunUC:         getRunUC,
		recordResponseUC: recordResponseUC,
		clock:            clk,
	}
}

// StartDispatch POST /requests/:id/dispatch. Отсутствие покрытия не ошибка, а исход no_coverage.
func (h *DispatchHandler) StartDispatch(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.StartDispatchRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	res, err := h.startRunUC.Execute(c.Request.Context(), dispatch.StartRunInput{
		RequestID: c.Param("id"),
		Actor:     actor,
		Mode:      req.Mode,
		Now:       h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, dto.ToStartDispatchResponse(res))
}

func (h *DispatchHandler) GetDispatch(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	run, err := h.getRunUC.Execute(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToRunResponse(run))
}

// RespondToEntry POST /dispatch/entries/:id/response
func (h *DispatchHandler) RespondToEntry(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.EntryResponseRequest
	if !bindJSON(c, &req) {
		return
	}

	entryID := c.Param("id")
	agg, err := h.recordResponseUC.Execute(c.Request.Context(), dispatch.RecordResponseInput{
		EntryID: entryID,
		Actor:   actor,
		Outcome: req.Outcome,
		Now:     h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	// агрегат уже в объёме участника: исполнитель видит только свою позицию
	run, _ := agg.FindEntry(entryID)
	if run == nil {
		response.Success(c, dto.ToRequestResponse(agg.Request))
		return
	}
	response.Success(c, dto.ToRunResponse(run))
}
