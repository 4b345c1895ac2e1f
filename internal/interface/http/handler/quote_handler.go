package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/dispatch-engine/internal/interface/http/dto"
	"github.com/ignatzorin/dispatch-engine/internal/interface/http/response"
	"github.com/ignatzorin/dispatch-engine/internal/pkg/clock"
	"github.com/ignatzorin/dispatch-engine/internal/usecase/quote"
)

// QuoteUseCases сценарии книги предложений.
type QuoteUseCases struct {
	Submit           *quote.SubmitQuoteUseCase
	List             *quote.ListQuotesUseCase
	Get              *quote.GetQuoteUseCase
	Counter          *quote.CounterQuoteUseCase
	RespondToCounter *quote.RespondToCounterUseCase
	Accept           *quote.AcceptQuoteUseCase
	Decline          *quote.DeclineQuoteUseCase
	Withdraw         *quote.WithdrawQuoteUseCase
}

type QuoteHandler struct {
	uc    QuoteUseCases
	clock clock.Clock
}

func NewQuoteHandler(uc QuoteUseCases, clk clock.Clock) *QuoteHandler {
	return &QuoteHandler{uc: uc, clock: clk}
}

func (h *QuoteHandler) SubmitQuote(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.SubmitQuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := h.uc.Submit.Execute(c.Request.Context(), quote.SubmitQuoteInput{
		RequestID: c.Param("id"),
		Actor:     actor,
		Amount:    req.Amount,
		Breakdown: req.Breakdown,
		Notes:     req.Notes,
		AutoPrice: req.AutoPrice,
		Now:       h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, dto.ToQuoteResponse(q))
}

func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	quotes, err := h.uc.List.Execute(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToQuoteResponses(quotes))
}

func (h *QuoteHandler) GetQuote(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	q, err := h.uc.Get.Execute(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToQuoteResponse(q))
}

func (h *QuoteHandler) CounterQuote(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.CounterQuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := h.uc.Counter.Execute(c.Request.Context(), quote.CounterQuoteInput{
		QuoteID: c.Param("id"),
		Actor:   actor,
		Amount:  req.Amount,
		Notes:   req.Notes,
		Now:     h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToQuoteResponse(q))
}

func (h *QuoteHandler) RespondToCounter(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.CounterResponseRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	q, err := h.uc.RespondToCounter.Execute(c.Request.Context(), quote.RespondToCounterInput{
		QuoteID: c.Param("id"),
		Actor:   actor,
		Amount:  req.Amount,
		Notes:   req.Notes,
		Now:     h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToQuoteResponse(q))
}

func (h *QuoteHandler) AcceptQuote(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	q, err := h.uc.Accept.Execute(c.Request.Context(), quote.QuoteActionInput{
		QuoteID: c.Param("id"),
		Actor:   actor,
		Now:     h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToQuoteResponse(q))
}

func (h *QuoteHandler) DeclineQuote(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req dto.DeclineQuoteRequest
	if !bindJSON(c, &req) {
		return
	}

	q, err := h.uc.Decline.Execute(c.Request.Context(), quote.DeclineQuoteInput{
		QuoteID: c.Param("id"),
		Actor:   actor,
		Reason:  req.Reason,
		Notes:   req.Notes,
		Now:     h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToQuoteResponse(q))
}

func (h *QuoteHandler) WithdrawQuote(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	q, err := h.uc.Withdraw.Execute(c.Request.Context(), quote.QuoteActionInput{
		QuoteID: c.Param("id"),
		Actor:   actor,
		Now:     h.clock.Now(),
	})
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, dto.ToQuoteResponse(q))
}
