package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/dispatch-engine/internal/interface/http/dto"
	"github.com/ignatzorin/dispatch-engine/internal/interface/http/response"
	"github.com/ignatzorin/dispatch-engine/internal/worker"
)

type AdminHandler struct {
	sweeper *worker.Sweeper
}

func NewAdminHandler(sweeper *worker.Sweeper) *AdminHandler {
	return &AdminHandler{sweeper: sweeper}
}

// Sweep POST /admin/sweep запускает внеочередной проход по просроченным предложениям и уведомлениям.
func (h *AdminHandler) Sweep(c *gin.Context) {
	reports := h.sweeper.RunOnce(c.Request.Context())
	response.Success(c, dto.ToSweepReportResponses(reports))
}
