package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/hospital/billing/internal/domain/billing"
)

// StatsProvider returns the headline collection figures
type StatsProvider interface {
	GetStats(ctx context.Context) (billing.Stats, error)
}

// StatsHandler serves billing statistics
type StatsHandler struct {
	BaseHandler
	stats StatsProvider
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(stats StatsProvider) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats godoc
// @ID           getBillingStats
// @Summary      Get billing statistics
// @Description  Total billed, collected and outstanding with the collection rate and counts per status
// @Tags         billing
// @Produce      json
// @Success      200 {object} dto.Envelope[billing.Stats]
// @Failure      401 {object} dto.ErrorResponse
// @Failure      500 {object} dto.ErrorResponse
// @Security     BearerAuth
// @Router       /billing/stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	stats, err := h.stats.GetStats(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}
