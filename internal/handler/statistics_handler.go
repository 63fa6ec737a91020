package handler

import (
	"net/http"

	"receivables/internal/auth"
	"receivables/internal/middleware"
	"receivables/internal/service"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statisticsService service.StatisticsService
	tokens            *auth.TokenManager
}

func NewStatisticsHandler(statisticsService service.StatisticsService, tokens *auth.TokenManager) *StatisticsHandler {
	return &StatisticsHandler{statisticsService: statisticsService, tokens: tokens}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	dashboard := router.Group("/api/dashboard")
	{
		dashboard.GET("/stats", middleware.RequireAuth(h.tokens), h.GetStats)
	}
}

// @Summary      Get Dashboard Statistics
// @Description  Counts invoices by status and sums amount_due over all invoices, paid included
// @Tags         Statistics
// @Produce      json
// @Success      200 {object} service.StatsResponse
// @Failure      401 {object} response.Response "Unauthorized"
// @Failure      500 {object} response.Response "Internal server error"
// @Security     BearerAuth
// @Router       /api/dashboard/stats [get]
func (h *StatisticsHandler) GetStats(c *gin.Context) {
	stats, err := h.statisticsService.GetDashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
