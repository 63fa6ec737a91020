package handler

import (
	"net/http"

	"receivables/internal/auth"
	"receivables/internal/middleware"
	"receivables/internal/service"
	"receivables/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	tokens       *auth.TokenManager
}

func NewAuditHandler(auditService service.AuditService, tokens *auth.TokenManager) *AuditHandler {
	return &AuditHandler{auditService: auditService, tokens: tokens}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(middleware.RequireAuth(h.tokens))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs lists invoice lifecycle events newest first
// @Summary      Get audit logs
// @Description  Paginated history of invoice create, update, delete and pay events
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        invoice_id  query     string  false  "Only events for this invoice"
// @Param        page        query     int     false  "Page number (default 1)"
// @Param        limit       query     int     false  "Number of items per page (default 20)"
// @Success      200         {object}  object{logs=[]service.AuditLogResponse,total=int,page=int,limit=int}
// @Failure      401         {object}  response.Response
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), service.AuditFilter{
		InvoiceID: c.Query("invoice_id"),
		Page:      params.Page,
		Limit:     params.Limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": total,
		"page":  params.Page,
		"limit": params.Limit,
	})
}
