package handler

import (
	"net/http"

	"receivables/internal/auth"
	"receivables/internal/middleware"
	"receivables/internal/service"
	"receivables/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	tokens         *auth.TokenManager
}

func NewInvoiceHandler(invoiceService service.InvoiceService, tokens *auth.TokenManager) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		tokens:         tokens,
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	requireAuth := middleware.RequireAuth(h.tokens)

	invoices := router.Group("/api/invoices")
	{
		invoices.GET("", requireAuth, h.ListInvoices)
		invoices.POST("", requireAuth, h.CreateInvoice)
		invoices.GET("/:id", middleware.OptionalAuth(h.tokens), h.GetInvoice)
		invoices.PUT("/:id", requireAuth, h.UpdateInvoice)
		invoices.DELETE("/:id", requireAuth, h.DeleteInvoice)
	}
}

// ListInvoices returns invoices newest first, optionally filtered and paginated
// @Summary      List invoices
// @Description  Lists invoices (most recent first). Pagination applies only when limit is given.
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Case-insensitive match on customer name, email or invoice id"
// @Param        status  query     string  false  "all, pending or paid"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page"
// @Success      200     {object}  object{invoices=[]service.InvoiceResponse,total=int}
// @Failure      400     {object}  response.Response
// @Failure      401     {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	filter := service.InvoiceFilter{
		Search: c.Query("search"),
		Status: c.Query("status"),
	}
	params, paged := pagination.ParseOptional(c)
	if paged {
		filter.Page = params.Page
		filter.Limit = params.Limit
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"invoices": invoices,
		"total":    total,
	}
	if paged {
		body["page"] = params.Page
		body["limit"] = params.Limit
	}
	c.JSON(http.StatusOK, body)
}

// CreateInvoice creates a pending invoice with a payment link
// @Summary      Create invoice
// @Description  Validates the draft, allocates an invoice id and payment link, and stores it as pending
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.InvoiceRequest  true  "Invoice draft"
// @Success      201      {object}  object{invoice=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.InvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"invoice": invoice})
}

// GetInvoice returns a single invoice
// @Summary      Get invoice
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  service.InvoiceResponse
// @Failure      401  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}

// UpdateInvoice replaces the editable fields of a pending invoice
// @Summary      Update invoice
// @Description  Only pending invoices can be edited; invoice_id and payment_status are server-owned. Omitted invoice_date and due_date keep their stored values.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Invoice ID"
// @Param        payload  body      service.InvoiceRequest  true  "Invoice fields"
// @Success      200      {object}  object{invoice=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var req service.InvoiceRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.UpdateInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invoice": invoice})
}

// DeleteInvoice permanently removes a pending invoice
// @Summary      Delete invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  object{message=string}
// @Failure      401  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Invoice deleted successfully"})
}
