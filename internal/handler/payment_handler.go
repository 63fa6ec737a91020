package handler

import (
	"net/http"

	"receivables/internal/auth"
	"receivables/internal/middleware"
	"receivables/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentHandler serves the customer-facing payment link endpoints. None require a
// token, but a token sent with a payment must be valid and is recorded in the audit log.
type PaymentHandler struct {
	invoiceService service.InvoiceService
	tokens         *auth.TokenManager
}

func NewPaymentHandler(invoiceService service.InvoiceService, tokens *auth.TokenManager) *PaymentHandler {
	return &PaymentHandler{
		invoiceService: invoiceService,
		tokens:         tokens,
	}
}

func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/api/payments/:id", middleware.OptionalAuth(h.tokens), h.PayInvoice)
	router.GET("/api/payment-links/:token", h.ResolvePaymentLink)
}

// PayInvoice records a payment of the full amount due
// @Summary      Pay invoice
// @Description  Marks a pending invoice as paid. The amount must equal amount_due.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Invoice ID"
// @Param        payload  body      service.PaymentRequest  true  "Payment"
// @Success      200      {object}  object{message=string,invoice=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/payments/{id} [post]
func (h *PaymentHandler) PayInvoice(c *gin.Context) {
	var req service.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoiceService.PayInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment successful",
		"invoice": invoice,
	})
}

// ResolvePaymentLink returns the invoice a payment link points to
// @Summary      Resolve payment link
// @Tags         payments
// @Produce      json
// @Param        token  path      string  true  "Payment link token"
// @Success      200    {object}  service.InvoiceResponse
// @Failure      404    {object}  response.Response
// @Router       /api/payment-links/{token} [get]
func (h *PaymentHandler) ResolvePaymentLink(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoiceByPaymentToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, invoice)
}
