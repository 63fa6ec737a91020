package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log"
	"regexp"
	"strings"
	"time"

	"receivables/internal/model"
	"receivables/internal/repository"
	"receivables/pkg/pagination"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Event types published after a committed lifecycle transition
const (
	EventInvoiceCreated = "invoice.created"
	EventInvoiceUpdated = "invoice.updated"
	EventInvoiceDeleted = "invoice.deleted"
	EventInvoicePaid    = "invoice.paid"
)

const (
	StatusFilterAll = "all"

	maxNameLength  = 255
	maxEmailLength = 255
	maxPhoneLength = 50
)

var emailRegex = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

// --- DTOs ---

// InvoiceRequest is the draft accepted by create and the replacement accepted by update.
// invoice_id and payment_status are server-owned and not part of it.
type InvoiceRequest struct {
	CustomerName  string          `json:"customer_name" binding:"omitempty,max=255" example:"Jane Doe"`
	CustomerEmail string          `json:"customer_email" binding:"omitempty,max=255" example:"jane@x.com"`
	CustomerPhone *string         `json:"customer_phone" binding:"omitempty,max=50" example:"+1 555 0100"`
	Notes         *string         `json:"notes"`
	InvoiceDate   string          `json:"invoice_date" example:"2024-01-01"` // defaults to today
	DueDate       string          `json:"due_date" example:"2024-01-31"`     // defaults to invoice_date + 30 days
	AmountDue     json.RawMessage `json:"amount_due" swaggertype:"number" example:"150.00"`
}

type PaymentRequest struct {
	Amount json.RawMessage `json:"amount" swaggertype:"number" example:"150.00"`
}

type InvoiceFilter struct {
	Search string
	Status string // all, pending, paid (empty means all)
	Page   int
	Limit  int // 0 returns every match
}

type InvoiceResponse struct {
	InvoiceID     string      `json:"invoice_id"`
	CustomerName  string      `json:"customer_name"`
	CustomerEmail string      `json:"customer_email"`
	CustomerPhone *string     `json:"customer_phone"`
	Notes         *string     `json:"notes"`
	InvoiceDate   string      `json:"invoice_date"`
	DueDate       string      `json:"due_date"`
	AmountDue     json.Number `json:"amount_due" swaggertype:"number"`
	PaymentStatus string      `json:"payment_status"`
	PaymentLink   string      `json:"payment_link"`
	PaidAt        *string     `json:"paid_at"`
	CreatedAt     string      `json:"created_at"`
	UpdatedAt     string      `json:"updated_at"`
}

// EventPublisher receives committed lifecycle transitions (the websocket hub)
type EventPublisher interface {
	Publish(eventType, invoiceID string)
}

// --- Interface ---

type InvoiceService interface {
	CreateInvoice(ctx context.Context, userID string, req InvoiceRequest) (InvoiceResponse, error)
	Invoices(ctx context.Context, filter InvoiceFilter) (iter.Seq2[InvoiceResponse, error], error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error)
	GetInvoice(ctx context.Context, invoiceID string) (InvoiceResponse, error)
	GetInvoiceByPaymentToken(ctx context.Context, token string) (InvoiceResponse, error)
	UpdateInvoice(ctx context.Context, userID, invoiceID string, req InvoiceRequest) (InvoiceResponse, error)
	DeleteInvoice(ctx context.Context, userID, invoiceID string) error
	PayInvoice(ctx context.Context, userID, invoiceID string, req PaymentRequest) (InvoiceResponse, error)
}

type InvoiceServiceConfig struct {
	PaymentBaseURL string
	Publisher      EventPublisher // optional
	Now            func() time.Time
}

type invoiceService struct {
	invoiceRepo  repository.InvoiceRepository
	sequenceRepo repository.SequenceRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	publisher    EventPublisher
	baseURL      string
	now          func() time.Time
	locks        *keyedMutex
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	sequenceRepo repository.SequenceRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	cfg InvoiceServiceConfig,
) InvoiceService {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &invoiceService{
		invoiceRepo:  invoiceRepo,
		sequenceRepo: sequenceRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		publisher:    cfg.Publisher,
		baseURL:      strings.TrimRight(cfg.PaymentBaseURL, "/"),
		now:          now,
		locks:        newKeyedMutex(),
	}
}

// --- Implementation ---

func (s *invoiceService) CreateInvoice(ctx context.Context, userID string, req InvoiceRequest) (InvoiceResponse, error) {
	now := s.clock()

	invoice := model.Invoice{
		PaymentToken:  uuid.NewString(),
		PaymentStatus: model.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.applyRequest(&invoice, req, now); err != nil {
		return InvoiceResponse{}, err
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoiceID, err := s.generateInvoiceID(txCtx, now)
		if err != nil {
			return fmt.Errorf("failed to generate invoice id: %w", err)
		}
		invoice.InvoiceID = invoiceID

		if err := s.invoiceRepo.Create(txCtx, &invoice); err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		return s.audit(txCtx, userID, model.ActionCreateInvoice, invoice.InvoiceID, map[string]interface{}{
			"customer_name": invoice.CustomerName,
			"amount_due":    invoice.AmountDue.StringFixed(2),
			"due_date":      invoice.DueDate.String(),
		})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	log.Printf("invoice %s created (%s)", invoice.InvoiceID, invoice.AmountDue.StringFixed(2))
	s.publish(EventInvoiceCreated, invoice.InvoiceID)
	return s.toInvoiceResponse(invoice), nil
}

func (s *invoiceService) Invoices(ctx context.Context, filter InvoiceFilter) (iter.Seq2[InvoiceResponse, error], error) {
	listFilter, err := toListFilter(filter)
	if err != nil {
		return nil, err
	}

	rows := s.invoiceRepo.Iterate(ctx, listFilter)
	return func(yield func(InvoiceResponse, error) bool) {
		for inv, err := range rows {
			if err != nil {
				yield(InvoiceResponse{}, fmt.Errorf("failed to fetch invoices: %w", err))
				return
			}
			if !yield(s.toInvoiceResponse(inv), nil) {
				return
			}
		}
	}, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]InvoiceResponse, int64, error) {
	seq, err := s.Invoices(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	result := make([]InvoiceResponse, 0)
	for inv, err := range seq {
		if err != nil {
			return nil, 0, err
		}
		result = append(result, inv)
	}

	total := int64(len(result))
	if filter.Limit > 0 {
		listFilter, _ := toListFilter(filter)
		if total, err = s.invoiceRepo.Count(ctx, listFilter); err != nil {
			return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
		}
	}
	return result, total, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID string) (InvoiceResponse, error) {
	invoice, err := s.findInvoice(ctx, invoiceID)
	if err != nil {
		return InvoiceResponse{}, err
	}
	return s.toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) GetInvoiceByPaymentToken(ctx context.Context, token string) (InvoiceResponse, error) {
	invoice, err := s.invoiceRepo.FindByPaymentToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InvoiceResponse{}, notFoundError("payment link not found")
		}
		return InvoiceResponse{}, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	return s.toInvoiceResponse(*invoice), nil
}

// UpdateInvoice replaces the editable fields of a pending invoice
func (s *invoiceService) UpdateInvoice(ctx context.Context, userID, invoiceID string, req InvoiceRequest) (InvoiceResponse, error) {
	unlock := s.locks.Lock(invoiceID)
	defer unlock()

	var invoice *model.Invoice
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		invoice, err = s.findInvoice(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.IsPaid() {
			return conflictError("cannot edit a paid invoice")
		}

		now := s.clock()
		if err := s.applyRequest(invoice, req, now); err != nil {
			return err
		}
		invoice.UpdatedAt = now

		updated, err := s.invoiceRepo.UpdatePending(txCtx, invoice)
		if err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		if !updated {
			return s.transitionLost(txCtx, invoiceID, "cannot edit a paid invoice")
		}

		return s.audit(txCtx, userID, model.ActionUpdateInvoice, invoiceID, map[string]interface{}{
			"customer_name": invoice.CustomerName,
			"amount_due":    invoice.AmountDue.StringFixed(2),
			"due_date":      invoice.DueDate.String(),
		})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	log.Printf("invoice %s updated", invoiceID)
	s.publish(EventInvoiceUpdated, invoiceID)
	return s.toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) DeleteInvoice(ctx context.Context, userID, invoiceID string) error {
	unlock := s.locks.Lock(invoiceID)
	defer unlock()

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		invoice, err := s.findInvoice(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.IsPaid() {
			return conflictError("cannot delete a paid invoice")
		}

		deleted, err := s.invoiceRepo.DeletePending(txCtx, invoiceID)
		if err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		if !deleted {
			return s.transitionLost(txCtx, invoiceID, "cannot delete a paid invoice")
		}

		return s.audit(txCtx, userID, model.ActionDeleteInvoice, invoiceID, map[string]interface{}{
			"customer_name": invoice.CustomerName,
			"amount_due":    invoice.AmountDue.StringFixed(2),
		})
	})
	if err != nil {
		return err
	}

	log.Printf("invoice %s deleted", invoiceID)
	s.publish(EventInvoiceDeleted, invoiceID)
	return nil
}

// PayInvoice moves a pending invoice to paid. The amount must equal amount_due.
func (s *invoiceService) PayInvoice(ctx context.Context, userID, invoiceID string, req PaymentRequest) (InvoiceResponse, error) {
	unlock := s.locks.Lock(invoiceID)
	defer unlock()

	var invoice *model.Invoice
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		invoice, err = s.findInvoice(txCtx, invoiceID)
		if err != nil {
			return err
		}
		if invoice.IsPaid() {
			return conflictError("invoice is already paid")
		}

		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			return err
		}
		if !amount.Equal(invoice.AmountDue) {
			return validationError("amount must equal amount_due (%s)", invoice.AmountDue.StringFixed(2))
		}

		now := s.clock()
		paid, err := s.invoiceRepo.MarkPaid(txCtx, invoiceID, now)
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		if !paid {
			return s.transitionLost(txCtx, invoiceID, "invoice is already paid")
		}
		invoice.PaymentStatus = model.PaymentPaid
		invoice.PaidAt = &now
		invoice.UpdatedAt = now

		return s.audit(txCtx, userID, model.ActionPayInvoice, invoiceID, map[string]interface{}{
			"amount": amount.StringFixed(2),
		})
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	log.Printf("invoice %s paid (%s)", invoiceID, invoice.AmountDue.StringFixed(2))
	s.publish(EventInvoicePaid, invoiceID)
	return s.toInvoiceResponse(*invoice), nil
}

// --- Helpers ---

func (s *invoiceService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *invoiceService) findInvoice(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByInvoiceID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("invoice not found")
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	return invoice, nil
}

// transitionLost explains why a conditional write matched no pending row:
// another writer removed the invoice or already moved it to paid.
func (s *invoiceService) transitionLost(ctx context.Context, invoiceID, paidMessage string) error {
	if _, err := s.findInvoice(ctx, invoiceID); err != nil {
		return err
	}
	return conflictError(paidMessage)
}

func (s *invoiceService) generateInvoiceID(ctx context.Context, now time.Time) (string, error) {
	period := now.Format("20060102")
	n, err := s.sequenceRepo.Next(ctx, period)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%s-%05d", period, n), nil
}

func (s *invoiceService) audit(ctx context.Context, userID, action, invoiceID string, details map[string]interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}

	entry := &model.AuditLog{
		Action:   action,
		EntityID: invoiceID,
		Details:  payload,
	}
	if parsed, err := uuid.Parse(userID); err == nil {
		entry.UserID = &parsed
	}

	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *invoiceService) publish(eventType, invoiceID string) {
	if s.publisher != nil {
		s.publisher.Publish(eventType, invoiceID)
	}
}

// applyRequest validates req and copies it onto invoice. Nothing is written on error.
// Omitted dates keep the stored ones. A new invoice is dated today and due
// DefaultPaymentTermDays later.
func (s *invoiceService) applyRequest(invoice *model.Invoice, req InvoiceRequest, now time.Time) error {
	name := strings.TrimSpace(req.CustomerName)
	if name == "" {
		return validationError("customer_name is required")
	}
	if len(name) > maxNameLength {
		return validationError("customer_name must be at most %d characters", maxNameLength)
	}

	email := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	if email == "" {
		return validationError("customer_email is required")
	}
	if len(email) > maxEmailLength || !emailRegex.MatchString(email) {
		return validationError("customer_email must be a valid email address")
	}

	phone := optionalString(req.CustomerPhone)
	if phone != nil && len(*phone) > maxPhoneLength {
		return validationError("customer_phone must be at most %d characters", maxPhoneLength)
	}

	amount, err := parseAmount("amount_due", req.AmountDue)
	if err != nil {
		return err
	}

	invoiceDate := invoice.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = model.NewDate(now)
	}
	if v := strings.TrimSpace(req.InvoiceDate); v != "" {
		if invoiceDate, err = model.ParseDate(v); err != nil {
			return validationError("invoice_date must be a date in YYYY-MM-DD format")
		}
	}

	dueDate := invoice.DueDate
	if dueDate.IsZero() {
		dueDate = invoiceDate.AddDays(model.DefaultPaymentTermDays)
	}
	if v := strings.TrimSpace(req.DueDate); v != "" {
		if dueDate, err = model.ParseDate(v); err != nil {
			return validationError("due_date must be a date in YYYY-MM-DD format")
		}
	}
	if dueDate.Before(invoiceDate.Time) {
		return validationError("due_date must not be before invoice_date")
	}

	invoice.CustomerName = name
	invoice.CustomerEmail = email
	invoice.CustomerPhone = phone
	invoice.Notes = optionalString(req.Notes)
	invoice.InvoiceDate = invoiceDate
	invoice.DueDate = dueDate
	invoice.AmountDue = amount
	return nil
}

// parseAmount accepts a JSON number or numeric string with at most two decimals
func parseAmount(field string, raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return decimal.Zero, validationError("%s is required", field)
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, validationError("%s must be a number", field)
		}
		text = strings.TrimSpace(s)
		if text == "" {
			return decimal.Zero, validationError("%s is required", field)
		}
	}

	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, validationError("%s must be a number", field)
	}
	if !amount.IsPositive() {
		return decimal.Zero, validationError("%s must be greater than 0", field)
	}
	if !amount.Equal(amount.Round(2)) {
		return decimal.Zero, validationError("%s must have at most 2 decimal places", field)
	}
	return amount.Round(2), nil
}

func optionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toListFilter(filter InvoiceFilter) (repository.InvoiceListFilter, error) {
	status := strings.ToLower(strings.TrimSpace(filter.Status))
	switch status {
	case "", StatusFilterAll:
		status = ""
	case model.PaymentPending, model.PaymentPaid:
	default:
		return repository.InvoiceListFilter{}, validationError("status must be one of all, pending, paid")
	}

	listFilter := repository.InvoiceListFilter{
		Search: strings.TrimSpace(filter.Search),
		Status: status,
	}
	if filter.Limit > 0 {
		listFilter.Limit = filter.Limit
		listFilter.Offset = pagination.Offset(max(filter.Page, 1), filter.Limit)
	}
	return listFilter, nil
}

// --- Mapping ---

func (s *invoiceService) toInvoiceResponse(inv model.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		InvoiceID:     inv.InvoiceID,
		CustomerName:  inv.CustomerName,
		CustomerEmail: inv.CustomerEmail,
		CustomerPhone: inv.CustomerPhone,
		Notes:         inv.Notes,
		InvoiceDate:   inv.InvoiceDate.String(),
		DueDate:       inv.DueDate.String(),
		AmountDue:     json.Number(inv.AmountDue.StringFixed(2)),
		PaymentStatus: inv.PaymentStatus,
		PaymentLink:   s.baseURL + "/pay/" + inv.PaymentToken,
		CreatedAt:     inv.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     inv.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if inv.PaidAt != nil {
		paidAt := inv.PaidAt.UTC().Format(time.RFC3339)
		resp.PaidAt = &paidAt
	}
	return resp
}
