package client

import "github.com/shopspring/decimal"

// User describes the operator a session belongs to.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Session is the credential returned by Login. It is passed explicitly to every
// call that needs authentication; discarding it logs out.
type Session struct {
	Token string
	User  User
}

// Invoice is the server's view of an invoice.
type Invoice struct {
	InvoiceID     string          `json:"invoice_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone *string         `json:"customer_phone"`
	Notes         *string         `json:"notes"`
	InvoiceDate   string          `json:"invoice_date"`
	DueDate       string          `json:"due_date"`
	AmountDue     decimal.Decimal `json:"amount_due"`
	PaymentStatus string          `json:"payment_status"`
	PaymentLink   string          `json:"payment_link"`
	PaidAt        *string         `json:"paid_at"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

// IsPaid reports whether the invoice reached its terminal state.
func (i Invoice) IsPaid() bool {
	return i.PaymentStatus == "paid"
}

// InvoiceDraft is the payload for creating or editing an invoice.
type InvoiceDraft struct {
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone *string         `json:"customer_phone,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	InvoiceDate   string          `json:"invoice_date,omitempty"`
	DueDate       string          `json:"due_date,omitempty"`
	AmountDue     decimal.Decimal `json:"amount_due"`
}

// Stats are the dashboard counters.
type Stats struct {
	Total       int             `json:"total"`
	Pending     int             `json:"pending"`
	Paid        int             `json:"paid"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// ListOptions filters ListInvoices. Zero Limit returns every match.
type ListOptions struct {
	Search string
	Status string // all, pending, paid
	Page   int
	Limit  int
}

// InvoicePage is one ListInvoices result; Total counts every match.
type InvoicePage struct {
	Invoices []Invoice `json:"invoices"`
	Total    int64     `json:"total"`
}
