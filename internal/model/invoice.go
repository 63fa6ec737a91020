package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentStatus enum constants
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// DefaultPaymentTermDays is used when a draft carries no due_date
const DefaultPaymentTermDays = 30

// Invoice is a billable record owed by a customer.
// Once PaymentStatus is "paid" the row is never modified or deleted again.
type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"-"`
	InvoiceID     string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"invoice_id"` // INV-YYYYMMDD-NNNNN
	PaymentToken  string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`          // capability behind payment_link
	CustomerName  string          `gorm:"type:varchar(255);not null;index" json:"customer_name"`
	CustomerEmail string          `gorm:"type:varchar(255);not null;index" json:"customer_email"`
	CustomerPhone *string         `gorm:"type:varchar(50)" json:"customer_phone"`
	Notes         *string         `gorm:"type:text" json:"notes"`
	InvoiceDate   Date            `gorm:"type:date;not null" json:"invoice_date"`
	DueDate       Date            `gorm:"type:date;not null" json:"due_date"`
	AmountDue     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount_due"`
	PaymentStatus string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	PaidAt        *time.Time      `json:"paid_at"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// IsPaid reports whether the invoice reached its terminal paid state
func (i *Invoice) IsPaid() bool {
	return i.PaymentStatus == PaymentPaid
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// InvoiceSequence is a monotonic per-day counter backing invoice_id allocation.
// Values are never handed out twice, so ids of deleted invoices are not reused.
type InvoiceSequence struct {
	Period    string    `gorm:"type:varchar(8);primaryKey"` // YYYYMMDD
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
