package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreateInvoice = "CREATE_INVOICE"
	ActionUpdateInvoice = "UPDATE_INVOICE"
	ActionDeleteInvoice = "DELETE_INVOICE"
	ActionPayInvoice    = "PAY_INVOICE"
)

// AuditLog tracks Who, What, and When for every invoice lifecycle transition
type AuditLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"` // nil for anonymous payment-link payments
	User      *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action    string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID  string         `gorm:"type:varchar(50);index" json:"entity_id"` // invoice_id
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
