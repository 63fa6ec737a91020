package repository

import (
	"context"

	"receivables/internal/model"

	"gorm.io/gorm"
)

// AuditListFilter narrows the audit trail. Zero values match everything.
type AuditListFilter struct {
	InvoiceID string
	Offset    int
	Limit     int
}

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditListFilter) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

// Log appends entry inside the caller's transaction, if any, so a rolled back
// transition leaves no trail.
func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

// List returns matching entries newest first with the acting user preloaded,
// plus the total match count.
func (r *auditRepository) List(ctx context.Context, filter AuditListFilter) ([]model.AuditLog, int64, error) {
	db := GetDB(ctx, r.db)
	scope := func(q *gorm.DB) *gorm.DB {
		if filter.InvoiceID != "" {
			q = q.Where("entity_id = ?", filter.InvoiceID)
		}
		return q
	}

	var total int64
	if err := db.Model(&model.AuditLog{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	logs := make([]model.AuditLog, 0)
	query := db.Scopes(scope).Preload("User").Order("created_at desc").Order("id")
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
