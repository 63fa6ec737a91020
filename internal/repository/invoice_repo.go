package repository

import (
	"context"
	"iter"
	"strings"
	"time"

	"receivables/internal/model"

	"gorm.io/gorm"
)

// InvoiceListFilter narrows a listing. Zero values mean "no restriction".
type InvoiceListFilter struct {
	Search string // case-insensitive substring of customer name, email or invoice_id
	Status string // pending, paid or empty for all
	Offset int
	Limit  int // 0 streams every match
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByInvoiceID(ctx context.Context, invoiceID string) (*model.Invoice, error)
	FindByPaymentToken(ctx context.Context, token string) (*model.Invoice, error)
	Iterate(ctx context.Context, filter InvoiceListFilter) iter.Seq2[model.Invoice, error]
	Count(ctx context.Context, filter InvoiceListFilter) (int64, error)
	// The three mutators below only touch rows that are still pending and
	// report false when no such row matched.
	UpdatePending(ctx context.Context, invoice *model.Invoice) (bool, error)
	DeletePending(ctx context.Context, invoiceID string) (bool, error)
	MarkPaid(ctx context.Context, invoiceID string, paidAt time.Time) (bool, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByInvoiceID(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "invoice_id = ?", invoiceID).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByPaymentToken(ctx context.Context, token string) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "payment_token = ?", token).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// Iterate streams matching invoices, most recent first. Each range over the
// returned sequence runs a fresh query, so it can be consumed more than once.
func (r *invoiceRepository) Iterate(ctx context.Context, filter InvoiceListFilter) iter.Seq2[model.Invoice, error] {
	return func(yield func(model.Invoice, error) bool) {
		db := GetDB(ctx, r.db)
		query := applyInvoiceFilter(db.Model(&model.Invoice{}), filter).
			Order("created_at desc").
			Order("invoice_id desc")
		if filter.Offset > 0 {
			query = query.Offset(filter.Offset)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}

		rows, err := query.Rows()
		if err != nil {
			yield(model.Invoice{}, err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			var invoice model.Invoice
			if err := db.ScanRows(rows, &invoice); err != nil {
				yield(model.Invoice{}, err)
				return
			}
			if !yield(invoice, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.Invoice{}, err)
		}
	}
}

func (r *invoiceRepository) Count(ctx context.Context, filter InvoiceListFilter) (int64, error) {
	var total int64
	if err := applyInvoiceFilter(GetDB(ctx, r.db).Model(&model.Invoice{}), filter).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *invoiceRepository) UpdatePending(ctx context.Context, invoice *model.Invoice) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("invoice_id = ? AND payment_status = ?", invoice.InvoiceID, model.PaymentPending).
		Updates(map[string]interface{}{
			"customer_name":  invoice.CustomerName,
			"customer_email": invoice.CustomerEmail,
			"customer_phone": invoice.CustomerPhone,
			"notes":          invoice.Notes,
			"invoice_date":   invoice.InvoiceDate,
			"due_date":       invoice.DueDate,
			"amount_due":     invoice.AmountDue,
			"updated_at":     invoice.UpdatedAt,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *invoiceRepository) DeletePending(ctx context.Context, invoiceID string) (bool, error) {
	res := GetDB(ctx, r.db).
		Where("invoice_id = ? AND payment_status = ?", invoiceID, model.PaymentPending).
		Delete(&model.Invoice{})
	return res.RowsAffected == 1, res.Error
}

func (r *invoiceRepository) MarkPaid(ctx context.Context, invoiceID string, paidAt time.Time) (bool, error) {
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("invoice_id = ? AND payment_status = ?", invoiceID, model.PaymentPending).
		Updates(map[string]interface{}{
			"payment_status": model.PaymentPaid,
			"paid_at":        paidAt,
			"updated_at":     paidAt,
		})
	return res.RowsAffected == 1, res.Error
}

func applyInvoiceFilter(query *gorm.DB, filter InvoiceListFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("payment_status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
		query = query.Where(
			`(LOWER(customer_name) LIKE ? ESCAPE '\' OR LOWER(customer_email) LIKE ? ESCAPE '\' OR LOWER(invoice_id) LIKE ? ESCAPE '\')`,
			pattern, pattern, pattern,
		)
	}
	return query
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
