package repository

import (
	"context"
	"fmt"

	"receivables/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository hands out invoice numbers. Next must run inside a
// transaction: the row lock taken by the increment serializes allocators.
type SequenceRepository interface {
	Next(ctx context.Context, period string) (int64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(ctx context.Context, period string) (int64, error) {
	db := GetDB(ctx, r.db)

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.InvoiceSequence{Period: period}).Error; err != nil {
		return 0, fmt.Errorf("failed to init sequence %s: %w", period, err)
	}

	if err := db.Model(&model.InvoiceSequence{}).
		Where("period = ?", period).
		UpdateColumn("last_value", gorm.Expr("last_value + ?", 1)).Error; err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", period, err)
	}

	var seq model.InvoiceSequence
	if err := db.First(&seq, "period = ?", period).Error; err != nil {
		return 0, fmt.Errorf("failed to read sequence %s: %w", period, err)
	}
	return seq.LastValue, nil
}
