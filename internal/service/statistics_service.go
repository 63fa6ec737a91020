package service

import (
	"context"
	"encoding/json"
	"fmt"

	"receivables/internal/model"
	"receivables/internal/repository"
)

type StatsResponse struct {
	Total       int         `json:"total"`
	Pending     int         `json:"pending"`
	Paid        int         `json:"paid"`
	TotalAmount json.Number `json:"totalAmount" swaggertype:"number"`
}

type StatisticsService interface {
	GetDashboardStats(ctx context.Context) (StatsResponse, error)
}

type statisticsService struct {
	invoiceRepo repository.InvoiceRepository
}

func NewStatisticsService(invoiceRepo repository.InvoiceRepository) StatisticsService {
	return &statisticsService{invoiceRepo: invoiceRepo}
}

// GetDashboardStats folds over every stored invoice, paid ones included
func (s *statisticsService) GetDashboardStats(ctx context.Context) (StatsResponse, error) {
	var stats model.DashboardStats
	for inv, err := range s.invoiceRepo.Iterate(ctx, repository.InvoiceListFilter{}) {
		if err != nil {
			return StatsResponse{}, fmt.Errorf("failed to calculate statistics: %w", err)
		}
		stats.Add(inv)
	}

	return StatsResponse{
		Total:       stats.Total,
		Pending:     stats.Pending,
		Paid:        stats.Paid,
		TotalAmount: json.Number(stats.TotalAmount.StringFixed(2)),
	}, nil
}
