package model

import "github.com/shopspring/decimal"

// DashboardStats aggregates invoice counts and the amount billed across all invoices
type DashboardStats struct {
	Total       int
	Pending     int
	Paid        int
	TotalAmount decimal.Decimal
}

// Add folds one invoice into the running totals
func (s *DashboardStats) Add(inv Invoice) {
	s.Total++
	switch inv.PaymentStatus {
	case PaymentPending:
		s.Pending++
	case PaymentPaid:
		s.Paid++
	}
	s.TotalAmount = s.TotalAmount.Add(inv.AmountDue)
}
