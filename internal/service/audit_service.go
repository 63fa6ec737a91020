package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"receivables/internal/repository"
	"receivables/pkg/pagination"
)

type AuditLogResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Username  string          `json:"username"`
	Action    string          `json:"action"`
	EntityID  string          `json:"entity_id"`
	Details   json.RawMessage `json:"details" swaggertype:"object"`
	CreatedAt string          `json:"created_at"`
}

// AuditFilter selects audit entries. InvoiceID narrows the trail to one invoice.
type AuditFilter struct {
	InvoiceID string
	Page      int
	Limit     int
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// GetAuditLogs returns one page of lifecycle events, newest first, with the acting user resolved
func (s *auditService) GetAuditLogs(ctx context.Context, filter AuditFilter) ([]AuditLogResponse, int64, error) {
	limit := filter.Limit
	if limit < 1 {
		limit = pagination.DefaultLimit
	}

	logs, total, err := s.repo.List(ctx, repository.AuditListFilter{
		InvoiceID: strings.TrimSpace(filter.InvoiceID),
		Offset:    pagination.Offset(max(filter.Page, 1), limit),
		Limit:     limit,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "Payment link"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		details := json.RawMessage(l.Details)
		if len(details) == 0 {
			details = json.RawMessage("{}")
		}

		res = append(res, AuditLogResponse{
			ID:        l.ID.String(),
			UserID:    userID,
			Username:  username,
			Action:    l.Action,
			EntityID:  l.EntityID,
			Details:   details,
			CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return res, total, nil
}
