package audit

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
)

// Repository is the read side of the trail.
type Repository interface {
	List(ctx context.Context, filters Filters) ([]Entry, error)
}

// Service serves audit trail reads.
type Service struct {
	repo Repository
}

// NewService builds a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the trail for filters, newest first.
func (s *Service) List(ctx context.Context, filters Filters) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	if filters.Action != "" && !filters.Action.Valid() {
		return nil, fmt.Errorf("%w: unknown action %q", shared.ErrValidation, filters.Action)
	}
	entries, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("%w: list audit entries: %w", shared.ErrStorage, err)
	}
	return entries, nil
}
