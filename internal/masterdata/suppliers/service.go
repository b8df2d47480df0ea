package suppliers

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
)

type Lister interface {
	List(ctx context.Context) ([]Supplier, error)
}

type Service struct {
	repo Lister
}

func NewService(repo Lister) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Supplier, error) {
	suppliers, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list suppliers: %w", shared.ErrStorage, err)
	}
	return suppliers, nil
}
