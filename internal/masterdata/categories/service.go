package categories

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
)

// Lister is the read side used by Service.
type Lister interface {
	List(ctx context.Context) ([]Category, error)
}

type Service struct {
	repo Lister
}

func NewService(repo Lister) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	categories, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list categories: %w", shared.ErrStorage, err)
	}
	return categories, nil
}
