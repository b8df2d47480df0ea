package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-inventory/internal/audit"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/references"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
)

const defaultTxTimeout = 10 * time.Second

// Mutation outcomes reported to the MutationObserver.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// RepositoryPort is the persistence surface the service depends on.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context) ([]ProductView, error)
	Get(ctx context.Context, id int64) (ProductView, error)
}

// MutationObserver receives one notification per finished mutation.
type MutationObserver interface {
	ObserveMutation(action, outcome string)
}

// ServiceConfig tunes the service.
type ServiceConfig struct {
	// TxTimeout bounds a single transaction. It applies even after the
	// caller's context is cancelled.
	TxTimeout time.Duration
	Logger    *slog.Logger
}

// Service implements the product mutation protocol: every mutation runs in
// one transaction and commits together with exactly one audit entry.
type Service struct {
	repo      RepositoryPort
	refs      *references.Validator
	audit     *audit.Logger
	observer  MutationObserver
	validate  *validator.Validate
	txTimeout time.Duration
	logger    *slog.Logger
}

// NewService constructs Service. A nil observer disables mutation metrics.
func NewService(repo RepositoryPort, refs *references.Validator, auditLogger *audit.Logger, observer MutationObserver, cfg ServiceConfig) *Service {
	if cfg.TxTimeout <= 0 {
		cfg.TxTimeout = defaultTxTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if refs == nil {
		refs = references.NewValidator(cfg.Logger)
	}
	if auditLogger == nil {
		auditLogger = audit.NewLogger()
	}
	return &Service{
		repo:      repo,
		refs:      refs,
		audit:     auditLogger,
		observer:  observer,
		validate:  newValidator(),
		txTimeout: cfg.TxTimeout,
		logger:    cfg.Logger,
	}
}

// List returns all products joined with their category and supplier names.
func (s *Service) List(ctx context.Context) ([]ProductView, error) {
	products, err := s.repo.List(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("list products: %w", err))
	}
	return products, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (ProductView, error) {
	product, err := s.repo.Get(ctx, id)
	if err != nil {
		return ProductView{}, classify(fmt.Errorf("get product %d: %w", id, err))
	}
	return product, nil
}

// Add inserts a product and returns its id.
func (s *Service) Add(ctx context.Context, in AddInput) (int64, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.TrimSpace(in.SKU)
	if err := s.validateAdd(in); err != nil {
		return 0, s.finish(audit.ActionAdd, err)
	}

	var id int64
	err := s.inTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.SKUTaken(ctx, in.SKU, 0)
		if err != nil {
			return fmt.Errorf("check sku: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: sku %q already exists", shared.ErrConflict, in.SKU)
		}

		refs, err := s.refs.ResolveAll(ctx, tx.References(), in.CategoryID, in.SupplierID)
		if err != nil {
			return err
		}

		product := Product{
			Name:       in.Name,
			SKU:        in.SKU,
			CategoryID: refs.CategoryID,
			SupplierID: refs.SupplierID,
			Quantity:   in.Quantity,
			Price:      in.Price,
			Location:   in.Location,
		}
		id, err = tx.Insert(ctx, product)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}

		return s.audit.Record(ctx, tx.Audit(), &id, audit.ActionAdd, in.Actor, map[string]any{
			"name":        product.Name,
			"sku":         product.SKU,
			"category_id": product.CategoryID,
			"supplier_id": product.SupplierID,
			"quantity":    product.Quantity,
			"price":       product.Price,
			"location":    product.Location,
		})
	})
	if err != nil {
		return 0, s.finish(audit.ActionAdd, err)
	}
	s.finish(audit.ActionAdd, nil)
	return id, nil
}

// Update applies a sparse patch. Fields absent from the patch keep their
// stored values.
func (s *Service) Update(ctx context.Context, id int64, patch Patch, actor string) error {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.SKU != nil {
		sku := strings.TrimSpace(*patch.SKU)
		patch.SKU = &sku
	}
	if err := s.validatePatch(patch); err != nil {
		return s.finish(audit.ActionUpdate, err)
	}

	err := s.inTx(ctx, func(ctx context.Context, tx TxRepository) error {
		changes := Changes{
			Name:     patch.Name,
			SKU:      patch.SKU,
			Quantity: patch.Quantity,
			Price:    patch.Price,
			Location: patch.Location,
		}

		if patch.SKU != nil {
			taken, err := tx.SKUTaken(ctx, *patch.SKU, id)
			if err != nil {
				return fmt.Errorf("check sku: %w", err)
			}
			if taken {
				return fmt.Errorf("%w: sku %q already exists", shared.ErrConflict, *patch.SKU)
			}
		}
		if patch.CategoryID != nil {
			resolved, err := s.refs.Resolve(ctx, tx.References(), references.KindCategory, *patch.CategoryID)
			if err != nil {
				return err
			}
			changes.CategoryID = OptionalInt64{Set: true, Value: resolved}
		}
		if patch.SupplierID != nil {
			resolved, err := s.refs.Resolve(ctx, tx.References(), references.KindSupplier, *patch.SupplierID)
			if err != nil {
				return err
			}
			changes.SupplierID = OptionalInt64{Set: true, Value: resolved}
		}

		affected, err := tx.Update(ctx, id, changes)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		if affected == 0 {
			return ErrProductNotFound
		}

		return s.audit.Record(ctx, tx.Audit(), &id, audit.ActionUpdate, actor, patch.auditDetails())
	})
	return s.finish(audit.ActionUpdate, err)
}

// Delete removes a product. The audit entry keeps the deleted id.
func (s *Service) Delete(ctx context.Context, id int64, actor string) error {
	err := s.inTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}

		affected, err := tx.Delete(ctx, id)
		if err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		if affected == 0 {
			return ErrProductNotFound
		}

		return s.audit.Record(ctx, tx.Audit(), &id, audit.ActionDelete, actor, map[string]any{
			"name": product.Name,
			"sku":  product.SKU,
		})
	})
	return s.finish(audit.ActionDelete, err)
}

// AdjustQuantity adds delta to the stored quantity under a row lock and
// returns the new quantity. The result is clamped at zero and rounded half
// away from zero.
func (s *Service) AdjustQuantity(ctx context.Context, id int64, delta decimal.Decimal, actor string) (int64, error) {
	if err := validateDelta(delta); err != nil {
		return 0, s.finish(audit.ActionQuantityAdjust, err)
	}

	var quantity int64
	err := s.inTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		next := decimal.NewFromInt(product.Quantity).Add(delta)
		if next.IsNegative() {
			next = decimal.Zero
		}
		next = next.Round(0)
		if next.GreaterThan(maxQuantity) {
			return fmt.Errorf("%w: quantity out of range", shared.ErrValidation)
		}
		quantity = next.IntPart()

		if err := tx.SetQuantity(ctx, id, quantity); err != nil {
			return fmt.Errorf("set quantity: %w", err)
		}

		return s.audit.Record(ctx, tx.Audit(), &id, audit.ActionQuantityAdjust, actor, map[string]any{
			"delta":             json.Number(delta.String()),
			"previous_quantity": product.Quantity,
			"new_quantity":      quantity,
		})
	})
	if err != nil {
		return 0, s.finish(audit.ActionQuantityAdjust, err)
	}
	s.finish(audit.ActionQuantityAdjust, nil)
	return quantity, nil
}

// inTx detaches the transaction from caller cancellation so that it always
// ends in commit or rollback, bounded by the configured timeout.
func (s *Service) inTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
	defer cancel()
	return classify(s.repo.WithTx(ctx, fn))
}

func (s *Service) finish(action audit.Action, err error) error {
	outcome := OutcomeCommitted
	switch {
	case err == nil:
	case errors.Is(err, shared.ErrStorage):
		outcome = OutcomeFailed
		s.logger.Error("product mutation failed", slog.String("action", string(action)), slog.Any("error", err))
	default:
		outcome = OutcomeRejected
	}
	if s.observer != nil {
		s.observer.ObserveMutation(string(action), outcome)
	}
	return err
}

// classify keeps domain errors intact and marks everything else as a
// storage failure.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrConflict),
		errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrStorage):
		return err
	default:
		return fmt.Errorf("%w: %w", shared.ErrStorage, err)
	}
}
