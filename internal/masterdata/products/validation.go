package products

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func (s *Service) validateAdd(in AddInput) error {
	if err := s.validate.Struct(in); err != nil {
		return validationError(err)
	}
	return validatePrice(in.Price)
}

func (s *Service) validatePatch(p Patch) error {
	if p.IsEmpty() {
		return fmt.Errorf("%w: no updatable fields supplied", shared.ErrValidation)
	}
	if p.Name != nil {
		if err := s.validate.Var(strings.TrimSpace(*p.Name), "required,max=255"); err != nil {
			return fieldError("name", err)
		}
	}
	if p.SKU != nil {
		if err := s.validate.Var(strings.TrimSpace(*p.SKU), "required,max=64"); err != nil {
			return fieldError("sku", err)
		}
	}
	if p.Quantity != nil {
		if err := s.validate.Var(*p.Quantity, "gte=0"); err != nil {
			return fieldError("quantity", err)
		}
	}
	if p.Price != nil {
		return validatePrice(*p.Price)
	}
	return nil
}

// Decimal inputs must keep their exponent within this window. Arithmetic on
// decimals rescales to a common exponent, so an unbounded one is unbounded
// work.
const (
	minExponent = -18
	maxExponent = 18

	// priceScale matches the NUMERIC(14, 2) price column.
	priceScale = 2
)

var (
	maxQuantity = decimal.NewFromInt(math.MaxInt64)
	maxPrice    = decimal.New(1, 12)
)

func exponentInRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= minExponent && exp <= maxExponent
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", shared.ErrValidation)
	}
	if !exponentInRange(price) || price.GreaterThanOrEqual(maxPrice) {
		return fmt.Errorf("%w: price must be below %s", shared.ErrValidation, maxPrice.String())
	}
	if !price.Equal(price.Round(priceScale)) {
		return fmt.Errorf("%w: price must have at most %d decimal places", shared.ErrValidation, priceScale)
	}
	return nil
}

func validateDelta(delta decimal.Decimal) error {
	if !exponentInRange(delta) || delta.Abs().GreaterThan(maxQuantity) {
		return fmt.Errorf("%w: delta out of range", shared.ErrValidation)
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return fieldError(verrs[0].Field(), verrs[0])
}

func fieldError(field string, err error) error {
	var fe validator.FieldError
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe = verrs[0]
	} else if f, ok := err.(validator.FieldError); ok {
		fe = f
	}
	if fe == nil {
		return fmt.Errorf("%w: %s is invalid", shared.ErrValidation, field)
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", shared.ErrValidation, field)
	case "max":
		return fmt.Errorf("%w: %s must be at most %s characters", shared.ErrValidation, field, fe.Param())
	case "gte":
		return fmt.Errorf("%w: %s must not be negative", shared.ErrValidation, field)
	default:
		return fmt.Errorf("%w: %s failed %s", shared.ErrValidation, field, fe.Tag())
	}
}
