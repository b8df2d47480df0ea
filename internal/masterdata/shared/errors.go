package shared

import (
	"errors"

	"github.com/odyssey-erp/odyssey-inventory/internal/platform/httpx"
)

var (
	// ErrValidation marks malformed or missing input. It never reaches the store.
	ErrValidation = httpx.ErrValidation
	// ErrConflict marks a uniqueness violation on a product SKU.
	ErrConflict = httpx.ErrConflict
	// ErrNotFound marks a missing target row.
	ErrNotFound = httpx.ErrNotFound
	// ErrStorage wraps failures of the underlying transactional store.
	ErrStorage = errors.New("storage failure")
)
