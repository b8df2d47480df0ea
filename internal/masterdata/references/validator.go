// Package references resolves category and supplier identifiers submitted
// with a product. Unknown or malformed identifiers resolve to no reference
// instead of failing the write.
package references

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/categories"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/suppliers"
	"github.com/odyssey-erp/odyssey-inventory/internal/platform/db"
)

// Kind names a referenced table.
type Kind string

const (
	KindCategory Kind = "category"
	KindSupplier Kind = "supplier"
)

// Candidate is the raw textual form of a submitted identifier. The empty
// candidate means the reference was absent or null.
type Candidate string

// CandidateFromJSON turns a raw JSON value into a Candidate. Strings are
// unquoted, null becomes absent, anything else is kept verbatim.
func CandidateFromJSON(raw json.RawMessage) Candidate {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return Candidate(strings.TrimSpace(s))
	}
	return Candidate(text)
}

// ID parses the candidate as a positive integer identifier.
func (c Candidate) ID() (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(c)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Lookup checks row existence in a referenced table.
type Lookup interface {
	Exists(ctx context.Context, kind Kind, id int64) (bool, error)
}

// Resolved carries validated references; nil means no reference.
type Resolved struct {
	CategoryID *int64
	SupplierID *int64
}

// Validator resolves candidates against a Lookup.
type Validator struct {
	logger *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// Resolve returns the identifier when the referenced row exists and nil
// otherwise. Only lookup failures are returned as errors.
func (v *Validator) Resolve(ctx context.Context, lookup Lookup, kind Kind, c Candidate) (*int64, error) {
	if c == "" {
		return nil, nil
	}
	id, ok := c.ID()
	if !ok {
		v.logger.Debug("reference downgraded", slog.String("kind", string(kind)), slog.String("value", string(c)), slog.String("reason", "not an identifier"))
		return nil, nil
	}
	exists, err := lookup.Exists(ctx, kind, id)
	if err != nil {
		return nil, fmt.Errorf("%w: check %s %d: %w", shared.ErrStorage, kind, id, err)
	}
	if !exists {
		v.logger.Debug("reference downgraded", slog.String("kind", string(kind)), slog.Int64("id", id), slog.String("reason", "not found"))
		return nil, nil
	}
	return &id, nil
}

// ResolveAll resolves a category and a supplier candidate.
func (v *Validator) ResolveAll(ctx context.Context, lookup Lookup, category, supplier Candidate) (Resolved, error) {
	var (
		out Resolved
		err error
	)
	if out.CategoryID, err = v.Resolve(ctx, lookup, KindCategory, category); err != nil {
		return Resolved{}, err
	}
	if out.SupplierID, err = v.Resolve(ctx, lookup, KindSupplier, supplier); err != nil {
		return Resolved{}, err
	}
	return out, nil
}

type tables struct {
	categories *categories.Repository
	suppliers  *suppliers.Repository
}

// NewLookup returns a Lookup over the categories and suppliers tables
// reachable through q, typically an open transaction.
func NewLookup(q db.Querier) Lookup {
	return tables{
		categories: categories.NewRepository(q),
		suppliers:  suppliers.NewRepository(q),
	}
}

func (t tables) Exists(ctx context.Context, kind Kind, id int64) (bool, error) {
	switch kind {
	case KindCategory:
		return t.categories.Exists(ctx, id)
	case KindSupplier:
		return t.suppliers.Exists(ctx, id)
	default:
		return false, fmt.Errorf("references: unknown kind %q", kind)
	}
}
