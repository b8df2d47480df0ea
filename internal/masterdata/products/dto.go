package products

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/references"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
)

// AddInput carries a new product. Category and supplier are raw candidates
// resolved inside the transaction.
type AddInput struct {
	Name       string `json:"name" validate:"required,max=255"`
	SKU        string `json:"sku" validate:"required,max=64"`
	CategoryID references.Candidate
	SupplierID references.Candidate
	Quantity   int64 `json:"quantity" validate:"gte=0"`
	Price      decimal.Decimal
	Location   *string
	Actor      string
}

// Patch is a sparse update restricted to the updatable fields. Nil pointers
// and unset optionals leave the stored value untouched.
type Patch struct {
	Name       *string
	SKU        *string
	CategoryID *references.Candidate
	SupplierID *references.Candidate
	Quantity   *int64
	Price      *decimal.Decimal
	Location   OptionalString

	// Submitted holds the allow-listed fields exactly as the client sent them.
	Submitted map[string]json.RawMessage
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.SKU == nil && p.CategoryID == nil && p.SupplierID == nil &&
		p.Quantity == nil && p.Price == nil && !p.Location.Set
}

// auditDetails returns the requested changes for the audit trail.
func (p Patch) auditDetails() map[string]any {
	details := make(map[string]any)
	if len(p.Submitted) > 0 {
		for k, v := range p.Submitted {
			details[k] = v
		}
		return details
	}
	if p.Name != nil {
		details["name"] = *p.Name
	}
	if p.SKU != nil {
		details["sku"] = *p.SKU
	}
	if p.CategoryID != nil {
		details["category_id"] = string(*p.CategoryID)
	}
	if p.SupplierID != nil {
		details["supplier_id"] = string(*p.SupplierID)
	}
	if p.Quantity != nil {
		details["quantity"] = *p.Quantity
	}
	if p.Price != nil {
		details["price"] = p.Price.String()
	}
	if p.Location.Set {
		details["location"] = p.Location.Value
	}
	return details
}

// patchFields lists the updatable fields with their accepted aliases.
var patchFields = []struct {
	name    string
	aliases []string
}{
	{name: "name"},
	{name: "sku"},
	{name: "category_id", aliases: []string{"categoryId"}},
	{name: "supplier_id", aliases: []string{"supplierId"}},
	{name: "quantity"},
	{name: "price"},
	{name: "location"},
}

// DecodePatch builds a Patch from a JSON object. Keys outside the
// updatable fields are ignored.
func DecodePatch(body []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return Patch{}, fmt.Errorf("%w: body must be a JSON object", shared.ErrValidation)
	}

	patch := Patch{Submitted: make(map[string]json.RawMessage)}
	for _, field := range patchFields {
		value, ok := raw[field.name]
		if !ok {
			for _, alias := range field.aliases {
				if value, ok = raw[alias]; ok {
					break
				}
			}
		}
		if !ok {
			continue
		}
		if err := patch.set(field.name, value); err != nil {
			return Patch{}, err
		}
		patch.Submitted[field.name] = value
	}
	return patch, nil
}

func (p *Patch) set(field string, value json.RawMessage) error {
	switch field {
	case "name", "sku":
		var s string
		if isNull(value) || json.Unmarshal(value, &s) != nil {
			return fmt.Errorf("%w: %s must be a string", shared.ErrValidation, field)
		}
		if field == "name" {
			p.Name = &s
		} else {
			p.SKU = &s
		}
	case "category_id":
		c := references.CandidateFromJSON(value)
		p.CategoryID = &c
	case "supplier_id":
		c := references.CandidateFromJSON(value)
		p.SupplierID = &c
	case "quantity":
		var q int64
		if isNull(value) || json.Unmarshal(value, &q) != nil {
			return fmt.Errorf("%w: quantity must be an integer", shared.ErrValidation)
		}
		p.Quantity = &q
	case "price":
		price, err := decodeDecimal(value)
		if err != nil {
			return fmt.Errorf("%w: price must be numeric", shared.ErrValidation)
		}
		p.Price = &price
	case "location":
		p.Location.Set = true
		if isNull(value) {
			return nil
		}
		var s string
		if json.Unmarshal(value, &s) != nil {
			return fmt.Errorf("%w: location must be a string or null", shared.ErrValidation)
		}
		p.Location.Value = &s
	}
	return nil
}

// ParseDelta decodes a quantity adjustment. Numbers and numeric strings are
// accepted, fractional values included. Magnitudes beyond the quantity range
// are rejected.
func ParseDelta(raw json.RawMessage) (decimal.Decimal, error) {
	delta, err := decodeDecimal(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: delta must be numeric", shared.ErrValidation)
	}
	if err := validateDelta(delta); err != nil {
		return decimal.Decimal{}, err
	}
	return delta, nil
}

func decodeDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	if isNull(raw) {
		return decimal.Decimal{}, fmt.Errorf("value is required")
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(bytes.TrimSpace(raw)); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// addRequest is the JSON body accepted by POST /products.
type addRequest struct {
	Name         string          `json:"name"`
	SKU          string          `json:"sku"`
	CategoryID   json.RawMessage `json:"category_id"`
	CategoryIDCC json.RawMessage `json:"categoryId"`
	SupplierID   json.RawMessage `json:"supplier_id"`
	SupplierIDCC json.RawMessage `json:"supplierId"`
	Quantity     *int64          `json:"quantity"`
	Price        json.RawMessage `json:"price"`
	Location     *string         `json:"location"`
}

func (req addRequest) input(actor string) (AddInput, error) {
	in := AddInput{
		Name:       req.Name,
		SKU:        req.SKU,
		CategoryID: references.CandidateFromJSON(firstPresent(req.CategoryID, req.CategoryIDCC)),
		SupplierID: references.CandidateFromJSON(firstPresent(req.SupplierID, req.SupplierIDCC)),
		Location:   req.Location,
		Actor:      actor,
	}
	if req.Quantity != nil {
		in.Quantity = *req.Quantity
	}
	if !isNull(req.Price) {
		price, err := decodeDecimal(req.Price)
		if err != nil {
			return AddInput{}, fmt.Errorf("%w: price must be numeric", shared.ErrValidation)
		}
		in.Price = price
	}
	return in, nil
}

func firstPresent(values ...json.RawMessage) json.RawMessage {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}

type adjustRequest struct {
	Delta json.RawMessage `json:"delta"`
}
