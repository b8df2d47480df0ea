package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product entity
type Product struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	SKU        string          `json:"sku"`
	CategoryID *int64          `json:"category_id"`
	SupplierID *int64          `json:"supplier_id"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Location   *string         `json:"location"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ProductView is a product joined with its category and supplier names.
type ProductView struct {
	Product
	CategoryName *string `json:"category_name"`
	SupplierName *string `json:"supplier_name"`
}

// OptionalString is a patch value where Set distinguishes an explicit null
// from an absent field.
type OptionalString struct {
	Set   bool
	Value *string
}

// OptionalInt64 is the integer counterpart of OptionalString.
type OptionalInt64 struct {
	Set   bool
	Value *int64
}

// Changes is a resolved update applied to one product row.
type Changes struct {
	Name       *string
	SKU        *string
	CategoryID OptionalInt64
	SupplierID OptionalInt64
	Quantity   *int64
	Price      *decimal.Decimal
	Location   OptionalString
}
