package inventory

import (
	"time"

	"github.com/andreasstove999/ecommerce-events/internal/apperr"
)

var (
	ErrNotFound          = apperr.New(apperr.NotFound, "inventory record not found")
	ErrInsufficientStock = apperr.New(apperr.Conflict, "insufficient available stock")
	ErrIdentity          = apperr.New(apperr.Validation, "exactly one of product id or variant id must be set")
)

// Record tracks stock for a product or a variant, never both. Reserved units
// are held against unfulfilled orders and count against availability.
type Record struct {
	ID               int64
	ProductID        *int64
	VariantID        *int64
	Quantity         int
	ReservedQuantity int
	ReorderLevel     *int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available is the derived sellable quantity, never negative.
func (r Record) Available() int {
	available := r.Quantity - r.ReservedQuantity
	if available < 0 {
		return 0
	}
	return available
}

func (r Record) LowStock() bool {
	return r.ReorderLevel != nil && r.Available() <= *r.ReorderLevel
}

func (r Record) OutOfStock() bool {
	return r.Available() == 0
}

// ValidateIdentity enforces the product-XOR-variant invariant at creation.
func (r Record) ValidateIdentity() error {
	if (r.ProductID == nil) == (r.VariantID == nil) {
		return ErrIdentity
	}
	return nil
}
