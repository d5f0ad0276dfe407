package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-events/internal/apperr"
)

var (
	ErrNotFound          = apperr.New(apperr.NotFound, "order not found")
	ErrInvalidTransition = apperr.New(apperr.Conflict, "invalid order status transition")
)

// totalTolerance absorbs rounding drift between the stored components and
// the stored total at creation time.
var totalTolerance = decimal.NewFromFloat(0.01)

// Item is a snapshot of the catalog line at order time, immutable once the
// order is created.
type Item struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	VariantID   *int64          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         int64           `json:"user_id"`
	Status         Status          `json:"status"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Items          []Item          `json:"items"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Validate checks the creation invariants: at least one line item, positive
// quantities, and a total that matches its components within tolerance.
func (o *Order) Validate() error {
	if o.OrderNumber == "" {
		return apperr.New(apperr.Validation, "order number is required")
	}
	if o.UserID == 0 {
		return apperr.New(apperr.Validation, "user id is required")
	}
	if len(o.Items) == 0 {
		return apperr.New(apperr.Validation, "order must have at least one item")
	}
	for _, item := range o.Items {
		if item.ProductID == 0 {
			return apperr.New(apperr.Validation, "item product id is required")
		}
		if item.Quantity <= 0 {
			return apperr.New(apperr.Validation, fmt.Sprintf("item quantity must be positive for product %d", item.ProductID))
		}
	}

	expected := o.Subtotal.Add(o.TaxAmount).Add(o.ShippingCost).Sub(o.DiscountAmount)
	if o.TotalAmount.Sub(expected).Abs().GreaterThan(totalTolerance) {
		return apperr.New(apperr.Validation, fmt.Sprintf("total %s does not match components %s", o.TotalAmount, expected))
	}
	return nil
}
