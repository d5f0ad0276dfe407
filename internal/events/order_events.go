package events

import "time"

// Order lifecycle event types published by the order service.
const (
	EventTypeOrderCreated       = "order.created"
	EventTypeOrderStatusUpdated = "order.status_updated"
	EventTypeOrderCancelled     = "order.cancelled"
	EventTypeOrderFulfilled     = "order.fulfilled"
	EventTypeOrderShipped       = "order.shipped"
	EventTypeOrderDelivered     = "order.delivered"
	EventTypeOrderReturned      = "order.returned"
	EventTypeOrderRefunded      = "order.refunded"
)

// OrderItemData is the line-item snapshot carried inside order events.
// Monetary values travel as strings to avoid float drift on the wire.
type OrderItemData struct {
	ProductID   int64  `json:"product_id"`
	VariantID   *int64 `json:"variant_id,omitempty"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price,omitempty"`
}

type OrderCreatedData struct {
	OrderID         int64             `json:"order_id"`
	OrderNumber     string            `json:"order_number"`
	UserID          int64             `json:"user_id"`
	TotalAmount     string            `json:"total_amount"`
	Items           []OrderItemData   `json:"items"`
	BillingAddress  map[string]string `json:"billing_address,omitempty"`
	ShippingAddress map[string]string `json:"shipping_address,omitempty"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

type OrderStatusUpdatedData struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      int64     `json:"user_id"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	Reason      string    `json:"reason,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrderCancelledData carries the order's line items so the inventory side
// can release reservations without a cross-service lookup.
type OrderCancelledData struct {
	OrderID      int64           `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	UserID       int64           `json:"user_id"`
	Reason       string          `json:"reason"`
	RefundAmount string          `json:"refund_amount,omitempty"`
	Items        []OrderItemData `json:"items"`
	CancelledAt  time.Time       `json:"cancelled_at"`
}

type OrderFulfilledData struct {
	OrderID        int64           `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	UserID         int64           `json:"user_id"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	Items          []OrderItemData `json:"items"`
	FulfilledAt    time.Time       `json:"fulfilled_at"`
}

type OrderShippedData struct {
	OrderID        int64     `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	UserID         int64     `json:"user_id"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	ShippedAt      time.Time `json:"shipped_at"`
}

type OrderDeliveredData struct {
	OrderID             int64     `json:"order_id"`
	OrderNumber         string    `json:"order_number"`
	UserID              int64     `json:"user_id"`
	DeliveryConfirmedBy string    `json:"delivery_confirmed_by,omitempty"`
	DeliveredAt         time.Time `json:"delivered_at"`
}

type OrderReturnedData struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      int64           `json:"user_id"`
	Reason      string          `json:"reason,omitempty"`
	Items       []OrderItemData `json:"items"`
	ReturnedAt  time.Time       `json:"returned_at"`
}

type OrderRefundedData struct {
	OrderID      int64     `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	UserID       int64     `json:"user_id"`
	RefundAmount string    `json:"refund_amount"`
	RefundedAt   time.Time `json:"refunded_at"`
}
