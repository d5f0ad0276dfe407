package events

import "time"

// Payment event types consumed by the order service. The payment service is
// an external collaborator; these schemas mirror its published contract.
const (
	EventTypePaymentProcessed = "payment.processed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypeRefundProcessed  = "refund.processed"
)

type PaymentProcessedData struct {
	PaymentID     int64     `json:"payment_id"`
	OrderID       int64     `json:"order_id"`
	UserID        int64     `json:"user_id"`
	Amount        string    `json:"amount"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Status        string    `json:"status"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ProcessedAt   time.Time `json:"processed_at"`
}

type PaymentFailedData struct {
	PaymentID   int64     `json:"payment_id"`
	OrderID     int64     `json:"order_id"`
	UserID      int64     `json:"user_id"`
	Amount      string    `json:"amount"`
	ErrorReason string    `json:"error_reason"`
	ErrorCode   string    `json:"error_code,omitempty"`
	FailedAt    time.Time `json:"failed_at"`
}

type RefundProcessedData struct {
	RefundID     int64     `json:"refund_id"`
	PaymentID    int64     `json:"payment_id"`
	OrderID      int64     `json:"order_id"`
	RefundAmount string    `json:"refund_amount"`
	Reason       string    `json:"reason,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
}
