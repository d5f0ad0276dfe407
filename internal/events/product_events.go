package events

// Product catalog event types consumed by the order service to keep
// denormalized order snapshots honest.
const (
	EventTypeProductUpdated = "product.updated"
	EventTypeProductDeleted = "product.deleted"
)

type ProductUpdatedData struct {
	ProductID int64    `json:"product_id"`
	Name      string   `json:"name,omitempty"`
	Changes   []string `json:"changes,omitempty"`
}

type ProductDeletedData struct {
	ProductID int64 `json:"product_id"`
}
