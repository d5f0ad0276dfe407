package events

// Inventory event types published by the product service after quantity
// mutations. Downstream consumers use them for alerting and read models.
const (
	EventTypeInventoryUpdated    = "inventory.updated"
	EventTypeInventoryLowStock   = "inventory.low_stock"
	EventTypeInventoryOutOfStock = "inventory.out_of_stock"
)

type InventoryUpdatedData struct {
	ProductID        *int64 `json:"product_id"`
	VariantID        *int64 `json:"variant_id"`
	Quantity         int    `json:"quantity"`
	ReservedQuantity int    `json:"reserved_quantity"`
	PreviousQuantity int    `json:"previous_quantity"`
}

type InventoryLowStockData struct {
	ProductID         *int64 `json:"product_id"`
	VariantID         *int64 `json:"variant_id"`
	AvailableQuantity int    `json:"available_quantity"`
	ReorderLevel      int    `json:"reorder_level"`
}

type InventoryOutOfStockData struct {
	ProductID *int64 `json:"product_id"`
	VariantID *int64 `json:"variant_id"`
}
