package events

import "strings"

// Physical topic names. Multiple event types share one topic so that related
// events keep their relative order per partition key.
const (
	TopicOrderEvents     = "order.events"
	TopicPaymentEvents   = "payment.events"
	TopicProductEvents   = "product.events"
	TopicInventoryEvents = "inventory.events"
)

// TopicFor maps a logical event type to its physical topic. Unknown types
// fall back to the product topic, matching the catalog-owned default.
func TopicFor(eventType string) string {
	prefix := eventType
	if i := strings.IndexByte(eventType, '.'); i >= 0 {
		prefix = eventType[:i]
	}

	switch prefix {
	case "order":
		return TopicOrderEvents
	case "payment", "refund":
		return TopicPaymentEvents
	case "product", "category":
		return TopicProductEvents
	case "inventory":
		return TopicInventoryEvents
	default:
		return TopicProductEvents
	}
}
