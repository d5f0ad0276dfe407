package events

import "testing"

func TestTopicFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		eventType string
		want      string
	}{
		{EventTypeOrderCreated, TopicOrderEvents},
		{EventTypeOrderCancelled, TopicOrderEvents},
		{EventTypeOrderFulfilled, TopicOrderEvents},
		{EventTypePaymentProcessed, TopicPaymentEvents},
		{EventTypePaymentFailed, TopicPaymentEvents},
		{EventTypeRefundProcessed, TopicPaymentEvents},
		{EventTypeProductUpdated, TopicProductEvents},
		{"category.updated", TopicProductEvents},
		{EventTypeInventoryUpdated, TopicInventoryEvents},
		{EventTypeInventoryLowStock, TopicInventoryEvents},
		{EventTypeInventoryOutOfStock, TopicInventoryEvents},
		// Unknown families fall back to the product topic.
		{"review.created", TopicProductEvents},
		{"nodotatall", TopicProductEvents},
		{"", TopicProductEvents},
	}

	for _, tt := range tests {
		if got := TopicFor(tt.eventType); got != tt.want {
			t.Errorf("TopicFor(%q)=%q want=%q", tt.eventType, got, tt.want)
		}
	}
}
