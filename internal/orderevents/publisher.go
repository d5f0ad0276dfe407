// Package orderevents holds the order service's side of the event contract:
// the lifecycle publisher emitting order state transitions and the consumers
// reacting to payment and catalog events.
package orderevents

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-events/internal/events"
	"github.com/andreasstove999/ecommerce-events/internal/order"
)

const sourceService = "order-service"

// EventPublisher is the narrow broker surface the lifecycle publisher needs.
type EventPublisher interface {
	Publish(ctx context.Context, env events.Envelope, topic string) error
}

// LifecyclePublisher emits one event per order state transition. Callers
// publish only after the local state change is committed; a publish failure
// is an observability gap, never a rollback.
type LifecyclePublisher struct {
	pub    EventPublisher
	logger *log.Logger
}

func NewLifecyclePublisher(pub EventPublisher, logger *log.Logger) *LifecyclePublisher {
	return &LifecyclePublisher{pub: pub, logger: logger}
}

func (p *LifecyclePublisher) publish(ctx context.Context, eventType string, correlationID *int64, payload any) error {
	env, err := events.NewEnvelope(eventType, sourceService, correlationID, payload)
	if err != nil {
		return err
	}
	if err := p.pub.Publish(ctx, env, events.TopicOrderEvents); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func itemData(items []order.Item) []events.OrderItemData {
	out := make([]events.OrderItemData, 0, len(items))
	for _, item := range items {
		out = append(out, events.OrderItemData{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.String(),
		})
	}
	return out
}

func (p *LifecyclePublisher) OrderCreated(ctx context.Context, o *order.Order, correlationID *int64) error {
	return p.publish(ctx, events.EventTypeOrderCreated, correlationID, events.OrderCreatedData{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		TotalAmount: o.TotalAmount.String(),
		Items:       itemData(o.Items),
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
	})
}

func (p *LifecyclePublisher) StatusUpdated(ctx context.Context, o *order.Order, oldStatus, newStatus order.Status, reason string, correlationID *int64) error {
	return p.publish(ctx, events.EventTypeOrderStatusUpdated, correlationID, events.OrderStatusUpdatedData{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		OldStatus:   string(oldStatus),
		NewStatus:   string(newStatus),
		Reason:      reason,
		UpdatedAt:   time.Now().UTC(),
	})
}

func (p *LifecyclePublisher) Cancelled(ctx context.Context, o *order.Order, reason string, refundAmount *decimal.Decimal, correlationID *int64) error {
	data := events.OrderCancelledData{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Reason:      reason,
		Items:       itemData(o.Items),
		CancelledAt: time.Now().UTC(),
	}
	if refundAmount != nil {
		data.RefundAmount = refundAmount.String()
	}
	return p.publish(ctx, events.EventTypeOrderCancelled, correlationID, data)
}

func (p *LifecyclePublisher) Fulfilled(ctx context.Context, o *order.Order, trackingNumber string, correlationID *int64) error {
	return p.publish(ctx, events.EventTypeOrderFulfilled, correlationID, events.OrderFulfilledData{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		TrackingNumber: trackingNumber,
		Items:          itemData(o.Items),
		FulfilledAt:    time.Now().UTC(),
	})
}

func (p *LifecyclePublisher) Shipped(ctx context.Context, o *order.Order, trackingNumber, carrier string, correlationID *int64) error {
	return p.publish(ctx, events.EventTypeOrderShipped, correlationID, events.OrderShippedData{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		TrackingNumber: trackingNumber,
		Carrier:        carrier,
		ShippedAt:      time.Now().UTC(),
	})
}

func (p *LifecyclePublisher) Delivered(ctx context.Context, o *order.Order, confirmedBy string, correlationID *int64) error {
	return p.publish(ctx, events.EventTypeOrderDelivered, correlationID, events.OrderDeliveredData{
		OrderID:             o.ID,
		OrderNumber:         o.OrderNumber,
		UserID:              o.UserID,
		DeliveryConfirmedBy: confirmedBy,
		DeliveredAt:         time.Now().UTC(),
	})
}

func (p *LifecyclePublisher) Returned(ctx context.Context, o *order.Order, reason string, correlationID *int64) error {
	return p.publish(ctx, events.EventTypeOrderReturned, correlationID, events.OrderReturnedData{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Reason:      reason,
		Items:       itemData(o.Items),
		ReturnedAt:  time.Now().UTC(),
	})
}

func (p *LifecyclePublisher) Refunded(ctx context.Context, o *order.Order, amount decimal.Decimal, correlationID *int64) error {
	return p.publish(ctx, events.EventTypeOrderRefunded, correlationID, events.OrderRefundedData{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		UserID:       o.UserID,
		RefundAmount: amount.String(),
		RefundedAt:   time.Now().UTC(),
	})
}
