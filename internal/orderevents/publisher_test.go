package orderevents

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-events/internal/events"
	"github.com/andreasstove999/ecommerce-events/internal/order"
)

type capturedEvent struct {
	env   events.Envelope
	topic string
}

type capturePublisher struct {
	published []capturedEvent
	err       error
}

func (c *capturePublisher) Publish(ctx context.Context, env events.Envelope, topic string) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, capturedEvent{env: env, topic: topic})
	return nil
}

func (c *capturePublisher) last(t *testing.T) capturedEvent {
	t.Helper()
	if len(c.published) == 0 {
		t.Fatalf("nothing published")
	}
	return c.published[len(c.published)-1]
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testOrder() *order.Order {
	return &order.Order{
		ID:          7,
		OrderNumber: "ORD-7",
		UserID:      42,
		Status:      order.StatusPending,
		TotalAmount: dec("99.90"),
		Items: []order.Item{
			{ProductID: 1, ProductName: "widget", Quantity: 2, UnitPrice: dec("49.95")},
		},
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestOrderCreatedEvent(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	lp := NewLifecyclePublisher(pub, discardLogger())

	o := testOrder()
	corr := o.ID
	if err := lp.OrderCreated(context.Background(), o, &corr); err != nil {
		t.Fatalf("OrderCreated: %v", err)
	}

	got := pub.last(t)
	if got.topic != events.TopicOrderEvents {
		t.Fatalf("topic=%s want=%s", got.topic, events.TopicOrderEvents)
	}
	env := got.env
	if env.EventType != events.EventTypeOrderCreated {
		t.Fatalf("type=%s", env.EventType)
	}
	if env.SourceService != "order-service" {
		t.Fatalf("source=%s", env.SourceService)
	}
	if env.PartitionKey() != "7" {
		t.Fatalf("partition key=%q want=%q", env.PartitionKey(), "7")
	}

	var data events.OrderCreatedData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if data.OrderID != 7 || data.OrderNumber != "ORD-7" || data.UserID != 42 {
		t.Fatalf("payload=%+v", data)
	}
	if data.TotalAmount != "99.9" {
		t.Fatalf("total=%q", data.TotalAmount)
	}
	if len(data.Items) != 1 || data.Items[0].UnitPrice != "49.95" || data.Items[0].Quantity != 2 {
		t.Fatalf("items=%+v", data.Items)
	}
}

func TestCancelledEventCarriesItems(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	lp := NewLifecyclePublisher(pub, discardLogger())

	o := testOrder()
	refund := dec("99.90")
	corr := o.ID
	if err := lp.Cancelled(context.Background(), o, "payment failed", &refund, &corr); err != nil {
		t.Fatalf("Cancelled: %v", err)
	}

	var data events.OrderCancelledData
	if err := json.Unmarshal(pub.last(t).env.Data, &data); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if data.Reason != "payment failed" {
		t.Fatalf("reason=%q", data.Reason)
	}
	if data.RefundAmount != "99.9" {
		t.Fatalf("refund=%q", data.RefundAmount)
	}
	if len(data.Items) != 1 || data.Items[0].ProductID != 1 {
		t.Fatalf("cancellation must carry items for the release path: %+v", data.Items)
	}
}

func TestStatusUpdatedEvent(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	lp := NewLifecyclePublisher(pub, discardLogger())

	o := testOrder()
	corr := o.ID
	if err := lp.StatusUpdated(context.Background(), o, order.StatusPending, order.StatusConfirmed, "payment processed", &corr); err != nil {
		t.Fatalf("StatusUpdated: %v", err)
	}

	var data events.OrderStatusUpdatedData
	if err := json.Unmarshal(pub.last(t).env.Data, &data); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if data.OldStatus != "pending" || data.NewStatus != "confirmed" {
		t.Fatalf("transition=%s->%s", data.OldStatus, data.NewStatus)
	}
}

func TestPublishFailurePropagates(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{err: context.DeadlineExceeded}
	lp := NewLifecyclePublisher(pub, discardLogger())

	o := testOrder()
	if err := lp.OrderCreated(context.Background(), o, nil); err == nil {
		t.Fatalf("expected publish error to propagate")
	}
}
