// Package coordinator applies order lifecycle events to stock levels. It
// reserves on order.created, deducts on order.fulfilled and releases on
// order.cancelled, with every delta guarded by the processed-events ledger
// so redelivered events never double-apply.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/andreasstove999/ecommerce-events/internal/events"
	"github.com/andreasstove999/ecommerce-events/internal/inventory"
	"github.com/andreasstove999/ecommerce-events/internal/ledger"
)

const sourceService = "inventory-service"

// EventPublisher is the slice of the broker publisher the coordinator needs.
type EventPublisher interface {
	Publish(ctx context.Context, env events.Envelope, topic string) error
}

type Coordinator struct {
	repo   inventory.TransactionalRepository
	ledger *ledger.Repository
	pub    EventPublisher
	logger *log.Logger
}

func New(repo inventory.TransactionalRepository, led *ledger.Repository, pub EventPublisher, logger *log.Logger) *Coordinator {
	return &Coordinator{repo: repo, ledger: led, pub: pub, logger: logger}
}

// HandleOrderCreated reserves stock for each line item. Items are isolated
// from each other: an insufficient-stock miss on one item is logged and the
// rest still reserve. That mirrors a partial-reservation policy where the
// order side decides what to do with shortfalls.
func (c *Coordinator) HandleOrderCreated(ctx context.Context, env events.Envelope) error {
	var data events.OrderCreatedData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.created: %w", err)
	}

	var errs []error
	for _, item := range data.Items {
		if err := c.reserveItem(ctx, env, data.OrderID, item); err != nil {
			errs = append(errs, fmt.Errorf("reserve product %d for order %d: %w", item.ProductID, data.OrderID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) reserveItem(ctx context.Context, env events.Envelope, orderID int64, item events.OrderItemData) error {
	tx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	first, err := c.ledger.WithExecutor(tx).MarkProcessed(ctx, env.EventID, fmt.Sprintf("reserve:%d", item.ProductID))
	if err != nil {
		return err
	}
	if !first {
		c.logger.Printf("skip duplicate reserve of product %d for event %s", item.ProductID, env.EventID)
		return nil
	}

	rec, err := c.repo.ReserveTx(ctx, tx, item.ProductID, item.Quantity)
	if err != nil {
		// Rolling back releases the ledger claim, so a later redelivery
		// can retry once stock exists.
		if errors.Is(err, inventory.ErrInsufficientStock) {
			c.logger.Printf("insufficient stock to reserve %d of product %d for order %d", item.Quantity, item.ProductID, orderID)
			return nil
		}
		if errors.Is(err, inventory.ErrNotFound) {
			c.logger.Printf("no inventory record for product %d referenced by order %d", item.ProductID, orderID)
			return nil
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	c.logger.Printf("reserved %d of product %d for order %d (available %d)", item.Quantity, item.ProductID, orderID, rec.Available())
	c.publishAlerts(ctx, rec, env.CorrelationID)
	return nil
}

// HandleOrderFulfilled converts reservations into permanent deductions and
// publishes inventory.updated with the pre-deduction quantity.
func (c *Coordinator) HandleOrderFulfilled(ctx context.Context, env events.Envelope) error {
	var data events.OrderFulfilledData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.fulfilled: %w", err)
	}

	var errs []error
	for _, item := range data.Items {
		if err := c.fulfillItem(ctx, env, data.OrderID, item); err != nil {
			errs = append(errs, fmt.Errorf("fulfill product %d for order %d: %w", item.ProductID, data.OrderID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) fulfillItem(ctx context.Context, env events.Envelope, orderID int64, item events.OrderItemData) error {
	tx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	first, err := c.ledger.WithExecutor(tx).MarkProcessed(ctx, env.EventID, fmt.Sprintf("fulfill:%d", item.ProductID))
	if err != nil {
		return err
	}
	if !first {
		c.logger.Printf("skip duplicate fulfill of product %d for event %s", item.ProductID, env.EventID)
		return nil
	}

	rec, prev, err := c.repo.FulfillTx(ctx, tx, item.ProductID, item.Quantity)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			c.logger.Printf("no inventory record for product %d referenced by order %d", item.ProductID, orderID)
			return nil
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	c.logger.Printf("fulfilled %d of product %d for order %d (quantity %d -> %d)", item.Quantity, item.ProductID, orderID, prev, rec.Quantity)
	c.publishUpdated(ctx, rec, prev, env.CorrelationID)
	c.publishAlerts(ctx, rec, env.CorrelationID)
	return nil
}

// HandleOrderCancelled returns reserved units to the available pool for
// each line item carried by the cancellation event.
func (c *Coordinator) HandleOrderCancelled(ctx context.Context, env events.Envelope) error {
	var data events.OrderCancelledData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.cancelled: %w", err)
	}

	var errs []error
	for _, item := range data.Items {
		if err := c.releaseItem(ctx, env, data.OrderID, item); err != nil {
			errs = append(errs, fmt.Errorf("release product %d for order %d: %w", item.ProductID, data.OrderID, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Coordinator) releaseItem(ctx context.Context, env events.Envelope, orderID int64, item events.OrderItemData) error {
	tx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	first, err := c.ledger.WithExecutor(tx).MarkProcessed(ctx, env.EventID, fmt.Sprintf("release:%d", item.ProductID))
	if err != nil {
		return err
	}
	if !first {
		c.logger.Printf("skip duplicate release of product %d for event %s", item.ProductID, env.EventID)
		return nil
	}

	rec, err := c.repo.ReleaseTx(ctx, tx, item.ProductID, item.Quantity)
	if err != nil {
		if errors.Is(err, inventory.ErrNotFound) {
			c.logger.Printf("no inventory record for product %d referenced by order %d", item.ProductID, orderID)
			return nil
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	c.logger.Printf("released %d of product %d for order %d (available %d)", item.Quantity, item.ProductID, orderID, rec.Available())
	return nil
}

func (c *Coordinator) publishUpdated(ctx context.Context, rec inventory.Record, previous int, correlationID *int64) {
	payload := events.InventoryUpdatedData{
		ProductID:        rec.ProductID,
		VariantID:        rec.VariantID,
		Quantity:         rec.Quantity,
		ReservedQuantity: rec.ReservedQuantity,
		PreviousQuantity: previous,
	}
	c.publish(ctx, events.EventTypeInventoryUpdated, payload, correlationID)
}

// publishAlerts emits low_stock or out_of_stock when availability crosses
// the record's thresholds. Alerts are best effort.
func (c *Coordinator) publishAlerts(ctx context.Context, rec inventory.Record, correlationID *int64) {
	switch {
	case rec.OutOfStock():
		c.publish(ctx, events.EventTypeInventoryOutOfStock, events.InventoryOutOfStockData{
			ProductID: rec.ProductID,
			VariantID: rec.VariantID,
		}, correlationID)
	case rec.LowStock():
		c.publish(ctx, events.EventTypeInventoryLowStock, events.InventoryLowStockData{
			ProductID:         rec.ProductID,
			VariantID:         rec.VariantID,
			AvailableQuantity: rec.Available(),
			ReorderLevel:      *rec.ReorderLevel,
		}, correlationID)
	}
}

func (c *Coordinator) publish(ctx context.Context, eventType string, payload any, correlationID *int64) {
	env, err := events.NewEnvelope(eventType, sourceService, correlationID, payload)
	if err != nil {
		c.logger.Printf("build %s event: %v", eventType, err)
		return
	}
	if err := c.pub.Publish(ctx, env, events.TopicInventoryEvents); err != nil {
		c.logger.Printf("publish %s event: %v", eventType, err)
	}
}
