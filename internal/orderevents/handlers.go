package orderevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-events/internal/events"
	"github.com/andreasstove999/ecommerce-events/internal/order"
)

// PaymentProcessedHandler confirms the order once its payment completes and
// publishes the status transition. Repeated deliveries and lost races show
// up as invalid transitions and are skipped, which keeps the handler
// idempotent without a ledger entry.
func PaymentProcessedHandler(repo order.Repository, pub *LifecyclePublisher, logger *log.Logger) events.HandlerFunc {
	return func(ctx context.Context, env events.Envelope) error {
		var data events.PaymentProcessedData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("unmarshal payment.processed: %w", err)
		}
		if data.Status != "completed" {
			logger.Printf("ignoring payment.processed for order %d with status %q", data.OrderID, data.Status)
			return nil
		}

		o, err := repo.GetByID(ctx, data.OrderID)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				logger.Printf("payment.processed for unknown order %d", data.OrderID)
				return nil
			}
			return fmt.Errorf("load order %d: %w", data.OrderID, err)
		}

		if err := repo.UpdateStatus(ctx, o.ID, o.Status, order.StatusConfirmed); err != nil {
			if errors.Is(err, order.ErrInvalidTransition) {
				logger.Printf("skip payment.processed for order %d in status %s", o.ID, o.Status)
				return nil
			}
			return fmt.Errorf("confirm order %d: %w", o.ID, err)
		}

		logger.Printf("order %d confirmed after payment %d", o.ID, data.PaymentID)
		return pub.StatusUpdated(ctx, o, o.Status, order.StatusConfirmed, "payment processed", env.CorrelationID)
	}
}

// PaymentFailedHandler cancels the order and publishes order.cancelled with
// the line items, which is what lets the inventory side release the
// reservations it holds for this order.
func PaymentFailedHandler(repo order.Repository, pub *LifecyclePublisher, logger *log.Logger) events.HandlerFunc {
	return func(ctx context.Context, env events.Envelope) error {
		var data events.PaymentFailedData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("unmarshal payment.failed: %w", err)
		}

		o, err := repo.GetByID(ctx, data.OrderID)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				logger.Printf("payment.failed for unknown order %d", data.OrderID)
				return nil
			}
			return fmt.Errorf("load order %d: %w", data.OrderID, err)
		}

		if err := repo.UpdateStatus(ctx, o.ID, o.Status, order.StatusCancelled); err != nil {
			if errors.Is(err, order.ErrInvalidTransition) {
				logger.Printf("skip payment.failed for order %d in status %s", o.ID, o.Status)
				return nil
			}
			return fmt.Errorf("cancel order %d: %w", o.ID, err)
		}

		reason := data.ErrorReason
		if reason == "" {
			reason = "payment failed"
		}
		logger.Printf("order %d cancelled: %s", o.ID, reason)
		return pub.Cancelled(ctx, o, reason, nil, env.CorrelationID)
	}
}

// RefundProcessedHandler records the refund by moving the order to its
// terminal refunded state.
func RefundProcessedHandler(repo order.Repository, pub *LifecyclePublisher, logger *log.Logger) events.HandlerFunc {
	return func(ctx context.Context, env events.Envelope) error {
		var data events.RefundProcessedData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return fmt.Errorf("unmarshal refund.processed: %w", err)
		}

		o, err := repo.GetByID(ctx, data.OrderID)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				logger.Printf("refund.processed for unknown order %d", data.OrderID)
				return nil
			}
			return fmt.Errorf("load order %d: %w", data.OrderID, err)
		}

		if err := repo.UpdateStatus(ctx, o.ID, o.Status, order.StatusRefunded); err != nil {
			if errors.Is(err, order.ErrInvalidTransition) {
				logger.Printf("skip refund.processed for order %d in status %s", o.ID, o.Status)
				return nil
			}
			return fmt.Errorf("refund order %d: %w", o.ID, err)
		}

		amount, err := decimal.NewFromString(data.RefundAmount)
		if err != nil {
			logger.Printf("refund.processed for order %d carries bad amount %q: %v", o.ID, data.RefundAmount, err)
			amount = o.TotalAmount
		}

		logger.Printf("order %d refunded %s", o.ID, amount)
		return pub.Refunded(ctx, o, amount, env.CorrelationID)
	}
}

// ProductUpdatedHandler is informational: it flags open orders whose
// snapshot references the changed product. A catalog change must never
// disturb the order pipeline, so this handler swallows its own errors.
func ProductUpdatedHandler(repo order.Repository, logger *log.Logger) events.HandlerFunc {
	return func(ctx context.Context, env events.Envelope) error {
		var data events.ProductUpdatedData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			logger.Printf("unmarshal product.updated: %v", err)
			return nil
		}

		ids, err := repo.OpenOrderIDsWithProduct(ctx, data.ProductID)
		if err != nil {
			logger.Printf("flag open orders for updated product %d: %v", data.ProductID, err)
			return nil
		}
		if len(ids) > 0 {
			logger.Printf("product %d updated while referenced by %d open orders: %v", data.ProductID, len(ids), ids)
		}
		return nil
	}
}

// ProductDeletedHandler mirrors ProductUpdatedHandler for deletions.
func ProductDeletedHandler(repo order.Repository, logger *log.Logger) events.HandlerFunc {
	return func(ctx context.Context, env events.Envelope) error {
		var data events.ProductDeletedData
		if err := json.Unmarshal(env.Data, &data); err != nil {
			logger.Printf("unmarshal product.deleted: %v", err)
			return nil
		}

		ids, err := repo.OpenOrderIDsWithProduct(ctx, data.ProductID)
		if err != nil {
			logger.Printf("flag open orders for deleted product %d: %v", data.ProductID, err)
			return nil
		}
		if len(ids) > 0 {
			logger.Printf("product %d deleted while referenced by %d open orders: %v", data.ProductID, len(ids), ids)
		}
		return nil
	}
}
