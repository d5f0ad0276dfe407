package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-events/internal/order"
	"github.com/andreasstove999/ecommerce-events/internal/orderevents"
)

type OrderHandler struct {
	repo      order.Repository
	lifecycle *orderevents.LifecyclePublisher
	logger    *log.Logger
}

func NewOrderHandler(repo order.Repository, lifecycle *orderevents.LifecyclePublisher, logger *log.Logger) *OrderHandler {
	return &OrderHandler{repo: repo, lifecycle: lifecycle, logger: logger}
}

type createItemRequest struct {
	ProductID   int64           `json:"product_id"`
	VariantID   *int64          `json:"variant_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type createOrderRequest struct {
	OrderNumber    string              `json:"order_number"`
	UserID         int64               `json:"user_id"`
	Subtotal       decimal.Decimal     `json:"subtotal"`
	TaxAmount      decimal.Decimal     `json:"tax_amount"`
	ShippingCost   decimal.Decimal     `json:"shipping_cost"`
	DiscountAmount decimal.Decimal     `json:"discount_amount"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	Items          []createItemRequest `json:"items"`
}

// Create persists the order and then publishes order.created. Publishing
// happens after the commit so consumers never see an order that failed to
// persist; a publish failure is logged, not surfaced to the client.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o := &order.Order{
		OrderNumber:    req.OrderNumber,
		UserID:         req.UserID,
		Status:         order.StatusPending,
		Subtotal:       req.Subtotal,
		TaxAmount:      req.TaxAmount,
		ShippingCost:   req.ShippingCost,
		DiscountAmount: req.DiscountAmount,
		TotalAmount:    req.TotalAmount,
	}
	for _, item := range req.Items {
		o.Items = append(o.Items, order.Item{
			ProductID:   item.ProductID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	if err := h.repo.Create(r.Context(), o); err != nil {
		writeAppError(w, err)
		return
	}

	if err := h.lifecycle.OrderCreated(r.Context(), o, &o.ID); err != nil {
		h.logger.Printf("publish order.created for order %d: %v", o.ID, err)
	}

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.repo.GetByID(r.Context(), orderID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by user"
	}

	o, err := h.repo.GetByID(r.Context(), orderID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), o.ID, o.Status, order.StatusCancelled); err != nil {
		writeAppError(w, err)
		return
	}

	if err := h.lifecycle.Cancelled(r.Context(), o, req.Reason, nil, &o.ID); err != nil {
		h.logger.Printf("publish order.cancelled for order %d: %v", o.ID, err)
	}

	o.Status = order.StatusCancelled
	writeJSON(w, http.StatusOK, o)
}

type statusRequest struct {
	Status         order.Status `json:"status"`
	Reason         string       `json:"reason"`
	TrackingNumber string       `json:"tracking_number"`
	Carrier        string       `json:"carrier"`
	ConfirmedBy    string       `json:"confirmed_by"`
}

// UpdateStatus moves the order along its lifecycle and publishes the event
// that matches the transition. The move to shipped also publishes
// order.fulfilled, which is what tells the inventory side to convert
// reservations into deductions.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == order.StatusCancelled {
		writeError(w, http.StatusBadRequest, "use the cancel endpoint")
		return
	}

	o, err := h.repo.GetByID(r.Context(), orderID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), o.ID, o.Status, req.Status); err != nil {
		writeAppError(w, err)
		return
	}

	ctx := r.Context()
	switch req.Status {
	case order.StatusShipped:
		if err := h.lifecycle.Fulfilled(ctx, o, req.TrackingNumber, &o.ID); err != nil {
			h.logger.Printf("publish order.fulfilled for order %d: %v", o.ID, err)
		}
		if err := h.lifecycle.Shipped(ctx, o, req.TrackingNumber, req.Carrier, &o.ID); err != nil {
			h.logger.Printf("publish order.shipped for order %d: %v", o.ID, err)
		}
	case order.StatusDelivered:
		if err := h.lifecycle.Delivered(ctx, o, req.ConfirmedBy, &o.ID); err != nil {
			h.logger.Printf("publish order.delivered for order %d: %v", o.ID, err)
		}
	case order.StatusReturned:
		if err := h.lifecycle.Returned(ctx, o, req.Reason, &o.ID); err != nil {
			h.logger.Printf("publish order.returned for order %d: %v", o.ID, err)
		}
	default:
		if err := h.lifecycle.StatusUpdated(ctx, o, o.Status, req.Status, req.Reason, &o.ID); err != nil {
			h.logger.Printf("publish order.status_updated for order %d: %v", o.ID, err)
		}
	}

	o.Status = req.Status
	writeJSON(w, http.StatusOK, o)
}
