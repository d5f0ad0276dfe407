package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-events/internal/events"
	"github.com/andreasstove999/ecommerce-events/internal/inventory"
)

// BrokerHealth reports the broker connection for health endpoints.
type BrokerHealth interface {
	State() events.ConnState
	HealthCheck(ctx context.Context) bool
}

type InventoryHandler struct {
	repo   inventory.Repository
	broker BrokerHealth
}

func NewInventoryHandler(repo inventory.Repository, broker BrokerHealth) *InventoryHandler {
	return &InventoryHandler{repo: repo, broker: broker}
}

type recordResponse struct {
	ID               int64  `json:"id"`
	ProductID        *int64 `json:"product_id,omitempty"`
	VariantID        *int64 `json:"variant_id,omitempty"`
	Quantity         int    `json:"quantity"`
	ReservedQuantity int    `json:"reserved_quantity"`
	Available        int    `json:"available"`
	ReorderLevel     *int   `json:"reorder_level,omitempty"`
}

func toRecordResponse(rec inventory.Record) recordResponse {
	return recordResponse{
		ID:               rec.ID,
		ProductID:        rec.ProductID,
		VariantID:        rec.VariantID,
		Quantity:         rec.Quantity,
		ReservedQuantity: rec.ReservedQuantity,
		Available:        rec.Available(),
		ReorderLevel:     rec.ReorderLevel,
	}
}

func (h *InventoryHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"service":          "inventory-service",
		"broker_state":     h.broker.State().String(),
		"broker_reachable": h.broker.HealthCheck(ctx),
	})
}

func (h *InventoryHandler) GetByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	rec, err := h.repo.GetByProduct(r.Context(), productID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *InventoryHandler) GetByVariant(w http.ResponseWriter, r *http.Request) {
	variantID, err := strconv.ParseInt(chi.URLParam(r, "variantID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid variant id")
		return
	}

	rec, err := h.repo.GetByVariant(r.Context(), variantID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

type createRecordRequest struct {
	ProductID    *int64 `json:"product_id"`
	VariantID    *int64 `json:"variant_id"`
	Quantity     int    `json:"quantity"`
	ReorderLevel *int   `json:"reorder_level"`
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.repo.Create(r.Context(), inventory.Record{
		ProductID:    req.ProductID,
		VariantID:    req.VariantID,
		Quantity:     req.Quantity,
		ReorderLevel: req.ReorderLevel,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

type adjustRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == 0 || req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "product_id is required and quantity must not be negative")
		return
	}

	rec, err := h.repo.SetQuantity(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.repo.SoftDelete(r.Context(), productID); err != nil {
		writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
