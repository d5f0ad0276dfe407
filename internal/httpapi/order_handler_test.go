package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-events/internal/events"
	"github.com/andreasstove999/ecommerce-events/internal/order"
	"github.com/andreasstove999/ecommerce-events/internal/orderevents"
)

type fakeOrderRepo struct {
	orders map[int64]*order.Order
	nextID int64
}

func newFakeOrderRepo(orders ...*order.Order) *fakeOrderRepo {
	f := &fakeOrderRepo{orders: make(map[int64]*order.Order), nextID: 100}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeOrderRepo) Create(ctx context.Context, o *order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if o.Status == "" {
		o.Status = order.StatusPending
	}
	f.nextID++
	o.ID = f.nextID
	f.orders[o.ID] = o
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, orderID int64) (*order.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, order.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, orderID int64, from, to order.Status) error {
	o, ok := f.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status != from || !from.CanTransitionTo(to) {
		return order.ErrInvalidTransition
	}
	o.Status = to
	return nil
}

func (f *fakeOrderRepo) OpenOrderIDsWithProduct(ctx context.Context, productID int64) ([]int64, error) {
	return nil, nil
}

type captureBrokerPublisher struct {
	published []events.Envelope
}

func (c *captureBrokerPublisher) Publish(ctx context.Context, env events.Envelope, topic string) error {
	c.published = append(c.published, env)
	return nil
}

func (c *captureBrokerPublisher) types() []string {
	var out []string
	for _, env := range c.published {
		out = append(out, env.EventType)
	}
	return out
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func pendingOrder(id int64) *order.Order {
	return &order.Order{
		ID:          id,
		OrderNumber: "ORD-1001",
		UserID:      42,
		Status:      order.StatusPending,
		Subtotal:    dec("100.00"),
		TotalAmount: dec("100.00"),
		Items: []order.Item{
			{ProductID: 1, ProductName: "widget", Quantity: 2, UnitPrice: dec("50.00")},
		},
	}
}

func orderServer(repo *fakeOrderRepo, pub *captureBrokerPublisher) http.Handler {
	logger := log.New(io.Discard, "", 0)
	h := NewOrderHandler(repo, orderevents.NewLifecyclePublisher(pub, logger), logger)
	return NewOrderRouter(h, &fakeBroker{state: events.StateConnected, reachable: true})
}

func TestCreateOrderPublishesOrderCreated(t *testing.T) {
	t.Parallel()

	repo := newFakeOrderRepo()
	pub := &captureBrokerPublisher{}
	srv := orderServer(repo, pub)

	body := `{
		"order_number": "ORD-2001",
		"user_id": 42,
		"subtotal": "100.00",
		"total_amount": "100.00",
		"items": [{"product_id": 1, "product_name": "widget", "quantity": 2, "unit_price": "50.00"}]
	}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(pub.published) != 1 || pub.published[0].EventType != events.EventTypeOrderCreated {
		t.Fatalf("published=%v, want order.created", pub.types())
	}

	var data events.OrderCreatedData
	if err := json.Unmarshal(pub.published[0].Data, &data); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if data.OrderNumber != "ORD-2001" || len(data.Items) != 1 {
		t.Fatalf("payload=%+v", data)
	}
	if pub.published[0].PartitionKey() == "" {
		t.Fatalf("order.created must carry the order id as partition key")
	}
}

func TestCreateOrderValidationFailure(t *testing.T) {
	t.Parallel()

	pub := &captureBrokerPublisher{}
	srv := orderServer(newFakeOrderRepo(), pub)

	body := `{"order_number": "ORD-2001", "user_id": 42, "items": []}`
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/", strings.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=400", rec.Code)
	}
	if len(pub.published) != 0 {
		t.Fatalf("nothing should be published for a rejected order")
	}
}

func TestGetOrder(t *testing.T) {
	t.Parallel()

	repo := newFakeOrderRepo(pendingOrder(7))
	srv := orderServer(repo, &captureBrokerPublisher{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/7", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetOrderNotFound(t *testing.T) {
	t.Parallel()

	srv := orderServer(newFakeOrderRepo(), &captureBrokerPublisher{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/404", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=404", rec.Code)
	}
}

func TestCancelOrderPublishesCancelled(t *testing.T) {
	t.Parallel()

	repo := newFakeOrderRepo(pendingOrder(7))
	pub := &captureBrokerPublisher{}
	srv := orderServer(repo, pub)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/7/cancel", strings.NewReader(`{"reason": "changed my mind"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if repo.orders[7].Status != order.StatusCancelled {
		t.Fatalf("status=%s want=%s", repo.orders[7].Status, order.StatusCancelled)
	}
	if len(pub.published) != 1 || pub.published[0].EventType != events.EventTypeOrderCancelled {
		t.Fatalf("published=%v, want order.cancelled", pub.types())
	}

	var data events.OrderCancelledData
	if err := json.Unmarshal(pub.published[0].Data, &data); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if data.Reason != "changed my mind" || len(data.Items) != 1 {
		t.Fatalf("payload=%+v", data)
	}
}

func TestCancelShippedOrderConflicts(t *testing.T) {
	t.Parallel()

	o := pendingOrder(7)
	o.Status = order.StatusShipped
	repo := newFakeOrderRepo(o)
	pub := &captureBrokerPublisher{}
	srv := orderServer(repo, pub)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/7/cancel", strings.NewReader(`{}`)))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d want=409", rec.Code)
	}
	if len(pub.published) != 0 {
		t.Fatalf("nothing should be published for a rejected cancel")
	}
}

func TestShipOrderPublishesFulfilledAndShipped(t *testing.T) {
	t.Parallel()

	o := pendingOrder(7)
	o.Status = order.StatusProcessing
	repo := newFakeOrderRepo(o)
	pub := &captureBrokerPublisher{}
	srv := orderServer(repo, pub)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/7/status",
		strings.NewReader(`{"status": "shipped", "tracking_number": "TRK-1", "carrier": "dhl"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	types := pub.types()
	if len(types) != 2 || types[0] != events.EventTypeOrderFulfilled || types[1] != events.EventTypeOrderShipped {
		t.Fatalf("published=%v, want order.fulfilled then order.shipped", types)
	}

	var data events.OrderFulfilledData
	if err := json.Unmarshal(pub.published[0].Data, &data); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if data.TrackingNumber != "TRK-1" || len(data.Items) != 1 {
		t.Fatalf("payload=%+v", data)
	}
}

func TestStatusEndpointRejectsCancel(t *testing.T) {
	t.Parallel()

	repo := newFakeOrderRepo(pendingOrder(7))
	srv := orderServer(repo, &captureBrokerPublisher{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/7/status", strings.NewReader(`{"status": "cancelled"}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want=400", rec.Code)
	}
}

func TestStatusEndpointIllegalTransition(t *testing.T) {
	t.Parallel()

	repo := newFakeOrderRepo(pendingOrder(7)) // pending cannot ship
	srv := orderServer(repo, &captureBrokerPublisher{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/7/status", strings.NewReader(`{"status": "shipped"}`)))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status=%d want=409", rec.Code)
	}
}
