package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/storekit/checkout-engine/internal/checkout/application"
	"github.com/storekit/checkout-engine/internal/checkout/domain"
	"github.com/storekit/checkout-engine/pkg/metrics"
)

type stubCartStore struct {
	snap domain.CartSnapshot
	err  error
}

func (s *stubCartStore) Snapshot(context.Context, int64, uuid.UUID) (domain.CartSnapshot, error) {
	return s.snap, s.err
}
func (s *stubCartStore) Clear(context.Context, uuid.UUID) error { return nil }

type stubCheckoutStore struct {
	err    error
	orders map[uuid.UUID]domain.Order
}

func (s *stubCheckoutStore) CreateOrder(_ context.Context, draft domain.OrderDraft, _ []domain.CartLine, _ map[string]string, _ string) (domain.Order, error) {
	if s.err != nil {
		return domain.Order{}, s.err
	}
	return domain.Order{ID: draft.ID, TenantID: draft.TenantID, Amount: draft.Amount, Status: domain.StatusNew}, nil
}

func (s *stubCheckoutStore) Order(_ context.Context, _ int64, id uuid.UUID) (domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

type noopGuard struct{}

func (noopGuard) Converted(context.Context, uuid.UUID) (bool, error) { return false, nil }
func (noopGuard) MarkConverted(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (noopGuard) Forget(context.Context, uuid.UUID) error { return nil }
func (noopGuard) EnqueueRetry(context.Context, uuid.UUID) error { return nil }
func (noopGuard) DequeueRetry(context.Context) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}

func newTestHandler(t *testing.T, carts application.CartStore, store application.CheckoutStore) stdhttp.Handler {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewCheckoutMetrics(prometheus.NewRegistry())
	finalizer := application.NewFinalizer(log, carts, noopGuard{})
	svc := application.NewService(log, carts, store, finalizer, m)
	return NewHandler(log, svc).Routes()
}

func postCheckout(t *testing.T, h stdhttp.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(stdhttp.MethodPost, "/checkout", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCheckoutCreated(t *testing.T) {
	cartID := uuid.New()
	carts := &stubCartStore{snap: domain.CartSnapshot{
		CartID:   cartID,
		TenantID: 1,
		Lines:    []domain.CartLine{{ProductID: 1, Quantity: 2, Price: decimal.NewFromInt(300)}},
	}}
	h := newTestHandler(t, carts, &stubCheckoutStore{})

	rec := postCheckout(t, h, `{"tenant_id":1,"cart_id":"`+cartID.String()+`","contact":{"name":"n","email":"e"}}`)
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body)
	}
	var order domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &order); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if !order.Amount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("amount = %s, want 300", order.Amount)
	}
}

func TestCheckoutConflictIsItemized(t *testing.T) {
	cartID := uuid.New()
	carts := &stubCartStore{snap: domain.CartSnapshot{
		CartID: cartID,
		Lines:  []domain.CartLine{{ProductID: 7, Quantity: 6, Price: decimal.NewFromInt(60)}},
	}}
	store := &stubCheckoutStore{err: &domain.ConflictError{Conflicts: []domain.StockConflict{
		{ProductID: 7, Reason: domain.ReasonInsufficientStock, Available: 4, Requested: 6},
		{ProductID: 8, Reason: domain.ReasonNotFound},
	}}}
	h := newTestHandler(t, carts, store)

	rec := postCheckout(t, h, `{"cart_id":"`+cartID.String()+`"}`)
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	var resp conflictResp
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if len(resp.Conflicts) != 2 {
		t.Fatalf("conflicts = %+v, want both failing products", resp.Conflicts)
	}
}

func TestCheckoutCartNotFoundIs404(t *testing.T) {
	carts := &stubCartStore{err: domain.ErrCartNotFound}
	h := newTestHandler(t, carts, &stubCheckoutStore{})

	rec := postCheckout(t, h, `{"cart_id":"`+uuid.NewString()+`"}`)
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCheckoutEmptyCartIs404(t *testing.T) {
	carts := &stubCartStore{snap: domain.CartSnapshot{}} // exists, no lines
	h := newTestHandler(t, carts, &stubCheckoutStore{})

	rec := postCheckout(t, h, `{"cart_id":"`+uuid.NewString()+`"}`)
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCheckoutInfrastructureFailureIsOpaque500(t *testing.T) {
	cartID := uuid.New()
	carts := &stubCartStore{snap: domain.CartSnapshot{
		CartID: cartID,
		Lines:  []domain.CartLine{{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(1)}},
	}}
	store := &stubCheckoutStore{err: context.DeadlineExceeded}
	h := newTestHandler(t, carts, store)

	rec := postCheckout(t, h, `{"cart_id":"`+cartID.String()+`"}`)
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "deadline") {
		t.Fatalf("internal error detail leaked: %s", rec.Body)
	}
}

func TestCheckoutBadBody(t *testing.T) {
	h := newTestHandler(t, &stubCartStore{}, &stubCheckoutStore{})
	if rec := postCheckout(t, h, `{`); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if rec := postCheckout(t, h, `{}`); rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("missing cart_id: status = %d, want 400", rec.Code)
	}
}

func TestGetOrder(t *testing.T) {
	id := uuid.New()
	store := &stubCheckoutStore{orders: map[uuid.UUID]domain.Order{
		id: {ID: id, Amount: decimal.NewFromInt(10)},
	}}
	h := newTestHandler(t, &stubCartStore{}, store)

	req := httptest.NewRequest(stdhttp.MethodGet, "/orders/"+id.String(), nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(stdhttp.MethodGet, "/orders/"+uuid.NewString(), nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
