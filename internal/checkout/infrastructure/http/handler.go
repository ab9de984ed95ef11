package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/storekit/checkout-engine/internal/checkout/application"
	"github.com/storekit/checkout-engine/internal/checkout/domain"
	"github.com/storekit/checkout-engine/pkg/tracing"
)

type Handler struct {
	log     *slog.Logger
	service *application.Service
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
		tracer:  otel.Tracer("checkout-http"),
	}
}

type checkoutReq struct {
	TenantID   int64             `json:"tenant_id"`
	CartID     uuid.UUID         `json:"cart_id"`
	CustomerID *uuid.UUID        `json:"customer_id,omitempty"`
	Contact    domain.Contact    `json:"contact"`
	Comment    string            `json:"comment,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

type conflictResp struct {
	Error     string                 `json:"error"`
	Conflicts []domain.StockConflict `json:"conflicts"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/checkout", h.checkout)
	r.Get("/orders/{id}", h.getOrder)
	return r
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Checkout")
	defer span.End()

	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.CartID == uuid.Nil {
		http.Error(w, "cart_id is required", http.StatusBadRequest)
		return
	}

	traceparent := r.Header.Get("traceparent")
	if traceparent == "" {
		traceparent = tracing.Traceparent(ctx)
	}

	order, err := h.service.Checkout(ctx, application.CheckoutRequest{
		TenantID:   req.TenantID,
		CartID:     req.CartID,
		CustomerID: req.CustomerID,
		Contact:    req.Contact,
		Comment:    req.Comment,
	}, req.Headers, traceparent)
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(order)
}

// Conflicts get an itemized 409, not-found conditions a 404, a converted
// cart a 409 without items, everything else an opaque retryable 500.
func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var conflict *domain.ConflictError
	switch {
	case errors.As(err, &conflict):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(conflictResp{
			Error:     "checkout conflict",
			Conflicts: conflict.Conflicts,
		})
	case errors.Is(err, domain.ErrCartNotFound), errors.Is(err, domain.ErrEmptyCart):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrCartConverted):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "checkout failed, retry later", http.StatusInternalServerError)
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return
	}
	tenantID := tenantFromQuery(r)

	order, err := h.service.Order(ctx, tenantID, id)
	if errors.Is(err, domain.ErrOrderNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("get order failed", "order_id", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(order)
}

func tenantFromQuery(r *http.Request) int64 {
	tenantID, _ := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	return tenantID
}
