package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the small integer status code stored on the order row.
// Only StatusNew is assigned by the checkout engine; later transitions
// belong to fulfillment.
type OrderStatus int16

const (
	StatusNew OrderStatus = iota
	StatusProcessing
	StatusShipped
	StatusCanceled
)

// Contact carries the free-text contact fields captured at checkout.
// They are stored as given and never normalized.
type Contact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type Order struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   int64           `json:"tenant_id"`
	CustomerID *uuid.UUID      `json:"customer_id,omitempty"`
	Contact    Contact         `json:"contact"`
	Amount     decimal.Decimal `json:"amount"`
	Status     OrderStatus     `json:"status"`
	Comment    string          `json:"comment,omitempty"`
	Items      []OrderItem     `json:"items"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// OrderItem is an immutable snapshot of one purchased cart line. Name and
// Price are copied at checkout time so later catalog edits do not affect
// historical orders. Price is the line price carried from the cart row,
// already quantity-scaled there.
type OrderItem struct {
	ID       int64           `json:"id"`
	OrderID  uuid.UUID       `json:"order_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// OrderDraft is the pre-persistence shape of an order: everything the
// materializer needs except the generated timestamps and stored values.
type OrderDraft struct {
	ID         uuid.UUID
	TenantID   int64
	CustomerID *uuid.UUID
	Contact    Contact
	Comment    string
	Amount     decimal.Decimal
}

// NewDraft builds an order draft from a cart snapshot. The amount is the
// sum of the raw line prices; quantity deliberately does not enter the
// sum, matching how the cart stores quantity-scaled line prices.
func NewDraft(tenantID int64, customerID *uuid.UUID, contact Contact, comment string, lines []CartLine) OrderDraft {
	amount := decimal.Zero
	for _, l := range lines {
		amount = amount.Add(l.Price)
	}
	return OrderDraft{
		ID:         uuid.New(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Contact:    contact,
		Comment:    comment,
		Amount:     amount,
	}
}

// OrderCreated is the event payload written to the outbox in the same
// transaction that materializes the order.
type OrderCreated struct {
	OrderID    uuid.UUID       `json:"order_id"`
	TenantID   int64           `json:"tenant_id"`
	CustomerID *uuid.UUID      `json:"customer_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Items      []OrderItem     `json:"items"`
}
