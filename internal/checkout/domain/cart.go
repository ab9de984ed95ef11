package domain

import (
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one cart row as read by the snapshot: the product it points
// at, the requested quantity and the line price recorded when the item was
// added to the cart.
type CartLine struct {
	ProductID int64
	Quantity  int
	Price     decimal.Decimal
}

// CartSnapshot is the one-shot, pre-transaction read of a cart. It decides
// whether a checkout proceeds; it holds no locks.
type CartSnapshot struct {
	CartID   uuid.UUID
	TenantID int64
	Lines    []CartLine
}

func (s CartSnapshot) IsEmpty() bool { return len(s.Lines) == 0 }

func (s CartSnapshot) LockOrder() []int64 { return LockOrder(s.Lines) }

// LockOrder returns the distinct product ids of the lines in ascending
// numeric order. Every checkout acquires its row locks in this order, so
// two checkouts sharing products can never wait on each other in a cycle.
// Duplicate product rows in a cart are tolerated and collapse to one lock.
func LockOrder(lines []CartLine) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	slices.Sort(ids)
	return ids
}

// RequestedQuantities aggregates the requested quantity per distinct
// product, so duplicate cart rows of one product validate and decrement
// against their combined total.
func RequestedQuantities(lines []CartLine) map[int64]int {
	req := make(map[int64]int, len(lines))
	for _, l := range lines {
		req[l.ProductID] += l.Quantity
	}
	return req
}
