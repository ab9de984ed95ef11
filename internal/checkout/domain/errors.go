package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrOrderNotFound = errors.New("order not found")

	// ErrCartConverted marks a cart that already produced a committed order
	// but whose clear is still pending retry. Checking out such a cart again
	// would duplicate the order.
	ErrCartConverted = errors.New("cart already converted to an order")
)

type ConflictReason string

const (
	ReasonNotFound          ConflictReason = "not_found"
	ReasonInsufficientStock ConflictReason = "insufficient_stock"
)

// StockConflict describes one cart line that failed validation under lock.
// Available/Requested are meaningful only for ReasonInsufficientStock.
type StockConflict struct {
	ProductID int64          `json:"product_id"`
	Reason    ConflictReason `json:"reason"`
	Available int            `json:"available,omitempty"`
	Requested int            `json:"requested,omitempty"`
}

// ConflictError aborts a checkout with every failing line, not just the
// first one, so the caller can report the whole cart in one response.
type ConflictError struct {
	Conflicts []StockConflict
}

func (e *ConflictError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		switch c.Reason {
		case ReasonInsufficientStock:
			parts = append(parts, fmt.Sprintf("product %d: insufficient stock (available %d, requested %d)", c.ProductID, c.Available, c.Requested))
		default:
			parts = append(parts, fmt.Sprintf("product %d: not found", c.ProductID))
		}
	}
	return "checkout conflict: " + strings.Join(parts, "; ")
}
