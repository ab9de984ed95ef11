package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func line(productID int64, qty int, price string) CartLine {
	return CartLine{ProductID: productID, Quantity: qty, Price: decimal.RequireFromString(price)}
}

func TestNewDraftAmountSumsLinePrices(t *testing.T) {
	// The amount is the sum of the raw line prices; quantity must not
	// enter the sum, the cart already scaled the line price.
	lines := []CartLine{
		line(1, 3, "1000"),
		line(2, 7, "500"),
	}
	d := NewDraft(1, nil, Contact{Name: "a"}, "", lines)

	if want := decimal.RequireFromString("1500"); !d.Amount.Equal(want) {
		t.Fatalf("amount = %s, want %s", d.Amount, want)
	}
}

func TestNewDraftAmountIgnoresQuantity(t *testing.T) {
	a := NewDraft(1, nil, Contact{}, "", []CartLine{line(1, 1, "250.50")})
	b := NewDraft(1, nil, Contact{}, "", []CartLine{line(1, 99, "250.50")})

	if !a.Amount.Equal(b.Amount) {
		t.Fatalf("amount depends on quantity: %s vs %s", a.Amount, b.Amount)
	}
}

func TestNewDraftAssignsID(t *testing.T) {
	d := NewDraft(42, nil, Contact{}, "gift", nil)
	if d.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("draft id not assigned")
	}
	if d.TenantID != 42 || d.Comment != "gift" {
		t.Fatalf("draft fields not carried: %+v", d)
	}
}
