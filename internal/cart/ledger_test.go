package cart

import (
	"errors"
	"math"
	"testing"

	"github.com/smartscale/kiosk/internal/models"
)

func product(name string, unitPrice float64) models.Product {
	return models.Product{ID: name, Name: name, UnitPrice: unitPrice, Category: models.CategoryFruit}
}

func TestAddComputesTotalPrice(t *testing.T) {
	l := NewLedger()
	item := l.Add(product("banana", 2.49), 0.5, 1700000000000)

	if math.Abs(item.TotalPrice-1.245) > 1e-9 {
		t.Errorf("TotalPrice = %v, want 1.245", item.TotalPrice)
	}
	if item.ConfirmedAtMs != 1700000000000 {
		t.Errorf("ConfirmedAtMs = %v, want 1700000000000", item.ConfirmedAtMs)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}
}

func TestRemoveAt(t *testing.T) {
	t.Run("single item yields empty ledger and zero totals", func(t *testing.T) {
		l := NewLedger()
		l.Add(product("apple", 3.99), 1.0, 1)

		if _, err := l.RemoveAt(0); err != nil {
			t.Fatalf("RemoveAt(0) failed: %v", err)
		}
		if l.Len() != 0 {
			t.Errorf("Len = %d, want 0", l.Len())
		}
		totals := l.Totals()
		if totals.Weight != 0 || totals.Amount != 0 {
			t.Errorf("Totals = %+v, want zero", totals)
		}
	})

	t.Run("preserves relative order", func(t *testing.T) {
		l := NewLedger()
		l.Add(product("a", 1), 1, 1)
		l.Add(product("b", 1), 1, 2)
		l.Add(product("c", 1), 1, 3)

		removed, err := l.RemoveAt(1)
		if err != nil {
			t.Fatalf("RemoveAt(1) failed: %v", err)
		}
		if removed.Product.Name != "b" {
			t.Errorf("removed %q, want b", removed.Product.Name)
		}
		items := l.Items()
		if len(items) != 2 || items[0].Product.Name != "a" || items[1].Product.Name != "c" {
			t.Errorf("unexpected order after removal: %+v", items)
		}
	})

	t.Run("invalid index", func(t *testing.T) {
		l := NewLedger()
		l.Add(product("a", 1), 1, 1)

		for _, idx := range []int{-1, 1, 99} {
			if _, err := l.RemoveAt(idx); !errors.Is(err, ErrIndexOutOfRange) {
				t.Errorf("RemoveAt(%d) err = %v, want ErrIndexOutOfRange", idx, err)
			}
		}
		if l.Len() != 1 {
			t.Errorf("failed removal must not mutate the ledger, Len = %d", l.Len())
		}
	})
}

func TestTotalsFolded(t *testing.T) {
	l := NewLedger()
	l.Add(product("a", 2.0), 1.0, 1)
	l.Add(product("b", 4.0), 0.5, 2)

	totals := l.Totals()
	if math.Abs(totals.Weight-1.5) > 0.01 {
		t.Errorf("Weight = %v, want 1.5", totals.Weight)
	}
	if math.Abs(totals.Amount-4.0) > 0.01 {
		t.Errorf("Amount = %v, want 4.0", totals.Amount)
	}
}

func TestCheckout(t *testing.T) {
	l := NewLedger()
	l.Add(product("a", 2.0), 1.0, 1)
	l.Add(product("b", 4.0), 0.5, 2)
	l.Add(product("c", 1.5), 2.0, 3)

	receipt := l.Checkout(1700000000000)

	// 1.0*2.0 + 0.5*4.0 + 2.0*1.5 = 2.0 + 2.0 + 3.0 = 7.0
	if math.Abs(receipt.Totals.Amount-7.0) > 0.01 {
		t.Errorf("Amount = %v, want 7.0", receipt.Totals.Amount)
	}
	if math.Abs(receipt.Totals.Weight-3.5) > 0.01 {
		t.Errorf("Weight = %v, want 3.5", receipt.Totals.Weight)
	}
	if len(receipt.Items) != 3 {
		t.Errorf("Items = %d, want 3", len(receipt.Items))
	}
	if receipt.CompletedAtMs != 1700000000000 {
		t.Errorf("CompletedAtMs = %v", receipt.CompletedAtMs)
	}
	if l.Len() != 0 {
		t.Errorf("ledger not empty after checkout, Len = %d", l.Len())
	}
}

func TestClear(t *testing.T) {
	l := NewLedger()
	l.Add(product("a", 1), 1, 1)
	l.Clear()
	if l.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", l.Len())
	}
}
