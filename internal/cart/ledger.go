// Package cart implements the in-memory cart ledger: an ordered,
// append-only sequence of confirmed items with folded totals.
package cart

import (
	"errors"
	"fmt"

	"github.com/smartscale/kiosk/internal/models"
)

// ErrIndexOutOfRange is returned by RemoveAt for an index outside the
// current item sequence. The kiosk UI only offers valid indices, so
// seeing this error signals a caller bug.
var ErrIndexOutOfRange = errors.New("cart index out of range")

// Ledger holds the confirmed cart items in insertion order, which is
// also display and receipt order. The ledger is not safe for concurrent
// use; the engine serializes all mutations behind its own mutex.
type Ledger struct {
	items []models.CartItem
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Add appends a confirmed item. Callers guarantee weight > 0 upstream
// (zero-weight readings never resolve an episode), so Add always
// succeeds.
func (l *Ledger) Add(product models.Product, weight float64, confirmedAtMs int64) models.CartItem {
	item := models.CartItem{
		Product:       product,
		Weight:        weight,
		TotalPrice:    weight * product.UnitPrice,
		ConfirmedAtMs: confirmedAtMs,
	}
	l.items = append(l.items, item)
	return item
}

// RemoveAt removes the item at the given position, preserving the
// relative order of the remaining items.
func (l *Ledger) RemoveAt(index int) (models.CartItem, error) {
	if index < 0 || index >= len(l.items) {
		return models.CartItem{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(l.items))
	}
	removed := l.items[index]
	l.items = append(l.items[:index], l.items[index+1:]...)
	return removed, nil
}

// Clear empties the ledger unconditionally.
func (l *Ledger) Clear() {
	l.items = nil
}

// Items returns a copy of the item sequence in insertion order.
func (l *Ledger) Items() []models.CartItem {
	out := make([]models.CartItem, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of items in the ledger.
func (l *Ledger) Len() int {
	return len(l.items)
}

// Totals folds the item sequence into summed weight and amount. It is
// recomputed on every call so the sums can never drift from the items.
func (l *Ledger) Totals() models.Totals {
	var t models.Totals
	for _, item := range l.items {
		t.Weight += item.Weight
		t.Amount += item.TotalPrice
	}
	return t
}

// Checkout returns the current totals and the full item sequence, then
// clears the ledger. This is the single commit operation the consumer
// sees; mirroring the result to the session store is the caller's
// concern and is deliberately not transactional with it.
func (l *Ledger) Checkout(completedAtMs int64) models.Receipt {
	receipt := models.Receipt{
		Items:         l.Items(),
		Totals:        l.Totals(),
		CompletedAtMs: completedAtMs,
	}
	l.Clear()
	return receipt
}
