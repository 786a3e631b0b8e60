package models

// CartItem is one confirmed weighing. Items are created only through
// clerk confirmation and are immutable once in the cart except for
// removal.
type CartItem struct {
	Product Product `json:"product"`

	// Weight in kilograms, always > 0 (zero-weight readings never
	// reach confirmation).
	Weight float64 `json:"weight"`

	// TotalPrice is Weight * Product.UnitPrice, fixed at confirmation.
	TotalPrice float64 `json:"total_price"`

	// ConfirmedAtMs is when the clerk confirmed, Unix milliseconds.
	ConfirmedAtMs int64 `json:"confirmed_at_ms"`
}

// Totals is the derived sum over a cart. Always recomputed by folding
// the item sequence, never cached.
type Totals struct {
	Weight float64 `json:"weight"`
	Amount float64 `json:"amount"`
}

// Receipt is the result of checkout: the full item sequence and its
// totals at the moment the cart was committed.
type Receipt struct {
	SessionID     string     `json:"session_id,omitempty"`
	Items         []CartItem `json:"items"`
	Totals        Totals     `json:"totals"`
	CompletedAtMs int64      `json:"completed_at_ms"`
}
