package models

// SessionStatus is the lifecycle state of a durable session record.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is the durable mirror of one detection-to-checkout cycle.
// It accumulates confirmed items and lifecycle metadata. The in-memory
// cart stays authoritative: a session may fall behind it when the store
// is unavailable and is never used to rebuild cart state.
type Session struct {
	// ID is a ULID assigned by the store at creation.
	ID string `json:"id"`

	// StartedAtMs is when detection first started for this cycle.
	StartedAtMs int64 `json:"started_at_ms"`

	// EndedAtMs is when the session completed or was cancelled, zero
	// while active.
	EndedAtMs int64 `json:"ended_at_ms,omitempty"`

	// Items are the confirmed cart items mirrored so far, in
	// confirmation order.
	Items []CartItem `json:"items"`

	// Total is the folded sum of item total prices, recomputed by the
	// store on every append.
	Total float64 `json:"total"`

	Status SessionStatus `json:"status"`
}
