// Package engine implements the detection and session reconciliation
// core: a single-episode state machine bridging the reading feed to
// confirmed cart items, with a best-effort durable session mirror.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smartscale/kiosk/internal/cart"
	"github.com/smartscale/kiosk/internal/catalog"
	"github.com/smartscale/kiosk/internal/feed"
	"github.com/smartscale/kiosk/internal/metrics"
	"github.com/smartscale/kiosk/internal/models"
	"github.com/smartscale/kiosk/internal/reconcile"
	"github.com/smartscale/kiosk/internal/storage"
)

// ErrInvalidState signals an operation that is illegal in the current
// episode state, e.g. starting detection while one is already active.
// It is surfaced to the caller, never silently swallowed.
var ErrInvalidState = errors.New("invalid detection state")

// DefaultTimeout is how long an episode waits for an admissible reading
// before giving up with "no item detected".
const DefaultTimeout = 30 * time.Second

// Status is the state of the current detection episode.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusActive    Status = "active"
	StatusResolved  Status = "resolved"
	StatusTimedOut  Status = "timed_out"
	StatusCancelled Status = "cancelled"
)

// Config tunes the engine. Zero values fall back to defaults.
type Config struct {
	// Timeout arms the per-episode detection timer. Default 30s.
	Timeout time.Duration

	// Sentinel is the bridge's "no item" label.
	Sentinel string

	// Now returns the current time in Unix milliseconds. Injected for
	// tests; defaults to the wall clock.
	Now func() int64

	// OnChange, when set, is called with a state snapshot after every
	// observable transition. Called without the engine lock held.
	OnChange func(State)
}

// State is the snapshot the view layer reads: episode, cart, session.
type State struct {
	Status      Status            `json:"status"`
	StartedAtMs int64             `json:"started_at_ms,omitempty"`
	Product     *models.Product   `json:"product,omitempty"`
	Weight      float64           `json:"weight,omitempty"`
	Items       []models.CartItem `json:"items"`
	Totals      models.Totals     `json:"totals"`
	SessionID   string            `json:"session_id,omitempty"`
	Connected   bool              `json:"connected"`
}

// Engine owns one detection episode at a time and the cart it feeds.
// Every mutation happens behind one mutex: incoming readings, timer
// expiry, and clerk actions are serialized so that exactly one
// startedAtMs is authoritative for the timestamp-floor check at any
// moment.
type Engine struct {
	cfg      Config
	source   feed.Feed
	store    storage.SessionStore
	resolver *catalog.Resolver
	metrics  *metrics.Metrics

	mu          sync.Mutex
	status      Status
	startedAtMs int64
	product     *models.Product
	weight      float64
	ledger      *cart.Ledger
	sessionID   string

	timer *time.Timer
	epoch uint64 // invalidates timers armed for earlier episodes

	unsubscribe func()
}

// New wires an engine. The store may be nil-backed in tests via a fake;
// metrics may be nil.
func New(cfg Config, source feed.Feed, store storage.SessionStore, resolver *catalog.Resolver, m *metrics.Metrics) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() int64 { return time.Now().UnixMilli() }
	}
	return &Engine{
		cfg:      cfg,
		source:   source,
		store:    store,
		resolver: resolver,
		metrics:  m,
		status:   StatusIdle,
		ledger:   cart.NewLedger(),
	}
}

// Run subscribes the engine to the reading feed. Close undoes it.
func (e *Engine) Run() {
	e.unsubscribe = e.source.Subscribe(e.OnReading)
}

// Close tears the engine down: the feed subscription is released so no
// late callback can mutate a dead session.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.mu.Lock()
	e.disarmTimer()
	e.mu.Unlock()
}

// State returns a snapshot of episode, cart, and session.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	return State{
		Status:      e.status,
		StartedAtMs: e.startedAtMs,
		Product:     e.product,
		Weight:      e.weight,
		Items:       e.ledger.Items(),
		Totals:      e.ledger.Totals(),
		SessionID:   e.sessionID,
		Connected:   e.source.Connected(),
	}
}

// StartDetection begins a new episode. Starting from any terminal state
// implicitly acknowledges it; only starting while Active is illegal.
// A durable session is requested if the cycle has none yet; a mirror
// failure is a warning, not a refusal.
func (e *Engine) StartDetection(ctx context.Context) error {
	e.mu.Lock()
	if e.status == StatusActive {
		e.mu.Unlock()
		return fmt.Errorf("%w: detection already active", ErrInvalidState)
	}
	e.acknowledgeLocked()
	e.startLocked()
	state := e.stateLocked()
	e.mu.Unlock()

	e.ensureSession(ctx)
	e.notify(state)
	return nil
}

// startLocked transitions Idle -> Active and arms the timeout.
func (e *Engine) startLocked() {
	e.status = StatusActive
	e.startedAtMs = e.cfg.Now()
	e.armTimerLocked()
	slog.Info("detection started", "started_at_ms", e.startedAtMs)
}

// OnReading feeds one raw reading through the filter. Only meaningful
// while Active; a duplicate of the reading that resolved the episode is
// ignored because the episode is no longer Active.
func (e *Engine) OnReading(r models.Reading) {
	e.mu.Lock()
	if e.status != StatusActive {
		e.mu.Unlock()
		return
	}

	verdict := reconcile.Evaluate(r, e.startedAtMs, e.cfg.Sentinel)
	e.metrics.Reading(verdict.String())

	if verdict != reconcile.Admissible {
		slog.Debug("reading filtered", "verdict", verdict.String(),
			"label", r.Label, "weight", r.Weight, "captured_at_ms", r.CapturedAtMs)
		e.mu.Unlock()
		return
	}

	product := e.resolver.Resolve(r.Label, r.UnitPrice)
	e.status = StatusResolved
	e.product = &product
	e.weight = r.Weight
	e.disarmTimer()
	e.metrics.Episode("resolved")
	slog.Info("episode resolved", "product", product.Name, "weight", r.Weight)

	state := e.stateLocked()
	e.mu.Unlock()
	e.notify(state)
}

// ConfirmCurrent commits the resolved detection to the cart, with
// optional product/weight overrides for manual correction. With no
// resolved episode, both overrides are required (manual entry). The
// cart append is authoritative; mirroring to the session store is
// best-effort.
func (e *Engine) ConfirmCurrent(ctx context.Context, override *models.Product, weightOverride float64) (models.CartItem, error) {
	e.mu.Lock()

	product := override
	weight := weightOverride
	if e.status == StatusResolved {
		if product == nil {
			product = e.product
		}
		if weight <= 0 {
			weight = e.weight
		}
	}
	if product == nil || weight <= 0 {
		e.mu.Unlock()
		return models.CartItem{}, fmt.Errorf("%w: nothing resolved to confirm", ErrInvalidState)
	}

	item := e.ledger.Add(*product, weight, e.cfg.Now())
	e.metrics.CartSize(e.ledger.Len())
	e.acknowledgeLocked()
	sessionID := e.sessionID
	state := e.stateLocked()
	e.mu.Unlock()

	if sessionID != "" {
		if err := e.store.AppendItem(ctx, sessionID, item); err != nil {
			// The mirror fell behind; the cart keeps the item.
			e.metrics.StoreError("append_item")
			slog.Warn("session mirror append failed", "session_id", sessionID, "error", err)
		}
	}

	slog.Info("item confirmed", "product", item.Product.Name, "weight", item.Weight, "total", item.TotalPrice)
	e.notify(state)
	return item, nil
}

// Rescan discards the current episode and immediately starts a fresh
// one in the same session.
func (e *Engine) Rescan(ctx context.Context) {
	e.mu.Lock()
	e.cancelLocked()
	e.acknowledgeLocked()
	e.startLocked()
	state := e.stateLocked()
	e.mu.Unlock()

	e.ensureSession(ctx)
	e.notify(state)
}

// StopDetection cancels the current episode and returns to Idle.
// Always legal, idempotent.
func (e *Engine) StopDetection() {
	e.mu.Lock()
	e.cancelLocked()
	e.acknowledgeLocked()
	state := e.stateLocked()
	e.mu.Unlock()

	e.notify(state)
}

// cancelLocked transitions Active/Resolved -> Cancelled. No-op in any
// other state.
func (e *Engine) cancelLocked() {
	if e.status != StatusActive && e.status != StatusResolved {
		return
	}
	e.status = StatusCancelled
	e.disarmTimer()
	e.metrics.Episode("cancelled")
	slog.Info("episode cancelled")
}

// acknowledgeLocked clears a terminal episode back to Idle, dropping
// stored product/weight and disarming timers.
func (e *Engine) acknowledgeLocked() {
	e.status = StatusIdle
	e.startedAtMs = 0
	e.product = nil
	e.weight = 0
	e.disarmTimer()
}

// RemoveCartItem removes the item at the given display position.
// The removal is not mirrored: the session store records everything
// ever confirmed and is allowed to diverge from the operable cart.
func (e *Engine) RemoveCartItem(index int) (models.CartItem, error) {
	e.mu.Lock()
	item, err := e.ledger.RemoveAt(index)
	if err != nil {
		e.mu.Unlock()
		return models.CartItem{}, err
	}
	e.metrics.CartSize(e.ledger.Len())
	state := e.stateLocked()
	e.mu.Unlock()

	slog.Info("cart item removed", "index", index, "product", item.Product.Name)
	e.notify(state)
	return item, nil
}

// ClearCart empties the cart unconditionally.
func (e *Engine) ClearCart() {
	e.mu.Lock()
	e.ledger.Clear()
	e.metrics.CartSize(0)
	state := e.stateLocked()
	e.mu.Unlock()

	e.notify(state)
}

// Checkout commits the cart: it returns the receipt, completes the
// durable session best-effort, and ends the cycle. Any in-flight
// episode is cancelled since its session is gone. Checking out an empty
// cart is a caller bug.
func (e *Engine) Checkout(ctx context.Context) (models.Receipt, error) {
	e.mu.Lock()
	if e.ledger.Len() == 0 {
		e.mu.Unlock()
		return models.Receipt{}, fmt.Errorf("%w: cart is empty", ErrInvalidState)
	}

	e.cancelLocked()
	e.acknowledgeLocked()

	now := e.cfg.Now()
	receipt := e.ledger.Checkout(now)
	receipt.SessionID = e.sessionID
	sessionID := e.sessionID
	e.sessionID = ""
	e.metrics.CartSize(0)
	e.metrics.Checkout(receipt.Totals.Amount)
	state := e.stateLocked()
	e.mu.Unlock()

	if sessionID != "" {
		if err := e.store.CompleteSession(ctx, sessionID, now); err != nil {
			e.metrics.StoreError("complete_session")
			slog.Warn("session mirror complete failed", "session_id", sessionID, "error", err)
		}
	}

	slog.Info("checkout", "session_id", sessionID,
		"items", len(receipt.Items), "amount", receipt.Totals.Amount, "weight", receipt.Totals.Weight)
	e.notify(state)
	return receipt, nil
}

// ensureSession creates the durable session for this cycle if none
// exists yet. Failure leaves the cycle without a mirror; the kiosk
// stays usable.
func (e *Engine) ensureSession(ctx context.Context) {
	e.mu.Lock()
	have := e.sessionID != ""
	startedAt := e.startedAtMs
	e.mu.Unlock()
	if have {
		return
	}

	id, err := e.store.CreateSession(ctx, startedAt)
	if err != nil {
		e.metrics.StoreError("create_session")
		slog.Warn("session mirror create failed", "error", err)
		return
	}

	e.mu.Lock()
	e.sessionID = id
	e.mu.Unlock()
	slog.Info("session created", "session_id", id)
}

// armTimerLocked arms the episode timeout. The epoch stamp lets a late
// firing recognize that its episode already ended.
func (e *Engine) armTimerLocked() {
	e.disarmTimer()
	epoch := e.epoch
	e.timer = time.AfterFunc(e.cfg.Timeout, func() { e.onTimeout(epoch) })
}

// disarmTimer stops any armed timeout and invalidates in-flight firings.
func (e *Engine) disarmTimer() {
	e.epoch++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// onTimeout fires when an episode waited too long for an admissible
// reading. A firing for an earlier epoch, or for an episode that is no
// longer Active, is an ignorable no-op rather than an error.
func (e *Engine) onTimeout(epoch uint64) {
	e.mu.Lock()
	if epoch != e.epoch || e.status != StatusActive {
		e.mu.Unlock()
		return
	}
	e.status = StatusTimedOut
	e.timer = nil
	e.metrics.Episode("timed_out")
	slog.Info("detection timed out", "started_at_ms", e.startedAtMs)

	state := e.stateLocked()
	e.mu.Unlock()
	e.notify(state)
}

func (e *Engine) notify(state State) {
	if e.cfg.OnChange != nil {
		e.cfg.OnChange(state)
	}
}
