package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/smartscale/kiosk/internal/catalog"
	"github.com/smartscale/kiosk/internal/feed"
	"github.com/smartscale/kiosk/internal/models"
	"github.com/smartscale/kiosk/internal/storage"
)

const sentinel = "NO_ITEM"

// fakeFeed hand-delivers readings to the subscribed handler.
type fakeFeed struct {
	mu      sync.Mutex
	handler feed.Handler
}

func (f *fakeFeed) Subscribe(h feed.Handler) func() {
	f.mu.Lock()
	f.handler = h
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.handler = nil
		f.mu.Unlock()
	}
}

func (f *fakeFeed) Connected() bool { return true }

func (f *fakeFeed) deliver(r models.Reading) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(r)
	}
}

// fakeStore records mirror calls and can be switched to fail them.
type fakeStore struct {
	mu        sync.Mutex
	failing   bool
	nextID    int
	appended  map[string][]models.CartItem
	completed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{appended: make(map[string][]models.CartItem)}
}

func (s *fakeStore) setFailing(v bool) {
	s.mu.Lock()
	s.failing = v
	s.mu.Unlock()
}

func (s *fakeStore) CreateSession(ctx context.Context, startedAtMs int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return "", storage.ErrUnavailable
	}
	s.nextID++
	id := string(rune('A' + s.nextID - 1))
	return id, nil
}

func (s *fakeStore) AppendItem(ctx context.Context, sessionID string, item models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return storage.ErrUnavailable
	}
	s.appended[sessionID] = append(s.appended[sessionID], item)
	return nil
}

func (s *fakeStore) CompleteSession(ctx context.Context, sessionID string, endedAtMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return storage.ErrUnavailable
	}
	s.completed = append(s.completed, sessionID)
	return nil
}

func (s *fakeStore) CancelSession(ctx context.Context, sessionID string, endedAtMs int64) error {
	return nil
}

func (s *fakeStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	return nil, storage.ErrNotFound
}

func (s *fakeStore) WatchSession(sessionID string, onUpdate func(models.Session)) func() {
	return func() {}
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *fakeFeed, *fakeStore) {
	t.Helper()
	if cfg.Sentinel == "" {
		cfg.Sentinel = sentinel
	}
	f := &fakeFeed{}
	s := newFakeStore()
	resolver := catalog.NewResolver(catalog.DefaultProducts(), catalog.DefaultSynthesis)
	e := New(cfg, f, s, resolver, nil)
	e.Run()
	t.Cleanup(e.Close)
	return e, f, s
}

// clockAt returns a Now func pinned to the given millisecond.
func clockAt(ms int64) func() int64 {
	return func() int64 { return ms }
}

func TestReadingsBeforeStartAreIgnored(t *testing.T) {
	e, f, _ := newTestEngine(t, Config{})

	f.deliver(models.Reading{Weight: 1.0, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: time.Now().UnixMilli()})

	if st := e.State(); st.Status != StatusIdle {
		t.Errorf("Status = %v, want idle (nothing listening)", st.Status)
	}
}

func TestStaleReadingKeepsEpisodeActive(t *testing.T) {
	const start = int64(1700000000000)
	e, f, _ := newTestEngine(t, Config{Now: clockAt(start)})

	if err := e.StartDetection(context.Background()); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}

	// Terminal snapshot of the previous episode replayed at exactly the
	// start timestamp.
	f.deliver(models.Reading{Weight: 1.0, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start})
	f.deliver(models.Reading{Weight: 1.0, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start - 500})

	if st := e.State(); st.Status != StatusActive {
		t.Errorf("Status = %v, want active", st.Status)
	}
}

func TestSentinelNeverResolves(t *testing.T) {
	const start = int64(1700000000000)
	e, f, _ := newTestEngine(t, Config{Now: clockAt(start)})

	if err := e.StartDetection(context.Background()); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	f.deliver(models.Reading{Weight: 2.0, Label: sentinel, UnitPrice: 9.99, CapturedAtMs: start + 1})

	if st := e.State(); st.Status != StatusActive {
		t.Errorf("Status = %v, want active after sentinel", st.Status)
	}
}

func TestZeroWeightPendsThenResolves(t *testing.T) {
	const start = int64(1700000000000)
	e, f, _ := newTestEngine(t, Config{Now: clockAt(start)})

	if err := e.StartDetection(context.Background()); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}

	f.deliver(models.Reading{Weight: 0, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start + 1})
	if st := e.State(); st.Status != StatusActive {
		t.Fatalf("Status = %v, want active while weight is zero", st.Status)
	}

	f.deliver(models.Reading{Weight: 0.5, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start + 2})
	st := e.State()
	if st.Status != StatusResolved {
		t.Fatalf("Status = %v, want resolved", st.Status)
	}
	if st.Product == nil || st.Product.ID != "banana" {
		t.Errorf("Product = %+v, want catalog banana", st.Product)
	}
	if st.Weight != 0.5 {
		t.Errorf("Weight = %v, want 0.5", st.Weight)
	}
}

func TestDuplicateAdmissibleReadingResolvesOnce(t *testing.T) {
	const start = int64(1700000000000)
	e, f, _ := newTestEngine(t, Config{Now: clockAt(start)})

	if err := e.StartDetection(context.Background()); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}

	reading := models.Reading{Weight: 0.5, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start + 1}
	f.deliver(reading)
	first := e.State()
	f.deliver(reading) // redelivery of the same snapshot

	second := e.State()
	if second.Status != StatusResolved {
		t.Fatalf("Status = %v, want resolved", second.Status)
	}
	if second.Weight != first.Weight || second.Product.ID != first.Product.ID {
		t.Errorf("duplicate delivery changed the resolution: %+v vs %+v", second, first)
	}
}

func TestStartWhileActiveIsInvalidState(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	if err := e.StartDetection(context.Background()); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	if err := e.StartDetection(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second StartDetection err = %v, want ErrInvalidState", err)
	}
}

func TestTimeoutThenRestart(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{Timeout: 20 * time.Millisecond})

	if err := e.StartDetection(context.Background()); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for e.State().Status != StatusTimedOut {
		if time.Now().After(deadline) {
			t.Fatalf("episode never timed out, status = %v", e.State().Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	// No stuck state: a new start succeeds straight from TimedOut.
	if err := e.StartDetection(context.Background()); err != nil {
		t.Fatalf("StartDetection after timeout failed: %v", err)
	}
	if st := e.State(); st.Status != StatusActive {
		t.Errorf("Status = %v, want active", st.Status)
	}
}

func TestLateTimeoutDoesNotClobberResolution(t *testing.T) {
	const start = int64(1700000000000)
	e, f, _ := newTestEngine(t, Config{Timeout: 30 * time.Millisecond, Now: clockAt(start)})

	if err := e.StartDetection(context.Background()); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	f.deliver(models.Reading{Weight: 0.5, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start + 1})

	time.Sleep(80 * time.Millisecond) // well past the armed timer
	if st := e.State(); st.Status != StatusResolved {
		t.Errorf("Status = %v, want resolved to survive the disarmed timer", st.Status)
	}
}

func TestConfirmAppendsToCartAndMirror(t *testing.T) {
	const start = int64(1700000000000)
	e, f, s := newTestEngine(t, Config{Now: clockAt(start)})
	ctx := context.Background()

	if err := e.StartDetection(ctx); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	f.deliver(models.Reading{Weight: 0.5, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start + 1})

	item, err := e.ConfirmCurrent(ctx, nil, 0)
	if err != nil {
		t.Fatalf("ConfirmCurrent failed: %v", err)
	}
	if math.Abs(item.TotalPrice-0.5*2.49) > 1e-9 {
		t.Errorf("TotalPrice = %v, want weight*unitPrice exactly", item.TotalPrice)
	}

	st := e.State()
	if st.Status != StatusIdle {
		t.Errorf("Status = %v, want idle after confirmation", st.Status)
	}
	if len(st.Items) != 1 {
		t.Fatalf("cart has %d items, want 1", len(st.Items))
	}
	if st.SessionID == "" {
		t.Fatal("expected a session for the cycle")
	}
	if got := s.appended[st.SessionID]; len(got) != 1 {
		t.Errorf("mirror has %d items, want 1", len(got))
	}
}

func TestConfirmWithOverrides(t *testing.T) {
	const start = int64(1700000000000)
	e, f, _ := newTestEngine(t, Config{Now: clockAt(start)})
	ctx := context.Background()

	if err := e.StartDetection(ctx); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	f.deliver(models.Reading{Weight: 0.5, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start + 1})

	// Clerk corrects the detection to a different catalog product.
	tomato := models.Product{ID: "tomato", Name: "Tomato", UnitPrice: 5.99, Category: models.CategoryVegetable}
	item, err := e.ConfirmCurrent(ctx, &tomato, 0.75)
	if err != nil {
		t.Fatalf("ConfirmCurrent failed: %v", err)
	}
	if item.Product.ID != "tomato" || item.Weight != 0.75 {
		t.Errorf("override not applied: %+v", item)
	}
}

func TestConfirmWithoutResolutionIsInvalidState(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	if _, err := e.ConfirmCurrent(context.Background(), nil, 0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want ErrInvalidState", err)
	}
}

func TestStoreFailureNeverRollsBackCart(t *testing.T) {
	const start = int64(1700000000000)
	e, f, s := newTestEngine(t, Config{Now: clockAt(start)})
	ctx := context.Background()

	if err := e.StartDetection(ctx); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	f.deliver(models.Reading{Weight: 0.5, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start + 1})

	s.setFailing(true)
	if _, err := e.ConfirmCurrent(ctx, nil, 0); err != nil {
		t.Fatalf("ConfirmCurrent must not surface mirror failure, got: %v", err)
	}

	if st := e.State(); len(st.Items) != 1 {
		t.Errorf("cart has %d items after mirror failure, want 1", len(st.Items))
	}
}

func TestMultipleConfirmationsShareOneSession(t *testing.T) {
	const start = int64(1700000000000)
	e, f, s := newTestEngine(t, Config{Now: clockAt(start)})
	ctx := context.Background()

	for i, label := range []string{"Banana", "Tomato"} {
		if err := e.StartDetection(ctx); err != nil {
			t.Fatalf("StartDetection %d failed: %v", i, err)
		}
		f.deliver(models.Reading{Weight: 0.5, Label: label, UnitPrice: 2.0, CapturedAtMs: start + int64(i) + 1})
		if _, err := e.ConfirmCurrent(ctx, nil, 0); err != nil {
			t.Fatalf("ConfirmCurrent %d failed: %v", i, err)
		}
	}

	st := e.State()
	if len(s.appended[st.SessionID]) != 2 {
		t.Errorf("session %q mirrors %d items, want 2", st.SessionID, len(s.appended[st.SessionID]))
	}
}

func TestCheckout(t *testing.T) {
	const start = int64(1700000000000)
	e, f, s := newTestEngine(t, Config{Now: clockAt(start)})
	ctx := context.Background()

	weights := []float64{1.0, 0.5, 2.0}
	prices := []float64{2.0, 4.0, 1.5}
	for i := range weights {
		if err := e.StartDetection(ctx); err != nil {
			t.Fatalf("StartDetection failed: %v", err)
		}
		f.deliver(models.Reading{
			Weight: weights[i], Label: "Mystery Fruit", UnitPrice: prices[i],
			CapturedAtMs: start + int64(i) + 1,
		})
		if _, err := e.ConfirmCurrent(ctx, nil, 0); err != nil {
			t.Fatalf("ConfirmCurrent failed: %v", err)
		}
	}

	sessionID := e.State().SessionID
	receipt, err := e.Checkout(ctx)
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}

	if math.Abs(receipt.Totals.Amount-7.0) > 0.01 {
		t.Errorf("Amount = %v, want 7.0", receipt.Totals.Amount)
	}
	if math.Abs(receipt.Totals.Weight-3.5) > 0.01 {
		t.Errorf("Weight = %v, want 3.5", receipt.Totals.Weight)
	}
	if receipt.SessionID != sessionID {
		t.Errorf("receipt session = %q, want %q", receipt.SessionID, sessionID)
	}

	st := e.State()
	if len(st.Items) != 0 {
		t.Errorf("cart not empty after checkout: %d items", len(st.Items))
	}
	if st.SessionID != "" {
		t.Errorf("cycle not ended, session = %q", st.SessionID)
	}
	if len(s.completed) != 1 || s.completed[0] != sessionID {
		t.Errorf("completed sessions = %v, want [%s]", s.completed, sessionID)
	}

	if _, err := e.Checkout(ctx); !errors.Is(err, ErrInvalidState) {
		t.Errorf("empty checkout err = %v, want ErrInvalidState", err)
	}
}

func TestRemoveCartItem(t *testing.T) {
	const start = int64(1700000000000)
	e, f, _ := newTestEngine(t, Config{Now: clockAt(start)})
	ctx := context.Background()

	if err := e.StartDetection(ctx); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	f.deliver(models.Reading{Weight: 0.5, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start + 1})
	if _, err := e.ConfirmCurrent(ctx, nil, 0); err != nil {
		t.Fatalf("ConfirmCurrent failed: %v", err)
	}

	if _, err := e.RemoveCartItem(5); err == nil {
		t.Error("expected error for out-of-range index")
	}
	if _, err := e.RemoveCartItem(0); err != nil {
		t.Fatalf("RemoveCartItem(0) failed: %v", err)
	}
	if st := e.State(); len(st.Items) != 0 || st.Totals.Amount != 0 {
		t.Errorf("cart not empty after removal: %+v", st)
	}
}

func TestStopDetectionIsIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t, Config{})

	if err := e.StartDetection(context.Background()); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	e.StopDetection()
	e.StopDetection()

	if st := e.State(); st.Status != StatusIdle {
		t.Errorf("Status = %v, want idle", st.Status)
	}
}

func TestRescanStartsFreshEpisodeInSameSession(t *testing.T) {
	const start = int64(1700000000000)
	e, f, _ := newTestEngine(t, Config{Now: clockAt(start)})
	ctx := context.Background()

	if err := e.StartDetection(ctx); err != nil {
		t.Fatalf("StartDetection failed: %v", err)
	}
	sessionID := e.State().SessionID

	f.deliver(models.Reading{Weight: 0.5, Label: "Banana", UnitPrice: 2.49, CapturedAtMs: start + 1})
	if st := e.State(); st.Status != StatusResolved {
		t.Fatalf("Status = %v, want resolved", st.Status)
	}

	e.Rescan(ctx)
	st := e.State()
	if st.Status != StatusActive {
		t.Errorf("Status = %v, want active after rescan", st.Status)
	}
	if st.Product != nil {
		t.Error("resolved product must be cleared by rescan")
	}
	if st.SessionID != sessionID {
		t.Errorf("rescan changed session: %q -> %q", sessionID, st.SessionID)
	}
}
