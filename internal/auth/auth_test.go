package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartscale/kiosk/internal/models"
	"github.com/smartscale/kiosk/internal/storage"
)

// memClerks is an in-memory ClerkStore for tests.
type memClerks struct {
	mu     sync.Mutex
	byName map[string]*models.Clerk
}

func newMemClerks() *memClerks {
	return &memClerks{byName: make(map[string]*models.Clerk)}
}

func (m *memClerks) CreateClerk(ctx context.Context, clerk *models.Clerk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if clerk.ID == "" {
		clerk.ID = "clerk-" + clerk.Name
	}
	m.byName[clerk.Name] = clerk
	return nil
}

func (m *memClerks) GetClerkByName(ctx context.Context, name string) (*models.Clerk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.byName[name]; ok {
		return c, nil
	}
	return nil, storage.ErrNotFound
}

func (m *memClerks) GetClerkByID(ctx context.Context, id string) (*models.Clerk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byName {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func TestRegisterAndAuthenticate(t *testing.T) {
	a := NewPINAuthenticator(newMemClerks())
	ctx := context.Background()

	clerk, err := a.Register(ctx, "asha", "4312")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if clerk.PINHash == "4312" {
		t.Error("PIN stored in plain text")
	}

	if _, err := a.Authenticate(ctx, "asha", "4312"); err != nil {
		t.Errorf("Authenticate with correct PIN failed: %v", err)
	}
	if _, err := a.Authenticate(ctx, "asha", "9999"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong PIN err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := a.Authenticate(ctx, "ghost", "4312"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown clerk err = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterRejectsWeakPINAndDuplicates(t *testing.T) {
	a := NewPINAuthenticator(newMemClerks())
	ctx := context.Background()

	if _, err := a.Register(ctx, "asha", "12"); !errors.Is(err, ErrWeakPIN) {
		t.Errorf("err = %v, want ErrWeakPIN", err)
	}
	if _, err := a.Register(ctx, "asha", "4312"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := a.Register(ctx, "asha", "5555"); !errors.Is(err, ErrNameExists) {
		t.Errorf("err = %v, want ErrNameExists", err)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret-key-32-bytes-long!!!", time.Hour)
	clerk := &models.Clerk{ID: "c1", Name: "asha"}

	token, err := manager.Generate(clerk)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.ClerkID != "c1" || claims.ClerkName != "asha" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := manager.Validate(token + "tampered"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("tampered token err = %v, want ErrInvalidToken", err)
	}

	expired := NewJWTManager("test-secret-key-32-bytes-long!!!", -time.Minute)
	token, err = expired.Generate(clerk)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := expired.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token err = %v, want ErrInvalidToken", err)
	}
}
