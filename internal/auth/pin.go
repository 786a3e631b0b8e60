// Package auth implements clerk authentication for shared kiosk
// hardware: name + PIN login backed by bcrypt, with JWTs for the
// browser session.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/smartscale/kiosk/internal/models"
	"github.com/smartscale/kiosk/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid name or PIN")
	ErrWeakPIN            = errors.New("PIN must be at least 4 digits")
	ErrNameExists         = errors.New("clerk name already registered")
)

// PINAuthenticator implements PIN-based clerk authentication using bcrypt.
type PINAuthenticator struct {
	clerks storage.ClerkStore
}

// NewPINAuthenticator creates a PIN-based authenticator over the given
// clerk storage.
func NewPINAuthenticator(clerks storage.ClerkStore) *PINAuthenticator {
	return &PINAuthenticator{clerks: clerks}
}

// ValidatePIN checks that a PIN meets the minimum length.
func (a *PINAuthenticator) ValidatePIN(pin string) error {
	if len(pin) < 4 {
		return ErrWeakPIN
	}
	return nil
}

// Register creates a new clerk account with a hashed PIN.
func (a *PINAuthenticator) Register(ctx context.Context, name, pin string) (*models.Clerk, error) {
	if err := a.ValidatePIN(pin); err != nil {
		return nil, err
	}

	if existing, err := a.clerks.GetClerkByName(ctx, name); err == nil && existing != nil {
		return nil, ErrNameExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash PIN: %w", err)
	}

	clerk := &models.Clerk{Name: name, PINHash: string(hash)}
	if err := a.clerks.CreateClerk(ctx, clerk); err != nil {
		return nil, fmt.Errorf("failed to create clerk: %w", err)
	}

	return clerk, nil
}

// Authenticate verifies the name and PIN, returning the clerk if valid.
func (a *PINAuthenticator) Authenticate(ctx context.Context, name, pin string) (*models.Clerk, error) {
	clerk, err := a.clerks.GetClerkByName(ctx, name)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(clerk.PINHash), []byte(pin)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return clerk, nil
}
