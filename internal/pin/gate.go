// Package pin manages the 6-digit fallback PIN kept in the keychain.
package pin

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-wallet/internal/constants"
)

var (
	ErrInvalidFormat = errors.New("PIN must be exactly 6 digits")
	ErrNoPINSet      = errors.New("no PIN has been set")
	ErrIncorrectPIN  = errors.New("incorrect PIN")
	ErrPINAlreadySet = errors.New("a PIN is already set; use change-pin")
)

// SecretStore is the slice of the keychain the gate needs.
type SecretStore interface {
	StorePIN(ctx context.Context, pin string) error
	RetrievePIN(ctx context.Context) (string, bool, error)
	DeletePIN(ctx context.Context) error
}

type Gate struct {
	mu    sync.Mutex
	store SecretStore
}

func NewGate(store SecretStore) *Gate {
	return &Gate{store: store}
}

// ValidateFormat accepts exactly six ASCII digits.
func ValidateFormat(pin string) error {
	if len(pin) != constants.PINLength {
		return ErrInvalidFormat
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return ErrInvalidFormat
		}
	}
	return nil
}

// SetPIN configures the first PIN. An existing PIN is only replaced through
// ChangePIN.
func (g *Gate) SetPIN(ctx context.Context, pin string) error {
	if err := ValidateFormat(pin); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	_, exists, err := g.store.RetrievePIN(ctx)
	if err != nil {
		return errors.Wrap(err, "retrieve PIN")
	}
	if exists {
		return ErrPINAlreadySet
	}
	if err := g.store.StorePIN(ctx, pin); err != nil {
		return errors.Wrap(err, "store PIN")
	}
	log.Info("PIN configured")
	return nil
}

func (g *Gate) VerifyPIN(ctx context.Context, pin string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyLocked(ctx, pin)
}

// ChangePIN verifies oldPIN before overwriting it with newPIN.
func (g *Gate) ChangePIN(ctx context.Context, oldPIN, newPIN string) error {
	if err := ValidateFormat(newPIN); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ok, err := g.verifyLocked(ctx, oldPIN)
	if err != nil {
		return err
	}
	if !ok {
		return ErrIncorrectPIN
	}
	if err := g.store.StorePIN(ctx, newPIN); err != nil {
		return errors.Wrap(err, "store PIN")
	}
	log.Info("PIN changed")
	return nil
}

func (g *Gate) HasPIN(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok, err := g.store.RetrievePIN(ctx)
	if err != nil {
		return false, errors.Wrap(err, "retrieve PIN")
	}
	return ok, nil
}

func (g *Gate) DeletePIN(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.store.DeletePIN(ctx); err != nil {
		return errors.Wrap(err, "delete PIN")
	}
	return nil
}

// caller holds g.mu
func (g *Gate) verifyLocked(ctx context.Context, pin string) (bool, error) {
	stored, ok, err := g.store.RetrievePIN(ctx)
	if err != nil {
		return false, errors.Wrap(err, "retrieve PIN")
	}
	if !ok {
		return false, ErrNoPINSet
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(pin)) == 1, nil
}
