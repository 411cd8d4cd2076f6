// Package security is the single authorization facade for wallet access:
// biometric first, PIN as the durable fallback once configured.
package security

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-wallet/internal/biometric"
	"github.com/quantumauth-io/quantum-wallet/internal/pin"
)

var ErrNoSecuritySetup = errors.New("no biometric or PIN security is set up")

// Outcome of a wallet access request that did not fail.
type Outcome int

const (
	Denied Outcome = iota
	Authenticated
	PINRequired
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "authenticated"
	case PINRequired:
		return "pin_required"
	default:
		return "denied"
	}
}

// PINGate is the subset of pin.Gate used here.
type PINGate interface {
	SetPIN(ctx context.Context, pin string) error
	VerifyPIN(ctx context.Context, pin string) (bool, error)
	ChangePIN(ctx context.Context, oldPIN, newPIN string) error
	HasPIN(ctx context.Context) (bool, error)
	DeletePIN(ctx context.Context) error
}

// SecretStore is the subset of keychain.Store used here.
type SecretStore interface {
	StorePrivateKey(ctx context.Context, privateKeyHex string) error
	RetrievePrivateKey(ctx context.Context) (string, bool, error)
	DeletePrivateKey(ctx context.Context) error
	StoreWalletAddress(ctx context.Context, address string) error
	RetrieveWalletAddress(ctx context.Context) (string, bool, error)
	DeleteWalletAddress(ctx context.Context) error
}

type Gateway struct {
	biometric *biometric.Gate
	pins      PINGate
	secrets   SecretStore
}

func NewGateway(bio *biometric.Gate, pins PINGate, secrets SecretStore) *Gateway {
	return &Gateway{biometric: bio, pins: pins, secrets: secrets}
}

func (g *Gateway) inputs(ctx context.Context) (Inputs, error) {
	hasPIN, err := g.pins.HasPIN(ctx)
	if err != nil {
		return Inputs{}, err
	}
	return InputsFrom(g.biometric.Capability(ctx), hasPIN), nil
}

func (g *Gateway) State(ctx context.Context) (State, error) {
	in, err := g.inputs(ctx)
	if err != nil {
		return NoSecuritySetup, err
	}
	return StateOf(in), nil
}

func (g *Gateway) BiometricType(ctx context.Context) biometric.Type {
	return g.biometric.BiometricType(ctx)
}

// AuthenticateForWalletAccess tries biometrics when usable. Any biometric
// failure turns into PINRequired when a PIN exists; without a PIN the
// biometric error is returned unchanged.
func (g *Gateway) AuthenticateForWalletAccess(ctx context.Context, reason string) (Outcome, error) {
	in, err := g.inputs(ctx)
	if err != nil {
		return Denied, err
	}

	switch Decide(in) {
	case RouteBiometric:
		ok, bioErr := g.biometric.Authenticate(ctx, reason)
		if ok {
			return Authenticated, nil
		}
		if in.PINExists {
			log.Info("biometric authentication failed, falling back to PIN", "error", bioErr)
			return PINRequired, nil
		}
		return Denied, bioErr
	case RoutePIN:
		return PINRequired, nil
	default:
		return Denied, ErrNoSecuritySetup
	}
}

func (g *Gateway) AuthenticateWithBiometrics(ctx context.Context, reason string) error {
	_, err := g.biometric.Authenticate(ctx, reason)
	return err
}

func (g *Gateway) AuthenticateWithPIN(ctx context.Context, p string) error {
	ok, err := g.pins.VerifyPIN(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return pin.ErrIncorrectPIN
	}
	return nil
}

func (g *Gateway) SetupPIN(ctx context.Context, p string) error {
	return g.pins.SetPIN(ctx, p)
}

func (g *Gateway) ChangePIN(ctx context.Context, oldPIN, newPIN string) error {
	return g.pins.ChangePIN(ctx, oldPIN, newPIN)
}

func (g *Gateway) HasPIN(ctx context.Context) (bool, error) {
	return g.pins.HasPIN(ctx)
}

// StoreWalletData writes the private key, then the address. If the address
// write fails the private key stays stored.
func (g *Gateway) StoreWalletData(ctx context.Context, privateKeyHex, address string) error {
	if err := g.secrets.StorePrivateKey(ctx, privateKeyHex); err != nil {
		return errors.Wrap(err, "store private key")
	}
	if err := g.secrets.StoreWalletAddress(ctx, address); err != nil {
		return errors.Wrap(err, "store wallet address")
	}
	return nil
}

func (g *Gateway) RetrievePrivateKey(ctx context.Context) (string, bool, error) {
	return g.secrets.RetrievePrivateKey(ctx)
}

func (g *Gateway) StoreWalletAddress(ctx context.Context, address string) error {
	return g.secrets.StoreWalletAddress(ctx, address)
}

func (g *Gateway) RetrieveWalletAddress(ctx context.Context) (string, bool, error) {
	return g.secrets.RetrieveWalletAddress(ctx)
}

// DeleteWalletData removes the private key, wallet address and PIN. It is not
// transactional: every deletion is attempted and the failures are combined,
// so a non-nil error may describe a partially reset wallet.
func (g *Gateway) DeleteWalletData(ctx context.Context) error {
	var combined error

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"private key", g.secrets.DeletePrivateKey},
		{"wallet address", g.secrets.DeleteWalletAddress},
		{"PIN", g.pins.DeletePIN},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			log.Error("wallet data deletion step failed", "step", s.name, "error", err)
			combined = errors.CombineErrors(combined, errors.Wrapf(err, "delete %s", s.name))
		}
	}
	if combined == nil {
		log.Info("wallet data deleted")
	}
	return combined
}
