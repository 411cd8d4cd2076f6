// Package biometric wraps the device biometric sensor behind a single-shot
// challenge with a closed error set.
package biometric

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

var (
	ErrNotAvailable         = errors.New("biometric authentication not available")
	ErrNotEnrolled          = errors.New("no biometric identities enrolled")
	ErrBiometryLockout      = errors.New("biometry is locked out")
	ErrAuthenticationFailed = errors.New("biometric authentication failed")
	ErrUserCancel           = errors.New("biometric authentication cancelled by user")
	ErrUserFallback         = errors.New("user chose fallback authentication")
)

var known = []error{
	ErrNotAvailable,
	ErrNotEnrolled,
	ErrBiometryLockout,
	ErrAuthenticationFailed,
	ErrUserCancel,
	ErrUserFallback,
}

type Gate struct {
	device Device
}

func NewGate(device Device) *Gate {
	if device == nil {
		device = NoneDevice{}
	}
	return &Gate{device: device}
}

// Capability never fails: a device that cannot be queried reports no hardware.
func (g *Gate) Capability(ctx context.Context) Capability {
	c, err := g.device.Capability(ctx)
	if err != nil {
		log.Warn("biometric capability query failed", "error", err)
		return Capability{Type: None}
	}
	return c
}

func (g *Gate) IsAvailable(ctx context.Context) bool {
	return g.Capability(ctx).Available()
}

func (g *Gate) BiometricType(ctx context.Context) Type {
	return g.Capability(ctx).Type
}

// Authenticate runs one biometric challenge. A false result always comes with
// one of the package sentinels.
func (g *Gate) Authenticate(ctx context.Context, reason string) (bool, error) {
	c := g.Capability(ctx)
	switch {
	case c.Type == None:
		return false, ErrNotAvailable
	case !c.Enrolled:
		return false, ErrNotEnrolled
	case c.LockedOut:
		return false, ErrBiometryLockout
	}

	if err := g.device.Evaluate(ctx, reason); err != nil {
		return false, classify(err)
	}
	log.Info("biometric authentication succeeded", "type", c.Type.String())
	return true, nil
}

func classify(err error) error {
	for _, k := range known {
		if errors.Is(err, k) {
			return err
		}
	}
	return errors.Mark(errors.Wrap(err, "biometric evaluation"), ErrAuthenticationFailed)
}
