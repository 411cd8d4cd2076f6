package biometric

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateCapabilityChecks(t *testing.T) {
	cases := []struct {
		name string
		cap  Capability
		want error
	}{
		{"no hardware", Capability{Type: None}, ErrNotAvailable},
		{"not enrolled", Capability{Type: FaceID}, ErrNotEnrolled},
		{"locked out", Capability{Type: TouchID, Enrolled: true, LockedOut: true}, ErrBiometryLockout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dev := NewStaticDevice(tc.cap, nil)
			ok, err := NewGate(dev).Authenticate(context.Background(), "unlock")
			require.False(t, ok)
			require.ErrorIs(t, err, tc.want)
			require.Zero(t, dev.Calls())
		})
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	dev := NewStaticDevice(Capability{Type: FaceID, Enrolled: true}, nil)
	g := NewGate(dev)

	require.True(t, g.IsAvailable(context.Background()))
	require.Equal(t, FaceID, g.BiometricType(context.Background()))

	ok, err := g.Authenticate(context.Background(), "unlock")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, dev.Calls())
}

func TestAuthenticatePassesKnownErrors(t *testing.T) {
	for _, e := range []error{ErrUserCancel, ErrUserFallback, ErrAuthenticationFailed} {
		dev := NewStaticDevice(Capability{Type: TouchID, Enrolled: true}, e)
		ok, err := NewGate(dev).Authenticate(context.Background(), "unlock")
		require.False(t, ok)
		require.ErrorIs(t, err, e)
	}
}

func TestAuthenticateClassifiesUnknownErrors(t *testing.T) {
	dev := NewStaticDevice(Capability{Type: TouchID, Enrolled: true}, errors.New("sensor glitch"))
	_, err := NewGate(dev).Authenticate(context.Background(), "unlock")
	require.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestAvailabilityIsPointInTime(t *testing.T) {
	dev := NewStaticDevice(Capability{Type: FaceID, Enrolled: true}, nil)
	g := NewGate(dev)
	require.True(t, g.IsAvailable(context.Background()))

	dev.Set(Capability{Type: FaceID, Enrolled: true, LockedOut: true}, nil)
	require.False(t, g.IsAvailable(context.Background()))
}

func TestNilDeviceIsNone(t *testing.T) {
	g := NewGate(nil)
	require.False(t, g.IsAvailable(context.Background()))
	require.Equal(t, None, g.BiometricType(context.Background()))
	require.Equal(t, "none", None.String())
	require.Equal(t, OpticID, ParseType("OpticID"))
}
