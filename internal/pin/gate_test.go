package pin

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/quantumauth-io/quantum-wallet/internal/keychain"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T) *Gate {
	t.Helper()
	store := keychain.NewStore(keychain.NewMemoryVault())
	require.NoError(t, store.Unlock(context.Background(), []byte("device")))
	return NewGate(store)
}

func TestSetPINRejectsBadFormat(t *testing.T) {
	g := newGate(t)
	for _, bad := range []string{"12345", "1234567", "12a456", "", " 12345", "１２３４５６"} {
		require.ErrorIs(t, g.SetPIN(context.Background(), bad), ErrInvalidFormat, bad)
	}
	has, err := g.HasPIN(context.Background())
	require.NoError(t, err)
	require.False(t, has)
}

func TestSetThenVerify(t *testing.T) {
	ctx := context.Background()
	g := newGate(t)
	require.NoError(t, g.SetPIN(ctx, "482913"))

	ok, err := g.VerifyPIN(ctx, "482913")
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 1000000; i += 99991 {
		other := fmt.Sprintf("%06d", i)
		if other == "482913" {
			continue
		}
		ok, err := g.VerifyPIN(ctx, other)
		require.NoError(t, err)
		require.False(t, ok, other)
	}
}

func TestSetPINDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	g := newGate(t)
	require.NoError(t, g.SetPIN(ctx, "111111"))
	require.ErrorIs(t, g.SetPIN(ctx, "999999"), ErrPINAlreadySet)

	ok, err := g.VerifyPIN(ctx, "999999")
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = g.VerifyPIN(ctx, "111111")
	require.NoError(t, err)
	require.True(t, ok)

	// after a delete the PIN can be set again
	require.NoError(t, g.DeletePIN(ctx))
	require.NoError(t, g.SetPIN(ctx, "999999"))
}

func TestVerifyWithoutPIN(t *testing.T) {
	_, err := newGate(t).VerifyPIN(context.Background(), "123456")
	require.ErrorIs(t, err, ErrNoPINSet)
}

func TestDeletePIN(t *testing.T) {
	ctx := context.Background()
	g := newGate(t)
	require.NoError(t, g.SetPIN(ctx, "123456"))
	require.NoError(t, g.DeletePIN(ctx))

	has, err := g.HasPIN(ctx)
	require.NoError(t, err)
	require.False(t, has)

	_, err = g.VerifyPIN(ctx, "123456")
	require.ErrorIs(t, err, ErrNoPINSet)
}

func TestChangePIN(t *testing.T) {
	ctx := context.Background()
	g := newGate(t)
	require.NoError(t, g.SetPIN(ctx, "111111"))

	require.ErrorIs(t, g.ChangePIN(ctx, "999999", "222222"), ErrIncorrectPIN)
	require.ErrorIs(t, g.ChangePIN(ctx, "111111", "22222"), ErrInvalidFormat)

	require.NoError(t, g.ChangePIN(ctx, "111111", "222222"))
	ok, err := g.VerifyPIN(ctx, "222222")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = g.VerifyPIN(ctx, "111111")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestChangePINWithoutPIN(t *testing.T) {
	require.ErrorIs(t, newGate(t).ChangePIN(context.Background(), "111111", "222222"), ErrNoPINSet)
}

func TestLockedKeychainSurfaces(t *testing.T) {
	g := NewGate(keychain.NewStore(keychain.NewMemoryVault()))
	_, err := g.HasPIN(context.Background())
	require.ErrorIs(t, err, keychain.ErrLocked)
}

func TestConcurrentVerifyAndChange(t *testing.T) {
	ctx := context.Background()
	g := newGate(t)
	require.NoError(t, g.SetPIN(ctx, "000000"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = g.VerifyPIN(ctx, "000000")
		}()
		go func() {
			defer wg.Done()
			_ = g.ChangePIN(ctx, "000000", "000000")
		}()
	}
	wg.Wait()

	ok, err := g.VerifyPIN(ctx, "000000")
	require.NoError(t, err)
	require.True(t, ok)
}
