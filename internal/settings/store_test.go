package settings

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const addrA = "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
const addrB = "0x6Fac4D18c912343BF86fa7049364Dd4E424Ab9C0"

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFreshStoreDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	addr, err := s.SelectedWalletAddress(ctx)
	require.NoError(t, err)
	assert.Empty(t, addr)

	done, err := s.HasCompletedOnboarding(ctx)
	require.NoError(t, err)
	assert.False(t, done)

	ws, err := s.ListWallets(ctx)
	require.NoError(t, err)
	assert.Empty(t, ws)
}

func TestSettingsPersistAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "settings.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.SetSelectedWalletAddress(ctx, addrA))
	require.NoError(t, s.SetSelectedWalletAddress(ctx, addrB))
	require.NoError(t, s.SetCompletedOnboarding(ctx, true))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	addr, err := s.SelectedWalletAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, addrB, addr)

	done, err := s.HasCompletedOnboarding(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestClearSelection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetSelectedWalletAddress(ctx, addrA))
	require.NoError(t, s.SetSelectedWalletAddress(ctx, ""))

	addr, err := s.SelectedWalletAddress(ctx)
	require.NoError(t, err)
	assert.Empty(t, addr)
}

func TestWalletRegistry(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	a, err := s.AddWallet(ctx, "Main", addrA)
	require.NoError(t, err)
	b, err := s.AddWallet(ctx, "Restored Wallet", addrB)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)

	again, err := s.AddWallet(ctx, "Other name", strings.ToLower(addrA))
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)
	assert.Equal(t, "Main", again.Name)

	ws, err := s.ListWallets(ctx)
	require.NoError(t, err)
	require.Len(t, ws, 2)
	assert.Equal(t, addrA, ws[0].Address)
	assert.Equal(t, addrB, ws[1].Address)
	assert.True(t, ws[0].CreatedAt.Before(ws[1].CreatedAt))
}

func TestRemoveWalletClearsSelection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.AddWallet(ctx, "Main", addrA)
	require.NoError(t, err)
	require.NoError(t, s.SetSelectedWalletAddress(ctx, addrA))

	require.NoError(t, s.RemoveWallet(ctx, strings.ToLower(addrA)))

	addr, err := s.SelectedWalletAddress(ctx)
	require.NoError(t, err)
	assert.Empty(t, addr)

	err = s.RemoveWallet(ctx, addrA)
	assert.True(t, errors.Is(err, ErrWalletNotFound))
}

func TestRemoveWalletKeepsOtherSelection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.AddWallet(ctx, "A", addrA)
	require.NoError(t, err)
	_, err = s.AddWallet(ctx, "B", addrB)
	require.NoError(t, err)
	require.NoError(t, s.SetSelectedWalletAddress(ctx, addrB))

	require.NoError(t, s.RemoveWallet(ctx, addrA))

	addr, err := s.SelectedWalletAddress(ctx)
	require.NoError(t, err)
	assert.Equal(t, addrB, addr)
}

func TestAddWalletRejectsEmptyAddress(t *testing.T) {
	s := openTestStore(t)
	_, err := s.AddWallet(context.Background(), "x", "  ")
	assert.Error(t, err)
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetCompletedOnboarding(ctx, true))
	done, err := s.HasCompletedOnboarding(ctx)
	require.NoError(t, err)
	assert.True(t, done)
}
