package keychain

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-wallet/internal/securefile"
	"github.com/stretchr/testify/require"
)

var secret = []byte("device-secret")

type failingVault struct {
	MemoryVault
	failSave bool
}

func (v *failingVault) Save(ctx context.Context, s []byte, entries map[string]string) error {
	if v.failSave {
		return errors.New("disk full")
	}
	return v.MemoryVault.Save(ctx, s, entries)
}

func unlocked(t *testing.T, v Vault) *Store {
	t.Helper()
	s := NewStore(v)
	require.NoError(t, s.Unlock(context.Background(), secret))
	return s
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := unlocked(t, NewMemoryVault())

	require.NoError(t, s.StorePrivateKey(ctx, "4c0883a69102937d6231471b5dbb6204fe512961708279f1d7b1b3e5e4b6a5a1"))
	got, ok, err := s.RetrievePrivateKey(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "4c0883a69102937d6231471b5dbb6204fe512961708279f1d7b1b3e5e4b6a5a1", got)

	require.NoError(t, s.DeletePrivateKey(ctx))
	_, ok, err = s.RetrievePrivateKey(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOneValuePerKey(t *testing.T) {
	ctx := context.Background()
	s := unlocked(t, NewMemoryVault())

	require.NoError(t, s.StoreWalletAddress(ctx, "0xaaa"))
	require.NoError(t, s.StoreWalletAddress(ctx, "0xbbb"))

	got, ok, err := s.RetrieveWalletAddress(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0xbbb", got)
}

func TestLockedStoreRejectsEverything(t *testing.T) {
	ctx := context.Background()
	s := NewStore(NewMemoryVault())

	require.ErrorIs(t, s.StorePIN(ctx, "123456"), ErrLocked)
	_, _, err := s.RetrievePIN(ctx)
	require.ErrorIs(t, err, ErrLocked)
	require.ErrorIs(t, s.DeleteAll(ctx), ErrLocked)

	require.NoError(t, s.Unlock(ctx, secret))
	require.NoError(t, s.StorePIN(ctx, "123456"))
	s.Lock()
	require.False(t, s.IsUnlocked())
	_, _, err = s.RetrievePIN(ctx)
	require.ErrorIs(t, err, ErrLocked)
}

func TestFailedWriteKeepsPreviousValue(t *testing.T) {
	ctx := context.Background()
	v := &failingVault{}
	s := unlocked(t, v)

	require.NoError(t, s.StorePIN(ctx, "111111"))
	v.failSave = true

	err := s.StorePIN(ctx, "222222")
	require.ErrorIs(t, err, ErrStorage)

	got, ok, err := s.RetrievePIN(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "111111", got)

	require.ErrorIs(t, s.DeleteAll(ctx), ErrStorage)
	_, ok, _ = s.RetrievePIN(ctx)
	require.True(t, ok)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	s := unlocked(t, NewMemoryVault())

	require.NoError(t, s.StorePrivateKey(ctx, "aa"))
	require.NoError(t, s.StoreWalletAddress(ctx, "0x01"))
	require.NoError(t, s.StorePIN(ctx, "123456"))
	require.NoError(t, s.DeleteAll(ctx))

	for _, get := range []func(context.Context) (string, bool, error){
		s.RetrievePrivateKey, s.RetrieveWalletAddress, s.RetrievePIN,
	} {
		_, ok, err := get(ctx)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	s := unlocked(t, NewMemoryVault())
	require.ErrorIs(t, s.Store(context.Background(), " ", "v"), ErrInvalidKey)
}

func TestFileVaultPersistsAcrossStores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keychain.json")

	newVault := func() *FileVault {
		v := NewFileVault(path)
		v.Opt.KDF = securefile.KDFParams{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32}
		return v
	}

	first := unlocked(t, newVault())
	require.NoError(t, first.StoreWalletAddress(ctx, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"))

	second := unlocked(t, newVault())
	got, ok, err := second.RetrieveWalletAddress(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", got)

	third := NewStore(newVault())
	err = third.Unlock(ctx, []byte("wrong secret"))
	require.ErrorIs(t, err, ErrStorage)
	require.False(t, third.IsUnlocked())
}

func TestConcurrentWritesSerialize(t *testing.T) {
	ctx := context.Background()
	s := unlocked(t, NewMemoryVault())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Store(ctx, "k", string(rune('a'+i%26)))
			_, _, _ = s.Retrieve(ctx, "k")
		}(i)
	}
	wg.Wait()

	_, ok, err := s.Retrieve(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
}
